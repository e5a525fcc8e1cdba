// Package repository implements the MySQL persistence layer: the
// reservation store consumed by the engine plus the space, user, token,
// payment and discount repositories. Errors crossing the package boundary
// are translated into the sentinel values in internal/model so that
// higher layers never depend on database/sql or driver error types.
package repository

import (
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// MySQL server error numbers that mean the statement lost to a concurrent
// transaction. Deadlocks and lock wait timeouts abort the transaction;
// duplicate entries surface when two inserts race on a unique column.
const (
    mysqlErrDuplicateEntry  = 1062
    mysqlErrLockWaitTimeout = 1205
    mysqlErrDeadlock        = 1213
)

// translateErr maps driver-level failures onto the domain error taxonomy.
// sql.ErrNoRows becomes model.ErrNotFound; contention aborts become
// model.ErrStorageConflict, which the engine retries a bounded number of
// times. Anything else passes through unchanged.
func translateErr(err error) error {
    if err == nil {
        return nil
    }
    if errors.Is(err, sql.ErrNoRows) {
        return model.ErrNotFound
    }
    var mysqlErr *mysql.MySQLError
    if errors.As(err, &mysqlErr) {
        switch mysqlErr.Number {
        case mysqlErrDeadlock, mysqlErrLockWaitTimeout, mysqlErrDuplicateEntry:
            return model.ErrStorageConflict
        }
    }
    return err
}
