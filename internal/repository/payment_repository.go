package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// PaymentRepo is the MySQL implementation of engine.PaymentLedger. Payment
// rows are written after the gateway call returns, outside the transition
// transaction; the unique reservation_id column keeps the ledger at one
// row per reservation even if a callback is replayed.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Record inserts a payment row and populates its generated id and
// timestamps.
func (r *PaymentRepo) Record(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments (reservation_id, amount, status, transaction_id)
               VALUES (?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q, p.ReservationID, p.Amount, string(p.Status), p.TransactionID)
    if err != nil {
        return translateErr(err)
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return r.db.QueryRowContext(ctx,
        `SELECT created_at FROM payments WHERE id = ?`, p.ID,
    ).Scan(&p.CreatedAt)
}

// GetByReservation loads the payment row for a reservation.
func (r *PaymentRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
    const q = `SELECT id, reservation_id, amount, status, transaction_id, created_at, refunded_at
               FROM payments WHERE reservation_id = ?`
    var (
        p          model.Payment
        refundedAt sql.NullTime
    )
    err := r.db.QueryRowContext(ctx, q, reservationID).Scan(
        &p.ID, &p.ReservationID, &p.Amount, &p.Status, &p.TransactionID,
        &p.CreatedAt, &refundedAt,
    )
    if err != nil {
        return nil, translateErr(err)
    }
    if refundedAt.Valid {
        t := refundedAt.Time.UTC()
        p.RefundedAt = &t
    }
    return &p, nil
}

// MarkRefunded flips a payment to REFUNDED and stamps the refund time.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, paymentID uint64) error {
    const q = `UPDATE payments SET status = ?, refunded_at = UTC_TIMESTAMP() WHERE id = ?`
    result, err := r.db.ExecContext(ctx, q, string(model.PaymentRefunded), paymentID)
    if err != nil {
        return translateErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return model.ErrNotFound
    }
    return nil
}
