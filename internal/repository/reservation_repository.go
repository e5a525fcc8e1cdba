package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/engine"
    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// ReservationRepo is the MySQL implementation of engine.Store. The
// availability check runs inside the same transaction as the insert, with
// the parking space row locked via SELECT ... FOR UPDATE; concurrent
// creates on one space therefore serialize and at most one reservation per
// window commits. Status transitions are single conditional UPDATEs keyed
// on the expected current status. All timestamp columns are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// reservationColumns is the column list every reservation query scans; keep
// it aligned with scanReservation.
const reservationColumns = `id, reference, member_id, space_id, owner_id,
       start_time, end_time, pricing_mode,
       vehicle_type, vehicle_plate, vehicle_model,
       base_amount, tax_amount, service_fee, discount_amount, total_amount,
       discount_code, status, cancel_reason, check_in_at, check_out_at,
       created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

// scanReservation reads one reservations row into a model.Reservation.
func scanReservation(s rowScanner) (*model.Reservation, error) {
    var (
        res          model.Reservation
        discountCode sql.NullString
        cancelReason sql.NullString
        checkInAt    sql.NullTime
        checkOutAt   sql.NullTime
    )
    err := s.Scan(
        &res.ID, &res.Reference, &res.MemberID, &res.SpaceID, &res.OwnerID,
        &res.StartTime, &res.EndTime, &res.PricingMode,
        &res.VehicleType, &res.VehiclePlate, &res.VehicleModel,
        &res.BaseAmount, &res.TaxAmount, &res.ServiceFee, &res.DiscountAmount, &res.TotalAmount,
        &discountCode, &res.Status, &cancelReason, &checkInAt, &checkOutAt,
        &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if discountCode.Valid {
        code := discountCode.String
        res.DiscountCode = &code
    }
    if cancelReason.Valid {
        reason := cancelReason.String
        res.CancelReason = &reason
    }
    if checkInAt.Valid {
        t := checkInAt.Time.UTC()
        res.CheckInAt = &t
    }
    if checkOutAt.Valid {
        t := checkOutAt.Time.UTC()
        res.CheckOutAt = &t
    }
    res.StartTime = res.StartTime.UTC()
    res.EndTime = res.EndTime.UTC()
    res.CreatedAt = res.CreatedAt.UTC()
    res.UpdatedAt = res.UpdatedAt.UTC()
    return &res, nil
}

// activeStatusList renders the IN (...) placeholder list for the statuses
// that block a window, appending the status values to args.
func activeStatusList(args []any) (string, []any) {
    statuses := model.ActiveStatuses()
    placeholders := make([]string, len(statuses))
    for i, s := range statuses {
        placeholders[i] = "?"
        args = append(args, string(s))
    }
    return strings.Join(placeholders, ","), args
}

// GetSpace loads a parking space by id.
func (r *ReservationRepo) GetSpace(ctx context.Context, id uint64) (*model.ParkingSpace, error) {
    const q = `SELECT id, owner_id, name, address,
                      hourly_rate, daily_rate, weekly_rate, monthly_rate,
                      is_active, total_spots, available_spots, created_at, updated_at
               FROM parking_spaces WHERE id = ?`
    var sp model.ParkingSpace
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &sp.ID, &sp.OwnerID, &sp.Name, &sp.Address,
        &sp.Rates.HourlyRate, &sp.Rates.DailyRate, &sp.Rates.WeeklyRate, &sp.Rates.MonthlyRate,
        &sp.IsActive, &sp.TotalSpots, &sp.AvailableSpots, &sp.CreatedAt, &sp.UpdatedAt,
    )
    if err != nil {
        return nil, translateErr(err)
    }
    return &sp, nil
}

// GetReservation loads a reservation by id.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
    res, err := scanReservation(r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
    if err != nil {
        return nil, translateErr(err)
    }
    return res, nil
}

// GetReservationByReference loads a reservation by its reference code.
func (r *ReservationRepo) GetReservationByReference(ctx context.Context, ref string) (*model.Reservation, error) {
    res, err := scanReservation(r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE reference = ?`, ref))
    if err != nil {
        return nil, translateErr(err)
    }
    return res, nil
}

// ListByMember returns a member's reservations, newest first.
func (r *ReservationRepo) ListByMember(ctx context.Context, memberID uint64, f engine.ListFilter) ([]*model.Reservation, error) {
    return r.list(ctx, "member_id", memberID, f)
}

// ListByOwner returns the reservations against spaces owned by ownerID,
// newest first.
func (r *ReservationRepo) ListByOwner(ctx context.Context, ownerID uint64, f engine.ListFilter) ([]*model.Reservation, error) {
    return r.list(ctx, "owner_id", ownerID, f)
}

func (r *ReservationRepo) list(ctx context.Context, keyColumn string, keyID uint64, f engine.ListFilter) ([]*model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + keyColumn + ` = ?`
    args := []any{keyID}
    if f.SpaceID != 0 {
        q += ` AND space_id = ?`
        args = append(args, f.SpaceID)
    }
    if f.Status != "" {
        q += ` AND status = ?`
        args = append(args, string(f.Status))
    }
    q += ` ORDER BY created_at DESC, id DESC`
    if f.Limit > 0 {
        q += ` LIMIT ?`
        args = append(args, f.Limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, translateErr(err)
    }
    defer rows.Close()
    out := make([]*model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, translateErr(err)
    }
    return out, nil
}

// CreateReservation inserts res in PENDING, provided no active reservation
// on the same space overlaps its window. The space row lock taken first
// serializes all creates (and spot adjustments) on that space, which makes
// the overlap check and the insert a single atomic step.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return translateErr(err)
    }
    committed := false
    defer func() {
        if !committed {
            tx.Rollback()
        }
    }()

    // Lock the space row for the duration of the transaction.
    var spaceID uint64
    if err := tx.QueryRowContext(ctx,
        `SELECT id FROM parking_spaces WHERE id = ? FOR UPDATE`, res.SpaceID,
    ).Scan(&spaceID); err != nil {
        return translateErr(err)
    }

    // Half-open overlap check over active reservations only.
    args := []any{res.SpaceID}
    inList, args := activeStatusList(args)
    args = append(args, res.EndTime, res.StartTime)
    var clash bool
    if err := tx.QueryRowContext(ctx,
        `SELECT EXISTS(
            SELECT 1 FROM reservations
            WHERE space_id = ? AND status IN (`+inList+`)
              AND start_time < ? AND end_time > ?)`, args...,
    ).Scan(&clash); err != nil {
        return translateErr(err)
    }
    if clash {
        return model.ErrSlotUnavailable
    }

    const insQ = `INSERT INTO reservations
        (reference, member_id, space_id, owner_id, start_time, end_time, pricing_mode,
         vehicle_type, vehicle_plate, vehicle_model,
         base_amount, tax_amount, service_fee, discount_amount, total_amount,
         discount_code, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, insQ,
        res.Reference, res.MemberID, res.SpaceID, res.OwnerID,
        res.StartTime.UTC(), res.EndTime.UTC(), string(res.PricingMode),
        res.VehicleType, res.VehiclePlate, res.VehicleModel,
        res.BaseAmount, res.TaxAmount, res.ServiceFee, res.DiscountAmount, res.TotalAmount,
        res.DiscountCode, string(res.Status),
    )
    if err != nil {
        return translateErr(err)
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }

    // Read the row back so generated timestamps land on the model.
    created, err := scanReservation(tx.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, uint64(id)))
    if err != nil {
        return translateErr(err)
    }
    if err := tx.Commit(); err != nil {
        return translateErr(err)
    }
    committed = true
    *res = *created
    return nil
}

// ApplyTransition executes one lifecycle transition as a compare-and-set:
// the UPDATE only fires while the reservation still holds upd.From, so of
// two racing transitions exactly one commits. The spot-counter delta runs
// in the same transaction and aborts it when the counter would leave
// [0, total_spots].
func (r *ReservationRepo) ApplyTransition(ctx context.Context, upd engine.TransitionUpdate) (*model.Reservation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, translateErr(err)
    }
    committed := false
    defer func() {
        if !committed {
            tx.Rollback()
        }
    }()

    q := `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()`
    args := []any{string(upd.To)}
    if upd.CheckInAt != nil {
        q += `, check_in_at = ?`
        args = append(args, upd.CheckInAt.UTC())
    }
    if upd.CheckOutAt != nil {
        q += `, check_out_at = ?`
        args = append(args, upd.CheckOutAt.UTC())
    }
    if upd.Reason != nil {
        q += `, cancel_reason = ?`
        args = append(args, *upd.Reason)
    }
    q += ` WHERE id = ? AND status = ?`
    args = append(args, upd.ReservationID, string(upd.From))

    result, err := tx.ExecContext(ctx, q, args...)
    if err != nil {
        return nil, translateErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return nil, err
    }
    if affected == 0 {
        // Lost the compare-and-set or the row never existed.
        var status string
        err := tx.QueryRowContext(ctx,
            `SELECT status FROM reservations WHERE id = ?`, upd.ReservationID,
        ).Scan(&status)
        if err != nil {
            return nil, translateErr(err)
        }
        return nil, model.ErrIllegalTransition
    }

    if upd.SpotDelta != 0 {
        result, err := tx.ExecContext(ctx,
            `UPDATE parking_spaces p
             JOIN reservations r ON r.space_id = p.id
             SET p.available_spots = p.available_spots + ?, p.updated_at = UTC_TIMESTAMP()
             WHERE r.id = ? AND p.available_spots + ? BETWEEN 0 AND p.total_spots`,
            upd.SpotDelta, upd.ReservationID, upd.SpotDelta,
        )
        if err != nil {
            return nil, translateErr(err)
        }
        affected, err := result.RowsAffected()
        if err != nil {
            return nil, err
        }
        if affected == 0 {
            // Counter would leave its bounds; abort so the status change
            // rolls back with it.
            return nil, model.ErrStorageConflict
        }
    }

    updated, err := scanReservation(tx.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, upd.ReservationID))
    if err != nil {
        return nil, translateErr(err)
    }
    if err := tx.Commit(); err != nil {
        return nil, translateErr(err)
    }
    committed = true
    return updated, nil
}

// ListExpirable returns the reservations the expiry worker should act on:
// PENDING rows created at or before pendingBefore and AWAITING_PAYMENT rows
// last updated at or before paymentBefore.
func (r *ReservationRepo) ListExpirable(ctx context.Context, pendingBefore, paymentBefore time.Time) ([]*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE (status = ? AND created_at <= ?)
                  OR (status = ? AND updated_at <= ?)
               ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q,
        string(model.StatusPending), pendingBefore.UTC(),
        string(model.StatusAwaitingPayment), paymentBefore.UTC(),
    )
    if err != nil {
        return nil, translateErr(err)
    }
    defer rows.Close()
    out := make([]*model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, translateErr(err)
    }
    return out, nil
}

// Available reports whether [start, end) on spaceID is free of active
// reservations, optionally ignoring one reservation id. This is the
// read-only preview used by the public browse endpoint; the authoritative
// check runs inside CreateReservation's transaction.
func (r *ReservationRepo) Available(ctx context.Context, spaceID uint64, start, end time.Time, excludeID uint64) (bool, error) {
    args := []any{spaceID}
    inList, args := activeStatusList(args)
    args = append(args, end, start, excludeID)
    var clash bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS(
            SELECT 1 FROM reservations
            WHERE space_id = ? AND status IN (`+inList+`)
              AND start_time < ? AND end_time > ?
              AND id <> ?)`, args...,
    ).Scan(&clash)
    if err != nil {
        return false, translateErr(err)
    }
    return !clash, nil
}
