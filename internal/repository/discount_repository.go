package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/shopspring/decimal"
)

// DiscountRepo resolves discount codes from the discount_codes table and
// implements pricing.DiscountPolicy. Codes carry a fixed amount and an
// optional expiry; unknown, disabled or expired codes resolve to a zero
// discount rather than an error, so a stale code can never fail a booking.
type DiscountRepo struct {
    db *sql.DB
}

// NewDiscountRepo returns a new DiscountRepo bound to the given database.
func NewDiscountRepo(db *sql.DB) *DiscountRepo { return &DiscountRepo{db: db} }

// Resolve returns the fixed discount amount for code, or zero when the
// code does not resolve to a live discount.
func (r *DiscountRepo) Resolve(ctx context.Context, code string) (decimal.Decimal, error) {
    const q = `SELECT amount FROM discount_codes
               WHERE code = ? AND is_active = 1
                 AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())`
    var amount decimal.Decimal
    err := r.db.QueryRowContext(ctx, q, code).Scan(&amount)
    if errors.Is(err, sql.ErrNoRows) {
        return decimal.Zero, nil
    }
    if err != nil {
        return decimal.Zero, translateErr(err)
    }
    return amount, nil
}
