package pricing

import (
    "context"

    "github.com/shopspring/decimal"
)

// DiscountPolicy resolves a discount code into an absolute amount to
// subtract from the quote. Implementations return decimal.Zero for codes
// they do not recognize; a missing code is never an error. The concrete
// discount rules are a product decision, so the engine only depends on
// this contract.
type DiscountPolicy interface {
    Resolve(ctx context.Context, code string) (decimal.Decimal, error)
}

// NoDiscount is a DiscountPolicy that resolves every code to zero. It is
// the default when no discount backend is configured.
type NoDiscount struct{}

// Resolve always returns a zero discount.
func (NoDiscount) Resolve(ctx context.Context, code string) (decimal.Decimal, error) {
    return decimal.Zero, nil
}

// StaticDiscounts resolves codes against a fixed in-memory table. It is
// used in tests and for seeded promotional codes in development.
type StaticDiscounts map[string]decimal.Decimal

// Resolve returns the amount mapped to code, or zero when absent.
func (s StaticDiscounts) Resolve(ctx context.Context, code string) (decimal.Decimal, error) {
    if d, ok := s[code]; ok {
        return d, nil
    }
    return decimal.Zero, nil
}
