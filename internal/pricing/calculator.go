// Package pricing computes the monetary breakdown of a reservation. The
// calculator is a pure function of the rate schedule, pricing mode and time
// window; discounts are resolved through the DiscountPolicy collaborator.
// All arithmetic uses fixed-point decimals so that totals round identically
// across runs and can be audited.
package pricing

import (
    "context"
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// Tax and service fee are policy constants owned by this package, not
// caller-supplied. 18% tax and 5% service fee on the base amount.
var (
    taxRate        = decimal.RequireFromString("0.18")
    serviceFeeRate = decimal.RequireFromString("0.05")
)

// Breakdown is the price quote for a window. Total always equals
// Base + Tax + ServiceFee − Discount, and is never negative.
type Breakdown struct {
    Base       decimal.Decimal
    Tax        decimal.Decimal
    ServiceFee decimal.Decimal
    Discount   decimal.Decimal
    Total      decimal.Decimal
    Units      int64 // billed units (hours, days, weeks or months)
}

// Quote computes the price breakdown for reserving a space from start to
// end under the given pricing mode. The duration must be strictly
// positive, otherwise model.ErrInvalidWindow is returned. Partial units are
// billed as full units: durations round up, never down or to nearest.
//
// The discount code is resolved through policy; a nil policy, empty code or
// unknown code yields a zero discount and never an error. The resolved
// discount is clamped so the total cannot go negative.
func Quote(ctx context.Context, rates model.RateSchedule, mode model.PricingMode, start, end time.Time, code string, policy DiscountPolicy) (Breakdown, error) {
    dur := end.Sub(start)
    if dur <= 0 {
        return Breakdown{}, model.ErrInvalidWindow
    }

    var (
        rate decimal.Decimal
        unit time.Duration
    )
    switch mode {
    case model.ModeHourly:
        rate, unit = rates.HourlyRate, time.Hour
    case model.ModeDaily:
        rate, unit = rates.DailyRate, 24*time.Hour
    case model.ModeWeekly:
        rate, unit = rates.WeeklyRate, 7*24*time.Hour
    case model.ModeMonthly:
        rate, unit = rates.MonthlyRate, 30*24*time.Hour
    default:
        return Breakdown{}, model.ErrInvalidWindow
    }

    units := ceilUnits(dur, unit)
    base := rate.Mul(decimal.NewFromInt(units))
    tax := base.Mul(taxRate)
    fee := base.Mul(serviceFeeRate)

    discount := decimal.Zero
    if policy != nil && code != "" {
        // Invalid or unresolvable codes never fail a quote.
        if d, err := policy.Resolve(ctx, code); err == nil && d.IsPositive() {
            discount = d
        }
    }
    gross := base.Add(tax).Add(fee)
    if discount.GreaterThan(gross) {
        discount = gross
    }

    return Breakdown{
        Base:       base,
        Tax:        tax,
        ServiceFee: fee,
        Discount:   discount,
        Total:      gross.Sub(discount),
        Units:      units,
    }, nil
}

// ceilUnits returns the number of whole billing units covering dur, with
// any partial unit counted as a full one.
func ceilUnits(dur, unit time.Duration) int64 {
    n := int64(dur / unit)
    if dur%unit != 0 {
        n++
    }
    return n
}
