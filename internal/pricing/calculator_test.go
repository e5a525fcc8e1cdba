package pricing

import (
    "context"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

func testRates() model.RateSchedule {
    return model.RateSchedule{
        HourlyRate:  decimal.RequireFromString("10"),
        DailyRate:   decimal.RequireFromString("50"),
        WeeklyRate:  decimal.RequireFromString("250"),
        MonthlyRate: decimal.RequireFromString("800"),
    }
}

func TestQuoteHourlyTwoHours(t *testing.T) {
    start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
    end := start.Add(2 * time.Hour)

    b, err := Quote(context.Background(), testRates(), model.ModeHourly, start, end, "", nil)
    require.NoError(t, err)
    require.True(t, b.Base.Equal(decimal.RequireFromString("20")), "base = %s", b.Base)
    require.True(t, b.Tax.Equal(decimal.RequireFromString("3.6")), "tax = %s", b.Tax)
    require.True(t, b.ServiceFee.Equal(decimal.RequireFromString("1")), "fee = %s", b.ServiceFee)
    require.True(t, b.Discount.IsZero())
    require.True(t, b.Total.Equal(decimal.RequireFromString("24.6")), "total = %s", b.Total)
}

func TestQuotePartialUnitsRoundUp(t *testing.T) {
    start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
    cases := []struct {
        name  string
        mode  model.PricingMode
        dur   time.Duration
        units int64
        base  string
    }{
        {"one hour one minute bills two hours", model.ModeHourly, time.Hour + time.Minute, 2, "20"},
        {"exact hours bill exactly", model.ModeHourly, 3 * time.Hour, 3, "30"},
        {"25 hours bills two days", model.ModeDaily, 25 * time.Hour, 2, "100"},
        {"eight days bills two weeks", model.ModeWeekly, 8 * 24 * time.Hour, 2, "500"},
        {"exactly one week bills one week", model.ModeWeekly, 7 * 24 * time.Hour, 1, "250"},
        {"31 days bills two months", model.ModeMonthly, 31 * 24 * time.Hour, 2, "1600"},
        {"one minute bills one hour", model.ModeHourly, time.Minute, 1, "10"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            b, err := Quote(context.Background(), testRates(), tc.mode, start, start.Add(tc.dur), "", nil)
            require.NoError(t, err)
            require.Equal(t, tc.units, b.Units)
            require.True(t, b.Base.Equal(decimal.RequireFromString(tc.base)), "base = %s", b.Base)
        })
    }
}

func TestQuoteInvalidWindow(t *testing.T) {
    start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

    _, err := Quote(context.Background(), testRates(), model.ModeHourly, start, start, "", nil)
    require.ErrorIs(t, err, model.ErrInvalidWindow)

    _, err = Quote(context.Background(), testRates(), model.ModeHourly, start, start.Add(-time.Hour), "", nil)
    require.ErrorIs(t, err, model.ErrInvalidWindow)

    _, err = Quote(context.Background(), testRates(), model.PricingMode("FORTNIGHTLY"), start, start.Add(time.Hour), "", nil)
    require.ErrorIs(t, err, model.ErrInvalidWindow)
}

func TestQuoteDiscount(t *testing.T) {
    start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
    end := start.Add(2 * time.Hour)
    policy := StaticDiscounts{
        "SAVE5": decimal.RequireFromString("5"),
        "HUGE":  decimal.RequireFromString("1000"),
    }

    b, err := Quote(context.Background(), testRates(), model.ModeHourly, start, end, "SAVE5", policy)
    require.NoError(t, err)
    require.True(t, b.Discount.Equal(decimal.RequireFromString("5")))
    require.True(t, b.Total.Equal(decimal.RequireFromString("19.6")), "total = %s", b.Total)

    // An oversized discount is clamped; the total never goes negative.
    b, err = Quote(context.Background(), testRates(), model.ModeHourly, start, end, "HUGE", policy)
    require.NoError(t, err)
    require.True(t, b.Discount.Equal(decimal.RequireFromString("24.6")))
    require.True(t, b.Total.IsZero(), "total = %s", b.Total)

    // Unknown codes resolve to zero and never fail the quote.
    b, err = Quote(context.Background(), testRates(), model.ModeHourly, start, end, "NOPE", policy)
    require.NoError(t, err)
    require.True(t, b.Discount.IsZero())
    require.True(t, b.Total.Equal(decimal.RequireFromString("24.6")))
}

func TestQuoteDeterministic(t *testing.T) {
    start := time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC)
    end := start.Add(37*time.Hour + 13*time.Minute)

    first, err := Quote(context.Background(), testRates(), model.ModeDaily, start, end, "", nil)
    require.NoError(t, err)
    for i := 0; i < 50; i++ {
        b, err := Quote(context.Background(), testRates(), model.ModeDaily, start, end, "", nil)
        require.NoError(t, err)
        require.True(t, b.Total.Equal(first.Total))
        require.True(t, b.Total.Equal(b.Base.Add(b.Tax).Add(b.ServiceFee).Sub(b.Discount)))
    }
}
