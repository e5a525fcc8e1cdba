package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// getUserID extracts the authenticated user id placed in the context by the
// JWT middleware. JWT numeric claims decode as float64, so several
// representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// domainError translates the domain error taxonomy into an HTTP response.
// Validation failures map to 400, payment declines to 402, authorization to
// 403, missing rows to 404 and every kind of conflict (window taken, space
// inactive, lost transition race, outside check-in window, storage
// contention that exhausted its retries) to 409.
func domainError(c echo.Context, err error) error {
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, model.ErrInvalidWindow):
        status = http.StatusBadRequest
    case errors.Is(err, model.ErrPaymentFailed):
        status = http.StatusPaymentRequired
    case errors.Is(err, model.ErrForbidden):
        status = http.StatusForbidden
    case errors.Is(err, model.ErrNotFound):
        status = http.StatusNotFound
    case errors.Is(err, model.ErrSlotUnavailable),
        errors.Is(err, model.ErrSpaceUnavailable),
        errors.Is(err, model.ErrIllegalTransition),
        errors.Is(err, model.ErrOutsideWindow),
        errors.Is(err, model.ErrStorageConflict):
        status = http.StatusConflict
    }
    if status == http.StatusInternalServerError {
        return c.JSON(status, echo.Map{"error": "internal error"})
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}

// reservationResp is the JSON shape of a reservation in every endpoint.
// Monetary amounts are rendered as decimal strings; clients must not do
// float arithmetic on them.
type reservationResp struct {
    ID             uint64  `json:"id"`
    Reference      string  `json:"reference"`
    MemberID       uint64  `json:"member_id"`
    SpaceID        uint64  `json:"space_id"`
    StartTime      string  `json:"start_time"`
    EndTime        string  `json:"end_time"`
    PricingMode    string  `json:"pricing_mode"`
    VehicleType    string  `json:"vehicle_type,omitempty"`
    VehiclePlate   string  `json:"vehicle_plate,omitempty"`
    VehicleModel   string  `json:"vehicle_model,omitempty"`
    BaseAmount     string  `json:"base_amount"`
    TaxAmount      string  `json:"tax_amount"`
    ServiceFee     string  `json:"service_fee"`
    DiscountAmount string  `json:"discount_amount"`
    TotalAmount    string  `json:"total_amount"`
    DiscountCode   *string `json:"discount_code,omitempty"`
    Status         string  `json:"status"`
    CancelReason   *string `json:"cancel_reason,omitempty"`
    CheckInAt      *string `json:"check_in_at,omitempty"`
    CheckOutAt     *string `json:"check_out_at,omitempty"`
    CreatedAt      string  `json:"created_at"`
}

func toReservationResp(res *model.Reservation) reservationResp {
    out := reservationResp{
        ID:             res.ID,
        Reference:      res.Reference,
        MemberID:       res.MemberID,
        SpaceID:        res.SpaceID,
        StartTime:      res.StartTime.UTC().Format(time.RFC3339),
        EndTime:        res.EndTime.UTC().Format(time.RFC3339),
        PricingMode:    string(res.PricingMode),
        VehicleType:    res.VehicleType,
        VehiclePlate:   res.VehiclePlate,
        VehicleModel:   res.VehicleModel,
        BaseAmount:     res.BaseAmount.String(),
        TaxAmount:      res.TaxAmount.String(),
        ServiceFee:     res.ServiceFee.String(),
        DiscountAmount: res.DiscountAmount.String(),
        TotalAmount:    res.TotalAmount.String(),
        DiscountCode:   res.DiscountCode,
        Status:         string(res.Status),
        CancelReason:   res.CancelReason,
        CreatedAt:      res.CreatedAt.UTC().Format(time.RFC3339),
    }
    if res.CheckInAt != nil {
        s := res.CheckInAt.UTC().Format(time.RFC3339)
        out.CheckInAt = &s
    }
    if res.CheckOutAt != nil {
        s := res.CheckOutAt.UTC().Format(time.RFC3339)
        out.CheckOutAt = &s
    }
    return out
}

func toReservationList(items []*model.Reservation) []reservationResp {
    out := make([]reservationResp, 0, len(items))
    for _, res := range items {
        out = append(out, toReservationResp(res))
    }
    return out
}
