package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-space-reservation/internal/engine"
    "github.com/iliyamo/parking-space-reservation/internal/lifecycle"
    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// ReservationHandler exposes the member-facing reservation endpoints. All
// business rules live in the engine; this layer only binds requests,
// extracts the authenticated member and translates domain errors to HTTP.
// JWT authentication and the MEMBER role are enforced by middleware before
// any method here runs.
type ReservationHandler struct {
    Engine *engine.Engine
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(eng *engine.Engine) *ReservationHandler {
    if eng == nil {
        panic("nil engine passed to NewReservationHandler")
    }
    return &ReservationHandler{Engine: eng}
}

type createReservationReq struct {
    SpaceID      uint64 `json:"space_id"`
    StartTime    string `json:"start_time"` // RFC3339
    EndTime      string `json:"end_time"`   // RFC3339
    PricingMode  string `json:"pricing_mode"`
    DiscountCode string `json:"discount_code"`
    VehicleType  string `json:"vehicle_type"`
    VehiclePlate string `json:"vehicle_plate"`
    VehicleModel string `json:"vehicle_model"`
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// Create handles POST /v1/reservations. The reservation starts in PENDING
// and waits for the owner's decision; pricing is locked in at this moment.
func (h *ReservationHandler) Create(c echo.Context) error {
    memberID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createReservationReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if req.SpaceID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "space_id is required"})
    }
    start, err := time.Parse(time.RFC3339, req.StartTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be RFC3339"})
    }
    end, err := time.Parse(time.RFC3339, req.EndTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be RFC3339"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Engine.CreateReservation(ctx, engine.CreateRequest{
        MemberID:     memberID,
        SpaceID:      req.SpaceID,
        StartTime:    start,
        EndTime:      end,
        PricingMode:  model.PricingMode(strings.ToUpper(strings.TrimSpace(req.PricingMode))),
        DiscountCode: strings.TrimSpace(req.DiscountCode),
        VehicleType:  strings.TrimSpace(req.VehicleType),
        VehiclePlate: strings.TrimSpace(req.VehiclePlate),
        VehicleModel: strings.TrimSpace(req.VehicleModel),
    })
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusCreated, toReservationResp(res))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    actorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, err := h.Engine.GetReservation(c.Request().Context(), id, actorID)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// GetByReference handles GET /v1/reservations/ref/:reference, the lookup
// members use with the shareable PK- code.
func (h *ReservationHandler) GetByReference(c echo.Context) error {
    actorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ref := strings.ToUpper(strings.TrimSpace(c.Param("reference")))
    if ref == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "reference is required"})
    }
    res, err := h.Engine.GetReservationByReference(c.Request().Context(), ref, actorID)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// ListMine handles GET /v1/reservations. Optional query parameters:
// space_id, status, limit.
func (h *ReservationHandler) ListMine(c echo.Context) error {
    memberID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    filter, err := bindListFilter(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    items, err := h.Engine.ListForMember(c.Request().Context(), memberID, filter)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": toReservationList(items)})
}

// Cancel handles POST /v1/reservations/:id/cancel. Confirmed reservations
// may only be cancelled before their window starts; the refund is issued
// after the transition commits.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    var req cancelReq
    _ = c.Bind(&req)
    return h.transition(c, lifecycle.EventCancel, strings.TrimSpace(req.Reason))
}

// CheckIn handles POST /v1/reservations/:id/check-in.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
    return h.transition(c, lifecycle.EventCheckIn, "")
}

// CheckOut handles POST /v1/reservations/:id/check-out. Checking out
// before the window's end completes the reservation; no partial refund is
// issued.
func (h *ReservationHandler) CheckOut(c echo.Context) error {
    return h.transition(c, lifecycle.EventCheckOut, "")
}

// Pay handles POST /v1/reservations/:id/pay. The reservation must be
// awaiting payment; a declined charge expires it and returns 402.
func (h *ReservationHandler) Pay(c echo.Context) error {
    actorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
    defer cancel()

    // Only the requesting member may pay. The role middleware keeps owners
    // off this route, but the member check does not rely on it.
    existing, err := h.Engine.GetReservation(ctx, id, actorID)
    if err != nil {
        return domainError(c, err)
    }
    if existing.MemberID != actorID {
        return domainError(c, model.ErrForbidden)
    }
    res, err := h.Engine.ConfirmPayment(ctx, id)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

func (h *ReservationHandler) transition(c echo.Context, event lifecycle.Event, reason string) error {
    actorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Engine.Transition(ctx, id, event, actorID, reason)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// bindListFilter parses the shared list query parameters.
func bindListFilter(c echo.Context) (engine.ListFilter, error) {
    var f engine.ListFilter
    if raw := c.QueryParam("space_id"); raw != "" {
        n, err := strconv.ParseUint(raw, 10, 64)
        if err != nil {
            return f, errInvalidQuery("space_id")
        }
        f.SpaceID = n
    }
    if raw := c.QueryParam("status"); raw != "" {
        f.Status = model.ReservationStatus(strings.ToUpper(strings.TrimSpace(raw)))
    }
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 0 {
            return f, errInvalidQuery("limit")
        }
        f.Limit = n
    }
    return f, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string { return "invalid query parameter: " + string(e) }
