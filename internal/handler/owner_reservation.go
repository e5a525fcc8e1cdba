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
)

// OwnerReservationHandler exposes the owner-facing reservation endpoints:
// listing the bookings against the owner's spaces and answering pending
// requests. The OWNER role is enforced by middleware.
type OwnerReservationHandler struct {
    Engine *engine.Engine
}

// NewOwnerReservationHandler constructs an OwnerReservationHandler.
func NewOwnerReservationHandler(eng *engine.Engine) *OwnerReservationHandler {
    if eng == nil {
        panic("nil engine passed to NewOwnerReservationHandler")
    }
    return &OwnerReservationHandler{Engine: eng}
}

type rejectReq struct {
    Reason string `json:"reason"`
}

// List handles GET /v1/owner/reservations. Optional query parameters:
// space_id, status, limit.
func (h *OwnerReservationHandler) List(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    filter, err := bindListFilter(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    items, err := h.Engine.ListForOwner(c.Request().Context(), ownerID, filter)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": toReservationList(items)})
}

// Get handles GET /v1/owner/reservations/:id.
func (h *OwnerReservationHandler) Get(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    res, err := h.Engine.GetReservation(c.Request().Context(), id, ownerID)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// Approve handles POST /v1/owner/reservations/:id/approve. The member then
// has the payment window to confirm.
func (h *OwnerReservationHandler) Approve(c echo.Context) error {
    return h.transition(c, lifecycle.EventApprove, "")
}

// Reject handles POST /v1/owner/reservations/:id/reject. The reason, when
// given, is recorded on the reservation and included in the member's
// notification.
func (h *OwnerReservationHandler) Reject(c echo.Context) error {
    var req rejectReq
    _ = c.Bind(&req)
    return h.transition(c, lifecycle.EventReject, strings.TrimSpace(req.Reason))
}

// Cancel handles POST /v1/owner/reservations/:id/cancel. Owners may cancel
// a booking on their space under the same state rules as members.
func (h *OwnerReservationHandler) Cancel(c echo.Context) error {
    var req rejectReq
    _ = c.Bind(&req)
    return h.transition(c, lifecycle.EventCancel, strings.TrimSpace(req.Reason))
}

func (h *OwnerReservationHandler) transition(c echo.Context, event lifecycle.Event, reason string) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Engine.Transition(ctx, id, event, ownerID, reason)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}
