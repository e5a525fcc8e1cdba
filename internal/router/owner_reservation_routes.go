package router

// This file registers owner-specific routes for managing reservations:
// listing the bookings against the owner's spaces and answering pending
// requests. They are kept separate from the member routes to keep
// concerns isolated.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-space-reservation/internal/handler"
    "github.com/iliyamo/parking-space-reservation/internal/middleware"
)

// RegisterOwnerReservations registers routes that allow owners to manage
// reservations. All routes are mounted under /v1/owner and require a JWT
// token as well as the OWNER role.
func RegisterOwnerReservations(e *echo.Echo, h *handler.OwnerReservationHandler, jwtSecret string) {
    g := e.Group(
        "/v1/owner",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("OWNER"),
    )
    g.GET("/reservations", h.List)
    g.GET("/reservations/:id", h.Get)

    // One POST per lifecycle event an owner may trigger.
    g.POST("/reservations/:id/approve", h.Approve)
    g.POST("/reservations/:id/reject", h.Reject)
    g.POST("/reservations/:id/cancel", h.Cancel)
}
