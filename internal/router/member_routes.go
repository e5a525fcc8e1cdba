package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-space-reservation/internal/handler"
    "github.com/iliyamo/parking-space-reservation/internal/middleware"
)

// RegisterMember registers member-scoped endpoints under /v1. All routes
// require a valid JWT and the MEMBER role. Members create reservations,
// look them up by id or reference, pay for approved ones, check in and
// out, and cancel.
func RegisterMember(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("MEMBER"),
    )
    g.POST("/reservations", h.Create)
    g.GET("/reservations", h.ListMine)
    g.GET("/reservations/ref/:reference", h.GetByReference)
    g.GET("/reservations/:id", h.Get)

    // One POST per lifecycle event a member may trigger.
    g.POST("/reservations/:id/pay", h.Pay)
    g.POST("/reservations/:id/cancel", h.Cancel)
    g.POST("/reservations/:id/check-in", h.CheckIn)
    g.POST("/reservations/:id/check-out", h.CheckOut)
}
