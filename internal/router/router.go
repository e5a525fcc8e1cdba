package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/iliyamo/parking-space-reservation/internal/handler"    // import the handlers that implement business logic
    "github.com/iliyamo/parking-space-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitoring systems use /healthz to verify that
    // the service is up and running.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware. Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // /refresh rotates the refresh token; /refresh-access issues a new
    // access token without rotation.
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    // Logout accepts either a bearer token (revoke all sessions) or a
    // refresh_token in the body (revoke one session), so it is not behind
    // the JWT middleware.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole("OWNER", "MEMBER"))
    auth.GET("/me", a.Me)

    // Alias kept at the top level so clients can call either
    // /v1/auth/logout or /v1/logout.
    e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers the unauthenticated space browse endpoints. The
// cacheMW middleware (Redis response cache) is applied when non-nil; both
// endpoints are read-only snapshots and safe to cache for a short TTL.
func RegisterPublic(e *echo.Echo, s *handler.SpaceHandler, cacheMW echo.MiddlewareFunc) {
    g := e.Group("/v1/spaces")
    if cacheMW != nil {
        g.Use(cacheMW)
    }
    g.GET("/:id", s.Get)
    g.GET("/:id/availability", s.Availability)
}
