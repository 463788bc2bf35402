package router // router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/handler"
    "github.com/iliyamo/event-booking/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped catalog endpoints under
// /v1/admin.  All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminEventHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("ADMIN"),
    )

    // ---- Events ----
    g.POST("/events", a.CreateEvent)
    g.PUT("/events/:id", a.UpdateEvent)
    g.PATCH("/events/:id", a.UpdateEvent) // allow partial updates via PATCH as well
    g.DELETE("/events/:id", a.DeleteEvent)
}
