package router // router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/handler"
    "github.com/iliyamo/event-booking/internal/middleware"
)

// RegisterBookings registers the customer booking lifecycle under /v1.
// All routes require a valid JWT; both roles may book.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("ADMIN", "CUSTOMER"),
    )

    // ---- Bookings ----
    g.POST("/bookings", b.CreateBooking)
    g.GET("/my-bookings", b.ListMyBookings)
    g.GET("/bookings/:id", b.GetBooking)
    g.DELETE("/bookings/:id", b.CancelBooking)

    // ---- Payment ----
    g.POST("/bookings/:id/order", b.CreateOrder)
    g.POST("/bookings/:id/capture", b.CapturePayment)
}
