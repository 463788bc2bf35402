package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/handler"
)

// RegisterPublic registers the unauthenticated browse endpoints: the
// event catalog and the ticket QR renderer.  These routes apply no JWT
// or role middleware; the QR route is guarded by the unguessability of
// the ticket number instead.  The response cache is applied here and
// nowhere else because its keys carry no user identity, which makes it
// safe only for responses that look the same to everyone.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, t *handler.TicketHandler, cache echo.MiddlewareFunc) {
    g := e.Group("", cache)
    g.GET("/v1/events", ev.ListEvents)
    g.GET("/v1/events/:id", ev.GetEvent)
    g.GET("/v1/tickets/:number/qr", t.GetTicketQR)
}
