package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/repository"
    "github.com/iliyamo/event-booking/internal/utils"
)

// TicketHandler renders ticket QR codes.  The route is public: the
// ticket number is an unguessable UUID, so possession of the URL is
// the access control, same as the printed ticket itself.
type TicketHandler struct {
    Tickets *repository.TicketRepo
}

func NewTicketHandler(tickets *repository.TicketRepo) *TicketHandler {
    if tickets == nil {
        panic("nil repository passed to NewTicketHandler")
    }
    return &TicketHandler{Tickets: tickets}
}

// GetTicketQR handles GET /v1/tickets/:number/qr and responds with a
// PNG image of the ticket's QR payload.  The payload is stored, not
// recomputed, so the rendered code never drifts from what was issued.
func (h *TicketHandler) GetTicketQR(c echo.Context) error {
    number := c.Param("number")
    if number == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket number"})
    }
    t, err := h.Tickets.GetByNumber(c.Request().Context(), number)
    if err != nil {
        if errors.Is(err, repository.ErrTicketNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    png, err := utils.RenderQR(t.QRPayload)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render failed"})
    }
    return c.Blob(http.StatusOK, "image/png", png)
}
