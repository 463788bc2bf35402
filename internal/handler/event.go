// Package handler exposes HTTP handlers for both authenticated and
// public endpoints.  This file defines the public event catalog:
// unauthenticated users can browse events and check remaining seats
// without seeing internal fields such as the creator id.
package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/repository"
)

// EventHandler serves the public, read-only event catalog.
type EventHandler struct {
    Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
    if events == nil {
        panic("nil repository passed to NewEventHandler")
    }
    return &EventHandler{Events: events}
}

// PublicEvent is an event as exposed to unauthenticated clients.
type PublicEvent struct {
    ID             uint64    `json:"id"`
    Title          string    `json:"title"`
    Description    string    `json:"description,omitempty"`
    Venue          string    `json:"venue"`
    StartsAt       time.Time `json:"starts_at"`
    PriceCents     uint32    `json:"price_cents"`
    AvailableSeats uint32    `json:"available_seats"`
}

func toPublicEvent(e model.Event) PublicEvent {
    return PublicEvent{
        ID:             e.ID,
        Title:          e.Title,
        Description:    e.Description,
        Venue:          e.Venue,
        StartsAt:       e.StartsAt,
        PriceCents:     e.PriceCents,
        AvailableSeats: e.AvailableSeats,
    }
}

// ListEvents handles GET /v1/events.  Response JSON contains an
// "items" array of PublicEvent.
func (h *EventHandler) ListEvents(c echo.Context) error {
    ctx := c.Request().Context()
    events, err := h.Events.List(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]PublicEvent, 0, len(events))
    for _, e := range events {
        out = append(out, toPublicEvent(e))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetEvent handles GET /v1/events/:id.  The available seat counter in
// the response is a point-in-time read; only a booking attempt decides
// whether seats are actually still there.
func (h *EventHandler) GetEvent(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    e, err := h.Events.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrEventNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, toPublicEvent(e))
}
