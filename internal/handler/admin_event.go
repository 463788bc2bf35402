package handler

import (
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/repository"
)

// AdminEventHandler manages the event catalog.  All routes behind it
// require the ADMIN role; the role middleware enforces that before any
// method here runs.
type AdminEventHandler struct {
    Events *repository.EventRepo
}

func NewAdminEventHandler(events *repository.EventRepo) *AdminEventHandler {
    if events == nil {
        panic("nil repository passed to NewAdminEventHandler")
    }
    return &AdminEventHandler{Events: events}
}

type createEventReq struct {
    Title       string `json:"title"`
    Description string `json:"description"`
    Venue       string `json:"venue"`
    StartsAt    string `json:"starts_at"` // RFC 3339
    PriceCents  uint32 `json:"price_cents"`
    TotalSeats  uint32 `json:"total_seats"`
}

type updateEventReq struct {
    Title       *string `json:"title"`
    Description *string `json:"description"`
    Venue       *string `json:"venue"`
    StartsAt    *string `json:"starts_at"`
    PriceCents  *uint32 `json:"price_cents"`
}

// CreateEvent handles POST /v1/admin/events.  TotalSeats becomes the
// initial available inventory; after creation the counter only moves
// through reservations and releases.
func (h *AdminEventHandler) CreateEvent(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createEventReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Title = strings.TrimSpace(req.Title)
    req.Venue = strings.TrimSpace(req.Venue)
    if req.Title == "" || req.Venue == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and venue are required"})
    }
    if req.TotalSeats == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be positive"})
    }
    startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
    }

    e := model.Event{
        Title:          req.Title,
        Description:    req.Description,
        Venue:          req.Venue,
        StartsAt:       startsAt,
        PriceCents:     req.PriceCents,
        AvailableSeats: req.TotalSeats,
        CreatedBy:      &uid,
    }
    if err := h.Events.Create(c.Request().Context(), &e); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
    }
    return c.JSON(http.StatusCreated, toPublicEvent(e))
}

// UpdateEvent handles PATCH /v1/admin/events/:id.  Only catalog fields
// can change; the seat counter is off-limits here so the inventory
// ledger stays the sole author of availability.
func (h *AdminEventHandler) UpdateEvent(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req updateEventReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx := c.Request().Context()
    e, err := h.Events.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrEventNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    if req.Title != nil {
        e.Title = strings.TrimSpace(*req.Title)
        if e.Title == "" {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "title cannot be empty"})
        }
    }
    if req.Description != nil {
        e.Description = *req.Description
    }
    if req.Venue != nil {
        e.Venue = strings.TrimSpace(*req.Venue)
        if e.Venue == "" {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue cannot be empty"})
        }
    }
    if req.StartsAt != nil {
        startsAt, err := time.Parse(time.RFC3339, *req.StartsAt)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
        }
        e.StartsAt = startsAt
    }
    if req.PriceCents != nil {
        // Existing bookings keep their frozen totals; only future
        // reservations see the new price.
        e.PriceCents = *req.PriceCents
    }

    if err := h.Events.Update(ctx, &e); err != nil {
        switch {
        case errors.Is(err, repository.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        case errors.Is(err, repository.ErrNoChange):
            return c.JSON(http.StatusOK, toPublicEvent(e))
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update event failed"})
        }
    }
    return c.JSON(http.StatusOK, toPublicEvent(e))
}

// DeleteEvent handles DELETE /v1/admin/events/:id.  Events that have
// ever been booked cannot be removed.
func (h *AdminEventHandler) DeleteEvent(c echo.Context) error {
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Events.Delete(c.Request().Context(), id); err != nil {
        switch {
        case errors.Is(err, repository.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        case errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": "event has bookings"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
        }
    }
    return c.NoContent(http.StatusNoContent)
}
