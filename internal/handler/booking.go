package handler

import (
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/payment"
    "github.com/iliyamo/event-booking/internal/repository"
    "github.com/iliyamo/event-booking/internal/service"
)

// BookingHandler exposes the booking lifecycle to customers: reserve,
// pay, cancel and list.  State transitions go through the settlement
// service; this layer only binds requests, extracts the caller and
// maps sentinel errors onto HTTP status codes.
type BookingHandler struct {
    Settlement *service.Settlement
    Bookings   *repository.BookingRepo
    Payments   *repository.PaymentRepo
    Tickets    *repository.TicketRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(settlement *service.Settlement, bookings *repository.BookingRepo, payments *repository.PaymentRepo, tickets *repository.TicketRepo) *BookingHandler {
    if settlement == nil || bookings == nil || payments == nil || tickets == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Settlement: settlement, Bookings: bookings, Payments: payments, Tickets: tickets}
}

// ----- DTOs -----

type createBookingReq struct {
    EventID   uint64 `json:"event_id"`
    SeatCount uint32 `json:"seat_count"`
}

type captureReq struct {
    OrderID string `json:"order_id"`
}

type bookingResp struct {
    ID               uint64    `json:"booking_id"`
    EventID          uint64    `json:"event_id"`
    SeatCount        uint32    `json:"seat_count"`
    TotalAmountCents uint64    `json:"total_amount_cents"`
    Status           string    `json:"status"`
    CreatedAt        time.Time `json:"created_at"`
}

type ticketResp struct {
    Number string `json:"ticket_number"`
    QRURL  string `json:"qr_url"`
}

type paymentResp struct {
    ID             uint64 `json:"payment_id"`
    ProviderTxnID  string `json:"provider_txn_id"`
    ProviderStatus string `json:"provider_status"`
    AmountCents    uint64 `json:"amount_cents"`
}

func toBookingResp(b model.Booking) bookingResp {
    return bookingResp{
        ID:               b.ID,
        EventID:          b.EventID,
        SeatCount:        b.SeatCount,
        TotalAmountCents: b.TotalAmountCents,
        Status:           b.Status,
        CreatedAt:        b.CreatedAt,
    }
}

func toTicketResps(tickets []model.Ticket) []ticketResp {
    out := make([]ticketResp, 0, len(tickets))
    for _, t := range tickets {
        out = append(out, ticketResp{
            Number: t.Number,
            QRURL:  fmt.Sprintf("/v1/tickets/%s/qr", t.Number),
        })
    }
    return out
}

// CreateBooking handles POST /v1/bookings.  A successful response
// means the seats are held: the decrement and the PENDING row were
// committed together.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createBookingReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.EventID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id is required"})
    }

    b, err := h.Settlement.CreateBooking(c.Request().Context(), userID, req.EventID, req.SeatCount)
    if err != nil {
        switch {
        case errors.Is(err, service.ErrInvalidSeatCount):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_count must be positive"})
        case errors.Is(err, repository.ErrEventNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        case errors.Is(err, repository.ErrInsufficientSeats):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough seats available"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
        }
    }
    return c.JSON(http.StatusCreated, toBookingResp(b))
}

// ListMyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookings, err := h.Bookings.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]bookingResp, 0, len(bookings))
    for _, b := range bookings {
        out = append(out, toBookingResp(b))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetBooking handles GET /v1/bookings/:id.  The response includes the
// payment and tickets when the booking is CONFIRMED.
func (h *BookingHandler) GetBooking(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }

    ctx := c.Request().Context()
    b, err := h.Bookings.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if b.UserID != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    resp := echo.Map{"booking": toBookingResp(b)}
    if b.Status == model.StatusConfirmed {
        if p, err := h.Payments.GetByBooking(ctx, b.ID); err == nil {
            resp["payment"] = paymentResp{
                ID:             p.ID,
                ProviderTxnID:  p.ProviderTxnID,
                ProviderStatus: p.ProviderStatus,
                AmountCents:    p.AmountCents,
            }
        }
        if tickets, err := h.Tickets.ListByBooking(ctx, b.ID); err == nil {
            resp["tickets"] = toTicketResps(tickets)
        }
    }
    return c.JSON(http.StatusOK, resp)
}

// CancelBooking handles DELETE /v1/bookings/:id.  Only the owner's
// PENDING bookings can be cancelled; anything else is a 409.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }

    if err := h.Settlement.CancelBooking(c.Request().Context(), userID, id); err != nil {
        switch {
        case errors.Is(err, repository.ErrBookingNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        case errors.Is(err, repository.ErrForbidden):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        case errors.Is(err, repository.ErrInvalidBookingState):
            return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not pending"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel booking failed"})
        }
    }
    return c.NoContent(http.StatusNoContent)
}

// CreateOrder handles POST /v1/bookings/:id/order.  It registers an
// order with the payment provider and returns the approval URL the
// client must redirect the payer to.
func (h *BookingHandler) CreateOrder(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }

    order, err := h.Settlement.CreateOrder(c.Request().Context(), userID, id)
    if err != nil {
        return h.settlementError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "order_id":     order.ID,
        "approval_url": order.ApprovalURL,
    })
}

// CapturePayment handles POST /v1/bookings/:id/capture.  Safe to call
// repeatedly with the same order: an already settled booking returns
// the recorded payment and tickets again.
func (h *BookingHandler) CapturePayment(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req captureReq
    if err := c.Bind(&req); err != nil || req.OrderID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id is required"})
    }

    out, err := h.Settlement.CapturePayment(c.Request().Context(), userID, id, req.OrderID)
    if err != nil {
        return h.settlementError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "payment_id": out.Payment.ID,
        "status":     out.Status,
        "payment": paymentResp{
            ID:             out.Payment.ID,
            ProviderTxnID:  out.Payment.ProviderTxnID,
            ProviderStatus: out.Payment.ProviderStatus,
            AmountCents:    out.Payment.AmountCents,
        },
        "tickets": toTicketResps(out.Tickets),
    })
}

// settlementError maps settlement and gateway sentinels onto HTTP
// responses.  Provider rejections deliberately return a generic client
// message; the raw provider body stays in the server log only.
func (h *BookingHandler) settlementError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrInvalidBookingState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not payable"})
    case errors.Is(err, payment.ErrCaptureFailed):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment was declined"})
    case errors.Is(err, payment.ErrAlreadyCaptured):
        return c.JSON(http.StatusConflict, echo.Map{"error": "order already captured, retry shortly"})
    case errors.Is(err, payment.ErrGatewayRejected):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment request rejected"})
    case errors.Is(err, payment.ErrGatewayUnavailable):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable, try again"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settlement failed"})
    }
}
