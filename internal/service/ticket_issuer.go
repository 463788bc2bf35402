package service

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/repository"
    "github.com/iliyamo/event-booking/internal/utils"
)

// ErrTicketInvariant signals that a booking's existing ticket count
// matches neither zero nor its seat count.  This is an internal
// invariant violation, not a user error: it is logged loudly and the
// enclosing transaction is aborted.
var ErrTicketInvariant = errors.New("ticket count does not match seat count")

// TicketIssuer creates tickets for confirmed bookings.  Issuance is
// exactly-once, keyed on the booking: the existing-ticket count is
// checked inside the same transaction that inserts the batch, so a
// retried capture (duplicate webhook) finds the tickets already there
// and creates nothing.
type TicketIssuer struct {
    tickets *repository.TicketRepo
    log     *logrus.Logger
}

// NewTicketIssuer constructs a TicketIssuer.
func NewTicketIssuer(tickets *repository.TicketRepo, log *logrus.Logger) *TicketIssuer {
    if tickets == nil {
        panic("nil ticket repository passed to NewTicketIssuer")
    }
    return &TicketIssuer{tickets: tickets, log: log}
}

// IssueTx produces exactly seat_count tickets for the booking within
// the caller's transaction.  Each ticket gets a fresh random UUID as
// its number and a deterministic QR payload derived from the number,
// the event title and the buyer's identity.
//
// When the booking already has a full set of tickets, the existing set
// is returned unchanged.  Any other non-zero count aborts with
// ErrTicketInvariant.
func (ti *TicketIssuer) IssueTx(ctx context.Context, tx *sql.Tx, b model.Booking, eventTitle, userEmail string) ([]model.Ticket, error) {
    existing, err := ti.tickets.CountByBookingTx(ctx, tx, b.ID)
    if err != nil {
        return nil, err
    }
    if existing == int(b.SeatCount) && existing > 0 {
        return ti.tickets.ListByBookingTx(ctx, tx, b.ID)
    }
    if existing != 0 {
        ti.log.WithFields(logrus.Fields{
            "booking_id": b.ID,
            "seat_count": b.SeatCount,
            "tickets":    existing,
        }).Error("ticket issuance invariant violated")
        return nil, ErrTicketInvariant
    }

    now := time.Now().UTC()
    batch := make([]model.Ticket, 0, b.SeatCount)
    for i := uint32(0); i < b.SeatCount; i++ {
        number := uuid.NewString()
        batch = append(batch, model.Ticket{
            BookingID: b.ID,
            Number:    number,
            QRPayload: utils.TicketQRPayload(number, eventTitle, userEmail),
            IssuedAt:  now,
        })
    }
    if err := ti.tickets.CreateBatchTx(ctx, tx, batch); err != nil {
        return nil, err
    }
    return batch, nil
}
