package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/payment"
    "github.com/iliyamo/event-booking/internal/queue"
    "github.com/iliyamo/event-booking/internal/repository"
)

// ErrInvalidSeatCount is returned when a booking is requested with
// zero seats.
var ErrInvalidSeatCount = errors.New("seat count must be positive")

// Gateway is the slice of the payment provider client the settlement
// service depends on.  *payment.Client satisfies it; tests substitute
// a fake.
type Gateway interface {
    CreateOrder(ctx context.Context, r payment.OrderRequest) (payment.Order, error)
    CaptureOrder(ctx context.Context, orderID string) (payment.CaptureResult, error)
}

// PublishFunc delivers a booking.confirmed event to the message
// queue.  It is called after the settlement transaction commits and
// its error is logged, never propagated: the booking is already
// settled and a broker outage must not undo that.
type PublishFunc func(ctx context.Context, log *logrus.Logger, ev queue.BookingConfirmedEvent) error

// SettlementConfig carries the tunables of the settlement service.
type SettlementConfig struct {
    Currency   string        // ISO currency code used for all orders
    ReturnURL  string        // provider redirect after approval
    CancelURL  string        // provider redirect after cancellation
    BookingTTL time.Duration // how long a PENDING booking holds its seats
}

// Settlement owns the booking lifecycle: reserving seats, creating
// provider orders, capturing payments, issuing tickets and releasing
// abandoned holds.  Every state transition runs inside a database
// transaction with the booking row locked, so concurrent captures,
// cancellations and the reaper serialize on the row instead of racing.
type Settlement struct {
    db       *sql.DB
    events   *repository.EventRepo
    bookings *repository.BookingRepo
    payments *repository.PaymentRepo
    users    *repository.UserRepo
    issuer   *TicketIssuer
    gateway  Gateway
    publish  PublishFunc
    cfg      SettlementConfig
    log      *logrus.Logger
}

// NewSettlement wires the settlement service.  publish may be nil, in
// which case confirmations are not announced on the queue.
func NewSettlement(
    db *sql.DB,
    events *repository.EventRepo,
    bookings *repository.BookingRepo,
    payments *repository.PaymentRepo,
    issuer *TicketIssuer,
    users *repository.UserRepo,
    gateway Gateway,
    publish PublishFunc,
    cfg SettlementConfig,
    log *logrus.Logger,
) *Settlement {
    return &Settlement{
        db:       db,
        events:   events,
        bookings: bookings,
        payments: payments,
        users:    users,
        issuer:   issuer,
        gateway:  gateway,
        publish:  publish,
        cfg:      cfg,
        log:      log,
    }
}

// CaptureOutcome is the result of a settled (or already settled)
// capture: the recorded payment, the booking's status and the full
// ticket set.
type CaptureOutcome struct {
    Payment model.Payment
    Status  string
    Tickets []model.Ticket
}

// CreateBooking reserves seats and creates a PENDING booking in one
// transaction.  The seat decrement is conditional on availability, so
// two concurrent requests for the last seats cannot both succeed: the
// loser's transaction rolls back with ErrInsufficientSeats and the
// inventory is untouched.  The total amount is frozen from the event
// price at this moment.
func (s *Settlement) CreateBooking(ctx context.Context, userID, eventID uint64, seatCount uint32) (model.Booking, error) {
    if seatCount == 0 {
        return model.Booking{}, ErrInvalidSeatCount
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Booking{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ev, err := s.events.GetByIDTx(ctx, tx, eventID)
    if err != nil {
        return model.Booking{}, err
    }
    if err := s.events.ReserveSeatsTx(ctx, tx, eventID, seatCount); err != nil {
        return model.Booking{}, err
    }

    b := model.Booking{
        UserID:           userID,
        EventID:          eventID,
        SeatCount:        seatCount,
        TotalAmountCents: uint64(seatCount) * uint64(ev.PriceCents),
    }
    if err := s.bookings.CreateTx(ctx, tx, &b); err != nil {
        return model.Booking{}, err
    }

    if err := tx.Commit(); err != nil {
        return model.Booking{}, err
    }
    committed = true

    s.log.WithFields(logrus.Fields{
        "booking_id": b.ID,
        "event_id":   eventID,
        "user_id":    userID,
        "seats":      seatCount,
        "amount":     b.TotalAmountCents,
    }).Info("booking created")
    return b, nil
}

// CreateOrder registers a provider order for a PENDING booking and
// returns it together with the approval URL the payer must visit.
// Expired bookings are lazily cancelled here before the provider is
// ever contacted.
func (s *Settlement) CreateOrder(ctx context.Context, userID, bookingID uint64) (payment.Order, error) {
    b, err := s.bookings.GetByID(ctx, bookingID)
    if err != nil {
        return payment.Order{}, err
    }
    if b.UserID != userID {
        return payment.Order{}, repository.ErrForbidden
    }
    if b.Status == model.StatusPending && s.expired(b) {
        if err := s.expireBooking(ctx, b.ID); err != nil {
            return payment.Order{}, err
        }
        return payment.Order{}, repository.ErrInvalidBookingState
    }
    if b.Status != model.StatusPending {
        return payment.Order{}, repository.ErrInvalidBookingState
    }

    ev, err := s.events.GetByID(ctx, b.EventID)
    if err != nil {
        return payment.Order{}, err
    }

    order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
        AmountCents: b.TotalAmountCents,
        Currency:    s.cfg.Currency,
        Description: fmt.Sprintf("Booking #%d - %s (%d seats)", b.ID, ev.Title, b.SeatCount),
        ReturnURL:   s.cfg.ReturnURL,
        CancelURL:   s.cfg.CancelURL,
    })
    if err != nil {
        return payment.Order{}, err
    }

    s.log.WithFields(logrus.Fields{
        "booking_id": b.ID,
        "order_id":   order.ID,
    }).Info("provider order created")
    return order, nil
}

// CapturePayment settles a booking against an approved provider
// order.  The call is idempotent: capturing an already CONFIRMED
// booking returns the recorded payment and tickets without touching
// the provider again.
//
// The provider round-trip happens between two short transactions so
// no row lock is held during network I/O.  The second transaction
// re-checks the booking state under lock before recording anything,
// which makes concurrent duplicate captures settle exactly once.
func (s *Settlement) CapturePayment(ctx context.Context, userID, bookingID uint64, orderID string) (CaptureOutcome, error) {
    b, ev, buyer, out, done, err := s.captureBegin(ctx, userID, bookingID)
    if err != nil || done {
        return out, err
    }

    res, err := s.gateway.CaptureOrder(ctx, orderID)
    if err != nil {
        switch {
        case errors.Is(err, payment.ErrCaptureFailed):
            // Genuine decline: the hold is released right away
            // instead of waiting for the reaper.
            if cErr := s.expireBooking(ctx, b.ID); cErr != nil {
                s.log.WithError(cErr).WithField("booking_id", b.ID).
                    Error("failed to cancel booking after declined capture")
            }
        case errors.Is(err, payment.ErrAlreadyCaptured):
            // A concurrent duplicate won at the provider.  If it has
            // settled the booking, hand back its outcome.
            if _, _, _, out, done, bErr := s.captureBegin(ctx, userID, bookingID); bErr == nil && done {
                return out, nil
            }
        }
        // Any other rejection, and an unreachable provider: the
        // booking stays PENDING and the client may retry until the
        // TTL runs out.
        return CaptureOutcome{}, err
    }

    out, err = s.captureSettle(ctx, b, res)
    if err != nil {
        return CaptureOutcome{}, err
    }

    if s.publish != nil {
        s.announce(ctx, b, ev, buyer, out)
    }
    return out, nil
}

// captureBegin runs the first capture transaction: it locks the
// booking, enforces ownership and decides whether a provider call is
// needed at all.  done=true means the outcome is final without
// contacting the provider (already CONFIRMED).
func (s *Settlement) captureBegin(ctx context.Context, userID, bookingID uint64) (model.Booking, model.Event, model.User, CaptureOutcome, bool, error) {
    var (
        b     model.Booking
        ev    model.Event
        buyer model.User
        out   CaptureOutcome
    )

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return b, ev, buyer, out, false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    b, err = s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
    if err != nil {
        return b, ev, buyer, out, false, err
    }
    if b.UserID != userID {
        return b, ev, buyer, out, false, repository.ErrForbidden
    }

    switch b.Status {
    case model.StatusConfirmed:
        p, err := s.payments.GetByBookingTx(ctx, tx, b.ID)
        if err != nil {
            s.log.WithError(err).WithField("booking_id", b.ID).
                Error("confirmed booking has no payment row")
            return b, ev, buyer, out, false, err
        }
        tl, err := s.issuer.tickets.ListByBookingTx(ctx, tx, b.ID)
        if err != nil {
            return b, ev, buyer, out, false, err
        }
        if err := tx.Commit(); err != nil {
            return b, ev, buyer, out, false, err
        }
        committed = true
        out = CaptureOutcome{Payment: p, Status: model.StatusConfirmed, Tickets: tl}
        return b, ev, buyer, out, true, nil

    case model.StatusCancelled:
        return b, ev, buyer, out, false, repository.ErrInvalidBookingState

    default: // PENDING
        if s.expired(b) {
            if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.StatusPending, model.StatusCancelled); err != nil {
                return b, ev, buyer, out, false, err
            }
            if err := s.events.ReleaseSeatsTx(ctx, tx, b.EventID, b.SeatCount); err != nil {
                return b, ev, buyer, out, false, err
            }
            if err := tx.Commit(); err != nil {
                return b, ev, buyer, out, false, err
            }
            committed = true
            return b, ev, buyer, out, false, repository.ErrInvalidBookingState
        }

        ev, err = s.events.GetByIDTx(ctx, tx, b.EventID)
        if err != nil {
            return b, ev, buyer, out, false, err
        }
        if err := tx.Commit(); err != nil {
            return b, ev, buyer, out, false, err
        }
        committed = true
    }

    buyer, err = s.users.GetByID(ctx, b.UserID)
    if err != nil {
        return b, ev, buyer, out, false, err
    }
    return b, ev, buyer, out, false, nil
}

// captureSettle runs the second capture transaction after a
// successful provider capture: under a fresh row lock it records the
// payment, flips the booking to CONFIRMED and issues the tickets.  If
// a concurrent call won the race and the booking is CONFIRMED
// already, the existing payment and tickets are returned instead.
func (s *Settlement) captureSettle(ctx context.Context, b model.Booking, res payment.CaptureResult) (CaptureOutcome, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return CaptureOutcome{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    cur, err := s.bookings.GetByIDForUpdateTx(ctx, tx, b.ID)
    if err != nil {
        return CaptureOutcome{}, err
    }

    switch cur.Status {
    case model.StatusConfirmed:
        p, err := s.payments.GetByBookingTx(ctx, tx, b.ID)
        if err != nil {
            return CaptureOutcome{}, err
        }
        tl, err := s.issuer.tickets.ListByBookingTx(ctx, tx, b.ID)
        if err != nil {
            return CaptureOutcome{}, err
        }
        if err := tx.Commit(); err != nil {
            return CaptureOutcome{}, err
        }
        committed = true
        return CaptureOutcome{Payment: p, Status: model.StatusConfirmed, Tickets: tl}, nil

    case model.StatusCancelled:
        // Captured at the provider but cancelled here in the meantime
        // (reaper or explicit cancel won the race).  Money has moved
        // with no booking to show for it; flag it for manual review.
        s.log.WithFields(logrus.Fields{
            "booking_id":      b.ID,
            "provider_txn_id": res.TransactionID,
        }).Error("capture succeeded for a cancelled booking; manual reconciliation required")
        return CaptureOutcome{}, repository.ErrInvalidBookingState
    }

    amount := res.AmountCents
    if amount == 0 {
        amount = b.TotalAmountCents
    }
    p := model.Payment{
        BookingID:      b.ID,
        ProviderTxnID:  res.TransactionID,
        ProviderStatus: res.Status,
        AmountCents:    amount,
    }
    if err := s.payments.CreateTx(ctx, tx, &p); err != nil {
        return CaptureOutcome{}, err
    }
    if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.StatusPending, model.StatusConfirmed); err != nil {
        return CaptureOutcome{}, err
    }

    ev, err := s.events.GetByIDTx(ctx, tx, b.EventID)
    if err != nil {
        return CaptureOutcome{}, err
    }
    buyer, err := s.users.GetByID(ctx, b.UserID)
    if err != nil {
        return CaptureOutcome{}, err
    }
    tl, err := s.issuer.IssueTx(ctx, tx, b, ev.Title, buyer.Email)
    if err != nil {
        return CaptureOutcome{}, err
    }

    if err := tx.Commit(); err != nil {
        return CaptureOutcome{}, err
    }
    committed = true

    s.log.WithFields(logrus.Fields{
        "booking_id":      b.ID,
        "provider_txn_id": p.ProviderTxnID,
        "amount":          p.AmountCents,
        "tickets":         len(tl),
    }).Info("booking settled")
    return CaptureOutcome{Payment: p, Status: model.StatusConfirmed, Tickets: tl}, nil
}

// announce publishes booking.confirmed after the settlement commit.
func (s *Settlement) announce(ctx context.Context, b model.Booking, ev model.Event, buyer model.User, out CaptureOutcome) {
    infos := make([]queue.TicketInfo, 0, len(out.Tickets))
    for _, t := range out.Tickets {
        infos = append(infos, queue.TicketInfo{Number: t.Number, QRPayload: t.QRPayload})
    }
    msg := queue.BookingConfirmedEvent{
        BookingID:        b.ID,
        UserID:           b.UserID,
        UserEmail:        buyer.Email,
        EventID:          ev.ID,
        EventTitle:       ev.Title,
        Venue:            ev.Venue,
        StartsAt:         ev.StartsAt.UTC().Format(time.RFC3339),
        SeatCount:        b.SeatCount,
        TotalAmountCents: out.Payment.AmountCents,
        ProviderTxnID:    out.Payment.ProviderTxnID,
        Tickets:          infos,
        ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
    }
    if err := s.publish(ctx, s.log, msg); err != nil {
        s.log.WithError(err).WithField("booking_id", b.ID).
            Warn("failed to publish booking.confirmed")
    }
}

// CancelBooking cancels the caller's own PENDING booking and returns
// its seats to the event inventory in the same transaction.
func (s *Settlement) CancelBooking(ctx context.Context, userID, bookingID uint64) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
    if err != nil {
        return err
    }
    if b.UserID != userID {
        return repository.ErrForbidden
    }
    if b.Status != model.StatusPending {
        return repository.ErrInvalidBookingState
    }
    if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.StatusPending, model.StatusCancelled); err != nil {
        return err
    }
    if err := s.events.ReleaseSeatsTx(ctx, tx, b.EventID, b.SeatCount); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true

    s.log.WithFields(logrus.Fields{
        "booking_id": b.ID,
        "user_id":    userID,
    }).Info("booking cancelled")
    return nil
}

// ExpirePending cancels PENDING bookings older than the TTL and
// releases their seats.  It returns the number of bookings reaped.
// The expired rows are locked for the duration of the transaction,
// so a capture racing the reaper either settles first (and the
// guarded status update here skips the row) or loses the row lock
// and finds the booking CANCELLED.
func (s *Settlement) ExpirePending(ctx context.Context) (int, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    cutoff := time.Now().UTC().Add(-s.cfg.BookingTTL)
    expired, err := s.bookings.ListExpiredPendingTx(ctx, tx, cutoff, 100)
    if err != nil {
        return 0, err
    }

    reaped := 0
    for _, b := range expired {
        err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.StatusPending, model.StatusCancelled)
        if errors.Is(err, repository.ErrInvalidBookingState) {
            continue
        }
        if err != nil {
            return 0, err
        }
        if err := s.events.ReleaseSeatsTx(ctx, tx, b.EventID, b.SeatCount); err != nil {
            return 0, err
        }
        reaped++
    }

    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true

    if reaped > 0 {
        s.log.WithField("count", reaped).Info("expired pending bookings reaped")
    }
    return reaped, nil
}

// expired reports whether a PENDING booking has outlived its TTL.
func (s *Settlement) expired(b model.Booking) bool {
    return time.Since(b.CreatedAt) > s.cfg.BookingTTL
}

// expireBooking cancels a single PENDING booking and releases its
// seats.  A booking that already left PENDING is left alone.
func (s *Settlement) expireBooking(ctx context.Context, bookingID uint64) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    b, err := s.bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
    if err != nil {
        return err
    }
    if b.Status != model.StatusPending {
        return nil
    }
    if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.StatusPending, model.StatusCancelled); err != nil {
        return err
    }
    if err := s.events.ReleaseSeatsTx(ctx, tx, b.EventID, b.SeatCount); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
