package service

import (
    "context"
    "database/sql"
    "io"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/sirupsen/logrus"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/payment"
    "github.com/iliyamo/event-booking/internal/queue"
    "github.com/iliyamo/event-booking/internal/repository"
)

const (
    selectBookingForUpdate = `SELECT id, user_id, event_id, seat_count, total_amount_cents, status, created_at, updated_at FROM bookings WHERE id = ? FOR UPDATE`
    selectEvent            = `SELECT id, title, description, venue, starts_at, price_cents, available_seats, created_by, created_at, updated_at FROM events WHERE id = ?`
    selectUser             = `SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1`
    updateBookingStatus    = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
    reserveSeats           = `UPDATE events SET available_seats = available_seats - ? WHERE id = ? AND available_seats >= ?`
    releaseSeats           = `UPDATE events SET available_seats = available_seats + ? WHERE id = ?`
    insertPayment          = `INSERT INTO payments (booking_id, provider_txn_id, provider_status, amount_cents) VALUES (?, ?, ?, ?)`
    countTickets           = `SELECT COUNT(*) FROM tickets WHERE booking_id = ?`
    selectTickets          = `SELECT id, booking_id, ticket_number, qr_payload, issued_at FROM tickets WHERE booking_id = ? ORDER BY id ASC`
)

type fakeGateway struct {
    createFn   func(context.Context, payment.OrderRequest) (payment.Order, error)
    captureFn  func(context.Context, string) (payment.CaptureResult, error)
    createOps  int
    captureOps int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, r payment.OrderRequest) (payment.Order, error) {
    g.createOps++
    return g.createFn(ctx, r)
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (payment.CaptureResult, error) {
    g.captureOps++
    return g.captureFn(ctx, orderID)
}

func quietLogger() *logrus.Logger {
    log := logrus.New()
    log.SetOutput(io.Discard)
    return log
}

func newTestSettlement(db *sql.DB, gw Gateway, publish PublishFunc) *Settlement {
    log := quietLogger()
    tickets := repository.NewTicketRepo(db)
    return NewSettlement(
        db,
        repository.NewEventRepo(db),
        repository.NewBookingRepo(db),
        repository.NewPaymentRepo(db),
        NewTicketIssuer(tickets, log),
        repository.NewUserRepo(db),
        gw,
        publish,
        SettlementConfig{
            Currency:   "USD",
            ReturnURL:  "http://localhost/return",
            CancelURL:  "http://localhost/cancel",
            BookingTTL: 15 * time.Minute,
        },
        log,
    )
}

func bookingRows(b model.Booking) *sqlmock.Rows {
    return sqlmock.NewRows([]string{"id", "user_id", "event_id", "seat_count", "total_amount_cents", "status", "created_at", "updated_at"}).
        AddRow(b.ID, b.UserID, b.EventID, b.SeatCount, b.TotalAmountCents, b.Status, b.CreatedAt, b.UpdatedAt)
}

func eventRows(id uint64, title string, priceCents, available uint32) *sqlmock.Rows {
    now := time.Now().UTC()
    return sqlmock.NewRows([]string{"id", "title", "description", "venue", "starts_at", "price_cents", "available_seats", "created_by", "created_at", "updated_at"}).
        AddRow(id, title, "", "Main Hall", now.Add(24*time.Hour), priceCents, available, nil, now, now)
}

func userRows(id uint64, email string) *sqlmock.Rows {
    now := time.Now().UTC()
    return sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}).
        AddRow(id, email, "x", "CUSTOMER", true, now, now)
}

func pendingBooking() model.Booking {
    now := time.Now().UTC()
    return model.Booking{
        ID: 42, UserID: 3, EventID: 7, SeatCount: 2,
        TotalAmountCents: 4000, Status: model.StatusPending,
        CreatedAt: now.Add(-time.Minute), UpdatedAt: now.Add(-time.Minute),
    }
}

func TestCreateBooking_FreezesTotalFromCurrentPrice(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectEvent)).
        WithArgs(uint64(7)).
        WillReturnRows(eventRows(7, "Go Conf", 2000, 10))
    mock.ExpectExec(regexp.QuoteMeta(reserveSeats)).
        WithArgs(uint32(2), uint64(7), uint32(2)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
        WithArgs(uint64(3), uint64(7), uint32(2), uint64(4000), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(42, 1))
    mock.ExpectCommit()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    b, err := s.CreateBooking(context.Background(), 3, 7, 2)
    require.NoError(t, err)
    require.Equal(t, uint64(42), b.ID)
    require.Equal(t, uint64(4000), b.TotalAmountCents)
    require.Equal(t, model.StatusPending, b.Status)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_InsufficientSeatsRollsBack(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectEvent)).
        WithArgs(uint64(7)).
        WillReturnRows(eventRows(7, "Go Conf", 2000, 1))
    mock.ExpectExec(regexp.QuoteMeta(reserveSeats)).
        WithArgs(uint32(2), uint64(7), uint32(2)).
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM events WHERE id = ?`)).
        WithArgs(uint64(7)).
        WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
    mock.ExpectRollback()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    _, err = s.CreateBooking(context.Background(), 3, 7, 2)
    require.ErrorIs(t, err, repository.ErrInsufficientSeats)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_ZeroSeatsRejected(t *testing.T) {
    db, _, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    _, err = s.CreateBooking(context.Background(), 3, 7, 0)
    require.ErrorIs(t, err, ErrInvalidSeatCount)
}

// expectCaptureBegin scripts the first settlement transaction for a
// live PENDING booking: lock, event read, commit, then the user read.
func expectCaptureBegin(mock sqlmock.Sqlmock, b model.Booking) {
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectQuery(regexp.QuoteMeta(selectEvent)).
        WithArgs(b.EventID).
        WillReturnRows(eventRows(b.EventID, "Go Conf", 2000, 8))
    mock.ExpectCommit()
    mock.ExpectQuery(regexp.QuoteMeta(selectUser)).
        WithArgs(b.UserID).
        WillReturnRows(userRows(b.UserID, "buyer@example.com"))
}

func TestCapturePayment_SettlesAndIssuesTickets(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    expectCaptureBegin(mock, b)

    // second transaction: record payment, confirm, issue tickets
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectExec(regexp.QuoteMeta(insertPayment)).
        WithArgs(b.ID, "TXN-9", "COMPLETED", uint64(4000)).
        WillReturnResult(sqlmock.NewResult(5, 1))
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusConfirmed, b.ID, model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery(regexp.QuoteMeta(selectEvent)).
        WithArgs(b.EventID).
        WillReturnRows(eventRows(b.EventID, "Go Conf", 2000, 8))
    mock.ExpectQuery(regexp.QuoteMeta(selectUser)).
        WithArgs(b.UserID).
        WillReturnRows(userRows(b.UserID, "buyer@example.com"))
    mock.ExpectQuery(regexp.QuoteMeta(countTickets)).
        WithArgs(b.ID).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
    mock.ExpectExec(`INSERT INTO tickets`).
        WillReturnResult(sqlmock.NewResult(1, 2))
    mock.ExpectCommit()

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        return payment.CaptureResult{TransactionID: "TXN-9", Status: "COMPLETED", AmountCents: 4000}, nil
    }}

    published := 0
    publish := func(ctx context.Context, log *logrus.Logger, ev queue.BookingConfirmedEvent) error {
        published++
        require.Equal(t, uint64(42), ev.BookingID)
        require.Equal(t, "buyer@example.com", ev.UserEmail)
        require.Len(t, ev.Tickets, 2)
        return nil
    }

    s := newTestSettlement(db, gw, publish)
    out, err := s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.NoError(t, err)
    require.Equal(t, model.StatusConfirmed, out.Status)
    require.Equal(t, uint64(5), out.Payment.ID)
    require.Equal(t, "TXN-9", out.Payment.ProviderTxnID)
    require.Len(t, out.Tickets, 2)
    require.NotEqual(t, out.Tickets[0].Number, out.Tickets[1].Number)
    require.Equal(t, 1, gw.captureOps)
    require.Equal(t, 1, published)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_AlreadyConfirmedIsIdempotent(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    b.Status = model.StatusConfirmed
    now := time.Now().UTC()

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE booking_id = ?`)).
        WithArgs(b.ID).
        WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "provider_txn_id", "provider_status", "amount_cents", "created_at"}).
            AddRow(5, b.ID, "TXN-9", "COMPLETED", 4000, now))
    mock.ExpectQuery(regexp.QuoteMeta(selectTickets)).
        WithArgs(b.ID).
        WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "ticket_number", "qr_payload", "issued_at"}).
            AddRow(1, b.ID, "t-1", "p-1", now).
            AddRow(2, b.ID, "t-2", "p-2", now))
    mock.ExpectCommit()

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        t.Fatal("provider must not be contacted for a confirmed booking")
        return payment.CaptureResult{}, nil
    }}

    s := newTestSettlement(db, gw, nil)
    out, err := s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.NoError(t, err)
    require.Equal(t, model.StatusConfirmed, out.Status)
    require.Equal(t, "TXN-9", out.Payment.ProviderTxnID)
    require.Len(t, out.Tickets, 2)
    require.Equal(t, 0, gw.captureOps)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_DeclinedCancelsAndReleasesSeats(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    expectCaptureBegin(mock, b)

    // decline path: a separate transaction cancels the booking and
    // returns the seats
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, b.ID, model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(releaseSeats)).
        WithArgs(b.SeatCount, b.EventID).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        return payment.CaptureResult{}, &payment.ProviderError{
            Op: "capture_order", StatusCode: 422, Sentinel: payment.ErrCaptureFailed,
        }
    }}

    s := newTestSettlement(db, gw, nil)
    _, err = s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.ErrorIs(t, err, payment.ErrCaptureFailed)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_NotApprovedKeepsBookingPending(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    expectCaptureBegin(mock, b)
    // no further statements: a rejected capture must not cancel the
    // booking or touch the inventory

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        return payment.CaptureResult{}, &payment.ProviderError{
            Op: "capture_order", StatusCode: 422, Sentinel: payment.ErrGatewayRejected,
        }
    }}

    s := newTestSettlement(db, gw, nil)
    _, err = s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.ErrorIs(t, err, payment.ErrGatewayRejected)
    require.NotErrorIs(t, err, payment.ErrCaptureFailed)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_AlreadyCapturedReturnsSettledOutcome(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    expectCaptureBegin(mock, b)

    // the duplicate lost at the provider; on re-read the winner has
    // settled the booking in the meantime
    now := time.Now().UTC()
    confirmed := b
    confirmed.Status = model.StatusConfirmed
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(confirmed))
    mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE booking_id = ?`)).
        WithArgs(b.ID).
        WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "provider_txn_id", "provider_status", "amount_cents", "created_at"}).
            AddRow(5, b.ID, "TXN-9", "COMPLETED", 4000, now))
    mock.ExpectQuery(regexp.QuoteMeta(selectTickets)).
        WithArgs(b.ID).
        WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "ticket_number", "qr_payload", "issued_at"}).
            AddRow(1, b.ID, "t-1", "p-1", now).
            AddRow(2, b.ID, "t-2", "p-2", now))
    mock.ExpectCommit()

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        return payment.CaptureResult{}, &payment.ProviderError{
            Op: "capture_order", StatusCode: 422, Sentinel: payment.ErrAlreadyCaptured,
        }
    }}

    s := newTestSettlement(db, gw, nil)
    out, err := s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.NoError(t, err)
    require.Equal(t, model.StatusConfirmed, out.Status)
    require.Equal(t, "TXN-9", out.Payment.ProviderTxnID)
    require.Len(t, out.Tickets, 2)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_GatewayDownLeavesBookingPending(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    expectCaptureBegin(mock, b)

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        return payment.CaptureResult{}, &payment.ProviderError{
            Op: "capture_order", StatusCode: 503, Sentinel: payment.ErrGatewayUnavailable,
        }
    }}

    s := newTestSettlement(db, gw, nil)
    _, err = s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
    // no cancel, no release: the booking can be retried
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_ForbiddenForOtherUsers(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectRollback()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    _, err = s.CapturePayment(context.Background(), 99, 42, "ORDER-1")
    require.ErrorIs(t, err, repository.ErrForbidden)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapturePayment_ExpiredPendingIsLazilyCancelled(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    b.CreatedAt = time.Now().UTC().Add(-30 * time.Minute)

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, b.ID, model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(releaseSeats)).
        WithArgs(b.SeatCount, b.EventID).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    gw := &fakeGateway{captureFn: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
        t.Fatal("provider must not be contacted for an expired booking")
        return payment.CaptureResult{}, nil
    }}

    s := newTestSettlement(db, gw, nil)
    _, err = s.CapturePayment(context.Background(), 3, 42, "ORDER-1")
    require.ErrorIs(t, err, repository.ErrInvalidBookingState)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_PassesFrozenAmount(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectQuery(regexp.QuoteMeta(selectEvent)).
        WithArgs(b.EventID).
        WillReturnRows(eventRows(b.EventID, "Go Conf", 2000, 8))

    gw := &fakeGateway{createFn: func(ctx context.Context, r payment.OrderRequest) (payment.Order, error) {
        require.Equal(t, uint64(4000), r.AmountCents)
        require.Equal(t, "USD", r.Currency)
        return payment.Order{ID: "ORDER-1", ApprovalURL: "https://example.com/approve"}, nil
    }}

    s := newTestSettlement(db, gw, nil)
    order, err := s.CreateOrder(context.Background(), 3, 42)
    require.NoError(t, err)
    require.Equal(t, "ORDER-1", order.ID)
    require.Equal(t, 1, gw.createOps)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking_ReleasesSeats(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, b.ID, model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(releaseSeats)).
        WithArgs(b.SeatCount, b.EventID).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    require.NoError(t, s.CancelBooking(context.Background(), 3, 42))
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking_ConfirmedIsConflict(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    b := pendingBooking()
    b.Status = model.StatusConfirmed
    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(selectBookingForUpdate)).
        WithArgs(b.ID).
        WillReturnRows(bookingRows(b))
    mock.ExpectRollback()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    err = s.CancelBooking(context.Background(), 3, 42)
    require.ErrorIs(t, err, repository.ErrInvalidBookingState)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePending_ReapsAndReleases(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    now := time.Now().UTC()
    rows := sqlmock.NewRows([]string{"id", "user_id", "event_id", "seat_count", "total_amount_cents", "status", "created_at", "updated_at"}).
        AddRow(1, 3, 7, 2, 4000, model.StatusPending, now.Add(-20*time.Minute), now.Add(-20*time.Minute)).
        AddRow(2, 4, 8, 1, 2000, model.StatusPending, now.Add(-25*time.Minute), now.Add(-25*time.Minute))

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE status = ? AND created_at < ?`)).
        WillReturnRows(rows)
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, uint64(1), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(releaseSeats)).
        WithArgs(uint32(2), uint64(7)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, uint64(2), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(regexp.QuoteMeta(releaseSeats)).
        WithArgs(uint32(1), uint64(8)).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    n, err := s.ExpirePending(context.Background())
    require.NoError(t, err)
    require.Equal(t, 2, n)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePending_SkipsRowsThatAlreadyTransitioned(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    now := time.Now().UTC()
    rows := sqlmock.NewRows([]string{"id", "user_id", "event_id", "seat_count", "total_amount_cents", "status", "created_at", "updated_at"}).
        AddRow(1, 3, 7, 2, 4000, model.StatusPending, now.Add(-20*time.Minute), now.Add(-20*time.Minute))

    mock.ExpectBegin()
    mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE status = ? AND created_at < ?`)).
        WillReturnRows(rows)
    // a capture confirmed the booking between the list and the update:
    // zero rows, no seat release
    mock.ExpectExec(regexp.QuoteMeta(updateBookingStatus)).
        WithArgs(model.StatusCancelled, uint64(1), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectCommit()

    s := newTestSettlement(db, &fakeGateway{}, nil)
    n, err := s.ExpirePending(context.Background())
    require.NoError(t, err)
    require.Equal(t, 0, n)
    require.NoError(t, mock.ExpectationsWereMet())
}
