package service

import (
    "context"
    "regexp"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/google/uuid"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-booking/internal/model"
    "github.com/iliyamo/event-booking/internal/repository"
)

func TestIssueTx_CreatesOneTicketPerSeat(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    mock.ExpectBegin()
    tx, err := db.Begin()
    require.NoError(t, err)

    mock.ExpectQuery(regexp.QuoteMeta(countTickets)).
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tickets (booking_id, ticket_number, qr_payload) VALUES (?, ?, ?),(?, ?, ?),(?, ?, ?)`)).
        WillReturnResult(sqlmock.NewResult(1, 3))

    issuer := NewTicketIssuer(repository.NewTicketRepo(db), quietLogger())
    b := model.Booking{ID: 42, SeatCount: 3}
    tickets, err := issuer.IssueTx(context.Background(), tx, b, "Go Conf", "buyer@example.com")
    require.NoError(t, err)
    require.Len(t, tickets, 3)

    seen := map[string]bool{}
    for _, tk := range tickets {
        _, err := uuid.Parse(tk.Number)
        require.NoError(t, err)
        require.False(t, seen[tk.Number], "duplicate ticket number")
        seen[tk.Number] = true
        require.True(t, strings.HasPrefix(tk.QRPayload, "ticket:"+tk.Number))
        require.Contains(t, tk.QRPayload, "event:Go Conf")
        require.Contains(t, tk.QRPayload, "user:buyer@example.com")
    }
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTx_FullSetAlreadyIssuedReturnsExisting(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    mock.ExpectBegin()
    tx, err := db.Begin()
    require.NoError(t, err)

    mock.ExpectQuery(regexp.QuoteMeta(countTickets)).
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
    mock.ExpectQuery(regexp.QuoteMeta(`FROM tickets WHERE booking_id = ?`)).
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "ticket_number", "qr_payload", "issued_at"}).
            AddRow(1, 42, "t-1", "p-1", time.Now().UTC()).
            AddRow(2, 42, "t-2", "p-2", time.Now().UTC()))

    issuer := NewTicketIssuer(repository.NewTicketRepo(db), quietLogger())
    b := model.Booking{ID: 42, SeatCount: 2}
    tickets, err := issuer.IssueTx(context.Background(), tx, b, "Go Conf", "buyer@example.com")
    require.NoError(t, err)
    require.Len(t, tickets, 2)
    require.Equal(t, "t-1", tickets[0].Number)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueTx_PartialSetIsInvariantViolation(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()
    mock.ExpectBegin()
    tx, err := db.Begin()
    require.NoError(t, err)

    mock.ExpectQuery(regexp.QuoteMeta(countTickets)).
        WithArgs(uint64(42)).
        WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

    issuer := NewTicketIssuer(repository.NewTicketRepo(db), quietLogger())
    b := model.Booking{ID: 42, SeatCount: 3}
    _, err = issuer.IssueTx(context.Background(), tx, b, "Go Conf", "buyer@example.com")
    require.ErrorIs(t, err, ErrTicketInvariant)
    require.NoError(t, mock.ExpectationsWereMet())
}
