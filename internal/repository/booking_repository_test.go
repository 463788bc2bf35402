package repository

import (
    "context"
    "regexp"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-booking/internal/model"
)

func TestCreateTx_SetsIDAndPendingStatus(t *testing.T) {
    db, mock, tx := newMockTx(t)
    defer db.Close()

    mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings (user_id, event_id, seat_count, total_amount_cents, status) VALUES (?, ?, ?, ?, ?)`)).
        WithArgs(uint64(3), uint64(7), uint32(2), uint64(4000), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(42, 1))

    repo := NewBookingRepo(db)
    b := model.Booking{UserID: 3, EventID: 7, SeatCount: 2, TotalAmountCents: 4000}
    require.NoError(t, repo.CreateTx(context.Background(), tx, &b))
    require.Equal(t, uint64(42), b.ID)
    require.Equal(t, model.StatusPending, b.Status)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusTx_GuardedTransition(t *testing.T) {
    db, mock, tx := newMockTx(t)
    defer db.Close()

    mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`)).
        WithArgs(model.StatusConfirmed, uint64(42), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 1))

    repo := NewBookingRepo(db)
    err := repo.UpdateStatusTx(context.Background(), tx, 42, model.StatusPending, model.StatusConfirmed)
    require.NoError(t, err)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusTx_WrongSourceState(t *testing.T) {
    db, mock, tx := newMockTx(t)
    defer db.Close()

    // Booking already left PENDING: zero rows match and the caller
    // learns it lost the race.
    mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`)).
        WithArgs(model.StatusCancelled, uint64(42), model.StatusPending).
        WillReturnResult(sqlmock.NewResult(0, 0))

    repo := NewBookingRepo(db)
    err := repo.UpdateStatusTx(context.Background(), tx, 42, model.StatusPending, model.StatusCancelled)
    require.ErrorIs(t, err, ErrInvalidBookingState)
    require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`)).
        WithArgs(uint64(9)).
        WillReturnRows(sqlmock.NewRows([]string{"id"}))

    repo := NewBookingRepo(db)
    _, err = repo.GetByID(context.Background(), 9)
    require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListExpiredPendingTx(t *testing.T) {
    db, mock, tx := newMockTx(t)
    defer db.Close()

    now := time.Now().UTC()
    cutoff := now.Add(-15 * time.Minute)
    rows := sqlmock.NewRows([]string{"id", "user_id", "event_id", "seat_count", "total_amount_cents", "status", "created_at", "updated_at"}).
        AddRow(1, 3, 7, 2, 4000, model.StatusPending, now.Add(-20*time.Minute), now.Add(-20*time.Minute)).
        AddRow(2, 4, 7, 1, 2000, model.StatusPending, now.Add(-16*time.Minute), now.Add(-16*time.Minute))

    mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ? FOR UPDATE`)).
        WithArgs(model.StatusPending, formatDBTime(cutoff), 100).
        WillReturnRows(rows)

    repo := NewBookingRepo(db)
    expired, err := repo.ListExpiredPendingTx(context.Background(), tx, cutoff, 100)
    require.NoError(t, err)
    require.Len(t, expired, 2)
    require.Equal(t, uint64(1), expired[0].ID)
    require.Equal(t, uint32(1), expired[1].SeatCount)
    require.NoError(t, mock.ExpectationsWereMet())
}
