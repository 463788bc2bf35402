package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/event-booking/internal/model"
)

// BookingRepo owns the booking lifecycle.  Status is only ever changed
// through UpdateStatusTx, whose WHERE clause names the required source
// state; a transition attempted from the wrong state affects zero rows
// and surfaces as ErrInvalidBookingState instead of silently clobbering
// a terminal status.  All timestamp fields are stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, event_id, seat_count, total_amount_cents, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
    var b model.Booking
    err := row.Scan(&b.ID, &b.UserID, &b.EventID, &b.SeatCount,
        &b.TotalAmountCents, &b.Status, &b.CreatedAt, &b.UpdatedAt)
    return b, err
}

// CreateTx inserts a new PENDING booking within the scope of an existing
// transaction.  It populates the generated ID on the provided booking
// and returns any error from the database.  The caller must commit or
// rollback the transaction — creation only ever happens alongside the
// seat reservation, inside the same transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings (user_id, event_id, seat_count, total_amount_cents, status) VALUES (?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.SeatCount, b.TotalAmountCents, model.StatusPending)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    b.Status = model.StatusPending
    return nil
}

// GetByID returns a booking by id.  ErrBookingNotFound is returned when
// no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Booking{}, ErrBookingNotFound
    }
    return b, err
}

// GetByIDForUpdateTx loads a booking under a row lock.  Concurrent
// settlement attempts on the same booking serialize on this lock: the
// second caller blocks until the first commits and then observes the
// terminal status.  ErrBookingNotFound is returned when no row exists.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
    b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Booking{}, ErrBookingNotFound
    }
    return b, err
}

// UpdateStatusTx performs a guarded state transition from one status to
// another.  The source status is part of the WHERE clause, so the
// transition happens at most once even when two callers race; the loser
// gets ErrInvalidBookingState.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
    const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
    res, err := tx.ExecContext(ctx, q, to, id, from)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrInvalidBookingState
    }
    return nil
}

// ListByUser returns all bookings for a user ordered newest first.
// When none exist, an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    bookings := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        bookings = append(bookings, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return bookings, nil
}

// ListExpiredPendingTx returns PENDING bookings created before the
// cutoff, locked for the caller's transaction so two reaper runs do not
// process the same rows.  The limit bounds each sweep.
func (r *BookingRepo) ListExpiredPendingTx(ctx context.Context, tx *sql.Tx, cutoff time.Time, limit int) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ? FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, model.StatusPending, formatDBTime(cutoff), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var bookings []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        bookings = append(bookings, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return bookings, nil
}
