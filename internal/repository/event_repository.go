// Package repository contains data access logic for the booking domain.
// This file holds the EventRepo, which doubles as the catalog store and
// the inventory ledger: all mutation of events.available_seats goes
// through ReserveSeatsTx/ReleaseSeatsTx, which are single atomic
// conditional updates. Callers must never read the counter, compare and
// write it back — that read-modify-write pattern oversells under
// concurrent load.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/event-booking/internal/model"
)

// ErrNoChange indicates the UPDATE attempted to set fields equal to current values.
var ErrNoChange = errors.New("no change")

// EventRepo manages persistence for events.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.  Use this method to
// obtain a *sql.DB when you need fine-grained transaction control.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, title, description, venue, starts_at, price_cents, available_seats, created_by, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
    var e model.Event
    var createdBy sql.NullInt64
    err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Venue, &e.StartsAt,
        &e.PriceCents, &e.AvailableSeats, &createdBy, &e.CreatedAt, &e.UpdatedAt)
    if err != nil {
        return model.Event{}, err
    }
    if createdBy.Valid {
        id := uint64(createdBy.Int64)
        e.CreatedBy = &id
    }
    return e, nil
}

// Create inserts a new event into the database and assigns the generated
// ID back to the event struct.  Title, venue, starts_at and price are
// required; available_seats is the initial inventory.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
    const q = `INSERT INTO events (title, description, venue, starts_at, price_cents, available_seats, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`
    var createdBy interface{}
    if e.CreatedBy != nil {
        createdBy = *e.CreatedBy
    }
    res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Venue,
        formatDBTime(e.StartsAt), e.PriceCents, e.AvailableSeats, createdBy)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    return nil
}

// GetByID returns a single event.  When no event with the given id
// exists, ErrEventNotFound is returned.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
    const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
    e, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Event{}, ErrEventNotFound
    }
    return e, err
}

// GetByIDTx is GetByID executed within the caller's transaction.  The
// settlement path uses it to freeze the unit price inside the same
// transaction that decrements availability.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
    const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
    e, err := scanEvent(tx.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Event{}, ErrEventNotFound
    }
    return e, err
}

// List returns all events ordered by start time.  When no events exist,
// an empty slice is returned.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
    const q = `SELECT ` + eventColumns + ` FROM events ORDER BY starts_at ASC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    events := make([]model.Event, 0)
    for rows.Next() {
        e, err := scanEvent(rows)
        if err != nil {
            return nil, err
        }
        events = append(events, e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return events, nil
}

// ReserveSeatsTx atomically claims count seats from the event's
// availability.  The WHERE clause performs the compare and the UPDATE
// the decrement in one statement, so two concurrent reservations that
// together exceed availability can never both succeed.  RowsAffected of
// zero means either the event does not exist or it has fewer than count
// seats left; a secondary existence probe distinguishes the two.  The
// caller owns the transaction.
func (r *EventRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, count uint32) error {
    const q = `UPDATE events SET available_seats = available_seats - ? WHERE id = ? AND available_seats >= ?`
    res, err := tx.ExecContext(ctx, q, count, eventID, count)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    var exists int
    if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&exists); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrEventNotFound
        }
        return err
    }
    return ErrInsufficientSeats
}

// ReleaseSeatsTx returns count seats to the event's availability.  It is
// called exactly once per transition to CANCELLED; the guarded status
// UPDATE on the booking is what prevents a double release.
func (r *EventRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, count uint32) error {
    const q = `UPDATE events SET available_seats = available_seats + ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, count, eventID)
    return err
}

// Update modifies an event's catalog fields.  Availability is not
// touched here; inventory changes only happen through reserve/release.
// It returns ErrEventNotFound when the row does not exist and
// ErrNoChange when the values already match.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
    const q = `UPDATE events SET title = ?, description = ?, venue = ?, starts_at = ?, price_cents = ? WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Venue,
        formatDBTime(e.StartsAt), e.PriceCents, e.ID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var exists int
        if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, e.ID).Scan(&exists); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return ErrEventNotFound
            }
            return err
        }
        return ErrNoChange
    }
    return nil
}

// Delete removes an event from the catalog.  Events that already have
// bookings cannot be deleted; ErrConflict is returned instead so the
// handler can respond with 409.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
    var bookings int
    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE event_id = ?`, id).Scan(&bookings); err != nil {
        return err
    }
    if bookings > 0 {
        return ErrConflict
    }
    res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrEventNotFound
    }
    return nil
}

// AvailableSeats reads the current availability counter.  Intended for
// display and tests only; settlement logic never bases decisions on a
// value read outside the reserving transaction.
func (r *EventRepo) AvailableSeats(ctx context.Context, id uint64) (uint32, error) {
    var n uint32
    err := r.db.QueryRowContext(ctx, `SELECT available_seats FROM events WHERE id = ?`, id).Scan(&n)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrEventNotFound
    }
    return n, err
}

// formatDBTime renders a time in the DB's DATETIME layout (UTC).
func formatDBTime(t time.Time) string {
    return t.UTC().Format("2006-01-02 15:04:05")
}
