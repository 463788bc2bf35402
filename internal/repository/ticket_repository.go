package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/event-booking/internal/model"
)

// ErrTicketNotFound indicates that no ticket with the requested number
// exists.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepo provides data access to the tickets table.  Tickets are
// only ever inserted by the issuer, in one batch, inside the settlement
// transaction; there is deliberately no update or delete method.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateBatchTx inserts multiple ticket rows in a single statement
// within the provided transaction.  Passing an empty slice has no
// effect and returns nil.  The generated IDs are not read back; tickets
// are addressed by their unique number.
func (r *TicketRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
    if len(tickets) == 0 {
        return nil
    }
    query := `INSERT INTO tickets (booking_id, ticket_number, qr_payload) VALUES `
    args := make([]interface{}, 0, len(tickets)*3)
    for i, t := range tickets {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?)"
        args = append(args, t.BookingID, t.Number, t.QRPayload)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// CountByBookingTx returns the number of tickets already issued for a
// booking, read inside the caller's transaction.  The issuer uses this
// as its exactly-once guard.
func (r *TicketRepo) CountByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error) {
    var n int
    err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE booking_id = ?`, bookingID).Scan(&n)
    return n, err
}

const ticketColumns = `id, booking_id, ticket_number, qr_payload, issued_at`

func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
    defer rows.Close()
    var tickets []model.Ticket
    for rows.Next() {
        var t model.Ticket
        if err := rows.Scan(&t.ID, &t.BookingID, &t.Number, &t.QRPayload, &t.IssuedAt); err != nil {
            return nil, err
        }
        tickets = append(tickets, t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return tickets, nil
}

// ListByBooking returns all tickets issued for a booking ordered by id.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ? ORDER BY id ASC`
    rows, err := r.db.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    return scanTickets(rows)
}

// ListByBookingTx is ListByBooking inside the caller's transaction.
func (r *TicketRepo) ListByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ? ORDER BY id ASC`
    rows, err := tx.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    return scanTickets(rows)
}

// GetByNumber returns a single ticket by its opaque number.  Used by
// the public QR endpoint; ErrTicketNotFound maps to 404.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number = ?`
    var t model.Ticket
    err := r.db.QueryRowContext(ctx, q, number).Scan(&t.ID, &t.BookingID, &t.Number, &t.QRPayload, &t.IssuedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Ticket{}, ErrTicketNotFound
    }
    return t, err
}
