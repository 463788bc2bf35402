package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/event-booking/internal/model"
)

// PaymentRepo persists capture records.  A payment row is written
// exactly once, inside the settlement transaction that also flips the
// booking to CONFIRMED; the UNIQUE constraint on booking_id backs up
// the state machine guard.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts the payment record within the caller's transaction
// and populates the generated ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
    const q = `INSERT INTO payments (booking_id, provider_txn_id, provider_status, amount_cents) VALUES (?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, p.BookingID, p.ProviderTxnID, p.ProviderStatus, p.AmountCents)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    return nil
}

const paymentColumns = `id, booking_id, provider_txn_id, provider_status, amount_cents, created_at`

// GetByBooking returns the payment for a booking, or sql.ErrNoRows when
// the booking has not been settled.
func (r *PaymentRepo) GetByBooking(ctx context.Context, bookingID uint64) (model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ?`
    var p model.Payment
    err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
        &p.ID, &p.BookingID, &p.ProviderTxnID, &p.ProviderStatus, &p.AmountCents, &p.CreatedAt)
    return p, err
}

// GetByBookingTx is GetByBooking inside the caller's transaction.  The
// idempotent duplicate-capture path reads the existing record here.
func (r *PaymentRepo) GetByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ?`
    var p model.Payment
    err := tx.QueryRowContext(ctx, q, bookingID).Scan(
        &p.ID, &p.BookingID, &p.ProviderTxnID, &p.ProviderStatus, &p.AmountCents, &p.CreatedAt)
    return p, err
}
