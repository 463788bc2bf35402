package model

import "time"

// Payment records a successful capture against the external
// payment provider.  Exactly one row exists for a CONFIRMED
// booking; PENDING and CANCELLED bookings have none.  Rows are
// immutable after insertion.
//
// Fields:
//  ID             – primary key identifier.
//  BookingID      – one-to-one reference to the settled booking.
//  ProviderTxnID  – transaction/capture id returned by the provider.
//  ProviderStatus – status string reported by the provider (e.g. COMPLETED).
//  AmountCents    – amount actually captured, in cents.
//  CreatedAt      – when the capture was recorded.
type Payment struct {
    ID             uint64    // payments.id
    BookingID      uint64    // payments.booking_id
    ProviderTxnID  string    // payments.provider_txn_id
    ProviderStatus string    // payments.provider_status
    AmountCents    uint64    // payments.amount_cents
    CreatedAt      time.Time // payments.created_at
}
