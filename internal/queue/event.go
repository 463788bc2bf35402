// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketInfo carries the data a consumer needs to render one ticket's
// QR code without querying the primary database.
type TicketInfo struct {
    Number    string `json:"ticket_number"`
    QRPayload string `json:"qr_payload"`
}

// BookingConfirmedEvent is published after the settlement transaction
// commits: the booking is CONFIRMED, the payment is recorded and the
// tickets are issued.  Publication is best-effort; a lost event never
// rolls back the settlement.
type BookingConfirmedEvent struct {
    BookingID        uint64       `json:"booking_id"`
    UserID           uint64       `json:"user_id"`
    UserEmail        string       `json:"user_email"`
    EventID          uint64       `json:"event_id"`
    EventTitle       string       `json:"event_title"`
    Venue            string       `json:"venue"`
    StartsAt         string       `json:"starts_at"`
    SeatCount        uint32       `json:"seat_count"`
    TotalAmountCents uint64       `json:"total_amount_cents"`
    ProviderTxnID    string       `json:"provider_txn_id"`
    Tickets          []TicketInfo `json:"tickets"`
    ConfirmedAt      string       `json:"confirmed_at"`
}
