package model

import "time"

// Ticket is a machine-verifiable admission token.  A CONFIRMED
// booking has exactly seat_count tickets, created in one batch the
// instant the booking is confirmed and never added to or deleted
// afterwards.  Number is a random UUID so it cannot be guessed
// from the booking id or a sequence.  QRPayload is derived
// deterministically from the ticket number, event title and user
// identity, so the same ticket always renders the same code.
//
// Fields:
//  ID        – primary key identifier.
//  BookingID – booking this ticket belongs to.
//  Number    – globally unique, opaque ticket number.
//  QRPayload – deterministic string encoded into the QR image.
//  IssuedAt  – issuance timestamp.
type Ticket struct {
    ID        uint64    // tickets.id
    BookingID uint64    // tickets.booking_id
    Number    string    // tickets.ticket_number
    QRPayload string    // tickets.qr_payload
    IssuedAt  time.Time // tickets.issued_at
}
