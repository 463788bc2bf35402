package utils

import (
    "fmt"

    qrcode "github.com/skip2/go-qrcode"
)

// TicketQRPayload builds the string encoded into a ticket's QR code.
// The encoding is deterministic over the ticket number, event title and
// user identity, so re-rendering a ticket always yields the same image.
// The ticket number itself is a random UUID, so the payload cannot be
// forged by guessing booking ids or counting sequences.
func TicketQRPayload(ticketNumber, eventTitle, userEmail string) string {
    return fmt.Sprintf("ticket:%s|event:%s|user:%s", ticketNumber, eventTitle, userEmail)
}

// RenderQR renders a payload into PNG bytes.  It is a pure function of
// its input: no state, no side effects.
func RenderQR(payload string) ([]byte, error) {
    return qrcode.Encode(payload, qrcode.Medium, 256)
}
