package model

import "time"

// Booking status values.  PENDING is the initial state created
// together with a successful seat reservation.  CONFIRMED and
// CANCELLED are terminal: once reached, no further transition is
// allowed and any attempt fails with ErrInvalidBookingState.
const (
    StatusPending   = "PENDING"
    StatusConfirmed = "CONFIRMED"
    StatusCancelled = "CANCELLED"
)

// Booking records a user's claim on a number of seats for an
// event.  TotalAmountCents is frozen at reservation time
// (seat_count × the event price at that moment) and is not
// recomputed if the event price changes later.  Status and
// TotalAmountCents are never client-writable.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  EventID          – event being booked.
//  SeatCount        – number of seats reserved (always positive).
//  TotalAmountCents – frozen total price in cents.
//  Status           – PENDING, CONFIRMED or CANCELLED.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
    ID               uint64    // bookings.id
    UserID           uint64    // bookings.user_id
    EventID          uint64    // bookings.event_id
    SeatCount        uint32    // bookings.seat_count
    TotalAmountCents uint64    // bookings.total_amount_cents
    Status           string    // bookings.status
    CreatedAt        time.Time // bookings.created_at
    UpdatedAt        time.Time // bookings.updated_at
}
