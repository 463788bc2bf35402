// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the settlement service to distinguish between different
// failure scenarios. For example, ErrForbidden indicates that the
// current user is not authorized to operate on a resource owned by
// someone else, while ErrInsufficientSeats signals that a reservation
// asked for more seats than the event has left.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an event that still has bookings. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEventNotFound indicates that no event with the requested id
// exists. Handlers should translate this into an HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrBookingNotFound indicates that no booking with the requested
// id exists.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInsufficientSeats is returned by the atomic seat reservation
// when the event does not have enough available seats left. It is
// a user-facing condition (request fewer seats or pick another
// event), not a server failure.
var ErrInsufficientSeats = errors.New("insufficient seats")

// ErrInvalidBookingState is returned when a state transition is
// attempted on a booking that is not in the required source state,
// e.g. capturing a CANCELLED booking or cancelling one that is
// already CONFIRMED. The guarded UPDATE that enforces this is what
// makes capture and expiry idempotent.
var ErrInvalidBookingState = errors.New("invalid booking state")
