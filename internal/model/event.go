package model

import "time"

// Event represents a bookable event in the catalog.  The
// AvailableSeats counter is the single hottest shared resource in
// the system: it is only ever mutated through EventRepo's atomic
// reserve/release statements, never by reading the value and
// writing a new one back.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – event name shown in the catalog and on tickets.
//  Description    – free-form description, may be empty.
//  Venue          – where the event takes place.
//  StartsAt       – scheduled start time (UTC).
//  PriceCents     – price for a single seat in cents.
//  AvailableSeats – seats still open for reservation; never negative.
//  CreatedBy      – user that created the event (nullable for seeded rows).
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Event struct {
    ID             uint64    // events.id
    Title          string    // events.title
    Description    string    // events.description
    Venue          string    // events.venue
    StartsAt       time.Time // events.starts_at
    PriceCents     uint32    // events.price_cents
    AvailableSeats uint32    // events.available_seats
    CreatedBy      *uint64   // events.created_by (nullable)
    CreatedAt      time.Time // events.created_at
    UpdatedAt      time.Time // events.updated_at
}
