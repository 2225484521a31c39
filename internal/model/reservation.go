package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	// StatusAvailable marks a reservation that needs reconfirmation
	// (e.g. after an edit moved it to a class its deposit no longer covers).
	StatusAvailable ReservationStatus = "AVAILABLE"
	StatusReserved  ReservationStatus = "RESERVED"
	StatusCheckedIn ReservationStatus = "CHECKED_IN"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusDone      ReservationStatus = "DONE"
)

// Active reports whether a reservation in this status consumes class
// capacity.  Only active reservations take part in availability sweeps.
func (s ReservationStatus) Active() bool {
	return s == StatusReserved || s == StatusCheckedIn
}

// Reservation records a party's demand for a table class over a
// half-open time window [StartsAt, EndsAt).  Reservations are never
// deleted; cancellation is a status transition so historical load can
// still be reconstructed.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – customer the reservation belongs to.
//  ClassID         – table class being booked.
//  StartsAt        – inclusive start of the window (UTC).
//  EndsAt          – exclusive end of the window (UTC).
//  PartySize       – number of guests.
//  UnitsRequired   – tables needed for the party (demand sizing output).
//  Status          – lifecycle state.
//  EditCount       – number of accepted edits, capped by the scheduler.
//  DepositCents    – amount already paid towards the class price.
//  AssignedUnitIDs – tables bound at check-in; empty before that.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64            `json:"id"`
	UserID          uint64            `json:"user_id"`
	ClassID         uint64            `json:"class_id"`
	StartsAt        time.Time         `json:"starts_at"`
	EndsAt          time.Time         `json:"ends_at"`
	PartySize       int               `json:"party_size"`
	UnitsRequired   int               `json:"units_required"`
	Status          ReservationStatus `json:"status"`
	EditCount       int               `json:"edit_count"`
	DepositCents    uint32            `json:"deposit_cents"`
	AssignedUnitIDs []uint64          `json:"assigned_unit_ids"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// BusyInterval is a derived window [Start, End) in which the booked
// demand of a class leaves no room for a candidate.  PeakUnits is the
// highest booked demand observed inside the window.
type BusyInterval struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	PeakUnits int       `json:"peak_units"`
}

// Overlaps reports whether b intersects the half-open window [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && start.Before(b.End)
}

// Roles recognised on the caller identity.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

// Actor is the caller identity passed explicitly to every scheduler
// operation.
type Actor struct {
	UserID uint64
	Role   string
}

// IsStaff reports whether the actor may act on any reservation.
func (a Actor) IsStaff() bool { return a.Role == RoleStaff }
