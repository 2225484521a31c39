package model

// Event types published after a reservation changes state.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationEdited    = "reservation.edited"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCheckedIn = "reservation.checked_in"
	EventReservationCompleted = "reservation.completed"
)

// ReservationEvent is published when a reservation changes state.  It
// carries enough information for downstream consumers (notification,
// analytics, audit logs) to act without querying the primary database.
type ReservationEvent struct {
	Type          string   `json:"type"`
	ReservationID uint64   `json:"reservation_id"`
	UserID        uint64   `json:"user_id"`
	ClassID       uint64   `json:"class_id"`
	Status        string   `json:"status"`
	StartsAt      string   `json:"starts_at"`
	EndsAt        string   `json:"ends_at"`
	PartySize     int      `json:"party_size"`
	UnitsRequired int      `json:"units_required"`
	UnitIDs       []uint64 `json:"unit_ids,omitempty"`
	EditCount     int      `json:"edit_count"`
	OccurredAt    string   `json:"occurred_at"`
}
