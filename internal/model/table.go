package model

import "time"

// UnitState is the occupancy state of a physical table.
type UnitState string

const (
	UnitAvailable UnitState = "AVAILABLE"
	UnitOccupied  UnitState = "OCCUPIED"
)

// Valid reports whether s is a known unit state.
func (s UnitState) Valid() bool {
	return s == UnitAvailable || s == UnitOccupied
}

// TableClass groups interchangeable physical tables that share a seat
// count and a table kind.  Reservations are booked against a class, not
// against a specific table; concrete tables are only bound at check-in.
//
// Fields:
//  ID         – primary key identifier.
//  SeatCount  – seats offered by one unit of the class.
//  Kind       – table kind (e.g. STANDARD, BOOTH, TERRACE).
//  Capacity   – number of physical units belonging to the class.  This is
//               derived from table_units and never stored.
//  Combinable – whether several units may be pushed together for one party.
//  PriceCents – deposit a reservation of this class must cover.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type TableClass struct {
	ID         uint64    `json:"id"`          // table_classes.id
	SeatCount  int       `json:"seat_count"`  // table_classes.seat_count
	Kind       string    `json:"kind"`        // table_classes.table_kind
	Capacity   int       `json:"capacity"`    // COUNT(table_units)
	Combinable bool      `json:"combinable"`  // table_classes.combinable
	PriceCents uint32    `json:"price_cents"` // table_classes.price_cents
	CreatedAt  time.Time `json:"-"`           // table_classes.created_at
	UpdatedAt  time.Time `json:"-"`           // table_classes.updated_at
}

// TableUnit is one physical table.  Its state is only changed by the
// check-in allocator (AVAILABLE -> OCCUPIED) and by completing a
// reservation (OCCUPIED -> AVAILABLE).
type TableUnit struct {
	ID        uint64    `json:"id"`       // table_units.id
	ClassID   uint64    `json:"class_id"` // table_units.class_id
	Label     string    `json:"label"`    // table_units.label, e.g. T12
	State     UnitState `json:"state"`    // table_units.state
	CreatedAt time.Time `json:"-"`        // table_units.created_at
	UpdatedAt time.Time `json:"-"`        // table_units.updated_at
}
