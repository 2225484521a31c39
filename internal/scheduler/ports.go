package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Ledger reads and writes reservations.
type Ledger interface {
	// ListActiveReservations returns RESERVED and CHECKED_IN reservations
	// of classID whose window intersects [from, to).
	ListActiveReservations(ctx context.Context, classID uint64, from, to time.Time) ([]model.Reservation, error)
	// GetReservation returns ErrReservationNotFound when id is unknown.
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	// InsertReservation populates the generated ID and timestamps.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
}

// Inventory reads table classes and units and changes unit state.
type Inventory interface {
	// GetClass returns ErrUnknownClass when id is unknown.
	GetClass(ctx context.Context, id uint64) (*model.TableClass, error)
	ListClasses(ctx context.Context) ([]model.TableClass, error)
	// ListUnits returns the units of classID in state, ordered by id.
	ListUnits(ctx context.Context, classID uint64, state model.UnitState) ([]model.TableUnit, error)
	// SetUnitState moves a unit from one state to another and returns
	// ErrConcurrencyConflict when the unit is not in state from.
	SetUnitState(ctx context.Context, unitID uint64, from, to model.UnitState) error
}

// Tx is a unit of work over the ledger and inventory.
type Tx interface {
	Ledger
	Inventory
}

// Store is the persistence boundary.  Reads outside InClass are not
// isolated; InClass runs fn atomically and serialized with every other
// InClass call on the same class.  An error from fn rolls back all of
// its writes.  Reads of a reservation inside fn are only stable while
// the reservation's class is held, so the scheduler writes a reservation
// only under its current class (and, for a class change, the target
// class too) and re-checks the class after reading it.
type Store interface {
	Tx
	InClass(ctx context.Context, classID uint64, fn func(tx Tx) error) error
}

// Locker hands out mutual exclusion on string keys.  Acquire blocks until
// the key is free or ctx is done, in which case ctx.Err() is returned.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Clock abstracts wall time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the real UTC time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// Publisher delivers reservation events to downstream consumers.
// Failures are logged by the scheduler and never fail the operation.
type Publisher interface {
	Publish(ctx context.Context, ev model.ReservationEvent) error
}
