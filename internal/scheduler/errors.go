// Package scheduler implements table-capacity reservation scheduling:
// demand sizing, busy-window computation, reservation validation and
// check-in allocation.  Sentinel errors in this file let the transport
// layer tell business outcomes (capacity, edit limit) apart from input
// problems, transient contention and store failures.
package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ErrInputInvalid is returned for malformed requests: non-positive party
// size, empty or inverted windows, unknown classes.  These are rejected
// before the ledger is read and are never retried.
var ErrInputInvalid = errors.New("invalid input")

// ErrUnknownClass is returned when a table class does not exist.
var ErrUnknownClass = fmt.Errorf("%w: unknown table class", ErrInputInvalid)

// ErrCheckInWindow is returned when check-in is attempted outside
// [start - lead, end].
var ErrCheckInWindow = fmt.Errorf("%w: outside check-in window", ErrInputInvalid)

// ErrNoFeasibleClass signals that the party cannot be seated in the
// requested class (too many units, or the class cannot be combined).
var ErrNoFeasibleClass = errors.New("no feasible table class")

// ErrCapacityExceeded is the business outcome for saturated windows and
// for check-ins that find too few free tables.  Use errors.As with
// *CapacityError to get the conflicting windows.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrEditLimitReached is returned when a reservation has used all its edits.
var ErrEditLimitReached = errors.New("edit limit reached")

// ErrConcurrencyConflict is returned on lock or transaction contention.
// It is transient and the scheduler retries it a bounded number of times.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrReservationNotFound is returned when a reservation lookup yields nothing.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrForbidden is returned when a customer acts on someone else's reservation.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTransition is returned when the reservation status does not
// allow the requested operation.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInsufficientDeposit is returned when confirming a reservation whose
// deposit does not cover the class price.
var ErrInsufficientDeposit = errors.New("deposit does not cover class price")

// CapacityError carries the details of a capacity rejection.  Conflicts is
// set by the validator; Needed and Free are set by the check-in allocator.
type CapacityError struct {
	Conflicts []model.BusyInterval
	Needed    int
	Free      int
}

func (e *CapacityError) Error() string {
	if len(e.Conflicts) == 0 {
		return fmt.Sprintf("%s: %d tables needed, %d free", ErrCapacityExceeded, e.Needed, e.Free)
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.Start.UTC().Format(time.RFC3339)+"/"+c.End.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: overlaps %s", ErrCapacityExceeded, strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrCapacityExceeded) hold for *CapacityError.
func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputInvalid, fmt.Sprintf(format, args...))
}
