package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Candidate is a reservation window under consideration, either a new
// booking or the target state of an edit.
type Candidate struct {
	ClassID   uint64    `json:"class_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	PartySize int       `json:"party_size"`
}

// normalized drops precision below a microsecond, the resolution the
// store keeps.
func (c Candidate) normalized() Candidate {
	c.StartsAt = c.StartsAt.Truncate(time.Microsecond)
	c.EndsAt = c.EndsAt.Truncate(time.Microsecond)
	return c
}

func (c Candidate) check() error {
	if c.ClassID == 0 {
		return invalidf("class_id is required")
	}
	if c.PartySize <= 0 {
		return invalidf("party size must be positive, got %d", c.PartySize)
	}
	if c.StartsAt.IsZero() || c.EndsAt.IsZero() {
		return invalidf("start and end times are required")
	}
	if !c.StartsAt.Before(c.EndsAt) {
		return invalidf("start must be before end")
	}
	return nil
}

// Decision is the outcome of validating a candidate.
type Decision struct {
	Accepted      bool                 `json:"accepted"`
	UnitsRequired int                  `json:"units_required"`
	Conflicts     []model.BusyInterval `json:"conflicts,omitempty"`
}

// Err returns nil for an accepted decision and a *CapacityError otherwise.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &CapacityError{Conflicts: d.Conflicts, Needed: d.UnitsRequired}
}

// SizeDemand returns the number of tables of classID needed for partySize.
func (s *Scheduler) SizeDemand(ctx context.Context, partySize int, classID uint64) (int, error) {
	if partySize <= 0 {
		return 0, invalidf("party size must be positive, got %d", partySize)
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return 0, err
	}
	return SizeDemand(partySize, *class, s.ceiling)
}

// ListClasses returns the table catalog ordered by id.
func (s *Scheduler) ListClasses(ctx context.Context) ([]model.TableClass, error) {
	return s.store.ListClasses(ctx)
}

// FeasibleClasses lists the classes that can seat partySize, best fit first.
func (s *Scheduler) FeasibleClasses(ctx context.Context, partySize int) ([]FeasibleClass, error) {
	if partySize <= 0 {
		return nil, invalidf("party size must be positive, got %d", partySize)
	}
	classes, err := s.store.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	return Feasible(partySize, classes, s.ceiling)
}

// GetBusyIntervals returns the saturated windows of classID on the
// calendar day containing date, for a candidate needing need units
// (need < 1 is treated as 1).  excludeID, when non-zero, leaves that
// reservation out of the sweep.
func (s *Scheduler) GetBusyIntervals(ctx context.Context, classID uint64, date time.Time, excludeID uint64, need int) ([]model.BusyInterval, error) {
	if date.IsZero() {
		return nil, invalidf("date is required")
	}
	class, err := s.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	from := s.dayStart(date)
	to := from.AddDate(0, 0, 1)
	rs, err := s.store.ListActiveReservations(ctx, class.ID, from, to)
	if err != nil {
		return nil, err
	}
	return BusyIntervals(BookingsFrom(rs), class.Capacity, need, excludeID), nil
}

// ValidateNewReservation checks a candidate against the current ledger
// without persisting anything.  A rejected candidate is reported through
// the Decision, not through the error.
func (s *Scheduler) ValidateNewReservation(ctx context.Context, c Candidate) (Decision, error) {
	c = c.normalized()
	if err := c.check(); err != nil {
		return Decision{}, err
	}
	class, units, err := s.size(ctx, s.store, c)
	if err != nil {
		return Decision{}, err
	}
	return s.evaluate(ctx, s.store, class, c, units, 0)
}

// ValidateEditedReservation checks the target state of an edit of
// reservation id without persisting anything.  The reservation's own
// footprint is excluded and the edit ceiling is enforced first.
func (s *Scheduler) ValidateEditedReservation(ctx context.Context, actor model.Actor, id uint64, c Candidate) (Decision, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return Decision{}, err
	}
	if err := authorize(actor, current); err != nil {
		return Decision{}, err
	}
	if err := s.editable(current); err != nil {
		return Decision{}, err
	}
	if c.ClassID == 0 {
		c.ClassID = current.ClassID
	}
	c = c.normalized()
	if err := c.check(); err != nil {
		return Decision{}, err
	}
	class, units, err := s.size(ctx, s.store, c)
	if err != nil {
		return Decision{}, err
	}
	return s.evaluate(ctx, s.store, class, c, units, id)
}

// size resolves the candidate's class and the units the party needs.
func (s *Scheduler) size(ctx context.Context, inv Inventory, c Candidate) (*model.TableClass, int, error) {
	class, err := inv.GetClass(ctx, c.ClassID)
	if err != nil {
		return nil, 0, err
	}
	units, err := SizeDemand(c.PartySize, *class, s.ceiling)
	if err != nil {
		return nil, 0, err
	}
	return class, units, nil
}

// evaluate runs the availability sweep for the candidate's class and
// checks the candidate window against it.
func (s *Scheduler) evaluate(ctx context.Context, ledger Ledger, class *model.TableClass, c Candidate, units int, excludeID uint64) (Decision, error) {
	if units > class.Capacity {
		return Decision{
			UnitsRequired: units,
			Conflicts:     []model.BusyInterval{{Start: c.StartsAt.UTC(), End: c.EndsAt.UTC()}},
		}, nil
	}
	from := s.dayStart(c.StartsAt)
	to := from.AddDate(0, 0, 1)
	if c.EndsAt.After(to) {
		to = c.EndsAt
	}
	rs, err := ledger.ListActiveReservations(ctx, class.ID, from, to)
	if err != nil {
		return Decision{}, err
	}
	busy := BusyIntervals(BookingsFrom(rs), class.Capacity, units, excludeID)
	conflicts := Conflicts(busy, c.StartsAt, c.EndsAt)
	return Decision{Accepted: len(conflicts) == 0, UnitsRequired: units, Conflicts: conflicts}, nil
}

// editable enforces the edit ceiling before any other check, then the
// statuses an edit may start from.
func (s *Scheduler) editable(r *model.Reservation) error {
	if r.EditCount >= s.maxEdits {
		return ErrEditLimitReached
	}
	if r.Status != model.StatusReserved && r.Status != model.StatusAvailable {
		return ErrInvalidTransition
	}
	return nil
}
