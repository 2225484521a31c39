package scheduler

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/iliyamo/table-reservation/internal/model"
)

// PickUnits chooses need units from free, lowest id first.  It returns a
// *CapacityError when there are not enough free units.  free is not
// modified.
func PickUnits(free []model.TableUnit, need int) ([]model.TableUnit, error) {
	if need <= 0 {
		return nil, invalidf("units required must be positive, got %d", need)
	}
	if len(free) < need {
		return nil, &CapacityError{Needed: need, Free: len(free)}
	}
	sorted := make([]model.TableUnit, len(free))
	copy(sorted, free)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted[:need], nil
}

// CheckIn binds a RESERVED reservation to free tables of its class when
// the clock is inside [start - lead, end].  Units move AVAILABLE ->
// OCCUPIED by compare-and-swap and the reservation becomes CHECKED_IN.
// With too few free tables nothing changes and a *CapacityError is
// returned.  Only staff may check guests in.
func (s *Scheduler) CheckIn(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	var checkedIn *model.Reservation
	err := s.withRetry(ctx, "check-in", func() error {
		cur, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		return s.locked(ctx, UnitsLockKey(cur.ClassID), func() error {
			return s.store.InClass(ctx, cur.ClassID, func(tx Tx) error {
				r, err := tx.GetReservation(ctx, id)
				if err != nil {
					return err
				}
				if r.ClassID != cur.ClassID {
					return classMoved(id, cur.ClassID)
				}
				if r.Status != model.StatusReserved {
					return ErrInvalidTransition
				}
				now := s.clock.Now()
				if now.Before(r.StartsAt.Add(-s.lead)) || now.After(r.EndsAt) {
					return ErrCheckInWindow
				}
				free, err := tx.ListUnits(ctx, r.ClassID, model.UnitAvailable)
				if err != nil {
					return err
				}
				picked, err := PickUnits(free, r.UnitsRequired)
				if err != nil {
					return err
				}
				ids := make([]uint64, 0, len(picked))
				for _, u := range picked {
					if err := tx.SetUnitState(ctx, u.ID, model.UnitAvailable, model.UnitOccupied); err != nil {
						return err
					}
					ids = append(ids, u.ID)
				}
				r.AssignedUnitIDs = ids
				r.Status = model.StatusCheckedIn
				r.UpdatedAt = now.UTC()
				if err := tx.UpdateReservation(ctx, r); err != nil {
					return err
				}
				checkedIn = r
				return nil
			})
		})
	})
	if err != nil {
		s.log.Info("check-in failed", zap.Uint64("reservation_id", id), zap.Error(err))
		return nil, err
	}
	s.log.Info("reservation checked in", append(reservationFields(checkedIn), zap.Uint64s("unit_ids", checkedIn.AssignedUnitIDs))...)
	s.publish(ctx, model.EventReservationCheckedIn, checkedIn)
	return checkedIn, nil
}

// Complete closes a CHECKED_IN reservation and returns its tables to the
// free pool.
func (s *Scheduler) Complete(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	var done *model.Reservation
	err := s.withRetry(ctx, "complete", func() error {
		cur, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		return s.locked(ctx, UnitsLockKey(cur.ClassID), func() error {
			return s.store.InClass(ctx, cur.ClassID, func(tx Tx) error {
				r, err := tx.GetReservation(ctx, id)
				if err != nil {
					return err
				}
				if r.ClassID != cur.ClassID {
					return classMoved(id, cur.ClassID)
				}
				if r.Status != model.StatusCheckedIn {
					return ErrInvalidTransition
				}
				for _, uid := range r.AssignedUnitIDs {
					if err := tx.SetUnitState(ctx, uid, model.UnitOccupied, model.UnitAvailable); err != nil {
						return err
					}
				}
				r.Status = model.StatusDone
				r.UpdatedAt = s.clock.Now().UTC()
				if err := tx.UpdateReservation(ctx, r); err != nil {
					return err
				}
				done = r
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation completed", reservationFields(done)...)
	s.publish(ctx, model.EventReservationCompleted, done)
	return done, nil
}
