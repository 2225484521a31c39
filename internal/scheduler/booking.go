package scheduler

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/iliyamo/table-reservation/internal/model"
)

// CreateRequest is a booking request.  UserID is honoured only for staff
// booking on behalf of a guest; customers always book for themselves.
type CreateRequest struct {
	Candidate
	UserID       uint64 `json:"user_id,omitempty"`
	DepositCents uint32 `json:"deposit_cents"`
}

// Create validates the request and persists it in RESERVED state.  The
// ledger read and the insert run under the (class, day) lock inside one
// store transaction.  A saturated window yields a *CapacityError.
func (s *Scheduler) Create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Reservation, error) {
	req.Candidate = req.Candidate.normalized()
	if err := req.check(); err != nil {
		return nil, err
	}
	if _, _, err := s.size(ctx, s.store, req.Candidate); err != nil {
		return nil, err
	}
	owner := actor.UserID
	if actor.IsStaff() && req.UserID != 0 {
		owner = req.UserID
	}

	var created *model.Reservation
	key := BookingLockKey(req.ClassID, s.dayStart(req.StartsAt))
	err := s.withRetry(ctx, "create", func() error {
		return s.locked(ctx, key, func() error {
			return s.store.InClass(ctx, req.ClassID, func(tx Tx) error {
				class, units, err := s.size(ctx, tx, req.Candidate)
				if err != nil {
					return err
				}
				d, err := s.evaluate(ctx, tx, class, req.Candidate, units, 0)
				if err != nil {
					return err
				}
				if !d.Accepted {
					return d.Err()
				}
				now := s.clock.Now().UTC()
				r := &model.Reservation{
					UserID:        owner,
					ClassID:       class.ID,
					StartsAt:      req.StartsAt.UTC(),
					EndsAt:        req.EndsAt.UTC(),
					PartySize:     req.PartySize,
					UnitsRequired: units,
					Status:        model.StatusReserved,
					DepositCents:  req.DepositCents,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if err := tx.InsertReservation(ctx, r); err != nil {
					return err
				}
				created = r
				return nil
			})
		})
	})
	if err != nil {
		s.log.Info("reservation rejected", zap.Uint64("class_id", req.ClassID),
			zap.Time("starts_at", req.StartsAt), zap.Time("ends_at", req.EndsAt), zap.Error(err))
		return nil, err
	}
	s.log.Info("reservation created", reservationFields(created)...)
	s.publish(ctx, model.EventReservationCreated, created)
	return created, nil
}

// Edit moves reservation id to the candidate window, party size and
// (optionally) class.  Reservations that used all their edits are
// rejected with ErrEditLimitReached before any availability work.  The
// reservation's own footprint is excluded from the sweep.  When the
// deposit no longer covers the class price the reservation drops to
// AVAILABLE and must be confirmed again.  A class change holds both the
// old and the new class.
func (s *Scheduler) Edit(ctx context.Context, actor model.Actor, id uint64, c Candidate) (*model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current); err != nil {
		return nil, err
	}
	if err := s.editable(current); err != nil {
		return nil, err
	}
	if c.ClassID == 0 {
		c.ClassID = current.ClassID
	}
	c = c.normalized()
	if err := c.check(); err != nil {
		return nil, err
	}
	if _, _, err := s.size(ctx, s.store, c); err != nil {
		return nil, err
	}

	var updated *model.Reservation
	err = s.withRetry(ctx, "edit", func() error {
		cur, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		keys := []string{
			BookingLockKey(c.ClassID, s.dayStart(c.StartsAt)),
			BookingLockKey(cur.ClassID, s.dayStart(cur.StartsAt)),
		}
		return s.lockedAll(ctx, keys, func() error {
			return s.inClasses(ctx, []uint64{cur.ClassID, c.ClassID}, func(tx Tx) error {
				r, err := tx.GetReservation(ctx, id)
				if err != nil {
					return err
				}
				if r.ClassID != cur.ClassID {
					return classMoved(id, cur.ClassID)
				}
				if err := s.editable(r); err != nil {
					return err
				}
				class, units, err := s.size(ctx, tx, c)
				if err != nil {
					return err
				}
				d, err := s.evaluate(ctx, tx, class, c, units, r.ID)
				if err != nil {
					return err
				}
				if !d.Accepted {
					return d.Err()
				}
				r.ClassID = class.ID
				r.StartsAt = c.StartsAt.UTC()
				r.EndsAt = c.EndsAt.UTC()
				r.PartySize = c.PartySize
				r.UnitsRequired = units
				r.EditCount++
				r.UpdatedAt = s.clock.Now().UTC()
				if r.DepositCents < class.PriceCents {
					r.Status = model.StatusAvailable
				} else {
					r.Status = model.StatusReserved
				}
				if err := tx.UpdateReservation(ctx, r); err != nil {
					return err
				}
				updated = r
				return nil
			})
		})
	})
	if err != nil {
		s.log.Info("reservation edit rejected", zap.Uint64("reservation_id", id), zap.Error(err))
		return nil, err
	}
	s.log.Info("reservation edited", append(reservationFields(updated), zap.Int("edit_count", updated.EditCount))...)
	s.publish(ctx, model.EventReservationEdited, updated)
	return updated, nil
}

// Confirm tops up the deposit of an AVAILABLE reservation and, when the
// deposit covers the class price and the window still has room, moves it
// back to RESERVED.  A top-up that would overflow the deposit is invalid
// input.
func (s *Scheduler) Confirm(ctx context.Context, actor model.Actor, id uint64, addCents uint32) (*model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current); err != nil {
		return nil, err
	}
	if current.Status != model.StatusAvailable {
		return nil, ErrInvalidTransition
	}

	var confirmed *model.Reservation
	err = s.withRetry(ctx, "confirm", func() error {
		cur, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		key := BookingLockKey(cur.ClassID, s.dayStart(cur.StartsAt))
		return s.locked(ctx, key, func() error {
			return s.store.InClass(ctx, cur.ClassID, func(tx Tx) error {
				r, err := tx.GetReservation(ctx, id)
				if err != nil {
					return err
				}
				if r.ClassID != cur.ClassID {
					return classMoved(id, cur.ClassID)
				}
				if r.Status != model.StatusAvailable {
					return ErrInvalidTransition
				}
				if addCents > math.MaxUint32-r.DepositCents {
					return invalidf("deposit top-up of %d overflows current deposit %d", addCents, r.DepositCents)
				}
				class, err := tx.GetClass(ctx, r.ClassID)
				if err != nil {
					return err
				}
				deposit := r.DepositCents + addCents
				if deposit < class.PriceCents {
					return ErrInsufficientDeposit
				}
				c := Candidate{ClassID: r.ClassID, StartsAt: r.StartsAt, EndsAt: r.EndsAt, PartySize: r.PartySize}
				d, err := s.evaluate(ctx, tx, class, c, r.UnitsRequired, r.ID)
				if err != nil {
					return err
				}
				if !d.Accepted {
					return d.Err()
				}
				r.DepositCents = deposit
				r.Status = model.StatusReserved
				r.UpdatedAt = s.clock.Now().UTC()
				if err := tx.UpdateReservation(ctx, r); err != nil {
					return err
				}
				confirmed = r
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation confirmed", reservationFields(confirmed)...)
	s.publish(ctx, model.EventReservationConfirmed, confirmed)
	return confirmed, nil
}

// Cancel moves a RESERVED or AVAILABLE reservation to CANCELLED.  The row
// is kept so historical load can be reconstructed.
func (s *Scheduler) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current); err != nil {
		return nil, err
	}

	var cancelled *model.Reservation
	err = s.withRetry(ctx, "cancel", func() error {
		cur, err := s.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		return s.store.InClass(ctx, cur.ClassID, func(tx Tx) error {
			r, err := tx.GetReservation(ctx, id)
			if err != nil {
				return err
			}
			if r.ClassID != cur.ClassID {
				return classMoved(id, cur.ClassID)
			}
			if r.Status != model.StatusReserved && r.Status != model.StatusAvailable {
				return ErrInvalidTransition
			}
			r.Status = model.StatusCancelled
			r.UpdatedAt = s.clock.Now().UTC()
			if err := tx.UpdateReservation(ctx, r); err != nil {
				return err
			}
			cancelled = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation cancelled", reservationFields(cancelled)...)
	s.publish(ctx, model.EventReservationCancelled, cancelled)
	return cancelled, nil
}

// Get returns reservation id if the actor may see it.
func (s *Scheduler) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListMine returns the actor's reservations, newest first.
func (s *Scheduler) ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error) {
	return s.store.ListReservationsByUser(ctx, actor.UserID)
}
