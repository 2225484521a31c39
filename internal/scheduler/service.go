package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultMaxEdits     = 3
	DefaultCheckInLead  = 15 * time.Minute
	DefaultLockTimeout  = 2 * time.Second
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 50 * time.Millisecond
)

// Options configures a Scheduler.  Store is required; every other field
// has a default.
type Options struct {
	Store     Store
	Locker    Locker
	Publisher Publisher
	Clock     Clock
	Logger    *zap.Logger
	// Location decides which calendar day a reservation belongs to.
	Location *time.Location

	MaxEdits           int
	CombinationCeiling int
	CheckInLead        time.Duration
	LockTimeout        time.Duration
	MaxAttempts        int
	RetryBackoff       time.Duration
}

// Scheduler is the caller-facing entry point for reservation scheduling.
// It is safe for concurrent use.
type Scheduler struct {
	store       Store
	locker      Locker
	pub         Publisher
	clock       Clock
	log         *zap.Logger
	loc         *time.Location
	maxEdits    int
	ceiling     int
	lead        time.Duration
	lockTimeout time.Duration
	attempts    int
	backoff     time.Duration
}

// New builds a Scheduler.  It panics when o.Store is nil.
func New(o Options) *Scheduler {
	if o.Store == nil {
		panic("nil store passed to scheduler.New")
	}
	s := &Scheduler{
		store:       o.Store,
		locker:      o.Locker,
		pub:         o.Publisher,
		clock:       o.Clock,
		log:         o.Logger,
		loc:         o.Location,
		maxEdits:    o.MaxEdits,
		ceiling:     o.CombinationCeiling,
		lead:        o.CheckInLead,
		lockTimeout: o.LockTimeout,
		attempts:    o.MaxAttempts,
		backoff:     o.RetryBackoff,
	}
	if s.locker == nil {
		s.locker = NewKeyedMutex()
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.maxEdits <= 0 {
		s.maxEdits = DefaultMaxEdits
	}
	if s.ceiling <= 0 {
		s.ceiling = DefaultCombinationCeiling
	}
	if s.lead <= 0 {
		s.lead = DefaultCheckInLead
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.attempts <= 0 {
		s.attempts = DefaultMaxAttempts
	}
	if s.backoff <= 0 {
		s.backoff = DefaultRetryBackoff
	}
	return s
}

// dayStart returns local midnight of the calendar day containing t.
func (s *Scheduler) dayStart(t time.Time) time.Time {
	lt := t.In(s.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, s.loc)
}

// locked runs fn while holding key.  Failing to get the lock within the
// configured timeout is a concurrency conflict.
func (s *Scheduler) locked(ctx context.Context, key string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	release, err := s.locker.Acquire(lockCtx, key)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: lock %s: %v", ErrConcurrencyConflict, key, err)
		}
		return err
	}
	defer release()
	return fn()
}

// lockedAll holds every distinct key, acquired in sorted order, while fn
// runs.
func (s *Scheduler) lockedAll(ctx context.Context, keys []string, fn func() error) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for _, k := range sorted {
		if len(uniq) == 0 || k != uniq[len(uniq)-1] {
			uniq = append(uniq, k)
		}
	}
	var run func(i int) error
	run = func(i int) error {
		if i == len(uniq) {
			return fn()
		}
		return s.locked(ctx, uniq[i], func() error { return run(i + 1) })
	}
	return run(0)
}

// inClasses nests Store.InClass for every distinct class in ascending id
// order and runs fn with the innermost transaction.  Every class stays
// serialized until fn returns.
func (s *Scheduler) inClasses(ctx context.Context, classIDs []uint64, fn func(tx Tx) error) error {
	ids := append([]uint64(nil), classIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	uniq := ids[:0]
	for _, id := range ids {
		if len(uniq) == 0 || id != uniq[len(uniq)-1] {
			uniq = append(uniq, id)
		}
	}
	var run func(i int) error
	run = func(i int) error {
		return s.store.InClass(ctx, uniq[i], func(tx Tx) error {
			if i == len(uniq)-1 {
				return fn(tx)
			}
			return run(i + 1)
		})
	}
	return run(0)
}

// classMoved reports a reservation that changed class after its locks
// were chosen.  The caller retries with fresh locks.
func classMoved(id, locked uint64) error {
	return fmt.Errorf("%w: reservation %d left class %d", ErrConcurrencyConflict, id, locked)
}

// withRetry re-runs fn on ErrConcurrencyConflict with exponential
// backoff, up to the configured number of attempts.
func (s *Scheduler) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.backoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrConcurrencyConflict) || attempt >= s.attempts {
			return err
		}
		s.log.Warn("retrying after concurrency conflict",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
}

func (s *Scheduler) publish(ctx context.Context, typ string, r *model.Reservation) {
	if s.pub == nil || r == nil {
		return
	}
	ev := model.ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ClassID:       r.ClassID,
		Status:        string(r.Status),
		StartsAt:      r.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        r.EndsAt.UTC().Format(time.RFC3339),
		PartySize:     r.PartySize,
		UnitsRequired: r.UnitsRequired,
		UnitIDs:       r.AssignedUnitIDs,
		EditCount:     r.EditCount,
		OccurredAt:    s.clock.Now().UTC().Format(time.RFC3339),
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warn("publish reservation event failed",
			zap.String("type", typ), zap.Uint64("reservation_id", r.ID), zap.Error(err))
	}
}

func authorize(actor model.Actor, r *model.Reservation) error {
	if actor.IsStaff() || r.UserID == actor.UserID {
		return nil
	}
	return ErrForbidden
}

func requireStaff(actor model.Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return nil
}

func reservationFields(r *model.Reservation) []zap.Field {
	return []zap.Field{
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("class_id", r.ClassID),
		zap.Time("starts_at", r.StartsAt),
		zap.Time("ends_at", r.EndsAt),
		zap.Int("units", r.UnitsRequired),
		zap.String("status", string(r.Status)),
	}
}

// Location is the calendar used to group reservations by day.
func (s *Scheduler) Location() *time.Location { return s.loc }
