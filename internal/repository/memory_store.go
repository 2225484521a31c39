package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// MemoryStore is an in-process scheduler.Store used for local runs
// (STORE_DRIVER=memory) and tests.  InClass is serialized per class and
// undoes its writes when the callback fails.
type MemoryStore struct {
	mu           sync.RWMutex
	classes      map[uint64]model.TableClass
	units        map[uint64]model.TableUnit
	reservations map[uint64]model.Reservation
	lastClassID  uint64
	lastUnitID   uint64
	lastResID    uint64
	classLocks   *scheduler.KeyedMutex
	now          func() time.Time
}

var _ scheduler.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		classes:      make(map[uint64]model.TableClass),
		units:        make(map[uint64]model.TableUnit),
		reservations: make(map[uint64]model.Reservation),
		classLocks:   scheduler.NewKeyedMutex(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// AddClass registers a table class and returns it with its ID set.
func (s *MemoryStore) AddClass(c model.TableClass) model.TableClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastClassID++
	c.ID = s.lastClassID
	c.Capacity = 0
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.classes[c.ID] = c
	return c
}

// AddUnits creates n AVAILABLE units of classID labelled prefix1..prefixN.
func (s *MemoryStore) AddUnits(classID uint64, n int, prefix string) []model.TableUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TableUnit, 0, n)
	for i := 1; i <= n; i++ {
		s.lastUnitID++
		u := model.TableUnit{
			ID:        s.lastUnitID,
			ClassID:   classID,
			Label:     fmt.Sprintf("%s%d", prefix, i),
			State:     model.UnitAvailable,
			CreatedAt: s.now(),
		}
		u.UpdatedAt = u.CreatedAt
		s.units[u.ID] = u
		out = append(out, u)
	}
	return out
}

// SeedDefaultCatalog fills an empty store with DefaultCatalog.
func (s *MemoryStore) SeedDefaultCatalog() {
	for _, e := range DefaultCatalog {
		c := s.AddClass(e.Class)
		s.AddUnits(c.ID, e.Units, e.Prefix)
	}
}

func (s *MemoryStore) capacityLocked(classID uint64) int {
	n := 0
	for _, u := range s.units {
		if u.ClassID == classID {
			n++
		}
	}
	return n
}

// GetClass implements scheduler.Inventory.
func (s *MemoryStore) GetClass(_ context.Context, id uint64) (*model.TableClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, scheduler.ErrUnknownClass
	}
	c.Capacity = s.capacityLocked(id)
	return &c, nil
}

// ListClasses implements scheduler.Inventory.
func (s *MemoryStore) ListClasses(_ context.Context) ([]model.TableClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TableClass, 0, len(s.classes))
	for _, c := range s.classes {
		c.Capacity = s.capacityLocked(c.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListUnits implements scheduler.Inventory.  An empty state lists every
// unit of the class.
func (s *MemoryStore) ListUnits(_ context.Context, classID uint64, state model.UnitState) ([]model.TableUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TableUnit, 0)
	for _, u := range s.units {
		if u.ClassID != classID {
			continue
		}
		if state != "" && u.State != state {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetUnitState implements scheduler.Inventory.
func (s *MemoryStore) SetUnitState(_ context.Context, unitID uint64, from, to model.UnitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || u.State != from {
		return fmt.Errorf("%w: unit %d is not %s", scheduler.ErrConcurrencyConflict, unitID, from)
	}
	u.State = to
	u.UpdatedAt = s.now()
	s.units[unitID] = u
	return nil
}

// ListActiveReservations implements scheduler.Ledger.
func (s *MemoryStore) ListActiveReservations(_ context.Context, classID uint64, from, to time.Time) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if r.ClassID != classID || !r.Status.Active() {
			continue
		}
		if !r.StartsAt.Before(to) || !r.EndsAt.After(from) {
			continue
		}
		out = append(out, cloneReservation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetReservation implements scheduler.Ledger.
func (s *MemoryStore) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, scheduler.ErrReservationNotFound
	}
	r = cloneReservation(r)
	return &r, nil
}

// ListReservationsByUser implements scheduler.Ledger.
func (s *MemoryStore) ListReservationsByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if r.UserID == userID {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// InsertReservation implements scheduler.Ledger.
func (s *MemoryStore) InsertReservation(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[r.ClassID]; !ok {
		return scheduler.ErrUnknownClass
	}
	s.lastResID++
	r.ID = s.lastResID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	s.reservations[r.ID] = cloneReservation(*r)
	return nil
}

// UpdateReservation implements scheduler.Ledger.
func (s *MemoryStore) UpdateReservation(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		return scheduler.ErrReservationNotFound
	}
	s.reservations[r.ID] = cloneReservation(*r)
	return nil
}

// InClass implements scheduler.Store.
func (s *MemoryStore) InClass(ctx context.Context, classID uint64, fn func(tx scheduler.Tx) error) error {
	release, err := s.classLocks.Acquire(ctx, fmt.Sprintf("class:%d", classID))
	if err != nil {
		return err
	}
	defer release()
	if _, err := s.GetClass(ctx, classID); err != nil {
		return err
	}
	tx := &memoryTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx records an undo step for every write so a failed unit of work
// leaves the store unchanged.
type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (t *memoryTx) GetClass(ctx context.Context, id uint64) (*model.TableClass, error) {
	return t.s.GetClass(ctx, id)
}

func (t *memoryTx) ListClasses(ctx context.Context) ([]model.TableClass, error) {
	return t.s.ListClasses(ctx)
}

func (t *memoryTx) ListUnits(ctx context.Context, classID uint64, state model.UnitState) ([]model.TableUnit, error) {
	return t.s.ListUnits(ctx, classID, state)
}

func (t *memoryTx) SetUnitState(ctx context.Context, unitID uint64, from, to model.UnitState) error {
	if err := t.s.SetUnitState(ctx, unitID, from, to); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		t.s.mu.Lock()
		u := t.s.units[unitID]
		u.State = from
		t.s.units[unitID] = u
		t.s.mu.Unlock()
	})
	return nil
}

func (t *memoryTx) ListActiveReservations(ctx context.Context, classID uint64, from, to time.Time) ([]model.Reservation, error) {
	return t.s.ListActiveReservations(ctx, classID, from, to)
}

func (t *memoryTx) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.GetReservation(ctx, id)
}

func (t *memoryTx) ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return t.s.ListReservationsByUser(ctx, userID)
}

func (t *memoryTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := t.s.InsertReservation(ctx, r); err != nil {
		return err
	}
	id := r.ID
	t.undo = append(t.undo, func() {
		t.s.mu.Lock()
		delete(t.s.reservations, id)
		t.s.mu.Unlock()
	})
	return nil
}

func (t *memoryTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	t.s.mu.RLock()
	prev, ok := t.s.reservations[r.ID]
	t.s.mu.RUnlock()
	if !ok {
		return scheduler.ErrReservationNotFound
	}
	if err := t.s.UpdateReservation(ctx, r); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		t.s.mu.Lock()
		t.s.reservations[prev.ID] = prev
		t.s.mu.Unlock()
	})
	return nil
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func cloneReservation(r model.Reservation) model.Reservation {
	if r.AssignedUnitIDs != nil {
		ids := make([]uint64, len(r.AssignedUnitIDs))
		copy(ids, r.AssignedUnitIDs)
		r.AssignedUnitIDs = ids
	}
	return r
}
