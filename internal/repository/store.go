package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// MySQLStore implements scheduler.Store on top of database/sql.  InClass
// opens a transaction and takes the table_classes row lock, so every
// InClass call on the same class is serialized by InnoDB.
type MySQLStore struct {
	db *sql.DB
	mysqlOps
}

var _ scheduler.Store = (*MySQLStore)(nil)

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, mysqlOps: newOps(db, false)}
}

// DB exposes the underlying handle.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// Classes returns a TableClassRepo outside any transaction.
func (s *MySQLStore) Classes() *TableClassRepo { return s.classes }

// Units returns a TableUnitRepo outside any transaction.
func (s *MySQLStore) Units() *TableUnitRepo { return s.units }

// InClass implements scheduler.Store.
func (s *MySQLStore) InClass(ctx context.Context, classID uint64, fn func(tx scheduler.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ops := newOps(tx, true)
	if err := ops.classes.LockForUpdate(ctx, classID); err != nil {
		return err
	}
	if err := fn(ops); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	committed = true
	return nil
}

// mysqlOps adapts the three repositories to scheduler.Tx.  Inside a
// transaction reservation reads lock the row.
type mysqlOps struct {
	classes      *TableClassRepo
	units        *TableUnitRepo
	reservations *ReservationRepo
	forUpdate    bool
}

func newOps(q querier, forUpdate bool) mysqlOps {
	return mysqlOps{
		classes:      NewTableClassRepo(q),
		units:        NewTableUnitRepo(q),
		reservations: NewReservationRepo(q),
		forUpdate:    forUpdate,
	}
}

func (o mysqlOps) GetClass(ctx context.Context, id uint64) (*model.TableClass, error) {
	return o.classes.GetByID(ctx, id)
}

func (o mysqlOps) ListClasses(ctx context.Context) ([]model.TableClass, error) {
	return o.classes.List(ctx)
}

func (o mysqlOps) ListUnits(ctx context.Context, classID uint64, state model.UnitState) ([]model.TableUnit, error) {
	return o.units.ListByClass(ctx, classID, state)
}

func (o mysqlOps) SetUnitState(ctx context.Context, unitID uint64, from, to model.UnitState) error {
	return o.units.SetState(ctx, unitID, from, to)
}

func (o mysqlOps) ListActiveReservations(ctx context.Context, classID uint64, from, to time.Time) ([]model.Reservation, error) {
	return o.reservations.ListActiveByClass(ctx, classID, from, to)
}

func (o mysqlOps) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return o.reservations.GetByID(ctx, id, o.forUpdate)
}

func (o mysqlOps) ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return o.reservations.ListByUser(ctx, userID)
}

func (o mysqlOps) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return o.reservations.Create(ctx, r)
}

func (o mysqlOps) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return o.reservations.Update(ctx, r)
}

// CatalogEntry describes a table class and how many units to create for it.
type CatalogEntry struct {
	Class  model.TableClass
	Units  int
	Prefix string
}

// DefaultCatalog is the dining room used when a store starts empty.
var DefaultCatalog = []CatalogEntry{
	{Class: model.TableClass{SeatCount: 2, Kind: "STANDARD", Combinable: true, PriceCents: 1000}, Units: 6, Prefix: "S2-"},
	{Class: model.TableClass{SeatCount: 4, Kind: "STANDARD", Combinable: true, PriceCents: 2000}, Units: 8, Prefix: "S4-"},
	{Class: model.TableClass{SeatCount: 6, Kind: "BOOTH", Combinable: false, PriceCents: 3500}, Units: 3, Prefix: "B6-"},
}

// SeedCatalog inserts entries in one transaction when table_classes is
// empty.  It reports whether anything was written.
func (s *MySQLStore) SeedCatalog(ctx context.Context, entries []CatalogEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM table_classes`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	classes := NewTableClassRepo(tx)
	units := NewTableUnitRepo(tx)
	for _, e := range entries {
		c := e.Class
		if err := classes.Create(ctx, &c); err != nil {
			return false, err
		}
		batch := make([]model.TableUnit, 0, e.Units)
		for i := 1; i <= e.Units; i++ {
			batch = append(batch, model.TableUnit{ClassID: c.ID, Label: fmt.Sprintf("%s%d", e.Prefix, i), State: model.UnitAvailable})
		}
		if err := units.CreateBulk(ctx, batch); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}
