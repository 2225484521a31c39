package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

var (
	lockClassSQL = regexp.QuoteMeta(`SELECT id FROM table_classes WHERE id = ? FOR UPDATE`)
	resCols      = []string{"id", "user_id", "class_id", "starts_at", "ends_at", "party_size", "units_required",
		"status", "edit_count", "deposit_cents", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(db), mock
}

func TestInClassLocksClassAndCommits(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockClassSQL).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE table_units SET state = ? WHERE id = ? AND state = ?`)).
		WithArgs("OCCUPIED", 3, "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InClass(context.Background(), 7, func(tx scheduler.Tx) error {
		return tx.SetUnitState(context.Background(), 3, model.UnitAvailable, model.UnitOccupied)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInClassRollsBackWhenCallbackFails(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockClassSQL).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectRollback()

	err := store.InClass(context.Background(), 7, func(scheduler.Tx) error { return scheduler.ErrEditLimitReached })
	assert.ErrorIs(t, err, scheduler.ErrEditLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInClassUnknownClass(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockClassSQL).WithArgs(404).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	called := false
	err := store.InClass(context.Background(), 404, func(scheduler.Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, scheduler.ErrUnknownClass)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockContentionIsConcurrencyConflict(t *testing.T) {
	for _, code := range []uint16{mysqlErrDeadlock, mysqlErrLockWaitTimeout} {
		store, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockClassSQL).WithArgs(1).WillReturnError(&mysql.MySQLError{Number: code, Message: "busy"})
		mock.ExpectRollback()

		err := store.InClass(context.Background(), 1, func(scheduler.Tx) error { return nil })
		assert.ErrorIs(t, err, scheduler.ErrConcurrencyConflict, "code %d", code)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestDuplicateClassIsConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("INSERT INTO table_classes").
		WithArgs(2, "STANDARD", true, 1000).
		WillReturnError(&mysql.MySQLError{Number: mysqlErrDupEntry, Message: "Duplicate entry"})

	err := store.Classes().Create(context.Background(), &model.TableClass{SeatCount: 2, Kind: "STANDARD", Combinable: true, PriceCents: 1000})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetClassCountsUnits(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_classes c WHERE c.id = ?`)).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seat_count", "table_kind", "combinable", "price_cents", "capacity", "created_at", "updated_at"}).
			AddRow(2, 4, "STANDARD", true, 2000, 8, now, now))

	c, err := store.GetClass(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Capacity)
	assert.Equal(t, 4, c.SeatCount)
	assert.True(t, c.Combinable)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_classes c WHERE c.id = ?`)).WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = store.GetClass(context.Background(), 9)
	assert.ErrorIs(t, err, scheduler.ErrUnknownClass)
}

func TestSetUnitStateWithoutMatchingRow(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE table_units SET state").
		WithArgs("OCCUPIED", 3, "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetUnitState(context.Background(), 3, model.UnitAvailable, model.UnitOccupied)
	assert.ErrorIs(t, err, scheduler.ErrConcurrencyConflict)
}

func TestListUnitsFiltersByState(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_units WHERE class_id = ? AND state = ? ORDER BY id`)).
		WithArgs(1, "AVAILABLE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "label", "state", "created_at", "updated_at"}).
			AddRow(1, 1, "T1", "AVAILABLE", now, now).
			AddRow(4, 1, "T4", "AVAILABLE", now, now))

	units, err := store.ListUnits(context.Background(), 1, model.UnitAvailable)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "T4", units[1].Label)
	assert.Equal(t, model.UnitAvailable, units[1].State)
}

func TestGetReservationLoadsBoundUnits(t *testing.T) {
	store, mock := newMock(t)
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE id = ?`)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(5, 1, 2, start, start.Add(2*time.Hour), 3, 2, "CHECKED_IN", 1, 1000, start, start))
	mock.ExpectQuery("SELECT reservation_id, unit_id FROM reservation_units").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "unit_id"}).AddRow(5, 11).AddRow(5, 12))

	r, err := store.GetReservation(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, r.Status)
	assert.Equal(t, []uint64{11, 12}, r.AssignedUnitIDs)
	assert.Equal(t, 2, r.UnitsRequired)
	assert.True(t, r.StartsAt.Equal(start))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReservationNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("FROM reservations WHERE id").WithArgs(5).WillReturnRows(sqlmock.NewRows(resCols))

	_, err := store.GetReservation(context.Background(), 5)
	assert.ErrorIs(t, err, scheduler.ErrReservationNotFound)
}

func TestReservationReadsInsideTransactionLockRow(t *testing.T) {
	store, mock := newMock(t)
	start := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(lockClassSQL).WithArgs(2).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE id = ? FOR UPDATE`)).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(5, 1, 2, start, start.Add(time.Hour), 2, 1, "RESERVED", 0, 1000, start, start))
	mock.ExpectQuery("FROM reservation_units").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "unit_id"}))
	mock.ExpectCommit()

	err := store.InClass(context.Background(), 2, func(tx scheduler.Tx) error {
		r, err := tx.GetReservation(context.Background(), 5)
		if err != nil {
			return err
		}
		assert.Empty(t, r.AssignedUnitIDs)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveReservationsQuery(t *testing.T) {
	store, mock := newMock(t)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	mock.ExpectQuery(`status IN \(\?, \?\) AND starts_at < \? AND ends_at > \?`).
		WithArgs(2, "RESERVED", "CHECKED_IN", to, from).
		WillReturnRows(sqlmock.NewRows(resCols).
			AddRow(1, 1, 2, from.Add(18*time.Hour), from.Add(20*time.Hour), 4, 2, "RESERVED", 0, 0, from, from))

	rs, err := store.ListActiveReservations(context.Background(), 2, from, to)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 2, rs[0].UnitsRequired)
}

func TestUpdateReservationReplacesUnits(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	r := &model.Reservation{
		ID: 5, ClassID: 2, StartsAt: now, EndsAt: now.Add(time.Hour), PartySize: 3, UnitsRequired: 2,
		Status: model.StatusCheckedIn, DepositCents: 1000, AssignedUnitIDs: []uint64{1, 2}, UpdatedAt: now,
	}
	mock.ExpectExec("UPDATE reservations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reservation_units WHERE reservation_id = ?`)).WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reservation_units (reservation_id, unit_id) VALUES (?, ?),(?, ?)`)).
		WithArgs(5, 1, 5, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.UpdateReservation(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingReservation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE reservations").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateReservation(context.Background(), &model.Reservation{ID: 77, Status: model.StatusCancelled})
	assert.ErrorIs(t, err, scheduler.ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReservationSetsID(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(42, 1))

	r := &model.Reservation{UserID: 1, ClassID: 2, StartsAt: time.Now(), EndsAt: time.Now().Add(time.Hour), PartySize: 2, UnitsRequired: 1, Status: model.StatusReserved}
	require.NoError(t, store.InsertReservation(context.Background(), r))
	assert.Equal(t, uint64(42), r.ID)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestSeedCatalogOnlyWhenEmpty(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM table_classes`)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectRollback()

	seeded, err := store.SeedCatalog(context.Background(), DefaultCatalog)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.NoError(t, mock.ExpectationsWereMet())

	store, mock = newMock(t)
	entries := []CatalogEntry{{Class: model.TableClass{SeatCount: 2, Kind: "STANDARD", Combinable: true, PriceCents: 1000}, Units: 2, Prefix: "S"}}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM table_classes`)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("INSERT INTO table_classes").WithArgs(2, "STANDARD", true, 1000).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO table_units (class_id, label, state) VALUES (?, ?, ?),(?, ?, ?)`)).
		WithArgs(1, "S1", "AVAILABLE", 1, "S2", "AVAILABLE").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	seeded, err = store.SeedCatalog(context.Background(), entries)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
