// Package repository holds the persistence layer of the reservation
// scheduler: MySQL repositories for table classes, table units and
// reservations, a MySQL-backed scheduler.Store, and an in-memory store for
// local runs and tests.  Driver errors that signal lock contention are
// translated into scheduler.ErrConcurrencyConflict so the scheduler can
// retry them.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// ErrConflict is returned when an insert violates a unique key, such as a
// unit already bound to a reservation.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers we translate.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// mapError translates driver errors into the error kinds the scheduler
// understands.  Unknown errors are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return fmt.Errorf("%w: %v", scheduler.ErrConcurrencyConflict, err)
		case mysqlErrDupEntry:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

// notFound maps sql.ErrNoRows to target.
func notFound(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return mapError(err)
}
