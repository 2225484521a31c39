package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// TableUnitRepo reads and writes the table_units table.
type TableUnitRepo struct {
	q querier
}

// NewTableUnitRepo returns a TableUnitRepo bound to q.
func NewTableUnitRepo(q querier) *TableUnitRepo { return &TableUnitRepo{q: q} }

// CreateBulk inserts units in one statement.  Only class_id, label and
// state are inserted; IDs are not populated.
func (r *TableUnitRepo) CreateBulk(ctx context.Context, units []model.TableUnit) error {
	if len(units) == 0 {
		return nil
	}
	query := `INSERT INTO table_units (class_id, label, state) VALUES `
	args := make([]any, 0, len(units)*3)
	for i, u := range units {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		state := u.State
		if state == "" {
			state = model.UnitAvailable
		}
		args = append(args, u.ClassID, u.Label, string(state))
	}
	_, err := r.q.ExecContext(ctx, query, args...)
	return mapError(err)
}

// ListByClass returns the units of classID ordered by id.  An empty state
// lists every unit of the class.
func (r *TableUnitRepo) ListByClass(ctx context.Context, classID uint64, state model.UnitState) ([]model.TableUnit, error) {
	query := `SELECT id, class_id, label, state, created_at, updated_at FROM table_units WHERE class_id = ?`
	args := []any{classID}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := make([]model.TableUnit, 0)
	for rows.Next() {
		var u model.TableUnit
		var st string
		if err := rows.Scan(&u.ID, &u.ClassID, &u.Label, &st, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.State = model.UnitState(st)
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetState moves unit id from one state to another.  When no row matches
// (unknown unit or a different current state) ErrConcurrencyConflict is
// returned.
func (r *TableUnitRepo) SetState(ctx context.Context, id uint64, from, to model.UnitState) error {
	const q = `UPDATE table_units SET state = ? WHERE id = ? AND state = ?`
	res, err := r.q.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: unit %d is not %s", scheduler.ErrConcurrencyConflict, id, from)
	}
	return nil
}
