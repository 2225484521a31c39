package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TableClassRepo reads and writes the table_classes table.  Capacity is
// not stored; it is the number of table_units rows of the class.
type TableClassRepo struct {
	q querier
}

// NewTableClassRepo returns a TableClassRepo bound to q.
func NewTableClassRepo(q querier) *TableClassRepo { return &TableClassRepo{q: q} }

const classColumns = `c.id, c.seat_count, c.table_kind, c.combinable, c.price_cents,
       (SELECT COUNT(*) FROM table_units u WHERE u.class_id = c.id),
       c.created_at, c.updated_at`

func scanClass(sc interface{ Scan(...any) error }, c *model.TableClass) error {
	return sc.Scan(&c.ID, &c.SeatCount, &c.Kind, &c.Combinable, &c.PriceCents,
		&c.Capacity, &c.CreatedAt, &c.UpdatedAt)
}

// Create inserts a table class and populates its ID.  A duplicate
// (seat_count, table_kind) pair yields ErrConflict.
func (r *TableClassRepo) Create(ctx context.Context, c *model.TableClass) error {
	const q = `INSERT INTO table_classes (seat_count, table_kind, combinable, price_cents) VALUES (?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, q, c.SeatCount, c.Kind, c.Combinable, c.PriceCents)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID returns scheduler.ErrUnknownClass when no class has id.
func (r *TableClassRepo) GetByID(ctx context.Context, id uint64) (*model.TableClass, error) {
	q := `SELECT ` + classColumns + ` FROM table_classes c WHERE c.id = ?`
	var c model.TableClass
	if err := scanClass(r.q.QueryRowContext(ctx, q, id), &c); err != nil {
		return nil, notFound(err, scheduler.ErrUnknownClass)
	}
	return &c, nil
}

// List returns every class ordered by id.
func (r *TableClassRepo) List(ctx context.Context) ([]model.TableClass, error) {
	q := `SELECT ` + classColumns + ` FROM table_classes c ORDER BY c.id`
	rows, err := r.q.QueryContext(ctx, q)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := make([]model.TableClass, 0)
	for rows.Next() {
		var c model.TableClass
		if err := scanClass(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LockForUpdate takes the row lock on class id for the rest of the
// enclosing transaction.
func (r *TableClassRepo) LockForUpdate(ctx context.Context, id uint64) error {
	var got uint64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM table_classes WHERE id = ? FOR UPDATE`, id).Scan(&got)
	return notFound(err, scheduler.ErrUnknownClass)
}
