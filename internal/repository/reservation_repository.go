package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

// ReservationRepo provides CRUD operations for reservations and the units
// bound to them at check-in.  Bound units live in reservation_units.  All
// timestamps are stored in UTC.
type ReservationRepo struct {
	q querier
}

// NewReservationRepo returns a ReservationRepo bound to q.
func NewReservationRepo(q querier) *ReservationRepo { return &ReservationRepo{q: q} }

const reservationColumns = `id, user_id, class_id, starts_at, ends_at, party_size, units_required,
       status, edit_count, deposit_cents, created_at, updated_at`

type rowScanner interface{ Scan(...any) error }

func scanReservation(sc rowScanner, r *model.Reservation) error {
	var status string
	err := sc.Scan(&r.ID, &r.UserID, &r.ClassID, &r.StartsAt, &r.EndsAt, &r.PartySize,
		&r.UnitsRequired, &status, &r.EditCount, &r.DepositCents, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}
	r.Status = model.ReservationStatus(status)
	r.StartsAt = r.StartsAt.UTC()
	r.EndsAt = r.EndsAt.UTC()
	return nil
}

// Create inserts r and populates its generated ID.  Bound units are not
// written; a new reservation has none.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
        (user_id, class_id, starts_at, ends_at, party_size, units_required, status, edit_count, deposit_cents, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = res.CreatedAt
	}
	result, err := r.q.ExecContext(ctx, q, res.UserID, res.ClassID, res.StartsAt.UTC(), res.EndsAt.UTC(),
		res.PartySize, res.UnitsRequired, string(res.Status), res.EditCount, res.DepositCents,
		res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID returns scheduler.ErrReservationNotFound when id is unknown.
// With forUpdate the row stays locked until the enclosing transaction
// ends.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64, forUpdate bool) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var res model.Reservation
	if err := scanReservation(r.q.QueryRowContext(ctx, q, id), &res); err != nil {
		return nil, notFound(err, scheduler.ErrReservationNotFound)
	}
	units, err := r.unitIDs(ctx, []uint64{res.ID})
	if err != nil {
		return nil, err
	}
	res.AssignedUnitIDs = units[res.ID]
	return &res, nil
}

// ListActiveByClass returns RESERVED and CHECKED_IN reservations of classID
// whose window intersects [from, to), ordered by start then id.
func (r *ReservationRepo) ListActiveByClass(ctx context.Context, classID uint64, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
        FROM reservations
        WHERE class_id = ? AND status IN (?, ?) AND starts_at < ? AND ends_at > ?
        ORDER BY starts_at, id`
	return r.list(ctx, q, classID, string(model.StatusReserved), string(model.StatusCheckedIn), to.UTC(), from.UTC())
}

// ListByUser returns every reservation of userID, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
        FROM reservations
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC`
	out, err := r.list(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(out))
	for _, res := range out {
		if res.Status == model.StatusCheckedIn {
			ids = append(ids, res.ID)
		}
	}
	units, err := r.unitIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].AssignedUnitIDs = units[out[i].ID]
	}
	return out, nil
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Update writes the mutable columns of res and replaces its bound units.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations
        SET class_id = ?, starts_at = ?, ends_at = ?, party_size = ?, units_required = ?,
            status = ?, edit_count = ?, deposit_cents = ?, updated_at = ?
        WHERE id = ?`
	result, err := r.q.ExecContext(ctx, q, res.ClassID, res.StartsAt.UTC(), res.EndsAt.UTC(), res.PartySize,
		res.UnitsRequired, string(res.Status), res.EditCount, res.DepositCents, res.UpdatedAt.UTC(), res.ID)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return scheduler.ErrReservationNotFound
	}
	return r.replaceUnits(ctx, res.ID, res.AssignedUnitIDs)
}

func (r *ReservationRepo) replaceUnits(ctx context.Context, reservationID uint64, unitIDs []uint64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM reservation_units WHERE reservation_id = ?`, reservationID); err != nil {
		return mapError(err)
	}
	if len(unitIDs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_units (reservation_id, unit_id) VALUES `
	args := make([]any, 0, len(unitIDs)*2)
	for i, uid := range unitIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, reservationID, uid)
	}
	_, err := r.q.ExecContext(ctx, query, args...)
	return mapError(err)
}

// unitIDs returns the bound unit IDs of each reservation, ordered by unit id.
func (r *ReservationRepo) unitIDs(ctx context.Context, reservationIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64)
	if len(reservationIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(reservationIDs)), ",")
	args := make([]any, 0, len(reservationIDs))
	for _, id := range reservationIDs {
		args = append(args, id)
	}
	q := `SELECT reservation_id, unit_id FROM reservation_units
        WHERE reservation_id IN (` + placeholders + `)
        ORDER BY reservation_id, unit_id`
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var rid, uid uint64
		if err := rows.Scan(&rid, &uid); err != nil {
			return nil, err
		}
		out[rid] = append(out[rid], uid)
	}
	return out, rows.Err()
}
