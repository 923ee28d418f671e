package postgres

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/jackc/pgx/v5"
)

const reservationColumns = `id, rack_id, request_id, company_id, start_date, end_date,
	reserved_units, status, occupancy_applied, created_at, updated_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(&r.ID, &r.RackID, &r.RequestID, &r.CompanyID, &r.Period.Start, &r.Period.End,
		&r.ReservedUnits, &r.Status, &r.OccupancyApplied, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) listReservations(ctx context.Context, op, where string, args ...any) ([]domain.Reservation, error) {
	rows, err := s.query(ctx, `SELECT `+reservationColumns+` FROM rack_reservations WHERE `+where+` ORDER BY start_date, id`, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err, "scan reservation")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	return out, nil
}

func (s *Store) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	r, err := scanReservation(s.queryRow(ctx,
		`SELECT `+reservationColumns+` FROM rack_reservations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Reservation{}, notFound(err, "reservation", id)
	}
	return r, nil
}

func (s *Store) ListReservationsByRack(ctx context.Context, rackID string) ([]domain.Reservation, error) {
	return s.listReservations(ctx, "list rack reservations", `rack_id = $1`, rackID)
}

func (s *Store) ListReservationsByRequest(ctx context.Context, requestID string) ([]domain.Reservation, error) {
	return s.listReservations(ctx, "list request reservations", `request_id = $1`, requestID)
}

// ListDueReservations treats the end date as inclusive, matching
// DateRange.ActiveOn.
func (s *Store) ListDueReservations(ctx context.Context, day time.Time) ([]domain.Reservation, error) {
	return s.listReservations(ctx, "list due reservations", `
status = 'active' AND NOT occupancy_applied
AND start_date <= $1 AND (end_date IS NULL OR end_date >= $1)`, domain.Day(day))
}

// CreateReservation copies the rack's mode onto the row in the same statement.
func (s *Store) CreateReservation(ctx context.Context, r domain.Reservation) error {
	const insert = `
INSERT INTO rack_reservations (id, rack_id, rack_mode, request_id, company_id, start_date, end_date,
	reserved_units, status, occupancy_applied, created_at, updated_at)
SELECT $1, racks.id, racks.mode, $3, $4, $5, $6, $7, $8, $9, $10, $11
FROM racks WHERE racks.id = $2`

	tag, err := s.exec(ctx, insert,
		r.ID, r.RackID, r.RequestID, r.CompanyID, r.Period.Start, r.Period.End,
		r.ReservedUnits, r.Status, r.OccupancyApplied, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create reservation on rack "+r.RackID)
	}
	if tag.RowsAffected() == 0 {
		return &domain.Error{Kind: domain.ErrNotFound, Msg: "rack " + r.RackID + " not found", Racks: []string{r.RackID}}
	}
	return nil
}

func (s *Store) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	const update = `
UPDATE rack_reservations SET
	start_date = $2, end_date = $3, reserved_units = $4, status = $5, occupancy_applied = $6, updated_at = $7
WHERE id = $1 AND status = 'active'`

	tag, err := s.exec(ctx, update, r.ID, r.Period.Start, r.Period.End, r.ReservedUnits, r.Status, r.OccupancyApplied, r.UpdatedAt)
	if err != nil {
		return mapError(err, "update reservation "+r.ID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	if err := s.queryRow(ctx, `SELECT status FROM rack_reservations WHERE id = $1`, r.ID).Scan(&status); err != nil {
		return notFound(err, "reservation", r.ID)
	}
	return domain.Errorf(domain.ErrInvalidState, "reservation %s is %s and can no longer change", r.ID, status)
}
