package postgres

import (
	"context"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, reference, company_id, status, required_units, storage_start, storage_end,
	assigned_rack_ids, admin_notes, rejection_reason, approved_at, rejected_at, created_at, updated_at`

func (s *Store) GetRequestForUpdate(ctx context.Context, id string) (domain.StorageRequest, error) {
	var r domain.StorageRequest
	err := s.queryRow(ctx, `SELECT `+requestColumns+` FROM storage_requests WHERE id = $1 FOR UPDATE`, id).
		Scan(&r.ID, &r.Reference, &r.CompanyID, &r.Status, &r.RequiredUnits, &r.StorageStart, &r.StorageEnd,
			&r.AssignedRackIDs, &r.AdminNotes, &r.RejectionReason, &r.ApprovedAt, &r.RejectedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.StorageRequest{}, notFound(err, "storage request", id)
	}
	return r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r domain.StorageRequest) error {
	const update = `
UPDATE storage_requests SET
	status = $2,
	required_units = $3,
	assigned_rack_ids = $4,
	admin_notes = $5,
	rejection_reason = $6,
	approved_at = $7,
	rejected_at = $8,
	updated_at = $9
WHERE id = $1`

	racks := r.AssignedRackIDs
	if racks == nil {
		racks = []string{}
	}
	tag, err := s.exec(ctx, update, r.ID, r.Status, r.RequiredUnits, racks, r.AdminNotes, r.RejectionReason,
		r.ApprovedAt, r.RejectedAt, r.UpdatedAt)
	if err != nil {
		return mapError(err, "update storage request "+r.ID)
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.ErrNotFound, "storage request %s not found", r.ID)
	}
	return nil
}

const loadColumns = `id, request_id, company_id, direction, sequence, status, planned_units, planned_length,
	completed_units, COALESCE(rack_id, ''), notes, completed_at, updated_at`

func scanLoad(row pgx.Row) (domain.Load, error) {
	var l domain.Load
	err := row.Scan(&l.ID, &l.RequestID, &l.CompanyID, &l.Direction, &l.Sequence, &l.Status, &l.PlannedUnits,
		&l.PlannedLength, &l.CompletedUnits, &l.RackID, &l.Notes, &l.CompletedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) GetLoadForUpdate(ctx context.Context, id string) (domain.Load, error) {
	l, err := scanLoad(s.queryRow(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Load{}, notFound(err, "load", id)
	}
	return l, nil
}

func (s *Store) ListLoadsByRequest(ctx context.Context, requestID string) ([]domain.Load, error) {
	rows, err := s.query(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE request_id = $1 ORDER BY direction, sequence`, requestID)
	if err != nil {
		return nil, mapError(err, "list loads")
	}
	defer rows.Close()

	var out []domain.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, mapError(err, "scan load")
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list loads")
	}
	return out, nil
}

func (s *Store) UpdateLoad(ctx context.Context, l domain.Load) error {
	const update = `
UPDATE loads SET
	status = $2,
	completed_units = $3,
	rack_id = $4,
	notes = $5,
	completed_at = $6,
	updated_at = $7
WHERE id = $1`

	tag, err := s.exec(ctx, update, l.ID, l.Status, l.CompletedUnits, nullText(l.RackID), l.Notes, l.CompletedAt, l.UpdatedAt)
	if err != nil {
		return mapError(err, "update load "+l.ID)
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.ErrNotFound, "load %s not found", l.ID)
	}
	return nil
}
