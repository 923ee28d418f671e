package postgres

import (
	"context"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetManifest(ctx context.Context, loadID string) ([]domain.ManifestLine, error) {
	const query = `
SELECT identifier, quantity, length_per_unit, grade, diameter, weight_per_unit
FROM load_manifest_lines
WHERE load_id = $1
ORDER BY line_no`

	rows, err := s.query(ctx, query, loadID)
	if err != nil {
		return nil, mapError(err, "get manifest")
	}
	defer rows.Close()

	var out []domain.ManifestLine
	for rows.Next() {
		var m domain.ManifestLine
		if err := rows.Scan(&m.Identifier, &m.Quantity, &m.LengthPerUnit, &m.Grade, &m.Diameter, &m.WeightPerUnit); err != nil {
			return nil, mapError(err, "scan manifest line")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "get manifest")
	}
	return out, nil
}

const itemColumns = `id, company_id, request_id, reference, grade, diameter, length_per_unit, weight_per_unit,
	quantity, status, rack_id, inbound_load_id, outbound_load_id, created_at, updated_at`

func scanItem(row pgx.Row) (domain.StoredItem, error) {
	var it domain.StoredItem
	err := row.Scan(&it.ID, &it.CompanyID, &it.RequestID, &it.Reference, &it.Grade, &it.Diameter, &it.LengthPerUnit,
		&it.WeightPerUnit, &it.Quantity, &it.Status, &it.RackID, &it.InboundLoadID, &it.OutboundLoadID,
		&it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// CreateItems queues one insert per item and sends them as a single batch.
func (s *Store) CreateItems(ctx context.Context, items []domain.StoredItem) error {
	if len(items) == 0 {
		return nil
	}
	const insert = `
INSERT INTO stored_items (id, company_id, request_id, reference, grade, diameter, length_per_unit, weight_per_unit,
	quantity, status, rack_id, inbound_load_id, outbound_load_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15)`

	return s.WithTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(insert, it.ID, it.CompanyID, it.RequestID, it.Reference, it.Grade,
				num(it.Diameter), num(it.LengthPerUnit), num(it.WeightPerUnit),
				it.Quantity, it.Status, it.RackID, it.InboundLoadID, it.OutboundLoadID, it.CreatedAt, it.UpdatedAt)
		}
		br := txFromContext(ctx).SendBatch(ctx, batch)
		for range items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return mapError(err, "create stored items")
			}
		}
		return mapError(br.Close(), "create stored items")
	})
}

// GetItemsForUpdate locks the rows in id order and skips ids that do not
// exist; callers compare the result against what they asked for.
func (s *Store) GetItemsForUpdate(ctx context.Context, ids []string) ([]domain.StoredItem, error) {
	return s.listItems(ctx, "lock stored items",
		`SELECT `+itemColumns+` FROM stored_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

func (s *Store) ListItemsByRequest(ctx context.Context, requestID string) ([]domain.StoredItem, error) {
	return s.listItems(ctx, "list stored items",
		`SELECT `+itemColumns+` FROM stored_items WHERE request_id = $1 ORDER BY id`, requestID)
}

func (s *Store) listItems(ctx context.Context, op, query string, args ...any) ([]domain.StoredItem, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	var out []domain.StoredItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, mapError(err, "scan stored item")
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	return out, nil
}

func (s *Store) UpdateItems(ctx context.Context, items []domain.StoredItem) error {
	const update = `
UPDATE stored_items SET status = $2, rack_id = $3, outbound_load_id = $4, quantity = $5, updated_at = $6
WHERE id = $1`

	return s.WithTx(ctx, func(ctx context.Context) error {
		for _, it := range items {
			tag, err := s.exec(ctx, update, it.ID, it.Status, it.RackID, it.OutboundLoadID, it.Quantity, it.UpdatedAt)
			if err != nil {
				return mapError(err, "update stored item "+it.ID)
			}
			if tag.RowsAffected() == 0 {
				return domain.Errorf(domain.ErrNotFound, "stored item %s not found", it.ID)
			}
		}
		return nil
	})
}
