package postgres

import (
	"context"
	"errors"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const rackColumns = `id, zone, area, slot, name, mode, capacity_units, capacity_length,
	occupied_units, occupied_length, version, updated_at`

func scanRack(row pgx.Row) (domain.Rack, error) {
	var r domain.Rack
	err := row.Scan(&r.ID, &r.Zone, &r.Area, &r.Slot, &r.Name, &r.Mode, &r.CapacityUnits, &r.CapacityLength,
		&r.OccupiedUnits, &r.OccupiedLength, &r.Version, &r.UpdatedAt)
	return r, err
}

func rackNotFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Error{Kind: domain.ErrNotFound, Msg: "rack " + id + " not found", Racks: []string{id}}
	}
	return mapError(err, "get rack")
}

func (s *Store) GetRack(ctx context.Context, id string) (domain.Rack, error) {
	r, err := scanRack(s.queryRow(ctx, `SELECT `+rackColumns+` FROM racks WHERE id = $1`, id))
	if err != nil {
		return domain.Rack{}, rackNotFound(err, id)
	}
	return r, nil
}

func (s *Store) GetRackForUpdate(ctx context.Context, id string) (domain.Rack, error) {
	r, err := scanRack(s.queryRow(ctx, `SELECT `+rackColumns+` FROM racks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Rack{}, rackNotFound(err, id)
	}
	return r, nil
}

func (s *Store) ListRacks(ctx context.Context, filter domain.RackFilter) ([]domain.Rack, error) {
	const query = `
SELECT ` + rackColumns + `
FROM racks
WHERE ($1 = '' OR upper(zone) = upper($1))
  AND ($2 = '' OR mode = $2)
  AND ($3 <= 0 OR capacity_units - occupied_units >= $3)
ORDER BY id`

	rows, err := s.query(ctx, query, filter.Zone, string(filter.Mode), filter.MinAvailableUnits)
	if err != nil {
		return nil, mapError(err, "list racks")
	}
	defer rows.Close()

	var out []domain.Rack
	for rows.Next() {
		r, err := scanRack(rows)
		if err != nil {
			return nil, mapError(err, "scan rack")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list racks")
	}
	return out, nil
}

// UpsertRack writes the full rack row. Reservation rows carry a copy of the
// rack mode for the exclusion constraint, so a mode change is copied there.
func (s *Store) UpsertRack(ctx context.Context, rack domain.Rack) error {
	if !rack.Mode.Valid() {
		return domain.Errorf(domain.ErrInvalidInput, "rack %s has unknown mode %q", rack.ID, rack.Mode)
	}
	const upsert = `
INSERT INTO racks (id, zone, area, slot, name, mode, capacity_units, capacity_length, occupied_units, occupied_length)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10::numeric)
ON CONFLICT (id) DO UPDATE SET
	zone = EXCLUDED.zone,
	area = EXCLUDED.area,
	slot = EXCLUDED.slot,
	name = EXCLUDED.name,
	mode = EXCLUDED.mode,
	capacity_units = EXCLUDED.capacity_units,
	capacity_length = EXCLUDED.capacity_length,
	occupied_units = EXCLUDED.occupied_units,
	occupied_length = EXCLUDED.occupied_length,
	version = racks.version + 1,
	updated_at = NOW()`

	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, upsert,
			rack.ID, rack.Zone, rack.Area, rack.Slot, rack.Name, rack.Mode,
			rack.CapacityUnits, nullNum(rack.CapacityLength), rack.OccupiedUnits, num(rack.OccupiedLength),
		); err != nil {
			return mapError(err, "upsert rack "+rack.ID)
		}
		if _, err := s.exec(ctx,
			`UPDATE rack_reservations SET rack_mode = $2 WHERE rack_id = $1 AND rack_mode <> $2`,
			rack.ID, rack.Mode,
		); err != nil {
			return mapError(err, "sync reservation mode")
		}
		return nil
	})
}

// ApplyOccupancyDelta is a single conditional UPDATE. When the guard rejects
// the write the current row is read back to say why.
func (s *Store) ApplyOccupancyDelta(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error) {
	const update = `
UPDATE racks SET
	occupied_units = occupied_units + $2,
	occupied_length = occupied_length + $3::numeric,
	version = version + 1,
	updated_at = NOW()
WHERE id = $1
  AND occupied_units + $2 BETWEEN 0 AND capacity_units
  AND occupied_length + $3::numeric >= 0
  AND (capacity_length IS NULL OR occupied_length + $3::numeric <= capacity_length)
RETURNING ` + rackColumns

	r, err := scanRack(s.queryRow(ctx, update, id, units, num(length)))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Rack{}, mapError(err, "apply occupancy delta")
	}

	cur, err := s.GetRack(ctx, id)
	if err != nil {
		return domain.Rack{}, err
	}
	if err := cur.CheckOccupancy(cur.OccupiedUnits+units, cur.OccupiedLength.Add(length)); err != nil {
		return domain.Rack{}, err
	}
	// The row moved between the guarded UPDATE and the read.
	return domain.Rack{}, domain.Errorf(domain.ErrConflict, "rack %s changed concurrently", id)
}

func (s *Store) SetOccupancy(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error) {
	var out domain.Rack
	err := s.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.GetRackForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := cur.CheckOccupancy(units, length); err != nil {
			return err
		}
		const update = `
UPDATE racks SET occupied_units = $2, occupied_length = $3::numeric, version = version + 1, updated_at = NOW()
WHERE id = $1
RETURNING ` + rackColumns
		out, err = scanRack(s.queryRow(ctx, update, id, units, num(length)))
		if err != nil {
			return mapError(err, "set occupancy")
		}
		return nil
	})
	return out, err
}
