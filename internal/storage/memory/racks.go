package memory

import (
	"context"
	"sort"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

func rackKey(id string) key { return key{kindRack, id} }

func (s *Store) GetRack(ctx context.Context, id string) (domain.Rack, error) {
	var rack domain.Rack
	err := s.read(ctx, func(st *state) error {
		r, ok := st.racks[id]
		if !ok {
			return rackNotFound(id)
		}
		rack = r
		return nil
	})
	return rack, err
}

func (s *Store) GetRackForUpdate(ctx context.Context, id string) (domain.Rack, error) {
	var rack domain.Rack
	err := s.run(ctx, func(t *tx) error {
		r, ok := t.state.racks[id]
		if !ok {
			return rackNotFound(id)
		}
		t.lock(rackKey(id))
		rack = r
		return nil
	})
	return rack, err
}

func (s *Store) ListRacks(ctx context.Context, filter domain.RackFilter) ([]domain.Rack, error) {
	var out []domain.Rack
	err := s.read(ctx, func(st *state) error {
		for _, r := range st.racks {
			if filter.Match(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *Store) UpsertRack(ctx context.Context, rack domain.Rack) error {
	if !rack.Mode.Valid() {
		return domain.Errorf(domain.ErrInvalidInput, "rack %s has unknown mode %q", rack.ID, rack.Mode)
	}
	return s.run(ctx, func(t *tx) error {
		t.write(rackKey(rack.ID))
		t.state.racks[rack.ID] = rack
		return nil
	})
}

// ApplyOccupancyDelta is a compare-and-swap on the rack's version: the write
// only lands if nobody else changed the rack before commit.
func (s *Store) ApplyOccupancyDelta(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error) {
	var rack domain.Rack
	err := s.run(ctx, func(t *tx) error {
		r, ok := t.state.racks[id]
		if !ok {
			return rackNotFound(id)
		}
		nextUnits := r.OccupiedUnits + units
		nextLength := r.OccupiedLength.Add(length)
		if err := r.CheckOccupancy(nextUnits, nextLength); err != nil {
			return err
		}
		t.write(rackKey(id))
		r.OccupiedUnits = nextUnits
		r.OccupiedLength = nextLength
		t.state.racks[id] = r
		rack = r
		return nil
	})
	return rack, err
}

func (s *Store) SetOccupancy(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error) {
	var rack domain.Rack
	err := s.run(ctx, func(t *tx) error {
		r, ok := t.state.racks[id]
		if !ok {
			return rackNotFound(id)
		}
		if err := r.CheckOccupancy(units, length); err != nil {
			return err
		}
		t.write(rackKey(id))
		r.OccupiedUnits = units
		r.OccupiedLength = length
		t.state.racks[id] = r
		rack = r
		return nil
	})
	return rack, err
}

// read runs fn against the transaction's state, or the committed state when
// ctx carries no transaction.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t := txFromContext(ctx); t != nil {
		return fn(&t.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.state)
}

func rackNotFound(id string) error {
	return &domain.Error{Kind: domain.ErrNotFound, Msg: "rack " + id + " not found", Racks: []string{id}}
}
