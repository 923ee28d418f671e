package memory

import (
	"context"
	"sort"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

func (s *Store) GetRequestForUpdate(ctx context.Context, id string) (domain.StorageRequest, error) {
	var req domain.StorageRequest
	err := s.run(ctx, func(t *tx) error {
		r, ok := t.state.requests[id]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "storage request %s not found", id)
		}
		t.lock(key{kindRequest, id})
		req = r
		return nil
	})
	return req, err
}

func (s *Store) UpdateRequest(ctx context.Context, r domain.StorageRequest) error {
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.state.requests[r.ID]; !ok {
			return domain.Errorf(domain.ErrNotFound, "storage request %s not found", r.ID)
		}
		r.AssignedRackIDs = append([]string(nil), r.AssignedRackIDs...)
		t.write(key{kindRequest, r.ID})
		t.state.requests[r.ID] = r
		return nil
	})
}

func (s *Store) GetLoadForUpdate(ctx context.Context, id string) (domain.Load, error) {
	var load domain.Load
	err := s.run(ctx, func(t *tx) error {
		l, ok := t.state.loads[id]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "load %s not found", id)
		}
		t.lock(key{kindLoad, id})
		load = l
		return nil
	})
	return load, err
}

func (s *Store) ListLoadsByRequest(ctx context.Context, requestID string) ([]domain.Load, error) {
	var out []domain.Load
	err := s.read(ctx, func(st *state) error {
		for _, l := range st.loads {
			if l.RequestID == requestID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction < out[j].Direction
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, err
}

func (s *Store) UpdateLoad(ctx context.Context, l domain.Load) error {
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.state.loads[l.ID]; !ok {
			return domain.Errorf(domain.ErrNotFound, "load %s not found", l.ID)
		}
		t.write(key{kindLoad, l.ID})
		t.state.loads[l.ID] = l
		return nil
	})
}

func (s *Store) GetManifest(ctx context.Context, loadID string) ([]domain.ManifestLine, error) {
	var out []domain.ManifestLine
	err := s.read(ctx, func(st *state) error {
		if lines, ok := st.manifests[loadID]; ok {
			out = append([]domain.ManifestLine(nil), lines...)
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateItems(ctx context.Context, items []domain.StoredItem) error {
	return s.run(ctx, func(t *tx) error {
		for _, it := range items {
			if _, ok := t.state.items[it.ID]; ok {
				return domain.Errorf(domain.ErrInvalidState, "stored item %s already exists", it.ID)
			}
			t.write(key{kindItem, it.ID})
			t.state.items[it.ID] = it
		}
		return nil
	})
}

func (s *Store) GetItemsForUpdate(ctx context.Context, ids []string) ([]domain.StoredItem, error) {
	var out []domain.StoredItem
	err := s.run(ctx, func(t *tx) error {
		for _, id := range ids {
			it, ok := t.state.items[id]
			if !ok {
				continue
			}
			t.lock(key{kindItem, id})
			out = append(out, it)
		}
		return nil
	})
	sortItems(out)
	return out, err
}

func (s *Store) ListItemsByRequest(ctx context.Context, requestID string) ([]domain.StoredItem, error) {
	var out []domain.StoredItem
	err := s.read(ctx, func(st *state) error {
		for _, it := range st.items {
			if it.RequestID == requestID {
				out = append(out, it)
			}
		}
		return nil
	})
	sortItems(out)
	return out, err
}

func (s *Store) UpdateItems(ctx context.Context, items []domain.StoredItem) error {
	return s.run(ctx, func(t *tx) error {
		for _, it := range items {
			if _, ok := t.state.items[it.ID]; !ok {
				return domain.Errorf(domain.ErrNotFound, "stored item %s not found", it.ID)
			}
			t.write(key{kindItem, it.ID})
			t.state.items[it.ID] = it
		}
		return nil
	})
}

func (s *Store) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	return s.run(ctx, func(t *tx) error {
		t.state.audit = append(t.state.audit, e)
		t.appended.audit++
		return nil
	})
}

func (s *Store) AppendAdjustment(ctx context.Context, a domain.OccupancyAdjustment) error {
	return s.run(ctx, func(t *tx) error {
		t.state.adjustments = append(t.state.adjustments, a)
		t.appended.adjustments++
		return nil
	})
}

func (s *Store) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	return s.run(ctx, func(t *tx) error {
		t.state.notifications = append(t.state.notifications, n)
		t.appended.notifications++
		return nil
	})
}

func sortItems(items []domain.StoredItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
