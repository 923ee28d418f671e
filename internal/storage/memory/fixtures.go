package memory

import (
	"context"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

// The methods below load the records that upstream flows create (requests,
// loads, manifests) and expose the append-only logs for inspection.

func (s *Store) AddRequest(ctx context.Context, r domain.StorageRequest) error {
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.state.requests[r.ID]; ok {
			return domain.Errorf(domain.ErrInvalidState, "storage request %s already exists", r.ID)
		}
		t.write(key{kindRequest, r.ID})
		t.state.requests[r.ID] = r
		return nil
	})
}

func (s *Store) AddLoad(ctx context.Context, l domain.Load) error {
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.state.loads[l.ID]; ok {
			return domain.Errorf(domain.ErrInvalidState, "load %s already exists", l.ID)
		}
		t.write(key{kindLoad, l.ID})
		t.state.loads[l.ID] = l
		return nil
	})
}

// SetManifest stores the extracted manifest of a load. It is not versioned:
// manifests are written before a load can be completed.
func (s *Store) SetManifest(loadID string, lines []domain.ManifestLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.manifests[loadID] = append([]domain.ManifestLine(nil), lines...)
}

func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.state.audit...)
}

func (s *Store) Adjustments() []domain.OccupancyAdjustment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OccupancyAdjustment(nil), s.state.adjustments...)
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.state.notifications...)
}

func (s *Store) Request(id string) (domain.StorageRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	return r, ok
}

func (s *Store) Load(id string) (domain.Load, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.loads[id]
	return l, ok
}
