// Package memory provides an in-process implementation of the storage used by
// the coordinator, for tests and single-node runs without Postgres.
//
// Each transaction works on a private copy of the state. Commit checks the
// version of every entity the transaction locked or wrote; if another commit
// changed one of them first the transaction fails with domain.ErrConflict.
// Otherwise the writes are merged and every touched rack is re-validated
// against the capacity rules before the new state becomes visible.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/capacity"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

var _ app.Store = (*Store)(nil)

type state struct {
	racks         map[string]domain.Rack
	reservations  map[string]domain.Reservation
	requests      map[string]domain.StorageRequest
	loads         map[string]domain.Load
	items         map[string]domain.StoredItem
	manifests     map[string][]domain.ManifestLine
	audit         []domain.AuditEntry
	adjustments   []domain.OccupancyAdjustment
	notifications []domain.Notification
	versions      map[string]int64
}

func newState() state {
	return state{
		racks:        make(map[string]domain.Rack),
		reservations: make(map[string]domain.Reservation),
		requests:     make(map[string]domain.StorageRequest),
		loads:        make(map[string]domain.Load),
		items:        make(map[string]domain.StoredItem),
		manifests:    make(map[string][]domain.ManifestLine),
		versions:     make(map[string]int64),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.racks {
		c.racks[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.requests {
		v.AssignedRackIDs = append([]string(nil), v.AssignedRackIDs...)
		c.requests[k] = v
	}
	for k, v := range s.loads {
		c.loads[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.manifests {
		c.manifests[k] = append([]domain.ManifestLine(nil), v...)
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	c.audit = append([]domain.AuditEntry(nil), s.audit...)
	c.adjustments = append([]domain.OccupancyAdjustment(nil), s.adjustments...)
	c.notifications = append([]domain.Notification(nil), s.notifications...)
	return c
}

func (s state) reservationsOf(rackID string) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.RackID == rackID {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type entityKind string

const (
	kindRack        entityKind = "rack"
	kindReservation entityKind = "reservation"
	kindRequest     entityKind = "request"
	kindLoad        entityKind = "load"
	kindItem        entityKind = "item"
)

type key struct {
	kind entityKind
	id   string
}

// tx is one unit of work. observed holds the version of each locked or
// written entity as it was in the snapshot.
type tx struct {
	state    state
	observed map[key]int64
	written  map[key]struct{}
	appended appendCounts
}

type appendCounts struct{ audit, adjustments, notifications int }

type txKey struct{}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTx runs fn in a transaction. A ctx that already carries one is reused.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	t := s.begin()
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) begin() *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &tx{
		state:    s.state.clone(),
		observed: make(map[key]int64),
		written:  make(map[key]struct{}),
	}
}

// run executes fn in the caller's transaction or, outside one, in its own.
func (s *Store) run(ctx context.Context, fn func(t *tx) error) error {
	if t := txFromContext(ctx); t != nil {
		return fn(t)
	}
	t := s.begin()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (t *tx) lock(k key) {
	if _, ok := t.observed[k]; !ok {
		t.observed[k] = t.state.versions[versionKey(k)]
	}
}

func (t *tx) write(k key) {
	t.lock(k)
	t.written[k] = struct{}{}
}

func versionKey(k key) string {
	return string(k.kind) + "/" + k.id
}

func (s *Store) commit(t *tx) error {
	if len(t.written) == 0 && t.appended == (appendCounts{}) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range t.observed {
		if s.state.versions[versionKey(k)] != v {
			return domain.Errorf(domain.ErrConflict, "%s %s was changed by a concurrent transaction", k.kind, k.id)
		}
	}

	next := s.state.clone()
	touchedRacks := make(map[string]struct{})
	for k := range t.written {
		vk := versionKey(k)
		next.versions[vk]++
		switch k.kind {
		case kindRack:
			r := t.state.racks[k.id]
			r.Version = next.versions[vk]
			next.racks[k.id] = r
			touchedRacks[k.id] = struct{}{}
		case kindReservation:
			r := t.state.reservations[k.id]
			next.reservations[k.id] = r
			touchedRacks[r.RackID] = struct{}{}
		case kindRequest:
			next.requests[k.id] = t.state.requests[k.id]
		case kindLoad:
			next.loads[k.id] = t.state.loads[k.id]
		case kindItem:
			next.items[k.id] = t.state.items[k.id]
		}
	}
	next.audit = append(next.audit, t.state.audit[len(t.state.audit)-t.appended.audit:]...)
	next.adjustments = append(next.adjustments, t.state.adjustments[len(t.state.adjustments)-t.appended.adjustments:]...)
	next.notifications = append(next.notifications, t.state.notifications[len(t.state.notifications)-t.appended.notifications:]...)

	ids := make([]string, 0, len(touchedRacks))
	for id := range touchedRacks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rack, ok := next.racks[id]
		if !ok {
			return domain.Errorf(domain.ErrDataIntegrity, "reservation references unknown rack %s", id)
		}
		if err := capacity.Validate(rack, next.reservationsOf(id)); err != nil {
			return err
		}
	}

	s.state = next
	return nil
}

func sortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Period.Start.Equal(rs[j].Period.Start) {
			return rs[i].Period.Start.Before(rs[j].Period.Start)
		}
		return rs[i].ID < rs[j].ID
	})
}
