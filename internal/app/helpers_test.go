package app_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/clock"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/Bushels/PipeVault-sub009/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func today() time.Time { return domain.Day(now) }

func daysFromToday(n int) time.Time { return today().AddDate(0, 0, n) }

type env struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	clock *clock.Manual
	coord *app.Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	var seq atomic.Int64
	store := memory.NewStore()
	clk := clock.NewManual(now)
	coord := app.NewCoordinator(store, clk,
		app.WithRetryPolicy(app.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
		app.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
	)
	return &env{
		t:     t,
		ctx:   app.WithActor(context.Background(), "admin@yard.test"),
		store: store,
		clock: clk,
		coord: coord,
	}
}

func (e *env) rack(id string, mode domain.AllocationMode, capacity, occupied int) {
	e.t.Helper()
	require.NoError(e.t, e.store.UpsertRack(e.ctx, domain.Rack{
		ID:            id,
		Zone:          "A",
		Area:          "1",
		Slot:          id,
		Name:          id,
		Mode:          mode,
		CapacityUnits: capacity,
	}))
	if occupied > 0 {
		_, err := e.store.SetOccupancy(e.ctx, id, occupied, decimal.NewFromInt(int64(occupied*12)))
		require.NoError(e.t, err)
	}
}

func (e *env) request(id, company string, status domain.RequestStatus, units int, start time.Time, end *time.Time, racks ...string) {
	e.t.Helper()
	require.NoError(e.t, e.store.AddRequest(e.ctx, domain.StorageRequest{
		ID:              id,
		Reference:       "REF-" + id,
		CompanyID:       company,
		Status:          status,
		RequiredUnits:   units,
		StorageStart:    start,
		StorageEnd:      end,
		AssignedRackIDs: racks,
		CreatedAt:       now,
		UpdatedAt:       now,
	}))
}

func (e *env) load(id, requestID, company string, dir domain.LoadDirection, seq int, status domain.LoadStatus, planned int) {
	e.t.Helper()
	require.NoError(e.t, e.store.AddLoad(e.ctx, domain.Load{
		ID:            id,
		RequestID:     requestID,
		CompanyID:     company,
		Direction:     dir,
		Sequence:      seq,
		Status:        status,
		PlannedUnits:  planned,
		PlannedLength: decimal.NewFromInt(int64(planned * 12)),
		UpdatedAt:     now,
	}))
}

func (e *env) occupied(id string) int {
	e.t.Helper()
	r, err := e.store.GetRack(e.ctx, id)
	require.NoError(e.t, err)
	return r.OccupiedUnits
}

func (e *env) reservations(requestID string) []domain.Reservation {
	e.t.Helper()
	res, err := e.store.ListReservationsByRequest(e.ctx, requestID)
	require.NoError(e.t, err)
	return res
}

func (e *env) items(requestID string) []domain.StoredItem {
	e.t.Helper()
	items, err := e.store.ListItemsByRequest(e.ctx, requestID)
	require.NoError(e.t, err)
	return items
}

func ptr[T any](v T) *T { return &v }
