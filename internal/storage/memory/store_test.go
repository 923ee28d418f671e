package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedRack(t *testing.T, s *Store, id string, mode domain.AllocationMode, capUnits int) {
	t.Helper()
	require.NoError(t, s.UpsertRack(context.Background(), domain.Rack{
		ID:             id,
		Zone:           "A",
		Area:           "1",
		Slot:           id,
		Mode:           mode,
		CapacityUnits:  capUnits,
		CapacityLength: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
	}))
}

func TestApplyOccupancyDelta(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 10)

	rack, err := s.ApplyOccupancyDelta(ctx, "A-1-01", 7, decimal.NewFromInt(70))
	require.NoError(t, err)
	assert.Equal(t, 7, rack.OccupiedUnits)

	_, err = s.ApplyOccupancyDelta(ctx, "A-1-01", 4, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = s.ApplyOccupancyDelta(ctx, "A-1-01", -8, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrDataIntegrity)

	_, err = s.ApplyOccupancyDelta(ctx, "A-1-01", 0, decimal.NewFromInt(931))
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = s.ApplyOccupancyDelta(ctx, "missing", 1, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.GetRack(ctx, "A-1-01")
	require.NoError(t, err)
	assert.Equal(t, 7, got.OccupiedUnits)
	assert.True(t, got.OccupiedLength.Equal(decimal.NewFromInt(70)))
}

func TestWithTxDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 10)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.ApplyOccupancyDelta(ctx, "A-1-01", 5, decimal.Zero); err != nil {
			return err
		}
		require.NoError(t, s.AppendAudit(ctx, domain.AuditEntry{ID: "a1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	rack, err := s.GetRack(ctx, "A-1-01")
	require.NoError(t, err)
	assert.Zero(t, rack.OccupiedUnits)
	assert.Empty(t, s.AuditEntries())
}

func TestConcurrentWritesConflict(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 10)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithTx(ctx, func(ctx context.Context) error {
			if _, err := s.ApplyOccupancyDelta(ctx, "A-1-01", 3, decimal.Zero); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.ApplyOccupancyDelta(ctx, "A-1-01", 2, decimal.Zero)
		return err
	}))
	close(release)

	err := <-done
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.True(t, domain.Retryable(err))

	rack, err := s.GetRack(ctx, "A-1-01")
	require.NoError(t, err)
	assert.Equal(t, 2, rack.OccupiedUnits)
}

func TestCommitValidatesReservations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "X-1-01", domain.ModeExclusive, 1)
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 10)

	end := day("2026-03-01")
	first := domain.Reservation{
		ID: "r1", RackID: "X-1-01", RequestID: "req-1", ReservedUnits: 1,
		Status: domain.ReservationActive, Period: domain.DateRange{Start: day("2026-01-01"), End: &end},
	}
	require.NoError(t, s.CreateReservation(ctx, first))

	clash := first
	clash.ID, clash.RequestID = "r2", "req-2"
	clash.Period.Start = day("2026-02-01")
	err := s.CreateReservation(ctx, clash)
	require.ErrorIs(t, err, domain.ErrOverlapConflict)

	adjacent := clash
	adjacent.ID = "r3"
	adjacent.Period = domain.DateRange{Start: end}
	require.NoError(t, s.CreateReservation(ctx, adjacent))

	big := domain.Reservation{
		ID: "r4", RackID: "A-1-01", RequestID: "req-4", ReservedUnits: 11,
		Status: domain.ReservationActive, Period: domain.DateRange{Start: day("2026-01-01")},
	}
	require.ErrorIs(t, s.CreateReservation(ctx, big), domain.ErrCapacityExceeded)

	res, err := s.ListReservationsByRack(ctx, "X-1-01")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "r1", res[0].ID)
	assert.Equal(t, "r3", res[1].ID)
}

func TestListDueReservations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 100)

	for _, r := range []domain.Reservation{
		{ID: "due", RequestID: "q1", Period: domain.DateRange{Start: day("2026-01-10")}},
		{ID: "future", RequestID: "q2", Period: domain.DateRange{Start: day("2026-02-01")}},
		{ID: "applied", RequestID: "q3", Period: domain.DateRange{Start: day("2026-01-01")}, OccupancyApplied: true},
	} {
		r.RackID = "A-1-01"
		r.ReservedUnits = 5
		r.Status = domain.ReservationActive
		require.NoError(t, s.CreateReservation(ctx, r))
	}

	due, err := s.ListDueReservations(ctx, day("2026-01-15"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)
}

func TestUpdateReservationRefusesFinal(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedRack(t, s, "A-1-01", domain.ModeAdditive, 100)
	r := domain.Reservation{
		ID: "res-1", RackID: "A-1-01", RequestID: "q1", ReservedUnits: 5,
		Status: domain.ReservationActive, Period: domain.DateRange{Start: day("2026-01-10")},
	}
	require.NoError(t, s.CreateReservation(ctx, r))

	r.Status = domain.ReservationCancelled
	require.NoError(t, s.UpdateReservation(ctx, r))

	r.Status = domain.ReservationActive
	require.ErrorIs(t, s.UpdateReservation(ctx, r), domain.ErrInvalidState)
	got, err := s.GetReservationForUpdate(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, got.Status)

	r.ID = "missing"
	require.ErrorIs(t, s.UpdateReservation(ctx, r), domain.ErrNotFound)
}

func TestGetItemsForUpdateSkipsMissing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItems(ctx, []domain.StoredItem{
		{ID: "i2", RequestID: "q1", Quantity: 3},
		{ID: "i1", RequestID: "q1", Quantity: 2},
	}))

	items, err := s.GetItemsForUpdate(ctx, []string{"i1", "nope", "i2"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "i1", items[0].ID)
	assert.Equal(t, "i2", items[1].ID)
}
