package capacity

import (
	"errors"
	"testing"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func days(n int) time.Time { return day0.AddDate(0, 0, n) }

func period(start int, end *int) domain.DateRange {
	r := domain.DateRange{Start: days(start)}
	if end != nil {
		e := days(*end)
		r.End = &e
	}
	return r
}

func ptr(i int) *int { return &i }

func reservation(id, rack string, units int, p domain.DateRange) domain.Reservation {
	return domain.Reservation{
		ID:            id,
		RackID:        rack,
		RequestID:     "req-" + id,
		ReservedUnits: units,
		Period:        p,
		Status:        domain.ReservationActive,
	}
}

func TestDistribute(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{34, 33, 33}, Distribute(100, 3))
	assert.Equal(t, []int{34, 33, 33}, Distribute(100, 3), "same input, same split")
	assert.Equal(t, []int{5, 5}, Distribute(10, 2))
	assert.Equal(t, []int{1, 1, 0, 0}, Distribute(2, 4))
	assert.Equal(t, []int{7}, Distribute(7, 1))
	assert.Nil(t, Distribute(7, 0))
}

func TestCheckReservation_Exclusive(t *testing.T) {
	t.Parallel()

	rack := domain.Rack{ID: "A-1-01", Mode: domain.ModeExclusive, CapacityUnits: 1}
	existing := []domain.Reservation{reservation("r1", rack.ID, 1, period(0, ptr(10)))}

	t.Run("overlap is rejected", func(t *testing.T) {
		err := CheckReservation(rack, existing, reservation("r2", rack.ID, 1, period(5, ptr(15))))
		require.ErrorIs(t, err, domain.ErrOverlapConflict)

		var de *domain.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, []string{"r1"}, de.Conflicts)
	})

	t.Run("back to back ranges do not conflict", func(t *testing.T) {
		err := CheckReservation(rack, existing, reservation("r2", rack.ID, 1, period(10, ptr(20))))
		require.NoError(t, err)
	})

	t.Run("open ended range conflicts with everything after its start", func(t *testing.T) {
		open := []domain.Reservation{reservation("r1", rack.ID, 1, period(0, nil))}
		err := CheckReservation(rack, open, reservation("r2", rack.ID, 1, period(400, ptr(401))))
		require.ErrorIs(t, err, domain.ErrOverlapConflict)
	})

	t.Run("cancelled reservations are ignored", func(t *testing.T) {
		cancelled := existing[0]
		cancelled.Status = domain.ReservationCancelled
		err := CheckReservation(rack, []domain.Reservation{cancelled}, reservation("r2", rack.ID, 1, period(5, ptr(15))))
		require.NoError(t, err)
	})
}

func TestCheckReservation_Additive(t *testing.T) {
	t.Parallel()

	rack := domain.Rack{ID: "B-2-07", Mode: domain.ModeAdditive, CapacityUnits: 100}
	existing := []domain.Reservation{
		reservation("r1", rack.ID, 60, period(0, ptr(10))),
		reservation("r2", rack.ID, 30, period(10, ptr(20))),
	}

	t.Run("fits under capacity at every instant", func(t *testing.T) {
		require.NoError(t, CheckReservation(rack, existing, reservation("r3", rack.ID, 40, period(5, ptr(15)))))
	})

	t.Run("exceeds capacity where ranges stack", func(t *testing.T) {
		err := CheckReservation(rack, existing, reservation("r3", rack.ID, 41, period(5, ptr(15))))
		require.ErrorIs(t, err, domain.ErrCapacityExceeded)

		var de *domain.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 1, de.Shortfall)
		assert.ElementsMatch(t, []string{"r1", "r2"}, de.Conflicts)
		assert.Contains(t, de.Error(), "40 units available, 41 requested")
	})

	t.Run("second active reservation for the same request is refused", func(t *testing.T) {
		dup := reservation("r9", rack.ID, 1, period(30, ptr(31)))
		dup.RequestID = existing[0].RequestID
		err := CheckReservation(rack, existing, dup)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestPeakUnits(t *testing.T) {
	t.Parallel()

	res := []domain.Reservation{
		reservation("a", "r", 10, period(0, ptr(5))),
		reservation("b", "r", 20, period(5, ptr(10))),
		reservation("c", "r", 5, period(3, nil)),
	}
	assert.Equal(t, 25, PeakUnits(res, period(0, nil)))
	assert.Equal(t, 15, PeakUnits(res, period(0, ptr(5))))
	assert.Equal(t, 10, PeakUnits(res, period(0, ptr(3))))
	assert.Equal(t, 5, PeakUnits(res, period(10, ptr(12))))
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	today := days(0)

	t.Run("live occupancy without reservations counts today", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 100, OccupiedUnits: 95}
		assert.Equal(t, 5, Available(rack, nil, period(0, ptr(30)), today))
	})

	t.Run("future window ignores live occupancy", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 100, OccupiedUnits: 95}
		assert.Equal(t, 100, Available(rack, nil, period(10, ptr(30)), today))
	})

	t.Run("reservations already counted in occupancy are not counted twice", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 100, OccupiedUnits: 80}
		res := []domain.Reservation{reservation("a", "R", 80, period(-5, ptr(30)))}
		assert.Equal(t, 20, Available(rack, res, period(0, ptr(30)), today))
	})

	t.Run("exclusive rack is all or nothing", func(t *testing.T) {
		rack := domain.Rack{ID: "X", Mode: domain.ModeExclusive, CapacityUnits: 50}
		assert.Equal(t, 50, Available(rack, nil, period(0, ptr(3)), today))
		res := []domain.Reservation{reservation("a", "X", 1, period(2, ptr(4)))}
		assert.Equal(t, 0, Available(rack, res, period(0, ptr(3)), today))
		assert.Equal(t, 50, Available(rack, res, period(4, ptr(8)), today))
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("occupancy above capacity", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 10, OccupiedUnits: 11}
		require.ErrorIs(t, Validate(rack, nil), domain.ErrCapacityExceeded)
	})

	t.Run("negative occupancy is an integrity failure", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 10, OccupiedUnits: -1}
		require.ErrorIs(t, Validate(rack, nil), domain.ErrDataIntegrity)
	})

	t.Run("overlapping exclusive reservations", func(t *testing.T) {
		rack := domain.Rack{ID: "X", Mode: domain.ModeExclusive, CapacityUnits: 1}
		res := []domain.Reservation{
			reservation("a", "X", 1, period(0, ptr(5))),
			reservation("b", "X", 1, period(4, ptr(8))),
		}
		require.ErrorIs(t, Validate(rack, res), domain.ErrOverlapConflict)
	})

	t.Run("stacked additive reservations over capacity", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 10}
		res := []domain.Reservation{
			reservation("a", "R", 6, period(0, ptr(5))),
			reservation("b", "R", 3, period(2, ptr(8))),
			reservation("c", "R", 2, period(4, ptr(6))),
		}
		require.ErrorIs(t, Validate(rack, res), domain.ErrCapacityExceeded)
	})

	t.Run("consistent state passes", func(t *testing.T) {
		rack := domain.Rack{ID: "R", Mode: domain.ModeAdditive, CapacityUnits: 10, OccupiedUnits: 9}
		res := []domain.Reservation{
			reservation("a", "R", 6, period(0, ptr(5))),
			reservation("b", "R", 4, period(5, ptr(8))),
		}
		require.NoError(t, Validate(rack, res))
	})
}
