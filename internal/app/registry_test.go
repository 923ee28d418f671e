package app_test

import (
	"strings"
	"testing"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
racks:
  - zone: a
    area: north
    slots: ["01", "02"]
    name: North row
    mode: additive
    capacity_units: 120
    capacity_length: "1450.5"
  - zone: X
    area: "1"
    slot: "01"
    mode: exclusive
    capacity_units: 1
`

func TestLoadCatalog(t *testing.T) {
	cat, err := app.LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	racks, err := cat.Racks()
	require.NoError(t, err)
	require.Len(t, racks, 3)

	assert.Equal(t, "A-NORTH-01", racks[0].ID)
	assert.Equal(t, "North row 01", racks[0].Name)
	assert.Equal(t, domain.ModeAdditive, racks[0].Mode)
	require.True(t, racks[0].CapacityLength.Valid)
	assert.True(t, racks[0].CapacityLength.Decimal.Equal(decimal.RequireFromString("1450.5")))

	assert.Equal(t, "X-1-01", racks[2].ID)
	assert.Equal(t, "X-1-01", racks[2].Name)
	assert.False(t, racks[2].CapacityLength.Valid)
}

func TestLoadCatalogRejects(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"unknown key":    "racks:\n  - zone: A\n    area: B\n    slot: C\n    colour: red\n",
		"bad mode":       "racks:\n  - zone: A\n    area: B\n    slot: C\n    mode: stacked\n",
		"missing slot":   "racks:\n  - zone: A\n    area: B\n",
		"bad length":     "racks:\n  - zone: A\n    area: B\n    slot: C\n    capacity_length: lots\n",
		"duplicate rack": "racks:\n  - zone: A\n    area: B\n    slots: [C, c]\n",
		"no racks":       "racks: []\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			cat, err := app.LoadCatalog(strings.NewReader(doc))
			if err == nil {
				_, err = cat.Racks()
			}
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSeedRacks(t *testing.T) {
	e := newEnv(t)
	reg := app.NewRackRegistry(e.store, e.clock)

	cat, err := app.LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	res, err := reg.SeedRacks(e.ctx, cat)
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	assert.Empty(t, res.Updated)

	_, err = reg.ApplyOccupancyDelta(e.ctx, "A-NORTH-01", 20, decimal.NewFromInt(240))
	require.NoError(t, err)

	res, err = reg.SeedRacks(e.ctx, cat)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Updated, 3)
	assert.Equal(t, 20, e.occupied("A-NORTH-01"), "reseeding keeps occupancy")

	shrink := cat
	shrink.Entries = append([]app.CatalogEntry(nil), cat.Entries...)
	shrink.Entries[0].CapacityUnits = 10
	_, err = reg.SeedRacks(e.ctx, shrink)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	rack, err := e.store.GetRack(e.ctx, "A-NORTH-01")
	require.NoError(t, err)
	assert.Equal(t, 120, rack.CapacityUnits)
}

func TestSeedRacksBlocksModeChangeWithActiveReservations(t *testing.T) {
	e := newEnv(t)
	reg := app.NewRackRegistry(e.store, e.clock)
	cat, err := app.LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	_, err = reg.SeedRacks(e.ctx, cat)
	require.NoError(t, err)

	e.request("req-1", "acme", domain.RequestPending, 1, daysFromToday(1), nil)
	_, err = e.coord.Approve(e.ctx, app.ApproveInput{RequestID: "req-1", RackIDs: []string{"X-1-01"}, RequiredUnits: 1})
	require.NoError(t, err)

	cat.Entries[1].Mode = "additive"
	_, err = reg.SeedRacks(e.ctx, cat)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRegistryQueries(t *testing.T) {
	e := newEnv(t)
	e.rack("A-1-01", domain.ModeAdditive, 100, 60)
	e.rack("A-1-02", domain.ModeAdditive, 100, 0)
	e.rack("X-1-01", domain.ModeExclusive, 1, 0)
	e.request("req-1", "acme", domain.RequestPending, 30, daysFromToday(5), ptr(daysFromToday(15)))
	_, err := e.coord.Approve(e.ctx, app.ApproveInput{RequestID: "req-1", RackIDs: []string{"A-1-02"}, RequiredUnits: 30})
	require.NoError(t, err)

	reg := app.NewRackRegistry(e.store, e.clock)

	racks, err := reg.ListRacks(e.ctx, domain.RackFilter{Mode: domain.ModeAdditive, MinAvailableUnits: 50})
	require.NoError(t, err)
	require.Len(t, racks, 1)
	assert.Equal(t, "A-1-02", racks[0].ID)

	_, err = reg.ListRacks(e.ctx, domain.RackFilter{Mode: "stacked"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	detail, err := reg.GetRack(e.ctx, "A-1-02")
	require.NoError(t, err)
	assert.Len(t, detail.Reservations, 1)
	assert.Equal(t, 100, detail.AvailableToday)

	detail, err = reg.GetRack(e.ctx, "A-1-01")
	require.NoError(t, err)
	assert.Equal(t, 40, detail.AvailableToday)

	avail, err := reg.Availability(e.ctx, "A-1-02", domain.DateRange{Start: daysFromToday(10), End: ptr(daysFromToday(12))})
	require.NoError(t, err)
	assert.Equal(t, 70, avail)

	_, err = reg.GetRack(e.ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = reg.ApplyOccupancyDelta(e.ctx, "A-1-01", 41, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	_, err = reg.ApplyOccupancyDelta(e.ctx, "A-1-01", -61, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrDataIntegrity)
}
