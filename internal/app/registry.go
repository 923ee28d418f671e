package app

import (
	"context"
	"fmt"

	"github.com/Bushels/PipeVault-sub009/internal/capacity"
	"github.com/Bushels/PipeVault-sub009/internal/clock"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

// RegistryStore is the persistence the rack registry reads and writes.
type RegistryStore interface {
	Transactor
	RackRepository
	ReservationRepository
}

// RackRegistry serves rack lookups and the occupancy primitive outside the
// workflow operations.
type RackRegistry struct {
	store RegistryStore
	clock clock.Clock
	retry RetryPolicy
}

func NewRackRegistry(store RegistryStore, clk clock.Clock) *RackRegistry {
	return &RackRegistry{store: store, clock: clk, retry: DefaultRetryPolicy}
}

// RackDetail is a rack with its reservations and current headroom.
type RackDetail struct {
	Rack         domain.Rack
	Reservations []domain.Reservation
	// AvailableToday is what a reservation starting and ending today could
	// still take.
	AvailableToday int
}

func (r *RackRegistry) GetRack(ctx context.Context, id string) (RackDetail, error) {
	rack, err := r.store.GetRack(ctx, id)
	if err != nil {
		return RackDetail{}, err
	}
	res, err := r.store.ListReservationsByRack(ctx, id)
	if err != nil {
		return RackDetail{}, err
	}
	today := clock.Today(r.clock)
	window := domain.DateRange{Start: today, End: ptr(today.AddDate(0, 0, 1))}
	return RackDetail{
		Rack:           rack,
		Reservations:   res,
		AvailableToday: capacity.Available(rack, res, window, today),
	}, nil
}

func (r *RackRegistry) ListRacks(ctx context.Context, filter domain.RackFilter) ([]domain.Rack, error) {
	if filter.Mode != "" && !filter.Mode.Valid() {
		return nil, domain.Errorf(domain.ErrInvalidInput, "unknown allocation mode %q", filter.Mode)
	}
	return r.store.ListRacks(ctx, filter)
}

// Availability returns the units rack id can take for the whole window.
func (r *RackRegistry) Availability(ctx context.Context, id string, window domain.DateRange) (int, error) {
	rack, err := r.store.GetRack(ctx, id)
	if err != nil {
		return 0, err
	}
	res, err := r.store.ListReservationsByRack(ctx, id)
	if err != nil {
		return 0, err
	}
	return capacity.Available(rack, res, window, r.clock.Now()), nil
}

// ApplyOccupancyDelta applies one conditional occupancy change in its own
// transaction, retrying lost races.
func (r *RackRegistry) ApplyOccupancyDelta(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error) {
	var rack domain.Rack
	err := r.retry.do(ctx, "apply_occupancy_delta", func() error {
		return r.store.WithTx(ctx, func(ctx context.Context) error {
			var err error
			rack, err = r.store.ApplyOccupancyDelta(ctx, id, units, length)
			return err
		})
	})
	if err != nil {
		return domain.Rack{}, err
	}
	return rack, nil
}

type SeedResult struct {
	Created []string
	Updated []string
}

// SeedRacks creates or updates every rack of the catalog in one transaction.
// Occupancy is kept for existing racks, and a change that would leave the
// rack's reservations or live stock invalid is refused.
func (r *RackRegistry) SeedRacks(ctx context.Context, cat Catalog) (SeedResult, error) {
	racks, err := cat.Racks()
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	err = r.store.WithTx(ctx, func(ctx context.Context) error {
		result = SeedResult{}
		now := r.clock.Now()
		for _, rack := range racks {
			existing, err := r.store.GetRackForUpdate(ctx, rack.ID)
			switch {
			case err == nil:
				if err := r.checkReshape(ctx, existing, rack); err != nil {
					return err
				}
				rack.OccupiedUnits = existing.OccupiedUnits
				rack.OccupiedLength = existing.OccupiedLength
				rack.Version = existing.Version
				result.Updated = append(result.Updated, rack.ID)
			case domain.KindOf(err) == domain.ErrNotFound:
				result.Created = append(result.Created, rack.ID)
			default:
				return err
			}
			rack.UpdatedAt = now
			if err := r.store.UpsertRack(ctx, rack); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}

func (r *RackRegistry) checkReshape(ctx context.Context, old, next domain.Rack) error {
	res, err := r.store.ListReservationsByRack(ctx, old.ID)
	if err != nil {
		return err
	}
	if old.Mode != next.Mode {
		for _, rv := range res {
			if rv.Status == domain.ReservationActive {
				return domain.Errorf(domain.ErrInvalidState,
					"rack %s cannot change from %s to %s while reservation %s is active", old.ID, old.Mode, next.Mode, rv.ID)
			}
		}
	}
	next.OccupiedUnits = old.OccupiedUnits
	next.OccupiedLength = old.OccupiedLength
	if err := capacity.Validate(next, res); err != nil {
		return fmt.Errorf("reshape rack %s: %w", old.ID, err)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
