package app

import (
	"context"
	"fmt"

	"github.com/Bushels/PipeVault-sub009/internal/clock"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type ActivateResult struct {
	Day       string
	Activated []string
	Failed    []string
	Message   string
}

type activationSummary struct {
	OccupancyApplied bool `json:"occupancy_applied"`
	ReservedUnits    int  `json:"reserved_units"`
}

// ActivateDue books the units of every active reservation whose start date
// has arrived onto its rack. Each reservation is applied in its own
// transaction so one full rack does not hold back the others; the failures
// are returned together.
func (c *Coordinator) ActivateDue(ctx context.Context) (ActivateResult, error) {
	today := clock.Today(c.clock)
	due, err := c.store.ListDueReservations(ctx, today)
	if err != nil {
		return ActivateResult{}, fmt.Errorf("list due reservations: %w", err)
	}

	result := ActivateResult{Day: today.Format("2006-01-02")}
	var errs error
	for _, r := range due {
		applied, err := c.activate(ctx, r.ID)
		if err != nil {
			result.Failed = append(result.Failed, r.ID)
			errs = multierr.Append(errs, fmt.Errorf("reservation %s: %w", r.ID, err))
			continue
		}
		if applied {
			result.Activated = append(result.Activated, r.ID)
		}
	}
	result.Message = fmt.Sprintf("%d reservation(s) activated, %d failed", len(result.Activated), len(result.Failed))
	return result, errs
}

func (c *Coordinator) activate(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := c.atomically(ctx, "activate", func(ctx context.Context) error {
		applied = false
		today := clock.Today(c.clock)

		r, err := c.store.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Another run may have got here first.
		if r.Status != domain.ReservationActive || r.OccupancyApplied || !r.Period.ActiveOn(today) {
			return nil
		}
		if _, err := c.store.GetRackForUpdate(ctx, r.RackID); err != nil {
			return asInvalidRack(err, r.RackID)
		}
		if r.ReservedUnits > 0 {
			if _, err := c.store.ApplyOccupancyDelta(ctx, r.RackID, r.ReservedUnits, decimal.Zero); err != nil {
				return err
			}
		}

		before := activationSummary{OccupancyApplied: false, ReservedUnits: r.ReservedUnits}
		r.OccupancyApplied = true
		r.UpdatedAt = c.clock.Now()
		if err := c.store.UpdateReservation(ctx, r); err != nil {
			return err
		}
		if err := c.audit(ctx, domain.ActionActivate, "reservation", r.ID, before,
			activationSummary{OccupancyApplied: true, ReservedUnits: r.ReservedUnits}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
