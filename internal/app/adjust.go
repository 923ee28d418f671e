package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

type ManualAdjustInput struct {
	RackID    string
	NewUnits  int
	NewLength decimal.Decimal
	Reason    string
}

type ManualAdjustResult struct {
	Success      bool
	RackID       string
	AdjustmentID string
	Before       RackState
	After        RackState
	Message      string
}

type occupancySummary struct {
	OccupiedUnits  int             `json:"occupied_units"`
	OccupiedLength decimal.Decimal `json:"occupied_length"`
}

// ManualAdjust overwrites a rack's live occupancy to correct drift after a
// physical count. The correction is kept in the adjustment log as well as
// the audit trail.
func (c *Coordinator) ManualAdjust(ctx context.Context, in ManualAdjustInput) (ManualAdjustResult, error) {
	reason := strings.TrimSpace(in.Reason)
	if in.RackID == "" {
		return ManualAdjustResult{}, domain.Errorf(domain.ErrInvalidRack, "rack id is required")
	}
	if n := utf8.RuneCountInString(reason); n < c.minReasonLen {
		return ManualAdjustResult{}, domain.Errorf(domain.ErrInvalidInput,
			"adjustment reason must be at least %d characters, got %d", c.minReasonLen, n)
	}
	if !hasActor(ctx) {
		return ManualAdjustResult{}, domain.Errorf(domain.ErrInvalidInput, "manual adjustments need an identified administrator")
	}
	if in.NewUnits < 0 || in.NewLength.IsNegative() {
		return ManualAdjustResult{}, domain.Errorf(domain.ErrInvalidInput,
			"occupancy must not be negative, got %d units and %s length", in.NewUnits, in.NewLength)
	}

	var result ManualAdjustResult
	err := c.atomically(ctx, "manual_adjust", func(ctx context.Context) error {
		rack, err := c.store.GetRackForUpdate(ctx, in.RackID)
		if err != nil {
			return asInvalidRack(err, in.RackID)
		}
		if !rack.FitsOccupancy(in.NewUnits, in.NewLength) {
			limit := "no length limit"
			if rack.CapacityLength.Valid {
				limit = rack.CapacityLength.Decimal.String() + " length"
			}
			return &domain.Error{
				Kind: domain.ErrCapacityExceeded,
				Msg: fmt.Sprintf("rack %s holds at most %d units and %s, got %d units and %s length",
					rack.ID, rack.CapacityUnits, limit, in.NewUnits, in.NewLength),
				Shortfall: max(in.NewUnits-rack.CapacityUnits, 0),
				Racks:     []string{rack.ID},
			}
		}

		after, err := c.store.SetOccupancy(ctx, rack.ID, in.NewUnits, in.NewLength)
		if err != nil {
			return err
		}

		adj := domain.OccupancyAdjustment{
			ID:        c.newID(),
			RackID:    rack.ID,
			Actor:     ActorFrom(ctx),
			Reason:    reason,
			OldUnits:  rack.OccupiedUnits,
			NewUnits:  after.OccupiedUnits,
			OldLength: rack.OccupiedLength,
			NewLength: after.OccupiedLength,
			CreatedAt: c.clock.Now(),
		}
		if err := c.store.AppendAdjustment(ctx, adj); err != nil {
			return err
		}
		if err := c.audit(ctx, domain.ActionManualAdjust, "rack", rack.ID,
			occupancySummary{rack.OccupiedUnits, rack.OccupiedLength},
			occupancySummary{after.OccupiedUnits, after.OccupiedLength}); err != nil {
			return err
		}

		result = ManualAdjustResult{
			Success:      true,
			RackID:       rack.ID,
			AdjustmentID: adj.ID,
			Before:       rackState(rack),
			After:        rackState(after),
			Message: fmt.Sprintf("rack %s adjusted from %d to %d units",
				rack.ID, rack.OccupiedUnits, after.OccupiedUnits),
		}
		return nil
	})
	if err != nil {
		return ManualAdjustResult{}, err
	}
	return result, nil
}
