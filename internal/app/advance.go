package app

import (
	"context"
	"fmt"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

type AdvanceLoadInput struct {
	LoadID string
	To     domain.LoadStatus
	Notes  string
}

type AdvanceLoadResult struct {
	Success bool
	LoadID  string
	From    domain.LoadStatus
	To      domain.LoadStatus
	// Delivered lists items marked delivered when a pickup reached its
	// destination.
	Delivered []string
	Message   string
}

// AdvanceLoad moves a load one step along new, approved, in transit and
// completed. Inbound completion carries inventory and occupancy, so it is
// only reachable through CompleteInbound; pickups leave storage through
// CompleteOutbound.
func (c *Coordinator) AdvanceLoad(ctx context.Context, in AdvanceLoadInput) (AdvanceLoadResult, error) {
	if in.LoadID == "" {
		return AdvanceLoadResult{}, domain.Errorf(domain.ErrInvalidInput, "load id is required")
	}

	var result AdvanceLoadResult
	err := c.atomically(ctx, "advance_load", func(ctx context.Context) error {
		now := c.clock.Now()

		load, err := c.store.GetLoadForUpdate(ctx, in.LoadID)
		if err != nil {
			return err
		}
		from := load.Status
		if !from.CanAdvanceTo(in.To) {
			return domain.Errorf(domain.ErrInvalidState, "load %s cannot move from %s to %s", load.ID, from, in.To)
		}
		switch {
		case load.Direction == domain.DirectionInbound && in.To == domain.LoadCompleted:
			return domain.Errorf(domain.ErrInvalidState, "inbound load %s is completed by recording its delivery", load.ID)
		case load.Direction == domain.DirectionOutbound && in.To == domain.LoadInTransit:
			return domain.Errorf(domain.ErrInvalidState, "pickup %s goes in transit by recording the items loaded", load.ID)
		}

		var delivered []string
		if load.Direction == domain.DirectionOutbound && in.To == domain.LoadCompleted {
			delivered, err = c.deliverPickup(ctx, load)
			if err != nil {
				return err
			}
			load.CompletedAt = &now
		}

		before := summarizeLoad(load)
		load.Status = in.To
		if in.Notes != "" {
			load.Notes = in.Notes
		}
		load.UpdatedAt = now
		if err := c.store.UpdateLoad(ctx, load); err != nil {
			return err
		}
		if err := c.audit(ctx, domain.ActionAdvanceLoad, "load", load.ID, before, summarizeLoad(load)); err != nil {
			return err
		}

		result = AdvanceLoadResult{
			Success:   true,
			LoadID:    load.ID,
			From:      from,
			To:        in.To,
			Delivered: delivered,
			Message:   fmt.Sprintf("load %s moved from %s to %s", load.ID, from, in.To),
		}
		return nil
	})
	if err != nil {
		return AdvanceLoadResult{}, err
	}
	return result, nil
}

// deliverPickup marks the items that left on load as delivered.
func (c *Coordinator) deliverPickup(ctx context.Context, load domain.Load) ([]string, error) {
	items, err := c.store.ListItemsByRequest(ctx, load.RequestID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, it := range items {
		if it.OutboundLoadID != nil && *it.OutboundLoadID == load.ID && it.Status == domain.ItemPickedUp {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	locked, err := c.store.GetItemsForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	for i := range locked {
		locked[i].Status = domain.ItemDelivered
		locked[i].UpdatedAt = now
	}
	if err := c.store.UpdateItems(ctx, locked); err != nil {
		return nil, err
	}
	return ids, nil
}
