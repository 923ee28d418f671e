package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/Bushels/PipeVault-sub009/internal/inventory"
)

type CompleteOutboundInput struct {
	LoadID      string
	RequestID   string
	CompanyID   string
	ItemIDs     []string
	ActualUnits int
	Notes       string
}

type CompleteOutboundResult struct {
	Success               bool
	LoadID                string
	RequestID             string
	ItemIDs               []string
	Units                 int
	Racks                 []RackState
	CompletedReservations []string
	Message               string
}

// CompleteOutbound hands the selected items to an approved pickup: they move
// to picked up, every rack they sat on is released, and the load goes in
// transit. Reservations whose rack no longer holds anything of the request
// are completed.
func (c *Coordinator) CompleteOutbound(ctx context.Context, in CompleteOutboundInput) (CompleteOutboundResult, error) {
	if in.LoadID == "" || in.RequestID == "" || in.CompanyID == "" {
		return CompleteOutboundResult{}, domain.Errorf(domain.ErrInvalidInput, "load, request and company ids are required")
	}
	itemIDs, err := uniqueIDs(in.ItemIDs)
	if err != nil {
		return CompleteOutboundResult{}, err
	}

	var result CompleteOutboundResult
	err = c.atomically(ctx, "complete_outbound", func(ctx context.Context) error {
		now := c.clock.Now()

		load, req, err := c.ownedLoad(ctx, in.LoadID, in.RequestID, in.CompanyID)
		if err != nil {
			return err
		}
		if load.Direction != domain.DirectionOutbound {
			return domain.Errorf(domain.ErrInvalidState, "load %s is %s, not outbound", load.ID, load.Direction)
		}
		if load.Status != domain.LoadApproved {
			return domain.Errorf(domain.ErrInvalidState, "load %s is %s, only approved pickups can be completed", load.ID, load.Status)
		}

		items, err := c.store.GetItemsForUpdate(ctx, itemIDs)
		if err != nil {
			return err
		}
		if missing := missingItems(itemIDs, items); len(missing) > 0 {
			return domain.Errorf(domain.ErrNotFound, "stored items not found: %s", strings.Join(missing, ", "))
		}

		total := 0
		for _, it := range items {
			if it.CompanyID != in.CompanyID {
				return crossTenant("item %s does not belong to company %s", it.ID, in.CompanyID)
			}
			if it.Status != domain.ItemInStorage {
				return domain.Errorf(domain.ErrInvalidState, "item %s is %s, not in storage", it.ID, it.Status)
			}
			total += it.Quantity
		}
		if total != in.ActualUnits {
			return &domain.Error{
				Kind:      domain.ErrQuantityMismatch,
				Msg:       fmt.Sprintf("selected items total %d units but %d were entered for load %s", total, in.ActualUnits, load.ID),
				Shortfall: in.ActualUnits - total,
			}
		}

		for i := range items {
			items[i].Status = domain.ItemPickedUp
			items[i].OutboundLoadID = &load.ID
			items[i].UpdatedAt = now
		}
		if err := c.store.UpdateItems(ctx, items); err != nil {
			return err
		}

		racks := make([]RackState, 0)
		for _, rel := range inventory.GroupByRack(items) {
			rack, err := c.store.ApplyOccupancyDelta(ctx, rel.RackID, -rel.Units, rel.Length.Neg())
			if err != nil {
				return err
			}
			racks = append(racks, rackState(rack))
		}

		before := summarizeLoad(load)
		load.Status = domain.LoadInTransit
		load.Notes = in.Notes
		load.UpdatedAt = now
		if err := c.store.UpdateLoad(ctx, load); err != nil {
			return err
		}

		completed, err := c.completeDrainedReservations(ctx, req.ID, now)
		if err != nil {
			return err
		}

		if err := c.audit(ctx, domain.ActionCompleteOutbound, "load", load.ID, before, summarizeLoad(load)); err != nil {
			return err
		}
		totals, err := c.requestTotals(ctx, req.ID)
		if err != nil {
			return err
		}
		if err := c.notify(ctx, domain.NotifyOutboundCompleted, domain.ChannelEmail, completionPayload{
			LoadID:    load.ID,
			RequestID: req.ID,
			Reference: req.Reference,
			CompanyID: req.CompanyID,
			Sequence:  load.Sequence,
			Units:     total,
			Racks:     racks,
			Totals:    totals,
		}); err != nil {
			return err
		}

		result = CompleteOutboundResult{
			Success:               true,
			LoadID:                load.ID,
			RequestID:             req.ID,
			ItemIDs:               itemIDs,
			Units:                 total,
			Racks:                 racks,
			CompletedReservations: completed,
			Message:               fmt.Sprintf("pickup %d of %s loaded: %d units from %d rack(s)", load.Sequence, req.Reference, total, len(racks)),
		}
		return nil
	})
	if err != nil {
		return CompleteOutboundResult{}, err
	}
	return result, nil
}

// completeDrainedReservations completes the request's active reservations
// on racks that no longer hold any of its stored items.
func (c *Coordinator) completeDrainedReservations(ctx context.Context, requestID string, now time.Time) ([]string, error) {
	items, err := c.store.ListItemsByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	stocked := make(map[string]bool)
	for _, it := range items {
		if it.Status == domain.ItemInStorage || it.Status == domain.ItemPendingDelivery {
			stocked[it.RackID] = true
		}
	}

	reservations, err := c.store.ListReservationsByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var done []string
	for _, r := range reservations {
		if r.Status != domain.ReservationActive || stocked[r.RackID] {
			continue
		}
		r.Status = domain.ReservationCompleted
		r.UpdatedAt = now
		if err := c.store.UpdateReservation(ctx, r); err != nil {
			return nil, err
		}
		done = append(done, r.ID)
	}
	return done, nil
}

func uniqueIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidInput, "at least one stored item must be selected")
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, domain.Errorf(domain.ErrInvalidInput, "item id must not be empty")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func missingItems(want []string, got []domain.StoredItem) []string {
	found := make(map[string]struct{}, len(got))
	for _, it := range got {
		found[it.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
