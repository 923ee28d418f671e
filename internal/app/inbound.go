package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/Bushels/PipeVault-sub009/internal/inventory"
	"github.com/shopspring/decimal"
)

type CompleteInboundInput struct {
	LoadID      string
	RequestID   string
	CompanyID   string
	RackID      string
	ActualUnits int
	Notes       string
}

// RackState is the occupancy of a rack after an operation.
type RackState struct {
	RackID         string          `json:"rack_id"`
	OccupiedUnits  int             `json:"occupied_units"`
	CapacityUnits  int             `json:"capacity_units"`
	OccupiedLength decimal.Decimal `json:"occupied_length"`
}

func rackState(r domain.Rack) RackState {
	return RackState{
		RackID:         r.ID,
		OccupiedUnits:  r.OccupiedUnits,
		CapacityUnits:  r.CapacityUnits,
		OccupiedLength: r.OccupiedLength,
	}
}

type CompleteInboundResult struct {
	Success      bool
	LoadID       string
	RequestID    string
	ItemIDs      []string
	FromManifest bool
	Units        int
	Length       decimal.Decimal
	Rack         RackState
	Totals       inventory.Totals
	Message      string
}

type loadSummary struct {
	Status         domain.LoadStatus `json:"status"`
	CompletedUnits *int              `json:"completed_units,omitempty"`
	RackID         string            `json:"rack_id,omitempty"`
}

func summarizeLoad(l domain.Load) loadSummary {
	return loadSummary{Status: l.Status, CompletedUnits: l.CompletedUnits, RackID: l.RackID}
}

// CompleteInbound records a delivery: it reconciles the count against the
// manifest, stores the items, completes the load and books the units onto
// the rack. A manifest mismatch or a full rack undoes all of it.
func (c *Coordinator) CompleteInbound(ctx context.Context, in CompleteInboundInput) (CompleteInboundResult, error) {
	if in.LoadID == "" || in.RequestID == "" || in.CompanyID == "" || in.RackID == "" {
		return CompleteInboundResult{}, domain.Errorf(domain.ErrInvalidInput, "load, request, company and rack ids are required")
	}

	var result CompleteInboundResult
	err := c.atomically(ctx, "complete_inbound", func(ctx context.Context) error {
		now := c.clock.Now()

		load, req, err := c.ownedLoad(ctx, in.LoadID, in.RequestID, in.CompanyID)
		if err != nil {
			return err
		}
		if load.Direction != domain.DirectionInbound {
			return domain.Errorf(domain.ErrInvalidState, "load %s is %s, not inbound", load.ID, load.Direction)
		}
		if load.Status == domain.LoadCompleted {
			return domain.Errorf(domain.ErrInvalidState, "load %s is already completed", load.ID)
		}
		if !load.Status.CanAdvanceTo(domain.LoadCompleted) {
			return domain.Errorf(domain.ErrInvalidState, "load %s is %s and must be in transit before completion", load.ID, load.Status)
		}
		if req.Status != domain.RequestApproved {
			return domain.Errorf(domain.ErrInvalidState, "request %s is %s, deliveries need an approved request", req.ID, req.Status)
		}

		rack, err := c.store.GetRack(ctx, in.RackID)
		if err != nil {
			return asInvalidRack(err, in.RackID)
		}
		if err := c.checkRackAllocated(ctx, req, rack.ID); err != nil {
			return err
		}

		manifest, err := c.store.GetManifest(ctx, load.ID)
		if err != nil {
			return err
		}
		receipt, err := inventory.Reconcile(inventory.ReceiptInput{
			Load:        load,
			RequestRef:  req.Reference,
			RackID:      rack.ID,
			ActualUnits: in.ActualUnits,
			Manifest:    manifest,
			ReceivedAt:  now,
			NewID:       c.newID,
		})
		if err != nil {
			return err
		}
		if err := c.store.CreateItems(ctx, receipt.Items); err != nil {
			return err
		}

		before := summarizeLoad(load)
		actual := in.ActualUnits
		load.Status = domain.LoadCompleted
		load.CompletedUnits = &actual
		load.CompletedAt = &now
		load.RackID = rack.ID
		load.Notes = in.Notes
		load.UpdatedAt = now
		if err := c.store.UpdateLoad(ctx, load); err != nil {
			return err
		}

		rack, err = c.store.ApplyOccupancyDelta(ctx, rack.ID, receipt.Units, receipt.Length)
		if err != nil {
			return err
		}

		totals, err := c.requestTotals(ctx, req.ID)
		if err != nil {
			return err
		}

		if err := c.audit(ctx, domain.ActionCompleteInbound, "load", load.ID, before, summarizeLoad(load)); err != nil {
			return err
		}
		if err := c.notify(ctx, domain.NotifyInboundCompleted, domain.ChannelEmail, completionPayload{
			LoadID:    load.ID,
			RequestID: req.ID,
			Reference: req.Reference,
			CompanyID: req.CompanyID,
			Sequence:  load.Sequence,
			Units:     receipt.Units,
			Rack:      rackState(rack),
			Totals:    totals,
		}); err != nil {
			return err
		}

		ids := make([]string, 0, len(receipt.Items))
		for _, it := range receipt.Items {
			ids = append(ids, it.ID)
		}
		result = CompleteInboundResult{
			Success:      true,
			LoadID:       load.ID,
			RequestID:    req.ID,
			ItemIDs:      ids,
			FromManifest: receipt.FromManifest,
			Units:        receipt.Units,
			Length:       receipt.Length,
			Rack:         rackState(rack),
			Totals:       totals,
			Message: fmt.Sprintf("load %d of %s received: %d units on rack %s (%d/%d occupied)",
				load.Sequence, req.Reference, receipt.Units, rack.ID, rack.OccupiedUnits, rack.CapacityUnits),
		}
		return nil
	})
	if err != nil {
		return CompleteInboundResult{}, err
	}
	return result, nil
}

type completionPayload struct {
	LoadID    string           `json:"load_id"`
	RequestID string           `json:"request_id"`
	Reference string           `json:"reference"`
	CompanyID string           `json:"company_id"`
	Sequence  int              `json:"sequence"`
	Units     int              `json:"units"`
	Rack      RackState        `json:"rack"`
	Racks     []RackState      `json:"racks,omitempty"`
	Totals    inventory.Totals `json:"totals"`
}

// ownedLoad loads a load and its request for update and checks that the load
// belongs to the request and the request to the company.
// checkRackAllocated refuses a delivery onto a rack the request was not
// given at approval, so stock cannot land on another company's rack.
func (c *Coordinator) checkRackAllocated(ctx context.Context, req domain.StorageRequest, rackID string) error {
	if slices.Contains(req.AssignedRackIDs, rackID) {
		return nil
	}
	held, err := c.store.ListReservationsByRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	for _, r := range held {
		if r.RackID == rackID && r.Status == domain.ReservationActive {
			return nil
		}
	}
	return &domain.Error{
		Kind:  domain.ErrInvalidRack,
		Msg:   fmt.Sprintf("rack %s is not allocated to request %s", rackID, req.ID),
		Racks: []string{rackID},
	}
}

func (c *Coordinator) ownedLoad(ctx context.Context, loadID, requestID, companyID string) (domain.Load, domain.StorageRequest, error) {
	load, err := c.store.GetLoadForUpdate(ctx, loadID)
	if err != nil {
		return domain.Load{}, domain.StorageRequest{}, err
	}
	if load.RequestID != requestID {
		return domain.Load{}, domain.StorageRequest{}, crossTenant("load %s does not belong to request %s", loadID, requestID)
	}
	req, err := c.store.GetRequestForUpdate(ctx, requestID)
	if err != nil {
		return domain.Load{}, domain.StorageRequest{}, err
	}
	if req.CompanyID != companyID {
		return domain.Load{}, domain.StorageRequest{}, crossTenant("request %s does not belong to company %s", requestID, companyID)
	}
	return load, req, nil
}

func (c *Coordinator) requestTotals(ctx context.Context, requestID string) (inventory.Totals, error) {
	loads, err := c.store.ListLoadsByRequest(ctx, requestID)
	if err != nil {
		return inventory.Totals{}, err
	}
	items, err := c.store.ListItemsByRequest(ctx, requestID)
	if err != nil {
		return inventory.Totals{}, err
	}
	return inventory.Summarize(loads, items), nil
}
