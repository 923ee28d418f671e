package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/capacity"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

type ApproveInput struct {
	RequestID     string
	RackIDs       []string
	RequiredUnits int
	Notes         string
}

// Allocation is the share of an approved request placed on one rack.
type Allocation struct {
	RackID        string `json:"rack_id"`
	ReservationID string `json:"reservation_id"`
	Units         int    `json:"units"`
	// Applied reports whether the units already count in live occupancy.
	Applied bool `json:"applied"`
}

type ApproveResult struct {
	Success     bool
	RequestID   string
	Reference   string
	Status      domain.RequestStatus
	Period      domain.DateRange
	Allocations []Allocation
	Message     string
}

type requestSummary struct {
	Status          domain.RequestStatus `json:"status"`
	RequiredUnits   int                  `json:"required_units"`
	AssignedRackIDs []string             `json:"assigned_rack_ids,omitempty"`
	AdminNotes      string               `json:"admin_notes,omitempty"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
}

func summarizeRequest(r domain.StorageRequest) requestSummary {
	return requestSummary{
		Status:          r.Status,
		RequiredUnits:   r.RequiredUnits,
		AssignedRackIDs: r.AssignedRackIDs,
		AdminNotes:      r.AdminNotes,
		RejectionReason: r.RejectionReason,
	}
}

func (in ApproveInput) validate() error {
	if in.RequestID == "" {
		return domain.Errorf(domain.ErrInvalidInput, "request id is required")
	}
	if in.RequiredUnits <= 0 {
		return domain.Errorf(domain.ErrInvalidInput, "required units must be positive, got %d", in.RequiredUnits)
	}
	if len(in.RackIDs) == 0 {
		return domain.Errorf(domain.ErrInvalidRack, "at least one rack must be assigned")
	}
	seen := make(map[string]struct{}, len(in.RackIDs))
	for _, id := range in.RackIDs {
		if id == "" {
			return domain.Errorf(domain.ErrInvalidRack, "rack id must not be empty")
		}
		if _, dup := seen[id]; dup {
			return domain.Errorf(domain.ErrInvalidRack, "rack %s is assigned twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Approve reserves the request's units across the named racks for its date
// range and marks it approved. Units are split evenly with the remainder
// going to the first racks in the order given.
func (c *Coordinator) Approve(ctx context.Context, in ApproveInput) (ApproveResult, error) {
	if err := in.validate(); err != nil {
		return ApproveResult{}, err
	}

	var result ApproveResult
	err := c.atomically(ctx, "approve", func(ctx context.Context) error {
		now := c.clock.Now()
		today := domain.Day(now)

		req, err := c.store.GetRequestForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return domain.Errorf(domain.ErrInvalidState, "request %s is %s, only pending requests can be approved", req.ID, req.Status)
		}
		period, err := req.Period()
		if err != nil {
			return err
		}

		racks := make([]domain.Rack, 0, len(in.RackIDs))
		held := make(map[string][]domain.Reservation, len(in.RackIDs))
		avail := make([]int, 0, len(in.RackIDs))
		total := 0
		for _, id := range in.RackIDs {
			rack, err := c.store.GetRackForUpdate(ctx, id)
			if err != nil {
				return asInvalidRack(err, id)
			}
			existing, err := c.store.ListReservationsByRack(ctx, rack.ID)
			if err != nil {
				return err
			}
			free := capacity.Available(rack, existing, period, today)
			racks = append(racks, rack)
			held[rack.ID] = existing
			avail = append(avail, free)
			total += free
		}
		if total < in.RequiredUnits {
			return insufficient(racks, avail, total, in.RequiredUnits)
		}

		shares := capacity.Distribute(in.RequiredUnits, len(racks))
		live := period.ActiveOn(today)
		allocations := make([]Allocation, 0, len(racks))
		for i, rack := range racks {
			if shares[i] > avail[i] {
				return &domain.Error{
					Kind:      domain.ErrCapacityExceeded,
					Msg:       fmt.Sprintf("rack %s has %d units available, %d requested by the even split", rack.ID, avail[i], shares[i]),
					Shortfall: shares[i] - avail[i],
					Racks:     []string{rack.ID},
				}
			}
			res := domain.Reservation{
				ID:               c.newID(),
				RackID:           rack.ID,
				RequestID:        req.ID,
				CompanyID:        req.CompanyID,
				Period:           period,
				ReservedUnits:    shares[i],
				Status:           domain.ReservationActive,
				OccupancyApplied: live,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := capacity.CheckReservation(rack, held[rack.ID], res); err != nil {
				return err
			}
			if err := c.store.CreateReservation(ctx, res); err != nil {
				return err
			}
			if live && shares[i] > 0 {
				if _, err := c.store.ApplyOccupancyDelta(ctx, rack.ID, shares[i], decimal.Zero); err != nil {
					return err
				}
			}
			allocations = append(allocations, Allocation{
				RackID:        rack.ID,
				ReservationID: res.ID,
				Units:         shares[i],
				Applied:       live,
			})
		}

		before := summarizeRequest(req)
		req.Status = domain.RequestApproved
		req.RequiredUnits = in.RequiredUnits
		req.AssignedRackIDs = append([]string(nil), in.RackIDs...)
		req.AdminNotes = in.Notes
		req.ApprovedAt = &now
		req.UpdatedAt = now
		if err := c.store.UpdateRequest(ctx, req); err != nil {
			return err
		}

		if err := c.audit(ctx, domain.ActionApprove, "storage_request", req.ID, before, summarizeRequest(req)); err != nil {
			return err
		}
		if err := c.notify(ctx, domain.NotifyRequestApproved, domain.ChannelEmail, approvalPayload{
			RequestID:    req.ID,
			Reference:    req.Reference,
			CompanyID:    req.CompanyID,
			StorageStart: period.Start,
			StorageEnd:   period.End,
			Allocations:  allocations,
			Notes:        in.Notes,
		}); err != nil {
			return err
		}

		result = ApproveResult{
			Success:     true,
			RequestID:   req.ID,
			Reference:   req.Reference,
			Status:      req.Status,
			Period:      period,
			Allocations: allocations,
			Message:     fmt.Sprintf("request %s approved: %d units on %s", req.Reference, in.RequiredUnits, strings.Join(in.RackIDs, ", ")),
		}
		return nil
	})
	if err != nil {
		return ApproveResult{}, err
	}
	return result, nil
}

type approvalPayload struct {
	RequestID    string       `json:"request_id"`
	Reference    string       `json:"reference"`
	CompanyID    string       `json:"company_id"`
	StorageStart time.Time    `json:"storage_start"`
	StorageEnd   *time.Time   `json:"storage_end,omitempty"`
	Allocations  []Allocation `json:"allocations"`
	Notes        string       `json:"notes,omitempty"`
}

func insufficient(racks []domain.Rack, avail []int, total, required int) error {
	parts := make([]string, 0, len(racks))
	candidates := make([]string, 0, len(racks))
	for i, r := range racks {
		parts = append(parts, fmt.Sprintf("%s (%d)", r.ID, avail[i]))
		candidates = append(candidates, r.ID)
	}
	return &domain.Error{
		Kind: domain.ErrInsufficientCapacity,
		Msg: fmt.Sprintf("racks %s have %d units available, %d requested; short by %d",
			strings.Join(parts, ", "), total, required, required-total),
		Shortfall: required - total,
		Racks:     candidates,
	}
}
