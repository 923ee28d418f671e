package app

import (
	"context"
	"strings"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

type RejectInput struct {
	RequestID string
	Reason    string
}

type RejectResult struct {
	Success   bool
	RequestID string
	Reference string
	Status    domain.RequestStatus
	Message   string
}

// Reject closes a pending request without touching any rack.
func (c *Coordinator) Reject(ctx context.Context, in RejectInput) (RejectResult, error) {
	reason := strings.TrimSpace(in.Reason)
	if in.RequestID == "" {
		return RejectResult{}, domain.Errorf(domain.ErrInvalidInput, "request id is required")
	}
	if reason == "" {
		return RejectResult{}, domain.Errorf(domain.ErrInvalidInput, "a rejection reason is required")
	}

	var result RejectResult
	err := c.atomically(ctx, "reject", func(ctx context.Context) error {
		now := c.clock.Now()

		req, err := c.store.GetRequestForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return domain.Errorf(domain.ErrInvalidState, "request %s is %s, only pending requests can be rejected", req.ID, req.Status)
		}

		before := summarizeRequest(req)
		req.Status = domain.RequestRejected
		req.RejectionReason = reason
		req.RejectedAt = &now
		req.UpdatedAt = now
		if err := c.store.UpdateRequest(ctx, req); err != nil {
			return err
		}

		if err := c.audit(ctx, domain.ActionReject, "storage_request", req.ID, before, summarizeRequest(req)); err != nil {
			return err
		}
		if err := c.notify(ctx, domain.NotifyRequestRejected, domain.ChannelEmail, map[string]string{
			"request_id": req.ID,
			"reference":  req.Reference,
			"company_id": req.CompanyID,
			"reason":     reason,
		}); err != nil {
			return err
		}

		result = RejectResult{
			Success:   true,
			RequestID: req.ID,
			Reference: req.Reference,
			Status:    req.Status,
			Message:   "request " + req.Reference + " rejected",
		}
		return nil
	})
	if err != nil {
		return RejectResult{}, err
	}
	return result, nil
}
