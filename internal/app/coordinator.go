package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Bushels/PipeVault-sub009/internal/clock"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

// Workflow is the set of atomic multi-step operations administrators run
// against racks, requests and loads.
type Workflow interface {
	Approve(ctx context.Context, in ApproveInput) (ApproveResult, error)
	Reject(ctx context.Context, in RejectInput) (RejectResult, error)
	CompleteInbound(ctx context.Context, in CompleteInboundInput) (CompleteInboundResult, error)
	CompleteOutbound(ctx context.Context, in CompleteOutboundInput) (CompleteOutboundResult, error)
	ManualAdjust(ctx context.Context, in ManualAdjustInput) (ManualAdjustResult, error)
	AdvanceLoad(ctx context.Context, in AdvanceLoadInput) (AdvanceLoadResult, error)
	ActivateDue(ctx context.Context) (ActivateResult, error)
}

var _ Workflow = (*Coordinator)(nil)

// Coordinator runs each workflow operation as one transaction: every
// reservation, occupancy, inventory, audit and outbox write commits together
// or not at all.
type Coordinator struct {
	store        Store
	clock        clock.Clock
	retry        RetryPolicy
	minReasonLen int
	newID        func() string
}

const defaultMinAdjustReason = 10

type CoordinatorOption func(*Coordinator)

// WithRetryPolicy overrides the bounded retry applied to concurrency conflicts.
func WithRetryPolicy(p RetryPolicy) CoordinatorOption {
	return func(c *Coordinator) {
		c.retry = p.normalized()
	}
}

// WithMinAdjustReason sets the minimum justification length for manual
// occupancy corrections.
func WithMinAdjustReason(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.minReasonLen = n
		}
	}
}

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func NewCoordinator(store Store, clk clock.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:        store,
		clock:        clk,
		retry:        DefaultRetryPolicy,
		minReasonLen: defaultMinAdjustReason,
		newID:        newUUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// atomically runs fn in a transaction, replaying it on optimistic conflicts.
func (c *Coordinator) atomically(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := c.retry.do(ctx, op, func() error {
		return c.store.WithTx(ctx, fn)
	})
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Op == "" {
		return de.WithOp(op)
	}
	return err
}

func (c *Coordinator) audit(ctx context.Context, action domain.AuditAction, entityType, entityID string, before, after any) error {
	b, err := marshalSummary(before)
	if err != nil {
		return err
	}
	a, err := marshalSummary(after)
	if err != nil {
		return err
	}
	return c.store.AppendAudit(ctx, domain.AuditEntry{
		ID:         c.newID(),
		Actor:      ActorFrom(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     b,
		After:      a,
		CreatedAt:  c.clock.Now(),
	})
}

func (c *Coordinator) notify(ctx context.Context, typ domain.NotificationType, channel domain.NotificationChannel, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", typ, err)
	}
	return c.store.EnqueueNotification(ctx, domain.Notification{
		ID:          c.newID(),
		Type:        typ,
		Channel:     channel,
		Payload:     raw,
		Status:      domain.NotificationPending,
		MaxAttempts: domain.DefaultNotificationAttempts,
		CreatedAt:   c.clock.Now(),
	})
}

func marshalSummary(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit summary: %w", err)
	}
	return raw, nil
}

// asInvalidRack turns a missing rack into ErrInvalidRack.
func asInvalidRack(err error, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Error{
			Kind:  domain.ErrInvalidRack,
			Msg:   "unknown rack " + id,
			Racks: []string{id},
		}
	}
	return err
}

func crossTenant(format string, args ...any) error {
	return domain.Errorf(domain.ErrCrossTenant, format, args...)
}
