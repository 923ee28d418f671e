package postgres

import (
	"context"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

func (s *Store) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	const insert = `
INSERT INTO audit_entries (id, actor, action, entity_type, entity_id, before, after, created_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)`

	_, err := s.exec(ctx, insert, e.ID, e.Actor, e.Action, e.EntityType, e.EntityID,
		jsonText(e.Before), jsonText(e.After), e.CreatedAt)
	return mapError(err, "append audit entry")
}

func (s *Store) AppendAdjustment(ctx context.Context, a domain.OccupancyAdjustment) error {
	const insert = `
INSERT INTO occupancy_adjustments (id, rack_id, actor, reason, old_units, new_units, old_length, new_length, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9)`

	_, err := s.exec(ctx, insert, a.ID, a.RackID, a.Actor, a.Reason, a.OldUnits, a.NewUnits,
		num(a.OldLength), num(a.NewLength), a.CreatedAt)
	return mapError(err, "append occupancy adjustment")
}

func (s *Store) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	const insert = `
INSERT INTO notifications (id, type, channel, payload, status, attempts, max_attempts, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)`

	status := n.Status
	if status == "" {
		status = domain.NotificationPending
	}
	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultNotificationAttempts
	}
	payload := string(n.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.exec(ctx, insert, n.ID, n.Type, n.Channel, payload, status, n.Attempts, maxAttempts, n.CreatedAt)
	return mapError(err, "enqueue notification")
}
