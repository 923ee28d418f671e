package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type AuditAction string

const (
	ActionApprove          AuditAction = "request.approve"
	ActionReject           AuditAction = "request.reject"
	ActionCompleteInbound  AuditAction = "load.complete_inbound"
	ActionCompleteOutbound AuditAction = "load.complete_outbound"
	ActionAdvanceLoad      AuditAction = "load.advance"
	ActionManualAdjust     AuditAction = "rack.manual_adjust"
	ActionActivate         AuditAction = "reservation.activate"
)

// AuditEntry is an immutable record of a state-changing workflow action.
// Before and After hold JSON summaries of the target entity.
type AuditEntry struct {
	ID         string
	Actor      string
	Action     AuditAction
	EntityType string
	EntityID   string
	Before     json.RawMessage
	After      json.RawMessage
	CreatedAt  time.Time
}

// OccupancyAdjustment records a manual occupancy correction on a rack.
type OccupancyAdjustment struct {
	ID        string
	RackID    string
	Actor     string
	Reason    string
	OldUnits  int
	NewUnits  int
	OldLength decimal.Decimal
	NewLength decimal.Decimal
	CreatedAt time.Time
}

type NotificationType string

const (
	NotifyRequestApproved   NotificationType = "request_approved"
	NotifyRequestRejected   NotificationType = "request_rejected"
	NotifyInboundCompleted  NotificationType = "inbound_completed"
	NotifyOutboundCompleted NotificationType = "outbound_completed"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelChat  NotificationChannel = "chat"
)

// Notification is an outbox row; delivery is handled outside the engine.
type Notification struct {
	ID          string
	Type        NotificationType
	Channel     NotificationChannel
	Payload     json.RawMessage
	Status      string
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
}

const (
	NotificationPending         = "pending"
	DefaultNotificationAttempts = 5
)
