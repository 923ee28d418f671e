package app

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"go.uber.org/zap"
)

// LoggingWorkflow logs every workflow call with its duration. Data integrity
// failures are logged at error level since they need an operator.
type LoggingWorkflow struct {
	logger *zap.Logger
	next   Workflow
}

var _ Workflow = (*LoggingWorkflow)(nil)

func NewLoggingWorkflow(log *zap.Logger, next Workflow) *LoggingWorkflow {
	return &LoggingWorkflow{logger: log, next: next}
}

func (l *LoggingWorkflow) log(ctx context.Context, op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.String("actor", ActorFrom(ctx)),
		zap.Duration("took", time.Since(start)),
	)
	if err == nil {
		l.logger.Info(op+" succeeded", fields...)
		return
	}
	kind := domain.KindOf(err)
	fields = append(fields, zap.String("kind", string(kind)), zap.Error(err))
	switch kind {
	case domain.ErrDataIntegrity, domain.KindInternal:
		l.logger.Error(op+" failed", fields...)
	default:
		l.logger.Info(op+" rejected", fields...)
	}
}

func (l *LoggingWorkflow) Approve(ctx context.Context, in ApproveInput) (res ApproveResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "approve", start, err,
			zap.String("request_id", in.RequestID),
			zap.Strings("racks", in.RackIDs),
			zap.Int("units", in.RequiredUnits))
	}(time.Now())
	return l.next.Approve(ctx, in)
}

func (l *LoggingWorkflow) Reject(ctx context.Context, in RejectInput) (res RejectResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "reject", start, err, zap.String("request_id", in.RequestID))
	}(time.Now())
	return l.next.Reject(ctx, in)
}

func (l *LoggingWorkflow) CompleteInbound(ctx context.Context, in CompleteInboundInput) (res CompleteInboundResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "complete_inbound", start, err,
			zap.String("load_id", in.LoadID),
			zap.String("rack_id", in.RackID),
			zap.Int("units", in.ActualUnits))
	}(time.Now())
	return l.next.CompleteInbound(ctx, in)
}

func (l *LoggingWorkflow) CompleteOutbound(ctx context.Context, in CompleteOutboundInput) (res CompleteOutboundResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "complete_outbound", start, err,
			zap.String("load_id", in.LoadID),
			zap.Int("items", len(in.ItemIDs)),
			zap.Int("units", in.ActualUnits))
	}(time.Now())
	return l.next.CompleteOutbound(ctx, in)
}

func (l *LoggingWorkflow) ManualAdjust(ctx context.Context, in ManualAdjustInput) (res ManualAdjustResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "manual_adjust", start, err,
			zap.String("rack_id", in.RackID),
			zap.Int("new_units", in.NewUnits))
	}(time.Now())
	return l.next.ManualAdjust(ctx, in)
}

func (l *LoggingWorkflow) AdvanceLoad(ctx context.Context, in AdvanceLoadInput) (res AdvanceLoadResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "advance_load", start, err,
			zap.String("load_id", in.LoadID),
			zap.String("to", string(in.To)))
	}(time.Now())
	return l.next.AdvanceLoad(ctx, in)
}

func (l *LoggingWorkflow) ActivateDue(ctx context.Context) (res ActivateResult, err error) {
	defer func(start time.Time) {
		l.log(ctx, "activate_due", start, err,
			zap.Int("activated", len(res.Activated)),
			zap.Int("failed", len(res.Failed)))
	}(time.Now())
	return l.next.ActivateDue(ctx)
}
