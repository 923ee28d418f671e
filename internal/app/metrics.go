package app

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsWorkflow records call, error and duration metrics per operation.
type MetricsWorkflow struct {
	reqs *prometheus.CounterVec
	errs *prometheus.CounterVec
	durs *prometheus.HistogramVec

	next Workflow
}

var _ Workflow = (*MetricsWorkflow)(nil)

func NewMetricsWorkflow(reg prometheus.Registerer, next Workflow) *MetricsWorkflow {
	const namespace = "pipevault"
	const subsystem = "workflow"

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "call_total",
		Help:      "Number of workflow operations run",
	}, []string{"method"})

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "error_total",
		Help:      "Number of workflow operations that failed, by error kind",
	}, []string{"method", "code"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "duration_seconds",
		Help:      "Duration of workflow operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	reg.MustRegister(reqs, errs, durs)

	return &MetricsWorkflow{reqs: reqs, errs: errs, durs: durs, next: next}
}

func (m *MetricsWorkflow) record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		m.reqs.With(prometheus.Labels{"method": method}).Inc()
		if err != nil {
			m.errs.With(prometheus.Labels{
				"method": method,
				"code":   string(domain.KindOf(err)),
			}).Inc()
		}
		m.durs.With(prometheus.Labels{"method": method}).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *MetricsWorkflow) Approve(ctx context.Context, in ApproveInput) (ApproveResult, error) {
	rec := m.record("approve")
	res, err := m.next.Approve(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) Reject(ctx context.Context, in RejectInput) (RejectResult, error) {
	rec := m.record("reject")
	res, err := m.next.Reject(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) CompleteInbound(ctx context.Context, in CompleteInboundInput) (CompleteInboundResult, error) {
	rec := m.record("complete_inbound")
	res, err := m.next.CompleteInbound(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) CompleteOutbound(ctx context.Context, in CompleteOutboundInput) (CompleteOutboundResult, error) {
	rec := m.record("complete_outbound")
	res, err := m.next.CompleteOutbound(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) ManualAdjust(ctx context.Context, in ManualAdjustInput) (ManualAdjustResult, error) {
	rec := m.record("manual_adjust")
	res, err := m.next.ManualAdjust(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) AdvanceLoad(ctx context.Context, in AdvanceLoadInput) (AdvanceLoadResult, error) {
	rec := m.record("advance_load")
	res, err := m.next.AdvanceLoad(ctx, in)
	return res, rec(err)
}

func (m *MetricsWorkflow) ActivateDue(ctx context.Context) (ActivateResult, error) {
	rec := m.record("activate_due")
	res, err := m.next.ActivateDue(ctx)
	return res, rec(err)
}
