package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubWorkflow struct {
	err   error
	actor string

	approve  app.ApproveInput
	reject   app.RejectInput
	inbound  app.CompleteInboundInput
	outbound app.CompleteOutboundInput
	adjust   app.ManualAdjustInput
	advance  app.AdvanceLoadInput
	activate app.ActivateResult
}

func (s *stubWorkflow) Approve(ctx context.Context, in app.ApproveInput) (app.ApproveResult, error) {
	s.actor, s.approve = app.ActorFrom(ctx), in
	if s.err != nil {
		return app.ApproveResult{}, s.err
	}
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return app.ApproveResult{
		Success:   true,
		RequestID: in.RequestID,
		Reference: "REF-1",
		Status:    domain.RequestApproved,
		Period:    domain.DateRange{Start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), End: &end},
		Allocations: []app.Allocation{
			{RackID: "A-1-01", ReservationID: "res-1", Units: 10, Applied: true},
		},
		Message: "approved",
	}, nil
}

func (s *stubWorkflow) Reject(ctx context.Context, in app.RejectInput) (app.RejectResult, error) {
	s.actor, s.reject = app.ActorFrom(ctx), in
	return app.RejectResult{Success: true, RequestID: in.RequestID, Status: domain.RequestRejected}, s.err
}

func (s *stubWorkflow) CompleteInbound(ctx context.Context, in app.CompleteInboundInput) (app.CompleteInboundResult, error) {
	s.actor, s.inbound = app.ActorFrom(ctx), in
	return app.CompleteInboundResult{
		Success: true, LoadID: in.LoadID, Units: in.ActualUnits, Length: decimal.RequireFromString("250.5"),
		Rack: app.RackState{RackID: in.RackID, OccupiedUnits: 30, CapacityUnits: 100},
	}, s.err
}

func (s *stubWorkflow) CompleteOutbound(ctx context.Context, in app.CompleteOutboundInput) (app.CompleteOutboundResult, error) {
	s.actor, s.outbound = app.ActorFrom(ctx), in
	return app.CompleteOutboundResult{Success: true, LoadID: in.LoadID, ItemIDs: in.ItemIDs, Units: in.ActualUnits}, s.err
}

func (s *stubWorkflow) ManualAdjust(ctx context.Context, in app.ManualAdjustInput) (app.ManualAdjustResult, error) {
	s.actor, s.adjust = app.ActorFrom(ctx), in
	return app.ManualAdjustResult{Success: true, RackID: in.RackID, AdjustmentID: "adj-1"}, s.err
}

func (s *stubWorkflow) AdvanceLoad(ctx context.Context, in app.AdvanceLoadInput) (app.AdvanceLoadResult, error) {
	s.actor, s.advance = app.ActorFrom(ctx), in
	return app.AdvanceLoadResult{Success: true, LoadID: in.LoadID, From: domain.LoadNew, To: in.To}, s.err
}

func (s *stubWorkflow) ActivateDue(ctx context.Context) (app.ActivateResult, error) {
	s.actor = app.ActorFrom(ctx)
	return s.activate, s.err
}

type stubRacks struct {
	err    error
	filter domain.RackFilter
	window domain.DateRange
}

func (s *stubRacks) GetRack(_ context.Context, id string) (app.RackDetail, error) {
	if s.err != nil {
		return app.RackDetail{}, s.err
	}
	return app.RackDetail{
		Rack: domain.Rack{ID: id, Zone: "A", Mode: domain.ModeAdditive, CapacityUnits: 100, OccupiedUnits: 40},
		Reservations: []domain.Reservation{{
			ID: "res-1", RequestID: "req-1", Period: domain.DateRange{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
			ReservedUnits: 40, Status: domain.ReservationActive, OccupancyApplied: true,
		}},
		AvailableToday: 60,
	}, nil
}

func (s *stubRacks) ListRacks(_ context.Context, filter domain.RackFilter) ([]domain.Rack, error) {
	s.filter = filter
	return []domain.Rack{{ID: "A-1-01", CapacityUnits: 10, OccupiedUnits: 4}}, s.err
}

func (s *stubRacks) Availability(_ context.Context, _ string, window domain.DateRange) (int, error) {
	s.window = window
	return 42, s.err
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(ActorHeader, "admin@yard.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWorkflowRoutes(t *testing.T) {
	wf := &stubWorkflow{}
	h := NewHandler(nil, wf, &stubRacks{})

	rec := serve(h, http.MethodPost, "/admin/requests/req-1/approve",
		`{"rack_ids":["A-1-01","A-1-02"],"required_units":10,"notes":"north row"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, app.ApproveInput{RequestID: "req-1", RackIDs: []string{"A-1-01", "A-1-02"}, RequiredUnits: 10, Notes: "north row"}, wf.approve)
	assert.Equal(t, "admin@yard.test", wf.actor)
	assert.JSONEq(t, `{
		"success": true, "request_id": "req-1", "reference": "REF-1", "status": "approved",
		"storage_start": "2026-03-10", "storage_end": "2026-04-01",
		"allocations": [{"rack_id":"A-1-01","reservation_id":"res-1","units":10,"applied":true}],
		"message": "approved"
	}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/admin/requests/req-2/reject", `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.RejectInput{RequestID: "req-2", Reason: "duplicate"}, wf.reject)

	rec = serve(h, http.MethodPost, "/admin/loads/load-1/complete-inbound",
		`{"request_id":"req-1","company_id":"acme","rack_id":"A-1-01","actual_units":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "load-1", wf.inbound.LoadID)
	assert.Equal(t, 20, wf.inbound.ActualUnits)
	assert.Contains(t, rec.Body.String(), `"length":"250.5"`)

	rec = serve(h, http.MethodPost, "/admin/loads/out-1/complete-outbound",
		`{"request_id":"req-1","company_id":"acme","item_ids":["i-1","i-2"],"actual_units":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"i-1", "i-2"}, wf.outbound.ItemIDs)

	rec = serve(h, http.MethodPost, "/admin/loads/load-3/advance", `{"to":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.LoadApproved, wf.advance.To)

	rec = serve(h, http.MethodPost, "/admin/racks/A-1-01/adjust",
		`{"new_units":36,"new_length":"431.5","reason":"cycle count found 4 joints missing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A-1-01", wf.adjust.RackID)
	assert.True(t, wf.adjust.NewLength.Equal(decimal.RequireFromString("431.5")))

	rec = serve(h, http.MethodPost, "/admin/requests/req-1/approve", `{"rack_ids":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), codeInvalidRequestBody)

	rec = serve(h, http.MethodPost, "/admin/requests/req-1/reject", `{"reason":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.Errorf(domain.ErrNotFound, "storage request req-1 not found"), http.StatusNotFound, "not_found"},
		{domain.Errorf(domain.ErrInvalidInput, "required units must be positive"), http.StatusBadRequest, "invalid_input"},
		{domain.Errorf(domain.ErrInvalidRack, "unknown rack Q-1-01"), http.StatusUnprocessableEntity, "invalid_rack"},
		{domain.Errorf(domain.ErrQuantityMismatch, "manifest says 18"), http.StatusUnprocessableEntity, "quantity_mismatch"},
		{domain.Errorf(domain.ErrInvalidState, "request is approved"), http.StatusConflict, "invalid_state"},
		{&domain.Error{Kind: domain.ErrInsufficientCapacity, Op: "approve", Msg: "short", Shortfall: 5, Racks: []string{"A-1-01"}}, http.StatusConflict, "insufficient_capacity"},
		{domain.Errorf(domain.ErrCapacityExceeded, "rack full"), http.StatusConflict, "capacity_exceeded"},
		{&domain.Error{Kind: domain.ErrOverlapConflict, Msg: "taken", Conflicts: []string{"res-9"}}, http.StatusConflict, "overlap_conflict"},
		{domain.Errorf(domain.ErrCrossTenant, "load belongs to another company"), http.StatusForbidden, "cross_tenant_violation"},
		{domain.Errorf(domain.ErrDataIntegrity, "occupancy would go negative"), http.StatusInternalServerError, "data_integrity_error"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := NewHandler(zap.New(core), &stubWorkflow{err: tt.err}, &stubRacks{})

			rec := serve(h, http.MethodPost, "/admin/requests/req-1/approve", `{"rack_ids":["A-1-01"],"required_units":1}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode, resp.Code)

			if tt.wantCode == codeInternalError {
				assert.Equal(t, "internal error", resp.Error)
				assert.Equal(t, 1, logs.Len())
				return
			}
			assert.Equal(t, tt.err.Error(), resp.Error)
			assert.Zero(t, logs.Len())

			var de *domain.Error
			require.True(t, errors.As(tt.err, &de))
			assert.Equal(t, de.Shortfall, resp.Shortfall)
			assert.Equal(t, de.Racks, resp.Racks)
			assert.Equal(t, de.Conflicts, resp.Conflicts)
		})
	}
}

func TestActivateRoute(t *testing.T) {
	t.Run("all applied", func(t *testing.T) {
		wf := &stubWorkflow{activate: app.ActivateResult{Day: "2026-03-13", Activated: []string{"res-1"}}}
		rec := serve(NewHandler(nil, wf, &stubRacks{}), http.MethodPost, "/admin/reservations/activate", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"activated":["res-1"]`)
	})

	t.Run("partial failure", func(t *testing.T) {
		wf := &stubWorkflow{
			activate: app.ActivateResult{Day: "2026-03-13", Activated: []string{"res-1"}, Failed: []string{"res-2"}},
			err:      multierr.Append(nil, domain.Errorf(domain.ErrCapacityExceeded, "rack full")),
		}
		rec := serve(NewHandler(nil, wf, &stubRacks{}), http.MethodPost, "/admin/reservations/activate", "")
		assert.Equal(t, http.StatusMultiStatus, rec.Code)
		assert.Contains(t, rec.Body.String(), `"failed":["res-2"]`)
		assert.Contains(t, rec.Body.String(), "rack full")
	})

	t.Run("nothing ran", func(t *testing.T) {
		wf := &stubWorkflow{err: errors.New("database down")}
		rec := serve(NewHandler(nil, wf, &stubRacks{}), http.MethodPost, "/admin/reservations/activate", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRackRoutes(t *testing.T) {
	racks := &stubRacks{}
	h := NewHandler(nil, &stubWorkflow{}, racks)

	rec := serve(h, http.MethodGet, "/admin/racks?zone=a&mode=additive&min_available=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RackFilter{Zone: "a", Mode: domain.ModeAdditive, MinAvailableUnits: 5}, racks.filter)
	assert.Contains(t, rec.Body.String(), `"available_units":6`)

	rec = serve(h, http.MethodGet, "/admin/racks?min_available=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/admin/racks/A-1-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		ID             string `json:"id"`
		AvailableToday int    `json:"available_today"`
		Reservations   []struct {
			ID    string  `json:"id"`
			Start string  `json:"start"`
			End   *string `json:"end"`
		} `json:"reservations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, "A-1-01", detail.ID)
	assert.Equal(t, 60, detail.AvailableToday)
	require.Len(t, detail.Reservations, 1)
	assert.Equal(t, "2026-03-01", detail.Reservations[0].Start)
	assert.Nil(t, detail.Reservations[0].End)

	rec = serve(h, http.MethodGet, "/admin/racks/A-1-01/availability?start=2026-03-20&end=2026-03-25", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available_units":42`)
	require.NotNil(t, racks.window.End)
	assert.Equal(t, "2026-03-25", racks.window.End.Format(time.DateOnly))

	rec = serve(h, http.MethodGet, "/admin/racks/A-1-01/availability?start=2026-03-20&end=2026-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/admin/racks/A-1-01/availability?start=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := NewHandler(nil, &stubWorkflow{}, &stubRacks{err: domain.Errorf(domain.ErrNotFound, "rack Q not found")})
	rec = serve(missing, http.MethodGet, "/admin/racks/Q", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
