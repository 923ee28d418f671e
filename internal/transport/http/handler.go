package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/app"
	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/Bushels/PipeVault-sub009/internal/inventory"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActorHeader names the administrator on whose behalf a request runs.
const ActorHeader = "X-Actor"

// RackQueries is the read side of the rack registry.
type RackQueries interface {
	GetRack(ctx context.Context, id string) (app.RackDetail, error)
	ListRacks(ctx context.Context, filter domain.RackFilter) ([]domain.Rack, error)
	Availability(ctx context.Context, id string, window domain.DateRange) (int, error)
}

type handler struct {
	log   *zap.Logger
	wf    app.Workflow
	racks RackQueries
	ready func(context.Context) error
}

// NewHandler routes the admin API onto wf and racks.
func NewHandler(log *zap.Logger, wf app.Workflow, racks RackQueries, opts ...Option) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{log: log, wf: wf, racks: racks}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
	r.Get("/health", h.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Use(withActor)

		r.Get("/racks", h.handleListRacks)
		r.Get("/racks/{rackID}", h.handleGetRack)
		r.Get("/racks/{rackID}/availability", h.handleAvailability)
		r.Post("/racks/{rackID}/adjust", h.handleManualAdjust)

		r.Post("/requests/{requestID}/approve", h.handleApprove)
		r.Post("/requests/{requestID}/reject", h.handleReject)

		r.Post("/loads/{loadID}/complete-inbound", h.handleCompleteInbound)
		r.Post("/loads/{loadID}/complete-outbound", h.handleCompleteOutbound)
		r.Post("/loads/{loadID}/advance", h.handleAdvance)

		r.Post("/reservations/activate", h.handleActivate)
	})
	return r
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get(ActorHeader); actor != "" {
			r = r.WithContext(app.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

type approveRequest struct {
	RackIDs       []string `json:"rack_ids"`
	RequiredUnits int      `json:"required_units"`
	Notes         string   `json:"notes"`
}

type approveResponse struct {
	Success      bool                 `json:"success"`
	RequestID    string               `json:"request_id"`
	Reference    string               `json:"reference"`
	Status       domain.RequestStatus `json:"status"`
	StorageStart string               `json:"storage_start"`
	StorageEnd   *string              `json:"storage_end"`
	Allocations  []app.Allocation     `json:"allocations"`
	Message      string               `json:"message"`
}

func (h *handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.Approve(r.Context(), app.ApproveInput{
		RequestID:     chi.URLParam(r, "requestID"),
		RackIDs:       req.RackIDs,
		RequiredUnits: req.RequiredUnits,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{
		Success:      res.Success,
		RequestID:    res.RequestID,
		Reference:    res.Reference,
		Status:       res.Status,
		StorageStart: res.Period.Start.Format(time.DateOnly),
		StorageEnd:   formatDay(res.Period.End),
		Allocations:  res.Allocations,
		Message:      res.Message,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type rejectResponse struct {
	Success   bool                 `json:"success"`
	RequestID string               `json:"request_id"`
	Reference string               `json:"reference"`
	Status    domain.RequestStatus `json:"status"`
	Message   string               `json:"message"`
}

func (h *handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.Reject(r.Context(), app.RejectInput{RequestID: chi.URLParam(r, "requestID"), Reason: req.Reason})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rejectResponse{
		Success:   res.Success,
		RequestID: res.RequestID,
		Reference: res.Reference,
		Status:    res.Status,
		Message:   res.Message,
	})
}

type completeInboundRequest struct {
	RequestID   string `json:"request_id"`
	CompanyID   string `json:"company_id"`
	RackID      string `json:"rack_id"`
	ActualUnits int    `json:"actual_units"`
	Notes       string `json:"notes"`
}

type completeInboundResponse struct {
	Success      bool             `json:"success"`
	LoadID       string           `json:"load_id"`
	RequestID    string           `json:"request_id"`
	ItemIDs      []string         `json:"item_ids"`
	FromManifest bool             `json:"from_manifest"`
	Units        int              `json:"units"`
	Length       decimal.Decimal  `json:"length"`
	Rack         app.RackState    `json:"rack"`
	Totals       inventory.Totals `json:"totals"`
	Message      string           `json:"message"`
}

func (h *handler) handleCompleteInbound(w http.ResponseWriter, r *http.Request) {
	var req completeInboundRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.CompleteInbound(r.Context(), app.CompleteInboundInput{
		LoadID:      chi.URLParam(r, "loadID"),
		RequestID:   req.RequestID,
		CompanyID:   req.CompanyID,
		RackID:      req.RackID,
		ActualUnits: req.ActualUnits,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, completeInboundResponse{
		Success:      res.Success,
		LoadID:       res.LoadID,
		RequestID:    res.RequestID,
		ItemIDs:      res.ItemIDs,
		FromManifest: res.FromManifest,
		Units:        res.Units,
		Length:       res.Length,
		Rack:         res.Rack,
		Totals:       res.Totals,
		Message:      res.Message,
	})
}

type completeOutboundRequest struct {
	RequestID   string   `json:"request_id"`
	CompanyID   string   `json:"company_id"`
	ItemIDs     []string `json:"item_ids"`
	ActualUnits int      `json:"actual_units"`
	Notes       string   `json:"notes"`
}

type completeOutboundResponse struct {
	Success               bool            `json:"success"`
	LoadID                string          `json:"load_id"`
	RequestID             string          `json:"request_id"`
	ItemIDs               []string        `json:"item_ids"`
	Units                 int             `json:"units"`
	Racks                 []app.RackState `json:"racks"`
	CompletedReservations []string        `json:"completed_reservations"`
	Message               string          `json:"message"`
}

func (h *handler) handleCompleteOutbound(w http.ResponseWriter, r *http.Request) {
	var req completeOutboundRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.CompleteOutbound(r.Context(), app.CompleteOutboundInput{
		LoadID:      chi.URLParam(r, "loadID"),
		RequestID:   req.RequestID,
		CompanyID:   req.CompanyID,
		ItemIDs:     req.ItemIDs,
		ActualUnits: req.ActualUnits,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, completeOutboundResponse{
		Success:               res.Success,
		LoadID:                res.LoadID,
		RequestID:             res.RequestID,
		ItemIDs:               res.ItemIDs,
		Units:                 res.Units,
		Racks:                 res.Racks,
		CompletedReservations: res.CompletedReservations,
		Message:               res.Message,
	})
}

type advanceRequest struct {
	To    domain.LoadStatus `json:"to"`
	Notes string            `json:"notes"`
}

type advanceResponse struct {
	Success   bool              `json:"success"`
	LoadID    string            `json:"load_id"`
	From      domain.LoadStatus `json:"from"`
	To        domain.LoadStatus `json:"to"`
	Delivered []string          `json:"delivered,omitempty"`
	Message   string            `json:"message"`
}

func (h *handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.AdvanceLoad(r.Context(), app.AdvanceLoadInput{
		LoadID: chi.URLParam(r, "loadID"),
		To:     req.To,
		Notes:  req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{
		Success:   res.Success,
		LoadID:    res.LoadID,
		From:      res.From,
		To:        res.To,
		Delivered: res.Delivered,
		Message:   res.Message,
	})
}

type adjustRequest struct {
	NewUnits  int             `json:"new_units"`
	NewLength decimal.Decimal `json:"new_length"`
	Reason    string          `json:"reason"`
}

type adjustResponse struct {
	Success      bool          `json:"success"`
	RackID       string        `json:"rack_id"`
	AdjustmentID string        `json:"adjustment_id"`
	Before       app.RackState `json:"before"`
	After        app.RackState `json:"after"`
	Message      string        `json:"message"`
}

func (h *handler) handleManualAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	res, err := h.wf.ManualAdjust(r.Context(), app.ManualAdjustInput{
		RackID:    chi.URLParam(r, "rackID"),
		NewUnits:  req.NewUnits,
		NewLength: req.NewLength,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustResponse{
		Success:      res.Success,
		RackID:       res.RackID,
		AdjustmentID: res.AdjustmentID,
		Before:       res.Before,
		After:        res.After,
		Message:      res.Message,
	})
}

type activateResponse struct {
	Day       string   `json:"day"`
	Activated []string `json:"activated"`
	Failed    []string `json:"failed"`
	Message   string   `json:"message"`
	Error     string   `json:"error,omitempty"`
}

// handleActivate reports partial failures in the body: the activations that
// succeeded are committed regardless.
func (h *handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	res, err := h.wf.ActivateDue(r.Context())
	resp := activateResponse{Day: res.Day, Activated: res.Activated, Failed: res.Failed, Message: res.Message}
	if err != nil {
		if len(res.Failed) == 0 {
			writeDomainError(w, r, h.log, err)
			return
		}
		resp.Error = err.Error()
		writeJSON(w, http.StatusMultiStatus, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type rackResponse struct {
	ID             string                `json:"id"`
	Zone           string                `json:"zone"`
	Area           string                `json:"area"`
	Slot           string                `json:"slot"`
	Name           string                `json:"name"`
	Mode           domain.AllocationMode `json:"mode"`
	CapacityUnits  int                   `json:"capacity_units"`
	CapacityLength decimal.NullDecimal   `json:"capacity_length"`
	OccupiedUnits  int                   `json:"occupied_units"`
	OccupiedLength decimal.Decimal       `json:"occupied_length"`
	AvailableUnits int                   `json:"available_units"`
}

func newRackResponse(r domain.Rack) rackResponse {
	return rackResponse{
		ID:             r.ID,
		Zone:           r.Zone,
		Area:           r.Area,
		Slot:           r.Slot,
		Name:           r.Name,
		Mode:           r.Mode,
		CapacityUnits:  r.CapacityUnits,
		CapacityLength: r.CapacityLength,
		OccupiedUnits:  r.OccupiedUnits,
		OccupiedLength: r.OccupiedLength,
		AvailableUnits: r.AvailableUnits(),
	}
}

type reservationResponse struct {
	ID               string                   `json:"id"`
	RequestID        string                   `json:"request_id"`
	CompanyID        string                   `json:"company_id"`
	Start            string                   `json:"start"`
	End              *string                  `json:"end"`
	ReservedUnits    int                      `json:"reserved_units"`
	Status           domain.ReservationStatus `json:"status"`
	OccupancyApplied bool                     `json:"occupancy_applied"`
}

type rackDetailResponse struct {
	rackResponse
	AvailableToday int                   `json:"available_today"`
	Reservations   []reservationResponse `json:"reservations"`
}

func (h *handler) handleListRacks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.RackFilter{Zone: q.Get("zone"), Mode: domain.AllocationMode(q.Get("mode"))}
	if v := q.Get("min_available"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "min_available must be a non-negative integer")
			return
		}
		filter.MinAvailableUnits = n
	}
	racks, err := h.racks.ListRacks(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	resp := make([]rackResponse, 0, len(racks))
	for _, rack := range racks {
		resp = append(resp, newRackResponse(rack))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleGetRack(w http.ResponseWriter, r *http.Request) {
	detail, err := h.racks.GetRack(r.Context(), chi.URLParam(r, "rackID"))
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	resp := rackDetailResponse{
		rackResponse:   newRackResponse(detail.Rack),
		AvailableToday: detail.AvailableToday,
		Reservations:   make([]reservationResponse, 0, len(detail.Reservations)),
	}
	for _, res := range detail.Reservations {
		resp.Reservations = append(resp.Reservations, reservationResponse{
			ID:               res.ID,
			RequestID:        res.RequestID,
			CompanyID:        res.CompanyID,
			Start:            res.Period.Start.Format(time.DateOnly),
			End:              formatDay(res.Period.End),
			ReservedUnits:    res.ReservedUnits,
			Status:           res.Status,
			OccupancyApplied: res.OccupancyApplied,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type availabilityResponse struct {
	RackID    string  `json:"rack_id"`
	Start     string  `json:"start"`
	End       *string `json:"end"`
	Available int     `json:"available_units"`
}

func (h *handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.DateOnly, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "start must be a YYYY-MM-DD date")
		return
	}
	var end *time.Time
	if v := q.Get("end"); v != "" {
		e, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "end must be a YYYY-MM-DD date")
			return
		}
		end = &e
	}
	window, err := domain.NewDateRange(start, end)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}

	rackID := chi.URLParam(r, "rackID")
	n, err := h.racks.Availability(r.Context(), rackID, window)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		RackID:    rackID,
		Start:     window.Start.Format(time.DateOnly),
		End:       formatDay(window.End),
		Available: n,
	})
}

func formatDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
