package http

import (
	"encoding/json"
	"net/http"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"go.uber.org/zap"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidQuery       = "invalid_query"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Op        string   `json:"op,omitempty"`
	Shortfall int      `json:"shortfall,omitempty"`
	Racks     []string `json:"racks,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrInvalidRack, domain.ErrQuantityMismatch:
		return http.StatusUnprocessableEntity
	case domain.ErrInvalidState, domain.ErrInsufficientCapacity, domain.ErrCapacityExceeded,
		domain.ErrOverlapConflict, domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrCrossTenant:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError reports a workflow failure. Internal errors are logged and
// replaced by a generic message; every other kind is surfaced as is.
func writeDomainError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	resp := errorResponse{Error: err.Error(), Code: string(kind)}
	if de, ok := asDomainError(err); ok {
		resp.Op = de.Op
		resp.Shortfall = de.Shortfall
		resp.Racks = de.Racks
		resp.Conflicts = de.Conflicts
	}
	writeErrorResponse(w, statusFor(kind), resp)
}
