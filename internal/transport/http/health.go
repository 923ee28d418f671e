package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const codeUnavailable = "unavailable"

// Option configures NewHandler.
type Option func(*handler)

// WithReadiness makes /health report 503 while check fails, typically a
// database ping.
func WithReadiness(check func(context.Context) error) Option {
	return func(h *handler) { h.ready = check }
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.log.Warn("Readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
