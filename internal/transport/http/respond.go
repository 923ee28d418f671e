package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON object and rejects unknown fields. An empty body
// decodes to the zero value.
func decodeBody(r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	return err == nil || errors.Is(err, io.EOF)
}

func asDomainError(err error) (*domain.Error, bool) {
	var de *domain.Error
	ok := errors.As(err, &de)
	return de, ok
}
