package http

import (
	"net/http"
	"strings"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Content-Type", ActorHeader}, ", ")
)

// originPolicy is a CORS allow-list. "*" admits every origin.
type originPolicy struct {
	any     bool
	origins map[string]bool
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not admitted.
func (p originPolicy) allowOrigin(origin string) string {
	switch {
	case p.any:
		return "*"
	case p.origins[origin]:
		return origin
	}
	return ""
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// CORS admits browser calls from the allowed origins. Preflights from other
// origins are refused; plain requests from them pass without CORS headers so
// the browser blocks the response.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allow := policy.allowOrigin(origin)
		switch {
		case allow == "" && isPreflight(r):
			writeError(w, http.StatusForbidden, codeForbidden, "origin not allowed")
		case allow == "":
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Access-Control-Allow-Origin", allow)
			if allow != "*" {
				w.Header().Add("Vary", "Origin")
			}
			if isPreflight(r) {
				w.Header().Set("Access-Control-Allow-Methods", corsMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}
	})
}
