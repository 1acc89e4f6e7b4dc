package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, Sec-CH-Prefers-Color-Scheme"
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsExposedHeaders = "X-Request-ID"
	corsMaxAge         = "600"
)

// OriginPolicy is the browser origin allowlist shared by CORS and the live
// sockets. A "*" entry admits every origin.
type OriginPolicy struct {
	any   bool
	exact map[string]struct{}
}

// NewOriginPolicy normalizes the configured origins. Trailing slashes are
// dropped so "https://citas.example/" matches the Origin header.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.exact[origin] = struct{}{}
		}
	}
	return p
}

// Allows reports whether a cross-origin browser request from origin is admitted.
func (p OriginPolicy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	_, ok := p.exact[origin]
	return ok
}

// AllowsRequest also admits requests without an Origin header and requests
// from the serving host itself.
func (p OriginPolicy) AllowsRequest(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || p.Allows(origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// CORS answers preflights and decorates responses for allowed origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if !policy.Allows(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
