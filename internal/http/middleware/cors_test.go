package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{
			name: "listed origin", allowed: []string{"https://citas.example"},
			method: http.MethodGet, origin: "https://citas.example",
			wantOrigin: "https://citas.example", wantStatus: http.StatusOK, wantHandler: true,
		},
		{
			name: "unknown origin", allowed: []string{"https://citas.example"},
			method: http.MethodGet, origin: "https://unknown.example",
			wantStatus: http.StatusOK, wantHandler: true,
		},
		{
			name: "wildcard", allowed: []string{"*"},
			method: http.MethodGet, origin: "https://random.example",
			wantOrigin: "https://random.example", wantStatus: http.StatusOK, wantHandler: true,
		},
		{
			name: "preflight", allowed: []string{"https://citas.example"},
			method: http.MethodOptions, origin: "https://citas.example", preflight: true,
			wantOrigin: "https://citas.example", wantStatus: http.StatusNoContent,
		},
		{
			name: "preflight from unknown origin", allowed: []string{"https://citas.example"},
			method: http.MethodOptions, origin: "https://unknown.example", preflight: true,
			wantStatus: http.StatusOK, wantHandler: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/appointments/abc", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			if called != tc.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tc.wantHandler)
			}
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tc.wantOrigin)
			}
		})
	}
}

func TestCORSExposesRequestIDAndHintHeader(t *testing.T) {
	mw := CORS([]string{"https://citas.example"})
	req := httptest.NewRequest(http.MethodGet, "/admin/preferences/theme", nil)
	req.Header.Set("Origin", "https://citas.example")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expected X-Request-ID to be exposed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Sec-CH-Prefers-Color-Scheme") {
		t.Fatalf("expected color scheme hint to be allowed, got %q", got)
	}
}

func TestOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{" https://citas.example/ ", ""})

	cases := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{name: "no origin header", origin: "", host: "api.example", want: true},
		{name: "listed origin", origin: "https://citas.example", host: "api.example", want: true},
		{name: "same host", origin: "https://api.example", host: "api.example", want: true},
		{name: "foreign origin", origin: "https://evil.example", host: "api.example", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/live", nil)
			req.Host = tc.host
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := policy.AllowsRequest(req); got != tc.want {
				t.Fatalf("AllowsRequest(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}

	if policy.Allows("") {
		t.Fatal("empty origin is not a cross-origin match")
	}
	if !NewOriginPolicy([]string{"*"}).Allows("https://anything.example") {
		t.Fatal("wildcard should admit any origin")
	}
}
