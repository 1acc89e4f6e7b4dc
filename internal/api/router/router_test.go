package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-agenda/internal/http/middleware"
	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/notify"
	"github.com/wolfman30/dental-agenda/internal/preferences"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const (
	testSecret = "router-test-secret"
	adminEmail = "dentista@clinica.es"
)

type testEnv struct {
	router      http.Handler
	service     *appointments.Service
	revocations *identity.MemoryRevocations
}

func newTestRouter(t *testing.T) testEnv {
	t.Helper()

	logger := logging.NewWithWriter("error", io.Discard)
	service := appointments.NewService(appointments.NewMemoryStore(), appointments.NewMemoryFeed(), logger)
	builder := share.NewBuilder("https://citas.example", "Clínica Sonrisa", "ES")
	mailer := notify.NewSummaryMailer(notify.NewStubEmailSender(logger), builder, time.UTC, logger)
	revocations := identity.NewMemoryRevocations()
	authorizer := identity.NewAuthorizer(adminEmail)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &Config{
		Logger:              logger,
		CORSAllowedOrigins:  []string{"https://citas.example"},
		Verifier:            identity.NewVerifier(identity.CognitoConfig{}, testSecret),
		Revocations:         revocations,
		Authorizer:          authorizer,
		PublicRateLimiter:   httpmiddleware.NewRateLimiter(ctx, 100, 100),
		Session:             handlers.NewSessionHandler(authorizer, revocations, logger),
		AdminAppointments:   handlers.NewAdminAppointmentsHandler(service, builder, time.UTC, logger),
		PatientAppointments: handlers.NewPatientAppointmentsHandler(service, builder, mailer, time.UTC, logger),
		Live:                handlers.NewLiveHandler(service, []string{"https://citas.example"}, logger),
		Preferences:         handlers.NewPreferencesHandler(preferences.NewMemoryThemeStore(), logger),
		Audit:               handlers.NewAuditHandler(nil, logger),
	}

	return testEnv{router: New(cfg), service: service, revocations: revocations}
}

func adminToken(t *testing.T, email string) string {
	t.Helper()
	claims := identity.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-" + email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestRouter(t)

	rr := do(t, env.router, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestRouterAdminRequiresAdminSession(t *testing.T) {
	env := newTestRouter(t)

	if rr := do(t, env.router, http.MethodGet, "/admin/appointments", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rr.Code)
	}
	if rr := do(t, env.router, http.MethodGet, "/admin/appointments", "garbage", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401, got %d", rr.Code)
	}

	rr := do(t, env.router, http.MethodGet, "/admin/appointments", adminToken(t, "otro@gmail.com"), "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("stranger: expected 403, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "signOut") {
		t.Errorf("access denied should offer sign out, got %s", rr.Body.String())
	}

	if rr := do(t, env.router, http.MethodGet, "/admin/appointments", adminToken(t, adminEmail), ""); rr.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rr.Code)
	}
}

func TestRouterAdminCreateThenPatientView(t *testing.T) {
	env := newTestRouter(t)
	token := adminToken(t, adminEmail)

	rr := do(t, env.router, http.MethodPost, "/admin/appointments", token,
		`{"name":"Juan Pérez","date":"2030-01-15","time":"10:00","treatment":"Empaste"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created appointments.Appointment
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = do(t, env.router, http.MethodGet, "/appointments/"+created.ID, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("patient get: expected 200, got %d", rr.Code)
	}

	rr = do(t, env.router, http.MethodPost, "/appointments/"+created.ID+"/cancel", "", `{"reason":"Me enfermé"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patient cancel: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	stored, err := env.service.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != appointments.StatusCancelled || stored.CancellationReason != "Me enfermé" {
		t.Errorf("unexpected stored appointment: %+v", stored)
	}
}

func TestRouterViewEndpoint(t *testing.T) {
	env := newTestRouter(t)

	rr := do(t, env.router, http.MethodGet, "/api/view?fragment=%23appt-xyz", adminToken(t, adminEmail), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"view":"patient"`) {
		t.Errorf("share fragment should open the patient view, got %s", rr.Body.String())
	}
}

func TestRouterSignOutRevokesToken(t *testing.T) {
	env := newTestRouter(t)
	token := adminToken(t, adminEmail)

	if rr := do(t, env.router, http.MethodPost, "/auth/sign-out", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous sign-out: expected 401, got %d", rr.Code)
	}
	if rr := do(t, env.router, http.MethodPost, "/auth/sign-out", token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("sign-out: expected 204, got %d", rr.Code)
	}
	if rr := do(t, env.router, http.MethodGet, "/admin/appointments", token, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", rr.Code)
	}
}

func TestRouterStaleTokenStillOpensShareLink(t *testing.T) {
	env := newTestRouter(t)
	token := adminToken(t, adminEmail)

	rr := do(t, env.router, http.MethodPost, "/admin/appointments", token,
		`{"name":"Ana López","date":"2030-02-01","time":"09:00","treatment":"Limpieza General"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created appointments.Appointment
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rr := do(t, env.router, http.MethodPost, "/auth/sign-out", token, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("sign-out: expected 204, got %d", rr.Code)
	}

	for _, stale := range []string{token, "garbage"} {
		if rr := do(t, env.router, http.MethodGet, "/appointments/"+created.ID, stale, ""); rr.Code != http.StatusOK {
			t.Fatalf("patient page with stale token: expected 200, got %d", rr.Code)
		}
		if rr := do(t, env.router, http.MethodGet, "/admin/appointments", stale, ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("admin with stale token: expected 401, got %d", rr.Code)
		}
	}
}

func TestRouterAdminRoutesAbsentWithoutVerifier(t *testing.T) {
	r := New(&Config{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/appointments", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when identity is not configured, got %d", rr.Code)
	}
}
