package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/notify"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

var clinicNow = time.Date(2024, 4, 20, 9, 30, 0, 0, time.UTC)

const testAdminEmail = "doctora@clinica.example"

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func newAppointmentsService(t *testing.T, store appointments.Store) *appointments.Service {
	t.Helper()
	if store == nil {
		store = appointments.NewMemoryStore()
	}
	return appointments.NewService(store, appointments.NewMemoryFeed(), quietLogger(),
		appointments.WithClock(func() time.Time { return clinicNow }))
}

func testShareBuilder() *share.Builder {
	return share.NewBuilder("https://citas.clinica.example", "Clínica Sonrisa", "ES")
}

// seedAppointment stores a scheduled appointment directly through the service.
func seedAppointment(t *testing.T, svc *appointments.Service, name, date, hhmm string) *appointments.Appointment {
	t.Helper()
	tr, err := appointments.PresetTreatment("Limpieza General")
	require.NoError(t, err)
	appt, err := svc.Create(context.Background(), appointments.NewAppointment{
		Name:      name,
		Email:     "paciente@example.com",
		Phone:     "+34 612 345 678",
		Date:      date,
		Time:      hhmm,
		Treatment: tr,
	}, appointments.ActorSystem)
	require.NoError(t, err)
	return appt
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// withAdmin attaches an admin session the way the auth middleware would.
func withAdmin(r *http.Request) *http.Request {
	s := &identity.Session{Email: testAdminEmail, TokenID: "tok-admin", Provider: "admin", ExpiresAt: clinicNow.Add(time.Hour)}
	return r.WithContext(identity.WithSession(r.Context(), s))
}

func adminRouter(h *AdminAppointmentsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/appointments", h.List)
	r.Post("/admin/appointments", h.Create)
	r.Get("/admin/appointments/stats", h.Stats)
	r.Patch("/admin/appointments/{id}", h.Update)
	r.Delete("/admin/appointments/{id}", h.Delete)
	r.Post("/admin/appointments/{id}/cancel", h.Cancel)
	r.Post("/admin/appointments/{id}/resume", h.Resume)
	r.Post("/admin/appointments/{id}/complete", h.Complete)
	r.Post("/admin/appointments/{id}/messages", h.PostMessage)
	r.Get("/admin/appointments/{id}/share", h.Share)
	r.Get("/admin/appointments/{id}/qr.png", h.QRCode)
	return r
}

func patientRouter(h *PatientAppointmentsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/messages", h.PostMessage)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Post("/appointments/{id}/resume", h.Resume)
	r.Get("/appointments/{id}/print", h.Print)
	r.Post("/appointments/{id}/email", h.Email)
	return r
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

// deniedStore fails every write the way DynamoDB does for an expired session.
type deniedStore struct {
	*appointments.MemoryStore
}

func (deniedStore) Insert(context.Context, *appointments.Appointment) error {
	return appointments.ErrPermissionDenied
}

func (deniedStore) Delete(context.Context, string) error {
	return appointments.ErrPermissionDenied
}

// brokenStore cannot be reached at all.
type brokenStore struct {
	*appointments.MemoryStore
}

var errUnreachable = io.ErrUnexpectedEOF

func (brokenStore) List(context.Context) ([]appointments.Appointment, error) {
	return nil, errUnreachable
}

func (brokenStore) Insert(context.Context, *appointments.Appointment) error {
	return errUnreachable
}

func newSummaryMailer(sender notify.EmailSender) *notify.SummaryMailer {
	return notify.NewSummaryMailer(sender, testShareBuilder(), time.UTC, quietLogger())
}
