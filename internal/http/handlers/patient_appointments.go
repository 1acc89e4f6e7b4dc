package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/notify"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// PatientAppointmentsHandler serves the public per-appointment page. Knowing
// the id is the only credential.
type PatientAppointmentsHandler struct {
	service *appointments.Service
	share   *share.Builder
	mailer  *notify.SummaryMailer
	loc     *time.Location
	logger  *logging.Logger
}

func NewPatientAppointmentsHandler(service *appointments.Service, builder *share.Builder, mailer *notify.SummaryMailer, loc *time.Location, logger *logging.Logger) *PatientAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PatientAppointmentsHandler{
		service: service,
		share:   builder,
		mailer:  mailer,
		loc:     loc,
		logger:  logger,
	}
}

// emailRequest may repeat the address on file; any other recipient is
// refused so the public route cannot mail patient data elsewhere.
type emailRequest struct {
	To string `json:"to"`
}

// Get handles GET /appointments/{id}. A missing id is a dead end (404).
func (h *PatientAppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// PostMessage handles POST /appointments/{id}/messages as the patient.
func (h *PatientAppointmentsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	postMessage(w, r, h.service, h.logger, appointments.SenderPatient)
}

// Cancel handles POST /appointments/{id}/cancel; the reason is mandatory.
func (h *PatientAppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), id, req.Reason, appointments.ActorPatient); err != nil {
		writeServiceError(w, h.logger, "cancel", err)
		return
	}
	h.Get(w, r)
}

// Resume handles POST /appointments/{id}/resume.
func (h *PatientAppointmentsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Resume(r.Context(), chi.URLParam(r, "id"), appointments.ActorPatient); err != nil {
		writeServiceError(w, h.logger, "resume", err)
		return
	}
	h.Get(w, r)
}

// Print handles GET /appointments/{id}/print. The browser prints it to PDF.
func (h *PatientAppointmentsHandler) Print(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "print", err)
		return
	}
	page, err := h.share.SummaryHTML(*appt, h.loc)
	if err != nil {
		h.logger.Error("failed to render summary", "appointment_id", appt.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not render summary")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// Email handles POST /appointments/{id}/email.
func (h *PatientAppointmentsHandler) Email(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "email", err)
		return
	}
	if to := strings.TrimSpace(req.To); to != "" && !strings.EqualFold(to, strings.TrimSpace(appt.Email)) {
		writeError(w, http.StatusBadRequest, "the summary can only be sent to the email address on the appointment")
		return
	}
	if err := h.mailer.Send(r.Context(), *appt); err != nil {
		if errors.Is(err, notify.ErrNoRecipient) {
			writeError(w, http.StatusBadRequest, "an email address is required")
			return
		}
		h.logger.Error("failed to email summary", "appointment_id", appt.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not send the email, please try again")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
