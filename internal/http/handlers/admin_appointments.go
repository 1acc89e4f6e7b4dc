package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/share"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// AdminAppointmentsHandler serves the dashboard. Every route sits behind
// RequireAdmin.
type AdminAppointmentsHandler struct {
	service *appointments.Service
	share   *share.Builder
	loc     *time.Location
	logger  *logging.Logger
}

func NewAdminAppointmentsHandler(service *appointments.Service, builder *share.Builder, loc *time.Location, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminAppointmentsHandler{
		service: service,
		share:   builder,
		loc:     loc,
		logger:  logger,
	}
}

// AppointmentForm is the shared create/edit form. Treatment is a preset label
// or "Otro", in which case CustomTreatment carries the text.
type AppointmentForm struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Treatment       string `json:"treatment"`
	CustomTreatment string `json:"customTreatment"`
}

// AppointmentPatchForm carries only the fields being edited.
type AppointmentPatchForm struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	Treatment       *string `json:"treatment"`
	CustomTreatment string  `json:"customTreatment"`
}

// ListAppointmentsResponse wraps the sorted list.
type ListAppointmentsResponse struct {
	View         string                     `json:"view"`
	Today        string                     `json:"today"`
	Total        int                        `json:"total"`
	Appointments []appointments.Appointment `json:"appointments"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type messageRequest struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (h *AdminAppointmentsHandler) actor(r *http.Request) appointments.Actor {
	if s, ok := identity.SessionFromContext(r.Context()); ok {
		return appointments.AdminActor(s.Email)
	}
	return appointments.AdminActor("unknown")
}

// List handles GET /admin/appointments?view=all|agenda|history.
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "all"
	}
	list, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list", err)
		return
	}
	today := appointments.Today(h.service.Now(), h.loc)
	switch view {
	case "all":
	case "agenda":
		list = appointments.Agenda(list, today)
	case "history":
		list = appointments.History(list, today)
	default:
		writeError(w, http.StatusBadRequest, "view must be all, agenda or history")
		return
	}
	writeJSON(w, http.StatusOK, ListAppointmentsResponse{
		View:         view,
		Today:        today,
		Total:        len(list),
		Appointments: list,
	})
}

// Stats handles GET /admin/appointments/stats.
func (h *AdminAppointmentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, appointments.ComputeStats(list, appointments.Today(h.service.Now(), h.loc)))
}

// Create handles POST /admin/appointments.
func (h *AdminAppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form AppointmentForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	treatment, err := appointments.ResolveTreatment(form.Treatment, form.CustomTreatment)
	if err != nil {
		writeServiceError(w, h.logger, "create", err)
		return
	}
	created, err := h.service.Create(r.Context(), appointments.NewAppointment{
		Name:      form.Name,
		Email:     form.Email,
		Phone:     form.Phone,
		Date:      form.Date,
		Time:      form.Time,
		Treatment: treatment,
	}, h.actor(r))
	if err != nil {
		writeServiceError(w, h.logger, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PATCH /admin/appointments/{id}.
func (h *AdminAppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var form AppointmentPatchForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := appointments.Patch{
		Name:  form.Name,
		Email: form.Email,
		Phone: form.Phone,
		Date:  form.Date,
		Time:  form.Time,
	}
	if form.Treatment != nil {
		treatment, err := appointments.ResolveTreatment(*form.Treatment, form.CustomTreatment)
		if err != nil {
			writeServiceError(w, h.logger, "update", err)
			return
		}
		patch.Treatment = &treatment
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Update(r.Context(), id, patch, h.actor(r)); err != nil {
		writeServiceError(w, h.logger, "update", err)
		return
	}
	h.respondWithAppointment(w, r, id, http.StatusOK)
}

// Delete handles DELETE /admin/appointments/{id}.
func (h *AdminAppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "id"), h.actor(r)); err != nil {
		writeServiceError(w, h.logger, "remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /admin/appointments/{id}/cancel.
func (h *AdminAppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(r.Context(), id, req.Reason, h.actor(r)); err != nil {
		writeServiceError(w, h.logger, "cancel", err)
		return
	}
	h.respondWithAppointment(w, r, id, http.StatusOK)
}

// Resume handles POST /admin/appointments/{id}/resume.
func (h *AdminAppointmentsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Resume(r.Context(), id, h.actor(r)); err != nil {
		writeServiceError(w, h.logger, "resume", err)
		return
	}
	h.respondWithAppointment(w, r, id, http.StatusOK)
}

// Complete handles POST /admin/appointments/{id}/complete.
func (h *AdminAppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Complete(r.Context(), id, h.actor(r)); err != nil {
		writeServiceError(w, h.logger, "complete", err)
		return
	}
	h.respondWithAppointment(w, r, id, http.StatusOK)
}

// PostMessage handles POST /admin/appointments/{id}/messages as the doctor.
func (h *AdminAppointmentsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	postMessage(w, r, h.service, h.logger, appointments.SenderDoctor)
}

// Share handles GET /admin/appointments/{id}/share.
func (h *AdminAppointmentsHandler) Share(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "share", err)
		return
	}
	links, err := h.share.Links(*appt)
	if err != nil {
		h.logger.Error("failed to build share links", "appointment_id", appt.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not build share links")
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// QRCode handles GET /admin/appointments/{id}/qr.png?size=N.
func (h *AdminAppointmentsHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, "qr", err)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := share.QRPNG(h.share.URL(appt.ID), size)
	if err != nil {
		h.logger.Error("failed to render qr code", "appointment_id", appt.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(png)
}

func (h *AdminAppointmentsHandler) respondWithAppointment(w http.ResponseWriter, r *http.Request, id string, status int) {
	appt, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get", err)
		return
	}
	writeJSON(w, status, appt)
}

func postMessage(w http.ResponseWriter, r *http.Request, service *appointments.Service, logger *logging.Logger, sender appointments.Sender) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := service.AppendMessage(r.Context(), chi.URLParam(r, "id"), appointments.MessageInput{
		Sender:    sender,
		Text:      req.Text,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		writeServiceError(w, logger, "append_message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
