package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error          string `json:"error"`
	Reauthenticate bool   `json:"reauthenticate,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeServiceError maps storage access layer failures onto HTTP. Anything
// unclassified is the store being unreachable, so the client is told the
// write did not happen.
func writeServiceError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, appointments.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:          "the store rejected this session; sign in again",
			Reauthenticate: true,
		})
	case appointments.IsValidationError(err):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, appointments.ErrInvalidTransition),
		errors.Is(err, appointments.ErrStatusConflict),
		errors.Is(err, appointments.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("appointment operation failed", "operation", op, "error", err)
		writeError(w, http.StatusBadGateway, "could not reach the appointment store, please try again")
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, appointments.ErrCancellationReasonRequired):
		return "a cancellation reason is required"
	case errors.Is(err, appointments.ErrTreatmentRequired):
		return "a treatment is required"
	case errors.Is(err, appointments.ErrCustomTreatmentRequired):
		return "describe the treatment when choosing " + appointments.OtherTreatment
	case errors.Is(err, appointments.ErrUnknownTreatment):
		return "unknown treatment"
	case errors.Is(err, appointments.ErrEmptyPatch):
		return "nothing to update"
	}
	return err.Error()
}
