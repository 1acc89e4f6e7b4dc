package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfman30/dental-agenda/internal/audit"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// AuditQuerier reads the audit trail.
type AuditQuerier interface {
	QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// AuditHandler serves GET /admin/audit.
type AuditHandler struct {
	audit  AuditQuerier
	logger *logging.Logger
}

func NewAuditHandler(querier AuditQuerier, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{audit: querier, logger: logger}
}

// List handles GET /admin/audit?appointment_id=&type=&since=&limit=&offset=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit trail is not configured")
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{
		AppointmentID: q.Get("appointment_id"),
		Type:          audit.EventType(q.Get("type")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a positive integer")
			return
		}
		filter.Offset = n
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		writeError(w, http.StatusBadGateway, "could not load the audit trail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
