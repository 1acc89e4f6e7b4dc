package handlers

import (
	"net/http"

	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/views"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// SessionHandler exposes the view router and the sign-out endpoint. Sign-in
// itself happens in the identity provider's client SDK.
type SessionHandler struct {
	auth        *identity.Authorizer
	revocations identity.Revocations
	logger      *logging.Logger
}

func NewSessionHandler(auth *identity.Authorizer, revocations identity.Revocations, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{auth: auth, revocations: revocations, logger: logger}
}

// SessionResponse describes the caller's identity.
type SessionResponse struct {
	SignedIn bool              `json:"signedIn"`
	Admin    bool              `json:"admin"`
	Session  *identity.Session `json:"session,omitempty"`
}

// View handles GET /api/view?fragment=#appt-<id>. Browsers never send the
// fragment, so the client passes it explicitly.
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	session, _ := identity.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, views.Resolve(r.URL.Query().Get("fragment"), session, h.auth))
}

// Session handles GET /auth/session.
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		SignedIn: true,
		Admin:    h.auth.IsAdmin(session),
		Session:  session,
	})
}

// SignOut handles POST /auth/sign-out. The token stays revoked until it
// would have expired.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.SessionFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.revocations.Revoke(r.Context(), session); err != nil {
		h.logger.Error("failed to revoke session", "email", session.Email, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not sign out, please try again")
		return
	}
	h.logger.Info("session signed out", "email", session.Email, "provider", session.Provider)
	w.WriteHeader(http.StatusNoContent)
}
