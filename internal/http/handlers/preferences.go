package handlers

import (
	"net/http"

	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/internal/preferences"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const colorSchemeHint = "Sec-CH-Prefers-Color-Scheme"

// PreferencesHandler reads and stores the admin's dashboard theme.
type PreferencesHandler struct {
	themes preferences.ThemeStore
	logger *logging.Logger
}

func NewPreferencesHandler(themes preferences.ThemeStore, logger *logging.Logger) *PreferencesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PreferencesHandler{themes: themes, logger: logger}
}

type themePayload struct {
	Theme preferences.Theme `json:"theme"`
}

// GetTheme handles GET /admin/preferences/theme.
func (h *PreferencesHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Accept-CH", colorSchemeHint)
	w.Header().Add("Vary", colorSchemeHint)

	email := ""
	if s, ok := identity.SessionFromContext(r.Context()); ok {
		email = s.Email
	}
	theme, err := preferences.Resolve(r.Context(), h.themes, email, r.Header.Get(colorSchemeHint))
	if err != nil {
		// The fallback theme is still usable.
		h.logger.Warn("failed to load theme preference", "error", err)
	}
	writeJSON(w, http.StatusOK, themePayload{Theme: theme})
}

// PutTheme handles PUT /admin/preferences/theme.
func (h *PreferencesHandler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	theme, err := preferences.ParseTheme(req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	session, ok := identity.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	if err := h.themes.SetTheme(r.Context(), session.Email, theme); err != nil {
		h.logger.Error("failed to store theme preference", "email", session.Email, "error", err)
		writeError(w, http.StatusBadGateway, "could not save the theme, please try again")
		return
	}
	writeJSON(w, http.StatusOK, themePayload{Theme: theme})
}
