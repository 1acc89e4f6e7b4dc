package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-agenda/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-agenda/internal/http/middleware"
	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; see middleware.RealIP.
	TrustedProxies []string

	// Identity. Without a verifier every request is anonymous and only the
	// public patient routes work.
	Verifier    httpmiddleware.TokenVerifier
	Revocations httpmiddleware.RevocationChecker
	Authorizer  *identity.Authorizer

	// PublicRateLimiter throttles the unauthenticated patient routes per IP.
	PublicRateLimiter httpmiddleware.Limiter

	Health              http.Handler
	MetricsHandler      http.Handler
	Session             *handlers.SessionHandler
	AdminAppointments   *handlers.AdminAppointmentsHandler
	PatientAppointments *handlers.PatientAppointmentsHandler
	Live                *handlers.LiveHandler
	Preferences         *handlers.PreferencesHandler
	Audit               *handlers.AuditHandler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httpmiddleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	// Only the admin and auth surfaces reject bad tokens; a stale token must
	// not lock a browser out of a patient share link.
	strictAuth, optionalAuth := passthrough, passthrough
	if cfg.Verifier != nil {
		strictAuth = httpmiddleware.Authenticate(cfg.Verifier, cfg.Revocations, cfg.Logger)
		optionalAuth = httpmiddleware.AuthenticateOptional(cfg.Verifier, cfg.Revocations, cfg.Logger)
	}

	// Health checks and metrics
	r.Group(func(ops chi.Router) {
		if cfg.Health != nil {
			ops.Handle("/health", cfg.Health)
		} else {
			ops.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})
		}
		if cfg.MetricsHandler != nil {
			ops.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Session and view routing
	if cfg.Session != nil {
		r.With(optionalAuth).Get("/api/view", cfg.Session.View)
		r.Group(func(auth chi.Router) {
			auth.Use(strictAuth)
			auth.Get("/auth/session", cfg.Session.Session)
			auth.With(httpmiddleware.RequireSession).Post("/auth/sign-out", cfg.Session.SignOut)
		})
	}

	// Patient routes: public, the appointment id is the only credential.
	r.Route("/appointments/{id}", func(patient chi.Router) {
		patient.Use(optionalAuth)
		if cfg.PublicRateLimiter != nil {
			patient.Use(httpmiddleware.RateLimit(cfg.PublicRateLimiter, cfg.Logger))
		}
		if cfg.PatientAppointments != nil {
			patient.Get("/", cfg.PatientAppointments.Get)
			patient.Post("/messages", cfg.PatientAppointments.PostMessage)
			patient.Post("/cancel", cfg.PatientAppointments.Cancel)
			patient.Post("/resume", cfg.PatientAppointments.Resume)
			patient.Get("/print", cfg.PatientAppointments.Print)
			patient.Post("/email", cfg.PatientAppointments.Email)
		}
		if cfg.Live != nil {
			patient.Get("/live", cfg.Live.Appointment)
		}
	})

	// Admin routes (session must belong to the configured admin email)
	if cfg.Verifier != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(strictAuth)
			admin.Use(httpmiddleware.RequireAdmin(cfg.Authorizer))

			if cfg.AdminAppointments != nil {
				h := cfg.AdminAppointments
				admin.Route("/appointments", func(r chi.Router) {
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Get("/stats", h.Stats)
					r.Route("/{id}", func(r chi.Router) {
						r.Patch("/", h.Update)
						r.Delete("/", h.Delete)
						r.Post("/cancel", h.Cancel)
						r.Post("/resume", h.Resume)
						r.Post("/complete", h.Complete)
						r.Post("/messages", h.PostMessage)
						r.Get("/share", h.Share)
						r.Get("/qr.png", h.QRCode)
					})
				})
			}
			if cfg.Live != nil {
				admin.Get("/live", cfg.Live.Admin)
			}
			if cfg.Preferences != nil {
				admin.Get("/preferences/theme", cfg.Preferences.GetTheme)
				admin.Put("/preferences/theme", cfg.Preferences.PutTheme)
			}
			if cfg.Audit != nil {
				admin.Get("/audit", cfg.Audit.List)
			}
		})
	}

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
