package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/dental-agenda/internal/identity"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// TokenVerifier turns a bearer token into a session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Session, error)
}

// RevocationChecker reports signed-out tokens.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Authenticate attaches the session of a valid bearer token to the request.
// Requests without a token pass through anonymously; a bad or revoked token
// is rejected. Browsers cannot set headers on WebSocket upgrades, so the
// token may also come in the access_token query parameter.
func Authenticate(verifier TokenVerifier, revocations RevocationChecker, logger *logging.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, revocations, logger, true)
}

// AuthenticateOptional is Authenticate for public pages: a stale, invalid or
// revoked token is dropped and the request continues anonymously.
func AuthenticateOptional(verifier TokenVerifier, revocations RevocationChecker, logger *logging.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, revocations, logger, false)
}

func authenticate(verifier TokenVerifier, revocations RevocationChecker, logger *logging.Logger, strict bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			reject := func(status int, body string) {
				if strict {
					http.Error(w, body, status)
					return
				}
				next.ServeHTTP(w, r)
			}

			session, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrNotConfigured) {
					logger.Warn("token verification not configured")
				}
				reject(http.StatusUnauthorized, `{"error":"invalid token"}`)
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), session.TokenID)
				if err != nil {
					logger.Error("revocation check failed", "error", err)
					reject(http.StatusServiceUnavailable, `{"error":"session check unavailable"}`)
					return
				}
				if revoked {
					reject(http.StatusUnauthorized, `{"error":"session signed out"}`)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), session)))
		})
	}
}

// RequireSession rejects anonymous requests.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.SessionFromContext(r.Context()); !ok {
			http.Error(w, `{"error":"sign in required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets through only the configured admin identity.
func RequireAdmin(auth *identity.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := identity.SessionFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"sign in required"}`, http.StatusUnauthorized)
				return
			}
			if !auth.IsAdmin(session) {
				http.Error(w, `{"error":"access denied","signOut":true}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
