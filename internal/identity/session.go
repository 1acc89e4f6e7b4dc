// Package identity turns bearer tokens into sessions and decides who is the
// clinic admin.
package identity

import (
	"context"
	"strings"
	"time"
)

// Session is the signed-in identity behind a request.
type Session struct {
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	TokenID   string    `json:"-"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type contextKey string

const sessionKey contextKey = "identitySession"

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session attached by the auth middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// Authorizer knows the single admin identity.
type Authorizer struct {
	adminEmail string
}

func NewAuthorizer(adminEmail string) *Authorizer {
	return &Authorizer{adminEmail: strings.TrimSpace(adminEmail)}
}

// IsAdmin matches by exact string equality. No admin is configured when the
// address is empty.
func (a *Authorizer) IsAdmin(s *Session) bool {
	if a == nil || a.adminEmail == "" || s == nil {
		return false
	}
	return s.Email == a.adminEmail
}
