// Package views decides which screen a request lands on.
package views

import (
	"strings"

	"github.com/wolfman30/dental-agenda/internal/identity"
)

// FragmentPrefix marks a patient share link: "#appt-<id>".
const FragmentPrefix = "#appt-"

// Kind is the top-level screen.
type Kind string

const (
	KindPatient      Kind = "patient"
	KindSignIn       Kind = "sign_in"
	KindAccessDenied Kind = "access_denied"
	KindAdmin        Kind = "admin"
)

// View is the routing decision.
type View struct {
	Kind          Kind   `json:"view"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Email         string `json:"email,omitempty"`
	CanSignOut    bool   `json:"canSignOut,omitempty"`
}

// Fragment builds the share fragment for id.
func Fragment(id string) string {
	return FragmentPrefix + id
}

// ParseFragment extracts the appointment id from a share fragment. The leading
// "#" is optional.
func ParseFragment(fragment string) (string, bool) {
	fragment = strings.TrimSpace(fragment)
	if !strings.HasPrefix(fragment, "#") {
		fragment = "#" + fragment
	}
	if !strings.HasPrefix(fragment, FragmentPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(fragment, FragmentPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}

// Resolve applies the routing rules in order: a share fragment always opens
// the patient view, whatever the session; then sign-in; then the admin check.
func Resolve(fragment string, session *identity.Session, auth *identity.Authorizer) View {
	if id, ok := ParseFragment(fragment); ok {
		return View{Kind: KindPatient, AppointmentID: id}
	}
	if session == nil {
		return View{Kind: KindSignIn}
	}
	if !auth.IsAdmin(session) {
		return View{Kind: KindAccessDenied, Email: session.Email, CanSignOut: true}
	}
	return View{Kind: KindAdmin, Email: session.Email, CanSignOut: true}
}
