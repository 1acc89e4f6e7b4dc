// Package appointments holds the appointment record, its lifecycle, and the
// storage access layer every handler goes through.
package appointments

import (
	"strings"
)

// Status is the stored lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "PROGRAMADA"
	StatusCompleted Status = "COMPLETADA"
	StatusCancelled Status = "CANCELADA"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderDoctor  Sender = "doctor"
	SenderPatient Sender = "patient"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderDoctor || s == SenderPatient
}

// ChatMessage is one immutable entry of an appointment's embedded thread.
type ChatMessage struct {
	ID        string `json:"id" dynamodbav:"id"`
	Sender    Sender `json:"sender" dynamodbav:"sender"`
	Text      string `json:"text" dynamodbav:"text"`
	Timestamp int64  `json:"timestamp" dynamodbav:"timestamp"`
}

// Appointment is the single document type kept in the store.
// Date and Time are unzoned, zero-padded strings (YYYY-MM-DD, HH:MM).
type Appointment struct {
	ID                 string        `json:"id" dynamodbav:"id"`
	Name               string        `json:"name" dynamodbav:"name"`
	Email              string        `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone              string        `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Date               string        `json:"date" dynamodbav:"date"`
	Time               string        `json:"time" dynamodbav:"time"`
	Treatment          string        `json:"treatment" dynamodbav:"treatment"`
	Status             Status        `json:"status" dynamodbav:"status"`
	CreatedAt          int64         `json:"createdAt" dynamodbav:"createdAt"`
	CancellationReason string        `json:"cancellationReason,omitempty" dynamodbav:"cancellationReason,omitempty"`
	Comment            string        `json:"comment,omitempty" dynamodbav:"comment,omitempty"`
	Messages           []ChatMessage `json:"messages" dynamodbav:"messages"`
}

// Clone returns a deep copy so callers never share the message slice.
func (a Appointment) Clone() Appointment {
	out := a
	out.Messages = make([]ChatMessage, len(a.Messages))
	copy(out.Messages, a.Messages)
	return out
}

// TreatmentValue returns the tagged treatment behind the stored label.
func (a Appointment) TreatmentValue() Treatment {
	return ParseTreatment(a.Treatment)
}

// NewAppointment carries the admin form fields for a create.
type NewAppointment struct {
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" validate:"omitempty,max=32"`
	Date      string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string    `json:"time" validate:"required,datetime=15:04"`
	Treatment Treatment `json:"-" validate:"-"`
}

// Normalize trims the free-text fields in place.
func (n *NewAppointment) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.Email = strings.TrimSpace(n.Email)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Date = strings.TrimSpace(n.Date)
	n.Time = strings.TrimSpace(n.Time)
}

// Patch is a partial update. Nil fields are left untouched; the store merges
// the rest field by field with last-writer-wins semantics.
type Patch struct {
	Name      *string
	Email     *string
	Phone     *string
	Date      *string
	Time      *string
	Treatment *Treatment
	Status    *Status
	// CancellationReason set to an empty string removes the attribute.
	CancellationReason *string
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Date == nil &&
		p.Time == nil && p.Treatment == nil && p.Status == nil && p.CancellationReason == nil
}

// Apply merges the patch into a copy of a.
func (p Patch) Apply(a Appointment) Appointment {
	out := a.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Time != nil {
		out.Time = *p.Time
	}
	if p.Treatment != nil {
		out.Treatment = p.Treatment.String()
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CancellationReason != nil {
		out.CancellationReason = *p.CancellationReason
	}
	return out
}

// MessageInput is a chat message before the store assigns its id.
type MessageInput struct {
	Sender Sender `json:"sender" validate:"required,oneof=doctor patient"`
	Text   string `json:"text" validate:"required"`
	// Timestamp is the sender's clock in epoch ms; zero means now.
	Timestamp int64 `json:"timestamp" validate:"gte=0"`
}
