// Package share builds the patient-facing links, reminder text, and QR code
// for an appointment.
package share

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/wolfman30/dental-agenda/internal/appointments"
	"github.com/wolfman30/dental-agenda/internal/views"
)

// ErrInvalidPhone is returned when a phone number cannot be normalized.
var ErrInvalidPhone = errors.New("share: invalid phone number")

const reminderTemplate = `Hola {{.Name}}, te recordamos tu cita de {{.Treatment}} en {{.Clinic}} el {{.Date}} a las {{.Time}}.
Puedes ver los detalles y escribirnos aquí: {{.URL}}`

const emailSubjectTemplate = `Tu cita en {{.Clinic}} el {{.Date}} a las {{.Time}}`

// Links is everything the admin needs to send a reminder.
type Links struct {
	URL      string `json:"url"`
	Reminder string `json:"reminder"`
	Mailto   string `json:"mailto,omitempty"`
	WhatsApp string `json:"whatsapp"`
}

// Builder renders links against the public base URL.
type Builder struct {
	baseURL  string
	clinic   string
	region   string
	renderer *Renderer
}

func NewBuilder(baseURL, clinicName, defaultRegion string) *Builder {
	return &Builder{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clinic:   clinicName,
		region:   strings.ToUpper(defaultRegion),
		renderer: defaultRenderer,
	}
}

// URL is the share link: base URL followed by the "#appt-<id>" fragment.
func (b *Builder) URL(id string) string {
	return b.baseURL + "/" + views.Fragment(id)
}

type reminderData struct {
	Name      string
	Treatment string
	Clinic    string
	Date      string
	Time      string
	URL       string
}

func (b *Builder) data(appt appointments.Appointment) reminderData {
	return reminderData{
		Name:      appt.Name,
		Treatment: appt.Treatment,
		Clinic:    b.clinic,
		Date:      appt.Date,
		Time:      appt.Time,
		URL:       b.URL(appt.ID),
	}
}

// Reminder renders the reminder text sent to the patient.
func (b *Builder) Reminder(appt appointments.Appointment) (string, error) {
	return b.renderer.Render("reminder", b.data(appt))
}

// Subject renders the email subject line.
func (b *Builder) Subject(appt appointments.Appointment) (string, error) {
	return b.renderer.Render("subject", b.data(appt))
}

// Links builds every share option. A phone that cannot be parsed still
// yields a WhatsApp link without a recipient.
func (b *Builder) Links(appt appointments.Appointment) (Links, error) {
	reminder, err := b.Reminder(appt)
	if err != nil {
		return Links{}, err
	}
	subject, err := b.Subject(appt)
	if err != nil {
		return Links{}, err
	}

	links := Links{URL: b.URL(appt.ID), Reminder: reminder}
	if appt.Email != "" {
		links.Mailto = fmt.Sprintf("mailto:%s?subject=%s&body=%s",
			mailtoAddress(appt.Email), mailEscape(subject), mailEscape(reminder))
	}

	digits, err := b.WhatsAppNumber(appt.Phone)
	if err != nil {
		digits = ""
	}
	links.WhatsApp = "https://wa.me/" + digits + "?text=" + url.QueryEscape(reminder)
	return links, nil
}

// WhatsAppNumber normalizes phone to E.164 digits without the plus sign.
// Numbers without a country code are read in the default region.
func (b *Builder) WhatsAppNumber(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(phone, b.region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+"), nil
}

// mailtoAddress escapes the recipient so "?", "&" or "=" in a local part
// cannot start or extend the header list.
func mailtoAddress(addr string) string {
	return mailtoAddrReplacer.Replace(url.PathEscape(strings.TrimSpace(addr)))
}

var mailtoAddrReplacer = strings.NewReplacer("&", "%26", "=", "%3D")

// mailEscape percent-encodes for mailto query values, where "+" is not a space.
func mailEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
