package share

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-agenda/internal/appointments"
)

func sampleAppointment() appointments.Appointment {
	return appointments.Appointment{
		ID:        "abc123",
		Name:      "Juan Pérez",
		Email:     "juan@example.com",
		Phone:     "600 123 456",
		Date:      "2024-05-01",
		Time:      "10:00",
		Treatment: "Limpieza General",
		Status:    appointments.StatusScheduled,
	}
}

func TestURLUsesFragment(t *testing.T) {
	b := NewBuilder("https://citas.clinica.es/", "Clínica Sonrisa", "ES")
	assert.Equal(t, "https://citas.clinica.es/#appt-abc123", b.URL("abc123"))
}

func TestLinks(t *testing.T) {
	b := NewBuilder("https://citas.clinica.es", "Clínica Sonrisa", "es")
	links, err := b.Links(sampleAppointment())
	require.NoError(t, err)

	assert.Contains(t, links.Reminder, "Juan Pérez")
	assert.Contains(t, links.Reminder, "Limpieza General")
	assert.Contains(t, links.Reminder, "https://citas.clinica.es/#appt-abc123")

	require.True(t, strings.HasPrefix(links.Mailto, "mailto:juan@example.com?subject="))
	assert.NotContains(t, links.Mailto, "+")

	require.True(t, strings.HasPrefix(links.WhatsApp, "https://wa.me/34600123456?text="))
	parsed, err := url.Parse(links.WhatsApp)
	require.NoError(t, err)
	assert.Equal(t, links.Reminder, parsed.Query().Get("text"))
}

func TestMailtoEscapesRecipient(t *testing.T) {
	appt := sampleAppointment()
	appt.Email = "juan?bcc=otro@evil.example&cc=x@evil.example"

	links, err := NewBuilder("https://citas.clinica.es", "Clínica Sonrisa", "ES").Links(appt)
	require.NoError(t, err)

	parsed, err := url.Parse(links.Mailto)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Empty(t, query.Get("bcc"))
	assert.Empty(t, query.Get("cc"))
	assert.NotEmpty(t, query.Get("subject"))
	assert.Equal(t, 1, strings.Count(links.Mailto, "?"))
	assert.True(t, strings.HasPrefix(links.Mailto, "mailto:juan%3Fbcc%3Dotro@evil.example%26cc%3Dx@evil.example?subject="))
}

func TestLinksWithoutContactDetails(t *testing.T) {
	appt := sampleAppointment()
	appt.Email = ""
	appt.Phone = "not a phone"

	links, err := NewBuilder("https://x.es", "Clínica", "ES").Links(appt)
	require.NoError(t, err)
	assert.Empty(t, links.Mailto)
	assert.True(t, strings.HasPrefix(links.WhatsApp, "https://wa.me/?text="))
}

func TestWhatsAppNumber(t *testing.T) {
	b := NewBuilder("https://x.es", "Clínica", "ES")
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+34 600 123 456", "34600123456", false},
		{"600123456", "34600123456", false},
		{"+34 912 345 678", "34912345678", false},
		{"", "", false},
		{"12", "", true},
	}
	for _, tt := range tests {
		got, err := b.WhatsAppNumber(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPhone, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRendererStrictness(t *testing.T) {
	r, err := NewRenderer(map[string]string{"t": "Hola {{.Nombre}}"})
	require.NoError(t, err)

	_, err = r.Render("t", map[string]string{})
	assert.Error(t, err)
	got, err := r.Render("t", map[string]string{"Nombre": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana", got)

	_, err = r.Render("missing", nil)
	assert.Error(t, err)

	_, err = NewRenderer(map[string]string{"empty": ""})
	assert.Error(t, err)
	_, err = NewRenderer(map[string]string{"broken": "{{.Nombre"})
	assert.Error(t, err)
}

func TestQRPNG(t *testing.T) {
	data, err := QRPNG("https://citas.clinica.es/#appt-abc123", 200)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestQRPNGClampsSize(t *testing.T) {
	data, err := QRPNG("x", 5000)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, maxQRSize, img.Bounds().Dx())
}
