package share

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/wolfman30/dental-agenda/internal/appointments"
)

var summaryTemplate = template.Must(template.New("summary").Funcs(template.FuncMap{
	"status": statusLabel,
	"sender": senderLabel,
	"clock":  clockLabel,
}).Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Cita {{.Appointment.Date}} {{.Appointment.Time}} · {{.Clinic}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; color: #1f2933; }
dt { font-weight: 600; margin-top: .5rem; }
.msg { margin: .25rem 0; }
@media print { .no-print { display: none; } }
</style>
</head>
<body>
<h1>{{.Clinic}}</h1>
<h2>Resumen de la cita</h2>
<dl>
<dt>Paciente</dt><dd>{{.Appointment.Name}}</dd>
<dt>Fecha</dt><dd>{{.Appointment.Date}} a las {{.Appointment.Time}}</dd>
<dt>Tratamiento</dt><dd>{{.Appointment.Treatment}}</dd>
<dt>Estado</dt><dd>{{status .Appointment.Status}}</dd>
{{- if .Appointment.CancellationReason}}
<dt>Motivo de cancelación</dt><dd>{{.Appointment.CancellationReason}}</dd>
{{- end}}
</dl>
{{- if .Appointment.Messages}}
<h3>Mensajes</h3>
{{- range .Appointment.Messages}}
<p class="msg"><strong>{{sender .Sender}}</strong> <small>{{clock .Timestamp $.Location}}</small><br>{{.Text}}</p>
{{- end}}
{{- end}}
<p><a href="{{.URL}}">{{.URL}}</a></p>
<button class="no-print" onclick="window.print()">Imprimir / Guardar PDF</button>
</body>
</html>
`))

type summaryData struct {
	Appointment appointments.Appointment
	Clinic      string
	URL         string
	Location    *time.Location
}

// SummaryHTML renders the printable summary page for appt.
func (b *Builder) SummaryHTML(appt appointments.Appointment, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, summaryData{
		Appointment: appt,
		Clinic:      b.clinic,
		URL:         b.URL(appt.ID),
		Location:    loc,
	})
	if err != nil {
		return nil, fmt.Errorf("share: render summary: %w", err)
	}
	return buf.Bytes(), nil
}

func statusLabel(s appointments.Status) string {
	switch s {
	case appointments.StatusScheduled:
		return "Programada"
	case appointments.StatusCompleted:
		return "Completada"
	case appointments.StatusCancelled:
		return "Cancelada"
	}
	return string(s)
}

func senderLabel(s appointments.Sender) string {
	if s == appointments.SenderDoctor {
		return "Clínica"
	}
	return "Paciente"
}

func clockLabel(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format("02/01/2006 15:04")
}
