// Package audit keeps an append-only trail of appointment changes in Postgres.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to an appointment.
type EventType string

const (
	EventCreated         EventType = "appointment.created"
	EventUpdated         EventType = "appointment.updated"
	EventCancelled       EventType = "appointment.cancelled"
	EventResumed         EventType = "appointment.resumed"
	EventCompleted       EventType = "appointment.completed"
	EventDeleted         EventType = "appointment.deleted"
	EventMessageAppended EventType = "appointment.message_appended"
)

// Event is one immutable audit row.
type Event struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"event_type"`
	AppointmentID string          `json:"appointment_id"`
	Actor         string          `json:"actor,omitempty"`
	FromStatus    string          `json:"from_status,omitempty"`
	ToStatus      string          `json:"to_status,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows QueryEvents.
type Filter struct {
	AppointmentID string
	Type          EventType
	Since         time.Time
	Limit         int
	Offset        int
}

// Service writes and reads audit rows.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent inserts event, filling in the id and timestamp when missing.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO appointment_audit_events (
			id, event_type, appointment_id, actor, from_status,
			to_status, reason, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.AppointmentID,
		nullString(event.Actor),
		nullString(event.FromStatus),
		nullString(event.ToStatus),
		nullString(event.Reason),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// QueryEvents returns matching rows, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, appointment_id, actor, from_status,
			   to_status, reason, details, created_at
		FROM appointment_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.AppointmentID != "" {
		query += fmt.Sprintf(" AND appointment_id = $%d", argIdx)
		args = append(args, filter.AppointmentID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var actor, from, to, reason sql.NullString
		var details []byte
		if err := rows.Scan(
			&e.ID, &e.Type, &e.AppointmentID, &actor, &from,
			&to, &reason, &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.Actor = actor.String
		e.FromStatus = from.String
		e.ToStatus = to.String
		e.Reason = reason.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
