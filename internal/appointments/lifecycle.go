package appointments

import (
	"context"
	"strings"

	"github.com/wolfman30/dental-agenda/internal/audit"
)

// Actor identifies who drove a change, for the audit trail.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorSystem  Actor = "system"
)

// AdminActor tags a change made from the dashboard.
func AdminActor(email string) Actor {
	return Actor("admin:" + email)
}

// Action is a lifecycle command.
type Action string

const (
	ActionCancel   Action = "cancel"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
)

// NextStatus returns the status action leads to from current. A result equal
// to current means the action is a no-op.
func NextStatus(current Status, action Action) (Status, error) {
	switch action {
	case ActionCancel:
		if current == StatusScheduled {
			return StatusCancelled, nil
		}
	case ActionResume:
		switch current {
		case StatusCancelled:
			return StatusScheduled, nil
		case StatusScheduled:
			return current, nil
		}
	case ActionComplete:
		switch current {
		case StatusScheduled:
			return StatusCompleted, nil
		case StatusCompleted:
			return current, nil
		}
	}
	return current, ErrInvalidTransition
}

// Cancel moves a SCHEDULED appointment to CANCELLED and stores the reason.
// A blank reason fails before the store is touched.
func (s *Service) Cancel(ctx context.Context, id, reason string, actor Actor) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCancellationReasonRequired
	}
	return s.transition(ctx, id, ActionCancel, reason, actor)
}

// Resume moves a CANCELLED appointment back to SCHEDULED and clears the reason.
func (s *Service) Resume(ctx context.Context, id string, actor Actor) error {
	return s.transition(ctx, id, ActionResume, "", actor)
}

// Complete marks a SCHEDULED appointment as attended.
func (s *Service) Complete(ctx context.Context, id string, actor Actor) error {
	return s.transition(ctx, id, ActionComplete, "", actor)
}

func (s *Service) transition(ctx context.Context, id string, action Action, reason string, actor Actor) error {
	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	next, err := NextStatus(appt.Status, action)
	if err != nil {
		s.logger.Info("rejected status transition", "appointment_id", id, "status", appt.Status, "action", action)
		return err
	}
	if next == appt.Status {
		return nil
	}

	patch := Patch{Status: &next}
	switch action {
	case ActionCancel:
		patch.CancellationReason = &reason
	case ActionResume:
		cleared := ""
		patch.CancellationReason = &cleared
	}
	if err := s.store.Update(ctx, id, patch, appt.Status); err != nil {
		return s.writeFailed(string(action), id, err)
	}

	s.observe(string(action), nil)
	s.metrics.ObserveTransition(string(appt.Status), string(next))
	s.logger.Info("appointment status changed", "appointment_id", id, "from", appt.Status, "to", next, "actor", actor)
	s.publish(ctx, id, ChangeUpdated)
	s.record(ctx, audit.Event{
		Type:          transitionEvent(action),
		AppointmentID: id,
		Actor:         string(actor),
		FromStatus:    string(appt.Status),
		ToStatus:      string(next),
		Reason:        reason,
	})
	return nil
}

func transitionEvent(action Action) audit.EventType {
	switch action {
	case ActionCancel:
		return audit.EventCancelled
	case ActionResume:
		return audit.EventResumed
	default:
		return audit.EventCompleted
	}
}
