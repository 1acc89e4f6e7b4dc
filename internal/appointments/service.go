package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/dental-agenda/internal/audit"
	"github.com/wolfman30/dental-agenda/internal/observability/metrics"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// AuditLog records appointment changes. Failures never block the write.
type AuditLog interface {
	LogEvent(ctx context.Context, event audit.Event) error
}

// Unsubscribe releases a live subscription. It is idempotent and blocks until
// no more callbacks will run, so it must not be called from inside one.
type Unsubscribe func()

// Service is the only path between handlers and the document store.
type Service struct {
	store    Store
	feed     ChangeFeed
	audit    AuditLog
	metrics  *metrics.AppointmentMetrics
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time

	lastMsgMillis atomic.Int64
}

// Option configures optional collaborators.
type Option func(*Service)

func WithAudit(a AuditLog) Option {
	return func(s *Service) { s.audit = a }
}

func WithMetrics(m *metrics.AppointmentMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the storage access layer.
func NewService(store Store, feed ChangeFeed, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if feed == nil {
		feed = NewMemoryFeed()
	}
	s := &Service{
		store:    store,
		feed:     feed,
		validate: newValidator(),
		logger:   logger.Component("appointments"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// List returns every appointment sorted by schedule.
func (s *Service) List(ctx context.Context) ([]Appointment, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		s.observe("list", err)
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	SortBySchedule(list)
	return list, nil
}

// GetByID returns ErrNotFound for a missing id and a wrapped error for
// anything else.
func (s *Service) GetByID(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.observe("get", err)
		s.logger.Error("failed to load appointment", "appointment_id", id, "error", err)
		return nil, fmt.Errorf("appointments: get %s: %w", id, err)
	}
	return appt, nil
}

// Create stores a new SCHEDULED appointment with an empty thread.
func (s *Service) Create(ctx context.Context, in NewAppointment, actor Actor) (*Appointment, error) {
	if err := s.validateNew(&in); err != nil {
		return nil, err
	}

	appt := &Appointment{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Date:      in.Date,
		Time:      in.Time,
		Treatment: in.Treatment.String(),
		Status:    StatusScheduled,
		CreatedAt: s.now().UnixMilli(),
		Messages:  []ChatMessage{},
	}
	if err := s.store.Insert(ctx, appt); err != nil {
		return nil, s.writeFailed("create", "", err)
	}
	s.observe("create", nil)
	s.logger.Info("appointment created", "appointment_id", appt.ID, "date", appt.Date, "time", appt.Time)

	s.publish(ctx, appt.ID, ChangeCreated)
	s.record(ctx, audit.Event{
		Type:          audit.EventCreated,
		AppointmentID: appt.ID,
		Actor:         string(actor),
		ToStatus:      string(StatusScheduled),
	})
	return appt, nil
}

// Update writes only the fields present in patch. Concurrent edits resolve
// last-writer-wins per field.
func (s *Service) Update(ctx context.Context, id string, patch Patch, actor Actor) error {
	if err := s.validatePatch(&patch); err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		return s.writeFailed("update", id, err)
	}
	s.observe("update", nil)
	s.publish(ctx, id, ChangeUpdated)
	s.record(ctx, audit.Event{
		Type:          audit.EventUpdated,
		AppointmentID: id,
		Actor:         string(actor),
	})
	return nil
}

// AppendMessage assigns the message id and appends atomically in the store.
func (s *Service) AppendMessage(ctx context.Context, id string, in MessageInput) (*ChatMessage, error) {
	if err := s.validateMessage(&in); err != nil {
		return nil, err
	}
	msg := ChatMessage{
		ID:        s.nextMessageID(),
		Sender:    in.Sender,
		Text:      in.Text,
		Timestamp: in.Timestamp,
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.now().UnixMilli()
	}
	if err := s.store.AppendMessage(ctx, id, msg); err != nil {
		return nil, s.writeFailed("append_message", id, err)
	}
	s.observe("append_message", nil)
	s.metrics.ObserveMessage(string(msg.Sender))
	s.publish(ctx, id, ChangeMessage)
	s.record(ctx, audit.Event{
		Type:          audit.EventMessageAppended,
		AppointmentID: id,
		Actor:         string(msg.Sender),
	})
	return &msg, nil
}

// Remove deletes the appointment together with its thread.
func (s *Service) Remove(ctx context.Context, id string, actor Actor) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.writeFailed("remove", id, err)
	}
	s.observe("remove", nil)
	s.logger.Info("appointment removed", "appointment_id", id)
	s.publish(ctx, id, ChangeDeleted)
	s.record(ctx, audit.Event{
		Type:          audit.EventDeleted,
		AppointmentID: id,
		Actor:         string(actor),
	})
	return nil
}

// SubscribeAll pushes the full sorted set now and after every change.
// onError is called at most once; the subscription is not retried.
func (s *Service) SubscribeAll(ctx context.Context, onData func([]Appointment), onError func(error)) Unsubscribe {
	return s.subscribe(ctx, "all", func(Change) bool { return true }, func(ctx context.Context) error {
		list, err := s.List(ctx)
		if err != nil {
			return err
		}
		onData(list)
		return nil
	}, onError)
}

// SubscribeOne pushes the current document for id, or nil when it does not
// exist, and again after every change to it. Absence is not an error.
func (s *Service) SubscribeOne(ctx context.Context, id string, onChange func(*Appointment), onError func(error)) Unsubscribe {
	return s.subscribe(ctx, "one", func(c Change) bool {
		return c.ID == id || c.Kind == ChangeResync
	}, func(ctx context.Context) error {
		appt, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			onChange(nil)
			return nil
		}
		if err != nil {
			return err
		}
		onChange(appt)
		return nil
	}, onError)
}

// subscribe runs the feed loop shared by SubscribeAll and SubscribeOne. The
// feed subscription is active before the first load so no write between the
// snapshot and the stream is missed.
func (s *Service) subscribe(
	parent context.Context,
	scope string,
	match func(Change) bool,
	load func(context.Context) error,
	onError func(error),
) Unsubscribe {
	ctx, cancel := context.WithCancel(parent)
	fail := func(err error) {
		s.logger.Error("live subscription failed", "scope", scope, "error", err)
		if onError != nil {
			onError(err)
		}
	}

	changes, closeFeed, err := s.feed.Subscribe(ctx)
	if err != nil {
		cancel()
		fail(fmt.Errorf("appointments: subscribe: %w", err))
		return func() {}
	}
	s.metrics.SubscriptionOpened(scope)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := load(ctx); err != nil {
			if ctx.Err() == nil {
				fail(err)
			}
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				matched := match(change)
				if drainMatching(changes, match) {
					matched = true
				}
				if !matched {
					continue
				}
				if err := load(ctx); err != nil {
					if ctx.Err() == nil {
						fail(err)
					}
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			closeFeed()
			<-done
			s.metrics.SubscriptionClosed(scope)
		})
	}
}

// drainMatching consumes whatever is already queued and reports whether any of
// it matched. Bursts collapse into one reload.
func drainMatching(changes <-chan Change, match func(Change) bool) bool {
	matched := false
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return matched
			}
			if match(change) {
				matched = true
			}
		default:
			return matched
		}
	}
}

// nextMessageID returns "<ms>-<suffix>" where ms never goes backwards within
// this process, so ids sort in append order.
func (s *Service) nextMessageID() string {
	for {
		last := s.lastMsgMillis.Load()
		ms := s.now().UnixMilli()
		if ms <= last {
			ms = last + 1
		}
		if s.lastMsgMillis.CompareAndSwap(last, ms) {
			return fmt.Sprintf("%d-%s", ms, uuid.NewString()[:8])
		}
	}
}

func (s *Service) publish(ctx context.Context, id string, kind ChangeKind) {
	change := Change{ID: id, Kind: kind, At: s.now().UnixMilli()}
	if err := s.feed.Publish(context.WithoutCancel(ctx), change); err != nil {
		s.logger.Warn("failed to publish change", "appointment_id", id, "kind", kind, "error", err)
	}
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to record audit event", "appointment_id", event.AppointmentID, "event", event.Type, "error", err)
	}
}

// writeFailed logs and classifies a store write error. Sentinels pass through
// so callers can map them.
func (s *Service) writeFailed(op, id string, err error) error {
	s.observe(op, err)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("write on missing appointment", "operation", op, "appointment_id", id)
		return ErrNotFound
	case errors.Is(err, ErrPermissionDenied):
		s.logger.Warn("store denied write, session may need re-authentication", "operation", op, "appointment_id", id)
		return ErrPermissionDenied
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrAlreadyExists):
		s.logger.Warn("conflicting write", "operation", op, "appointment_id", id, "error", err)
		return err
	}
	s.logger.Error("store write failed", "operation", op, "appointment_id", id, "error", err)
	return fmt.Errorf("appointments: %s: %w", op, err)
}

func (s *Service) observe(op string, err error) {
	s.metrics.ObserveOperation(op, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrStatusConflict):
		return "conflict"
	default:
		return "error"
	}
}
