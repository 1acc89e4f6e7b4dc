package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

// CompletionSweeper marks SCHEDULED appointments whose date has passed as
// COMPLETED.
type CompletionSweeper struct {
	service *Service
	loc     *time.Location
	logger  *logging.Logger
}

func NewCompletionSweeper(service *Service, loc *time.Location, logger *logging.Logger) *CompletionSweeper {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CompletionSweeper{
		service: service,
		loc:     loc,
		logger:  logger.Component("completion-sweeper"),
	}
}

// SweepOnce runs a single pass and returns how many appointments it completed.
func (w *CompletionSweeper) SweepOnce(ctx context.Context) (int, error) {
	list, err := w.service.List(ctx)
	if err != nil {
		return 0, err
	}
	today := Today(w.service.Now(), w.loc)

	completed := 0
	for _, appt := range list {
		if appt.Status != StatusScheduled || appt.Date >= today {
			continue
		}
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		err := w.service.Complete(ctx, appt.ID, ActorSystem)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStatusConflict), errors.Is(err, ErrInvalidTransition):
			// Someone else moved it first.
		default:
			w.logger.Error("failed to complete appointment", "appointment_id", appt.ID, "error", err)
		}
	}
	if completed > 0 {
		w.logger.Info("completed past appointments", "count", completed, "today", today)
	}
	return completed, nil
}

// Run sweeps once immediately, then every interval until ctx is cancelled.
func (w *CompletionSweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	w.logger.Info("completion sweeper started", "interval", interval.String())

	if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("completion sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("completion sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("completion sweep failed", "error", err)
			}
		}
	}
}
