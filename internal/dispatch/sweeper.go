package dispatch

import (
	"context"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

const sweepBatchSize = 50

// Sweeper re-enqueues leads stuck in queued, e.g. when the enqueue after a
// committed insert failed or an in-memory queue was lost on restart.
type Sweeper struct {
	store      repository.Store
	scheduler  *Scheduler
	log        *logger.Logger
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func NewSweeper(store repository.Store, scheduler *Scheduler, cfg config.DispatchConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		scheduler:  scheduler,
		log:        log,
		interval:   cfg.GetSweepInterval(),
		staleAfter: cfg.GetStaleQueuedAfter(),
		now:        time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error("stale queue sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("stale queued leads re-enqueued", "count", n)
	}
}

// Sweep re-enqueues up to one batch of stale queued leads and returns how many.
// A lead waiting out a retry backoff only counts once its NextAttemptAt has
// passed by staleAfter.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.store.ListStaleQueued(ctx, s.now().Add(-s.staleAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, lead := range stale {
		// Touch updated_at so the lead is not swept again next tick.
		lead.NextAttemptAt = nil
		if _, err := s.store.SaveState(ctx, lead, domain.StatusQueued); err != nil {
			continue
		}
		if err := s.scheduler.ScheduleDispatch(ctx, lead.ID, lead.Attempts+1, 0); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
