package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/pkg/jobs"
)

const statsWarmupJob = "stats_warmup"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// StatsWarmer refills the overview in the background after the stats namespace is invalidated,
// so the next admin read is a hit.
type StatsWarmer struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewStatsWarmer constructs a warmer feeding queue.
func NewStatsWarmer(queue jobEnqueuer, logger *zap.Logger) *StatsWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsWarmer{queue: queue, logger: logger}
}

// Attach registers the warmer as the invalidation hook of the stats namespace.
func (w *StatsWarmer) Attach(cache *CacheService) {
	cache.OnInvalidate(statsNamespace, w.Schedule)
}

// Schedule enqueues one warmup. Requests arriving while a warmup is still waiting coalesce into
// it. A full queue is logged and otherwise ignored.
func (w *StatsWarmer) Schedule(ctx context.Context) {
	queued, err := w.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Key: statsWarmupJob, Type: statsWarmupJob})
	if err != nil {
		w.logger.Warn("schedule stats warmup", zap.Error(err))
		return
	}
	if !queued {
		w.logger.Debug("stats warmup already pending")
	}
}

// Warm recomputes the overview and stores it in cache. It is the handler for warmup jobs.
func (s *StatsService) Warm(ctx context.Context, job jobs.Job) error {
	if !s.cache.Enabled() {
		return nil
	}
	overview, err := s.compute(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, statsOverviewKey, overview); err != nil {
		return err
	}
	s.logger.Debug("stats cache warmed", zap.String("job_id", job.ID))
	return nil
}
