package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

const (
	statsNamespace    = "stats"
	statsOverviewKey  = statsNamespace + ":overview"
	statsCachePattern = statsNamespace + ":*"
)

type statsAppointmentCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type statsUserCounter interface {
	CountByRole(ctx context.Context) ([]models.RoleCount, error)
}

type statsSlotCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatsService assembles the admin overview with cache integration.
type StatsService struct {
	appointments statsAppointmentCounter
	users        statsUserCounter
	slots        statsSlotCounter
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// NewStatsService constructs a stats service and sets the lifetime of the stats namespace to
// ttl. cache may be nil.
func NewStatsService(appointments statsAppointmentCounter, users statsUserCounter, slots statsSlotCounter, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache.SetTTL(statsNamespace, ttl)
	return &StatsService{
		appointments: appointments,
		users:        users,
		slots:        slots,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Overview returns aggregate counts. The boolean reports whether the payload came from cache.
func (s *StatsService) Overview(ctx context.Context) (*models.StatsOverview, bool, error) {
	var cached models.StatsOverview
	if hit, err := s.cache.Get(ctx, statsOverviewKey, &cached); err != nil {
		s.logger.Warn("stats cache unavailable, computing directly", zap.Error(err))
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	overview, err := s.compute(ctx)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("stats_overview", time.Since(start))

	if err := s.cache.Set(ctx, statsOverviewKey, overview); err != nil {
		s.logger.Warn("cache stats overview", zap.Error(err))
	}
	return overview, false, nil
}

// System returns the process instrumentation digest.
func (s *StatsService) System() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func (s *StatsService) compute(ctx context.Context) (*models.StatsOverview, error) {
	statusRows, err := s.appointments.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count appointments")
	}
	roleRows, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	slotTotal, err := s.slots.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count availability")
	}

	overview := &models.StatsOverview{AvailabilitySlots: slotTotal, GeneratedAt: s.now().UTC()}
	for _, row := range statusRows {
		overview.Appointments.Total += row.Count
		switch row.Status {
		case models.StatusPending:
			overview.Appointments.Pending = row.Count
		case models.StatusApproved:
			overview.Appointments.Approved = row.Count
		case models.StatusRejected:
			overview.Appointments.Rejected = row.Count
		case models.StatusCanceled:
			overview.Appointments.Canceled = row.Count
		case models.StatusCompleted:
			overview.Appointments.Completed = row.Count
		}
	}
	for _, row := range roleRows {
		switch row.Role {
		case models.RoleStudent:
			overview.Users.Students = row.Count
		case models.RoleFaculty:
			overview.Users.Faculty = row.Count
		case models.RoleAdmin:
			overview.Users.Admins = row.Count
		}
	}
	return overview, nil
}
