package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type dashboardStudentReader interface {
	CountByStatus(ctx context.Context) (map[models.StudentStatus]int, error)
	CountByFeeStatus(ctx context.Context) (map[models.FeeStatus]int, error)
}

type dashboardSeatReader interface {
	CountOccupied(ctx context.Context) (total int, occupied int, err error)
}

type dashboardAttendanceReader interface {
	CountOpen(ctx context.Context) (int, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

const dashboardCacheKey = "dashboard:summary"

// DashboardService aggregates headline numbers for the admin landing
// page, with a short-lived cache in front of the counts.
type DashboardService struct {
	students   dashboardStudentReader
	seats      dashboardSeatReader
	attendance dashboardAttendanceReader
	cache      *CacheService
	metrics    *MetricsService
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(students dashboardStudentReader, seats dashboardSeatReader, attendance dashboardAttendanceReader, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:   students,
		seats:      seats,
		attendance: attendance,
		cache:      cache,
		metrics:    metrics,
		ttl:        ttl,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the dashboard numbers, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	byStatus, err := s.students.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	byFee, err := s.students.CountByFeeStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count fee statuses")
	}
	totalSeats, occupied, err := s.seats.CountOccupied(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seats")
	}
	present, err := s.attendance.CountOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count present students")
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayCheckIns, err := s.attendance.CountBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's check-ins")
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	summary := &models.DashboardSummary{
		TotalStudents:    total,
		ActiveStudents:   byStatus[models.StudentStatusActive],
		TotalSeats:       totalSeats,
		OccupiedSeats:    occupied,
		CurrentlyPresent: present,
		TodayCheckIns:    todayCheckIns,
		PendingFees:      byFee[models.FeeStatusPending],
		OverdueFees:      byFee[models.FeeStatusOverdue],
		GeneratedAt:      now,
	}

	if s.metrics != nil {
		s.metrics.SetPresent(present)
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.ttl); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the cached summary. Called after writes that change
// the headline numbers.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
