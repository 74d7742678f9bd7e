package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
)

type fakeDashboardStudents struct{}

func (fakeDashboardStudents) CountByStatus(ctx context.Context) (map[models.StudentStatus]int, error) {
	return map[models.StudentStatus]int{
		models.StudentStatusActive:   40,
		models.StudentStatusInactive: 8,
	}, nil
}

func (fakeDashboardStudents) CountByFeeStatus(ctx context.Context) (map[models.FeeStatus]int, error) {
	return map[models.FeeStatus]int{
		models.FeeStatusPaid:    30,
		models.FeeStatusPending: 7,
		models.FeeStatusOverdue: 3,
	}, nil
}

type fakeDashboardSeats struct{}

func (fakeDashboardSeats) CountOccupied(ctx context.Context) (int, int, error) {
	return 50, 35, nil
}

type fakeDashboardAttendance struct{}

func (fakeDashboardAttendance) CountOpen(ctx context.Context) (int, error) {
	return 12, nil
}

func (fakeDashboardAttendance) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	return 21, nil
}

func TestDashboardServiceSummary(t *testing.T) {
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewDashboardService(fakeDashboardStudents{}, fakeDashboardSeats{}, fakeDashboardAttendance{}, cache, nil, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48, summary.TotalStudents)
	assert.Equal(t, 40, summary.ActiveStudents)
	assert.Equal(t, 50, summary.TotalSeats)
	assert.Equal(t, 35, summary.OccupiedSeats)
	assert.Equal(t, 12, summary.CurrentlyPresent)
	assert.Equal(t, 21, summary.TodayCheckIns)
	assert.Equal(t, 7, summary.PendingFees)
	assert.Equal(t, 3, summary.OverdueFees)
}
