package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type fakeSeatRepo struct {
	seats       map[int]*models.Seat
	assignErr   error
	assigned    []int
	cleared     []string
	mismatches  []models.SeatMismatch
	repairErrID string
	repaired    []string
	initialized int
}

func (f *fakeSeatRepo) InitializeSeats(ctx context.Context, total int) error {
	f.initialized = total
	return nil
}

func (f *fakeSeatRepo) List(ctx context.Context) ([]models.SeatDetail, error) {
	return nil, nil
}

func (f *fakeSeatRepo) FindBySeatNumber(ctx context.Context, seatNumber int) (*models.Seat, error) {
	if seat, ok := f.seats[seatNumber]; ok {
		return seat, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSeatRepo) FindByStudentID(ctx context.Context, studentID string) (*models.Seat, error) {
	return nil, nil
}

func (f *fakeSeatRepo) AssignSeat(ctx context.Context, studentID string, seatNumber int, expectedVersion int, changedBy *string) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, seatNumber)
	return nil
}

func (f *fakeSeatRepo) ClearSeat(ctx context.Context, studentID string, changedBy *string) error {
	f.cleared = append(f.cleared, studentID)
	return nil
}

func (f *fakeSeatRepo) History(ctx context.Context, studentID string, limit int) ([]models.SeatHistory, error) {
	return nil, nil
}

func (f *fakeSeatRepo) FindMismatches(ctx context.Context) ([]models.SeatMismatch, error) {
	return f.mismatches, nil
}

func (f *fakeSeatRepo) RepairMismatch(ctx context.Context, studentID string, assignedSeat *int) error {
	if studentID == f.repairErrID {
		return errors.New("repair failed")
	}
	f.repaired = append(f.repaired, studentID)
	return nil
}

type fakeSeatStudents struct {
	students map[string]*models.Student
}

func (f *fakeSeatStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSettingsReader struct {
	settings *models.Settings
}

func (f *fakeSettingsReader) Get(ctx context.Context) (*models.Settings, error) {
	return f.settings, nil
}

func newSeatFixture(repo *fakeSeatRepo, settings *models.Settings) *SeatService {
	students := &fakeSeatStudents{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Code: "SS1001", Status: models.StudentStatusActive},
		"stu-2": {ID: "stu-2", Code: "SS1002", Status: models.StudentStatusInactive},
	}}
	return NewSeatService(repo, students, &fakeSettingsReader{settings: settings}, validator.New(), zap.NewNop())
}

func TestSeatServiceAssign(t *testing.T) {
	studentID := "stu-1"
	repo := &fakeSeatRepo{seats: map[int]*models.Seat{
		7: {ID: "seat-7", SeatNumber: 7, StudentID: &studentID, Version: 1},
	}}
	svc := newSeatFixture(repo, nil)

	seat, err := svc.Assign(context.Background(), AssignSeatRequest{StudentID: "stu-1", SeatNumber: 7}, models.Caller{UserID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, seat.SeatNumber)
	assert.Contains(t, repo.assigned, 7)
}

func TestSeatServiceAssignOccupied(t *testing.T) {
	repo := &fakeSeatRepo{assignErr: appErrors.ErrSeatOccupied}
	svc := newSeatFixture(repo, nil)

	_, err := svc.Assign(context.Background(), AssignSeatRequest{StudentID: "stu-1", SeatNumber: 3}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSeatOccupied))
}

func TestSeatServiceAssignStaleVersion(t *testing.T) {
	repo := &fakeSeatRepo{assignErr: appErrors.ErrConflict}
	svc := newSeatFixture(repo, nil)

	_, err := svc.Assign(context.Background(), AssignSeatRequest{StudentID: "stu-1", SeatNumber: 3, Version: 1}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSeatServiceAssignInactiveStudent(t *testing.T) {
	repo := &fakeSeatRepo{}
	svc := newSeatFixture(repo, nil)

	_, err := svc.Assign(context.Background(), AssignSeatRequest{StudentID: "stu-2", SeatNumber: 3}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.assigned)
}

func TestSeatServiceAssignUnknownStudent(t *testing.T) {
	svc := newSeatFixture(&fakeSeatRepo{}, nil)

	_, err := svc.Assign(context.Background(), AssignSeatRequest{StudentID: "missing", SeatNumber: 3}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSeatServiceReconcile(t *testing.T) {
	three := 3
	repo := &fakeSeatRepo{
		mismatches: []models.SeatMismatch{
			{StudentID: "stu-1", AssignedSeat: &three},
			{StudentID: "stu-2", AssignedSeat: nil},
			{StudentID: "stu-3", AssignedSeat: nil},
		},
		repairErrID: "stu-2",
	}
	svc := newSeatFixture(repo, nil)

	repaired, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)
	assert.Equal(t, []string{"stu-1", "stu-3"}, repo.repaired)
}

func TestSeatServiceInitializeFromSettings(t *testing.T) {
	repo := &fakeSeatRepo{}
	svc := newSeatFixture(repo, &models.Settings{TotalSeats: 24})

	require.NoError(t, svc.InitializeFromSettings(context.Background()))
	assert.Equal(t, 24, repo.initialized)
}

func TestSeatServiceInitializeSkipsWithoutCapacity(t *testing.T) {
	repo := &fakeSeatRepo{}
	svc := newSeatFixture(repo, nil)

	require.NoError(t, svc.InitializeFromSettings(context.Background()))
	assert.Zero(t, repo.initialized)
}
