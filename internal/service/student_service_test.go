package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type fakeStudentRepo struct {
	students    map[string]*models.Student
	latestCode  string
	created     []models.Student
	deactivated []string
	deleted     []string
	overdue     int64
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	for _, s := range f.students {
		if s.Code == code {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) LatestCode(ctx context.Context) (string, error) {
	return f.latestCode, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	f.created = append(f.created, *student)
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if f.students == nil {
		f.students = make(map[string]*models.Student)
	}
	clone := *student
	f.students[student.ID] = &clone
	return nil
}

func (f *fakeStudentRepo) UpdateFeeStatus(ctx context.Context, id string, status models.FeeStatus, dueDate *time.Time) error {
	return nil
}

func (f *fakeStudentRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return f.overdue, nil
}

func (f *fakeStudentRepo) Deactivate(ctx context.Context, id string) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := f.students[id]; !ok {
		return 0, nil
	}
	delete(f.students, id)
	f.deleted = append(f.deleted, id)
	return 1, nil
}

type fakeStudentSeats struct {
	seats    map[int]*models.Seat
	assigned map[string]int
	released []string
}

func (f *fakeStudentSeats) FindBySeatNumber(ctx context.Context, seatNumber int) (*models.Seat, error) {
	if s, ok := f.seats[seatNumber]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentSeats) AssignSeat(ctx context.Context, studentID string, seatNumber int, expectedVersion int, changedBy *string) error {
	if f.assigned == nil {
		f.assigned = make(map[string]int)
	}
	f.assigned[studentID] = seatNumber
	return nil
}

func (f *fakeStudentSeats) ClearSeat(ctx context.Context, studentID string, changedBy *string) error {
	f.released = append(f.released, studentID)
	return nil
}

func newStudentFixture(repo *fakeStudentRepo, settings *models.Settings) *StudentService {
	return NewStudentService(repo, &fakeSettingsReader{settings: settings}, nil, validator.New(), zap.NewNop())
}

func TestStudentServiceCreateFirstStudent(t *testing.T) {
	repo := &fakeStudentRepo{}
	svc := newStudentFixture(repo, &models.Settings{DefaultMonthlyFee: 1500})

	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Asha", Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "SS1001", student.Code)
	assert.Equal(t, 1500.0, student.MonthlyFee)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.Equal(t, models.FeeStatusPending, student.FeeStatus)
	require.Len(t, repo.created, 1)
}

func TestStudentServiceCreateIncrementsCode(t *testing.T) {
	repo := &fakeStudentRepo{latestCode: "SS1042"}
	svc := newStudentFixture(repo, nil)

	fee := 900.0
	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Ravi", Phone: "9876543211", MonthlyFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, "SS1043", student.Code)
	assert.Equal(t, 900.0, student.MonthlyFee)
}

func TestStudentServiceCreateWithInitialSeat(t *testing.T) {
	repo := &fakeStudentRepo{}
	seats := &fakeStudentSeats{seats: map[int]*models.Seat{
		5: {ID: "seat-5", SeatNumber: 5, Version: 2},
	}}
	svc := NewStudentService(repo, &fakeSettingsReader{}, seats, validator.New(), zap.NewNop())

	seat := 5
	student, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Asha", Phone: "9876543210", SeatNumber: &seat})
	require.NoError(t, err)
	require.NotNil(t, student.SeatNumber)
	assert.Equal(t, 5, *student.SeatNumber)
	assert.Equal(t, 5, seats.assigned[student.ID])
}

func TestStudentServiceCreateWithMissingSeat(t *testing.T) {
	repo := &fakeStudentRepo{}
	svc := NewStudentService(repo, &fakeSettingsReader{}, &fakeStudentSeats{}, validator.New(), zap.NewNop())

	seat := 99
	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Asha", Phone: "9876543210", SeatNumber: &seat})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.Len(t, repo.created, 1)
}

func TestStudentServiceCreateDiscountExceedsFee(t *testing.T) {
	repo := &fakeStudentRepo{}
	svc := newStudentFixture(repo, &models.Settings{DefaultMonthlyFee: 500})

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Asha", Phone: "9876543210", Discount: 600})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.created)
}

func TestStudentServiceNextCode(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{latestCode: "SS1099"}, nil)

	code, err := svc.NextCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SS1100", code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Code: "SS1001", Name: "Old", Phone: "1", MonthlyFee: 500, Status: models.StudentStatusActive, FeeStatus: models.FeeStatusPending},
	}}
	svc := newStudentFixture(repo, nil)

	updated, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Name:       "New",
		Phone:      "9876543210",
		MonthlyFee: 800,
		Status:     models.StudentStatusActive,
		FeeStatus:  models.FeeStatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "SS1001", updated.Code)
	assert.Equal(t, models.FeeStatusPaid, updated.FeeStatus)
}

func TestStudentServiceUpdateUnknownStatus(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Code: "SS1001", Status: models.StudentStatusActive},
	}}
	svc := newStudentFixture(repo, nil)

	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		Name:      "New",
		Phone:     "9876543210",
		Status:    "frozen",
		FeeStatus: models.FeeStatusPaid,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Code: "SS1001", Status: models.StudentStatusActive},
	}}
	svc := newStudentFixture(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "stu-1"))
	assert.Contains(t, repo.deactivated, "stu-1")
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Code: "SS1001", Status: models.StudentStatusActive},
	}}
	seats := &fakeStudentSeats{}
	svc := NewStudentService(repo, &fakeSettingsReader{}, seats, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "stu-1"))
	assert.Contains(t, repo.deleted, "stu-1")
	assert.Contains(t, seats.released, "stu-1")
}

func TestStudentServiceDeleteUnknown(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{}, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceMarkOverdue(t *testing.T) {
	repo := &fakeStudentRepo{overdue: 3}
	svc := newStudentFixture(repo, nil)

	marked, err := svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
}

func TestStudentNetFee(t *testing.T) {
	assert.Equal(t, 400.0, models.Student{MonthlyFee: 500, Discount: 100}.NetFee())
	assert.Equal(t, 0.0, models.Student{MonthlyFee: 100, Discount: 200}.NetFee())
}
