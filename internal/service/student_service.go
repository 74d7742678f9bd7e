package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	"github.com/studyspace/admin-api/internal/repository"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	LatestCode(ctx context.Context) (string, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateFeeStatus(ctx context.Context, id string, status models.FeeStatus, dueDate *time.Time) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (int64, error)
}

type studentSeatStore interface {
	FindBySeatNumber(ctx context.Context, seatNumber int) (*models.Seat, error)
	AssignSeat(ctx context.Context, studentID string, seatNumber int, expectedVersion int, changedBy *string) error
	ClearSeat(ctx context.Context, studentID string, changedBy *string) error
}

type studentSettingsReader interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	Name       string     `json:"name" validate:"required"`
	Phone      string     `json:"phone" validate:"required"`
	Photo      *string    `json:"photo"`
	MonthlyFee *float64   `json:"monthly_fee" validate:"omitempty,gte=0"`
	Discount   float64    `json:"discount" validate:"gte=0"`
	FeeDueDate *time.Time `json:"fee_due_date"`
	DateJoined *time.Time `json:"date_joined"`
	SeatNumber *int       `json:"seat_number" validate:"omitempty,gt=0"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	Name       string               `json:"name" validate:"required"`
	Phone      string               `json:"phone" validate:"required"`
	Photo      *string              `json:"photo"`
	MonthlyFee float64              `json:"monthly_fee" validate:"gte=0"`
	Discount   float64              `json:"discount" validate:"gte=0"`
	Status     models.StudentStatus `json:"status" validate:"required"`
	FeeStatus  models.FeeStatus     `json:"fee_status" validate:"required"`
	FeeDueDate *time.Time           `json:"fee_due_date"`
	DateJoined *time.Time           `json:"date_joined"`
}

// StudentService handles member registration and lifecycle.
type StudentService struct {
	repo      studentRepository
	settings  studentSettingsReader
	seats     studentSeatStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service. The seat store may
// be nil when seat management is handled elsewhere.
func NewStudentService(repo studentRepository, settings studentSettingsReader, seats studentSeatStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, settings: settings, seats: seats, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns one student by internal ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetByCode returns one student by the human-readable code.
func (s *StudentService) GetByCode(ctx context.Context, code string) (*models.Student, error) {
	student, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// NextCode returns the code the next registration would receive.
func (s *StudentService) NextCode(ctx context.Context) (string, error) {
	latest, err := s.repo.LatestCode(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive next student code")
	}
	return repository.NextCode(latest), nil
}

// Create registers a new student. The code is derived from the latest
// issued one; a unique index on ss_id turns a lost race into a conflict
// instead of a duplicate.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	latest, err := s.repo.LatestCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive student code")
	}

	fee := 0.0
	if req.MonthlyFee != nil {
		fee = *req.MonthlyFee
	} else if s.settings != nil {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
		}
		if settings != nil {
			fee = settings.DefaultMonthlyFee
		}
	}
	if req.Discount > fee {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds monthly fee")
	}

	joined := time.Now().UTC()
	if req.DateJoined != nil {
		joined = *req.DateJoined
	}

	student := &models.Student{
		Code:       repository.NextCode(latest),
		Name:       req.Name,
		Phone:      req.Phone,
		Photo:      req.Photo,
		MonthlyFee: fee,
		Discount:   req.Discount,
		Status:     models.StudentStatusActive,
		FeeStatus:  models.FeeStatusPending,
		FeeDueDate: req.FeeDueDate,
		DateJoined: joined,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("code", student.Code))

	if req.SeatNumber != nil && s.seats != nil {
		if err := s.assignInitialSeat(ctx, student, *req.SeatNumber); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// assignInitialSeat places a freshly registered student. The student row
// already exists at this point, so a failed assignment leaves them
// registered without a seat.
func (s *StudentService) assignInitialSeat(ctx context.Context, student *models.Student, seatNumber int) error {
	seat, err := s.seats.FindBySeatNumber(ctx, seatNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student registered but the requested seat does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student registered but seat lookup failed")
	}
	if err := s.seats.AssignSeat(ctx, student.ID, seatNumber, seat.Version, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student registered but seat assignment failed")
	}
	student.SeatNumber = &seatNumber
	return nil
}

// Update modifies an existing student record. The code and seat are not
// editable here; seats change only through the seat service.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	if !req.FeeStatus.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee status")
	}
	if req.Discount > req.MonthlyFee {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds monthly fee")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.Name = req.Name
	student.Phone = req.Phone
	student.Photo = req.Photo
	student.MonthlyFee = req.MonthlyFee
	student.Discount = req.Discount
	student.Status = req.Status
	student.FeeStatus = req.FeeStatus
	student.FeeDueDate = req.FeeDueDate
	if req.DateJoined != nil {
		student.DateJoined = *req.DateJoined
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// Delete removes a student permanently, releasing any held seat first so
// the seats table never points at a missing row.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if s.seats != nil {
		if err := s.seats.ClearSeat(ctx, id, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
		}
	}
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// MarkOverdue flips past-due pending fees to overdue. Run periodically
// by the background sweep.
func (s *StudentService) MarkOverdue(ctx context.Context) (int64, error) {
	affected, err := s.repo.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark overdue fees")
	}
	if affected > 0 {
		s.logger.Info("marked overdue fees", zap.Int64("students", affected))
	}
	return affected, nil
}
