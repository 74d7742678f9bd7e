package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type seatRepository interface {
	InitializeSeats(ctx context.Context, total int) error
	List(ctx context.Context) ([]models.SeatDetail, error)
	FindBySeatNumber(ctx context.Context, seatNumber int) (*models.Seat, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.Seat, error)
	AssignSeat(ctx context.Context, studentID string, seatNumber int, expectedVersion int, changedBy *string) error
	ClearSeat(ctx context.Context, studentID string, changedBy *string) error
	History(ctx context.Context, studentID string, limit int) ([]models.SeatHistory, error)
	FindMismatches(ctx context.Context) ([]models.SeatMismatch, error)
	RepairMismatch(ctx context.Context, studentID string, assignedSeat *int) error
}

type seatStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AssignSeatRequest holds payload for assigning a seat.
type AssignSeatRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	SeatNumber int    `json:"seat_number" validate:"required,gt=0"`
	Version    int    `json:"version" validate:"gte=0"`
}

// SeatService owns seat assignment and the student/seat consistency rules.
type SeatService struct {
	repo      seatRepository
	students  seatStudentReader
	settings  studentSettingsReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSeatService constructs the seat service.
func NewSeatService(repo seatRepository, students seatStudentReader, settings studentSettingsReader, validate *validator.Validate, logger *zap.Logger) *SeatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatService{repo: repo, students: students, settings: settings, validator: validate, logger: logger}
}

// InitializeFromSettings ensures one seat row per configured seat.
// Safe to run on every boot and after a capacity change.
func (s *SeatService) InitializeFromSettings(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	if settings == nil || settings.TotalSeats <= 0 {
		return nil
	}
	if err := s.repo.InitializeSeats(ctx, settings.TotalSeats); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialize seats")
	}
	return nil
}

// List returns the full seat map with occupants.
func (s *SeatService) List(ctx context.Context) ([]models.SeatDetail, error) {
	seats, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seats")
	}
	return seats, nil
}

// Assign moves a student onto a seat. The caller supplies the seat
// version it last read; a stale version means someone else changed the
// seat first and the request fails with a conflict rather than
// silently overwriting.
func (s *SeatService) Assign(ctx context.Context, req AssignSeatRequest, actor models.Caller) (*models.Seat, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat assignment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "inactive student cannot hold a seat")
	}

	var changedBy *string
	if actor.UserID != "" {
		changedBy = &actor.UserID
	}

	if err := s.repo.AssignSeat(ctx, req.StudentID, req.SeatNumber, req.Version, changedBy); err != nil {
		if appErrors.Is(err, appErrors.ErrSeatOccupied) || appErrors.Is(err, appErrors.ErrConflict) || appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign seat")
	}

	seat, err := s.repo.FindBySeatNumber(ctx, req.SeatNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload seat")
	}
	s.logger.Info("seat assigned",
		zap.String("student_id", req.StudentID),
		zap.Int("seat_number", req.SeatNumber))
	return seat, nil
}

// Clear releases whatever seat the student holds.
func (s *SeatService) Clear(ctx context.Context, studentID string, actor models.Caller) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	var changedBy *string
	if actor.UserID != "" {
		changedBy = &actor.UserID
	}
	if err := s.repo.ClearSeat(ctx, studentID, changedBy); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear seat")
	}
	s.logger.Info("seat cleared", zap.String("student_id", studentID))
	return nil
}

// History returns the seat change trail for one student.
func (s *SeatService) History(ctx context.Context, studentID string, limit int) ([]models.SeatHistory, error) {
	history, err := s.repo.History(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seat history")
	}
	return history, nil
}

// Reconcile rewrites denormalized student seat numbers from the seats
// table wherever the two disagree. Returns how many rows were repaired.
// Run periodically in the background and exposed for manual runs.
func (s *SeatService) Reconcile(ctx context.Context) (int, error) {
	mismatches, err := s.repo.FindMismatches(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan for seat mismatches")
	}
	repaired := 0
	for _, m := range mismatches {
		if err := s.repo.RepairMismatch(ctx, m.StudentID, m.AssignedSeat); err != nil {
			s.logger.Warn("seat repair failed",
				zap.String("student_id", m.StudentID),
				zap.Error(err))
			continue
		}
		repaired++
	}
	if repaired > 0 {
		s.logger.Info("seat reconciliation repaired rows", zap.Int("repaired", repaired))
	}
	return repaired, nil
}
