package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
	"github.com/studyspace/admin-api/pkg/export"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type paymentStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateFeeStatus(ctx context.Context, id string, status models.FeeStatus, dueDate *time.Time) error
}

// RecordPaymentRequest holds payload for recording a fee payment.
type RecordPaymentRequest struct {
	StudentID   string               `json:"student_id" validate:"required"`
	Amount      float64              `json:"amount" validate:"required,gt=0"`
	Method      models.PaymentMethod `json:"method" validate:"required"`
	Notes       *string              `json:"notes"`
	PaymentDate *time.Time           `json:"payment_date"`
}

// PaymentService records fee payments and keeps student billing state
// in step with them.
type PaymentService struct {
	repo      paymentRepository
	students  paymentStudentStore
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentStore, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, students: students, pdf: export.NewPDFExporter(), validator: validate, logger: logger}
}

// Record appends a payment and marks the student paid through the next
// billing period. Payments are append-only; corrections are recorded as
// further payments, never edits.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest, actor models.Caller) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	paidAt := time.Now().UTC()
	if req.PaymentDate != nil {
		paidAt = *req.PaymentDate
	}

	var recordedBy *string
	if actor.UserID != "" {
		recordedBy = &actor.UserID
	}
	payment := &models.Payment{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		Method:      req.Method,
		Notes:       req.Notes,
		PaymentDate: paidAt,
		RecordedBy:  recordedBy,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	nextDue := paidAt.AddDate(0, 1, 0)
	if err := s.students.UpdateFeeStatus(ctx, student.ID, models.FeeStatusPaid, &nextDue); err != nil {
		s.logger.Error("payment recorded but fee status update failed",
			zap.String("payment_id", payment.ID),
			zap.String("student_id", student.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "payment recorded but fee status update failed")
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", student.ID),
		zap.Float64("amount", payment.Amount))
	return payment, nil
}

// SuggestedAmount returns what the student owes for one period, the
// monthly fee less any discount. Prefills the payment form.
func (s *PaymentService) SuggestedAmount(ctx context.Context, studentID string) (float64, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student.NetFee(), nil
}

// List returns payments and pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
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
	return payments, pagination, nil
}

// Receipt renders a PDF receipt for one payment.
func (s *PaymentService) Receipt(ctx context.Context, paymentID string) ([]byte, string, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	notes := ""
	if payment.Notes != nil {
		notes = *payment.Notes
	}
	pairs := [][2]string{
		{"Receipt No", payment.ID},
		{"Student", fmt.Sprintf("%s (%s)", payment.StudentName, payment.StudentCode)},
		{"Amount", fmt.Sprintf("%.2f", payment.Amount)},
		{"Method", string(payment.Method)},
		{"Date", payment.PaymentDate.Format("02 Jan 2006")},
	}
	if notes != "" {
		pairs = append(pairs, [2]string{"Notes", notes})
	}

	payload, err := s.pdf.KeyValuePDF("Payment Receipt", pairs)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	filename := fmt.Sprintf("receipt-%s.pdf", payment.ID)
	return payload, filename, nil
}
