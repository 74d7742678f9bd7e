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

type fakePaymentRepo struct {
	created  []models.Payment
	payments map[string]*models.PaymentDetail
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = "pay-1"
	f.created = append(f.created, *payment)
	return nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return nil, 0, nil
}

type fakePaymentStudents struct {
	student    *models.Student
	feeStatus  models.FeeStatus
	feeDueDate *time.Time
}

func (f *fakePaymentStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if f.student != nil && f.student.ID == id {
		return f.student, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePaymentStudents) UpdateFeeStatus(ctx context.Context, id string, status models.FeeStatus, dueDate *time.Time) error {
	f.feeStatus = status
	f.feeDueDate = dueDate
	return nil
}

func newPaymentFixture(repo *fakePaymentRepo, students *fakePaymentStudents) *PaymentService {
	return NewPaymentService(repo, students, validator.New(), zap.NewNop())
}

func TestPaymentServiceRecord(t *testing.T) {
	repo := &fakePaymentRepo{}
	students := &fakePaymentStudents{student: &models.Student{ID: "stu-1", Code: "SS1001", MonthlyFee: 500}}
	svc := newPaymentFixture(repo, students)

	paidAt := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	payment, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID:   "stu-1",
		Amount:      500,
		Method:      models.PaymentMethodUPI,
		PaymentDate: &paidAt,
	}, models.Caller{UserID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, payment.Amount)
	require.Len(t, repo.created, 1)

	assert.Equal(t, models.FeeStatusPaid, students.feeStatus)
	require.NotNil(t, students.feeDueDate)
	assert.Equal(t, time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC), *students.feeDueDate)
}

func TestPaymentServiceRecordUnknownMethod(t *testing.T) {
	repo := &fakePaymentRepo{}
	svc := newPaymentFixture(repo, &fakePaymentStudents{student: &models.Student{ID: "stu-1"}})

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "stu-1",
		Amount:    500,
		Method:    "cheque",
	}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, repo.created)
}

func TestPaymentServiceRecordUnknownStudent(t *testing.T) {
	svc := newPaymentFixture(&fakePaymentRepo{}, &fakePaymentStudents{})

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID: "missing",
		Amount:    500,
		Method:    models.PaymentMethodCash,
	}, models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPaymentServiceSuggestedAmount(t *testing.T) {
	students := &fakePaymentStudents{student: &models.Student{ID: "stu-1", MonthlyFee: 1500, Discount: 200}}
	svc := newPaymentFixture(&fakePaymentRepo{}, students)

	amount, err := svc.SuggestedAmount(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1300.0, amount)
}

func TestPaymentServiceReceipt(t *testing.T) {
	repo := &fakePaymentRepo{payments: map[string]*models.PaymentDetail{
		"pay-1": {
			Payment: models.Payment{
				ID:          "pay-1",
				StudentID:   "stu-1",
				Amount:      500,
				Method:      models.PaymentMethodCash,
				PaymentDate: time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
			},
			StudentCode: "SS1001",
			StudentName: "Asha",
		},
	}}
	svc := newPaymentFixture(repo, &fakePaymentStudents{})

	payload, filename, err := svc.Receipt(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "receipt-pay-1.pdf", filename)
	assert.NotEmpty(t, payload)
}

func TestPaymentServiceReceiptNotFound(t *testing.T) {
	svc := newPaymentFixture(&fakePaymentRepo{}, &fakePaymentStudents{})

	_, _, err := svc.Receipt(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
