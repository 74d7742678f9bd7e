package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyspace/admin-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.FeeStatus != nil {
		conditions = append(conditions, fmt.Sprintf("s.fee_status = $%d", len(args)+1))
		args = append(args, *filter.FeeStatus)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.ss_id) LIKE $%d OR s.phone LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":        "s.name",
		"ss_id":       "s.ss_id",
		"date_joined": "s.date_joined",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.ss_id, s.name, s.phone, s.photo, s.monthly_fee, s.discount, s.status, s.fee_status, s.fee_due_date, s.seat_number, s.date_joined, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by internal ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, ss_id, name, phone, photo, monthly_fee, discount, status, fee_status, fee_due_date, seat_number, date_joined, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCode fetches a student by the human-readable code.
func (r *StudentRepository) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	const query = `SELECT id, ss_id, name, phone, photo, monthly_fee, discount, status, fee_status, fee_due_date, seat_number, date_joined, created_at, updated_at
        FROM students WHERE ss_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, code); err != nil {
		return nil, err
	}
	return &student, nil
}

// LatestCode returns the most recently issued student code, ordered by
// creation time. Returns empty string when no students exist yet.
func (r *StudentRepository) LatestCode(ctx context.Context) (string, error) {
	const query = `SELECT ss_id FROM students ORDER BY created_at DESC LIMIT 1`
	var code string
	if err := r.db.GetContext(ctx, &code, query); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("latest student code: %w", err)
	}
	return code, nil
}

// NextCode derives the next sequential student code from the latest one.
func NextCode(latest string) string {
	if latest == "" {
		return models.StudentCodeSeed
	}
	numeric := strings.TrimPrefix(latest, models.StudentCodePrefix)
	n, err := strconv.Atoi(numeric)
	if err != nil {
		return models.StudentCodeSeed
	}
	return fmt.Sprintf("%s%04d", models.StudentCodePrefix, n+1)
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, ss_id, name, phone, photo, monthly_fee, discount, status, fee_status, fee_due_date, seat_number, date_joined, created_at, updated_at)
        VALUES (:id, :ss_id, :name, :phone, :photo, :monthly_fee, :discount, :status, :fee_status, :fee_due_date, :seat_number, :date_joined, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, phone = :phone, photo = :photo, monthly_fee = :monthly_fee, discount = :discount, status = :status, fee_status = :fee_status, fee_due_date = :fee_due_date, date_joined = :date_joined, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateFeeStatus sets the fee status for one student.
func (r *StudentRepository) UpdateFeeStatus(ctx context.Context, id string, status models.FeeStatus, dueDate *time.Time) error {
	const query = `UPDATE students SET fee_status = $2, fee_due_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, dueDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	return nil
}

// MarkOverdue flips pending fees with a due date in the past to overdue.
// Returns the number of students affected.
func (r *StudentRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE students SET fee_status = $1, updated_at = $2
        WHERE fee_status = $3 AND fee_due_date IS NOT NULL AND fee_due_date < $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, models.FeeStatusOverdue, time.Now().UTC(), models.FeeStatusPending, asOf, models.StudentStatusActive)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows: %w", err)
	}
	return affected, nil
}

// SetSeatNumber updates the denormalized seat column on the student row.
// A nil seat clears the column.
func (r *StudentRepository) SetSeatNumber(ctx context.Context, id string, seat *int) error {
	const query = `UPDATE students SET seat_number = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, seat, time.Now().UTC()); err != nil {
		return fmt.Errorf("set seat number: %w", err)
	}
	return nil
}

// Deactivate marks a student inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StudentStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// Delete removes the student row permanently.
func (r *StudentRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM students WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	return affected, nil
}

// CountByStatus tallies students grouped by lifecycle status.
func (r *StudentRepository) CountByStatus(ctx context.Context) (map[models.StudentStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM students GROUP BY status`
	rows := []struct {
		Status models.StudentStatus `db:"status"`
		Total  int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count students by status: %w", err)
	}
	out := make(map[models.StudentStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// CountByFeeStatus tallies active students grouped by fee status.
func (r *StudentRepository) CountByFeeStatus(ctx context.Context) (map[models.FeeStatus]int, error) {
	const query = `SELECT fee_status, COUNT(*) AS total FROM students WHERE status = $1 GROUP BY fee_status`
	rows := []struct {
		FeeStatus models.FeeStatus `db:"fee_status"`
		Total     int              `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, models.StudentStatusActive); err != nil {
		return nil, fmt.Errorf("count students by fee status: %w", err)
	}
	out := make(map[models.FeeStatus]int, len(rows))
	for _, row := range rows {
		out[row.FeeStatus] = row.Total
	}
	return out, nil
}
