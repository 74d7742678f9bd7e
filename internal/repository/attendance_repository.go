package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyspace/admin-api/internal/models"
)

// AttendanceRepository manages persistence for attendance sessions.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindOpenByStudent returns the student's open session, or nil when the
// student is not checked in.
func (r *AttendanceRepository) FindOpenByStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, check_in, check_out, seat_number, recorded_by, created_at
        FROM attendance WHERE student_id = $1 AND check_out IS NULL
        ORDER BY check_in DESC LIMIT 1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open attendance: %w", err)
	}
	return &record, nil
}

// Insert opens a new attendance session.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, student_id, check_in, check_out, seat_number, recorded_by, created_at)
        VALUES (:id, :student_id, :check_in, :check_out, :seat_number, :recorded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// CloseSession stamps the check-out time on an open session. Returns
// the number of rows closed so callers can detect races.
func (r *AttendanceRepository) CloseSession(ctx context.Context, id string, checkOut time.Time) (int64, error) {
	const query = `UPDATE attendance SET check_out = $2 WHERE id = $1 AND check_out IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, checkOut)
	if err != nil {
		return 0, fmt.Errorf("close attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close attendance rows: %w", err)
	}
	return affected, nil
}

// ListBetween returns sessions whose check-in falls inside the window,
// newest first, joined with student identity.
func (r *AttendanceRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_id, a.check_in, a.check_out, a.seat_number, a.recorded_by, a.created_at,
        s.ss_id AS student_code, s.name AS student_name, s.seat_number AS student_seat, s.phone
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        WHERE a.check_in >= $1 AND a.check_in < $2
        ORDER BY a.check_in DESC`
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, from, to); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListOpen returns every open session joined with student identity,
// newest first.
func (r *AttendanceRepository) ListOpen(ctx context.Context) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_id, a.check_in, a.check_out, a.seat_number, a.recorded_by, a.created_at,
        s.ss_id AS student_code, s.name AS student_name, s.seat_number AS student_seat, s.phone
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        WHERE a.check_out IS NULL
        ORDER BY a.check_in DESC`
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list open attendance: %w", err)
	}
	return records, nil
}

// ListByStudent returns a student's sessions, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, student_id, check_in, check_out, seat_number, recorded_by, created_at
        FROM attendance WHERE student_id = $1 ORDER BY check_in DESC LIMIT $2`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	return records, nil
}

// CountBetween counts check-ins inside the window.
func (r *AttendanceRepository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE check_in >= $1 AND check_in < $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, nil
}

// CountOpen counts students currently checked in.
func (r *AttendanceRepository) CountOpen(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE check_out IS NULL`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count open attendance: %w", err)
	}
	return total, nil
}
