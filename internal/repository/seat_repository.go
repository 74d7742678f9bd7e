package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyspace/admin-api/internal/models"
	apperrors "github.com/studyspace/admin-api/pkg/errors"
)

// SeatRepository manages persistence for seats and seat history.
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository constructs a SeatRepository.
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

// InitializeSeats ensures seat rows 1..total exist. Existing rows are
// left untouched so the call is safe to repeat after a settings change.
func (r *SeatRepository) InitializeSeats(ctx context.Context, total int) (err error) {
	if total <= 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seat initialization: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO seats (id, seat_number, student_id, version, created_at, updated_at)
        VALUES ($1, $2, NULL, 0, $3, $3)
        ON CONFLICT (seat_number) DO NOTHING`
	now := time.Now().UTC()
	for n := 1; n <= total; n++ {
		if _, err = tx.ExecContext(ctx, query, uuid.NewString(), n, now); err != nil {
			return fmt.Errorf("initialize seat %d: %w", n, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seat initialization: %w", err)
	}
	return nil
}

// List returns every seat joined with the occupying student, ordered by
// seat number.
func (r *SeatRepository) List(ctx context.Context) ([]models.SeatDetail, error) {
	const query = `SELECT st.id, st.seat_number, st.student_id, st.version, st.created_at, st.updated_at,
        s.ss_id AS student_code, s.name AS student_name
        FROM seats st
        LEFT JOIN students s ON s.id = st.student_id
        ORDER BY st.seat_number ASC`
	var seats []models.SeatDetail
	if err := r.db.SelectContext(ctx, &seats, query); err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return seats, nil
}

// FindBySeatNumber fetches one seat row.
func (r *SeatRepository) FindBySeatNumber(ctx context.Context, seatNumber int) (*models.Seat, error) {
	const query = `SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number = $1`
	var seat models.Seat
	if err := r.db.GetContext(ctx, &seat, query, seatNumber); err != nil {
		return nil, err
	}
	return &seat, nil
}

// FindByStudentID fetches the seat occupied by a student, if any.
func (r *SeatRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Seat, error) {
	const query = `SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE student_id = $1`
	var seat models.Seat
	if err := r.db.GetContext(ctx, &seat, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find seat by student: %w", err)
	}
	return &seat, nil
}

// AssignSeat atomically moves a student onto a seat. The target seat
// must be vacant and its version must match the caller's expectation,
// otherwise the write loses to a concurrent one and fails with a
// conflict. Any seat the student previously held is released in the
// same transaction, and both moves are appended to seat history.
func (r *SeatRepository) AssignSeat(ctx context.Context, studentID string, seatNumber int, expectedVersion int, changedBy *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seat assignment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var target models.Seat
	if err = tx.GetContext(ctx, &target,
		`SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number = $1 FOR UPDATE`,
		seatNumber); err != nil {
		if err == sql.ErrNoRows {
			err = apperrors.ErrNotFound
			return err
		}
		return fmt.Errorf("lock target seat: %w", err)
	}
	if target.StudentID != nil {
		if *target.StudentID == studentID {
			err = tx.Commit()
			return err
		}
		err = apperrors.ErrSeatOccupied
		return err
	}
	if target.Version != expectedVersion {
		err = apperrors.ErrConflict
		return err
	}

	var oldSeat *int
	var previous models.Seat
	prevErr := tx.GetContext(ctx, &previous,
		`SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE student_id = $1 FOR UPDATE`,
		studentID)
	switch prevErr {
	case nil:
		n := previous.SeatNumber
		oldSeat = &n
		if _, err = tx.ExecContext(ctx,
			`UPDATE seats SET student_id = NULL, version = version + 1, updated_at = $2 WHERE id = $1`,
			previous.ID, now); err != nil {
			return fmt.Errorf("release previous seat: %w", err)
		}
	case sql.ErrNoRows:
	default:
		err = fmt.Errorf("lock previous seat: %w", prevErr)
		return err
	}

	res, execErr := tx.ExecContext(ctx,
		`UPDATE seats SET student_id = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND student_id IS NULL AND version = $4`,
		target.ID, studentID, now, expectedVersion)
	if execErr != nil {
		err = fmt.Errorf("assign seat: %w", execErr)
		return err
	}
	affected, execErr := res.RowsAffected()
	if execErr != nil {
		err = fmt.Errorf("assign seat rows: %w", execErr)
		return err
	}
	if affected == 0 {
		err = apperrors.ErrConflict
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE students SET seat_number = $2, updated_at = $3 WHERE id = $1`,
		studentID, seatNumber, now); err != nil {
		return fmt.Errorf("update student seat: %w", err)
	}

	newSeat := seatNumber
	if err = insertSeatHistory(ctx, tx, studentID, oldSeat, &newSeat, changedBy, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seat assignment: %w", err)
	}
	return nil
}

// ClearSeat atomically releases whatever seat the student holds. It is
// a no-op when the student has no seat.
func (r *SeatRepository) ClearSeat(ctx context.Context, studentID string, changedBy *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seat clear: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var seat models.Seat
	getErr := tx.GetContext(ctx, &seat,
		`SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE student_id = $1 FOR UPDATE`,
		studentID)
	if getErr == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx,
			`UPDATE students SET seat_number = NULL, updated_at = $2 WHERE id = $1`,
			studentID, now); err != nil {
			return fmt.Errorf("clear student seat: %w", err)
		}
		err = tx.Commit()
		return err
	}
	if getErr != nil {
		err = fmt.Errorf("lock student seat: %w", getErr)
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE seats SET student_id = NULL, version = version + 1, updated_at = $2 WHERE id = $1`,
		seat.ID, now); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE students SET seat_number = NULL, updated_at = $2 WHERE id = $1`,
		studentID, now); err != nil {
		return fmt.Errorf("clear student seat: %w", err)
	}

	oldSeat := seat.SeatNumber
	if err = insertSeatHistory(ctx, tx, studentID, &oldSeat, nil, changedBy, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seat clear: %w", err)
	}
	return nil
}

func insertSeatHistory(ctx context.Context, tx *sqlx.Tx, studentID string, oldSeat, newSeat *int, changedBy *string, at time.Time) error {
	const query = `INSERT INTO seat_history (id, student_id, old_seat, new_seat, changed_by, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), studentID, oldSeat, newSeat, changedBy, at); err != nil {
		return fmt.Errorf("insert seat history: %w", err)
	}
	return nil
}

// History returns the seat change trail for one student, newest first.
func (r *SeatRepository) History(ctx context.Context, studentID string, limit int) ([]models.SeatHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `SELECT id, student_id, old_seat, new_seat, changed_by, changed_at
        FROM seat_history WHERE student_id = $1 ORDER BY changed_at DESC LIMIT $2`
	var history []models.SeatHistory
	if err := r.db.SelectContext(ctx, &history, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("seat history: %w", err)
	}
	return history, nil
}

// FindMismatches reports students whose denormalized seat_number column
// disagrees with the seats table. The seats table is authoritative.
func (r *SeatRepository) FindMismatches(ctx context.Context) ([]models.SeatMismatch, error) {
	const query = `SELECT s.id AS student_id, s.seat_number AS student_seat, st.seat_number AS assigned_seat, st.id AS assigned_seat_id
        FROM students s
        LEFT JOIN seats st ON st.student_id = s.id
        WHERE s.seat_number IS DISTINCT FROM st.seat_number`
	var mismatches []models.SeatMismatch
	if err := r.db.SelectContext(ctx, &mismatches, query); err != nil {
		return nil, fmt.Errorf("find seat mismatches: %w", err)
	}
	return mismatches, nil
}

// RepairMismatch rewrites a student's denormalized seat column from the
// authoritative seats table.
func (r *SeatRepository) RepairMismatch(ctx context.Context, studentID string, assignedSeat *int) error {
	const query = `UPDATE students SET seat_number = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, assignedSeat, time.Now().UTC()); err != nil {
		return fmt.Errorf("repair seat mismatch: %w", err)
	}
	return nil
}

// CountOccupied returns total and occupied seat counts.
func (r *SeatRepository) CountOccupied(ctx context.Context) (total int, occupied int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(student_id) AS occupied FROM seats`
	row := struct {
		Total    int `db:"total"`
		Occupied int `db:"occupied"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count seats: %w", err)
	}
	return row.Total, row.Occupied, nil
}
