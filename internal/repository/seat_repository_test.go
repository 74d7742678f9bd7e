package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/studyspace/admin-api/pkg/errors"
)

func seatRows(id string, seatNumber int, studentID interface{}, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "seat_number", "student_id", "version", "created_at", "updated_at"}).
		AddRow(id, seatNumber, studentID, version, now, now)
}

func TestSeatRepositoryAssignSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number").
		WithArgs(7).
		WillReturnRows(seatRows("seat-7", 7, nil, 0))
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE seats SET student_id = \$2`).
		WithArgs("seat-7", "stu-1", sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE students SET seat_number`).
		WithArgs("stu-1", 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO seat_history").
		WithArgs(sqlmock.AnyArg(), "stu-1", nil, 7, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AssignSeat(context.Background(), "stu-1", 7, 0, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryAssignSeatOccupied(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number").
		WithArgs(7).
		WillReturnRows(seatRows("seat-7", 7, "other-student", 3))
	mock.ExpectRollback()

	err := repo.AssignSeat(context.Background(), "stu-1", 7, 3, nil)
	require.ErrorIs(t, err, apperrors.ErrSeatOccupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryAssignSeatStaleVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number").
		WithArgs(7).
		WillReturnRows(seatRows("seat-7", 7, nil, 2))
	mock.ExpectRollback()

	err := repo.AssignSeat(context.Background(), "stu-1", 7, 0, nil)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryAssignSeatSameStudentNoOp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE seat_number").
		WithArgs(7).
		WillReturnRows(seatRows("seat-7", 7, "stu-1", 4))
	mock.ExpectCommit()

	err := repo.AssignSeat(context.Background(), "stu-1", 7, 4, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryClearSeatWithoutSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, seat_number, student_id, version, created_at, updated_at FROM seats WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE students SET seat_number = NULL`).
		WithArgs("stu-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ClearSeat(context.Background(), "stu-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryFindMismatches(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_seat", "assigned_seat", "assigned_seat_id"}).
		AddRow("stu-1", 5, nil, nil).
		AddRow("stu-2", nil, 9, "seat-9")
	mock.ExpectQuery("IS DISTINCT FROM").WillReturnRows(rows)

	mismatches, err := repo.FindMismatches(context.Background())
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, "stu-1", mismatches[0].StudentID)
	require.NotNil(t, mismatches[1].AssignedSeat)
	assert.Equal(t, 9, *mismatches[1].AssignedSeat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryInitializeSeats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO seats").
			WithArgs(sqlmock.AnyArg(), i+1, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.InitializeSeats(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
