package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRepositoryFindOpenByStudentNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("FROM attendance WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	record, err := repo.FindOpenByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindOpenByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "check_in", "check_out", "seat_number", "recorded_by", "created_at"}).
		AddRow("session-1", "stu-1", now, nil, nil, nil, now)
	mock.ExpectQuery("FROM attendance WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(rows)

	record, err := repo.FindOpenByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListOpenNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	later := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "check_in", "check_out", "seat_number", "recorded_by", "created_at", "student_code", "student_name", "student_seat", "phone"}).
		AddRow("session-2", "stu-2", later, nil, nil, nil, later, "SS1002", "Ravi", nil, "2").
		AddRow("session-1", "stu-1", earlier, nil, nil, nil, earlier, "SS1001", "Asha", nil, "1")
	mock.ExpectQuery(`WHERE a\.check_out IS NULL\s+ORDER BY a\.check_in DESC`).
		WillReturnRows(rows)

	records, err := repo.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CheckIn.After(records[1].CheckIn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCloseSession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("UPDATE attendance SET check_out").
		WithArgs("session-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	closed, err := repo.CloseSession(context.Background(), "session-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCloseSessionAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("UPDATE attendance SET check_out").
		WithArgs("session-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	closed, err := repo.CloseSession(context.Background(), "session-1", time.Now())
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
