package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyspace/admin-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNextCode(t *testing.T) {
	cases := []struct {
		latest string
		want   string
	}{
		{"", "SS1001"},
		{"SS1001", "SS1002"},
		{"SS1042", "SS1043"},
		{"SS9999", "SS10000"},
		{"SSabc", "SS1001"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextCode(tc.latest), "latest %q", tc.latest)
	}
}

func TestStudentRepositoryLatestCodeEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT ss_id FROM students ORDER BY created_at DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"ss_id"}))

	code, err := repo.LatestCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "ss_id", "name", "phone", "photo", "monthly_fee", "discount", "status", "fee_status", "fee_due_date", "seat_number", "date_joined", "created_at", "updated_at"}).
		AddRow("stu-1", "SS1001", "Asha", "9876543210", nil, 500.0, 0.0, "active", "pending", nil, nil, now, now, now)
	mock.ExpectQuery(`SELECT s\.id, s\.ss_id, s\.name`).
		WithArgs(models.StudentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students s`).
		WithArgs(models.StudentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	status := models.StudentStatusActive
	students, total, err := repo.List(context.Background(), models.StudentFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "SS1001", students[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMarkOverdue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET fee_status").
		WithArgs(models.FeeStatusOverdue, sqlmock.AnyArg(), models.FeeStatusPending, sqlmock.AnyArg(), models.StudentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Code: "SS1001", Name: "Asha", Phone: "9876543210", Status: models.StudentStatusActive, FeeStatus: models.FeeStatusPending, DateJoined: time.Now()}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
