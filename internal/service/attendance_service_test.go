package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	"github.com/studyspace/admin-api/pkg/config"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	open       map[string]*models.AttendanceRecord
	inserted   []models.AttendanceRecord
	closed     []string
	details    []models.AttendanceDetail
	windowFrom time.Time
	windowTo   time.Time
}

func (f *fakeAttendanceRepo) FindOpenByStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	if record, ok := f.open[studentID]; ok {
		return record, nil
	}
	return nil, nil
}

func (f *fakeAttendanceRepo) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	record.ID = "session-1"
	f.inserted = append(f.inserted, *record)
	return nil
}

func (f *fakeAttendanceRepo) CloseSession(ctx context.Context, id string, checkOut time.Time) (int64, error) {
	f.closed = append(f.closed, id)
	return 1, nil
}

func (f *fakeAttendanceRepo) ListBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceDetail, error) {
	f.windowFrom, f.windowTo = from, to
	return f.details, nil
}

func (f *fakeAttendanceRepo) ListOpen(ctx context.Context) ([]models.AttendanceDetail, error) {
	return f.details, nil
}

func (f *fakeAttendanceRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error) {
	return nil, nil
}

type fakeScanStudents struct {
	byID   map[string]*models.Student
	byCode map[string]*models.Student
}

func (f *fakeScanStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeScanStudents) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	if s, ok := f.byCode[code]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeDeduper struct {
	fresh bool
	keys  []string
}

func (f *fakeDeduper) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.fresh, nil
}

func activeStudent() *models.Student {
	return &models.Student{ID: "stu-1", Code: "SS1001", Name: "Asha", Status: models.StudentStatusActive}
}

func newAttendanceFixture(repo *fakeAttendanceRepo, deduper *fakeDeduper) *AttendanceService {
	student := activeStudent()
	students := &fakeScanStudents{
		byID:   map[string]*models.Student{student.ID: student},
		byCode: map[string]*models.Student{student.Code: student},
	}
	svc := NewAttendanceService(repo, students, deduper, config.AttendanceConfig{}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestParseScanToken(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind models.ScanTokenKind
		want string
	}{
		{"verify url with uuid", "https://portal.example.com/verify/2b1f8c6e-0d4a-4b9e-9c1a-7f3e5d2a6b4c", models.ScanTokenUUID, "2b1f8c6e-0d4a-4b9e-9c1a-7f3e5d2a6b4c"},
		{"verify url with code", "https://portal.example.com/verify/ss1001", models.ScanTokenCode, "SS1001"},
		{"verify url trailing slash", "https://portal.example.com/verify/SS1002/", models.ScanTokenCode, "SS1002"},
		{"bare code", "SS1001", models.ScanTokenCode, "SS1001"},
		{"bare uuid", "2b1f8c6e-0d4a-4b9e-9c1a-7f3e5d2a6b4c", models.ScanTokenUUID, "2b1f8c6e-0d4a-4b9e-9c1a-7f3e5d2a6b4c"},
		{"prefix only", "SS", models.ScanTokenUnrecognized, "SS"},
		{"garbage", "hello world", models.ScanTokenUnrecognized, "hello world"},
		{"empty", "", models.ScanTokenUnrecognized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := ParseScanToken(tc.raw, "/verify/")
			assert.Equal(t, tc.kind, token.Kind)
			assert.Equal(t, tc.want, token.Value)
		})
	}
}

func TestAttendanceServiceScanChecksIn(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	deduper := &fakeDeduper{fresh: true}
	svc := newAttendanceFixture(repo, deduper)

	result, err := svc.Scan(context.Background(), "SS1001", models.Caller{UserID: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, ScanActionCheckedIn, result.Action)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "stu-1", repo.inserted[0].StudentID)
	assert.Contains(t, deduper.keys, "scan:dedupe:stu-1")
}

func TestAttendanceServiceScanChecksOut(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)
	repo := &fakeAttendanceRepo{open: map[string]*models.AttendanceRecord{
		"stu-1": {ID: "session-1", StudentID: "stu-1", CheckIn: checkIn},
	}}
	svc := newAttendanceFixture(repo, &fakeDeduper{fresh: true})

	result, err := svc.Scan(context.Background(), "SS1001", models.Caller{})
	require.NoError(t, err)
	assert.Equal(t, ScanActionCheckedOut, result.Action)
	assert.Equal(t, "1h 30m", result.Duration)
	assert.Contains(t, repo.closed, "session-1")
}

func TestAttendanceServiceScanDuplicateRejected(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newAttendanceFixture(repo, &fakeDeduper{fresh: false})

	_, err := svc.Scan(context.Background(), "SS1001", models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateScan))
	assert.Empty(t, repo.inserted)
}

func TestAttendanceServiceScanUnrecognizedPayload(t *testing.T) {
	svc := newAttendanceFixture(&fakeAttendanceRepo{}, &fakeDeduper{fresh: true})

	_, err := svc.Scan(context.Background(), "not-a-token", models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAttendanceServiceCheckInAlreadyOpen(t *testing.T) {
	repo := &fakeAttendanceRepo{open: map[string]*models.AttendanceRecord{
		"stu-1": {ID: "session-1", StudentID: "stu-1"},
	}}
	svc := newAttendanceFixture(repo, nil)

	record, err := svc.CheckIn(context.Background(), "stu-1", models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyCheckedIn))
	require.NotNil(t, record)
	assert.Equal(t, "session-1", record.ID)
}

func TestAttendanceServiceCheckOutWithoutOpenSession(t *testing.T) {
	svc := newAttendanceFixture(&fakeAttendanceRepo{}, nil)

	_, err := svc.CheckOut(context.Background(), "stu-1", models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotCheckedIn))
}

func TestAttendanceServiceCheckInInactiveStudent(t *testing.T) {
	inactive := &models.Student{ID: "stu-2", Code: "SS1002", Status: models.StudentStatusInactive}
	students := &fakeScanStudents{byID: map[string]*models.Student{inactive.ID: inactive}}
	svc := NewAttendanceService(&fakeAttendanceRepo{}, students, nil, config.AttendanceConfig{}, zap.NewNop())

	_, err := svc.CheckIn(context.Background(), "stu-2", models.Caller{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAttendanceServiceTodayUsesLocalDay(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := newAttendanceFixture(repo, nil)

	// Fixture clock reads 2025-03-10 09:00 UTC, which is 14:30 in a
	// +05:30 zone; that zone's day starts at 18:30 UTC the day before.
	ist := time.FixedZone("IST", 5*3600+30*60)
	_, err := svc.Today(context.Background(), ist)
	require.NoError(t, err)
	assert.True(t, repo.windowFrom.Equal(time.Date(2025, 3, 9, 18, 30, 0, 0, time.UTC)))
	assert.True(t, repo.windowTo.Equal(time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)))
}

func TestAttendanceServiceExportToday(t *testing.T) {
	seat := 4
	repo := &fakeAttendanceRepo{details: []models.AttendanceDetail{
		{
			AttendanceRecord: models.AttendanceRecord{
				StudentID:  "stu-1",
				CheckIn:    time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
				SeatNumber: &seat,
			},
			StudentCode: "SS1001",
			StudentName: "Asha",
		},
	}}
	svc := newAttendanceFixture(repo, nil)

	payload, filename, err := svc.ExportToday(context.Background(), time.UTC, "csv")
	require.NoError(t, err)
	assert.Equal(t, "attendance-2025-03-10.csv", filename)
	assert.Contains(t, string(payload), "SS1001")
	assert.Contains(t, string(payload), "1h 0m")

	pdfPayload, pdfName, err := svc.ExportToday(context.Background(), time.UTC, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "attendance-2025-03-10.pdf", pdfName)
	assert.True(t, len(pdfPayload) > 0)
}

func TestAttendanceRecordDurationFloorsMinutes(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	record := models.AttendanceRecord{CheckIn: checkIn}
	now := checkIn.Add(2*time.Hour + 29*time.Minute + 59*time.Second)
	assert.Equal(t, "2h 29m", record.Duration(now))
}
