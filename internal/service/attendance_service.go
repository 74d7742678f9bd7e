package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyspace/admin-api/internal/models"
	"github.com/studyspace/admin-api/pkg/config"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
	"github.com/studyspace/admin-api/pkg/export"
)

type attendanceRepository interface {
	FindOpenByStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	CloseSession(ctx context.Context, id string, checkOut time.Time) (int64, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceDetail, error)
	ListOpen(ctx context.Context) ([]models.AttendanceDetail, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

type scanDeduper interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ScanResult describes what a QR scan did.
type ScanResult struct {
	Action   string                   `json:"action"`
	Student  *models.Student          `json:"student"`
	Session  *models.AttendanceRecord `json:"session"`
	Duration string                   `json:"duration,omitempty"`
}

const (
	ScanActionCheckedIn  = "checked_in"
	ScanActionCheckedOut = "checked_out"
)

// AttendanceService owns check-in sessions and QR scan handling.
type AttendanceService struct {
	repo     attendanceRepository
	students attendanceStudentReader
	deduper  scanDeduper
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cfg      config.AttendanceConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentReader, deduper scanDeduper, cfg config.AttendanceConfig, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VerifyURLMarker == "" {
		cfg.VerifyURLMarker = "/verify/"
	}
	if cfg.ScanDedupeWindow <= 0 {
		cfg.ScanDedupeWindow = 3 * time.Second
	}
	return &AttendanceService{
		repo:     repo,
		students: students,
		deduper:  deduper,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ParseScanToken classifies a raw QR payload. Payloads may be bare
// identifiers or full verification URLs; anything after the verify
// marker is treated as the identifier.
func ParseScanToken(raw, marker string) models.ScanToken {
	token := strings.TrimSpace(raw)
	if marker != "" {
		if idx := strings.LastIndex(token, marker); idx >= 0 {
			token = token[idx+len(marker):]
		}
	}
	token = strings.TrimSuffix(token, "/")
	if token == "" {
		return models.ScanToken{Kind: models.ScanTokenUnrecognized, Value: raw}
	}
	if _, err := uuid.Parse(token); err == nil {
		return models.ScanToken{Kind: models.ScanTokenUUID, Value: token}
	}
	upper := strings.ToUpper(token)
	if strings.HasPrefix(upper, models.StudentCodePrefix) && len(upper) > len(models.StudentCodePrefix) {
		return models.ScanToken{Kind: models.ScanTokenCode, Value: upper}
	}
	return models.ScanToken{Kind: models.ScanTokenUnrecognized, Value: token}
}

// ResolveToken maps a scanned payload to a student.
func (s *AttendanceService) ResolveToken(ctx context.Context, raw string) (*models.Student, error) {
	token := ParseScanToken(raw, s.cfg.VerifyURLMarker)
	switch token.Kind {
	case models.ScanTokenUUID:
		student, err := s.students.FindByID(ctx, token.Value)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no student matches the scanned code")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scan")
		}
		return student, nil
	case models.ScanTokenCode:
		student, err := s.students.FindByCode(ctx, token.Value)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no student matches the scanned code")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scan")
		}
		return student, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognized scan payload")
	}
}

// CheckIn opens a session for the student. While an earlier session is
// still open it fails with a conflict and returns that session.
func (s *AttendanceService) CheckIn(ctx context.Context, studentID string, actor models.Caller) (*models.AttendanceRecord, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "inactive student cannot check in")
	}

	open, err := s.repo.FindOpenByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open session")
	}
	if open != nil {
		return open, appErrors.ErrAlreadyCheckedIn
	}

	var recordedBy *string
	if actor.UserID != "" {
		recordedBy = &actor.UserID
	}
	record := &models.AttendanceRecord{
		StudentID:  studentID,
		CheckIn:    s.now(),
		SeatNumber: student.SeatNumber,
		RecordedBy: recordedBy,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	s.logger.Info("student checked in", zap.String("student_id", studentID))
	return record, nil
}

// CheckOut closes the student's open session. Fails with a conflict
// when no session is open.
func (s *AttendanceService) CheckOut(ctx context.Context, studentID string, actor models.Caller) (*models.AttendanceRecord, error) {
	open, err := s.repo.FindOpenByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open session")
	}
	if open == nil {
		return nil, appErrors.ErrNotCheckedIn
	}

	checkOut := s.now()
	closed, err := s.repo.CloseSession(ctx, open.ID, checkOut)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}
	if closed == 0 {
		return nil, appErrors.ErrNotCheckedIn
	}
	open.CheckOut = &checkOut
	s.logger.Info("student checked out",
		zap.String("student_id", studentID),
		zap.String("duration", open.Duration(checkOut)))
	return open, nil
}

// Scan resolves a QR payload and toggles the student's session: checked
// out students are checked in and vice versa. Repeat scans inside the
// dedupe window are rejected so double-fired scanners do not bounce a
// session open and closed.
func (s *AttendanceService) Scan(ctx context.Context, raw string, actor models.Caller) (*ScanResult, error) {
	student, err := s.ResolveToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	if s.deduper != nil {
		key := fmt.Sprintf("scan:dedupe:%s", student.ID)
		fresh, err := s.deduper.SetNX(ctx, key, s.cfg.ScanDedupeWindow)
		if err != nil {
			s.logger.Warn("scan dedupe unavailable", zap.Error(err))
		} else if !fresh {
			return nil, appErrors.ErrDuplicateScan
		}
	}

	open, err := s.repo.FindOpenByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open session")
	}

	if open == nil {
		record, err := s.CheckIn(ctx, student.ID, actor)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Action: ScanActionCheckedIn, Student: student, Session: record}, nil
	}

	record, err := s.CheckOut(ctx, student.ID, actor)
	if err != nil {
		return nil, err
	}
	return &ScanResult{
		Action:   ScanActionCheckedOut,
		Student:  student,
		Session:  record,
		Duration: record.Duration(s.now()),
	}, nil
}

// Today returns sessions whose check-in falls on the given local day.
func (s *AttendanceService) Today(ctx context.Context, loc *time.Location) ([]models.AttendanceDetail, error) {
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)

	records, err := s.repo.ListBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list today's attendance")
	}
	return records, nil
}

// Present returns every student with an open session.
func (s *AttendanceService) Present(ctx context.Context) ([]models.AttendanceDetail, error) {
	records, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list present students")
	}
	return records, nil
}

// History returns a student's recent sessions.
func (s *AttendanceService) History(ctx context.Context, studentID string, limit int) ([]models.AttendanceRecord, error) {
	records, err := s.repo.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance history")
	}
	return records, nil
}

// ExportToday renders today's sessions as CSV or PDF.
func (s *AttendanceService) ExportToday(ctx context.Context, loc *time.Location, format string) ([]byte, string, error) {
	records, err := s.Today(ctx, loc)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	dataset := export.Dataset{
		Headers: []string{"Code", "Name", "Seat", "Check In", "Check Out", "Duration"},
	}
	for _, record := range records {
		seat := ""
		if record.SeatNumber != nil {
			seat = fmt.Sprintf("%d", *record.SeatNumber)
		}
		checkOut := ""
		if record.CheckOut != nil {
			checkOut = record.CheckOut.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Code":      record.StudentCode,
			"Name":      record.StudentName,
			"Seat":      seat,
			"Check In":  record.CheckIn.Format(time.RFC3339),
			"Check Out": checkOut,
			"Duration":  record.Duration(now),
		})
	}

	day := now.Format("2006-01-02")
	if strings.EqualFold(format, "pdf") {
		payload, err := s.pdf.Render(dataset, "Attendance "+day)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export attendance")
		}
		return payload, fmt.Sprintf("attendance-%s.pdf", day), nil
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export attendance")
	}
	return payload, fmt.Sprintf("attendance-%s.csv", day), nil
}
