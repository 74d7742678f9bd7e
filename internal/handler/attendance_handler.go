package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyspace/admin-api/internal/service"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
	"github.com/studyspace/admin-api/pkg/response"
)

// AttendanceHandler wires HTTP endpoints to the attendance service.
type AttendanceHandler struct {
	service *service.AttendanceService
	metrics *service.MetricsService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, metrics: metrics}
}

// Scan godoc
// @Summary Process a QR scan
// @Description Resolves the scanned payload to a student and toggles their session. Duplicate scans inside the dedupe window return 429.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body map[string]string true "Scan payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var payload struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "scan token required"))
		return
	}

	result, err := h.service.Scan(c.Request.Context(), payload.Token, callerFromContext(c))
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordScan("rejected")
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordScan(result.Action)
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CheckIn godoc
// @Summary Check a student in
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-in/{studentId} [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	record, err := h.service.CheckIn(c.Request.Context(), c.Param("studentId"), callerFromContext(c))
	if err != nil {
		if record != nil {
			response.ErrorWithData(c, err, record)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// CheckOut godoc
// @Summary Check a student out
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-out/{studentId} [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	record, err := h.service.CheckOut(c.Request.Context(), c.Param("studentId"), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// queryLocation resolves the caller's timezone from the tz query
// parameter (IANA name). Falls back to UTC when absent or unknown.
func queryLocation(c *gin.Context) *time.Location {
	name := c.Query("tz")
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today godoc
// @Summary Today's attendance
// @Tags Attendance
// @Produce json
// @Param tz query string false "IANA timezone for the day boundary" default(UTC)
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	records, err := h.service.Today(c.Request.Context(), queryLocation(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Present godoc
// @Summary Students currently present
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/present [get]
func (h *AttendanceHandler) Present(c *gin.Context) {
	records, err := h.service.Present(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// History godoc
// @Summary Attendance history for a student
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /attendance/student/{studentId} [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	records, err := h.service.History(c.Request.Context(), c.Param("studentId"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ExportToday godoc
// @Summary Export today's attendance as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Param format query string false "csv or pdf" default(csv)
// @Param tz query string false "IANA timezone for the day boundary" default(UTC)
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportToday(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, filename, err := h.service.ExportToday(c.Request.Context(), queryLocation(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv"
	if strings.HasSuffix(filename, ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, payload)
}
