package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyspace/admin-api/internal/service"
	appErrors "github.com/studyspace/admin-api/pkg/errors"
	"github.com/studyspace/admin-api/pkg/response"
)

// SeatHandler wires HTTP endpoints to the seat service.
type SeatHandler struct {
	service *service.SeatService
}

// NewSeatHandler creates a new handler.
func NewSeatHandler(svc *service.SeatService) *SeatHandler {
	return &SeatHandler{service: svc}
}

// List godoc
// @Summary List the seat map
// @Tags Seats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /seats [get]
func (h *SeatHandler) List(c *gin.Context) {
	seats, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seats, nil)
}

// Assign godoc
// @Summary Assign a seat to a student
// @Description Moves the student onto a vacant seat. Fails with 409 when the seat is occupied or the supplied version is stale.
// @Tags Seats
// @Accept json
// @Produce json
// @Param payload body service.AssignSeatRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seats/assign [post]
func (h *SeatHandler) Assign(c *gin.Context) {
	var req service.AssignSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seat assignment payload"))
		return
	}

	seat, err := h.service.Assign(c.Request.Context(), req, callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seat, nil)
}

// Clear godoc
// @Summary Clear a student's seat
// @Tags Seats
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seats/student/{studentId} [delete]
func (h *SeatHandler) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context(), c.Param("studentId"), callerFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Seat change history for a student
// @Tags Seats
// @Produce json
// @Param studentId path string true "Student ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /seats/student/{studentId}/history [get]
func (h *SeatHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("studentId"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Reconcile godoc
// @Summary Repair seat/student consistency
// @Description Rewrites denormalized student seat numbers from the seats table
// @Tags Seats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /seats/reconcile [post]
func (h *SeatHandler) Reconcile(c *gin.Context) {
	repaired, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"repaired": repaired}, nil)
}
