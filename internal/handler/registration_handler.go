package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/middleware"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/service"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
	"github.com/edupanel/institute-api/pkg/response"
)

// RegistrationHandler exposes the application workflow endpoints.
type RegistrationHandler struct {
	service *service.RegistrationService
	metrics *service.MetricsService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc *service.RegistrationService, metrics *service.MetricsService) *RegistrationHandler {
	return &RegistrationHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Submit a course application
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.CreateRegistrationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	registration, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, registration)
}

// List godoc
// @Summary List the approval queue
// @Description Oldest applications first; students see only their own
// @Tags Registrations
// @Produce json
// @Param status query string false "Comma-separated status filter"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if claims.Role == models.RoleStudent {
		registrations, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, registrations, nil)
		return
	}

	registrations, err := h.service.List(c.Request.Context(), parseRegistrationQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// Get returns a single application for its owner or staff.
func (h *RegistrationHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	registration, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// AcademicReview godoc
// @Summary Record the academic gate decision
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ReviewRegistrationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/academic-review [patch]
func (h *RegistrationHandler) AcademicReview(c *gin.Context) {
	h.review(c, models.ActionAcademicReview, models.RegistrationStatusAcademicReviewed)
}

// FinancialVerify records the financial gate decision.
func (h *RegistrationHandler) FinancialVerify(c *gin.Context) {
	h.review(c, models.ActionFinancialVerify, models.RegistrationStatusFinancialVerified)
}

// FinalApprove godoc
// @Summary Record the final decision
// @Description APPROVED creates an enrollment; REJECTED closes the application
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.ReviewRegistrationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/final-approve [patch]
func (h *RegistrationHandler) FinalApprove(c *gin.Context) {
	var req dto.ReviewRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	var action models.RegistrationAction
	switch req.Status {
	case models.RegistrationStatusApproved:
		action = models.ActionApprove
	case models.RegistrationStatusRejected:
		action = models.ActionReject
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED"))
		return
	}

	h.decide(c, action, req.AdminNotes)
}

// Reject closes an application from any non-terminal state.
func (h *RegistrationHandler) Reject(c *gin.Context) {
	var req dto.ReviewRegistrationRequest
	_ = c.ShouldBindJSON(&req)
	h.decide(c, models.ActionReject, req.AdminNotes)
}

// Export godoc
// @Summary Export the approval queue
// @Tags Registrations
// @Produce text/csv
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /registrations/export [get]
func (h *RegistrationHandler) Export(c *gin.Context) {
	out, contentType, err := h.service.ExportQueue(c.Request.Context(), parseRegistrationQuery(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="registrations.`+ext+`"`)
	c.Data(http.StatusOK, contentType, out)
}

// review handles the single-target gates where the body status, when
// present, must name the gate's destination state.
func (h *RegistrationHandler) review(c *gin.Context, action models.RegistrationAction, expected models.RegistrationStatus) {
	var req dto.ReviewRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	if req.Status != "" && req.Status != expected {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status does not match this gate"))
		return
	}
	h.decide(c, action, req.AdminNotes)
}

func (h *RegistrationHandler) decide(c *gin.Context, action models.RegistrationAction, notes string) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	registration, err := h.service.Review(c.Request.Context(), c.Param("id"), action, claims.UserID, notes)
	if err != nil {
		h.metrics.RecordGateDecision(action, "denied")
		response.Error(c, err)
		return
	}

	h.metrics.RecordGateDecision(action, "applied")
	response.JSON(c, http.StatusOK, registration, nil)
}

func parseRegistrationQuery(c *gin.Context) dto.RegistrationQuery {
	query := dto.RegistrationQuery{
		CourseID: c.Query("course_id"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			query.Status = append(query.Status, models.RegistrationStatus(strings.TrimSpace(s)))
		}
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		query.Offset = offset
	}
	return query
}
