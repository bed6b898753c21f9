package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edupanel/institute-api/internal/middleware"
	"github.com/edupanel/institute-api/internal/models"
	"github.com/edupanel/institute-api/internal/service"
)

func newTestRegistrationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewRegistrationService(nil, nil, nil, nil, nil, 0, nil, nil)
	h := NewRegistrationHandler(svc, service.NewMetricsService())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})
	})
	r.PATCH("/registrations/:id/academic-review", h.AcademicReview)
	r.PATCH("/registrations/:id/financial-verify", h.FinancialVerify)
	r.PATCH("/registrations/:id/final-approve", h.FinalApprove)
	return r
}

func TestReviewRejectsStatusFromAnotherGate(t *testing.T) {
	r := newTestRegistrationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/registrations/reg-1/academic-review",
		strings.NewReader(`{"status":"FINANCIAL_VERIFIED"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "status does not match this gate")
}

func TestReviewRejectsTerminalStatusOnIntermediateGate(t *testing.T) {
	r := newTestRegistrationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/registrations/reg-1/financial-verify",
		strings.NewReader(`{"status":"APPROVED"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestFinalApproveRejectsUnknownStatus(t *testing.T) {
	r := newTestRegistrationRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/registrations/reg-1/final-approve",
		strings.NewReader(`{"status":"PENDING"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "status must be APPROVED or REJECTED")
}
