package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/edupanel/institute-api/internal/middleware"
	"github.com/edupanel/institute-api/internal/models"
)

type stubVerifier struct {
	claims *models.JWTClaims
}

func (s *stubVerifier) ValidateToken(token string) (*models.JWTClaims, error) {
	return s.claims, nil
}

type stubRefresher struct{}

func (s *stubRefresher) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return nil, errors.New("no session")
}

func TestDefaultRouteConfigLeavesSelfRoutesToRBAC(t *testing.T) {
	rc := DefaultRouteConfig()

	assert.Nil(t, rc.AllowedRoles("/api/v1/users/u1"))
	assert.Equal(t,
		[]models.UserRole{models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin},
		rc.AllowedRoles("/api/v1/submissions/s1/grade"))
	assert.True(t, rc.IsPublic("/api/v1/auth/login"))
	assert.False(t, rc.IsPublic("/api/v1/users"))
}

func TestStudentSelfReadPassesGateAndRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	claims := &models.JWTClaims{
		UserID:    "stu-1",
		Role:      models.RoleStudent,
		Status:    models.UserStatusActive,
		TokenType: models.TokenTypeAccess,
	}
	gate := middleware.NewAuthGate(&stubVerifier{claims: claims}, &stubRefresher{},
		DefaultRouteConfig(), middleware.CookieSettings{}, nil, nil)

	r := gin.New()
	r.Use(gate.Handler())
	r.GET("/api/v1/users/:id",
		middleware.RequireRoles("SUPER_ADMIN", "ADMIN", "STAFF", "SELF"),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/stu-1", nil)
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/stu-2", nil)
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
