package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupanel/institute-api/internal/models"
)

type stubVerifier struct {
	claims map[string]*models.JWTClaims
}

func (s *stubVerifier) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s.claims[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type stubRefresher struct {
	calls    int
	response *models.RefreshTokenResponse
	err      error
}

func (s *stubRefresher) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func testRouteConfig() RouteConfig {
	return RouteConfig{
		Public: []string{"/health", "/api/v1/auth/login", "/docs*"},
		Roles: map[string][]models.UserRole{
			"/api/v1/admin": {models.RoleAdmin, models.RoleSuperAdmin},
		},
		LoginPath:        "/login",
		UnauthorizedPath: "/unauthorized",
	}
}

func newTestGate(verifier *stubVerifier, refresher *stubRefresher) *AuthGate {
	return NewAuthGate(verifier, refresher, testRouteConfig(), CookieSettings{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, nil, nil)
}

func newTestRouter(gate *AuthGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gate.Handler())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/health", ok)
	r.GET("/api/v1/courses", ok)
	r.GET("/api/v1/admin/panel", ok)
	r.GET("/dashboard", ok)
	return r
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin, Email: "admin@example.com", Status: models.UserStatusActive, TokenType: models.TokenTypeAccess}
}

func TestGatePublicPathBypasses(t *testing.T) {
	gate := newTestGate(&stubVerifier{}, &stubRefresher{})
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateNoTokensAPIRequest401(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("no token")}
	gate := newTestGate(&stubVerifier{}, refresher)
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Zero(t, refresher.calls)
}

func TestGateNoTokensPageRequestRedirectsToLogin(t *testing.T) {
	gate := newTestGate(&stubVerifier{}, &stubRefresher{err: errors.New("no token")})
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/login?redirect="), location)
	assert.Contains(t, location, "%2Fdashboard")
}

func TestGateValidBearerTokenForwards(t *testing.T) {
	verifier := &stubVerifier{claims: map[string]*models.JWTClaims{"good": adminClaims()}}
	gate := newTestGate(verifier, &stubRefresher{})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gate.Handler())
	r.GET("/api/v1/courses", func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		require.True(t, ok)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "u1", c.Request.Header.Get("X-User-Id"))
		assert.Equal(t, "ADMIN", c.Request.Header.Get("X-User-Role"))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateRoleMismatch403(t *testing.T) {
	student := adminClaims()
	student.Role = models.RoleStudent
	verifier := &stubVerifier{claims: map[string]*models.JWTClaims{"student": student}}
	gate := newTestGate(verifier, &stubRefresher{})
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/panel", nil)
	req.Header.Set("Authorization", "Bearer student")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestGateExpiredTokenRefreshesOnceAndSetsCookies(t *testing.T) {
	verifier := &stubVerifier{claims: map[string]*models.JWTClaims{"fresh": adminClaims()}}
	refresher := &stubRefresher{response: &models.RefreshTokenResponse{
		AccessToken:  "fresh",
		RefreshToken: "rotated",
	}}
	gate := newTestGate(verifier, refresher)
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "expired"})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "valid-refresh"})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, refresher.calls)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, cookie := range cookies {
		byName[cookie.Name] = cookie
	}
	require.Contains(t, byName, AccessTokenCookie)
	require.Contains(t, byName, RefreshTokenCookie)
	assert.Equal(t, "fresh", byName[AccessTokenCookie].Value)
	assert.Equal(t, "rotated", byName[RefreshTokenCookie].Value)
	assert.True(t, byName[AccessTokenCookie].HttpOnly)
	assert.True(t, byName[RefreshTokenCookie].HttpOnly)
}

func TestGateFailedRefreshClearsCookies(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("revoked")}
	gate := newTestGate(&stubVerifier{}, refresher)
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "expired"})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "revoked"})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, refresher.calls)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, cookie := range cookies {
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0)
	}
}

func TestGateMissingAccessWithValidRefreshSucceeds(t *testing.T) {
	verifier := &stubVerifier{claims: map[string]*models.JWTClaims{"fresh": adminClaims()}}
	refresher := &stubRefresher{response: &models.RefreshTokenResponse{
		AccessToken:  "fresh",
		RefreshToken: "rotated",
	}}
	gate := newTestGate(verifier, refresher)
	r := newTestRouter(gate)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "valid-refresh"})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, refresher.calls)
}

func TestRouteConfigMatching(t *testing.T) {
	rc := testRouteConfig()

	assert.True(t, rc.IsPublic("/health"))
	assert.True(t, rc.IsPublic("/docs/index.html"))
	assert.False(t, rc.IsPublic("/api/v1/courses"))
	assert.False(t, rc.IsPublic("/healthz"))

	assert.Nil(t, rc.AllowedRoles("/api/v1/courses"))
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}, rc.AllowedRoles("/api/v1/admin/panel"))
}

func TestRouteConfigLongestPrefixWins(t *testing.T) {
	rc := RouteConfig{Roles: map[string][]models.UserRole{
		"/api/v1":      {models.RoleAdmin},
		"/api/v1/self": {models.RoleStudent},
	}}

	assert.Equal(t, []models.UserRole{models.RoleStudent}, rc.AllowedRoles("/api/v1/self/profile"))
	assert.Equal(t, []models.UserRole{models.RoleAdmin}, rc.AllowedRoles("/api/v1/other"))
}
