package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/models"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
	"github.com/edupanel/institute-api/pkg/response"
)

// ContextUserKey is the gin context key storing verified JWT claims.
const ContextUserKey = "currentUser"

// Cookie names set by the auth endpoints and read by the gate.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// TokenRefresher exchanges a refresh token for a rotated pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
}

// refreshMetrics counts silent refresh attempts. Optional.
type refreshMetrics interface {
	RecordTokenRefresh(outcome string)
}

// RouteConfig declares the access policy for the gate. Public prefixes end
// with `*` to match everything underneath; exact entries match one path.
// Role prefixes are matched longest-first so a more specific rule wins.
type RouteConfig struct {
	Public           []string
	Roles            map[string][]models.UserRole
	LoginPath        string
	UnauthorizedPath string
}

// IsPublic reports whether the path bypasses authentication.
func (rc RouteConfig) IsPublic(path string) bool {
	for _, entry := range rc.Public {
		if strings.HasSuffix(entry, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(entry, "*")) {
				return true
			}
			continue
		}
		if path == entry {
			return true
		}
	}
	return false
}

// AllowedRoles returns the role set of the longest matching prefix rule.
// A nil set means the path carries no role restriction beyond authentication.
func (rc RouteConfig) AllowedRoles(path string) []models.UserRole {
	var bestPrefix string
	var bestRoles []models.UserRole
	for prefix, roles := range rc.Roles {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			bestRoles = roles
		}
	}
	return bestRoles
}

// CookieSettings controls the attributes of issued auth cookies.
type CookieSettings struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AuthGate authenticates and authorizes every non-public request.
//
// Token sourcing prefers the access_token cookie and falls back to a Bearer
// Authorization header. A missing, invalid or expired access token triggers
// at most one silent refresh using the refresh_token cookie; on success the
// rotated pair is persisted as cookies and the request proceeds. On failure
// both cookies are cleared and the client receives 401 (API callers) or a
// redirect to the login page carrying the original path (page requests).
// A role mismatch yields 403 or the unauthorized page respectively.
type AuthGate struct {
	verifier  TokenVerifier
	refresher TokenRefresher
	routes    RouteConfig
	cookies   CookieSettings
	metrics   refreshMetrics
	logger    *zap.Logger
}

// NewAuthGate constructs the gate middleware.
func NewAuthGate(verifier TokenVerifier, refresher TokenRefresher, routes RouteConfig, cookies CookieSettings, metrics refreshMetrics, logger *zap.Logger) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{
		verifier:  verifier,
		refresher: refresher,
		routes:    routes,
		cookies:   cookies,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handler returns the gin middleware.
func (g *AuthGate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if g.routes.IsPublic(path) {
			c.Next()
			return
		}

		claims, ok := g.authenticate(c)
		if !ok {
			return
		}

		if roles := g.routes.AllowedRoles(path); roles != nil && !roleAllowed(claims.Role, roles) {
			g.deny(c, http.StatusForbidden)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Request.Header.Set("X-User-Id", claims.UserID)
		c.Request.Header.Set("X-User-Role", string(claims.Role))
		c.Request.Header.Set("X-User-Email", claims.Email)
		c.Request.Header.Set("X-User-Status", string(claims.Status))
		c.Next()
	}
}

// authenticate resolves valid claims for the request, refreshing once if
// needed. When it returns false the response has already been written.
func (g *AuthGate) authenticate(c *gin.Context) (*models.JWTClaims, bool) {
	token := g.sourceToken(c)
	if token != "" {
		if claims, err := g.verifier.ValidateToken(token); err == nil {
			return claims, true
		}
	}

	// Single refresh attempt. Missing and expired access tokens take the
	// same path so cookie-based sessions survive token expiry silently.
	refreshToken, err := c.Cookie(RefreshTokenCookie)
	if err != nil || refreshToken == "" {
		g.recordRefresh("skipped")
		g.fail(c)
		return nil, false
	}

	refreshed, err := g.refresher.RefreshToken(c.Request.Context(), models.RefreshTokenRequest{
		RefreshToken: refreshToken,
		IP:           c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		g.recordRefresh("failure")
		g.fail(c)
		return nil, false
	}

	claims, err := g.verifier.ValidateToken(refreshed.AccessToken)
	if err != nil {
		g.recordRefresh("failure")
		g.fail(c)
		return nil, false
	}

	g.recordRefresh("success")
	g.SetAuthCookies(c, refreshed.AccessToken, refreshed.RefreshToken)
	return claims, true
}

// sourceToken prefers the access cookie, then the Authorization header.
func (g *AuthGate) sourceToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// fail clears both cookies and answers 401 or a login redirect.
func (g *AuthGate) fail(c *gin.Context) {
	g.ClearAuthCookies(c)
	g.deny(c, http.StatusUnauthorized)
}

func (g *AuthGate) deny(c *gin.Context, status int) {
	if isAPIRequest(c) {
		if status == http.StatusForbidden {
			response.Error(c, appErrors.ErrForbidden)
		} else {
			response.Error(c, appErrors.ErrUnauthorized)
		}
		c.Abort()
		return
	}

	target := g.routes.UnauthorizedPath
	if status == http.StatusUnauthorized {
		target = g.routes.LoginPath + "?redirect=" + url.QueryEscape(c.Request.URL.Path)
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// SetAuthCookies writes the access and refresh cookies with the gate's
// attributes. HttpOnly and SameSite=Lax always; Secure per configuration.
func (g *AuthGate) SetAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, accessToken, int(g.cookies.AccessTTL.Seconds()), "/", g.cookies.Domain, g.cookies.Secure, true)
	c.SetCookie(RefreshTokenCookie, refreshToken, int(g.cookies.RefreshTTL.Seconds()), "/", g.cookies.Domain, g.cookies.Secure, true)
}

// ClearAuthCookies expires both auth cookies.
func (g *AuthGate) ClearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", g.cookies.Domain, g.cookies.Secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", g.cookies.Domain, g.cookies.Secure, true)
}

func (g *AuthGate) recordRefresh(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordTokenRefresh(outcome)
	}
}

// isAPIRequest discriminates programmatic clients from browser page loads.
// API callers get JSON status codes; pages get redirects.
func isAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if c.GetHeader("Authorization") != "" {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json")
}

func roleAllowed(role models.UserRole, allowed []models.UserRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
