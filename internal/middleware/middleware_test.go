package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/internal/service"
	"github.com/noah-isme/section-allocator/pkg/logger"
)

func buildGuardedRouter(auth *service.AuthService, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/allocations/export", JWT(auth), RequireRoles(models.RoleAdmin, models.RoleRegistrar), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func tokenFor(t *testing.T, auth *service.AuthService, role models.UserRole) string {
	t.Helper()
	token, _, err := auth.IssueToken(service.Operator{ID: "op-1", Role: role})
	require.NoError(t, err)
	return token
}

func TestJWTAndRBAC(t *testing.T) {
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour})
	metrics := service.NewMetricsService()
	router := buildGuardedRouter(auth, metrics)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"invalid token", "Bearer abc", http.StatusUnauthorized},
		{"forbidden role", "Bearer " + tokenFor(t, auth, models.RoleSuperAdmin), http.StatusForbidden},
		{"allowed role", "Bearer " + tokenFor(t, auth, models.RoleRegistrar), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/allocations/export", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
	assert.Equal(t, uint64(len(cases)), metrics.Snapshot().RequestsTotal)
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RBAC(string(models.RoleAdmin)), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTPropagatesOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret"})
	var seen string
	r := gin.New()
	r.GET("/x", JWT(auth), func(c *gin.Context) {
		seen = logger.OperatorFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer "+tokenFor(t, auth, models.RoleAdmin))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "op-1", seen)
}

func TestMetricsSkipsScrapesAndGroupsUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/metrics", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
	assert.NotContains(t, w.Body.String(), "/nope/1")
}
