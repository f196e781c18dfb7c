package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/service"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/middleware/requestid"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type auditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/things/:id", handlers...)
	r.GET("/things/:id", handlers...)
	return r
}

func perform(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newRouter(JWT(&stubValidator{}))

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/things/1", "Token abc").Code)
}

func TestJWTSetsClaims(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}
	var seen *models.JWTClaims
	r := newRouter(JWT(validator), func(c *gin.Context) {
		seen, _ = Claims(c)
	})

	rec := perform(r, http.MethodGet, "/things/1", "Bearer abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", validator.seen)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	r := newRouter(JWT(&stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}))
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/things/1", "Bearer abc").Code)
}

func TestRequireCapability(t *testing.T) {
	tests := []struct {
		name       string
		role       models.UserRole
		capability permission.Capability
		status     int
	}{
		{name: "student enrolls", role: models.RoleStudent, capability: permission.EnrollCourses, status: http.StatusOK},
		{name: "instructor cannot enroll", role: models.RoleInstructor, capability: permission.EnrollCourses, status: http.StatusForbidden},
		{name: "admin manages users", role: models.RoleAdmin, capability: permission.ManageUsers, status: http.StatusOK},
		{name: "unknown role", role: models.UserRole("GUEST"), capability: permission.ManageCatalog, status: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: tc.role}}
			r := newRouter(JWT(validator), RequireCapability(tc.capability))
			assert.Equal(t, tc.status, perform(r, http.MethodGet, "/things/1", "Bearer abc").Code)
		})
	}
}

func TestRequireCapabilityWithoutClaims(t *testing.T) {
	r := newRouter(RequireCapability(permission.ManageCatalog))
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/things/1", "").Code)
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	r := newRouter(limiter.Middleware())

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/things/1", "").Code)
}

func TestRateLimiterTracksKeysSeparately(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("a"))
	now = now.Add(2 * time.Minute)
	require.True(t, limiter.Allow("b"))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	_, stillThere := limiter.visitors["a"]
	assert.False(t, stillThere)
	assert.Len(t, limiter.visitors, 1)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &auditRecorder{}
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
	r := newRouter(JWT(validator), Audit(recorder, nil, models.AuditActionCategoryWrite, "category"))

	rec := perform(r, http.MethodPost, "/things/cat-1", "Bearer abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionCategoryWrite, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "admin-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "cat-1", *log.ResourceID)
}

func TestAuditSkipsFailuresAndIgnoresWriteErrors(t *testing.T) {
	recorder := &auditRecorder{err: errors.New("db down")}
	failing := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusBadRequest)
	}
	r := newRouter(Audit(recorder, nil, models.AuditActionCategoryWrite, "category"), failing)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/things/1", "").Code)
	assert.Empty(t, recorder.logs)

	r = newRouter(Audit(recorder, nil, models.AuditActionCategoryWrite, "category"))
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/things/1", "").Code)
	assert.Len(t, recorder.logs, 1)
}

func TestResponseMetaCarriesRequestIDAndTiming(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/courses", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = Meta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "req-1", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestSetCacheHitWithoutMetaMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	SetCacheHit(c, false)
	assert.Equal(t, false, Meta(c)["cache_hit"])
}

func TestMetricsSkipsOpsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/health", "")
	perform(r, http.MethodGet, "/courses/c1", "")
	perform(r, http.MethodGet, "/nope", "")

	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)
}
