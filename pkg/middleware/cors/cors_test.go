package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/courses", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestPreflightAllowedOrigin(t *testing.T) {
	r := newRouter([]string{"https://app.ocms.test/"})
	req := httptest.NewRequest(http.MethodOptions, "/courses", nil)
	req.Header.Set("Origin", "https://app.ocms.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.ocms.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightRejectedOrigin(t *testing.T) {
	r := newRouter([]string{"https://app.ocms.test"})
	req := httptest.NewRequest(http.MethodOptions, "/courses", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWildcardOmitsCredentials(t *testing.T) {
	r := newRouter([]string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	req.Header.Set("Origin", "https://anywhere.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDisallowedOriginStillServedWithoutHeaders(t *testing.T) {
	r := newRouter([]string{"https://app.ocms.test"})
	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
