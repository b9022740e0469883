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
	r.POST("/allocations/generate", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestPreflightShortCircuits(t *testing.T) {
	r := newRouter([]string{"https://registrar.example.edu/"})

	req := httptest.NewRequest(http.MethodOptions, "/allocations/generate", nil)
	req.Header.Set("Origin", "https://registrar.example.edu")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://registrar.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, allowMethods, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestUnknownOriginNotEchoed(t *testing.T) {
	r := newRouter([]string{"https://registrar.example.edu"})

	req := httptest.NewRequest(http.MethodPost, "/allocations/generate", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
