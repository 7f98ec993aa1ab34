package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark/internal/logger"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// =============================================================================
// Recovery Tests
// =============================================================================

// TestRecovery_PanicReturns500 tests the flat error body on panic
func TestRecovery_PanicReturns500(t *testing.T) {
	engine := newEngine()
	engine.Use(Recovery(logger.NewDefault("test")))
	engine.GET("/boom", func(_ *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"Internal server error"`) {
		t.Errorf("body = %s, want the generic error", w.Body.String())
	}
}

// =============================================================================
// RequestID Tests
// =============================================================================

// TestRequestID_GeneratesWhenAbsent tests ID generation
func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	engine := newEngine()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header is empty, want a generated id")
	}
}

// TestRequestID_PreservesIncoming tests ID passthrough
func TestRequestID_PreservesIncoming(t *testing.T) {
	engine := newEngine()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "incoming-id")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "incoming-id" {
		t.Errorf("X-Request-Id = %q, want %q", got, "incoming-id")
	}
}

// =============================================================================
// CORS Tests
// =============================================================================

// TestCORS_AllowsConfiguredOrigin tests header emission for allowed origins
func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	engine := newEngine()
	engine.Use(CORS(&CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
	}
}

// TestCORS_SkipsUnknownOrigin tests that disallowed origins get no headers
func TestCORS_SkipsUnknownOrigin(t *testing.T) {
	engine := newEngine()
	engine.Use(CORS(&CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

// TestCORS_PreflightShortCircuits tests the OPTIONS handling
func TestCORS_PreflightShortCircuits(t *testing.T) {
	engine := newEngine()
	engine.Use(CORS(&CORSConfig{AllowedOrigins: []string{"*"}}))

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

// =============================================================================
// BodySizeLimit Tests
// =============================================================================

// TestBodySizeLimit_RejectsOversizedBody tests the reader cap
func TestBodySizeLimit_RejectsOversizedBody(t *testing.T) {
	engine := newEngine()
	engine.Use(BodySizeLimit("1KB"))
	engine.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	big := strings.NewReader(strings.Repeat("x", 2048))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", big))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// TestBodySizeLimit_AllowsSmallBody tests the pass-through
func TestBodySizeLimit_AllowsSmallBody(t *testing.T) {
	engine := newEngine()
	engine.Use(BodySizeLimit("1KB"))
	engine.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
