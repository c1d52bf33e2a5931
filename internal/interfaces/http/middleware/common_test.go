package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsEngine(cfg CORSConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(CORSWithConfig(cfg))
	engine.GET("/api/v1/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func corsRequest(engine *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/api/v1/jobs", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestCORSWithConfig(t *testing.T) {
	allowed := CORSConfig{
		AllowOrigins:     []string{"https://ops.example.com", "https://scanner.example.com"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}

	t.Run("listed origin gets the headers back", func(t *testing.T) {
		w := corsRequest(corsEngine(allowed), "GET", "https://scanner.example.com")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://scanner.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("unlisted origin passes through without headers", func(t *testing.T) {
		w := corsRequest(corsEngine(allowed), "GET", "https://evil.example.com")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("empty whitelist is the locked-down default", func(t *testing.T) {
		w := corsRequest(corsEngine(DefaultCORSConfig()), "GET", "https://ops.example.com")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard answers any origin but never grants credentials", func(t *testing.T) {
		cfg := allowed
		cfg.AllowOrigins = []string{"*"}
		w := corsRequest(corsEngine(cfg), "GET", "https://anyone.example.com")

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight answers 204 for allowed and disallowed origins alike", func(t *testing.T) {
		engine := corsEngine(allowed)

		w := corsRequest(engine, "OPTIONS", "https://ops.example.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))

		w = corsRequest(engine, "OPTIONS", "https://evil.example.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var seen string
	engine.GET("/api/v1/jobs", func(c *gin.Context) {
		seen = c.GetString("request_id")
		c.Status(http.StatusOK)
	})

	t.Run("mints an id when the caller sends none", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/jobs", nil))

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.Equal(t, w.Header().Get("X-Request-ID"), seen)
	})

	t.Run("keeps the id a gateway already assigned", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
		req.Header.Set("X-Request-ID", "gw-12345")
		engine.ServeHTTP(w, req)

		assert.Equal(t, "gw-12345", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "gw-12345", seen)
	})

	t.Run("ids are unique across requests", func(t *testing.T) {
		assert.NotEqual(t, newRequestID(), newRequestID())
	})
}

func secureHeaders(cfg SecurityConfig) http.Header {
	engine := gin.New()
	engine.Use(SecureWithConfig(cfg))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	return w.Header()
}

func TestSecureWithConfig(t *testing.T) {
	t.Run("defaults set the hardening headers and skip HSTS", func(t *testing.T) {
		h := secureHeaders(DefaultSecurityConfig())

		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
		assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'self'")
		assert.Contains(t, h.Get("Permissions-Policy"), "camera=()")
		assert.Empty(t, h.Get("Strict-Transport-Security"))
	})

	t.Run("HSTS renders its flags when enabled", func(t *testing.T) {
		h := secureHeaders(SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            86400,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		})
		assert.Equal(t, "max-age=86400; includeSubDomains; preload", h.Get("Strict-Transport-Security"))
	})

	t.Run("disabled sections leave their headers off", func(t *testing.T) {
		h := secureHeaders(SecurityConfig{})
		assert.Empty(t, h.Get("Content-Security-Policy"))
		assert.Empty(t, h.Get("Permissions-Policy"))
		assert.Empty(t, h.Get("Strict-Transport-Security"))
		// the static hardening headers always apply
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	})
}

func TestTimeout(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(30 * time.Second))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "30s", w.Header().Get("X-Request-Timeout"))
}
