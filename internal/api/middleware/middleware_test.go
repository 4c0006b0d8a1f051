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

	"github.com/MarcoNaik/tectramin-sub001/config"
	"github.com/MarcoNaik/tectramin-sub001/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-0123456789",
		Issuer:         "faena-identity",
		AccessTokenTTL: time.Minute,
	})
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newJWTManager()
	token, err := mgr.GenerateAccessToken("xid-worker", "worker")
	if err != nil {
		t.Fatalf("签发 Token 失败: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotXID, gotRole string
			r := gin.New()
			r.GET("/me", JWTAuth(mgr), func(c *gin.Context) {
				gotXID = c.GetString("person_xid")
				gotRole = c.GetString("role")
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && (gotXID != "xid-worker" || gotRole != "worker") {
				t.Errorf("expected xid-worker/worker in context, got %q/%q", gotXID, gotRole)
			}
		})
	}
}

func TestJWTAuth_WrongIssuer(t *testing.T) {
	other := jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-0123456789",
		Issuer:         "someone-else",
		AccessTokenTTL: time.Minute,
	})
	token, _ := other.GenerateAccessToken("xid-worker", "worker")

	r := gin.New()
	r.GET("/me", JWTAuth(newJWTManager()), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	tests := []struct {
		role       string
		wantStatus int
	}{
		{"dispatcher", http.StatusOK},
		{"admin", http.StatusOK},
		{"worker", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run("role="+tt.role, func(t *testing.T) {
			r := gin.New()
			r.GET("/days", func(c *gin.Context) {
				if tt.role != "" {
					c.Set("role", tt.role)
				}
				c.Next()
			}, RoleAuth("dispatcher", "admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/days", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

// ── RateLimit ──

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limiter    *fakeLimiter
		xid        string
		wantStatus int
		wantKey    string
	}{
		{"allowed by ip", &fakeLimiter{allowed: true}, "", http.StatusOK, "rate_limit:192.0.2.1:/sync/batch"},
		{"keyed by person", &fakeLimiter{allowed: true}, "xid-worker", http.StatusOK, "rate_limit:xid-worker:/sync/batch"},
		{"rejected", &fakeLimiter{allowed: false}, "xid-worker", http.StatusTooManyRequests, "rate_limit:xid-worker:/sync/batch"},
		{"store error passes", &fakeLimiter{err: errors.New("redis down")}, "", http.StatusOK, "rate_limit:192.0.2.1:/sync/batch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/sync/batch", func(c *gin.Context) {
				if tt.xid != "" {
					c.Set("person_xid", tt.xid)
				}
				c.Next()
			}, RateLimit(tt.limiter, 10, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/sync/batch", nil)
			req.RemoteAddr = "192.0.2.1:12345"
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != tt.wantKey {
				t.Errorf("expected key %s, got %v", tt.wantKey, tt.limiter.keys)
			}
			if tt.wantStatus == http.StatusTooManyRequests && !strings.Contains(w.Body.String(), `"code":10004`) {
				t.Errorf("expected code 10004 in body, got %s", w.Body.String())
			}
		})
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/sync/batch", RateLimit(nil, 10, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/sync/batch", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ── BodyLimit ──

func TestBodyLimit_RejectsDeclaredOversize(t *testing.T) {
	r := gin.New()
	r.POST("/sync/batch", BodyLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/sync/batch", strings.NewReader(`{"task_instances":[]}`)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	r := gin.New()
	r.POST("/sync/batch", BodyLimit(1024), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/sync/batch", strings.NewReader(`{}`)))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/health", RequestID(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected propagated id abc-123, got %s", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", requestIDMaxLen+1))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %s", got)
	}
}

// ── CORS ──

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.POST("/sync/batch", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/sync/batch", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow origin: %s", got)
	}
}
