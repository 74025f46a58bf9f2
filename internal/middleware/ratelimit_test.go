package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/db/models"
)

// fakeClock lets refill be tested without sleeping
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(t *testing.T, rpm, burst int) (*RateLimiter, *fakeClock) {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: rpm, BurstSize: burst})
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	t.Cleanup(func() { _ = rl.Close() })
	return rl, clock
}

func allow(t *testing.T, l Limiter, key string) Decision {
	t.Helper()
	d, err := l.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("Allow(%q): %v", key, err)
	}
	return d
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestRateLimitConfigFrom(t *testing.T) {
	def := RateLimitConfigFrom(config.RateLimitingConfig{})
	if def != AuthRateLimitConfig() {
		t.Errorf("zero config = %+v, want defaults %+v", def, AuthRateLimitConfig())
	}

	got := RateLimitConfigFrom(config.RateLimitingConfig{RequestsPerMinute: 30, Burst: 10})
	if got.RequestsPerMinute != 30 || got.BurstSize != 10 {
		t.Errorf("RateLimitConfigFrom() = %+v", got)
	}
}

func TestNewLimiter(t *testing.T) {
	l, err := NewLimiter(config.RateLimitingConfig{RequestsPerMinute: 5})
	if err != nil {
		t.Fatalf("NewLimiter() error: %v", err)
	}
	defer l.Close()
	if _, ok := l.(*RateLimiter); !ok {
		t.Errorf("NewLimiter() = %T, want *RateLimiter without redis_url", l)
	}

	r, err := NewLimiter(config.RateLimitingConfig{RedisURL: "redis://localhost:6379/0"})
	if err != nil {
		t.Fatalf("NewLimiter(redis) error: %v", err)
	}
	defer r.Close()
	if _, ok := r.(*RedisRateLimiter); !ok {
		t.Errorf("NewLimiter(redis) = %T, want *RedisRateLimiter", r)
	}
	if r.Limit() != AuthRateLimitConfig().RequestsPerMinute {
		t.Errorf("Limit() = %d", r.Limit())
	}

	if _, err := NewLimiter(config.RateLimitingConfig{RedisURL: "://nope"}); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

// ---------------------------------------------------------------------------
// RateLimiter
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 3)

	for i := 0; i < 3; i++ {
		d := allow(t, rl, "ip:1")
		if !d.Allowed {
			t.Fatalf("request %d denied within burst", i+1)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 2-i)
		}
	}
	d := allow(t, rl, "ip:1")
	if d.Allowed {
		t.Fatal("request beyond burst allowed")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want (0, 1s] at 1 token/s", d.RetryAfter)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, clock := newTestLimiter(t, 60, 1)

	allow(t, rl, "ip:1")
	if allow(t, rl, "ip:1").Allowed {
		t.Fatal("expected empty bucket")
	}
	clock.advance(time.Second)
	if !allow(t, rl, "ip:1").Allowed {
		t.Error("expected one token after one second at 60 rpm")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 1)

	allow(t, rl, "ip:1")
	if !allow(t, rl, "ip:2").Allowed {
		t.Error("second key throttled by the first")
	}
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1, CleanupInterval: time.Hour})
	_ = rl.Close()
	_ = rl.Close()
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}
func (erroringLimiter) Limit() int   { return 1 }
func (erroringLimiter) Close() error { return nil }

func newRateLimitRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 10, 2)
	r := newRateLimitRouter(rl)

	for i := 0; i < 2; i++ {
		w := post(r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("X-RateLimit-Limit = %q", w.Header().Get("X-RateLimit-Limit"))
		}
	}

	w := post(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	if w := post(newRateLimitRouter(erroringLimiter{})); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter errors", w.Code)
	}
}

func TestGetRateLimitKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.1:5555"

	if got := getRateLimitKey(c); got != "ip:192.0.2.1" {
		t.Errorf("anonymous key = %q", got)
	}
	c.Set(UserKey, &models.User{ID: 42})
	if got := getRateLimitKey(c); got != "user:42" {
		t.Errorf("user key = %q", got)
	}
}
