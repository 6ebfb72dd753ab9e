package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sehatlog-server/internal/config"
)

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(config.RateLimitConfig{Window: window, MaxRequests: max})
	rl.nowFunc = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterAllowWithinLimit(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("user-a"); !ok {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	ok, retryAfter := rl.Allow("user-a")
	if ok {
		t.Fatal("fourth request allowed, want denied")
	}
	if retryAfter <= 0 || retryAfter > 61 {
		t.Errorf("retryAfter = %d, want within (0, 61]", retryAfter)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)

	if ok, _ := rl.Allow("user-a"); !ok {
		t.Fatal("first key denied")
	}
	if ok, _ := rl.Allow("user-b"); !ok {
		t.Fatal("second key throttled by first key's hits")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl, now := newTestLimiter(2, time.Minute)

	rl.Allow("user-a")
	rl.Allow("user-a")
	if ok, _ := rl.Allow("user-a"); ok {
		t.Fatal("over-limit request allowed")
	}

	*now = now.Add(61 * time.Second)
	if ok, _ := rl.Allow("user-a"); !ok {
		t.Fatal("request denied after window expired")
	}
}

func TestRateLimiterMiddlewareResponds429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newTestLimiter(1, time.Minute)

	router := gin.New()
	router.POST("/login", rl.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first request: status=%d, want 200", rec.Code)
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status=%d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429")
	}
}
