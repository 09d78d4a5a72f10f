//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platerelay/platerelay/internal/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	ctx := context.Background()
	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { cacheClient.Close() })

	_ = cacheClient.Client().FlushDB(ctx).Err()
	return cacheClient
}

// The Lua token bucket must hand out at most burst+refill tokens no
// matter how many requests race for them.
func TestRateLimitConcurrency(t *testing.T) {
	ctx := context.Background()
	cacheClient := newTestCache(t)

	keyID := "test-key-concurrent"
	rpm := 10
	burst := 5

	var allowed, rejected int64

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				result, err := cacheClient.CheckKeyRateLimit(ctx, keyID, rpm, burst)
				if err != nil {
					t.Errorf("CheckKeyRateLimit error: %v", err)
					return
				}
				if result.Allowed {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
			}
		}()
	}
	wg.Wait()

	t.Logf("concurrency test: %d allowed, %d rejected", allowed, rejected)

	if allowed > int64(burst+rpm) {
		t.Errorf("too many requests allowed: %d (want <= %d)", allowed, burst+rpm)
	}
	if rejected == 0 {
		t.Error("expected some requests to be rejected")
	}
}

func TestIPRateLimitConcurrency(t *testing.T) {
	ctx := context.Background()
	cacheClient := newTestCache(t)

	testIP := "192.168.1.100"
	rps := 5
	burst := 3

	var allowed, rejected int64
	var wg sync.WaitGroup

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _ := cacheClient.CheckIPRateLimit(ctx, testIP, rps, burst)
			if result.Allowed {
				atomic.AddInt64(&allowed, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	t.Logf("IP rate limit: %d allowed, %d rejected", allowed, rejected)

	if rejected == 0 {
		t.Error("expected some requests to be rejected")
	}
}

func TestRateLimitHeaders(t *testing.T) {
	resetAt := time.Now().Add(time.Minute)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRateLimitHeaders(w, 60, 45, resetAt)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plates", nil))

	if got := rec.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %s, want 60", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "45" {
		t.Errorf("X-RateLimit-Remaining = %s, want 45", got)
	}
}

func Test429Response(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimitError(rec, 5*time.Second)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type")
	}
	if rec.Body.Len() == 0 {
		t.Error("expected error body")
	}
}
