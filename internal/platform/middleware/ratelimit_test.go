package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func callFrom(h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	return rec, h(echo.New().NewContext(req, rec))
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	h := rateLimit(l)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec, err := callFrom(h, "10.0.0.1")
		if err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "3" {
			t.Errorf("unexpected limit header %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec, err := callFrom(h, "10.0.0.1")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}

	if _, err := callFrom(h, "10.0.0.2"); err != nil {
		t.Errorf("other clients have their own bucket, got %v", err)
	}
}

func TestRateLimit_Refills(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 1})
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if ok, _ := l.allow("a"); !ok {
		t.Fatal("expected first attempt to pass")
	}
	if ok, retry := l.allow("a"); ok || retry != 2 {
		t.Fatalf("expected rejection with retry 2, got %v %d", ok, retry)
	}
	now = now.Add(2 * time.Second)
	if ok, _ := l.allow("a"); !ok {
		t.Error("expected a token after two seconds")
	}
}

func TestRateLimit_SweepsIdleClients(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("a")
	now = now.Add(2 * time.Minute)
	l.allow("b")
	if _, ok := l.buckets["a"]; ok {
		t.Error("expected idle bucket to be dropped")
	}
	if len(l.buckets) != 1 {
		t.Errorf("expected one bucket, got %d", len(l.buckets))
	}
}

func TestLoginRateLimitConfig(t *testing.T) {
	cfg := LoginRateLimitConfig()
	if cfg.BurstSize <= 0 || cfg.RequestsPerSecond <= 0 || cfg.IdleTTL <= 0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
