package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/platform/auth"
)

func TestTracker_Record(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= 4; i++ {
		tr.Record(RequestMetric{Method: "GET", Route: "/api/v1/patients", Status: 200, Duration: time.Duration(i) * time.Millisecond, Role: "doctor"})
	}
	tr.Record(RequestMetric{Method: "GET", Route: "/api/v1/patients", Status: 500, Duration: 10 * time.Millisecond, Role: "doctor"})
	tr.Record(RequestMetric{Method: "POST", Route: "/api/v1/auth/login", Status: 401, Duration: time.Millisecond})

	routes := tr.Routes(0)
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	top := routes[0]
	if top.Route != "GET /api/v1/patients" || top.Requests != 5 {
		t.Fatalf("unexpected top route %+v", top)
	}
	if top.ServerErrors != 1 || top.ErrorRate != 0.2 {
		t.Errorf("expected 1 server error (0.2), got %d (%v)", top.ServerErrors, top.ErrorRate)
	}
	if top.AvgLatency != 4*time.Millisecond {
		t.Errorf("expected avg 4ms, got %s", top.AvgLatency)
	}
	if top.P95Latency != 10*time.Millisecond {
		t.Errorf("expected p95 10ms, got %s", top.P95Latency)
	}
	if top.StatusBreakdown[200] != 4 || top.StatusBreakdown[500] != 1 {
		t.Errorf("unexpected breakdown %v", top.StatusBreakdown)
	}

	ov := tr.Overview(1)
	if ov.Requests != 6 || ov.ServerErrors != 1 {
		t.Errorf("unexpected overview totals %+v", ov)
	}
	if ov.ByRole["doctor"] != 5 || ov.ByRole["anonymous"] != 1 {
		t.Errorf("unexpected role counts %v", ov.ByRole)
	}
	if len(ov.TopRoutes) != 1 {
		t.Errorf("expected top 1 route, got %d", len(ov.TopRoutes))
	}
}

func TestP95(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(100-i) * time.Millisecond
	}
	if got := p95(samples); got != 95*time.Millisecond {
		t.Errorf("expected 95ms, got %s", got)
	}
	if p95(nil) != 0 {
		t.Error("expected zero for no samples")
	}
}

func TestRouteStats_WindowWraps(t *testing.T) {
	s := &routeStats{statuses: map[int]int64{}}
	for i := 0; i < latencyWindow+10; i++ {
		s.add(RequestMetric{Status: 200, Duration: time.Millisecond})
	}
	if len(s.recent) != latencyWindow {
		t.Errorf("expected window of %d, got %d", latencyWindow, len(s.recent))
	}
	if s.requests != latencyWindow+10 {
		t.Errorf("expected %d requests, got %d", latencyWindow+10, s.requests)
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	tr := NewTracker()
	e := echo.New()
	e.Use(Middleware(tr))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithUser(c.Request().Context(), uuid.New(), "receptionist")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		if c.Param("id") == "broken" {
			return errors.New("boom")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{uuid.NewString(), uuid.NewString(), "missing", "broken"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+id, nil))
	}

	routes := tr.Routes(0)
	if len(routes) != 1 {
		t.Fatalf("expected one route entry, got %d", len(routes))
	}
	r := routes[0]
	if r.Route != "GET /api/v1/patients/:id" || r.Requests != 4 {
		t.Fatalf("unexpected summary %+v", r)
	}
	if r.StatusBreakdown[200] != 2 || r.StatusBreakdown[404] != 1 || r.StatusBreakdown[500] != 1 {
		t.Errorf("unexpected breakdown %v", r.StatusBreakdown)
	}
	if tr.Overview(0).ByRole["receptionist"] != 4 {
		t.Errorf("expected requests attributed to receptionist, got %v", tr.Overview(0).ByRole)
	}
}

func TestHandler_Overview(t *testing.T) {
	tr := NewTracker()
	tr.Record(RequestMetric{Method: "GET", Route: "/health", Status: 200, Duration: time.Millisecond})

	e := echo.New()
	NewHandler(tr).RegisterRoutes(e.Group("/api/v1/admin"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/usage", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ov Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.Requests != 1 || len(ov.TopRoutes) != 1 {
		t.Errorf("unexpected overview %+v", ov)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/usage/routes?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for routes, got %d", rec.Code)
	}
}
