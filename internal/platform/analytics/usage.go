// Package analytics keeps in-process API usage counters: requests, errors
// and latency per route and request counts per role. Counters live for the
// lifetime of the process.
package analytics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medcrm/clinic/internal/platform/auth"
)

// latencyWindow is how many recent samples per route feed the p95.
const latencyWindow = 512

// RequestMetric describes one finished request.
type RequestMetric struct {
	Method   string
	Route    string
	Status   int
	Duration time.Duration
	Role     string
}

type routeStats struct {
	requests int64
	errors   int64
	total    time.Duration
	statuses map[int]int64
	recent   []time.Duration
	next     int
}

func (s *routeStats) add(m RequestMetric) {
	s.requests++
	if m.Status >= http.StatusInternalServerError {
		s.errors++
	}
	s.total += m.Duration
	s.statuses[m.Status]++
	if len(s.recent) < latencyWindow {
		s.recent = append(s.recent, m.Duration)
		return
	}
	s.recent[s.next] = m.Duration
	s.next = (s.next + 1) % latencyWindow
}

// RouteSummary is the aggregate for one method and route pattern.
type RouteSummary struct {
	Route           string        `json:"route"`
	Requests        int64         `json:"requests"`
	ServerErrors    int64         `json:"server_errors"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency_ns"`
	P95Latency      time.Duration `json:"p95_latency_ns"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

type Overview struct {
	Since        time.Time        `json:"since"`
	Requests     int64            `json:"requests"`
	ServerErrors int64            `json:"server_errors"`
	ErrorRate    float64          `json:"error_rate"`
	ByRole       map[string]int64 `json:"by_role"`
	TopRoutes    []RouteSummary   `json:"top_routes"`
}

type Tracker struct {
	mu     sync.Mutex
	since  time.Time
	routes map[string]*routeStats
	roles  map[string]int64
}

func NewTracker() *Tracker {
	return &Tracker{
		since:  time.Now().UTC(),
		routes: make(map[string]*routeStats),
		roles:  make(map[string]int64),
	}
}

func (t *Tracker) Record(m RequestMetric) {
	key := m.Method + " " + m.Route
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.routes[key]
	if !ok {
		s = &routeStats{statuses: make(map[int]int64)}
		t.routes[key] = s
	}
	s.add(m)
	role := m.Role
	if role == "" {
		role = "anonymous"
	}
	t.roles[role]++
}

func summarize(route string, s *routeStats) RouteSummary {
	out := RouteSummary{
		Route:           route,
		Requests:        s.requests,
		ServerErrors:    s.errors,
		StatusBreakdown: make(map[int]int64, len(s.statuses)),
	}
	for code, n := range s.statuses {
		out.StatusBreakdown[code] = n
	}
	if s.requests > 0 {
		out.ErrorRate = float64(s.errors) / float64(s.requests)
		out.AvgLatency = s.total / time.Duration(s.requests)
	}
	out.P95Latency = p95(s.recent)
	return out
}

func p95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*95+99)/100 - 1
	return sorted[idx]
}

// Routes returns every route summary, busiest first. limit <= 0 means all.
func (t *Tracker) Routes(limit int) []RouteSummary {
	t.mu.Lock()
	out := make([]RouteSummary, 0, len(t.routes))
	for route, s := range t.routes {
		out = append(out, summarize(route, s))
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].Route < out[j].Route
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (t *Tracker) Overview(top int) Overview {
	routes := t.Routes(0)

	t.mu.Lock()
	ov := Overview{Since: t.since, ByRole: make(map[string]int64, len(t.roles))}
	for role, n := range t.roles {
		ov.ByRole[role] = n
	}
	t.mu.Unlock()

	for _, r := range routes {
		ov.Requests += r.Requests
		ov.ServerErrors += r.ServerErrors
	}
	if ov.Requests > 0 {
		ov.ErrorRate = float64(ov.ServerErrors) / float64(ov.Requests)
	}
	if top > 0 && len(routes) > top {
		routes = routes[:top]
	}
	ov.TopRoutes = routes
	return ov
}

// Middleware records every routed request under its route pattern, so
// /patients/:id is one entry whatever the id. Unmatched paths are skipped.
func Middleware(t *Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				return err
			}

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			t.Record(RequestMetric{
				Method:   c.Request().Method,
				Route:    route,
				Status:   status,
				Duration: time.Since(start),
				Role:     auth.RoleFromContext(c.Request().Context()),
			})
			return err
		}
	}
}

type Handler struct {
	tracker *Tracker
}

func NewHandler(t *Tracker) *Handler {
	return &Handler{tracker: t}
}

// RegisterRoutes mounts the usage endpoints on an admin-only group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/usage", h.Overview)
	admin.GET("/usage/routes", h.Routes)
}

func (h *Handler) Overview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Overview(10))
}

func (h *Handler) Routes(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, h.tracker.Routes(limit))
}
