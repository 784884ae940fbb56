package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check is a named dependency probe (database, redis, ...).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler pings the pool and every extra check. It answers 503 when
// any dependency is down.
func HealthHandler(pool *pgxpool.Pool, extra ...Check) echo.HandlerFunc {
	checks := append([]Check{{Name: "database", Ping: pool.Ping}}, extra...)
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status, results := runChecks(ctx, checks)
		return c.JSON(status, map[string]interface{}{
			"status": statusWord(status),
			"checks": results,
			"pool":   GetPoolStats(pool),
		})
	}
}

func runChecks(ctx context.Context, checks []Check) (int, map[string]checkResult) {
	code := http.StatusOK
	results := make(map[string]checkResult, len(checks))
	for _, chk := range checks {
		if err := chk.Ping(ctx); err != nil {
			code = http.StatusServiceUnavailable
			results[chk.Name] = checkResult{Status: "unhealthy", Error: err.Error()}
			continue
		}
		results[chk.Name] = checkResult{Status: "healthy"}
	}
	return code, results
}

func statusWord(code int) string {
	if code == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}
