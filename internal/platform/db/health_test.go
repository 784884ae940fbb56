package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestRunChecks_AllHealthy(t *testing.T) {
	checks := []Check{
		{Name: "database", Ping: func(context.Context) error { return nil }},
		{Name: "redis", Ping: func(context.Context) error { return nil }},
	}
	code, results := runChecks(context.Background(), checks)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if results["redis"].Status != "healthy" {
		t.Errorf("expected redis healthy, got %+v", results["redis"])
	}
}

func TestRunChecks_OneDown(t *testing.T) {
	checks := []Check{
		{Name: "database", Ping: func(context.Context) error { return nil }},
		{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	}
	code, results := runChecks(context.Background(), checks)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if results["redis"].Error != "connection refused" {
		t.Errorf("expected error to be reported, got %+v", results["redis"])
	}
	if results["database"].Status != "healthy" {
		t.Errorf("expected database healthy, got %+v", results["database"])
	}
	if statusWord(code) != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", statusWord(code))
	}
}

func TestPoolStats_JSONTags(t *testing.T) {
	stats := &PoolStats{TotalConns: 10, IdleConns: 5, MaxConns: 20, AcquireDuration: "1.5s"}
	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in JSON", key)
		}
	}
}
