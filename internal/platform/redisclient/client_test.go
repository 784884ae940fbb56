package redisclient

import (
	"context"
	"os"
	"testing"
)

func TestNew_BadURL(t *testing.T) {
	if _, err := New(context.Background(), "http://not-redis"); err == nil {
		t.Error("expected error for non-redis url")
	}
}

func TestNew_Live(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	rdb, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
	if err := Ping(rdb)(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
