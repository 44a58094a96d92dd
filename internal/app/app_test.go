package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"redwhite/dashboard-bff/internal/config"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		Auth: config.AuthConfig{
			BootstrapEmail:    "admin@example.com",
			BootstrapPassword: "admin123",
			SessionTTL:        time.Hour,
			SessionStateFile:  filepath.Join(dir, "sessions.json"),
			UserStateFile:     filepath.Join(dir, "users.json"),
		},
		Cookie:               config.CookieConfig{Name: "jsessionid", DefaultMaxAge: 24 * time.Hour},
		CSRFSecret:           "secret",
		SessionCacheTTL:      30 * time.Second,
		LoginRateLimit:       config.RateLimitConfig{PerSecond: 1, Burst: 5},
		Gate:                 config.GateConfig{LoginPath: "/", ProtectedPrefixes: []string{"/inicio"}},
		SSE:                  config.SSEConfig{PingInterval: 20 * time.Second},
		ExperimentsStateFile: filepath.Join(dir, "experiments.json"),
	}
}

func TestNewWithLocalAuthority(t *testing.T) {
	a, err := New(context.Background(), localConfig(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.close()

	if a.server == nil {
		t.Fatalf("expected http server to be built")
	}
	if a.memCache == nil {
		t.Fatalf("expected in-memory session cache without redis")
	}
	if a.bridge != nil {
		t.Fatalf("no event bridge expected without redis")
	}
}

func TestNewWithUpstreamAuthority(t *testing.T) {
	cfg := localConfig(t)
	cfg.Upstream = config.UpstreamConfig{URL: "http://127.0.0.1:1/webhook", Timeout: time.Second, JWTAlg: "HS256", JWTSecret: "k"}
	cfg.SessionCacheTTL = 0

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.close()
	if a.memCache != nil {
		t.Fatalf("session cache must be off when TTL is zero")
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := localConfig(t)
	cfg.RedisURL = "not a url"

	_, err := New(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis url error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), localConfig(t))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
