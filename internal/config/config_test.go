package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Port)
	}
	if cfg.DataBackend != "sqlite" {
		t.Errorf("default backend = %s, want sqlite", cfg.DataBackend)
	}
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Errorf("default reconcile interval = %v, want 5m", cfg.ReconcileInterval)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQP should be disabled by default, got %s", cfg.AMQPURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Port)
	}
	if cfg.DataBackend != "memory" {
		t.Errorf("backend = %s, want memory", cfg.DataBackend)
	}
	if cfg.ReconcileInterval != 30*time.Second {
		t.Errorf("reconcile interval = %v, want 30s", cfg.ReconcileInterval)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Errorf("rate limit = %d, want 10", cfg.RateLimitPerMinute)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:               "8080",
			SQLiteDBPath:       "./data/test.db",
			DataBackend:        "memory",
			ReconcileInterval:  time.Minute,
			RateLimitPerMinute: 60,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"bad backend", func(c *Config) { c.DataBackend = "postgres" }, "invalid data backend"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "invalid AMQP URL scheme"},
		{"amqp without queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = ""; c.AMQPExchange = "x" }, "queue name cannot be empty"},
		{"reconcile too short", func(c *Config) { c.ReconcileInterval = 100 * time.Millisecond }, "reconcile interval"},
		{"rate limit zero", func(c *Config) { c.RateLimitPerMinute = 0 }, "invalid rate limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
