package relay

import (
	"context"
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	t.Setenv("CONTRIBUTOR_BILLING_REDIS_ADDR", "redis:6380")
	t.Setenv("CONTRIBUTOR_BILLING_RELAY_BATCH_SIZE", "16")

	cfg, err := ParseConfig(fs, []string{"-stream", "billing", "-poll-interval", "5s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Fatalf("redis addr = %q, want %q", cfg.RedisAddr, "redis:6380")
	}
	if cfg.BatchSize != 16 {
		t.Fatalf("batch size = %d, want 16", cfg.BatchSize)
	}
	if cfg.Stream != "billing" {
		t.Fatalf("stream = %q, want %q", cfg.Stream, "billing")
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.DBPath != "data/documents.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestRunValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"db path", Config{RedisAddr: "redis:6379", BatchSize: 1}},
		{"redis addr", Config{DBPath: "x.db", BatchSize: 1}},
		{"batch size", Config{DBPath: "x.db", RedisAddr: "redis:6379"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Run(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
