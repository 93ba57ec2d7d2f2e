package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "3000" {
		t.Fatalf("want default port 3000, got %s", cfg.App.Port)
	}
	if cfg.Lifecycle.LockBackend != "memory" {
		t.Fatalf("want memory lock backend, got %s", cfg.Lifecycle.LockBackend)
	}
	if cfg.Lifecycle.CommitOnRenderFailure {
		t.Fatalf("commit on render failure must default to false")
	}
	if cfg.Storage.PublicPath != "/public/certificates" {
		t.Fatalf("unexpected public path %s", cfg.Storage.PublicPath)
	}
	if len(cfg.Notification.KafkaBrokers) != 0 {
		t.Fatalf("kafka should be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ASSISTANT_TIMEOUT_SECONDS", "3")
	t.Setenv("LIFECYCLE_COMMIT_ON_RENDER_FAILURE", "true")
	t.Setenv("REDIS_ADDR", "r1:6379,r2:6379")
	t.Setenv("POSTGRES_CONNECT_ATTEMPTS", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lifecycle.LockBackend != "redis" {
		t.Fatalf("want redis, got %s", cfg.Lifecycle.LockBackend)
	}
	if got := cfg.Notification.KafkaBrokers; len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if cfg.Assistant.Timeout() != 3*time.Second {
		t.Fatalf("unexpected assistant timeout %s", cfg.Assistant.Timeout())
	}
	if !cfg.Lifecycle.CommitOnRenderFailure {
		t.Fatalf("override not applied")
	}
	if got := cfg.Redis.Addrs; len(got) != 2 || got[1] != "r2:6379" {
		t.Fatalf("unexpected redis addrs %v", got)
	}
	if cfg.Postgres.ConnectAttempts != 9 {
		t.Fatalf("unexpected connect attempts %d", cfg.Postgres.ConnectAttempts)
	}
}

func TestLoadRejectsUnknownLockBackend(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown lock backend")
	}
}
