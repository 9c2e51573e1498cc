package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFromYAML(t, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Driver != "memory" {
		t.Errorf("queue driver = %q, want memory", cfg.Queue.Driver)
	}
	if cfg.Queue.VisibilityTimeout != 10*time.Minute {
		t.Errorf("visibility timeout = %v, want 10m", cfg.Queue.VisibilityTimeout)
	}
	if cfg.Executor.MaxRetries != 2 {
		t.Errorf("max retries = %d, want 2", cfg.Executor.MaxRetries)
	}
}

func TestLoadQueueOverrides(t *testing.T) {
	cfg, err := loadFromYAML(t, `
queue:
  driver: redis
  redis_addr: redis:6380
  visibility_timeout: 90s
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Driver != "redis" {
		t.Errorf("queue driver = %q, want redis", cfg.Queue.Driver)
	}
	if cfg.Queue.RedisAddr != "redis:6380" {
		t.Errorf("redis addr = %q", cfg.Queue.RedisAddr)
	}
	if cfg.Queue.VisibilityTimeout != 90*time.Second {
		t.Errorf("visibility timeout = %v, want 90s", cfg.Queue.VisibilityTimeout)
	}
}

func loadFromYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return Load(path)
}
