package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Server.Port != "8080" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if !cfg.TimerEnabled() {
		t.Fatalf("timer should default to enabled")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
log:
  level: debug
redis:
  addr: localhost:6379
storage:
  backend: redis
quiz:
  timerEnabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Redis.Prefix != "lingoquiz:" {
		t.Fatalf("prefix default lost: %q", cfg.Redis.Prefix)
	}
	if cfg.TimerEnabled() {
		t.Fatalf("timer should be disabled")
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.LogLevel())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"redis without addr":   "storage:\n  backend: redis\n",
		"postgres without url": "storage:\n  backend: postgres\n",
		"unknown backend":      "storage:\n  backend: sqlite\n",
		"negative quota":       "storage:\n  quotaBytes: -1\n",
		"history below streak": "quiz:\n  historyLimit: 4\n",
		"negative history":     "quiz:\n  historyLimit: -1\n",
		"malformed yaml":       "server: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadAcceptsHistoryLimitBounds(t *testing.T) {
	for _, body := range []string{"quiz:\n  historyLimit: 0\n", "quiz:\n  historyLimit: 5\n"} {
		if _, err := Load(writeConfig(t, body)); err != nil {
			t.Fatalf("load %q: %v", body, err)
		}
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: %v", got)
	}
	if got := TTLDuration("30s", time.Minute); got != 30*time.Second {
		t.Fatalf("parsed: %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("invalid: %v", got)
	}
}
