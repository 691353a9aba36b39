package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends for progress, statistics and badges.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Content struct {
		// BaseURL serves content over HTTP; Dir serves it from disk. With
		// neither set, content comes from Postgres or the built-in sample.
		BaseURL            string   `yaml:"baseURL"`
		Dir                string   `yaml:"dir"`
		MetadataPaths      []string `yaml:"metadataPaths"`
		QuizPaths          []string `yaml:"quizPaths"`
		PreloadParallelism int      `yaml:"preloadParallelism"`
		Timeout            string   `yaml:"timeout"`
	} `yaml:"content"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Storage struct {
		Backend    string `yaml:"backend"`
		QuotaBytes int    `yaml:"quotaBytes"`
	} `yaml:"storage"`
	Quiz struct {
		TimerEnabled *bool `yaml:"timerEnabled"`
		HistoryLimit int   `yaml:"historyLimit"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Content.PreloadParallelism = 4
	cfg.Content.Timeout = "10s"
	cfg.Redis.TTL = "10m"
	cfg.Redis.Prefix = "lingoquiz:"
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.QuotaBytes = 5 << 20
	cfg.Quiz.HistoryLimit = 20
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: file not found, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

const minHistoryLimit = 5

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("storage backend redis requires redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("storage backend postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage.quotaBytes must not be negative")
	}
	// The streak badge reads the last five history entries.
	if c.Quiz.HistoryLimit < 0 || (c.Quiz.HistoryLimit > 0 && c.Quiz.HistoryLimit < minHistoryLimit) {
		return fmt.Errorf("quiz.historyLimit must be 0 or at least %d, got %d", minHistoryLimit, c.Quiz.HistoryLimit)
	}
	return nil
}

// TimerEnabled is the default timer preference; true unless disabled.
func (c Config) TimerEnabled() bool {
	return c.Quiz.TimerEnabled == nil || *c.Quiz.TimerEnabled
}

// LogLevel maps log.level to a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
