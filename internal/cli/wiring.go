package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"lingo-quiz/internal/config"
	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/infra/memory"
	pgstore "lingo-quiz/internal/infra/postgres"
	redisstore "lingo-quiz/internal/infra/redis"
	"lingo-quiz/internal/resource"
	"lingo-quiz/internal/store"
	"lingo-quiz/internal/telemetry"
)

// deps holds the long-lived clients and the components built on them.
type deps struct {
	redis    *redis.Client
	pool     *pgxpool.Pool
	db       *bun.DB
	cache    *redisstore.DocumentCache
	provider *resource.Provider
	repo     *store.Repository

	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		telemetry.MonitorRedis(d.redis)
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)

		d.db = openDB(cfg.Postgres.URL)
		d.closers = append(d.closers, func() { _ = d.db.Close() })
	}

	source, err := contentSource(ctx, cfg, d.pool)
	if err != nil {
		d.Close()
		return nil, err
	}
	if d.redis != nil {
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		d.cache = redisstore.NewDocumentCache(d.redis, source, ttl, cfg.Redis.Prefix)
		source = d.cache
	}
	d.provider = resource.NewProvider(source, resource.Options{
		MetadataPaths:      cfg.Content.MetadataPaths,
		QuizPaths:          cfg.Content.QuizPaths,
		PreloadParallelism: cfg.Content.PreloadParallelism,
	})

	kv, err := newKV(cfg, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.repo = store.NewRepository(kv, cfg.Quiz.HistoryLimit)
	d.repo.SetDefaultPreferences(domain.Preferences{TimerEnabled: cfg.TimerEnabled()})
	return d, nil
}

// contentSource picks where documents come from: a directory, a base URL,
// the Postgres documents table, or the built-in sample content.
func contentSource(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (resource.Source, error) {
	switch {
	case cfg.Content.Dir != "":
		slog.InfoContext(ctx, "content: serving from directory", "dir", cfg.Content.Dir)
		return resource.NewDirSource(os.DirFS(cfg.Content.Dir)), nil
	case cfg.Content.BaseURL != "":
		slog.InfoContext(ctx, "content: serving from url", "baseURL", cfg.Content.BaseURL)
		return resource.NewHTTPSource(cfg.Content.BaseURL, config.TTLDuration(cfg.Content.Timeout, 10*time.Second))
	case pool != nil:
		slog.InfoContext(ctx, "content: serving from postgres")
		return pgstore.NewDocumentSource(pool), nil
	}
	slog.WarnContext(ctx, "content: no source configured, serving sample content")
	return memory.NewContentSource(sampleThemes(), sampleQuizzes())
}

func newKV(cfg config.Config, d *deps) (store.KV, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		if d.redis == nil {
			return nil, fmt.Errorf("storage backend redis requires redis.addr")
		}
		return redisstore.NewKV(d.redis, cfg.Redis.Prefix), nil
	case config.BackendPostgres:
		if d.db == nil {
			return nil, fmt.Errorf("storage backend postgres requires postgres.url")
		}
		return pgstore.NewKV(d.db, cfg.Storage.QuotaBytes), nil
	}
	return memory.NewKV(cfg.Storage.QuotaBytes), nil
}

func openDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}
