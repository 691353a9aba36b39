package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"lingo-quiz/internal/app"
	"lingo-quiz/internal/badge"
	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/infra/memory"
	pgstore "lingo-quiz/internal/infra/postgres"
	pgmigrations "lingo-quiz/internal/infra/postgres/migrations"
	infraredis "lingo-quiz/internal/infra/redis"
	"lingo-quiz/internal/resource"
	"lingo-quiz/internal/store"
)

func TestQuizCompletionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	documents := pgstore.NewDocumentSource(pool)
	seedContent(t, ctx, documents)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	t.Run("quota rejects completion atomically", func(t *testing.T) {
		repo := store.NewRepository(pgstore.NewKV(db, 16), 0)
		_, _, err := repo.RecordCompletion(ctx, domain.CompletedResult{ThemeID: 1, QuizID: 1, Score: 1, Total: 2, Completed: true})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected quota exceeded, got %v", err)
		}
		if n := countRows(t, ctx, db); n != 0 {
			t.Fatalf("expected no rows after rollback, got %d", n)
		}
	})

	t.Run("start answer complete", func(t *testing.T) {
		cache := infraredis.NewDocumentCache(redisClient, documents, 5*time.Minute, "it:")
		provider := resource.NewProvider(cache, resource.Options{})
		repo := store.NewRepository(pgstore.NewKV(db, 0), 0)
		service := app.NewQuizService(provider, repo, app.WithoutPreload())

		if _, err := service.StartQuiz(ctx, 1, 1); err != nil {
			t.Fatalf("start: %v", err)
		}
		choice := 1
		if _, err := service.SubmitAnswer(ctx, domain.Answer{Choice: &choice}); err != nil {
			t.Fatalf("answer 1: %v", err)
		}
		if _, err := service.Session().Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
		text := " Bonjour "
		if _, err := service.SubmitAnswer(ctx, domain.Answer{Text: &text}); err != nil {
			t.Fatalf("answer 2: %v", err)
		}

		out, err := service.CompleteQuiz(ctx)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if !out.Saved || out.Result.Score != 2 || out.Result.Accuracy != 100 {
			t.Fatalf("unexpected completion %+v", out.Result)
		}
		if !hasBadge(out.NewBadges, badge.FirstCompleted) {
			t.Fatalf("expected first_completed, got %+v", out.NewBadges)
		}
		if out.Stats.Global.GlobalCompletion != 100 {
			t.Fatalf("expected full completion, got %+v", out.Stats.Global)
		}

		// progress, globalStats and userBadges
		if n := countRows(t, ctx, db); n != 3 {
			t.Fatalf("expected 3 kv rows, got %d", n)
		}
		if n := redisClient.Exists(ctx, "it:doc:data/metadata.json").Val(); n != 1 {
			t.Fatalf("metadata was not cached in redis")
		}

		purged, err := cache.Purge(ctx)
		if err != nil || purged < 2 {
			t.Fatalf("purge: %d, %v", purged, err)
		}
	})

	t.Run("full redis reports quota", func(t *testing.T) {
		fullURL, fullCleanup := startRedis(t, ctx, "redis-server", "--maxmemory", "1mb", "--maxmemory-policy", "noeviction")
		defer fullCleanup()
		full, err := redisClientFromURL(fullURL)
		if err != nil {
			t.Fatalf("redis client: %v", err)
		}
		defer full.Close()

		kv := infraredis.NewKV(full, "it:")
		filler := []byte(strings.Repeat("x", 256<<10))
		for i := 0; ; i++ {
			err := kv.Set(ctx, fmt.Sprintf("filler:%d", i), filler)
			if errors.Is(err, domain.ErrQuotaExceeded) {
				break
			}
			if err != nil || i > 64 {
				t.Fatalf("filling redis stopped at %d: %v", i, err)
			}
		}

		repo := store.NewRepository(kv, 0)
		_, _, err = repo.RecordCompletion(ctx, domain.CompletedResult{ThemeID: 1, QuizID: 1, Score: 1, Total: 2, Completed: true})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected quota exceeded, got %v", err)
		}
		if n := full.Exists(ctx, "it:quizProgress", "it:globalStats").Val(); n != 0 {
			t.Fatalf("expected no partial write, found %d keys", n)
		}
	})

	t.Run("redis kv round trip", func(t *testing.T) {
		repo := store.NewRepository(infraredis.NewKV(redisClient, "it:"), 0)
		if err := repo.SavePreferences(ctx, domain.Preferences{TimerEnabled: false}); err != nil {
			t.Fatalf("save preferences: %v", err)
		}
		prefs, err := repo.GetPreferences(ctx)
		if err != nil || prefs.TimerEnabled {
			t.Fatalf("preferences: %+v, %v", prefs, err)
		}
	})
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedContent(t *testing.T, ctx context.Context, documents *pgstore.DocumentSource) {
	t.Helper()
	meta, err := json.Marshal(domain.Metadata{Themes: []domain.Theme{
		{ID: 1, Name: "Greetings", Quizzes: []domain.QuizSummary{{ID: 1, Name: "Hello"}}},
	}})
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	if err := documents.Put(ctx, "data/metadata.json", meta); err != nil {
		t.Fatalf("put metadata: %v", err)
	}

	correct := 1
	quiz, err := json.Marshal(domain.QuizDocument{
		ID: 1, ThemeID: 1, Name: "Hello",
		Questions: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Prompt: "\"Merci\" means", Options: []string{"please", "thank you"}, CorrectIndex: &correct},
			{Type: domain.QuestionFillBlank, Prompt: "Say hello", Template: "___, Marie!", Answer: "bonjour"},
		},
	})
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if err := documents.Put(ctx, memory.QuizPath(1, 1), quiz); err != nil {
		t.Fatalf("put quiz: %v", err)
	}
}

func countRows(t *testing.T, ctx context.Context, db *bun.DB) int {
	t.Helper()
	n, err := db.NewSelect().TableExpr("kv").Count(ctx)
	if err != nil {
		t.Fatalf("count kv rows: %v", err)
	}
	return n
}

func hasBadge(badges []domain.Badge, id string) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context, cmd ...string) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		Cmd:          cmd,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
