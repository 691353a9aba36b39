package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"lingo-quiz/internal/infra/memory"
	"lingo-quiz/internal/resource"
)

type countingSource struct {
	resource.Source
	mu    sync.Mutex
	calls int
}

func (s *countingSource) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.Source.Get(ctx, path)
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestDocumentCacheCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	src := &countingSource{Source: memory.NewStaticSource(map[string][]byte{
		"data/metadata.json": []byte(`{"themes":[]}`),
	})}
	cache := NewDocumentCache(newClient(mr), src, time.Minute, "lingo:")
	ctx := context.Background()

	got, err := cache.Get(ctx, "data/metadata.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"themes":[]}` {
		t.Fatalf("unexpected document %q", got)
	}
	if src.count() != 1 {
		t.Fatalf("expected source called once, got %d", src.count())
	}

	// Second call should hit cache, source not incremented.
	_, _ = cache.Get(ctx, "data/metadata.json")
	if src.count() != 1 {
		t.Fatalf("expected cache hit, source calls=%d", src.count())
	}

	ttl := mr.TTL("lingo:doc:data/metadata.json")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within 10%% jitter of a minute, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.Get(ctx, "data/metadata.json")
	if src.count() != 2 {
		t.Fatalf("expected reload after expiry, source calls=%d", src.count())
	}
}

func TestDocumentCacheDoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	src := &countingSource{Source: memory.NewStaticSource(nil)}
	cache := NewDocumentCache(newClient(mr), src, time.Minute, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cache.Get(ctx, "missing.json")
		if !errors.Is(err, resource.ErrNoDocument) {
			t.Fatalf("expected ErrNoDocument, got %v", err)
		}
	}
	if src.count() != 2 {
		t.Fatalf("expected every miss to reach the source, got %d", src.count())
	}
	if mr.Exists("doc:missing.json") {
		t.Fatalf("expected missing document not to be cached")
	}
}

func TestDocumentCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	src := &countingSource{Source: memory.NewStaticSource(map[string][]byte{"a.json": []byte("{}")})}
	cache := NewDocumentCache(newClient(mr), src, time.Minute, "")
	mr.Close()

	got, err := cache.Get(context.Background(), "a.json")
	if err != nil || string(got) != "{}" {
		t.Fatalf("expected source fallback, got %q, %v", got, err)
	}
}

func TestDocumentCachePurge(t *testing.T) {
	mr := miniredis.RunT(t)
	src := memory.NewStaticSource(map[string][]byte{"a.json": []byte("{}"), "b.json": []byte("[]")})
	cache := NewDocumentCache(newClient(mr), src, 0, "lingo:")
	ctx := context.Background()
	_, _ = cache.Get(ctx, "a.json")
	_, _ = cache.Get(ctx, "b.json")
	if err := mr.Set("lingo:globalStats", "{}"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 documents purged, got %d", n)
	}
	if !mr.Exists("lingo:globalStats") {
		t.Fatalf("purge must not touch stored progress")
	}
}
