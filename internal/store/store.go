package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"lingo-quiz/internal/domain"
)

// Keys of the persisted documents.
const (
	KeyProgress    = "quizProgress"
	KeyGlobalStats = "globalStats"
	KeyBadges      = "userBadges"
	KeyPreferences = "preferences"
)

// KV is durable key-value storage for JSON documents (in-memory, Redis,
// Postgres). Get returns nil, nil for a missing key. SetMulti applies all
// values or none.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	SetMulti(ctx context.Context, values map[string][]byte) error
}

// Repository gives typed access to progress, global stats, badges and
// preferences on top of a KV backend.
type Repository struct {
	kv           KV
	historyLimit int
	defaults     domain.Preferences

	// mu serializes read-modify-write cycles.
	mu sync.Mutex
}

func NewRepository(kv KV, historyLimit int) *Repository {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &Repository{kv: kv, historyLimit: historyLimit, defaults: domain.DefaultPreferences()}
}

// SetDefaultPreferences changes what GetPreferences returns before any
// preferences have been saved.
func (r *Repository) SetDefaultPreferences(p domain.Preferences) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = p
}

func (r *Repository) GetProgress(ctx context.Context) (domain.Progress, error) {
	p := domain.Progress{}
	if err := r.load(ctx, KeyProgress, &p); err != nil {
		return domain.Progress{}, err
	}
	if p == nil {
		p = domain.Progress{}
	}
	return p, nil
}

// SaveQuizResult records the result summary in the progress store.
func (r *Repository) SaveQuizResult(ctx context.Context, res domain.CompletedResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.GetProgress(ctx)
	if err != nil {
		return err
	}
	p.Record(res)
	return r.save(ctx, KeyProgress, p)
}

func (r *Repository) GetGlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	var g domain.GlobalStats
	if err := r.load(ctx, KeyGlobalStats, &g); err != nil {
		return domain.GlobalStats{}, err
	}
	return g, nil
}

// UpdateGlobalStats folds the result into the global totals.
func (r *Repository) UpdateGlobalStats(ctx context.Context, res domain.CompletedResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.GetGlobalStats(ctx)
	if err != nil {
		return err
	}
	return r.save(ctx, KeyGlobalStats, g.Apply(res, r.historyLimit))
}

// RecordCompletion applies SaveQuizResult and UpdateGlobalStats as one
// write: either both documents change or neither does.
func (r *Repository) RecordCompletion(ctx context.Context, res domain.CompletedResult) (domain.Progress, domain.GlobalStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.GetProgress(ctx)
	if err != nil {
		return nil, domain.GlobalStats{}, err
	}
	g, err := r.GetGlobalStats(ctx)
	if err != nil {
		return nil, domain.GlobalStats{}, err
	}

	p = p.Clone()
	p.Record(res)
	g = g.Apply(res, r.historyLimit)

	progressData, err := encode(KeyProgress, p)
	if err != nil {
		return nil, domain.GlobalStats{}, err
	}
	statsData, err := encode(KeyGlobalStats, g)
	if err != nil {
		return nil, domain.GlobalStats{}, err
	}

	if err := r.kv.SetMulti(ctx, map[string][]byte{
		KeyProgress:    progressData,
		KeyGlobalStats: statsData,
	}); err != nil {
		slog.WarnContext(ctx, "store: completion not saved", "theme", res.ThemeID, "quiz", res.QuizID, "error", err)
		return nil, domain.GlobalStats{}, fmt.Errorf("record completion: %w", err)
	}
	return p, g, nil
}

// GetUserBadges returns held badges in the order they were earned.
func (r *Repository) GetUserBadges(ctx context.Context) ([]domain.Badge, error) {
	var badges []domain.Badge
	if err := r.load(ctx, KeyBadges, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

// AddBadge appends b unless a badge with the same id is already held.
func (r *Repository) AddBadge(ctx context.Context, b domain.Badge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	badges, err := r.GetUserBadges(ctx)
	if err != nil {
		return false, err
	}
	for _, held := range badges {
		if held.ID == b.ID {
			return false, nil
		}
	}
	if err := r.save(ctx, KeyBadges, append(badges, b)); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) GetPreferences(ctx context.Context) (domain.Preferences, error) {
	r.mu.Lock()
	defaults := r.defaults
	r.mu.Unlock()

	prefs := defaults
	if err := r.load(ctx, KeyPreferences, &prefs); err != nil {
		return defaults, err
	}
	return prefs, nil
}

func (r *Repository) SavePreferences(ctx context.Context, prefs domain.Preferences) error {
	return r.save(ctx, KeyPreferences, prefs)
}

// ResetAll forgets progress, statistics and badges. Preferences are kept.
func (r *Repository) ResetAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range []string{KeyProgress, KeyGlobalStats, KeyBadges} {
		if err := r.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	return nil
}

func (r *Repository) load(ctx context.Context, key string, dst any) error {
	data, err := r.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &domain.PersistenceError{Kind: domain.PersistenceSerializationFailure, Key: key, Err: err}
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := encode(key, v)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func encode(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &domain.PersistenceError{Kind: domain.PersistenceSerializationFailure, Key: key, Err: err}
	}
	return data, nil
}
