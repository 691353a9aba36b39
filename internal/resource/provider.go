package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lingo-quiz/internal/domain"
)

// Default candidate paths, tried in order. Quiz paths expand {theme} and {quiz}.
var (
	DefaultMetadataPaths = []string{
		"data/metadata.json",
		"metadata.json",
	}
	DefaultQuizPaths = []string{
		"data/themes/theme-{theme}/quiz_{theme}_{quiz}.json",
		"data/themes/theme-{theme}/quiz_{quiz}.json",
		"themes/theme-{theme}/quiz_{theme}_{quiz}.json",
	}
)

const defaultPreloadParallelism = 4

// CacheScope selects the cache partition dropped by ClearCache.
type CacheScope int

const (
	CacheAll CacheScope = iota
	CacheMetadata
	CacheQuizzes
)

type Options struct {
	MetadataPaths      []string
	QuizPaths          []string
	PreloadParallelism int
}

type quizKey struct {
	themeID int
	quizID  int
}

// Provider resolves theme metadata and quiz documents, caching successful
// loads for its lifetime. Quizzes are cached per (theme, quiz) pair.
type Provider struct {
	source        Source
	metadataPaths []string
	quizPaths     []string
	parallelism   int
	sf            singleflight.Group

	mu       sync.RWMutex
	metadata []domain.Theme
	quizzes  map[quizKey]domain.QuizDocument
}

func NewProvider(source Source, opts Options) *Provider {
	p := &Provider{
		source:        source,
		metadataPaths: opts.MetadataPaths,
		quizPaths:     opts.QuizPaths,
		parallelism:   opts.PreloadParallelism,
		quizzes:       make(map[quizKey]domain.QuizDocument),
	}
	if len(p.metadataPaths) == 0 {
		p.metadataPaths = DefaultMetadataPaths
	}
	if len(p.quizPaths) == 0 {
		p.quizPaths = DefaultQuizPaths
	}
	if p.parallelism <= 0 {
		p.parallelism = defaultPreloadParallelism
	}
	return p
}

// LoadMetadata returns every theme. The returned slice is shared and must be
// treated as read-only.
func (p *Provider) LoadMetadata(ctx context.Context) ([]domain.Theme, error) {
	p.mu.RLock()
	if p.metadata != nil {
		themes := p.metadata
		p.mu.RUnlock()
		return themes, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do("metadata", func() (interface{}, error) {
		p.mu.RLock()
		if p.metadata != nil {
			themes := p.metadata
			p.mu.RUnlock()
			return themes, nil
		}
		p.mu.RUnlock()

		themes, err := p.fetchMetadata(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.metadata = themes
		p.mu.Unlock()
		slog.DebugContext(ctx, "resource: metadata cached", "themes", len(themes))
		return themes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Theme), nil
}

func (p *Provider) fetchMetadata(ctx context.Context) ([]domain.Theme, error) {
	var malformed error
	for _, path := range p.metadataPaths {
		data, err := p.source.Get(ctx, path)
		if err != nil {
			slog.DebugContext(ctx, "resource: metadata candidate failed", "path", path, "error", err)
			continue
		}
		var doc struct {
			Themes *[]domain.Theme `json:"themes"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			malformed = fmt.Errorf("%s: %w", path, err)
			continue
		}
		if doc.Themes == nil {
			malformed = fmt.Errorf("%s: missing themes array", path)
			continue
		}
		themes := *doc.Themes
		if themes == nil {
			themes = []domain.Theme{}
		}
		return themes, nil
	}
	if malformed != nil {
		return nil, &domain.ResourceError{Kind: domain.ResourceInvalidFormat, Resource: "metadata", Err: malformed}
	}
	return nil, &domain.ResourceError{Kind: domain.ResourceNotFound, Resource: "metadata"}
}

// GetQuiz returns the validated question set of a quiz.
func (p *Provider) GetQuiz(ctx context.Context, themeID, quizID int) (domain.QuizDocument, error) {
	key := quizKey{themeID: themeID, quizID: quizID}

	p.mu.RLock()
	if quiz, ok := p.quizzes[key]; ok {
		p.mu.RUnlock()
		return quiz, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(fmt.Sprintf("quiz:%d:%d", themeID, quizID), func() (interface{}, error) {
		p.mu.RLock()
		if quiz, ok := p.quizzes[key]; ok {
			p.mu.RUnlock()
			return quiz, nil
		}
		p.mu.RUnlock()

		quiz, err := p.fetchQuiz(ctx, themeID, quizID)
		if err != nil {
			return domain.QuizDocument{}, err
		}

		p.mu.Lock()
		p.quizzes[key] = quiz
		p.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDocument{}, err
	}
	return result.(domain.QuizDocument), nil
}

func (p *Provider) fetchQuiz(ctx context.Context, themeID, quizID int) (domain.QuizDocument, error) {
	resource := fmt.Sprintf("quiz %d/%d", themeID, quizID)
	var malformed error
	for _, tmpl := range p.quizPaths {
		path := expandQuizPath(tmpl, themeID, quizID)
		data, err := p.source.Get(ctx, path)
		if err != nil {
			slog.DebugContext(ctx, "resource: quiz candidate failed", "path", path, "error", err)
			continue
		}
		quiz, err := decodeQuiz(data, themeID, quizID)
		if err != nil {
			malformed = fmt.Errorf("%s: %w", path, err)
			continue
		}
		return quiz, nil
	}
	if malformed != nil {
		return domain.QuizDocument{}, &domain.ResourceError{Kind: domain.ResourceInvalidFormat, Resource: resource, Err: malformed}
	}
	return domain.QuizDocument{}, &domain.ResourceError{Kind: domain.ResourceNotFound, Resource: resource}
}

func decodeQuiz(data []byte, themeID, quizID int) (domain.QuizDocument, error) {
	var quiz domain.QuizDocument
	if err := json.Unmarshal(data, &quiz); err != nil {
		return quiz, err
	}
	if quiz.ID != quizID {
		return quiz, fmt.Errorf("document id %d does not match quiz %d", quiz.ID, quizID)
	}
	if len(quiz.Questions) == 0 {
		return quiz, errors.New("quiz has no questions")
	}
	var errs []error
	for i, q := range quiz.Questions {
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return quiz, errors.Join(errs...)
	}
	if quiz.ThemeID == 0 {
		quiz.ThemeID = themeID
	}
	return quiz, nil
}

func expandQuizPath(tmpl string, themeID, quizID int) string {
	return strings.NewReplacer(
		"{theme}", strconv.Itoa(themeID),
		"{quiz}", strconv.Itoa(quizID),
	).Replace(tmpl)
}

// GetThemeQuizzes lists the quizzes of one theme.
func (p *Provider) GetThemeQuizzes(ctx context.Context, themeID int) ([]domain.QuizSummary, error) {
	theme, err := p.GetTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}
	return theme.Quizzes, nil
}

// GetTheme returns one theme from the metadata.
func (p *Provider) GetTheme(ctx context.Context, themeID int) (domain.Theme, error) {
	themes, err := p.LoadMetadata(ctx)
	if err != nil {
		return domain.Theme{}, err
	}
	for _, t := range themes {
		if t.ID == themeID {
			return t, nil
		}
	}
	return domain.Theme{}, &domain.ResourceError{Kind: domain.ResourceNotFound, Resource: fmt.Sprintf("theme %d", themeID)}
}

// PreloadThemeQuizzes warms the cache with every quiz of a theme. Failures
// are logged and dropped; it only ever adds cache entries.
func (p *Provider) PreloadThemeQuizzes(ctx context.Context, themeID int) {
	quizzes, err := p.GetThemeQuizzes(ctx, themeID)
	if err != nil {
		slog.WarnContext(ctx, "resource: preload skipped", "theme", themeID, "error", err)
		return
	}

	var eg errgroup.Group
	eg.SetLimit(p.parallelism)
	for _, q := range quizzes {
		quizID := q.ID
		eg.Go(func() error {
			if _, err := p.GetQuiz(ctx, themeID, quizID); err != nil {
				slog.WarnContext(ctx, "resource: preload quiz failed", "theme", themeID, "quiz", quizID, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// ClearCache drops the named cache partition.
func (p *Provider) ClearCache(scope CacheScope) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if scope == CacheAll || scope == CacheMetadata {
		p.metadata = nil
	}
	if scope == CacheAll || scope == CacheQuizzes {
		p.quizzes = make(map[quizKey]domain.QuizDocument)
	}
}
