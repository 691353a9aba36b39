package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/resource"
)

// StaticSource serves documents from an in-memory map keyed by path (useful
// for tests/demos).
type StaticSource struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewStaticSource(docs map[string][]byte) *StaticSource {
	if docs == nil {
		docs = make(map[string][]byte)
	}
	return &StaticSource{docs: docs}
}

// NewContentSource lays out metadata and quizzes under the default
// candidate paths.
func NewContentSource(themes []domain.Theme, quizzes []domain.QuizDocument) (*StaticSource, error) {
	s := NewStaticSource(nil)
	meta, err := json.Marshal(domain.Metadata{Themes: themes})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	s.Put("data/metadata.json", meta)
	for _, q := range quizzes {
		data, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshal quiz %d: %w", q.ID, err)
		}
		s.Put(QuizPath(q.ThemeID, q.ID), data)
	}
	return s, nil
}

// QuizPath is the first default candidate path of a quiz.
func QuizPath(themeID, quizID int) string {
	return fmt.Sprintf("data/themes/theme-%d/quiz_%d_%d.json", themeID, themeID, quizID)
}

// Put stores or replaces a document.
func (s *StaticSource) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = data
}

func (s *StaticSource) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, resource.ErrNoDocument)
	}
	return data, nil
}
