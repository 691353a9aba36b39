package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"lingo-quiz/internal/domain"
)

func TestGlobalStatsApplyIsIdempotentForTotals(t *testing.T) {
	r := domain.CompletedResult{ThemeID: 1, QuizID: 2, Score: 2, Total: 3, Accuracy: 67, TotalTime: 30}

	g := domain.GlobalStats{}.Apply(r, 0)
	g = g.Apply(r, 0)

	assert.Equal(t, []string{"1_2"}, g.CompletedQuizzes)
	assert.Equal(t, 3, g.TotalQuestionsAnswered)
	assert.Equal(t, 2, g.TotalCorrectAnswers)
	assert.Equal(t, 60, g.TotalTimePlayed)
	assert.Len(t, g.QuizHistory, 2)
}

func TestGlobalStatsApplyCapsHistoryMostRecentFirst(t *testing.T) {
	var g domain.GlobalStats
	for i := 1; i <= 25; i++ {
		g = g.Apply(domain.CompletedResult{ThemeID: 1, QuizID: i, Total: 1}, domain.DefaultHistoryLimit)
	}
	assert.Len(t, g.QuizHistory, 20)
	assert.Equal(t, 25, g.QuizHistory[0].QuizID)
	assert.Equal(t, 6, g.QuizHistory[19].QuizID)
}

func TestGlobalStatsApplyDoesNotMutateReceiver(t *testing.T) {
	g := domain.GlobalStats{}.Apply(domain.CompletedResult{ThemeID: 1, QuizID: 1, Total: 1}, 0)
	_ = g.Apply(domain.CompletedResult{ThemeID: 1, QuizID: 2, Total: 1}, 0)
	assert.Len(t, g.CompletedQuizzes, 1)
	assert.Len(t, g.QuizHistory, 1)
}

func TestProgressRecordOverwritesLatest(t *testing.T) {
	p := domain.Progress{}
	p.Record(domain.CompletedResult{ThemeID: 1, QuizID: 1, Score: 1, Total: 2, Completed: true})
	p.Record(domain.CompletedResult{ThemeID: 1, QuizID: 1, Score: 2, Total: 2, Completed: true})

	qp, ok := p.Lookup(1, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, qp.Score)

	clone := p.Clone()
	clone.Record(domain.CompletedResult{ThemeID: 1, QuizID: 3})
	_, ok = p.Lookup(1, 3)
	assert.False(t, ok)
}

func TestErrorKindsMatchWithErrorsIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &domain.ResourceError{Kind: domain.ResourceNotFound, Resource: "quiz 1/2"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrInvalidFormat))

	serr := &domain.StateError{Kind: domain.StateAlreadyAnswered, Message: "question 1"}
	assert.True(t, errors.Is(serr, domain.ErrAlreadyAnswered))
	assert.False(t, errors.Is(serr, domain.ErrNoActiveSession))

	perr := &domain.PersistenceError{Kind: domain.PersistenceQuotaExceeded, Key: "globalStats"}
	assert.True(t, errors.Is(perr, domain.ErrQuotaExceeded))
}
