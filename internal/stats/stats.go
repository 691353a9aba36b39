// Package stats rolls stored quiz results up into per-theme and global
// completion, accuracy and time metrics.
package stats

import (
	"context"
	"log/slog"

	"lingo-quiz/internal/domain"
)

// Compute is a pure function of its inputs: it never mutates them and
// returns deep-equal output for deep-equal input.
func Compute(themes []domain.Theme, progress domain.Progress, global domain.GlobalStats) domain.VisualizationData {
	out := domain.VisualizationData{
		Themes:        make([]domain.ThemeStats, 0, len(themes)),
		RecentHistory: append([]domain.HistoryEntry{}, global.QuizHistory...),
	}

	totalPossible := 0
	completedThemes := 0
	for _, theme := range themes {
		ts := themeStats(theme, progress)
		totalPossible += ts.TotalQuizzes
		if ts.Finished() {
			completedThemes++
		}
		out.Themes = append(out.Themes, ts)
	}

	completed := len(global.CompletedQuizzes)
	globalCompletion := Percent(completed, totalPossible)
	if globalCompletion > 100 {
		globalCompletion = 100
	}
	out.Global = domain.GlobalSummary{
		GlobalCompletion:       globalCompletion,
		GlobalAccuracy:         Percent(global.TotalCorrectAnswers, global.TotalQuestionsAnswered),
		AvgTimePerQuestion:     Ratio(global.TotalTimePlayed, global.TotalQuestionsAnswered),
		CompletedQuizzes:       completed,
		TotalPossibleQuizzes:   totalPossible,
		TotalQuestionsAnswered: global.TotalQuestionsAnswered,
		TotalCorrectAnswers:    global.TotalCorrectAnswers,
		TotalTimePlayed:        global.TotalTimePlayed,
		CompletedThemes:        completedThemes,
	}

	out.BestTheme, out.WorstTheme = bestAndWorst(out.Themes)
	return out
}

func themeStats(theme domain.Theme, progress domain.Progress) domain.ThemeStats {
	ts := domain.ThemeStats{
		ThemeID:      theme.ID,
		Name:         theme.Name,
		Icon:         theme.Icon,
		TotalQuizzes: len(theme.Quizzes),
	}

	correct, total := 0, 0
	for _, q := range theme.Quizzes {
		qp, ok := progress.Lookup(theme.ID, q.ID)
		if !ok || !qp.Completed {
			continue
		}
		ts.CompletedQuizzes++
		correct += qp.Score
		total += qp.Total
	}
	ts.AvgAccuracy = Percent(correct, total)
	ts.CompletionRate = Percent(ts.CompletedQuizzes, ts.TotalQuizzes)
	return ts
}

// bestAndWorst picks among themes with at least one completion. Accuracy
// ties go to the higher (best) or lower (worst) completion rate, then to
// metadata order.
func bestAndWorst(themes []domain.ThemeStats) (*domain.ThemeStats, *domain.ThemeStats) {
	var best, worst *domain.ThemeStats
	for i := range themes {
		ts := themes[i]
		if ts.CompletedQuizzes == 0 {
			continue
		}
		if best == nil ||
			ts.AvgAccuracy > best.AvgAccuracy ||
			(ts.AvgAccuracy == best.AvgAccuracy && ts.CompletionRate > best.CompletionRate) {
			b := ts
			best = &b
		}
		if worst == nil ||
			ts.AvgAccuracy < worst.AvgAccuracy ||
			(ts.AvgAccuracy == worst.AvgAccuracy && ts.CompletionRate < worst.CompletionRate) {
			w := ts
			worst = &w
		}
	}
	return best, worst
}

// Percent is round(100*num/den) with halves rounded up, 0 when den <= 0.
func Percent(num, den int) int {
	return Ratio(100*num, den)
}

// Ratio is round(num/den) with halves rounded up, 0 when den <= 0.
// Inputs are non-negative counts.
func Ratio(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// Loader supplies the aggregator's inputs.
type Loader interface {
	GetProgress(ctx context.Context) (domain.Progress, error)
	GetGlobalStats(ctx context.Context) (domain.GlobalStats, error)
}

// MetadataLoader supplies theme metadata.
type MetadataLoader interface {
	LoadMetadata(ctx context.Context) ([]domain.Theme, error)
}

// Service loads inputs and computes visualization data. Failed loads count
// as zero data so statistics never block quiz-taking.
type Service struct {
	store    Loader
	metadata MetadataLoader
}

func NewService(store Loader, metadata MetadataLoader) *Service {
	return &Service{store: store, metadata: metadata}
}

func (s *Service) Visualization(ctx context.Context) domain.VisualizationData {
	return Compute(s.Inputs(ctx))
}

// Inputs loads themes, progress and global stats, degrading each to empty.
func (s *Service) Inputs(ctx context.Context) ([]domain.Theme, domain.Progress, domain.GlobalStats) {
	themes, err := s.metadata.LoadMetadata(ctx)
	if err != nil {
		slog.WarnContext(ctx, "stats: metadata unavailable", "error", err)
		themes = nil
	}
	progress, err := s.store.GetProgress(ctx)
	if err != nil {
		slog.WarnContext(ctx, "stats: progress unavailable", "error", err)
		progress = domain.Progress{}
	}
	global, err := s.store.GetGlobalStats(ctx)
	if err != nil {
		slog.WarnContext(ctx, "stats: global stats unavailable", "error", err)
		global = domain.GlobalStats{}
	}
	return themes, progress, global
}
