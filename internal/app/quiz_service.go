package app

import (
	"context"
	"log/slog"
	"time"

	"lingo-quiz/internal/badge"
	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/event"
	"lingo-quiz/internal/stats"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	QuizLoader
	LoadMetadata(ctx context.Context) ([]domain.Theme, error)
	PreloadThemeQuizzes(ctx context.Context, themeID int)
}

// ProgressRepository abstracts how results, badges and preferences are
// stored (in-memory, Redis, Postgres).
type ProgressRepository interface {
	RecordCompletion(ctx context.Context, res domain.CompletedResult) (domain.Progress, domain.GlobalStats, error)
	GetUserBadges(ctx context.Context) ([]domain.Badge, error)
	AddBadge(ctx context.Context, b domain.Badge) (bool, error)
	GetPreferences(ctx context.Context) (domain.Preferences, error)
}

// Publisher receives domain events. *event.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// Completion is everything produced by submitting a quiz.
type Completion struct {
	Result    domain.CompletedResult   `json:"result"`
	NewBadges []domain.Badge           `json:"newBadges"`
	Stats     domain.VisualizationData `json:"stats"`
	// Saved is false when the result could not be persisted; the result is
	// still shown but statistics and badges are left untouched.
	Saved bool `json:"saved"`
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	quizzes QuizRepository
	store   ProgressRepository
	events  Publisher
	now     func() time.Time
	preload bool

	session *Session
}

type Option func(*QuizService)

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithPublisher sends answer, completion and badge events to p.
func WithPublisher(p Publisher) Option {
	return func(s *QuizService) { s.events = p }
}

// WithoutPreload disables warming the theme's other quizzes on start.
func WithoutPreload() Option {
	return func(s *QuizService) { s.preload = false }
}

func NewQuizService(quizzes QuizRepository, store ProgressRepository, opts ...Option) *QuizService {
	s := &QuizService{
		quizzes: quizzes,
		store:   store,
		now:     time.Now,
		preload: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.session = NewSessionWithClock(quizzes, s.now)
	return s
}

// Session is the active quiz session.
func (s *QuizService) Session() *Session {
	return s.session
}

// StartQuiz begins an attempt, honouring the stored timer preference, and
// warms the rest of the theme in the background.
func (s *QuizService) StartQuiz(ctx context.Context, themeID, quizID int) (SessionSnapshot, error) {
	prefs, err := s.store.GetPreferences(ctx)
	if err != nil {
		slog.WarnContext(ctx, "quiz: preferences unavailable, using defaults", "error", err)
		prefs = domain.DefaultPreferences()
	}
	s.session.SetTimerEnabled(prefs.TimerEnabled)

	if err := s.session.Start(ctx, themeID, quizID); err != nil {
		slog.WarnContext(ctx, "quiz: start failed", "theme", themeID, "quiz", quizID, "error", err)
		return s.session.Snapshot(), err
	}
	slog.InfoContext(ctx, "quiz: started", "theme", themeID, "quiz", quizID)

	if s.preload {
		go s.quizzes.PreloadThemeQuizzes(context.WithoutCancel(ctx), themeID)
	}
	return s.session.Snapshot(), nil
}

// RestartQuiz begins a new attempt at the current quiz.
func (s *QuizService) RestartQuiz(ctx context.Context) (SessionSnapshot, error) {
	if err := s.session.Restart(ctx); err != nil {
		return s.session.Snapshot(), err
	}
	return s.session.Snapshot(), nil
}

// SubmitAnswer answers the current question of the active session.
func (s *QuizService) SubmitAnswer(ctx context.Context, a domain.Answer) (domain.QuestionStatus, error) {
	st, err := s.session.SubmitAnswer(a)
	if err != nil {
		return st, err
	}
	snap := s.session.Snapshot()
	s.publish(ctx, domain.EventAnswerSubmitted{
		ThemeID:  snap.ThemeID,
		QuizID:   snap.QuizID,
		Question: snap.CurrentIndex,
		Correct:  st.Correct,
	})
	return st, nil
}

// CompleteQuiz submits the active attempt, persists it, recomputes
// statistics and awards any newly earned badges.
func (s *QuizService) CompleteQuiz(ctx context.Context) (Completion, error) {
	result, err := s.session.Complete()
	if err != nil {
		return Completion{}, err
	}
	out := Completion{Result: result}

	progress, global, err := s.store.RecordCompletion(ctx, result)
	if err != nil {
		slog.ErrorContext(ctx, "quiz: result not saved", "theme", result.ThemeID, "quiz", result.QuizID, "error", err)
		return out, err
	}
	out.Saved = true
	slog.InfoContext(ctx, "quiz: completed",
		"theme", result.ThemeID, "quiz", result.QuizID,
		"score", result.Score, "total", result.Total, "accuracy", result.Accuracy)
	s.publish(ctx, domain.EventQuizCompleted{Result: result})

	themes, err := s.quizzes.LoadMetadata(ctx)
	if err != nil {
		slog.WarnContext(ctx, "quiz: metadata unavailable for stats", "error", err)
		themes = nil
	}
	out.Stats = stats.Compute(themes, progress, global)

	held, err := s.store.GetUserBadges(ctx)
	if err != nil {
		slog.WarnContext(ctx, "quiz: badges unavailable", "error", err)
		held = nil
	}

	candidates := badge.Evaluate(badge.Input{
		Result: result,
		Stats:  out.Stats,
		Global: global,
		Held:   held,
		Now:    s.now(),
	})
	out.NewBadges = make([]domain.Badge, 0, len(candidates))
	for _, b := range candidates {
		added, err := s.store.AddBadge(ctx, b)
		if err != nil {
			slog.WarnContext(ctx, "quiz: badge not saved", "badge", b.ID, "error", err)
			continue
		}
		if added {
			out.NewBadges = append(out.NewBadges, b)
		}
	}
	if len(out.NewBadges) > 0 {
		s.publish(ctx, domain.EventBadgesEarned{Badges: out.NewBadges})
	}
	return out, nil
}

func (s *QuizService) publish(ctx context.Context, e event.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, e)
}
