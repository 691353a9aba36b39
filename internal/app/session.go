package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/stats"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// QuizLoader loads quiz content.
type QuizLoader interface {
	GetQuiz(ctx context.Context, themeID, quizID int) (domain.QuizDocument, error)
}

// Session is the state machine of one quiz attempt at a time:
// Idle -> Loading -> InProgress -> Completed, back to Idle on reset.
// Methods are safe for concurrent use and are applied in call order.
type Session struct {
	quizzes QuizLoader
	now     func() time.Time
	newID   func() string

	mu           sync.Mutex
	timerEnabled bool
	// generation is bumped by every Start and Reset; a load that finishes
	// under an older generation is discarded.
	generation uint64

	state    State
	themeID  int
	quizID   int
	quiz     domain.QuizDocument
	current  int
	selected []*domain.Answer
	status   []*domain.QuestionStatus
	score    int

	startTime     *time.Time
	elapsed       int
	questionTimes []time.Duration
	enteredAt     time.Time

	result *domain.CompletedResult
}

func NewSession(quizzes QuizLoader) *Session {
	return NewSessionWithClock(quizzes, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(quizzes QuizLoader, now func() time.Time) *Session {
	return &Session{
		quizzes:      quizzes,
		now:          now,
		newID:        uuid.NewString,
		timerEnabled: true,
	}
}

// SetTimerEnabled controls whether the next Start records a start time.
func (s *Session) SetTimerEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerEnabled = enabled
}

// Start loads a quiz and begins a fresh attempt. On failure the session is
// back in Idle with nothing retained. A Start overtaken by a newer Start or
// Reset returns ErrSuperseded and leaves the newer state alone.
func (s *Session) Start(ctx context.Context, themeID, quizID int) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.clearLocked()
	s.state = StateLoading
	s.themeID, s.quizID = themeID, quizID
	s.mu.Unlock()

	quiz, err := s.quizzes.GetQuiz(ctx, themeID, quizID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return &domain.StateError{Kind: domain.StateSuperseded, Message: fmt.Sprintf("quiz %d/%d", themeID, quizID)}
	}
	if err != nil {
		s.clearLocked()
		s.themeID, s.quizID = 0, 0
		return err
	}
	if len(quiz.Questions) == 0 {
		s.clearLocked()
		s.themeID, s.quizID = 0, 0
		return &domain.ResourceError{Kind: domain.ResourceInvalidFormat, Resource: fmt.Sprintf("quiz %d/%d", themeID, quizID)}
	}

	n := len(quiz.Questions)
	s.quiz = quiz
	s.selected = make([]*domain.Answer, n)
	s.status = make([]*domain.QuestionStatus, n)
	s.questionTimes = make([]time.Duration, n)
	s.current = 0
	s.score = 0

	now := s.now()
	s.enteredAt = now
	if s.timerEnabled {
		s.startTime = &now
	}
	s.state = StateInProgress
	return nil
}

// Restart begins a new attempt at the quiz in progress or just completed.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	themeID, quizID := s.themeID, s.quizID
	known := s.state == StateInProgress || s.state == StateCompleted
	s.mu.Unlock()

	if !known {
		return domain.ErrNoActiveSession
	}
	return s.Start(ctx, themeID, quizID)
}

// Reset drops the attempt and returns to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.state = StateIdle
	s.quiz = domain.QuizDocument{}
	s.current = 0
	s.selected = nil
	s.status = nil
	s.score = 0
	s.startTime = nil
	s.elapsed = 0
	s.questionTimes = nil
	s.enteredAt = time.Time{}
	s.result = nil
}

// SubmitAnswer records the answer to the current question. An answered
// question cannot be answered again.
func (s *Session) SubmitAnswer(a domain.Answer) (domain.QuestionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return domain.QuestionStatus{}, domain.ErrNoActiveSession
	}
	if s.status[s.current] != nil {
		return *s.status[s.current], &domain.StateError{
			Kind:    domain.StateAlreadyAnswered,
			Message: fmt.Sprintf("question %d", s.current),
		}
	}

	correct, err := s.quiz.Questions[s.current].Check(a)
	if err != nil {
		return domain.QuestionStatus{}, err
	}

	answer := a.Clone()
	s.selected[s.current] = &answer
	s.status[s.current] = &domain.QuestionStatus{Correct: correct, UserAnswer: answer.Clone()}
	if correct {
		s.score++
	}
	return *s.status[s.current], nil
}

// SelectAnswer answers a choice question with the option at index.
func (s *Session) SelectAnswer(index int) (domain.QuestionStatus, error) {
	return s.SubmitAnswer(domain.ChoiceAnswer(index))
}

// Next moves forward one question; it stays put on the last one.
func (s *Session) Next() (int, error) {
	return s.move(func(cur int) int { return cur + 1 })
}

// Previous moves back one question; it stays put on the first one.
func (s *Session) Previous() (int, error) {
	return s.move(func(cur int) int { return cur - 1 })
}

// GoTo jumps to index, clamped to the question range.
func (s *Session) GoTo(index int) (int, error) {
	return s.move(func(int) int { return index })
}

func (s *Session) move(target func(cur int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return 0, domain.ErrNoActiveSession
	}
	next := target(s.current)
	if next < 0 {
		next = 0
	}
	if last := len(s.quiz.Questions) - 1; next > last {
		next = last
	}
	if next != s.current {
		s.creditQuestionTimeLocked()
		s.current = next
	}
	return s.current, nil
}

func (s *Session) creditQuestionTimeLocked() {
	now := s.now()
	if d := now.Sub(s.enteredAt); d > 0 {
		s.questionTimes[s.current] += d
	}
	s.enteredAt = now
}

// AllQuestionsAnswered reports whether every question has a status.
func (s *Session) AllQuestionsAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress && s.state != StateCompleted {
		return false
	}
	for _, st := range s.status {
		if st == nil {
			return false
		}
	}
	return true
}

// Complete submits the attempt and returns its immutable result.
func (s *Session) Complete() (domain.CompletedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return domain.CompletedResult{}, domain.ErrNoActiveSession
	}

	s.creditQuestionTimeLocked()
	now := s.now()
	if s.startTime != nil {
		s.elapsed = int(now.Sub(*s.startTime) / time.Second)
	}

	total := len(s.quiz.Questions)
	perQuestion := make([]domain.QuestionStatus, total)
	for i, st := range s.status {
		if st != nil {
			perQuestion[i] = domain.QuestionStatus{Correct: st.Correct, UserAnswer: st.UserAnswer.Clone()}
		}
	}

	result := domain.CompletedResult{
		AttemptID:     s.newID(),
		ThemeID:       s.themeID,
		QuizID:        s.quizID,
		QuizName:      s.quiz.Name,
		Score:         s.score,
		Total:         total,
		Accuracy:      stats.Percent(s.score, total),
		Completed:     true,
		DateCompleted: domain.FormatTime(now),
		TotalTime:     s.elapsed,
		PerQuestion:   perQuestion,
	}
	s.result = &result
	s.state = StateCompleted
	return cloneResult(result), nil
}

// CurrentQuestion returns the question under the cursor and its index.
func (s *Session) CurrentQuestion() (domain.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return domain.Question{}, 0, domain.ErrNoActiveSession
	}
	return s.quiz.Questions[s.current], s.current, nil
}

// SessionSnapshot is a read-only copy of the session state.
type SessionSnapshot struct {
	State            State                    `json:"state"`
	ThemeID          int                      `json:"themeId"`
	QuizID           int                      `json:"quizId"`
	QuizName         string                   `json:"quizName"`
	CurrentIndex     int                      `json:"currentQuestionIndex"`
	Total            int                      `json:"total"`
	SelectedAnswers  []*domain.Answer         `json:"selectedAnswers"`
	QuestionStatus   []*domain.QuestionStatus `json:"questionStatus"`
	QuestionTimes    []int                    `json:"questionTimes"`
	Score            int                      `json:"score"`
	StartTime        *time.Time               `json:"startTime"`
	TotalTimeElapsed int                      `json:"totalTimeElapsed"`
	Result           *domain.CompletedResult  `json:"result,omitempty"`
}

// Snapshot copies the current state; later mutations do not affect it.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		State:            s.state,
		ThemeID:          s.themeID,
		QuizID:           s.quizID,
		QuizName:         s.quiz.Name,
		CurrentIndex:     s.current,
		Total:            len(s.quiz.Questions),
		Score:            s.score,
		TotalTimeElapsed: s.elapsed,
	}
	if s.selected != nil {
		snap.SelectedAnswers = make([]*domain.Answer, len(s.selected))
		for i, a := range s.selected {
			if a != nil {
				c := a.Clone()
				snap.SelectedAnswers[i] = &c
			}
		}
	}
	if s.status != nil {
		snap.QuestionStatus = make([]*domain.QuestionStatus, len(s.status))
		for i, st := range s.status {
			if st != nil {
				c := domain.QuestionStatus{Correct: st.Correct, UserAnswer: st.UserAnswer.Clone()}
				snap.QuestionStatus[i] = &c
			}
		}
	}
	if s.questionTimes != nil {
		snap.QuestionTimes = make([]int, len(s.questionTimes))
		for i, d := range s.questionTimes {
			snap.QuestionTimes[i] = int(d / time.Second)
		}
	}
	if s.startTime != nil {
		t := *s.startTime
		snap.StartTime = &t
	}
	if s.result != nil {
		r := cloneResult(*s.result)
		snap.Result = &r
	}
	return snap
}

func cloneResult(r domain.CompletedResult) domain.CompletedResult {
	out := r
	out.PerQuestion = make([]domain.QuestionStatus, len(r.PerQuestion))
	for i, st := range r.PerQuestion {
		out.PerQuestion[i] = domain.QuestionStatus{Correct: st.Correct, UserAnswer: st.UserAnswer.Clone()}
	}
	return out
}
