package domain

import (
	"fmt"
	"time"
)

// QuizType classifies a quiz in the theme listing.
type QuizType string

const (
	QuizTypeWriting      QuizType = "writing"
	QuizTypeReading      QuizType = "reading"
	QuizTypeConversation QuizType = "conversation"
	QuizTypeListening    QuizType = "listening"
	QuizTypeMixed        QuizType = "mixed"
)

// Theme is a topical grouping of quizzes. Loaded once, read-only afterwards.
type Theme struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Quizzes     []QuizSummary `json:"quizzes"`
}

// QuizSummary is the listing entry of a quiz inside a theme.
type QuizSummary struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Type        QuizType `json:"type"`
	Description string   `json:"description"`
}

// Metadata is the root document listing every theme.
type Metadata struct {
	Themes []Theme `json:"themes"`
}

// QuizDocument is the full question set of one quiz.
type QuizDocument struct {
	ID        int        `json:"id"`
	ThemeID   int        `json:"themeId"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// QuestionStatus is the recorded outcome of an answered question.
type QuestionStatus struct {
	Correct    bool   `json:"correct"`
	UserAnswer Answer `json:"userAnswer"`
}

// CompletedResult is produced once per submitted session and never mutated.
// Field names are part of the export format.
type CompletedResult struct {
	AttemptID     string           `json:"attemptId"`
	ThemeID       int              `json:"themeId"`
	QuizID        int              `json:"quizId"`
	QuizName      string           `json:"quizName"`
	Score         int              `json:"score"`
	Total         int              `json:"total"`
	Accuracy      int              `json:"accuracy"`
	Completed     bool             `json:"completed"`
	DateCompleted string           `json:"dateCompleted"`
	TotalTime     int              `json:"totalTime"`
	PerQuestion   []QuestionStatus `json:"perQuestion"`
}

// Summary drops the per-question detail for the progress store.
func (r CompletedResult) Summary() QuizProgress {
	return QuizProgress{
		Score:         r.Score,
		Total:         r.Total,
		Accuracy:      r.Accuracy,
		Completed:     r.Completed,
		DateCompleted: r.DateCompleted,
		TotalTime:     r.TotalTime,
	}
}

// QuizProgress is the persisted summary of the latest attempt at a quiz.
type QuizProgress struct {
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	Accuracy      int    `json:"accuracy"`
	Completed     bool   `json:"completed"`
	DateCompleted string `json:"dateCompleted"`
	TotalTime     int    `json:"totalTime"`
}

// ThemeProgress holds the per-quiz results of a theme.
type ThemeProgress struct {
	Quizzes map[int]QuizProgress `json:"quizzes"`
}

// Progress maps theme id to its stored quiz results.
type Progress map[int]ThemeProgress

// Record stores the summary of r, replacing any earlier attempt.
func (p Progress) Record(r CompletedResult) {
	tp, ok := p[r.ThemeID]
	if !ok || tp.Quizzes == nil {
		tp = ThemeProgress{Quizzes: make(map[int]QuizProgress)}
	}
	tp.Quizzes[r.QuizID] = r.Summary()
	p[r.ThemeID] = tp
}

// Lookup returns the stored summary for a quiz.
func (p Progress) Lookup(themeID, quizID int) (QuizProgress, bool) {
	tp, ok := p[themeID]
	if !ok {
		return QuizProgress{}, false
	}
	qp, ok := tp.Quizzes[quizID]
	return qp, ok
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for themeID, tp := range p {
		quizzes := make(map[int]QuizProgress, len(tp.Quizzes))
		for quizID, qp := range tp.Quizzes {
			quizzes[quizID] = qp
		}
		out[themeID] = ThemeProgress{Quizzes: quizzes}
	}
	return out
}

// HistoryEntry is one line of the global quiz history.
type HistoryEntry struct {
	ThemeID       int    `json:"themeId"`
	QuizID        int    `json:"quizId"`
	QuizName      string `json:"quizName"`
	Score         int    `json:"score"`
	Total         int    `json:"total"`
	Accuracy      int    `json:"accuracy"`
	DateCompleted string `json:"dateCompleted"`
	TotalTime     int    `json:"totalTime"`
}

// DefaultHistoryLimit caps GlobalStats.QuizHistory.
const DefaultHistoryLimit = 20

// GlobalStats are the cross-theme running totals.
type GlobalStats struct {
	CompletedQuizzes       []string       `json:"completedQuizzes"`
	TotalQuestionsAnswered int            `json:"totalQuestionsAnswered"`
	TotalCorrectAnswers    int            `json:"totalCorrectAnswers"`
	TotalTimePlayed        int            `json:"totalTimePlayed"`
	QuizHistory            []HistoryEntry `json:"quizHistory"`
}

// CompletionKey is the "themeId_quizId" member of the completed set.
func CompletionKey(themeID, quizID int) string {
	return fmt.Sprintf("%d_%d", themeID, quizID)
}

// HasCompleted reports whether the pair is in the completed set.
func (g GlobalStats) HasCompleted(themeID, quizID int) bool {
	key := CompletionKey(themeID, quizID)
	for _, k := range g.CompletedQuizzes {
		if k == key {
			return true
		}
	}
	return false
}

// Apply folds a result into the totals. Question counts are only added the
// first time a quiz enters the completed set; time and history always grow.
func (g GlobalStats) Apply(r CompletedResult, historyLimit int) GlobalStats {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	out := g.Clone()
	if !out.HasCompleted(r.ThemeID, r.QuizID) {
		out.CompletedQuizzes = append(out.CompletedQuizzes, CompletionKey(r.ThemeID, r.QuizID))
		out.TotalQuestionsAnswered += r.Total
		out.TotalCorrectAnswers += r.Score
	}
	out.TotalTimePlayed += r.TotalTime

	entry := HistoryEntry{
		ThemeID:       r.ThemeID,
		QuizID:        r.QuizID,
		QuizName:      r.QuizName,
		Score:         r.Score,
		Total:         r.Total,
		Accuracy:      r.Accuracy,
		DateCompleted: r.DateCompleted,
		TotalTime:     r.TotalTime,
	}
	history := append([]HistoryEntry{entry}, out.QuizHistory...)
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}
	out.QuizHistory = history
	return out
}

// Clone returns a deep copy.
func (g GlobalStats) Clone() GlobalStats {
	out := g
	out.CompletedQuizzes = append([]string(nil), g.CompletedQuizzes...)
	out.QuizHistory = append([]HistoryEntry(nil), g.QuizHistory...)
	return out
}

// Badge is a persistent achievement marker keyed by ID.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	DateEarned  string `json:"dateEarned"`
}

// Preferences are user settings that influence the session.
type Preferences struct {
	TimerEnabled bool `json:"timerEnabled"`
}

// DefaultPreferences is used until the user saves their own.
func DefaultPreferences() Preferences {
	return Preferences{TimerEnabled: true}
}

// ThemeStats is the aggregate view of one theme.
type ThemeStats struct {
	ThemeID          int    `json:"themeId"`
	Name             string `json:"name"`
	Icon             string `json:"icon"`
	TotalQuizzes     int    `json:"totalQuizzes"`
	CompletedQuizzes int    `json:"completedQuizzes"`
	AvgAccuracy      int    `json:"avgAccuracy"`
	CompletionRate   int    `json:"completionRate"`
}

// Finished reports whether every quiz of a non-empty theme is completed.
// CompletionRate is rounded and can read 100 with one quiz left.
func (t ThemeStats) Finished() bool {
	return t.TotalQuizzes > 0 && t.CompletedQuizzes >= t.TotalQuizzes
}

// GlobalSummary is the aggregate view across every theme.
type GlobalSummary struct {
	GlobalCompletion       int `json:"globalCompletion"`
	GlobalAccuracy         int `json:"globalAccuracy"`
	AvgTimePerQuestion     int `json:"avgTimePerQuestion"`
	CompletedQuizzes       int `json:"completedQuizzes"`
	TotalPossibleQuizzes   int `json:"totalPossibleQuizzes"`
	TotalQuestionsAnswered int `json:"totalQuestionsAnswered"`
	TotalCorrectAnswers    int `json:"totalCorrectAnswers"`
	TotalTimePlayed        int `json:"totalTimePlayed"`
	CompletedThemes        int `json:"completedThemes"`
}

// VisualizationData is the output of the statistics aggregator.
type VisualizationData struct {
	Themes        []ThemeStats   `json:"themes"`
	Global        GlobalSummary  `json:"global"`
	BestTheme     *ThemeStats    `json:"bestTheme"`
	WorstTheme    *ThemeStats    `json:"worstTheme"`
	RecentHistory []HistoryEntry `json:"recentHistory"`
}

// Theme returns the stats of a theme by id.
func (v VisualizationData) Theme(themeID int) (ThemeStats, bool) {
	for _, ts := range v.Themes {
		if ts.ThemeID == themeID {
			return ts, true
		}
	}
	return ThemeStats{}, false
}

// FormatTime renders timestamps the way results and badges store them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
