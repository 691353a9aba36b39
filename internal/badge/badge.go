// Package badge decides which achievements a completed quiz unlocks.
package badge

import (
	"fmt"
	"time"

	"lingo-quiz/internal/domain"
)

const (
	FirstCompleted = "first_completed"
	PerfectScore   = "perfect_score"
	Streak5        = "streak_5"
	HalfThemes     = "half_themes"
	AllThemes      = "all_themes"

	streakLength      = 5
	streakMinAccuracy = 70
	halfThemesCount   = 5
)

// ThemeCompleted is the id of the badge for finishing every quiz of a theme.
func ThemeCompleted(themeID int) string {
	return fmt.Sprintf("theme_%d_completed", themeID)
}

// Input is the state after the result has been persisted.
type Input struct {
	Result domain.CompletedResult
	Stats  domain.VisualizationData
	Global domain.GlobalStats
	Held   []domain.Badge
	Now    time.Time
}

type rule struct {
	id    string
	badge func(in Input) domain.Badge
	check func(in Input) bool
}

func rules(in Input) []rule {
	themeID := in.Result.ThemeID
	return []rule{
		{
			id:    FirstCompleted,
			badge: fixed("First Steps", "Complete your first quiz", "🎯"),
			check: func(in Input) bool { return len(in.Global.CompletedQuizzes) > 0 },
		},
		{
			id:    PerfectScore,
			badge: fixed("Perfect Score", "Answer every question of a quiz correctly", "⭐"),
			check: func(in Input) bool { return in.Result.Accuracy == 100 },
		},
		{
			id:    Streak5,
			badge: fixed("On a Roll", fmt.Sprintf("Score at least %d%% on %d quizzes in a row", streakMinAccuracy, streakLength), "🔥"),
			check: streak,
		},
		{
			id:    ThemeCompleted(themeID),
			badge: themeBadge(themeID),
			check: func(in Input) bool {
				ts, ok := in.Stats.Theme(themeID)
				return ok && ts.Finished()
			},
		},
		{
			id:    HalfThemes,
			badge: fixed("Halfway There", fmt.Sprintf("Complete %d themes", halfThemesCount), "🥈"),
			check: func(in Input) bool { return completedThemes(in.Stats) >= halfThemesCount },
		},
		{
			id:    AllThemes,
			badge: fixed("Completionist", "Complete every theme", "👑"),
			check: func(in Input) bool {
				n := len(in.Stats.Themes)
				return n > 0 && completedThemes(in.Stats) == n
			},
		},
	}
}

// Evaluate returns the badges newly earned by in.Result, in rule order.
// Badges already held are never returned.
func Evaluate(in Input) []domain.Badge {
	held := make(map[string]bool, len(in.Held))
	for _, b := range in.Held {
		held[b.ID] = true
	}

	var earned []domain.Badge
	for _, r := range rules(in) {
		if held[r.id] || !r.check(in) {
			continue
		}
		b := r.badge(in)
		b.ID = r.id
		b.DateEarned = domain.FormatTime(in.Now)
		earned = append(earned, b)
		held[r.id] = true
	}
	return earned
}

func streak(in Input) bool {
	history := in.Global.QuizHistory
	if len(history) < streakLength {
		return false
	}
	for _, h := range history[:streakLength] {
		if h.Accuracy < streakMinAccuracy {
			return false
		}
	}
	return true
}

func completedThemes(v domain.VisualizationData) int {
	n := 0
	for _, ts := range v.Themes {
		if ts.Finished() {
			n++
		}
	}
	return n
}

func fixed(name, description, icon string) func(Input) domain.Badge {
	return func(Input) domain.Badge {
		return domain.Badge{Name: name, Description: description, Icon: icon}
	}
}

func themeBadge(themeID int) func(Input) domain.Badge {
	return func(in Input) domain.Badge {
		name := fmt.Sprintf("Theme %d", themeID)
		icon := "🏆"
		if ts, ok := in.Stats.Theme(themeID); ok {
			if ts.Name != "" {
				name = ts.Name
			}
			if ts.Icon != "" {
				icon = ts.Icon
			}
		}
		return domain.Badge{
			Name:        name + " Master",
			Description: "Complete every quiz of " + name,
			Icon:        icon,
		}
	}
}
