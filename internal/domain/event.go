package domain

const (
	EventNameQuizCompleted = "quiz.completed"
	EventNameBadgesEarned  = "badges.earned"
)

// EventQuizCompleted is published after a result has been persisted.
type EventQuizCompleted struct {
	Result CompletedResult
}

func (EventQuizCompleted) Name() string { return EventNameQuizCompleted }

// EventBadgesEarned carries the badges newly awarded by one completion.
type EventBadgesEarned struct {
	Badges []Badge
}

func (EventBadgesEarned) Name() string { return EventNameBadgesEarned }

const EventNameAnswerSubmitted = "answer.submitted"

// EventAnswerSubmitted is published for every accepted answer.
type EventAnswerSubmitted struct {
	ThemeID  int
	QuizID   int
	Question int
	Correct  bool
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }
