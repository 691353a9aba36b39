package cli

import "lingo-quiz/internal/domain"

func intp(i int) *int { return &i }

// sampleThemes and sampleQuizzes are served when no content source is
// configured, so a fresh checkout can be played immediately.
func sampleThemes() []domain.Theme {
	return []domain.Theme{
		{
			ID: 1, Name: "Everyday French", Icon: "🥐",
			Description: "Greetings, numbers and small talk.",
			Quizzes: []domain.QuizSummary{
				{ID: 1, Name: "Greetings", Type: domain.QuizTypeMixed},
				{ID: 2, Name: "Numbers", Type: domain.QuizTypeWriting},
			},
		},
		{
			ID: 2, Name: "Travel", Icon: "✈️",
			Description: "Getting around and asking for directions.",
			Quizzes: []domain.QuizSummary{
				{ID: 1, Name: "At the station", Type: domain.QuizTypeReading},
			},
		},
	}
}

func sampleQuizzes() []domain.QuizDocument {
	return []domain.QuizDocument{
		{
			ID: 1, ThemeID: 1, Name: "Greetings",
			Questions: []domain.Question{
				{
					Type:         domain.QuestionMultipleChoice,
					Prompt:       "How do you say \"good evening\"?",
					Explanation:  "\"Bonsoir\" is used from late afternoon on.",
					Options:      []string{"Bonjour", "Bonsoir", "Bonne nuit"},
					CorrectIndex: intp(1),
				},
				{
					Type:        domain.QuestionFillBlank,
					Prompt:      "Introduce yourself.",
					Explanation: "\"Je m'appelle\" literally means \"I call myself\".",
					Template:    "Je ___ Marie.",
					Answer:      "m'appelle",
				},
				{
					Type:       domain.QuestionMatching,
					Prompt:     "Match each greeting with its meaning.",
					Pairs:      []domain.Pair{{Left: "Salut", Right: "Hi"}, {Left: "Au revoir", Right: "Goodbye"}, {Left: "Merci", Right: "Thank you"}},
					PairAnswer: []int{0, 1, 2},
				},
			},
		},
		{
			ID: 2, ThemeID: 1, Name: "Numbers",
			Questions: []domain.Question{
				{
					Type:     domain.QuestionFillBlank,
					Prompt:   "Write the number 7.",
					Template: "___",
					Answer:   "sept",
				},
				{
					Type:         domain.QuestionMultipleChoice,
					Prompt:       "Which number is \"vingt\"?",
					Options:      []string{"12", "20", "200"},
					CorrectIndex: intp(1),
				},
			},
		},
		{
			ID: 1, ThemeID: 2, Name: "At the station",
			Questions: []domain.Question{
				{
					Type:         domain.QuestionMultipleChoice,
					Prompt:       "\"Un billet aller-retour\" is a...",
					Explanation:  "\"Aller\" is the outward leg and \"retour\" the way back.",
					Options:      []string{"one-way ticket", "return ticket", "platform ticket"},
					CorrectIndex: intp(1),
				},
				{
					Type:     domain.QuestionFillBlank,
					Prompt:   "Ask where the platform is.",
					Template: "Où est le ___ ?",
					Answer:   "quai",
				},
			},
		},
	}
}
