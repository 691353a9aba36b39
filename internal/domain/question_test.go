package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingo-quiz/internal/domain"
)

func intp(i int) *int { return &i }

func TestQuestionUnmarshalAnswerByType(t *testing.T) {
	raw := `[
		{"type":"fill-blank","prompt":"p","template":"Je ___ faim","answer":"  AI "},
		{"type":"matching","prompt":"p","pairs":[{"left":"a","right":"1"},{"left":"b","right":"2"}],"answer":[1,0]},
		{"type":"listening","prompt":"p","audioFile":"a.mp3","options":["x","y"],"correctIndex":1}
	]`
	var qs []domain.Question
	require.NoError(t, json.Unmarshal([]byte(raw), &qs))

	assert.Equal(t, "  AI ", qs[0].Answer)
	assert.Equal(t, []int{1, 0}, qs[1].PairAnswer)
	assert.Equal(t, domain.ShapeChoice, qs[2].Shape())
	for _, q := range qs {
		assert.NoError(t, q.Validate())
	}

	out, err := json.Marshal(qs[1])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"answer":[1,0]`)
}

func TestQuestionValidate(t *testing.T) {
	tests := map[string]struct {
		q       domain.Question
		wantErr bool
	}{
		"choice ok": {
			q: domain.Question{Type: domain.QuestionMultipleChoice, Options: []string{"a", "b"}, CorrectIndex: intp(1)},
		},
		"choice with one option": {
			q:       domain.Question{Type: domain.QuestionMultipleChoice, Options: []string{"a"}, CorrectIndex: intp(0)},
			wantErr: true,
		},
		"choice index out of range": {
			q:       domain.Question{Type: domain.QuestionMultipleChoice, Options: []string{"a", "b"}, CorrectIndex: intp(2)},
			wantErr: true,
		},
		"fill-blank two blanks": {
			q:       domain.Question{Type: domain.QuestionFillBlank, Template: "___ and ___", Answer: "x"},
			wantErr: true,
		},
		"fill-blank without blank": {
			q:       domain.Question{Type: domain.QuestionFillBlank, Template: "nothing", Answer: "x"},
			wantErr: true,
		},
		"matching not a permutation": {
			q: domain.Question{Type: domain.QuestionMatching,
				Pairs: []domain.Pair{{Left: "a", Right: "b"}, {Left: "c", Right: "d"}}, PairAnswer: []int{0, 0}},
			wantErr: true,
		},
		"listening without audio": {
			q:       domain.Question{Type: domain.QuestionListening, Options: []string{"a", "b"}, CorrectIndex: intp(0)},
			wantErr: true,
		},
		"listening blank sub-kind": {
			q: domain.Question{Type: domain.QuestionListening, AudioFile: "x.mp3", Template: "I ____ it", Answer: "hear"},
		},
		"unknown type": {
			q:       domain.Question{Type: "essay"},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuestionCheck(t *testing.T) {
	choice := domain.Question{Type: domain.QuestionMultipleChoice, Options: []string{"a", "b", "c"}, CorrectIndex: intp(2)}
	blank := domain.Question{Type: domain.QuestionFillBlank, Template: "Bonjour ___", Answer: "Mon  Ami"}
	matching := domain.Question{Type: domain.QuestionMatching,
		Pairs:      []domain.Pair{{Left: "a", Right: "1"}, {Left: "b", Right: "2"}, {Left: "c", Right: "3"}},
		PairAnswer: []int{2, 0, 1}}

	tests := map[string]struct {
		q           domain.Question
		a           domain.Answer
		wantCorrect bool
		wantErr     error
	}{
		"choice correct":         {q: choice, a: domain.ChoiceAnswer(2), wantCorrect: true},
		"choice wrong":           {q: choice, a: domain.ChoiceAnswer(0)},
		"choice out of range":    {q: choice, a: domain.ChoiceAnswer(3), wantErr: domain.ErrInvalidAnswer},
		"choice given text":      {q: choice, a: domain.TextAnswer("c"), wantErr: domain.ErrInvalidAnswer},
		"blank normalized":       {q: blank, a: domain.TextAnswer("  mon ami\t"), wantCorrect: true},
		"blank wrong":            {q: blank, a: domain.TextAnswer("mon amie")},
		"blank whitespace only":  {q: blank, a: domain.TextAnswer("   "), wantErr: domain.ErrInvalidAnswer},
		"matching correct":       {q: matching, a: domain.PairsAnswer([]int{2, 0, 1}), wantCorrect: true},
		"matching wrong":         {q: matching, a: domain.PairsAnswer([]int{0, 1, 2})},
		"matching short":         {q: matching, a: domain.PairsAnswer([]int{2, 0}), wantErr: domain.ErrInvalidAnswer},
		"matching out of range":  {q: matching, a: domain.PairsAnswer([]int{2, 0, 7}), wantErr: domain.ErrInvalidAnswer},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			correct, err := tt.q.Check(tt.a)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCorrect, correct)
		})
	}
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", domain.NormalizeText("  A \n b\t\tC "))
	assert.Equal(t, "", domain.NormalizeText(" \t "))
}
