package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// QuestionType discriminates the Question variant.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionFillBlank      QuestionType = "fill-blank"
	QuestionMatching       QuestionType = "matching"
	QuestionListening      QuestionType = "listening"
)

// blankMarker is a run of at least three underscores in a fill-blank template.
var blankMarker = regexp.MustCompile(`_{3,}`)

// Pair is one row of a matching question.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a tagged variant over the four question kinds. Only the fields
// of its Type are meaningful. Listening questions carry either Options and
// CorrectIndex or Template and Answer.
type Question struct {
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Explanation  string       `json:"explanation,omitempty"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex *int         `json:"correctIndex,omitempty"`
	Template     string       `json:"template,omitempty"`
	Answer       string       `json:"-"`
	Pairs        []Pair       `json:"pairs,omitempty"`
	PairAnswer   []int        `json:"-"`
	AudioFile    string       `json:"audioFile,omitempty"`
}

// questionJSON is the wire form; "answer" is a string or an int array
// depending on the type.
type questionJSON struct {
	Type         QuestionType    `json:"type"`
	Prompt       string          `json:"prompt"`
	Explanation  string          `json:"explanation,omitempty"`
	Options      []string        `json:"options,omitempty"`
	CorrectIndex *int            `json:"correctIndex,omitempty"`
	Template     string          `json:"template,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Pairs        []Pair          `json:"pairs,omitempty"`
	AudioFile    string          `json:"audioFile,omitempty"`
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var raw questionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question{
		Type:         raw.Type,
		Prompt:       raw.Prompt,
		Explanation:  raw.Explanation,
		Options:      raw.Options,
		CorrectIndex: raw.CorrectIndex,
		Template:     raw.Template,
		Pairs:        raw.Pairs,
		AudioFile:    raw.AudioFile,
	}
	if len(raw.Answer) == 0 || string(raw.Answer) == "null" {
		return nil
	}
	if raw.Type == QuestionMatching {
		if err := json.Unmarshal(raw.Answer, &q.PairAnswer); err != nil {
			return fmt.Errorf("matching answer: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(raw.Answer, &q.Answer); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	return nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	raw := questionJSON{
		Type:         q.Type,
		Prompt:       q.Prompt,
		Explanation:  q.Explanation,
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		Template:     q.Template,
		Pairs:        q.Pairs,
		AudioFile:    q.AudioFile,
	}
	var (
		answer []byte
		err    error
	)
	switch {
	case q.Type == QuestionMatching && q.PairAnswer != nil:
		answer, err = json.Marshal(q.PairAnswer)
	case q.Answer != "":
		answer, err = json.Marshal(q.Answer)
	}
	if err != nil {
		return nil, err
	}
	raw.Answer = answer
	return json.Marshal(raw)
}

// Shape is how a question is answered.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeChoice
	ShapeText
	ShapePairs
)

// Shape resolves the answer shape, including the listening sub-kind.
func (q Question) Shape() Shape {
	switch q.Type {
	case QuestionMultipleChoice:
		return ShapeChoice
	case QuestionFillBlank:
		return ShapeText
	case QuestionMatching:
		return ShapePairs
	case QuestionListening:
		if len(q.Options) > 0 {
			return ShapeChoice
		}
		if q.Template != "" {
			return ShapeText
		}
	}
	return ShapeUnknown
}

// Validate checks the structural rules of the question's kind.
func (q Question) Validate() error {
	if q.Type == QuestionListening && q.AudioFile == "" {
		return fmt.Errorf("listening question without audioFile")
	}
	switch q.Shape() {
	case ShapeChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%s question needs at least 2 options, got %d", q.Type, len(q.Options))
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%s question has no valid correctIndex", q.Type)
		}
	case ShapeText:
		if n := len(blankMarker.FindAllStringIndex(q.Template, -1)); n != 1 {
			return fmt.Errorf("%s template must contain exactly one blank, got %d", q.Type, n)
		}
		if NormalizeText(q.Answer) == "" {
			return fmt.Errorf("%s question has an empty answer", q.Type)
		}
	case ShapePairs:
		if len(q.Pairs) == 0 {
			return fmt.Errorf("matching question without pairs")
		}
		if !isPermutation(q.PairAnswer, len(q.Pairs)) {
			return fmt.Errorf("matching answer is not a permutation of %d pairs", len(q.Pairs))
		}
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}

// Check validates a against the question and reports whether it is correct.
// A malformed answer yields an InvalidAnswer StateError.
func (q Question) Check(a Answer) (bool, error) {
	switch q.Shape() {
	case ShapeChoice:
		if a.Choice == nil {
			return false, invalidAnswer("choice answer required")
		}
		if *a.Choice < 0 || *a.Choice >= len(q.Options) {
			return false, invalidAnswer(fmt.Sprintf("choice %d out of range [0,%d)", *a.Choice, len(q.Options)))
		}
		return q.CorrectIndex != nil && *a.Choice == *q.CorrectIndex, nil
	case ShapeText:
		if a.Text == nil || NormalizeText(*a.Text) == "" {
			return false, invalidAnswer("non-empty text answer required")
		}
		return NormalizeText(*a.Text) == NormalizeText(q.Answer), nil
	case ShapePairs:
		if len(a.Pairs) != len(q.Pairs) {
			return false, invalidAnswer(fmt.Sprintf("expected %d pair indexes, got %d", len(q.Pairs), len(a.Pairs)))
		}
		for _, idx := range a.Pairs {
			if idx < 0 || idx >= len(q.Pairs) {
				return false, invalidAnswer(fmt.Sprintf("pair index %d out of range", idx))
			}
		}
		for i := range a.Pairs {
			if a.Pairs[i] != q.PairAnswer[i] {
				return false, nil
			}
		}
		return true, nil
	}
	return false, invalidAnswer(fmt.Sprintf("unsupported question type %q", q.Type))
}

// NormalizeText case-folds, trims and collapses internal whitespace. Both
// scoring and validation of fill-blank answers go through it.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isPermutation(xs []int, n int) bool {
	if len(xs) != n {
		return false
	}
	seen := make([]bool, n)
	for _, x := range xs {
		if x < 0 || x >= n || seen[x] {
			return false
		}
		seen[x] = true
	}
	return true
}

func invalidAnswer(msg string) error {
	return &StateError{Kind: StateInvalidAnswer, Message: msg}
}

// Answer is a user's response; exactly one field is set, matching the
// question's shape.
type Answer struct {
	Choice *int    `json:"choice,omitempty"`
	Text   *string `json:"text,omitempty"`
	Pairs  []int   `json:"pairs,omitempty"`
}

func ChoiceAnswer(i int) Answer { return Answer{Choice: &i} }

func TextAnswer(s string) Answer { return Answer{Text: &s} }

func PairsAnswer(p []int) Answer { return Answer{Pairs: append([]int(nil), p...)} }

// Clone returns a deep copy.
func (a Answer) Clone() Answer {
	out := Answer{Pairs: append([]int(nil), a.Pairs...)}
	if a.Choice != nil {
		c := *a.Choice
		out.Choice = &c
	}
	if a.Text != nil {
		t := *a.Text
		out.Text = &t
	}
	return out
}
