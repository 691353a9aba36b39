package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"lingo-quiz/internal/app"
	"lingo-quiz/internal/domain"
)

// questionView is a question as shown to the player: no answer key.
type questionView struct {
	Type      domain.QuestionType `json:"type"`
	Prompt    string              `json:"prompt"`
	Options   []string            `json:"options,omitempty"`
	Template  string              `json:"template,omitempty"`
	Left      []string            `json:"left,omitempty"`
	Right     []string            `json:"right,omitempty"`
	AudioFile string              `json:"audioFile,omitempty"`
}

func newQuestionView(q domain.Question) questionView {
	v := questionView{
		Type:      q.Type,
		Prompt:    q.Prompt,
		Options:   q.Options,
		Template:  q.Template,
		AudioFile: q.AudioFile,
	}
	for _, p := range q.Pairs {
		v.Left = append(v.Left, p.Left)
		v.Right = append(v.Right, p.Right)
	}
	return v
}

type questionPayload struct {
	Index    int                    `json:"index"`
	Total    int                    `json:"total"`
	Question questionView           `json:"question"`
	Status   *domain.QuestionStatus `json:"status,omitempty"`
	Score    int                    `json:"score"`
}

func newQuestionPayload(q domain.Question, snap app.SessionSnapshot) questionPayload {
	p := questionPayload{
		Index:    snap.CurrentIndex,
		Total:    snap.Total,
		Question: newQuestionView(q),
		Score:    snap.Score,
	}
	if snap.CurrentIndex < len(snap.QuestionStatus) {
		p.Status = snap.QuestionStatus[snap.CurrentIndex]
	}
	return p
}

type answerResult struct {
	Index       int    `json:"index"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
	Score       int    `json:"score"`
	AllAnswered bool   `json:"allAnswered"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorPayload(err error) errorPayload {
	_, code := classify(err)
	return errorPayload{Code: code, Message: err.Error()}
}

// classify maps domain errors to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadGateway, "invalid_format"
	case errors.Is(err, domain.ErrInvalidAnswer):
		return http.StatusBadRequest, "invalid_answer"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict, "already_answered"
	case errors.Is(err, domain.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, "quota_exceeded"
	case errors.Is(err, domain.ErrSerialization):
		return http.StatusInternalServerError, "serialization_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "http: request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}
