package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lingo-quiz/internal/app"
	"lingo-quiz/internal/domain"
	"lingo-quiz/internal/resource"
)

// Content is the read side of the resource provider.
type Content interface {
	LoadMetadata(ctx context.Context) ([]domain.Theme, error)
	GetTheme(ctx context.Context, themeID int) (domain.Theme, error)
	GetThemeQuizzes(ctx context.Context, themeID int) ([]domain.QuizSummary, error)
	ClearCache(scope resource.CacheScope)
}

// Store is the persisted user data.
type Store interface {
	GetProgress(ctx context.Context) (domain.Progress, error)
	GetGlobalStats(ctx context.Context) (domain.GlobalStats, error)
	GetUserBadges(ctx context.Context) ([]domain.Badge, error)
	GetPreferences(ctx context.Context) (domain.Preferences, error)
	SavePreferences(ctx context.Context, prefs domain.Preferences) error
	ResetAll(ctx context.Context) error
}

// Stats computes visualization data on demand.
type Stats interface {
	Visualization(ctx context.Context) domain.VisualizationData
}

type RouterConfig struct {
	Content Content
	Store   Store
	Stats   Stats
	Quiz    *app.QuizService
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter wires the REST API, the quiz websocket and health endpoints.
func NewRouter(c RouterConfig) *mux.Router {
	h := &restHandler{content: c.Content, store: c.Store, stats: c.Stats, quiz: c.Quiz}
	ws := NewWSHandler(c.Quiz)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)
	if c.Metrics != nil {
		r.Handle("/metrics", c.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/themes", h.listThemes).Methods(http.MethodGet)
	api.HandleFunc("/themes/{themeId:[0-9]+}", h.getTheme).Methods(http.MethodGet)
	api.HandleFunc("/themes/{themeId:[0-9]+}/quizzes", h.listThemeQuizzes).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.clearCache).Methods(http.MethodDelete)

	api.HandleFunc("/stats", h.getStats).Methods(http.MethodGet)
	api.HandleFunc("/progress", h.getProgress).Methods(http.MethodGet)
	api.HandleFunc("/progress", h.resetProgress).Methods(http.MethodDelete)
	api.HandleFunc("/history", h.getHistory).Methods(http.MethodGet)
	api.HandleFunc("/badges", h.getBadges).Methods(http.MethodGet)
	api.HandleFunc("/preferences", h.getPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", h.putPreferences).Methods(http.MethodPut)

	api.HandleFunc("/session", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/session", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/session", h.resetSession).Methods(http.MethodDelete)
	api.HandleFunc("/session/answer", h.answer).Methods(http.MethodPost)
	api.HandleFunc("/session/goto", h.goTo).Methods(http.MethodPost)
	api.HandleFunc("/session/complete", h.complete).Methods(http.MethodPost)
	return r
}

type restHandler struct {
	content Content
	store   Store
	stats   Stats
	quiz    *app.QuizService
}

func (h *restHandler) listThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.content.LoadMetadata(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Metadata{Themes: themes})
}

func (h *restHandler) getTheme(w http.ResponseWriter, r *http.Request) {
	themeID, _ := strconv.Atoi(mux.Vars(r)["themeId"])
	theme, err := h.content.GetTheme(r.Context(), themeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

func (h *restHandler) listThemeQuizzes(w http.ResponseWriter, r *http.Request) {
	themeID, _ := strconv.Atoi(mux.Vars(r)["themeId"])
	quizzes, err := h.content.GetThemeQuizzes(r.Context(), themeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *restHandler) clearCache(w http.ResponseWriter, r *http.Request) {
	scope := resource.CacheAll
	switch r.URL.Query().Get("scope") {
	case "", "all":
	case "metadata":
		scope = resource.CacheMetadata
	case "quizzes":
		scope = resource.CacheQuizzes
	default:
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "scope must be all, metadata or quizzes"})
		return
	}
	h.content.ClearCache(scope)
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Visualization(r.Context()))
}

func (h *restHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.store.GetProgress(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *restHandler) resetProgress(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ResetAll(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	global, err := h.store.GetGlobalStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	history := global.QuizHistory
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *restHandler) getBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.store.GetUserBadges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}

func (h *restHandler) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.GetPreferences(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *restHandler) putPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid preferences payload"})
		return
	}
	if err := h.store.SavePreferences(r.Context(), prefs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *restHandler) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.quiz.Session().Snapshot())
}

type startRequest struct {
	ThemeID int `json:"themeId"`
	QuizID  int `json:"quizId"`
}

func (h *restHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid start payload"})
		return
	}
	snap, err := h.quiz.StartQuiz(r.Context(), req.ThemeID, req.QuizID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *restHandler) resetSession(w http.ResponseWriter, _ *http.Request) {
	h.quiz.Session().Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) answer(w http.ResponseWriter, r *http.Request) {
	var a domain.Answer
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid answer payload"})
		return
	}
	res, err := answerCurrent(r.Context(), h.quiz, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type gotoRequest struct {
	Index int `json:"index"`
}

func (h *restHandler) goTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid goto payload"})
		return
	}
	if _, err := h.quiz.Session().GoTo(req.Index); err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := currentQuestion(h.quiz.Session())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *restHandler) complete(w http.ResponseWriter, r *http.Request) {
	out, err := h.quiz.CompleteQuiz(r.Context())
	if err != nil && !out.Result.Completed {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		// The result could not be saved; it is still returned, flagged unsaved.
		status, _ = classify(err)
	}
	writeJSON(w, status, out)
}

// answerCurrent submits a and reports the outcome with the explanation.
func answerCurrent(ctx context.Context, quiz *app.QuizService, a domain.Answer) (answerResult, error) {
	q, index, err := quiz.Session().CurrentQuestion()
	if err != nil {
		return answerResult{}, err
	}
	st, err := quiz.SubmitAnswer(ctx, a)
	if err != nil {
		return answerResult{}, fmt.Errorf("question %d: %w", index, err)
	}
	return answerResult{
		Index:       index,
		Correct:     st.Correct,
		Explanation: q.Explanation,
		Score:       quiz.Session().Snapshot().Score,
		AllAnswered: quiz.Session().AllQuestionsAnswered(),
	}, nil
}

func currentQuestion(s *app.Session) (questionPayload, error) {
	q, _, err := s.CurrentQuestion()
	if err != nil {
		return questionPayload{}, err
	}
	return newQuestionPayload(q, s.Snapshot()), nil
}
