package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"lingo-quiz/internal/app"
	"lingo-quiz/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and drives one quiz attempt
// per connection: it starts the quiz named by themeId and quizId, then
// answers, navigates and completes on client request.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	themeID, errTheme := strconv.Atoi(r.URL.Query().Get("themeId"))
	quizID, errQuiz := strconv.Atoi(r.URL.Query().Get("quizId"))
	if errTheme != nil || errQuiz != nil {
		http.Error(w, "missing or invalid themeId or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "ws: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	c := &wsConn{conn: conn, ctx: ctx}

	if _, err := h.service.StartQuiz(ctx, themeID, quizID); err != nil {
		c.sendError(err)
		return
	}
	c.sendQuestion(h.service.Session())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.WarnContext(ctx, "ws: read failed", "error", err)
			}
			return
		}
		if !h.handle(ctx, c, inbound) {
			return
		}
	}
}

// handle processes one client message; false ends the connection.
func (h *WSHandler) handle(ctx context.Context, c *wsConn, in inboundMessage) bool {
	session := h.service.Session()

	switch in.Type {
	case "answer":
		var a domain.Answer
		if err := json.Unmarshal(in.Payload, &a); err != nil {
			c.send("error", errorPayload{Code: "bad_request", Message: "invalid answer payload"})
			return true
		}
		res, err := answerCurrent(ctx, h.service, a)
		if err != nil {
			c.sendError(err)
			return true
		}
		c.send("answerResult", res)

	case "next", "previous", "goto":
		var err error
		switch in.Type {
		case "next":
			_, err = session.Next()
		case "previous":
			_, err = session.Previous()
		default:
			var p gotoPayload
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				c.send("error", errorPayload{Code: "bad_request", Message: "invalid goto payload"})
				return true
			}
			_, err = session.GoTo(p.Index)
		}
		if err != nil {
			c.sendError(err)
			return true
		}
		c.sendQuestion(session)

	case "complete":
		out, err := h.service.CompleteQuiz(ctx)
		if err != nil {
			c.sendError(err)
			if !out.Result.Completed {
				return true
			}
		}
		c.send("completed", out)
		if len(out.NewBadges) > 0 {
			c.send("badgesEarned", out.NewBadges)
		}

	case "restart":
		if _, err := h.service.RestartQuiz(ctx); err != nil {
			c.sendError(err)
			return true
		}
		c.sendQuestion(session)

	default:
		c.send("error", errorPayload{Code: "bad_request", Message: "unsupported message type"})
	}
	return !c.failed
}

// wsConn serializes writes on one connection and remembers write failures.
type wsConn struct {
	conn   *websocket.Conn
	ctx    context.Context
	failed bool
}

func (c *wsConn) send(typ string, payload any) {
	if err := c.conn.WriteJSON(outboundMessage{Type: typ, Payload: payload}); err != nil {
		slog.WarnContext(c.ctx, "ws: write failed", "type", typ, "error", err)
		c.failed = true
	}
}

func (c *wsConn) sendError(err error) {
	c.send("error", newErrorPayload(err))
}

func (c *wsConn) sendQuestion(s *app.Session) {
	payload, err := currentQuestion(s)
	if err != nil {
		c.sendError(err)
		return
	}
	c.send("question", payload)
}
