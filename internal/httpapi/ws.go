package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	wsReadLimit      = 1 << 20
	wsSubmitDeadline = time.Minute
)

// wsSubmission is the single message a client sends after connecting.
type wsSubmission struct {
	Answers []grading.SubmissionItem `json:"answers"`
}

// wsMessage is a server frame: one "result" per graded item, then a
// "summary", or an "error".
type wsMessage struct {
	Type     string           `json:"type"`
	Position *int             `json:"position,omitempty"`
	Result   *grading.Result  `json:"result,omitempty"`
	Summary  *grading.Summary `json:"summary,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (h *handler) handleGradeWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.allowedOrigins})
	if err != nil {
		slog.Warn("websocket upgrade failed", "quiz_id", id, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	ctx := r.Context()
	if _, err := h.service.ClientView(ctx, id); err != nil {
		h.closeWithError(ctx, conn, err)
		return
	}

	sub, err := readSubmission(ctx, conn)
	if err != nil {
		slog.Debug("websocket submission unreadable", "quiz_id", id, "error", err)
		conn.Close(websocket.StatusUnsupportedData, "expected a JSON submission")
		return
	}

	// Nothing more is read; the returned context ends when the client goes away.
	ctx = conn.CloseRead(ctx)

	summary, err := h.service.GradeSubmissionEach(ctx, id, sub.Answers, func(pos int, res grading.Result) {
		if err := wsjson.Write(ctx, conn, wsMessage{Type: "result", Position: &pos, Result: &res}); err != nil {
			slog.Debug("websocket result not delivered", "quiz_id", id, "error", err)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("websocket client left during grading", "quiz_id", id)
			return
		}
		h.closeWithError(ctx, conn, err)
		return
	}
	if summary.Results == nil {
		summary.Results = []grading.Result{}
	}

	if err := wsjson.Write(ctx, conn, wsMessage{Type: "summary", Summary: &summary}); err != nil {
		slog.Debug("websocket summary not delivered", "quiz_id", id, "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func readSubmission(ctx context.Context, conn *websocket.Conn) (wsSubmission, error) {
	ctx, cancel := context.WithTimeout(ctx, wsSubmitDeadline)
	defer cancel()

	var sub wsSubmission
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return sub, err
	}
	if typ != websocket.MessageText {
		return sub, fmt.Errorf("unexpected %v message", typ)
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, fmt.Errorf("decoding submission: %w", err)
	}
	return sub, nil
}

func (h *handler) closeWithError(ctx context.Context, conn *websocket.Conn, err error) {
	if errors.Is(err, quiz.ErrNotFound) {
		_ = wsjson.Write(ctx, conn, wsMessage{Type: "error", Error: notFoundMessage})
		conn.Close(websocket.StatusPolicyViolation, "quiz not found")
		return
	}
	slog.Error("websocket grading failed", "error", err)
	_ = wsjson.Write(ctx, conn, wsMessage{Type: "error", Error: "internal server error"})
	conn.Close(websocket.StatusInternalError, "grading failed")
}
