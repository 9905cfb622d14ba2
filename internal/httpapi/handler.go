// Package httpapi exposes the quiz lifecycle over HTTP and WebSocket.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/lifecycle"
)

const (
	defaultMaxBodyBytes = 10 << 20
	readyTimeout        = 3 * time.Second
)

// DocumentIndex is the active-document index the upload endpoint feeds.
type DocumentIndex interface {
	Replace(text string) (int, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Config wires dependencies for the HTTP handler.
type Config struct {
	Service   *lifecycle.Service
	Documents DocumentIndex
	// Ready lists named readiness checks run by GET /readyz.
	Ready map[string]Check
	// AllowedOrigins are host patterns accepted for WebSocket upgrades in
	// addition to same-origin requests.
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type handler struct {
	service        *lifecycle.Service
	documents      DocumentIndex
	ready          map[string]Check
	allowedOrigins []string
	maxBodyBytes   int64
}

// NewHandler builds the HTTP handler for the quiz API.
func NewHandler(cfg Config) http.Handler {
	h := &handler{
		service:        cfg.Service,
		documents:      cfg.Documents,
		ready:          cfg.Ready,
		allowedOrigins: cfg.AllowedOrigins,
		maxBodyBytes:   cfg.MaxBodyBytes,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /readyz", h.handleReadyz)
	mux.HandleFunc("POST /documents", h.handleUploadDocument)
	mux.HandleFunc("POST /generate-quiz", h.handleGenerateQuiz)
	mux.HandleFunc("POST /quizzes", h.handleCreateQuiz)
	mux.HandleFunc("GET /quizzes/{id}", h.handleGetQuiz)
	mux.HandleFunc("POST /submit-quiz", h.handleSubmitQuiz)
	mux.HandleFunc("GET /quizzes/{id}/attempts.xlsx", h.handleExportAttempts)
	mux.HandleFunc("GET /quizzes/{id}/grade/ws", h.handleGradeWS)
	return mux
}

func (h *handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failures := map[string]string{}
	for name, check := range h.ready {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
