package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/attempt"
	"github.com/p-n-ai/pai-quiz/internal/document"
	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/lifecycle"
	"github.com/p-n-ai/pai-quiz/internal/platform/validate"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	clientIDHeader = "X-Client-ID"
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type documentRequest struct {
	Text string `json:"text"`
}

type quizResponse struct {
	QuizID    string                `json:"quiz_id"`
	Questions []quiz.ClientQuestion `json:"questions"`
}

type submitRequest struct {
	QuizID  string                   `json:"quiz_id" validate:"required"`
	Answers []grading.SubmissionItem `json:"answers"`
}

func (h *handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		writeError(w, http.StatusServiceUnavailable, "document indexing is not configured")
		return
	}

	var req documentRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read document")
			return
		}
		req.Text = string(raw)
	} else if err := h.decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	chunks, err := h.documents.Replace(req.Text)
	if errors.Is(err, document.ErrEmptyDocument) {
		writeBadRequest(w, validate.FieldErrors{"text": "document has no text"})
		return
	}
	if err != nil {
		writeInternal(w, "index document", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "chunks": chunks})
}

func (h *handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generator.Request
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	req.ClientID = clientID(r)

	id, view, err := h.service.GenerateQuiz(r.Context(), req)
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizResponse{QuizID: id, Questions: view.Questions})
}

func (h *handler) writeGenerateError(w http.ResponseWriter, err error) {
	var fields validate.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeBadRequest(w, err)
	case errors.Is(err, generator.ErrNoDocument):
		writeError(w, http.StatusConflict, "No document has been uploaded. Upload a document first.")
	case errors.Is(err, generator.ErrBudgetExceeded):
		writeError(w, http.StatusTooManyRequests, "Token budget exhausted.")
	case errors.Is(err, lifecycle.ErrGenerationDisabled):
		writeError(w, http.StatusServiceUnavailable, "Quiz generation is not configured.")
	case errors.Is(err, generator.ErrMalformedOutput):
		writeInternal(w, "generate quiz", err)
	default:
		slog.Warn("quiz generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "Quiz generation failed. Please try again.")
	}
}

func (h *handler) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var qz quiz.Quiz
	if err := h.decodeJSON(w, r, &qz); err != nil {
		writeBadRequest(w, err)
		return
	}

	id, err := h.service.CreateQuiz(r.Context(), qz)
	if errors.Is(err, quiz.ErrInvalidQuiz) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeInternal(w, "create quiz", err)
		return
	}
	writeJSON(w, http.StatusCreated, quizResponse{QuizID: id, Questions: qz.ClientView().Questions})
}

func (h *handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := h.service.ClientView(r.Context(), id)
	if errors.Is(err, quiz.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		writeInternal(w, "get quiz", err)
		return
	}
	writeJSON(w, http.StatusOK, quizResponse{QuizID: id, Questions: view.Questions})
}

func (h *handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeBadRequest(w, err)
		return
	}

	summary, err := h.service.GradeSubmission(r.Context(), req.QuizID, req.Answers)
	if err != nil && r.Context().Err() != nil {
		slog.Debug("client left during grading", "quiz_id", req.QuizID)
		return
	}
	if errors.Is(err, quiz.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		writeInternal(w, "grade submission", err)
		return
	}
	if summary.Results == nil {
		summary.Results = []grading.Result{}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) handleExportAttempts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	attempts, err := h.service.Attempts(r.Context(), id)
	if errors.Is(err, quiz.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		writeInternal(w, "list attempts", err)
		return
	}

	var buf bytes.Buffer
	if err := attempt.ExportXLSX(&buf, id, attempts); err != nil {
		writeInternal(w, "export attempts", err)
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%s-attempts.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// clientID identifies the caller for token budgeting.
func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	return "anonymous"
}
