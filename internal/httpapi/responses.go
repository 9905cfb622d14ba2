package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-quiz/internal/platform/validate"
)

// notFoundMessage is the body error for unknown or expired quiz ids.
const notFoundMessage = "Quiz not found or expired. Please generate a new quiz."

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeBadRequest renders validation failures field by field.
func writeBadRequest(w http.ResponseWriter, err error) {
	var fields validate.FieldErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Fields: fields})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeInternal(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a bounded JSON body into dst.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return validate.FieldErrors{"body": "malformed JSON: " + err.Error()}
	}
	return nil
}
