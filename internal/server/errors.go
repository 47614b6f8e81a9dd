package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iamvkosarev/hablaya/internal/model"
)

const (
	MessageChatFailed          = "An error occurred while processing your request"
	MessageSpeechFailed        = "Failed to generate speech"
	MessageTranscriptionFailed = "Failed to transcribe audio"
	MessageAPIKeyDetails       = "Please set OPENAI_API_KEY environment variable"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Length  int    `json:"length,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to a status code. Input errors are
// 400; everything else is a 500 whose details carry the provider message
// when there is one.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	var inputErr *model.InputError
	if errors.As(err, &inputErr) {
		writeJSON(
			w, http.StatusBadRequest, errorBody{
				Error:   inputErr.Reason,
				Details: inputErr.Details,
				Limit:   inputErr.Limit,
				Length:  inputErr.Length,
			},
		)
		return
	}

	s.Logger.ErrorContext(r.Context(), "relay failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	if errors.Is(err, model.ErrAPIKeyMissing) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Details: MessageAPIKeyDetails})
		return
	}
	body := errorBody{Error: fallback}
	var upstreamErr *model.UpstreamError
	if errors.As(err, &upstreamErr) {
		body.Details = upstreamErr.Message
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
