package usecase

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/iamvkosarev/hablaya/config"
)

// fakeOpenAI serves the provider endpoints the relays use and counts calls.
type fakeOpenAI struct {
	calls   atomic.Int32
	handler http.HandlerFunc
}

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) (*fakeOpenAI, *OpenAIUsecase) {
	t.Helper()
	fake := &fakeOpenAI{handler: handler}
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				fake.calls.Add(1)
				fake.handler(w, r)
			},
		),
	)
	t.Cleanup(srv.Close)

	openAI := NewOpenAIUsecase(
		config.OpenAI{
			OpenAIAPIKey:  "sk-test",
			OpenAIBaseURL: srv.URL + "/v1",
		}, nil,
	)
	return fake, openAI
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProviderError(w http.ResponseWriter, status int, message string) {
	writeJSON(
		w, status, map[string]any{
			"error": map[string]any{
				"message": message,
				"type":    "server_error",
			},
		},
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChatConfig() config.Chat {
	return config.Chat{
		Model:            "gpt-4-turbo",
		PromptMode:       PromptModeAdaptive,
		DefaultLevel:     "intermediate",
		Temperature:      0.7,
		MaxTokens:        150,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
		TopP:             1,
	}
}
