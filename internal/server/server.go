// Package server exposes the chat, speech, transcription and health relays
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/observe"
	"github.com/iamvkosarev/hablaya/internal/usecase"
)

type ChatRelay interface {
	Reply(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)
}

type SpeechRelay interface {
	Synthesize(ctx context.Context, req model.SpeechRequest) (model.SpeechAudio, error)
}

type TranscriptionRelay interface {
	Transcribe(ctx context.Context, req model.TranscriptionRequest) (model.TranscriptionResult, error)
}

type HealthChecker interface {
	Check(ctx context.Context) usecase.HealthReport
}

type Deps struct {
	Chat          ChatRelay
	Speech        SpeechRelay
	Transcription TranscriptionRelay
	Health        HealthChecker
	Metrics       *observe.Metrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type Server struct {
	Deps
	cfg            config.Server
	maxUploadBytes int64
}

func New(deps Deps, cfg config.Server, maxUploadBytes int64) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.NopMetrics()
	}
	return &Server{
		Deps:           deps,
		cfg:            cfg,
		maxUploadBytes: maxUploadBytes,
	}
}

// Handler builds the router with every route wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.Metrics, s.Logger))
	r.MethodNotAllowed(
		func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		},
	)

	r.Route(
		"/api", func(r chi.Router) {
			r.Post("/chat", s.handleChat())
			r.Post("/speak", s.handleSpeak())
			r.Post("/transcribe", s.handleTranscribe())
			r.Get("/test", s.handleHealth())
		},
	)
	r.Get("/health", s.handleHealth())
	if s.MetricsHandler != nil {
		r.Handle("/metrics", s.MetricsHandler)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	s.Logger.Info("http server stopped")
	return nil
}
