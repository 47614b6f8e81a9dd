package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/client"
	"github.com/iamvkosarev/hablaya/internal/observe"
	"github.com/iamvkosarev/hablaya/internal/server"
	"github.com/iamvkosarev/hablaya/internal/session"
	in_memory "github.com/iamvkosarev/hablaya/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/hablaya/internal/storage/key-value"
	"github.com/iamvkosarev/hablaya/internal/storage/sqlite"
	"github.com/iamvkosarev/hablaya/internal/terminal"
	"github.com/iamvkosarev/hablaya/internal/usecase"
	"github.com/iamvkosarev/hablaya/pkg/local"
	"github.com/redis/go-redis/v9"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	redisKeyPrefix = "hablaya:"
)

var ErrUnknownStorageDriver = errors.New("unknown storage driver")

// relays are the provider-facing usecases shared by every frontend.
type relays struct {
	openAI        *usecase.OpenAIUsecase
	chat          *usecase.ChatUsecase
	speech        *usecase.SpeechUsecase
	transcription *usecase.TranscriptionUsecase
	health        *usecase.HealthUsecase
}

func newRelays(cfg *config.Config, metrics *observe.Metrics, logger *slog.Logger) (relays, error) {
	baseURL, err := url.JoinPath(cfg.OpenAI.OpenAIBaseURL, "/v1")
	if err != nil {
		return relays{}, fmt.Errorf("failed to build openai base url: %w", err)
	}
	openAICfg := cfg.OpenAI
	openAICfg.OpenAIBaseURL = baseURL
	if openAICfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; relays will fail until it is configured")
	}

	openAIUsecase := usecase.NewOpenAIUsecase(openAICfg, metrics)
	return relays{
		openAI: openAIUsecase,
		chat: usecase.NewChatUsecase(
			usecase.ChatUsecaseDeps{
				OpenAI: openAIUsecase,
				Logger: logger,
			}, cfg.Chat,
		),
		speech: usecase.NewSpeechUsecase(
			usecase.SpeechUsecaseDeps{
				OpenAI: openAIUsecase,
			}, cfg.Speech,
		),
		transcription: usecase.NewTranscriptionUsecase(
			usecase.TranscriptionUsecaseDeps{
				OpenAI: openAIUsecase,
			}, cfg.Transcription,
		),
		health: usecase.NewHealthUsecase(
			usecase.HealthUsecaseDeps{
				OpenAI: openAIUsecase,
			},
		),
	}, nil
}

func (r relays) local() *client.LocalRelays {
	return client.NewLocalRelays(
		client.LocalRelaysDeps{
			Chat:          r.chat,
			Speech:        r.speech,
			Transcription: r.transcription,
		},
	)
}

// RunServer serves the HTTP relays until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := observe.NopMetrics()
	var metricsHandler http.Handler
	if !cfg.Server.MetricsDisabled {
		m, handler, shutdown, err := observe.InitProvider()
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("failed to shutdown metrics", slog.Any("error", err))
			}
		}()
		metrics, metricsHandler = m, handler
	}

	r, err := newRelays(cfg, metrics, logger)
	if err != nil {
		return err
	}
	srv := server.New(
		server.Deps{
			Chat:           r.chat,
			Speech:         r.speech,
			Transcription:  r.transcription,
			Health:         r.health,
			Metrics:        metrics,
			MetricsHandler: metricsHandler,
			Logger:         logger,
		}, cfg.Server, cfg.Transcription.MaxUploadBytes,
	)
	return srv.Run(ctx)
}

// RunTelegram serves the bot until ctx is cancelled.
func RunTelegram(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	bot, err := api.NewBotAPI(cfg.Telegram.TelegramAPIToken)
	if err != nil {
		return fmt.Errorf("failed to create new bot: %w", err)
	}
	logger.Info("authorized on telegram", slog.String("account", bot.Self.UserName))

	store, closeStore, err := OpenPreferenceStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := newRelays(cfg, observe.NopMetrics(), logger)
	if err != nil {
		return err
	}

	telegramUsecase, err := usecase.NewTelegramUsecase(
		cfg.Telegram, cfg.Session, usecase.TelegramUsecaseDeps{
			Bot:    bot,
			Relays: r.local(),
			Store:  store,
			Logger: logger,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create telegram usecase: %w", err)
	}
	return telegramUsecase.Run(ctx)
}

// ChatOptions selects where a terminal session sends its relay calls.
type ChatOptions struct {
	// Remote uses the server at config client.server_url instead of calling
	// the provider from this process.
	Remote bool
	In     io.Reader
	Out    io.Writer
}

// RunChat runs an interactive terminal session.
func RunChat(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ChatOptions) error {
	store, closeStore, err := OpenPreferenceStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	var sessionRelays session.Relays
	if opts.Remote {
		sessionRelays = client.NewHTTPRelays(cfg.Client.ServerURL, cfg.Client.Timeout)
	} else {
		r, err := newRelays(cfg, observe.NopMetrics(), logger)
		if err != nil {
			return err
		}
		sessionRelays = r.local()
	}

	renderer := terminal.NewRenderer(opts.Out, session.ThemeLight)
	ctrl := session.NewController(
		session.Deps{
			Relays:   sessionRelays,
			Platform: terminal.NewPlatform(cfg.Client, logger),
			Renderer: renderer,
			Store:    store,
			Logger:   logger,
		}, session.Config{
			HistoryLimit: cfg.Session.HistoryLimit,
			Language:     local.ParseLanguage(cfg.Session.Language),
			Model:        cfg.Chat.Model,
		},
	)
	ctrl.Start(ctx)
	renderer.SetTheme(ctrl.Theme())

	repl := terminal.NewREPL(
		terminal.REPLDeps{
			Controller: ctrl,
			Renderer:   renderer,
			Logger:     logger,
		},
	)
	return repl.Run(ctx, opts.In)
}

// OpenPreferenceStore opens the configured store. The returned close
// function is never nil.
func OpenPreferenceStore(ctx context.Context, cfg config.Storage) (session.PreferenceStore, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case "", StorageMemory:
		return in_memory.NewPreferenceStorage(), func() {}, nil
	case StorageRedis:
		rdb := redis.NewClient(
			&redis.Options{
				Addr: cfg.RedisEndpoint,
			},
		)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return key_value.NewPreferenceStorage(rdb, redisKeyPrefix, cfg.RedisTTL), func() { _ = rdb.Close() }, nil
	case StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStorageDriver, cfg.Driver)
	}
}
