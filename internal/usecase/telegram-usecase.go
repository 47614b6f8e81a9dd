package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/session"
	"github.com/iamvkosarev/hablaya/pkg/local"
	"github.com/iamvkosarev/hablaya/pkg/proficiency"
	"github.com/iamvkosarev/hablaya/pkg/prompt"
	"github.com/sourcegraph/conc"
)

const (
	MessageUserNoAccess       = "You are not allowed to use this bot"
	MessageCommandStart       = "Welcome to HablaYa! Write or record a voice message in English and I will answer like a friendly tutor. Use /help to see what else I can do."
	MessageCommandHelp        = "Send text or a voice message to practice.\n/new starts a fresh conversation\n/stats shows your progress\n/level, /focus, /voice and /speed tune the tutor\n/replay repeats my last answer"
	MessageCommandUnknown     = "I don't know that command"
	MessageNewConversation    = "Started a new conversation. Say hello!"
	MessageBusy               = "Still working on your last message, one moment."
	MessageUnsupportedInput   = "I can read text and listen to voice messages."
	MessageDownloadFailed     = "I couldn't download your voice message. Try again or type your message."
	MessageFileTooLarge       = "That recording is too long for me. Please send one under 20MB."
	MessageNothingToReplay    = "There is nothing to replay yet."
	MessageHeardFormat        = "I heard: %q"
	MessageStatsFormat        = "Messages: %d\nWords practiced: %d\nAccuracy: %d%%\nSession time: %d min"
	MessageLevelSetFormat     = "Level set to %s"
	MessageFocusSetFormat     = "Focus set to %s"
	MessageVoiceSetFormat     = "Voice set to %s"
	MessageSpeedSetFormat     = "Speech speed set to %sx"
	MessageLevelUsageFormat   = "Usage: /level %s"
	MessageFocusUsageFormat   = "Usage: /focus %s"
	MessageVoiceUsageFormat   = "Usage: /voice %s"
	MessageSpeedUsage         = "Usage: /speed 0.25-4.0, for example /speed 0.9"
	replyAudioName            = "reply.mp3"
	telegramPreferencesFormat = "telegram_%d:"

	// Bots may only download files up to 20MB.
	maxDownloadBytes = 20 << 20

	CommandStart  = "start"
	CommandHelp   = "help"
	CommandNew    = "new"
	CommandStats  = "stats"
	CommandLevel  = "level"
	CommandFocus  = "focus"
	CommandVoice  = "voice"
	CommandSpeed  = "speed"
	CommandReplay = "replay"
)

var ErrFileTooLarge = errors.New("file exceeds the download limit")

var (
	textBusy = local.NewSet(
		MessageBusy,
		local.NewTrans(local.Spa, "Todavía estoy con tu último mensaje, un momento."),
	)
	textNewConversation = local.NewSet(
		MessageNewConversation,
		local.NewTrans(local.Spa, "Empezamos una conversación nueva. ¡Saluda!"),
	)
	textStats = local.NewSet(
		MessageStatsFormat,
		local.NewTrans(
			local.Spa, "Mensajes: %d\nPalabras practicadas: %d\nPrecisión: %d%%\nTiempo de sesión: %d min",
		),
	)
	textHeard = local.NewSet(
		MessageHeardFormat,
		local.NewTrans(local.Spa, "Escuché: %q"),
	)

	levelNames = []string{
		string(proficiency.LevelAuto),
		string(proficiency.LevelBeginner),
		string(proficiency.LevelElementary),
		string(proficiency.LevelIntermediate),
		string(proficiency.LevelUpperIntermediate),
		string(proficiency.LevelAdvanced),
	}
	focusNames = []string{
		string(prompt.FocusConversation),
		string(prompt.FocusPronunciation),
		string(prompt.FocusGrammar),
		string(prompt.FocusVocabulary),
		string(prompt.FocusWriting),
		string(prompt.FocusSpeaking),
	}
)

// TelegramBot is the subset of *api.BotAPI the adapter needs.
type TelegramBot interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config api.UpdateConfig) api.UpdatesChannel
	StopReceivingUpdates()
}

type TelegramUsecaseDeps struct {
	Bot    TelegramBot
	Relays session.Relays
	Store  session.PreferenceStore
	Logger *slog.Logger
	// HTTPClient downloads voice notes; nil uses a client with a one minute
	// timeout.
	HTTPClient *http.Client
}

// TelegramUsecase runs one session controller per chat.
type TelegramUsecase struct {
	TelegramUsecaseDeps
	cfg          config.Telegram
	sessionCfg   config.Session
	allowedUsers map[int64]struct{}
	maxDownload  int64

	mu       sync.Mutex
	sessions map[int64]*session.Controller
}

func NewTelegramUsecase(
	cfg config.Telegram,
	sessionCfg config.Session,
	deps TelegramUsecaseDeps,
) (*TelegramUsecase, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: time.Minute}
	}
	allowedUsers := make(map[int64]struct{}, len(cfg.AllowedTelegramID))
	for _, userID := range cfg.AllowedTelegramID {
		allowedUsers[userID] = struct{}{}
	}

	_, err := deps.Bot.Request(
		api.NewSetMyCommands(
			[]api.BotCommand{
				{
					Command:     CommandHelp,
					Description: "Get help",
				},
				{
					Command:     CommandNew,
					Description: "Clear context and start a new conversation",
				},
				{
					Command:     CommandStats,
					Description: "Show practice statistics",
				},
				{
					Command:     CommandLevel,
					Description: "Set your English level",
				},
				{
					Command:     CommandFocus,
					Description: "Choose what to practice",
				},
				{
					Command:     CommandVoice,
					Description: "Choose the tutor's voice",
				},
				{
					Command:     CommandSpeed,
					Description: "Set the speech speed",
				},
				{
					Command:     CommandReplay,
					Description: "Repeat the last answer",
				},
			}...,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return &TelegramUsecase{
		TelegramUsecaseDeps: deps,
		cfg:                 cfg,
		sessionCfg:          sessionCfg,
		allowedUsers:        allowedUsers,
		maxDownload:         maxDownloadBytes,
		sessions:            make(map[int64]*session.Controller),
	}, nil
}

// Run polls for updates until ctx is done. Chats are served concurrently;
// turns within one chat are serialized by their controller.
func (t *TelegramUsecase) Run(ctx context.Context) error {
	u := api.NewUpdate(0)
	u.Timeout = 60

	updates := t.Bot.GetUpdatesChan(u)
	wg := conc.NewWaitGroup()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Go(
				func() {
					if err := t.HandleUpdate(ctx, update); err != nil {
						t.Logger.ErrorContext(ctx, "failed to handle update", slog.Any("error", err))
					}
				},
			)
		}
	}
}

func (t *TelegramUsecase) HandleUpdate(ctx context.Context, update api.Update) error {
	if update.Message == nil {
		return nil
	}
	return t.handleMessage(ctx, update.Message)
}

func (t *TelegramUsecase) handleMessage(ctx context.Context, msg *api.Message) error {
	chatID := msg.Chat.ID

	if t.cfg.IsNotPublic {
		if _, ok := t.allowedUsers[chatID]; !ok {
			t.sendMessageAndHandleErr(ctx, chatID, MessageUserNoAccess)
			return nil
		}
	}

	language := languageOf(msg)
	ctrl := t.session(ctx, chatID, language)
	if msg.IsCommand() {
		return t.handleCommand(ctx, ctrl, chatID, language, msg)
	}

	var err error
	switch {
	case msg.Voice != nil:
		err = t.submitFile(ctx, ctrl, chatID, msg.Voice.FileID, "voice.ogg", msg.Voice.MimeType)
	case msg.Audio != nil:
		err = t.submitFile(ctx, ctrl, chatID, msg.Audio.FileID, msg.Audio.FileName, msg.Audio.MimeType)
	case strings.TrimSpace(msg.Text) != "":
		_, err = ctrl.SubmitText(ctx, msg.Text)
	default:
		t.sendMessageAndHandleErr(ctx, chatID, MessageUnsupportedInput)
		return nil
	}
	if errors.Is(err, session.ErrBusy) {
		t.sendMessageAndHandleErr(ctx, chatID, textBusy.Text(language))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run turn for chat %d: %w", chatID, err)
	}
	return nil
}

func (t *TelegramUsecase) submitFile(
	ctx context.Context,
	ctrl *session.Controller,
	chatID int64,
	fileID, filename, contentType string,
) error {
	data, err := t.download(ctx, fileID)
	if errors.Is(err, ErrFileTooLarge) {
		t.sendMessageAndHandleErr(ctx, chatID, MessageFileTooLarge)
		return nil
	}
	if err != nil {
		t.sendMessageAndHandleErr(ctx, chatID, MessageDownloadFailed)
		return err
	}
	_, err = ctrl.SubmitRecording(
		ctx, session.Recording{
			Data:        data,
			Filename:    filename,
			ContentType: contentType,
		},
	)
	return err
}

func (t *TelegramUsecase) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := t.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > t.maxDownload {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func (t *TelegramUsecase) handleCommand(
	ctx context.Context,
	ctrl *session.Controller,
	chatID int64,
	language local.Language,
	msg *api.Message,
) error {
	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	settings := ctrl.Settings()

	var answerText string
	switch msg.Command() {
	case CommandStart:
		answerText = MessageCommandStart
	case CommandHelp:
		answerText = MessageCommandHelp
	case CommandNew:
		t.resetSession(chatID)
		answerText = textNewConversation.Text(language)
	case CommandStats:
		answerText = formatStats(ctrl.Stats(), time.Now(), language)
	case CommandLevel:
		level, ok := proficiency.ParseLevel(arg)
		if !ok {
			answerText = fmt.Sprintf(MessageLevelUsageFormat, strings.Join(levelNames, "|"))
			break
		}
		settings.ProficiencyLevel = level
		ctrl.UpdateSettings(ctx, settings)
		answerText = fmt.Sprintf(MessageLevelSetFormat, level)
	case CommandFocus:
		focus, ok := prompt.ParseFocus(arg)
		if !ok {
			answerText = fmt.Sprintf(MessageFocusUsageFormat, strings.Join(focusNames, "|"))
			break
		}
		settings.LearningFocus = focus
		ctrl.UpdateSettings(ctx, settings)
		answerText = fmt.Sprintf(MessageFocusSetFormat, focus)
	case CommandVoice:
		if !IsSpeechVoice(arg) {
			answerText = fmt.Sprintf(MessageVoiceUsageFormat, strings.Join(speechVoices, "|"))
			break
		}
		settings.VoiceID = arg
		ctrl.UpdateSettings(ctx, settings)
		answerText = fmt.Sprintf(MessageVoiceSetFormat, arg)
	case CommandSpeed:
		speed, err := ParseSpeed(arg)
		if err != nil {
			answerText = MessageSpeedUsage
			break
		}
		settings.SpeechRate = speed
		ctrl.UpdateSettings(ctx, settings)
		answerText = fmt.Sprintf(MessageSpeedSetFormat, strconv.FormatFloat(settings.SpeechRate, 'f', -1, 64))
	case CommandReplay:
		last, ok := lastAssistantContent(ctrl.History())
		if !ok {
			answerText = MessageNothingToReplay
			break
		}
		if err := ctrl.Replay(ctx, last); err != nil {
			if errors.Is(err, session.ErrBusy) {
				answerText = textBusy.Text(language)
				break
			}
			return fmt.Errorf("failed to replay: %w", err)
		}
		return nil
	default:
		answerText = MessageCommandUnknown
	}
	t.sendMessageAndHandleErr(ctx, chatID, answerText)
	return nil
}

func (t *TelegramUsecase) session(ctx context.Context, chatID int64, language local.Language) *session.Controller {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctrl, ok := t.sessions[chatID]; ok {
		return ctrl
	}

	logger := t.Logger.With(slog.Int64("chat_id", chatID))
	chat := &telegramChat{
		bot:      t.Bot,
		chatID:   chatID,
		language: language,
		logger:   logger,
	}
	ctrl := session.NewController(
		session.Deps{
			Relays:   t.Relays,
			Platform: chat,
			Renderer: chat,
			Store:    session.Namespace(t.Store, fmt.Sprintf(telegramPreferencesFormat, chatID)),
			Logger:   logger,
		}, session.Config{
			HistoryLimit: t.sessionCfg.HistoryLimit,
			Language:     language,
		},
	)
	ctrl.Start(ctx)
	t.sessions[chatID] = ctrl
	return ctrl
}

// resetSession drops the chat's controller; preferences survive in the store.
func (t *TelegramUsecase) resetSession(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, chatID)
}

func (t *TelegramUsecase) sendMessageAndHandleErr(ctx context.Context, chatID int64, message string) {
	if _, err := t.Bot.Send(api.NewMessage(chatID, message)); err != nil {
		t.Logger.WarnContext(ctx, "failed to send message to bot", slog.Any("error", err))
	}
}

func languageOf(msg *api.Message) local.Language {
	if msg.From == nil {
		return local.Eng
	}
	return local.ParseLanguage(msg.From.LanguageCode)
}

func lastAssistantContent(history []model.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			return history[i].Content, true
		}
	}
	return "", false
}

func formatStats(stats model.SessionStats, now time.Time, language local.Language) string {
	return textStats.Format(
		language,
		stats.MessagesSent,
		stats.WordsPracticed,
		int(stats.AccuracyScore()*100+0.5),
		int(stats.Elapsed(now).Minutes()),
	)
}

// telegramChat renders a session into one chat. Telegram has no microphone
// or native speech; voice arrives as finished voice notes instead.
type telegramChat struct {
	bot      TelegramBot
	chatID   int64
	language local.Language
	logger   *slog.Logger
}

type sentAudio struct{}

func (sentAudio) Stop() {}

func (c *telegramChat) send(chattable api.Chattable) {
	if _, err := c.bot.Send(chattable); err != nil {
		c.logger.Warn("failed to send to bot", slog.Any("error", err))
	}
}

func (c *telegramChat) ShowMessage(msg model.Message) {
	if msg.Role == model.RoleAssistant {
		c.send(api.NewMessage(c.chatID, msg.Content))
	}
}

func (c *telegramChat) ShowNotice(text string) {
	c.send(api.NewMessage(c.chatID, text))
}

func (c *telegramChat) ShowFeedback(result model.TranscriptionResult) {
	var b strings.Builder
	b.WriteString(textHeard.Format(c.language, result.Text))
	for _, suggestion := range result.LearningSuggestions {
		b.WriteString("\n• ")
		b.WriteString(suggestion)
	}
	c.send(api.NewMessage(c.chatID, b.String()))
}

func (c *telegramChat) ShowTyping(on bool) {
	if !on {
		return
	}
	if _, err := c.bot.Request(api.NewChatAction(c.chatID, api.ChatTyping)); err != nil {
		c.logger.Warn("failed to send chat action", slog.Any("error", err))
	}
}

func (c *telegramChat) ShowState(session.State) {}

func (c *telegramChat) RequestMicrophone(context.Context) error {
	return session.ErrUnsupported
}

func (c *telegramChat) StartCapture(context.Context) error {
	return session.ErrUnsupported
}

func (c *telegramChat) StopCapture(context.Context) (session.Recording, error) {
	return session.Recording{}, session.ErrUnsupported
}

func (c *telegramChat) NativeTranscribe(context.Context, session.Recording) (session.Transcript, error) {
	return session.Transcript{}, session.ErrUnsupported
}

// Play sends the clip as an audio message; the chat app owns playback from
// then on.
func (c *telegramChat) Play(_ context.Context, audio []byte) (session.Playback, error) {
	_, err := c.bot.Send(api.NewAudio(c.chatID, api.FileBytes{Name: replyAudioName, Bytes: audio}))
	if err != nil {
		return nil, fmt.Errorf("failed to send audio: %w", err)
	}
	return sentAudio{}, nil
}

func (c *telegramChat) Speak(context.Context, string) (session.Playback, error) {
	return nil, session.ErrUnsupported
}
