// Package session drives one learner's conversation: input capture,
// transcription with a native fallback, the chat round trip and spoken
// replies. It depends only on the interfaces in ports.go.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/pkg/local"
)

// typedAccuracy is the accuracy sample for typed messages, which need no
// recognition.
const typedAccuracy = 1.0

type Deps struct {
	Relays   Relays
	Platform Platform
	Renderer Renderer
	Store    PreferenceStore
	Logger   *slog.Logger
}

type Config struct {
	HistoryLimit int
	// Language selects the guidance texts, not the practiced language.
	Language local.Language
	// Model is sent with every chat request; empty uses the relay default.
	Model string
}

// Controller is safe for concurrent use. Inputs that arrive while a turn is
// in flight fail with ErrBusy.
type Controller struct {
	Deps
	cfg Config
	id  uuid.UUID
	now func() time.Time

	mu         sync.Mutex
	state      State
	history    *Buffer
	settings   model.SessionSettings
	theme      string
	stats      model.SessionStats
	micGranted bool
	playback   Playback
}

func NewController(deps Deps, cfg Config) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = local.Eng
	}
	id := uuid.New()
	deps.Logger = deps.Logger.With(slog.String("session", id.String()))
	c := &Controller{
		Deps:     deps,
		cfg:      cfg,
		id:       id,
		now:      time.Now,
		state:    StateIdle,
		history:  NewBuffer(cfg.HistoryLimit),
		settings: model.DefaultSessionSettings(),
		theme:    ThemeLight,
	}
	c.stats = model.NewSessionStats(c.now())
	return c
}

// Start loads the stored preferences once. Storage problems are logged and
// the defaults are kept.
func (c *Controller) Start(ctx context.Context) {
	prefs, err := loadPreferences(ctx, c.Store)
	if err != nil {
		c.Logger.WarnContext(ctx, "failed to load some preferences", slog.Any("error", err))
	}
	c.mu.Lock()
	c.settings = prefs.Settings
	c.theme = prefs.Theme
	c.stats = model.NewSessionStats(c.now())
	c.mu.Unlock()
	c.Renderer.ShowState(StateIdle)
}

func (c *Controller) ID() uuid.UUID {
	return c.id
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Settings() model.SessionSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) Theme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

func (c *Controller) Stats() model.SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) History() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Messages()
}

// UpdateSettings normalizes and applies settings; they take effect on the
// next turn. Persisting is best effort.
func (c *Controller) UpdateSettings(ctx context.Context, settings model.SessionSettings) model.SessionSettings {
	settings = settings.Normalize()
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
	if err := saveSettings(ctx, c.Store, settings); err != nil {
		c.Logger.WarnContext(ctx, "failed to save settings", slog.Any("error", err))
	}
	return settings
}

func (c *Controller) SetTheme(ctx context.Context, theme string) error {
	theme, ok := ParseTheme(theme)
	if !ok {
		return ErrUnknownTheme
	}
	c.mu.Lock()
	c.theme = theme
	c.mu.Unlock()
	if err := c.Store.Set(ctx, KeyTheme, theme); err != nil {
		c.Logger.WarnContext(ctx, "failed to save theme", slog.Any("error", err))
	}
	return nil
}

func (c *Controller) ToggleTheme(ctx context.Context) string {
	next := ThemeDark
	if c.Theme() == ThemeDark {
		next = ThemeLight
	}
	_ = c.SetTheme(ctx, next)
	return next
}

// SubmitText runs a full turn for typed input and returns the assistant's
// reply.
func (c *Controller) SubmitText(ctx context.Context, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if err := c.begin(StateIdle, StateAwaitingReply); err != nil {
		return model.Message{}, err
	}
	return c.runTurn(ctx, text, false, typedAccuracy)
}

// MicDown asks for microphone access once per session and starts capturing.
func (c *Controller) MicDown(ctx context.Context) error {
	if err := c.begin(StateIdle, StateRecording); err != nil {
		return err
	}
	c.mu.Lock()
	granted := c.micGranted
	c.mu.Unlock()

	if !granted {
		if err := c.Platform.RequestMicrophone(ctx); err != nil {
			return c.captureFailed(ctx, err)
		}
		c.mu.Lock()
		c.micGranted = true
		c.mu.Unlock()
	}
	if err := c.Platform.StartCapture(ctx); err != nil {
		return c.captureFailed(ctx, err)
	}
	return nil
}

// MicUp finishes the capture and runs the voice turn.
func (c *Controller) MicUp(ctx context.Context) (model.Message, error) {
	if err := c.begin(StateRecording, StateTranscribing); err != nil {
		return model.Message{}, err
	}
	rec, err := c.Platform.StopCapture(ctx)
	if err != nil {
		return model.Message{}, c.captureFailed(ctx, err)
	}
	return c.voiceTurn(ctx, rec)
}

// SubmitRecording runs a voice turn for audio captured elsewhere, such as a
// chat app's voice note.
func (c *Controller) SubmitRecording(ctx context.Context, rec Recording) (model.Message, error) {
	if err := c.begin(StateIdle, StateTranscribing); err != nil {
		return model.Message{}, err
	}
	return c.voiceTurn(ctx, rec)
}

// Replay speaks text again, typically an earlier assistant message.
func (c *Controller) Replay(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := c.begin(StateIdle, StateSpeaking); err != nil {
		return err
	}
	c.speak(ctx, text)
	c.setState(StateIdle)
	return nil
}

// StopPlayback releases the playback slot.
func (c *Controller) StopPlayback() {
	c.mu.Lock()
	playback := c.playback
	c.playback = nil
	c.mu.Unlock()
	if playback != nil {
		playback.Stop()
	}
}

func (c *Controller) voiceTurn(ctx context.Context, rec Recording) (model.Message, error) {
	if len(rec.Data) == 0 {
		return model.Message{}, c.captureFailed(ctx, ErrEmptyRecording)
	}

	text, accuracy, err := c.transcribe(ctx, rec)
	if err != nil {
		c.Logger.WarnContext(ctx, "voice turn failed", slog.Any("error", err))
		c.Renderer.ShowNotice(textNoTranscript.Text(c.cfg.Language))
		c.setState(StateIdle)
		return model.Message{}, err
	}
	if err = c.transition(StateAwaitingReply); err != nil {
		return model.Message{}, err
	}
	return c.runTurn(ctx, text, true, accuracy)
}

// transcribe tries the transcription relay, then the platform's own
// recognizer exactly once.
func (c *Controller) transcribe(ctx context.Context, rec Recording) (string, float64, error) {
	result, relayErr := c.Relays.Transcribe(
		ctx, model.TranscriptionRequest{
			Audio:       rec.Data,
			Filename:    rec.Filename,
			ContentType: rec.ContentType,
		},
	)
	if relayErr == nil && strings.TrimSpace(result.Text) != "" {
		c.Renderer.ShowFeedback(result)
		return strings.TrimSpace(result.Text), result.Confidence, nil
	}
	if relayErr == nil {
		relayErr = ErrNoTranscript
	}
	c.Logger.InfoContext(ctx, "transcription relay failed, trying native recognition", slog.Any("error", relayErr))

	transcript, err := c.Platform.NativeTranscribe(ctx, rec)
	if err != nil {
		return "", 0, fmt.Errorf("%w: relay: %w, native: %w", ErrNoTranscript, relayErr, err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return "", 0, fmt.Errorf("%w: relay: %w, native: empty result", ErrNoTranscript, relayErr)
	}
	return strings.TrimSpace(transcript.Text), transcript.Confidence, nil
}

// runTurn expects the controller to be in awaiting-reply.
func (c *Controller) runTurn(ctx context.Context, text string, isVoice bool, accuracy float64) (model.Message, error) {
	userMsg := model.NewUserMessage(text, isVoice, c.now())

	c.mu.Lock()
	_ = c.history.Append(userMsg)
	c.stats.Record(text, accuracy)
	req := model.ChatRequest{
		Messages:      c.history.Messages(),
		Model:         c.cfg.Model,
		UserLevel:     string(c.settings.ProficiencyLevel),
		LearningFocus: string(c.settings.LearningFocus),
		SessionData:   c.sessionDataLocked(),
		IsVoiceInput:  isVoice,
	}
	c.mu.Unlock()
	c.Renderer.ShowMessage(userMsg)

	resp, err := c.chat(ctx, req)
	if err != nil {
		c.Logger.ErrorContext(ctx, "chat relay failed", slog.Any("error", err))
		c.Renderer.ShowNotice(textChatFailed.Text(c.cfg.Language))
		c.setState(StateIdle)
		return model.Message{}, fmt.Errorf("failed to get reply: %w", err)
	}

	reply := model.NewAssistantMessage(resp.Message, c.now())
	c.mu.Lock()
	_ = c.history.Append(reply)
	c.mu.Unlock()
	c.Renderer.ShowMessage(reply)

	if err = c.transition(StateSpeaking); err != nil {
		return reply, err
	}
	c.speak(ctx, reply.Content)
	c.setState(StateIdle)
	return reply, nil
}

// chat keeps the typing indicator up for exactly the relay call.
func (c *Controller) chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	c.Renderer.ShowTyping(true)
	defer c.Renderer.ShowTyping(false)
	return c.Relays.Chat(ctx, req)
}

// speak synthesizes text through the relay and falls back to the platform's
// own voice. Failure here never fails the turn.
func (c *Controller) speak(ctx context.Context, text string) {
	settings := c.Settings()
	speed := settings.SpeechRate
	audio, err := c.Relays.Speak(
		ctx, model.SpeechRequest{
			Text:  text,
			Voice: settings.VoiceID,
			Speed: &speed,
		},
	)
	if err == nil {
		err = c.play(
			func() (Playback, error) {
				return c.Platform.Play(ctx, audio)
			},
		)
		if err == nil {
			return
		}
	}
	c.Logger.InfoContext(ctx, "speech relay failed, trying native speech", slog.Any("error", err))

	if err = c.play(
		func() (Playback, error) {
			return c.Platform.Speak(ctx, text)
		},
	); err != nil {
		c.Logger.WarnContext(ctx, "speech unavailable", slog.Any("error", err))
		c.Renderer.ShowNotice(textSpeechFailed.Text(c.cfg.Language))
	}
}

// play stops whatever is playing before the new clip takes the slot.
func (c *Controller) play(start func() (Playback, error)) error {
	c.StopPlayback()
	playback, err := start()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.playback = playback
	c.mu.Unlock()
	return nil
}

func (c *Controller) captureFailed(ctx context.Context, err error) error {
	c.Logger.WarnContext(ctx, "voice capture failed", slog.Any("error", err))
	c.Renderer.ShowNotice(captureGuidance(err).Text(c.cfg.Language))
	c.setState(StateIdle)
	return err
}

func (c *Controller) sessionDataLocked() map[string]any {
	return map[string]any{
		"sessionId":         c.id.String(),
		"messagesSent":      c.stats.MessagesSent,
		"wordsPracticed":    c.stats.WordsPracticed,
		"accuracyScore":     math.Round(c.stats.AccuracyScore()*100) / 100,
		"durationMinutes":   int(c.stats.Elapsed(c.now()).Minutes()),
		"feedbackVerbosity": string(c.settings.FeedbackVerbosity),
	}
}

// begin atomically moves from one state to the next, or reports ErrBusy when
// the controller is elsewhere.
func (c *Controller) begin(from, to State) error {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = to
	c.mu.Unlock()
	c.Renderer.ShowState(to)
	return nil
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.state = StateIdle
		c.mu.Unlock()
		c.Renderer.ShowState(StateIdle)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	c.state = to
	c.mu.Unlock()
	c.Renderer.ShowState(to)
	return nil
}

func (c *Controller) setState(to State) {
	if err := c.transition(to); err != nil {
		c.Logger.Error("unexpected state transition", slog.Any("error", err))
	}
}
