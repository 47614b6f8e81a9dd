package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/internal/session"
	in_memory "github.com/iamvkosarev/hablaya/internal/storage/in-memory"
	"github.com/iamvkosarev/hablaya/pkg/local"
)

type fakeBot struct {
	mu       sync.Mutex
	texts    []string
	audios   int
	actions  int
	fileURL  string
	fileErr  error
	updates  chan api.Update
	stopped  bool
	commands int
}

func (b *fakeBot) Send(c api.Chattable) (api.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch msg := c.(type) {
	case api.MessageConfig:
		b.texts = append(b.texts, msg.Text)
	case api.AudioConfig:
		b.audios++
	}
	return api.Message{}, nil
}

func (b *fakeBot) Request(c api.Chattable) (*api.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch c.(type) {
	case api.ChatActionConfig:
		b.actions++
	case api.SetMyCommandsConfig:
		b.commands++
	}
	return &api.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(string) (string, error) {
	return b.fileURL, b.fileErr
}

func (b *fakeBot) GetUpdatesChan(api.UpdateConfig) api.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.stopped = true
}

func (b *fakeBot) sentTexts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

type scriptedRelays struct {
	mu           sync.Mutex
	chatRequests []model.ChatRequest
	transcribed  []model.TranscriptionRequest
}

func (r *scriptedRelays) Chat(_ context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatRequests = append(r.chatRequests, req)
	last, _ := model.LastUserContent(req.Messages)
	return model.ChatResponse{Message: "Tutor: " + last}, nil
}

func (r *scriptedRelays) Speak(context.Context, model.SpeechRequest) ([]byte, error) {
	return []byte("mp3"), nil
}

func (r *scriptedRelays) Transcribe(_ context.Context, req model.TranscriptionRequest) (model.TranscriptionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribed = append(r.transcribed, req)
	return model.TranscriptionResult{
		Text:                "I am learning English",
		Confidence:          0.8,
		LearningSuggestions: []string{"Try expanding your response with more details"},
	}, nil
}

type telegramHarness struct {
	bot    *fakeBot
	relays *scriptedRelays
	store  *in_memory.PreferenceStorage
	tg     *TelegramUsecase
}

func newTelegramHarness(t *testing.T, cfg config.Telegram) *telegramHarness {
	t.Helper()
	h := &telegramHarness{
		bot:    &fakeBot{updates: make(chan api.Update, 1)},
		relays: &scriptedRelays{},
		store:  in_memory.NewPreferenceStorage(),
	}
	tg, err := NewTelegramUsecase(
		cfg, config.Session{HistoryLimit: 10}, TelegramUsecaseDeps{
			Bot:    h.bot,
			Relays: h.relays,
			Store:  h.store,
			Logger: discardLogger(),
		},
	)
	if err != nil {
		t.Fatalf("NewTelegramUsecase: %v", err)
	}
	h.tg = tg
	return h
}

// update builds an update from Bot API JSON so the test does not depend on
// the library's struct layout.
func update(t *testing.T, chatID int64, message string) api.Update {
	t.Helper()
	var msg map[string]any
	if err := json.Unmarshal([]byte(message), &msg); err != nil {
		t.Fatalf("bad message json: %v", err)
	}
	msg["message_id"] = 1
	msg["chat"] = map[string]any{"id": chatID, "type": "private"}
	raw, err := json.Marshal(map[string]any{"update_id": 1, "message": msg})
	if err != nil {
		t.Fatal(err)
	}
	var u api.Update
	if err = json.Unmarshal(raw, &u); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	return u
}

func command(t *testing.T, chatID int64, text string) api.Update {
	t.Helper()
	name, _, _ := strings.Cut(text, " ")
	raw, _ := json.Marshal(
		map[string]any{
			"text":     text,
			"entities": []map[string]any{{"type": "bot_command", "offset": 0, "length": len(name)}},
		},
	)
	return update(t, chatID, string(raw))
}

func TestTelegramUsecase_RegistersCommands(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	if h.bot.commands != 1 {
		t.Errorf("SetMyCommands sent %d times", h.bot.commands)
	}
}

func TestTelegramUsecase_TextTurn(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})

	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, `{"text":"I like football"}`)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(h.relays.chatRequests) != 1 {
		t.Fatalf("chat calls = %d", len(h.relays.chatRequests))
	}
	texts := h.bot.sentTexts()
	if len(texts) != 1 || texts[0] != "Tutor: I like football" {
		t.Errorf("texts = %q", texts)
	}
	if h.bot.audios != 1 {
		t.Errorf("audio replies = %d", h.bot.audios)
	}
	if h.bot.actions != 1 {
		t.Errorf("typing actions = %d", h.bot.actions)
	}
}

func TestTelegramUsecase_PrivateBotRejectsStrangers(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{IsNotPublic: true, AllowedTelegramID: []int64{7}})

	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, `{"text":"hello"}`)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if texts := h.bot.sentTexts(); len(texts) != 1 || texts[0] != MessageUserNoAccess {
		t.Errorf("texts = %q", texts)
	}
	if len(h.relays.chatRequests) != 0 {
		t.Error("stranger reached the chat relay")
	}

	if err := h.tg.HandleUpdate(context.Background(), update(t, 7, `{"text":"hello"}`)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(h.relays.chatRequests) != 1 {
		t.Error("allowed user was rejected")
	}
}

func TestTelegramUsecase_VoiceNote(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	files := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("OggS-voice-note"))
			},
		),
	)
	t.Cleanup(files.Close)
	h.bot.fileURL = files.URL + "/file/voice.oga"

	msg := `{"voice":{"file_id":"f1","file_unique_id":"u1","duration":2,"mime_type":"audio/ogg"}}`
	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, msg)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}

	if len(h.relays.transcribed) != 1 {
		t.Fatalf("transcribe calls = %d", len(h.relays.transcribed))
	}
	got := h.relays.transcribed[0]
	if string(got.Audio) != "OggS-voice-note" || got.Filename != "voice.ogg" || got.ContentType != "audio/ogg" {
		t.Errorf("transcription request = %+v", got)
	}
	if !h.relays.chatRequests[0].IsVoiceInput {
		t.Error("voice turn not flagged")
	}
	texts := h.bot.sentTexts()
	if len(texts) != 2 || !strings.HasPrefix(texts[0], `I heard: "I am learning English"`) {
		t.Fatalf("texts = %q", texts)
	}
	if !strings.Contains(texts[0], "Try expanding your response") {
		t.Errorf("suggestions missing: %q", texts[0])
	}
}

func TestTelegramUsecase_OversizedVoiceNote(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	h.tg.maxDownload = 8
	files := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("OggS-123456789"))
			},
		),
	)
	t.Cleanup(files.Close)
	h.bot.fileURL = files.URL + "/file/voice.oga"

	msg := `{"voice":{"file_id":"f1","file_unique_id":"u1","duration":2,"mime_type":"audio/ogg"}}`
	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, msg)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if texts := h.bot.sentTexts(); len(texts) != 1 || texts[0] != MessageFileTooLarge {
		t.Errorf("texts = %q", texts)
	}
	if len(h.relays.transcribed) != 0 {
		t.Error("truncated audio reached transcription")
	}
}

func TestTelegramUsecase_VoiceNoteAtLimit(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	h.tg.maxDownload = int64(len("OggS-voice-note"))
	files := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("OggS-voice-note"))
			},
		),
	)
	t.Cleanup(files.Close)
	h.bot.fileURL = files.URL + "/file/voice.oga"

	msg := `{"voice":{"file_id":"f1","file_unique_id":"u1","duration":2,"mime_type":"audio/ogg"}}`
	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, msg)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(h.relays.transcribed) != 1 || string(h.relays.transcribed[0].Audio) != "OggS-voice-note" {
		t.Errorf("transcribed = %+v", h.relays.transcribed)
	}
}

func TestTelegramUsecase_DownloadFailure(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	h.bot.fileErr = errors.New("file is too big")

	msg := `{"voice":{"file_id":"f1","file_unique_id":"u1","duration":2}}`
	if err := h.tg.HandleUpdate(context.Background(), update(t, 42, msg)); err == nil {
		t.Fatal("HandleUpdate() = nil")
	}
	if texts := h.bot.sentTexts(); len(texts) != 1 || texts[0] != MessageDownloadFailed {
		t.Errorf("texts = %q", texts)
	}
	if len(h.relays.transcribed) != 0 {
		t.Error("transcription attempted without audio")
	}
}

func TestTelegramUsecase_SettingsCommands(t *testing.T) {
	ctx := context.Background()
	h := newTelegramHarness(t, config.Telegram{})

	for _, text := range []string{"/level advanced", "/focus grammar", "/voice onyx", "/speed 9"} {
		if err := h.tg.HandleUpdate(ctx, command(t, 42, text)); err != nil {
			t.Fatalf("HandleUpdate(%s): %v", text, err)
		}
	}
	want := []string{"Level set to advanced", "Focus set to grammar", "Voice set to onyx", "Speech speed set to 4x"}
	if texts := h.bot.sentTexts(); strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("texts = %q", texts)
	}

	if err := h.tg.HandleUpdate(ctx, update(t, 42, `{"text":"hello"}`)); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	req := h.relays.chatRequests[0]
	if req.UserLevel != "advanced" || req.LearningFocus != "grammar" {
		t.Errorf("chat request = %q/%q", req.UserLevel, req.LearningFocus)
	}
	voice, err := h.store.Get(ctx, "telegram_42:"+session.KeyVoice)
	if err != nil || voice != "onyx" {
		t.Errorf("stored voice = %q, %v", voice, err)
	}
	if _, err = h.store.Get(ctx, session.KeyVoice); !errors.Is(err, model.ErrPreferenceNotFound) {
		t.Error("preferences written outside the chat namespace")
	}
}

func TestTelegramUsecase_InvalidSettingArguments(t *testing.T) {
	ctx := context.Background()
	h := newTelegramHarness(t, config.Telegram{})

	for _, text := range []string{"/level wizard", "/voice robot", "/speed fast", "/speed nan", "/unknown"} {
		if err := h.tg.HandleUpdate(ctx, command(t, 42, text)); err != nil {
			t.Fatalf("HandleUpdate(%s): %v", text, err)
		}
	}
	texts := h.bot.sentTexts()
	if len(texts) != 5 {
		t.Fatalf("texts = %q", texts)
	}
	if !strings.HasPrefix(texts[0], "Usage: /level auto|beginner") ||
		!strings.HasPrefix(texts[1], "Usage: /voice alloy") ||
		texts[2] != MessageSpeedUsage || texts[3] != MessageSpeedUsage ||
		texts[4] != MessageCommandUnknown {
		t.Errorf("texts = %q", texts)
	}
	if rate := h.tg.session(ctx, 42, local.Eng).Settings().SpeechRate; rate != model.DefaultSpeechRate {
		t.Errorf("SpeechRate = %v after rejected speeds, want %v", rate, model.DefaultSpeechRate)
	}
}

func TestTelegramUsecase_NewConversationAndStats(t *testing.T) {
	ctx := context.Background()
	h := newTelegramHarness(t, config.Telegram{})

	_ = h.tg.HandleUpdate(ctx, update(t, 42, `{"text":"one two three"}`))
	_ = h.tg.HandleUpdate(ctx, command(t, 42, "/stats"))
	texts := h.bot.sentTexts()
	if stats := texts[len(texts)-1]; !strings.HasPrefix(stats, "Messages: 1\nWords practiced: 3\nAccuracy: 100%") {
		t.Errorf("stats = %q", stats)
	}

	_ = h.tg.HandleUpdate(ctx, command(t, 42, "/new"))
	_ = h.tg.HandleUpdate(ctx, update(t, 42, `{"text":"fresh start"}`))
	last := h.relays.chatRequests[len(h.relays.chatRequests)-1]
	if len(last.Messages) != 1 {
		t.Errorf("history after /new = %+v", last.Messages)
	}
}

func TestTelegramUsecase_Replay(t *testing.T) {
	ctx := context.Background()
	h := newTelegramHarness(t, config.Telegram{})

	_ = h.tg.HandleUpdate(ctx, command(t, 42, "/replay"))
	if texts := h.bot.sentTexts(); len(texts) != 1 || texts[0] != MessageNothingToReplay {
		t.Errorf("texts = %q", texts)
	}

	_ = h.tg.HandleUpdate(ctx, update(t, 42, `{"text":"hello"}`))
	_ = h.tg.HandleUpdate(ctx, command(t, 42, "/replay"))
	if h.bot.audios != 2 {
		t.Errorf("audio replies = %d, want 2", h.bot.audios)
	}
}

func TestTelegramUsecase_RunDrainsUpdates(t *testing.T) {
	h := newTelegramHarness(t, config.Telegram{})
	h.bot.updates <- update(t, 42, `{"text":"hello"}`)
	close(h.bot.updates)

	if err := h.tg.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.relays.chatRequests) != 1 {
		t.Errorf("chat calls = %d", len(h.relays.chatRequests))
	}
}

func TestFormatStatsLocalized(t *testing.T) {
	stats := model.SessionStats{MessagesSent: 2, WordsPracticed: 7, RunningAccuracySum: 2}
	got := formatStats(stats, time.Time{}, local.Spa)
	if !strings.HasPrefix(got, "Mensajes: 2\nPalabras practicadas: 7\nPrecisión: 100%") {
		t.Fatalf("spanish stats = %q", got)
	}
	got = formatStats(stats, time.Time{}, local.Eng)
	if !strings.HasPrefix(got, "Messages: 2\n") {
		t.Fatalf("english stats = %q", got)
	}
}
