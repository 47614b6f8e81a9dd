package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/iamvkosarev/hablaya/internal/model"
)

// echoRelays answers every chat with the last user message and records calls.
type echoRelays struct {
	mu sync.Mutex

	chatRequests []model.ChatRequest
	chatErr      error
	chatGate     chan struct{}

	speakRequests []model.SpeechRequest
	speakErr      error

	transcribeCalls  int
	transcribeResult model.TranscriptionResult
	transcribeErr    error
}

func (r *echoRelays) Chat(_ context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	r.mu.Lock()
	r.chatRequests = append(r.chatRequests, req)
	gate := r.chatGate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if r.chatErr != nil {
		return model.ChatResponse{}, r.chatErr
	}
	last, _ := model.LastUserContent(req.Messages)
	return model.ChatResponse{Message: "You said: " + last}, nil
}

func (r *echoRelays) Speak(_ context.Context, req model.SpeechRequest) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speakRequests = append(r.speakRequests, req)
	if r.speakErr != nil {
		return nil, r.speakErr
	}
	return []byte("mp3:" + req.Text), nil
}

func (r *echoRelays) Transcribe(_ context.Context, _ model.TranscriptionRequest) (model.TranscriptionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribeCalls++
	return r.transcribeResult, r.transcribeErr
}

type fakePlayback struct {
	name    string
	stopped bool
}

func (p *fakePlayback) Stop() {
	p.stopped = true
}

type fakePlatform struct {
	micRequests int
	micErr      error
	captureErr  error
	recording   Recording

	nativeCalls int
	native      Transcript
	nativeErr   error

	playErr   error
	speakErr  error
	playbacks []*fakePlayback
}

func (p *fakePlatform) RequestMicrophone(context.Context) error {
	p.micRequests++
	return p.micErr
}

func (p *fakePlatform) StartCapture(context.Context) error {
	return p.captureErr
}

func (p *fakePlatform) StopCapture(context.Context) (Recording, error) {
	return p.recording, nil
}

func (p *fakePlatform) NativeTranscribe(context.Context, Recording) (Transcript, error) {
	p.nativeCalls++
	return p.native, p.nativeErr
}

func (p *fakePlatform) Play(_ context.Context, audio []byte) (Playback, error) {
	if p.playErr != nil {
		return nil, p.playErr
	}
	pb := &fakePlayback{name: string(audio)}
	p.playbacks = append(p.playbacks, pb)
	return pb, nil
}

func (p *fakePlatform) Speak(_ context.Context, text string) (Playback, error) {
	if p.speakErr != nil {
		return nil, p.speakErr
	}
	pb := &fakePlayback{name: "native:" + text}
	p.playbacks = append(p.playbacks, pb)
	return pb, nil
}

type fakeRenderer struct {
	mu        sync.Mutex
	messages  []model.Message
	notices   []string
	feedback  []model.TranscriptionResult
	typing    []bool
	states    []State
	typingNow bool
}

func (r *fakeRenderer) ShowMessage(msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *fakeRenderer) ShowNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, text)
}

func (r *fakeRenderer) ShowFeedback(result model.TranscriptionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, result)
}

func (r *fakeRenderer) ShowTyping(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, on)
	r.typingNow = on
}

func (r *fakeRenderer) ShowState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

type mapStore struct {
	values map[string]string
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", model.ErrPreferenceNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

type harness struct {
	relays   *echoRelays
	platform *fakePlatform
	renderer *fakeRenderer
	store    *mapStore
	ctrl     *Controller
}

func newHarness(limit int) *harness {
	h := &harness{
		relays:   &echoRelays{},
		platform: &fakePlatform{},
		renderer: &fakeRenderer{},
		store:    newMapStore(),
	}
	h.ctrl = NewController(
		Deps{
			Relays:   h.relays,
			Platform: h.platform,
			Renderer: h.renderer,
			Store:    h.store,
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		}, Config{HistoryLimit: limit},
	)
	return h
}

var errBoom = errors.New("boom")
