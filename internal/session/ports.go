package session

import (
	"context"

	"github.com/iamvkosarev/hablaya/internal/model"
)

// Relays are the three remote round trips a turn makes.
type Relays interface {
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)
	Speak(ctx context.Context, req model.SpeechRequest) ([]byte, error)
	Transcribe(ctx context.Context, req model.TranscriptionRequest) (model.TranscriptionResult, error)
}

// Recording is one finished audio capture.
type Recording struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcript is a platform-native recognition result.
type Transcript struct {
	Text       string
	Confidence float64
}

// Playback is a running audio clip.
type Playback interface {
	Stop()
}

// Platform abstracts the capture and playback capabilities of the host.
// Implementations return ErrUnsupported for anything they cannot do.
type Platform interface {
	RequestMicrophone(ctx context.Context) error
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) (Recording, error)
	NativeTranscribe(ctx context.Context, rec Recording) (Transcript, error)
	// Play starts playback and returns without waiting for it to finish.
	Play(ctx context.Context, audio []byte) (Playback, error)
	// Speak uses the host's own speech synthesis.
	Speak(ctx context.Context, text string) (Playback, error)
}

type Renderer interface {
	ShowMessage(msg model.Message)
	ShowNotice(text string)
	ShowFeedback(result model.TranscriptionResult)
	ShowTyping(on bool)
	ShowState(state State)
}

// PreferenceStore is a string key-value store. Get returns
// model.ErrPreferenceNotFound for missing keys.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
