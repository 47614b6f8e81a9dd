package client

import (
	"context"
	"fmt"
	"io"

	"github.com/iamvkosarev/hablaya/internal/model"
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

type LocalRelaysDeps struct {
	Chat          ChatRelay
	Speech        SpeechRelay
	Transcription TranscriptionRelay
}

// LocalRelays calls the relay usecases directly, for frontends that run in
// the same process as the provider gateway.
type LocalRelays struct {
	LocalRelaysDeps
}

func NewLocalRelays(deps LocalRelaysDeps) *LocalRelays {
	return &LocalRelays{LocalRelaysDeps: deps}
}

func (l *LocalRelays) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	return l.LocalRelaysDeps.Chat.Reply(ctx, req)
}

func (l *LocalRelays) Speak(ctx context.Context, req model.SpeechRequest) ([]byte, error) {
	audio, err := l.Speech.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	defer audio.Body.Close()
	data, err := io.ReadAll(audio.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return data, nil
}

func (l *LocalRelays) Transcribe(
	ctx context.Context,
	req model.TranscriptionRequest,
) (model.TranscriptionResult, error) {
	return l.Transcription.Transcribe(ctx, req)
}
