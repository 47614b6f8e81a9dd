package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/iamvkosarev/hablaya/pkg/annotate"
	"github.com/sashabaranov/go-openai"
)

const (
	ReasonNoAudioFile    = "No audio file provided"
	ReasonEmptyAudioFile = "Audio file is empty"
	ReasonAudioTooLarge  = "Audio file too large"
	MessageNoTranscript  = "No transcription text received from OpenAI"

	defaultAudioFilename = "recording.webm"
)

type TranscriptionUsecaseDeps struct {
	OpenAI *OpenAIUsecase
}

type TranscriptionUsecase struct {
	TranscriptionUsecaseDeps
	cfg config.Transcription
	now func() time.Time
}

func NewTranscriptionUsecase(deps TranscriptionUsecaseDeps, cfg config.Transcription) *TranscriptionUsecase {
	return &TranscriptionUsecase{
		TranscriptionUsecaseDeps: deps,
		cfg:                      cfg,
		now:                      time.Now,
	}
}

// Transcribe sends the recording to the provider and annotates the
// transcript. All input checks run before the provider is contacted.
func (t *TranscriptionUsecase) Transcribe(
	ctx context.Context,
	req model.TranscriptionRequest,
) (model.TranscriptionResult, error) {
	if len(req.Audio) == 0 {
		return model.TranscriptionResult{}, model.NewInputError(ReasonEmptyAudioFile)
	}
	if t.cfg.MaxUploadBytes > 0 && int64(len(req.Audio)) > t.cfg.MaxUploadBytes {
		return model.TranscriptionResult{}, &model.InputError{
			Reason:  ReasonAudioTooLarge,
			Details: fmt.Sprintf("Received %d bytes", len(req.Audio)),
			Limit:   int(t.cfg.MaxUploadBytes),
			Length:  len(req.Audio),
		}
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = t.cfg.DefaultLanguage
	}
	hint := strings.TrimSpace(req.Prompt)
	if hint == "" {
		hint = t.cfg.DefaultPrompt
	}
	filename := req.Filename
	if filename == "" {
		filename = defaultAudioFilename
	}

	resp, err := t.OpenAI.Transcribe(
		ctx, openai.AudioRequest{
			Model:    t.cfg.Model,
			FilePath: filename,
			Reader:   bytes.NewReader(req.Audio),
			Prompt:   hint,
			Language: language,
			Format:   openai.AudioResponseFormatJSON,
		},
	)
	if err != nil {
		return model.TranscriptionResult{}, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return model.TranscriptionResult{}, &model.UpstreamError{Op: "transcription", Message: MessageNoTranscript}
	}

	return model.TranscriptionResult{
		Text:                  resp.Text,
		Language:              language,
		Confidence:            t.cfg.DefaultConfidence,
		PronunciationAnalysis: annotate.Pronunciation(resp.Text),
		LearningSuggestions:   annotate.LearningSuggestions(resp.Text),
		Timestamp:             t.now().UTC(),
	}, nil
}
