package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/sashabaranov/go-openai"
)

const (
	EmphasisModerate = "moderate"
	EmphasisStrong   = "strong"

	MinSpeechSpeed     = 0.25
	MaxSpeechSpeed     = 4.0
	DefaultSpeechSpeed = 1.0

	ReasonInvalidText = "Invalid text input"
	audioContentType  = "audio/mpeg"
)

var ErrSpeedNotFinite = errors.New("speed is not a finite number")

var speechVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

var keyWordPattern = regexp.MustCompile(`(?i)\b(important|key|essential|crucial|vital)\b`)

type SpeechUsecaseDeps struct {
	OpenAI *OpenAIUsecase
}

type SpeechUsecase struct {
	SpeechUsecaseDeps
	cfg          config.Speech
	defaultVoice string
}

func NewSpeechUsecase(deps SpeechUsecaseDeps, cfg config.Speech) *SpeechUsecase {
	defaultVoice := cfg.DefaultVoice
	if !IsSpeechVoice(defaultVoice) {
		defaultVoice = model.DefaultVoice
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 4096
	}
	return &SpeechUsecase{
		SpeechUsecaseDeps: deps,
		cfg:               cfg,
		defaultVoice:      defaultVoice,
	}
}

func IsSpeechVoice(voice string) bool {
	return slices.Contains(speechVoices, voice)
}

// ClampSpeed bounds speed to the range the provider accepts. NaN maps to
// the default speed.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return DefaultSpeechSpeed
	}
	return max(MinSpeechSpeed, min(MaxSpeechSpeed, speed))
}

// ParseSpeed reads a user-typed speed and clamps it. Non-finite values are
// rejected.
func ParseSpeed(s string) (float64, error) {
	speed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0, ErrSpeedNotFinite
	}
	return ClampSpeed(speed), nil
}

// PrepareText adds pause spacing after periods and commas and, for strong
// emphasis, wraps key vocabulary in emphasis markup.
func PrepareText(text, emphasis string) string {
	if emphasis == EmphasisStrong {
		text = keyWordPattern.ReplaceAllStringFunc(
			text, func(word string) string {
				return `<emphasis level="strong">` + strings.ToLower(word) + `</emphasis>`
			},
		)
	}
	text = strings.ReplaceAll(text, ".", "... ")
	return strings.ReplaceAll(text, ",", ", ")
}

// Synthesize validates req and returns the provider's audio stream along with
// the voice, speed and emphasis actually used.
func (s *SpeechUsecase) Synthesize(ctx context.Context, req model.SpeechRequest) (model.SpeechAudio, error) {
	if req.Text == "" {
		return model.SpeechAudio{}, model.NewInputError(ReasonInvalidText)
	}
	if length := utf8.RuneCountInString(req.Text); length > s.cfg.MaxTextLength {
		return model.SpeechAudio{}, &model.InputError{
			Reason:  fmt.Sprintf("Text too long (max %d characters)", s.cfg.MaxTextLength),
			Details: fmt.Sprintf("Received %d characters", length),
			Limit:   s.cfg.MaxTextLength,
			Length:  length,
		}
	}

	voice := req.Voice
	if !IsSpeechVoice(voice) {
		voice = s.defaultVoice
	}
	speed := DefaultSpeechSpeed
	if req.Speed != nil {
		speed = ClampSpeed(*req.Speed)
	}
	emphasis := req.Emphasis
	if emphasis != EmphasisStrong {
		emphasis = EmphasisModerate
	}

	resp, err := s.OpenAI.Speak(
		ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(s.cfg.Model),
			Input:          PrepareText(req.Text, emphasis),
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormatMp3,
			Speed:          speed,
		},
	)
	if err != nil {
		return model.SpeechAudio{}, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	return model.SpeechAudio{
		Body:        resp,
		ContentType: audioContentType,
		Voice:       voice,
		Speed:       speed,
		Emphasis:    emphasis,
	}, nil
}
