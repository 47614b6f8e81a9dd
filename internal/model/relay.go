package model

import (
	"io"
	"time"

	"github.com/iamvkosarev/hablaya/pkg/annotate"
)

type ChatRequest struct {
	Messages      []Message      `json:"messages"`
	Model         string         `json:"model,omitempty"`
	UserLevel     string         `json:"userLevel,omitempty"`
	LearningFocus string         `json:"learningFocus,omitempty"`
	SessionData   map[string]any `json:"sessionData,omitempty"`
	IsVoiceInput  bool           `json:"isVoiceInput,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type ChatMetadata struct {
	Model         string     `json:"model"`
	DetectedLevel string     `json:"detectedLevel"`
	Focus         string     `json:"focus"`
	Timestamp     time.Time  `json:"timestamp"`
	Usage         TokenUsage `json:"usage"`
}

type ChatResponse struct {
	Message  string        `json:"message"`
	Metadata *ChatMetadata `json:"metadata,omitempty"`
}

type SpeechRequest struct {
	Text     string   `json:"text"`
	Voice    string   `json:"voice,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Emphasis string   `json:"emphasis,omitempty"`
}

// SpeechAudio is an upstream audio stream. Body must be closed by the
// consumer.
type SpeechAudio struct {
	Body        io.ReadCloser
	ContentType string
	Voice       string
	Speed       float64
	Emphasis    string
}

type TranscriptionRequest struct {
	Audio       []byte
	Filename    string
	ContentType string
	Language    string
	Prompt      string
}

type TranscriptionResult struct {
	Text                  string                         `json:"text"`
	Language              string                         `json:"language"`
	Confidence            float64                        `json:"confidence"`
	PronunciationAnalysis annotate.PronunciationAnalysis `json:"pronunciationAnalysis"`
	LearningSuggestions   []string                       `json:"learningSuggestions"`
	Timestamp             time.Time                      `json:"timestamp"`
}
