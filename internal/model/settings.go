package model

import (
	"math"
	"strings"

	"github.com/iamvkosarev/hablaya/pkg/proficiency"
	"github.com/iamvkosarev/hablaya/pkg/prompt"
)

type FeedbackVerbosity string

const (
	FeedbackMinimal  = FeedbackVerbosity("minimal")
	FeedbackBalanced = FeedbackVerbosity("balanced")
	FeedbackDetailed = FeedbackVerbosity("detailed")
)

const (
	DefaultVoice      = "nova"
	DefaultSpeechRate = 1.0
)

type SessionSettings struct {
	ProficiencyLevel  proficiency.Level `json:"proficiencyLevel"`
	LearningFocus     prompt.Focus      `json:"learningFocus"`
	FeedbackVerbosity FeedbackVerbosity `json:"feedbackVerbosity"`
	VoiceID           string            `json:"voiceId"`
	SpeechRate        float64           `json:"speechRate"`
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		ProficiencyLevel:  proficiency.LevelAuto,
		LearningFocus:     prompt.FocusConversation,
		FeedbackVerbosity: FeedbackBalanced,
		VoiceID:           DefaultVoice,
		SpeechRate:        DefaultSpeechRate,
	}
}

func ParseFeedbackVerbosity(s string) (FeedbackVerbosity, bool) {
	switch v := FeedbackVerbosity(strings.ToLower(strings.TrimSpace(s))); v {
	case FeedbackMinimal, FeedbackBalanced, FeedbackDetailed:
		return v, true
	default:
		return "", false
	}
}

// Normalize replaces unknown or empty fields with their defaults.
func (s SessionSettings) Normalize() SessionSettings {
	def := DefaultSessionSettings()
	if _, ok := proficiency.ParseLevel(string(s.ProficiencyLevel)); !ok {
		s.ProficiencyLevel = def.ProficiencyLevel
	}
	if _, ok := prompt.ParseFocus(string(s.LearningFocus)); !ok {
		s.LearningFocus = def.LearningFocus
	}
	if _, ok := ParseFeedbackVerbosity(string(s.FeedbackVerbosity)); !ok {
		s.FeedbackVerbosity = def.FeedbackVerbosity
	}
	if s.VoiceID == "" {
		s.VoiceID = def.VoiceID
	}
	if math.IsNaN(s.SpeechRate) || math.IsInf(s.SpeechRate, 0) || s.SpeechRate <= 0 {
		s.SpeechRate = def.SpeechRate
	}
	return s
}
