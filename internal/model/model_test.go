package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/iamvkosarev/hablaya/pkg/proficiency"
	"github.com/iamvkosarev/hablaya/pkg/prompt"
)

func TestSessionStats(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	stats := NewSessionStats(start)
	if got := stats.AccuracyScore(); got != 0 {
		t.Errorf("AccuracyScore() on empty stats = %v, want 0", got)
	}

	stats.Record("I like green tea", 1)
	stats.Record("  we went   home ", 0.5)

	if stats.WordsPracticed != 7 {
		t.Errorf("WordsPracticed = %d, want 7", stats.WordsPracticed)
	}
	if stats.MessagesSent != 2 {
		t.Errorf("MessagesSent = %d, want 2", stats.MessagesSent)
	}
	if got := stats.AccuracyScore(); got != 0.75 {
		t.Errorf("AccuracyScore() = %v, want 0.75", got)
	}
	if got := stats.Elapsed(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Elapsed() = %v", got)
	}
}

func TestSessionSettings_Normalize(t *testing.T) {
	t.Parallel()

	got := SessionSettings{
		ProficiencyLevel: "wizard",
		LearningFocus:    prompt.FocusGrammar,
		VoiceID:          "",
		SpeechRate:       -2,
	}.Normalize()

	want := SessionSettings{
		ProficiencyLevel:  proficiency.LevelAuto,
		LearningFocus:     prompt.FocusGrammar,
		FeedbackVerbosity: FeedbackBalanced,
		VoiceID:           DefaultVoice,
		SpeechRate:        DefaultSpeechRate,
	}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}

	for _, rate := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got := SessionSettings{SpeechRate: rate}.Normalize()
		if got.SpeechRate != DefaultSpeechRate {
			t.Errorf("Normalize() SpeechRate for %v = %v, want %v", rate, got.SpeechRate, DefaultSpeechRate)
		}
	}
}

func TestMessage_JSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(NewAssistantMessage("hi", time.Time{}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "timestamp") || strings.Contains(string(raw), "metadata") {
		t.Errorf("zero fields should be omitted: %s", raw)
	}

	var m Message
	in := `{"role":"user","content":"hello","timestamp":"2026-01-01T10:00:00Z","metadata":{"isVoiceInput":true,"mode":"voice"}}`
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Role != RoleUser || m.Metadata == nil || !m.Metadata.IsVoiceInput || m.Timestamp.IsZero() {
		t.Errorf("unexpected message: %+v", m)
	}
}

func TestLastUserContent(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply 2"},
	}
	if got, ok := LastUserContent(msgs); !ok || got != "second" {
		t.Errorf("LastUserContent() = (%q, %v)", got, ok)
	}
	if _, ok := LastUserContent(msgs[1:2]); ok {
		t.Error("LastUserContent() found a user message in assistant-only history")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, r := range []string{"system", "user", "assistant"} {
		if _, ok := ParseRole(r); !ok {
			t.Errorf("ParseRole(%q) rejected", r)
		}
	}
	if _, ok := ParseRole("tool"); ok {
		t.Error("ParseRole(tool) accepted")
	}
}
