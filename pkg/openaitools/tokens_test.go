package openaitools

import (
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestCountToken(t *testing.T) {
	short := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hello"},
	}
	shortCount, err := CountToken(short, "gpt-4-turbo")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	if shortCount <= 3 {
		t.Fatalf("CountToken() = %d, want more than the reply primer", shortCount)
	}

	long := append(short, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: "practice makes perfect, practice makes perfect",
	})
	longCount, err := CountToken(long, "gpt-4-turbo")
	if err != nil {
		t.Fatalf("CountToken: %v", err)
	}
	if longCount <= shortCount {
		t.Errorf("CountToken grew from %d to %d, want more", shortCount, longCount)
	}
}

func TestCountTokenUnknownModel(t *testing.T) {
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hello"}}
	known, err := CountToken(messages, "gpt-4")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	unknown, err := CountToken(messages, "my-custom-model")
	if err != nil {
		t.Fatalf("unknown model should fall back: %v", err)
	}
	if unknown != known {
		t.Errorf("fallback count = %d, want %d", unknown, known)
	}
}
