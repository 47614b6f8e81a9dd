package openaitools

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const fallbackEncoding = "cl100k_base"

// CountToken estimates the prompt token count of messages for the given
// model, following the OpenAI cookbook accounting.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	tkm, err := encodingFor(model)
	if err != nil {
		return 0, err
	}

	tokensPerMessage, tokensPerName := 3, 1
	if strings.HasPrefix(model, "gpt-3.5-turbo-0301") {
		tokensPerMessage, tokensPerName = 4, -1
	}

	var tokens int
	for _, message := range messages {
		tokens += tokensPerMessage
		tokens += len(tkm.Encode(message.Content, nil, nil))
		tokens += len(tkm.Encode(message.Role, nil, nil))
		if message.Name != "" {
			tokens += len(tkm.Encode(message.Name, nil, nil))
			tokens += tokensPerName
		}
	}
	// every reply is primed with <|start|>assistant<|message|>
	tokens += 3
	return tokens, nil
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return tkm, nil
	}
	tkm, err = tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
	}
	return tkm, nil
}
