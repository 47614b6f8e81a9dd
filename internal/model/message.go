package model

import "time"

const (
	ModeText  = "text"
	ModeVoice = "voice"
)

type MessageMetadata struct {
	IsVoiceInput bool   `json:"isVoiceInput"`
	Mode         string `json:"mode,omitempty"`
}

// Message is immutable once appended to a conversation.
type Message struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp,omitzero"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

func NewUserMessage(content string, isVoiceInput bool, at time.Time) Message {
	mode := ModeText
	if isVoiceInput {
		mode = ModeVoice
	}
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: at,
		Metadata:  &MessageMetadata{IsVoiceInput: isVoiceInput, Mode: mode},
	}
}

func NewAssistantMessage(content string, at time.Time) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: at,
	}
}

// LastUserContent returns the content of the most recent user message.
func LastUserContent(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}
