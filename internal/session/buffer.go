package session

import (
	"errors"

	"github.com/iamvkosarev/hablaya/internal/model"
)

const DefaultHistoryLimit = 10

var ErrSystemMessage = errors.New("system messages are not stored in history")

// Buffer is a bounded FIFO of conversation messages, oldest first. The system
// prompt never lives here; the chat relay injects it per call.
type Buffer struct {
	limit    int
	messages []model.Message
}

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Buffer{
		limit:    limit,
		messages: make([]model.Message, 0, limit),
	}
}

// Append adds msg and evicts the oldest entries beyond the limit.
func (b *Buffer) Append(msg model.Message) error {
	if msg.Role == model.RoleSystem {
		return ErrSystemMessage
	}
	b.messages = append(b.messages, msg)
	if overflow := len(b.messages) - b.limit; overflow > 0 {
		b.messages = append(b.messages[:0], b.messages[overflow:]...)
	}
	return nil
}

// Messages returns a copy safe to hand to a relay.
func (b *Buffer) Messages() []model.Message {
	out := make([]model.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *Buffer) Len() int {
	return len(b.messages)
}

func (b *Buffer) Limit() int {
	return b.limit
}
