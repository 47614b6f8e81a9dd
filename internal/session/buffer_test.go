package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/iamvkosarev/hablaya/internal/model"
)

func TestBuffer_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	b := NewBuffer(10)
	for i := range 25 {
		if err := b.Append(model.Message{Role: model.RoleUser, Content: fmt.Sprint(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if b.Len() > b.Limit() {
			t.Fatalf("buffer grew to %d past limit %d", b.Len(), b.Limit())
		}
	}

	msgs := b.Messages()
	if len(msgs) != 10 {
		t.Fatalf("len = %d, want 10", len(msgs))
	}
	for i, msg := range msgs {
		if want := fmt.Sprint(15 + i); msg.Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestBuffer_RejectsSystemMessages(t *testing.T) {
	t.Parallel()

	b := NewBuffer(3)
	if err := b.Append(model.Message{Role: model.RoleSystem, Content: "prompt"}); !errors.Is(err, ErrSystemMessage) {
		t.Fatalf("Append(system) = %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d", b.Len())
	}
}

func TestBuffer_MessagesIsACopy(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0)
	if b.Limit() != DefaultHistoryLimit {
		t.Errorf("Limit = %d", b.Limit())
	}
	_ = b.Append(model.Message{Role: model.RoleUser, Content: "a"})
	msgs := b.Messages()
	msgs[0].Content = "changed"
	if b.Messages()[0].Content != "a" {
		t.Error("caller mutated the buffer")
	}
}
