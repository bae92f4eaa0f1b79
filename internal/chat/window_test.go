package chat

import (
	"fmt"
	"testing"
)

func makeHistory(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs[i] = Message{Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return msgs
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		histLen   int
		limit     int
		wantLen   int
		wantFirst string
	}{
		{name: "empty history", histLen: 0, limit: 10, wantLen: 0},
		{name: "shorter than limit", histLen: 3, limit: 10, wantLen: 3, wantFirst: "message 0"},
		{name: "exactly at limit", histLen: 10, limit: 10, wantLen: 10, wantFirst: "message 0"},
		{name: "one over limit", histLen: 11, limit: 10, wantLen: 10, wantFirst: "message 1"},
		{name: "far over limit", histLen: 25, limit: 10, wantLen: 10, wantFirst: "message 15"},
		{name: "zero limit", histLen: 5, limit: 0, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := makeHistory(tt.histLen)
			got := Window(history, tt.limit)
			if len(got) != tt.wantLen {
				t.Fatalf("Window() len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Content != tt.wantFirst {
				t.Errorf("Window() first = %q, want %q", got[0].Content, tt.wantFirst)
			}
			// Always the trailing slice: last element is preserved.
			if tt.wantLen > 0 && got[len(got)-1].Content != history[len(history)-1].Content {
				t.Errorf("Window() last = %q, want %q", got[len(got)-1].Content, history[len(history)-1].Content)
			}
		})
	}
}

func TestWindow_DoesNotMutate(t *testing.T) {
	history := makeHistory(15)
	want := history[3].Content
	_ = Window(history, 10)
	if history[3].Content != want {
		t.Error("Window() mutated its input")
	}
	if len(history) != 15 {
		t.Errorf("Window() changed input length to %d", len(history))
	}
}
