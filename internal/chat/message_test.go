package chat

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{name: "user", msg: Message{Role: RoleUser, Content: "hi"}},
		{name: "assistant", msg: Message{Role: RoleAssistant, Content: "hello"}},
		{name: "system", msg: Message{Role: RoleSystem, Content: "be brief"}},
		{name: "unknown role", msg: Message{Role: "tool", Content: "x"}, wantErr: true},
		{name: "empty role", msg: Message{Content: "x"}, wantErr: true},
		{name: "empty content", msg: Message{Role: RoleUser}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToModelMessages(t *testing.T) {
	got := ToModelMessages([]Message{
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
		{Role: RoleSystem, Content: "note to self"},
	})
	if len(got) != 3 {
		t.Fatalf("ToModelMessages() len = %d, want 3", len(got))
	}
	if got[0].Role != ai.RoleUser || got[0].Text() != "question" {
		t.Errorf("message 0 = %s %q, want user %q", got[0].Role, got[0].Text(), "question")
	}
	if got[1].Role != ai.RoleModel || got[1].Text() != "answer" {
		t.Errorf("message 1 = %s %q, want model %q", got[1].Role, got[1].Text(), "answer")
	}
	// Caller system messages are demoted: only the directive speaks as system.
	if got[2].Role != ai.RoleUser {
		t.Errorf("message 2 role = %s, want user", got[2].Role)
	}
}
