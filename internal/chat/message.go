// Package chat implements the turn orchestration for the chat endpoint:
// history windowing, the single-round retrieval tool sequence, and the
// ordered event stream delivered to the transport layer.
package chat

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Message roles accepted in a chat request body.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn-unit of caller-supplied conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks that the message has a known role and non-empty content.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("unknown message role %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content is required")
	}
	return nil
}

// ToModelMessages converts caller history into model messages.
// Caller-supplied system messages are folded into the user role so the
// orchestrator's own directive remains the only system instruction.
func ToModelMessages(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}
