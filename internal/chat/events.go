package chat

import "github.com/quillnote/quill/internal/note"

// EventKind tags a stream event.
type EventKind string

// Stream event kinds, emitted in strict chronological order. A turn
// contains at most one tool-call-started event and exactly one terminal
// event (done or error), always last.
const (
	KindTextDelta       EventKind = "text-delta"
	KindToolCallStarted EventKind = "tool-call-started"
	KindToolResult      EventKind = "tool-result"
	KindError           EventKind = "error"
	KindDone            EventKind = "done"
)

// Event is one unit of the incremental output protocol. Data holds the
// kind-specific payload and must be JSON-serializable.
type Event struct {
	Kind EventKind
	Data any
}

// TextDelta carries one incremental text fragment.
type TextDelta struct {
	Text string `json:"text"`
}

// ToolCallStarted announces a retrieval call before it resolves, so the
// caller sees progress during retrieval latency.
type ToolCallStarted struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
}

// ToolResult carries the notes produced by a retrieval call.
type ToolResult struct {
	Tool  string       `json:"tool"`
	Notes []*note.Note `json:"notes"`
}

// ErrorData carries a non-sensitive failure message on the terminal
// error event.
type ErrorData struct {
	Message string `json:"message"`
}

// DoneData is the payload of the terminal done event.
type DoneData struct{}

// EmitFunc delivers one event to the transport. Returning an error
// aborts the turn; the orchestrator emits nothing further.
type EmitFunc func(Event) error
