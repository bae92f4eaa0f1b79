package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnote/quill/internal/note"
	"github.com/quillnote/quill/internal/testutil"
)

// engineRound scripts one Generate call of the fake engine.
type engineRound struct {
	deltas []string
	result *GenerateResult
	err    error // returned after streaming deltas
}

type fakeEngine struct {
	rounds []engineRound
	reqs   []*GenerateRequest
}

func (f *fakeEngine) Generate(ctx context.Context, req *GenerateRequest, stream StreamFunc) (*GenerateResult, error) {
	f.reqs = append(f.reqs, req)
	if len(f.rounds) == 0 {
		return &GenerateResult{}, nil
	}
	r := f.rounds[0]
	f.rounds = f.rounds[1:]

	for _, d := range r.deltas {
		if stream != nil {
			if err := stream(ctx, d); err != nil {
				return nil, err
			}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &GenerateResult{Text: strings.Join(r.deltas, "")}, nil
}

func newTestOrchestrator(t *testing.T, engine Engine, finder Finder) *Orchestrator {
	t.Helper()
	tool := newTestFinderTool(t, finder)
	o, err := NewOrchestrator(engine, tool, testutil.DiscardLogger())
	require.NoError(t, err)
	return o
}

// collector records emitted events in order.
type collector struct {
	events  []Event
	failAt  int // emit call index (1-based) that fails; 0 = never
	calls   int
	failErr error
}

func (c *collector) emit(e Event) error {
	c.calls++
	if c.failAt > 0 && c.calls >= c.failAt {
		if c.failErr == nil {
			c.failErr = errors.New("client disconnected")
		}
		return c.failErr
	}
	c.events = append(c.events, e)
	return nil
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// assertStreamInvariants checks the ordering contract: at most one
// tool-call-started event, exactly one terminal event, terminal last.
func assertStreamInvariants(t *testing.T, events []Event) {
	t.Helper()

	require.NotEmpty(t, events, "a turn must emit at least a terminal event")

	toolStarts, terminals := 0, 0
	for i, e := range events {
		switch e.Kind {
		case KindToolCallStarted:
			toolStarts++
		case KindDone, KindError:
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.LessOrEqual(t, toolStarts, 1, "at most one tool-call-started per turn")
	assert.Equal(t, 1, terminals, "exactly one terminal event per turn")
}

func userHistory(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

func TestOrchestrator_PlainAnswer(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{
		{deltas: []string{"Hello ", "there"}},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{}

	err := o.Run(context.Background(), "alice", userHistory("hi"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{KindTextDelta, KindTextDelta, KindDone}, kinds(c.events))
	assertStreamInvariants(t, c.events)

	require.Len(t, engine.reqs, 1, "no tool request means a single pass")
	assert.True(t, engine.reqs[0].OfferTool, "first pass offers the tool")
	assert.Equal(t, SystemDirective, engine.reqs[0].System)
}

func TestOrchestrator_ToolFlow(t *testing.T) {
	grocery := &note.Note{ID: uuid.New(), Title: "Groceries", Body: "milk, eggs"}
	finder := &stubFinder{notes: []*note.Note{grocery}}

	engine := &fakeEngine{rounds: []engineRound{
		{result: &GenerateResult{ToolRequests: []*ai.ToolRequest{{
			Name:  FindNotesToolName,
			Ref:   "call-1",
			Input: map[string]any{"query": "grocery note"},
		}}}},
		{deltas: []string{"Your groceries: milk, eggs. ", "See /notes?noteId=" + grocery.ID.String()}},
	}}
	o := newTestOrchestrator(t, engine, finder)
	c := &collector{}

	err := o.Run(context.Background(), "alice", userHistory("what's in my grocery note?"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		KindToolCallStarted, KindToolResult, KindTextDelta, KindTextDelta, KindDone,
	}, kinds(c.events))
	assertStreamInvariants(t, c.events)

	started := c.events[0].Data.(ToolCallStarted)
	assert.Equal(t, FindNotesToolName, started.Tool)
	assert.Equal(t, "grocery note", started.Query)

	result := c.events[1].Data.(ToolResult)
	require.Len(t, result.Notes, 1)
	assert.Equal(t, grocery.ID, result.Notes[0].ID)
	assert.Equal(t, "Groceries", result.Notes[0].Title)

	// Retrieval is owner-scoped on every call.
	require.Equal(t, []string{"alice"}, finder.owners)

	// Second pass: tool withheld, tool response injected into context.
	require.Len(t, engine.reqs, 2)
	assert.False(t, engine.reqs[1].OfferTool, "second pass must not re-offer the tool")
	last := engine.reqs[1].Messages[len(engine.reqs[1].Messages)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
}

func TestOrchestrator_EmptyRetrievalGivesFallback(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{
		{result: &GenerateResult{ToolRequests: []*ai.ToolRequest{{
			Name:  FindNotesToolName,
			Input: map[string]any{"query": "mortgage details"},
		}}}},
		{deltas: []string{FallbackAnswer}},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{}

	err := o.Run(context.Background(), "alice", userHistory("what's my mortgage rate?"), c.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		KindToolCallStarted, KindToolResult, KindTextDelta, KindDone,
	}, kinds(c.events))

	result := c.events[1].Data.(ToolResult)
	assert.Empty(t, result.Notes)

	delta := c.events[2].Data.(TextDelta)
	assert.Equal(t, FallbackAnswer, delta.Text)
}

func TestOrchestrator_RetrievalFailureDegrades(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{
		{result: &GenerateResult{ToolRequests: []*ai.ToolRequest{{
			Name:  FindNotesToolName,
			Input: map[string]any{"query": "anything"},
		}}}},
		{deltas: []string{FallbackAnswer}},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{err: errors.New("vector index offline")})
	c := &collector{}

	err := o.Run(context.Background(), "alice", userHistory("find anything"), c.emit)
	require.NoError(t, err, "retrieval failure is not a fatal turn failure")

	result := c.events[1].Data.(ToolResult)
	assert.NotNil(t, result.Notes)
	assert.Empty(t, result.Notes, "failed retrieval degrades to empty results")
	assert.Equal(t, KindDone, c.events[len(c.events)-1].Kind)
}

func TestOrchestrator_InvalidToolArgument(t *testing.T) {
	tests := []struct {
		name string
		req  *ai.ToolRequest
	}{
		{name: "empty query", req: &ai.ToolRequest{Name: FindNotesToolName, Input: map[string]any{"query": ""}}},
		{name: "missing query", req: &ai.ToolRequest{Name: FindNotesToolName, Input: map[string]any{}}},
		{name: "unknown tool", req: &ai.ToolRequest{Name: "dropAllNotes", Input: map[string]any{"query": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{rounds: []engineRound{
				{result: &GenerateResult{ToolRequests: []*ai.ToolRequest{tt.req}}},
			}}
			o := newTestOrchestrator(t, engine, &stubFinder{})
			c := &collector{}

			err := o.Run(context.Background(), "alice", userHistory("hi"), c.emit)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToolArgument)

			assert.Equal(t, []EventKind{KindError}, kinds(c.events),
				"invalid tool call fails the turn before any tool events")
			assertStreamInvariants(t, c.events)
			assert.Len(t, engine.reqs, 1, "no second pass after an invalid tool call")
		})
	}
}

func TestOrchestrator_MidStreamEngineFailure(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{
		{deltas: []string{"The answer ", "is "}, err: errors.New("model overloaded")},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{}

	err := o.Run(context.Background(), "alice", userHistory("hi"), c.emit)
	require.Error(t, err)

	// Delivered deltas stay delivered; the error event closes the stream.
	assert.Equal(t, []EventKind{KindTextDelta, KindTextDelta, KindError}, kinds(c.events))
	assertStreamInvariants(t, c.events)

	errData := c.events[2].Data.(ErrorData)
	assert.NotContains(t, errData.Message, "overloaded", "error event carries no internal detail")
}

func TestOrchestrator_WindowsHistory(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{{deltas: []string{"ok"}}}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{}

	err := o.Run(context.Background(), "alice", makeHistory(25), c.emit)
	require.NoError(t, err)

	require.Len(t, engine.reqs, 1)
	assert.Len(t, engine.reqs[0].Messages, HistoryWindow,
		"only the trailing window reaches the engine")
	assert.Equal(t, "message 15", engine.reqs[0].Messages[0].Text())
}

func TestOrchestrator_EmitFailureAbortsTurn(t *testing.T) {
	engine := &fakeEngine{rounds: []engineRound{
		{deltas: []string{"first", "second", "third"}},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{failAt: 2}

	err := o.Run(context.Background(), "alice", userHistory("hi"), c.emit)
	require.Error(t, err)

	// Only the first delta made it out; nothing follows a dead transport.
	assert.Equal(t, []EventKind{KindTextDelta}, kinds(c.events))
}

func TestOrchestrator_CancelledContextEmitsNothingFurther(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{rounds: []engineRound{
		{err: context.Canceled},
	}}
	o := newTestOrchestrator(t, engine, &stubFinder{})
	c := &collector{}

	err := o.Run(ctx, "alice", userHistory("hi"), c.emit)
	require.Error(t, err)
	assert.Empty(t, c.events, "no events after the caller is gone")
}
