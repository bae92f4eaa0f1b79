package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
)

// SystemDirective instructs the model on the single-round retrieval
// protocol, the no-fabrication fallback, and the answer format.
const SystemDirective = `You are a helpful assistant that searches the user's notes.
For each user message, call the tool exactly once:
- Use findRelevantNotes(query) to fetch the latest data.
- Prefer fresh tool results over anything said earlier in the chat.
- After receiving tool results, provide a final answer; do not call the tool again in the same turn.
If the requested information is not available in the tool results, reply: "Sorry, I can't find that information in your notes".
Use concise markdown. Link to notes using relative URLs: '/notes?noteId=<note-id>'.`

// FallbackAnswer is the fixed sentence the directive mandates when the
// requested information is absent from the tool results.
const FallbackAnswer = "Sorry, I can't find that information in your notes"

// Orchestrator runs one chat turn: it walks the generation engine
// through the Generating → ToolExecuting → Generating sequence, enforces
// the at-most-one retrieval call itself rather than trusting the
// directive, and emits the ordered event stream.
//
// Orchestrator is stateless across turns; each Run carries its own
// state and turns share nothing mutable.
type Orchestrator struct {
	engine Engine
	tool   *FinderTool
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(engine Engine, tool *FinderTool, logger *slog.Logger) (*Orchestrator, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if tool == nil {
		return nil, fmt.Errorf("finder tool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{engine: engine, tool: tool, logger: logger}, nil
}

// Run executes one turn over the caller-supplied history, scoped to
// ownerID, emitting events until a terminal done or error event. The
// returned error is for operator logging; everything the caller sees
// has already been emitted.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, history []Message, emit EmitFunc) error {
	messages := ToModelMessages(Window(history, HistoryWindow))

	streamText := func(ctx context.Context, text string) error {
		return emit(Event{Kind: KindTextDelta, Data: TextDelta{Text: text}})
	}

	// First pass: the retrieval tool is on offer; tool requests come
	// back to us instead of being auto-executed.
	res, err := o.engine.Generate(ctx, &GenerateRequest{
		System:    SystemDirective,
		Messages:  messages,
		OfferTool: true,
	}, streamText)
	if err != nil {
		return o.fail(ctx, emit, err)
	}

	if len(res.ToolRequests) == 0 {
		return o.finish(emit)
	}

	req := res.ToolRequests[0]
	if len(res.ToolRequests) > 1 {
		o.logger.Warn("model requested multiple tool calls, ignoring extras",
			"requested", len(res.ToolRequests))
	}
	if req.Name != FindNotesToolName {
		return o.fail(ctx, emit, fmt.Errorf("%w: unknown tool %q", ErrInvalidToolArgument, req.Name))
	}

	args, err := o.tool.ParseArgs(req.Input)
	if err != nil {
		return o.fail(ctx, emit, err)
	}

	// Announce the call before it resolves so the caller is not silent
	// during retrieval latency.
	if err := emit(Event{Kind: KindToolCallStarted, Data: ToolCallStarted{
		Tool:  FindNotesToolName,
		Query: args.Query,
	}}); err != nil {
		return err
	}

	notes := o.tool.Find(ctx, args.Query, ownerID)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := emit(Event{Kind: KindToolResult, Data: ToolResult{
		Tool:  FindNotesToolName,
		Notes: notes,
	}}); err != nil {
		return err
	}

	// Inject the request/response pair and generate the final answer.
	// The tool is not offered again: the single-call rule is enforced
	// here, not just in the directive.
	modelParts := []*ai.Part{}
	if res.Text != "" {
		modelParts = append(modelParts, ai.NewTextPart(res.Text))
	}
	modelParts = append(modelParts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: req})

	messages = append(messages,
		&ai.Message{Role: ai.RoleModel, Content: modelParts},
		&ai.Message{Role: ai.RoleTool, Content: []*ai.Part{{
			Kind: ai.PartToolResponse,
			ToolResponse: &ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: notes,
			},
		}}},
	)

	if _, err := o.engine.Generate(ctx, &GenerateRequest{
		System:    SystemDirective,
		Messages:  messages,
		OfferTool: false,
	}, streamText); err != nil {
		return o.fail(ctx, emit, err)
	}

	return o.finish(emit)
}

// finish emits the terminal done event.
func (o *Orchestrator) finish(emit EmitFunc) error {
	return emit(Event{Kind: KindDone, Data: DoneData{}})
}

// fail logs the failure and emits the terminal error event with a
// non-sensitive message. Once a stream is open the status cannot
// change, so the error event is the only outcome signal.
func (o *Orchestrator) fail(ctx context.Context, emit EmitFunc, err error) error {
	if ctx.Err() != nil {
		// Caller is gone; nothing can be delivered.
		return err
	}

	o.logger.Error("chat turn failed", "error", err)

	msg := "Something went wrong while generating the answer."
	if errors.Is(err, ErrInvalidToolArgument) {
		msg = "The model produced an invalid retrieval request."
	}
	if emitErr := emit(Event{Kind: KindError, Data: ErrorData{Message: msg}}); emitErr != nil {
		return err
	}
	return err
}
