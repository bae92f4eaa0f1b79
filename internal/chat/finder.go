package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/quillnote/quill/internal/note"
)

// FindNotesToolName is the retrieval tool name the model calls.
const FindNotesToolName = "findRelevantNotes"

// FindNotesToolDescription tells the model what the tool does.
const FindNotesToolDescription = "Find notes relevant to the user's query. " +
	"Searches the user's own notes by semantic similarity and returns " +
	"the matching notes with their id, title, body and creation time."

// ErrInvalidToolArgument indicates the generation engine produced a
// malformed tool call. The turn fails with an error event; no partial
// answer is fabricated.
var ErrInvalidToolArgument = errors.New("invalid tool argument")

// FindNotesArgs is the argument payload of a findRelevantNotes call.
type FindNotesArgs struct {
	Query string `json:"query"`
}

// Finder is the retrieval capability the orchestrator calls. Every call
// carries the owner scope; implementations must never return another
// owner's notes.
type Finder interface {
	SearchRelevant(ctx context.Context, query, ownerID string, topK int) ([]*note.Note, error)
}

// FinderTool adapts a Finder into the tool the orchestrator executes:
// argument validation, owner scoping, a bounded latency budget, and
// graceful degradation to an empty result list on retrieval failure.
type FinderTool struct {
	finder  Finder
	topK    int
	timeout time.Duration
	schema  *jsonschema.Resolved
	logger  *slog.Logger
}

// NewFinderTool creates a FinderTool. topK and timeout fall back to
// sensible defaults when zero.
func NewFinderTool(finder Finder, topK int, timeout time.Duration, logger *slog.Logger) (*FinderTool, error) {
	if finder == nil {
		return nil, fmt.Errorf("finder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	schema, err := jsonschema.For[FindNotesArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("building tool argument schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving tool argument schema: %w", err)
	}

	return &FinderTool{
		finder:  finder,
		topK:    topK,
		timeout: timeout,
		schema:  resolved,
		logger:  logger,
	}, nil
}

// ParseArgs validates a raw tool request payload against the argument
// schema and the non-empty query rule. Malformed payloads return
// ErrInvalidToolArgument.
func (f *FinderTool) ParseArgs(input any) (*FindNotesArgs, error) {
	if err := f.schema.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolArgument, err)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolArgument, err)
	}
	var args FindNotesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolArgument, err)
	}

	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("%w: query must be a non-empty string", ErrInvalidToolArgument)
	}
	return &args, nil
}

// Find executes the retrieval with a bounded latency budget. A failed
// or timed-out retrieval degrades to an empty result list so the model
// answers with the fixed fallback sentence instead of fabricating.
func (f *FinderTool) Find(ctx context.Context, query, ownerID string) []*note.Note {
	searchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	notes, err := f.finder.SearchRelevant(searchCtx, query, ownerID, f.topK)
	if err != nil {
		f.logger.Warn("note retrieval failed, continuing with empty results",
			"owner", ownerID, "error", err)
		return []*note.Note{}
	}
	if notes == nil {
		notes = []*note.Note{}
	}
	return notes
}

// Register defines the tool on the Genkit instance so the model sees
// its name and argument schema. The orchestrator asks the engine to
// return tool requests rather than run them, so this function body is
// never reached during a turn.
func (f *FinderTool) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, FindNotesToolName, FindNotesToolDescription,
		func(_ *ai.ToolContext, _ FindNotesArgs) ([]*note.Note, error) {
			return nil, errors.New("findRelevantNotes runs in the turn orchestrator")
		})
}
