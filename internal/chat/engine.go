package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// StreamFunc receives incremental text fragments as the engine produces
// them. Returning an error aborts generation.
type StreamFunc func(ctx context.Context, text string) error

// GenerateRequest is one stateless call to the generation engine.
type GenerateRequest struct {
	System    string
	Messages  []*ai.Message
	OfferTool bool // whether the retrieval tool is offered this pass
}

// GenerateResult is the engine's completed output for one pass.
type GenerateResult struct {
	Text         string
	ToolRequests []*ai.ToolRequest
}

// Engine abstracts the generation model so any provider can back the
// orchestrator. Implementations must tolerate concurrent calls from
// unrelated turns.
type Engine interface {
	Generate(ctx context.Context, req *GenerateRequest, stream StreamFunc) (*GenerateResult, error)
}

// GenkitEngine implements Engine on a Genkit model. Tool requests are
// returned to the caller instead of being auto-executed, which is what
// lets the orchestrator enforce the single-call rule itself.
type GenkitEngine struct {
	g         *genkit.Genkit
	modelName string
	tool      ai.Tool
	logger    *slog.Logger
}

// NewGenkitEngine creates a GenkitEngine for the provider-qualified
// model name (e.g. "googleai/gemini-2.5-flash").
func NewGenkitEngine(g *genkit.Genkit, modelName string, tool ai.Tool, logger *slog.Logger) (*GenkitEngine, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if tool == nil {
		return nil, fmt.Errorf("tool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitEngine{g: g, modelName: modelName, tool: tool, logger: logger}, nil
}

// Generate runs one model pass, forwarding text fragments to stream as
// they arrive.
func (e *GenkitEngine) Generate(ctx context.Context, req *GenerateRequest, stream StreamFunc) (*GenerateResult, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(e.modelName),
		ai.WithMessages(req.Messages...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if req.OfferTool {
		opts = append(opts,
			ai.WithTools(e.tool),
			ai.WithReturnToolRequests(true))
	}
	if stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return stream(ctx, text)
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	return &GenerateResult{
		Text:         resp.Text(),
		ToolRequests: resp.ToolRequests(),
	}, nil
}
