package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModel provides deterministic model responses for testing. It matches
// the last user message against registered patterns (substring,
// case-insensitive, first match wins) and replays the configured behavior:
// plain streamed text, a tool request on the first pass followed by text
// once a tool response is present, or a mid-stream failure.
//
// Safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	rules    []modelRule
	fallback string
	calls    []ModelCall
}

type modelRule struct {
	pattern     string
	chunks      []string
	toolRequest *ai.ToolRequest
	err         error
}

// ModelCall records a single generate call for assertions.
type ModelCall struct {
	UserText        string
	ToolsOffered    []string
	HasToolResponse bool
}

// NewMockModel creates a mock model that answers fallback when no
// registered pattern matches.
func NewMockModel(fallback string) *MockModel {
	return &MockModel{fallback: fallback}
}

// AddTextResponse registers a pattern that streams the given chunks.
func (m *MockModel) AddTextResponse(pattern string, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), chunks: chunks})
}

// AddToolFlow registers a pattern that requests the given tool on the
// first pass. Once the conversation carries a tool response, the same
// pattern streams chunks instead.
func (m *MockModel) AddToolFlow(pattern string, req *ai.ToolRequest, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), toolRequest: req, chunks: chunks})
}

// FailAfter registers a pattern that streams the given chunks and then
// fails with err.
func (m *MockModel) FailAfter(pattern string, err error, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), chunks: chunks, err: err})
}

// Calls returns a copy of all recorded generate calls in order.
func (m *MockModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ModelCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Register registers the mock as a Genkit model named "mock/chat-model".
func (m *MockModel) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/chat-model", &ai.ModelOptions{
		Label: "Mock Chat Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	hasToolResponse := false
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleUser {
			userText = msg.Text()
		}
		if msg.Role == ai.RoleTool {
			hasToolResponse = true
		}
	}

	m.mu.Lock()
	var matched *modelRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	call := ModelCall{UserText: userText, HasToolResponse: hasToolResponse}
	for _, t := range req.Tools {
		call.ToolsOffered = append(call.ToolsOffered, t.Name)
	}
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	// First pass of a tool flow: answer with the tool request only.
	if matched != nil && matched.toolRequest != nil && !hasToolResponse {
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{
				Role: ai.RoleModel,
				Content: []*ai.Part{{
					Kind:        ai.PartToolRequest,
					ToolRequest: matched.toolRequest,
				}},
			},
		}, nil
	}

	chunks := []string{m.fallback}
	var failWith error
	if matched != nil {
		if len(matched.chunks) > 0 {
			chunks = matched.chunks
		}
		failWith = matched.err
	}

	for _, chunk := range chunks {
		if cb != nil {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(chunk)},
			}); err != nil {
				return nil, err
			}
		}
	}
	if failWith != nil {
		return nil, failWith
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(strings.Join(chunks, ""))},
		},
	}, nil
}

// MockEmbedder provides deterministic embedding vectors for testing.
// By default a vector is derived from the content via SHA-256; explicit
// mappings can be set for precise similarity control.
//
// Safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder producing vectors of dim elements.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

// SetVector pins an exact vector for the given content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Register registers the mock as a Genkit embedder named "mock/embedder".
func (e *MockEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/embedder", &ai.EmbedderOptions{
		Label:      "Mock Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(documentText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()
	return deterministicVector(content, e.dim)
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector derives a unit vector from content via SHA-256.
// The same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
