package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quillnote/quill/internal/note"
	"github.com/quillnote/quill/internal/testutil"
)

// stubFinder is a canned Finder for orchestrator and tool tests.
type stubFinder struct {
	notes   []*note.Note
	err     error
	queries []string
	owners  []string
}

func (s *stubFinder) SearchRelevant(_ context.Context, query, ownerID string, _ int) ([]*note.Note, error) {
	s.queries = append(s.queries, query)
	s.owners = append(s.owners, ownerID)
	return s.notes, s.err
}

func newTestFinderTool(t *testing.T, f Finder) *FinderTool {
	t.Helper()
	tool, err := NewFinderTool(f, 5, time.Second, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewFinderTool() unexpected error: %v", err)
	}
	return tool
}

func TestNewFinderTool_NilFinder(t *testing.T) {
	_, err := NewFinderTool(nil, 5, time.Second, nil)
	if err == nil {
		t.Fatal("NewFinderTool(nil) expected error, got nil")
	}
}

func TestFinderToolParseArgs(t *testing.T) {
	tool := newTestFinderTool(t, &stubFinder{})

	tests := []struct {
		name      string
		input     any
		wantQuery string
		wantErr   bool
	}{
		{name: "valid", input: map[string]any{"query": "grocery list"}, wantQuery: "grocery list"},
		{name: "empty query", input: map[string]any{"query": ""}, wantErr: true},
		{name: "whitespace query", input: map[string]any{"query": "   "}, wantErr: true},
		{name: "missing query", input: map[string]any{}, wantErr: true},
		{name: "wrong type", input: map[string]any{"query": 42}, wantErr: true},
		{name: "not an object", input: "grocery list", wantErr: true},
		{name: "nil input", input: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := tool.ParseArgs(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseArgs() expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidToolArgument) {
					t.Errorf("ParseArgs() error = %v, want ErrInvalidToolArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseArgs() unexpected error: %v", err)
			}
			if args.Query != tt.wantQuery {
				t.Errorf("ParseArgs() query = %q, want %q", args.Query, tt.wantQuery)
			}
		})
	}
}

func TestFinderToolFind_DegradesOnFailure(t *testing.T) {
	tool := newTestFinderTool(t, &stubFinder{err: errors.New("database down")})

	notes := tool.Find(context.Background(), "anything", "alice")
	if notes == nil {
		t.Fatal("Find() returned nil, want empty slice")
	}
	if len(notes) != 0 {
		t.Errorf("Find() = %d notes, want 0", len(notes))
	}
}

func TestFinderToolFind_NilResultsBecomeEmpty(t *testing.T) {
	tool := newTestFinderTool(t, &stubFinder{notes: nil})

	notes := tool.Find(context.Background(), "anything", "alice")
	if notes == nil {
		t.Fatal("Find() returned nil, want empty slice")
	}
}

func TestFinderToolFind_PassesOwnerScope(t *testing.T) {
	f := &stubFinder{}
	tool := newTestFinderTool(t, f)

	tool.Find(context.Background(), "groceries", "alice")
	if len(f.owners) != 1 || f.owners[0] != "alice" {
		t.Errorf("Find() owners = %v, want [alice]", f.owners)
	}
	if len(f.queries) != 1 || f.queries[0] != "groceries" {
		t.Errorf("Find() queries = %v, want [groceries]", f.queries)
	}
}
