package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// noteCols is the standard SELECT column list for scanNotes.
const noteCols = `id, owner_id, title, body, created_at`

// Store manages notes backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a note Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Create inserts a new note for the owner and returns it.
// The note is embedded from its title and body so relevance search can
// match on either. A single atomic INSERT: no partial notes are visible.
func (s *Store) Create(ctx context.Context, ownerID, title, body string) (*Note, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, fmt.Errorf("title length %d exceeds maximum %d", len(title), MaxTitleLength)
	}
	if len(body) > MaxBodyLength {
		return nil, fmt.Errorf("body length %d exceeds maximum %d", len(body), MaxBodyLength)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, title+"\n\n"+body)
	if err != nil {
		return nil, fmt.Errorf("embedding note: %w", err)
	}

	n := &Note{OwnerID: ownerID, Title: title, Body: body}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO notes (owner_id, title, body, embedding)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ownerID, title, body, vec,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}

	s.logger.Debug("created note", "id", n.ID, "owner", ownerID, "title_len", len(title))
	return n, nil
}

// List returns all notes for the owner, most recent first.
func (s *Store) List(ctx context.Context, ownerID string) ([]*Note, error) {
	if ownerID == "" {
		return []*Note{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+noteCols+`
		 FROM notes
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Get returns a single note by ID, owner-checked.
// Returns ErrNotFound if it does not exist, ErrForbidden for a foreign owner.
func (s *Store) Get(ctx context.Context, id uuid.UUID, ownerID string) (*Note, error) {
	n := &Note{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+noteCols+` FROM notes WHERE id = $1`,
		id,
	).Scan(&n.ID, &n.OwnerID, &n.Title, &n.Body, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting note %s: %w", id, err)
	}
	if n.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return n, nil
}

// Delete removes a note by ID. A single atomic DELETE that only matches
// when both id and owner agree; on zero rows affected the error is
// disambiguated into ErrNotFound vs ErrForbidden.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notes WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		var owner string
		lookupErr := s.pool.QueryRow(ctx,
			`SELECT owner_id FROM notes WHERE id = $1`,
			id,
		).Scan(&owner)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if lookupErr != nil {
			return fmt.Errorf("looking up note %s: %w", id, lookupErr)
		}
		return ErrForbidden
	}

	s.logger.Debug("deleted note", "id", id, "owner", ownerID)
	return nil
}

// SearchRelevant finds the notes most relevant to the query, strictly
// scoped to the owner. Results are ordered by cosine similarity descending;
// the similarity score itself is not exposed.
func (s *Store) SearchRelevant(ctx context.Context, query, ownerID string, topK int) ([]*Note, error) {
	if query == "" || ownerID == "" {
		return []*Note{}, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(query) > MaxSearchQueryLen {
		query = query[:MaxSearchQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return []*Note{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+noteCols+`
		 FROM notes
		 WHERE owner_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		ownerID, vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// scanNotes reads Note structs from pgx.Rows (standard column set).
func scanNotes(rows pgx.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		n := &Note{}
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return notes, nil
}
