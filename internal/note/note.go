// Package note implements the durable note store and the relevance search
// that backs the chat assistant's retrieval tool.
//
// Notes are owned: every read and write is scoped to an owner identity, and
// relevance search never crosses owner boundaries.
package note

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for note operations.
var (
	// ErrNotFound indicates the note does not exist.
	ErrNotFound = errors.New("note not found")

	// ErrForbidden indicates the note belongs to a different owner.
	ErrForbidden = errors.New("note access forbidden")
)

const (
	// VectorDimension is the embedding dimensionality stored in pgvector.
	// Must match the vector(768) column in the notes schema.
	VectorDimension int32 = 768

	// MaxTitleLength bounds note titles.
	MaxTitleLength = 500

	// MaxBodyLength bounds note bodies (64KB). Prevents runaway embedding
	// cost on ingestion.
	MaxBodyLength = 64_000

	// MaxTopK caps how many notes a single relevance search may return.
	MaxTopK = 10

	// MaxSearchQueryLen bounds the query text passed to the embedder.
	MaxSearchQueryLen = 2_000

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 10 * time.Second
)

// Note is one stored note. Ownership is immutable after creation.
type Note struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"-"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"creationTime"`
}
