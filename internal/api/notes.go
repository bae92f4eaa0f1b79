package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillnote/quill/internal/note"
)

// maxNoteBodyBytes limits the note request body size.
const maxNoteBodyBytes = 256 << 10

// NoteStore is the storage surface the notes handlers need.
type NoteStore interface {
	Create(ctx context.Context, ownerID, title, body string) (*note.Note, error)
	List(ctx context.Context, ownerID string) ([]*note.Note, error)
	Get(ctx context.Context, id uuid.UUID, ownerID string) (*note.Note, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// notesHandler serves owner-scoped note CRUD.
type notesHandler struct {
	store  NoteStore
	auth   *authManager
	logger *slog.Logger
}

// createNoteRequest is the POST /api/notes body.
type createNoteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *notesHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.auth.requireOwner(w, r)
	if !ok {
		return
	}

	var req createNoteRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	n, err := h.store.Create(r.Context(), ownerID, req.Title, req.Body)
	if err != nil {
		h.logger.Warn("creating note", "owner", ownerID, "error", err)
		writeError(w, http.StatusBadRequest, "could not create note", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, n, h.logger)
}

func (h *notesHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.auth.requireOwner(w, r)
	if !ok {
		return
	}

	notes, err := h.store.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("listing notes", "owner", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list notes", h.logger)
		return
	}
	if notes == nil {
		notes = []*note.Note{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": notes}, h.logger)
}

func (h *notesHandler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.auth.requireOwner(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id", h.logger)
		return
	}

	n, err := h.store.Get(r.Context(), id, ownerID)
	if err != nil {
		h.writeStoreError(w, ownerID, err)
		return
	}

	writeJSON(w, http.StatusOK, n, h.logger)
}

func (h *notesHandler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.auth.requireOwner(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id", h.logger)
		return
	}

	if err := h.store.Delete(r.Context(), id, ownerID); err != nil {
		h.writeStoreError(w, ownerID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store sentinel errors to HTTP statuses.
func (h *notesHandler) writeStoreError(w http.ResponseWriter, ownerID string, err error) {
	switch {
	case errors.Is(err, note.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found", h.logger)
	case errors.Is(err, note.ErrForbidden):
		writeError(w, http.StatusForbidden, "note belongs to another user", h.logger)
	default:
		h.logger.Error("note store error", "owner", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
	}
}
