package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/quillnote/quill/internal/chat"
)

// maxChatBodyBytes limits the chat request body size.
const maxChatBodyBytes = 1 << 20

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// chatHandler serves the streaming chat endpoint.
type chatHandler struct {
	orchestrator *chat.Orchestrator
	auth         *authManager
	logger       *slog.Logger
}

// stream handles POST /api/chat: authenticate, validate the history,
// then stream the turn's events over SSE. Authentication failures get
// the 401 JSON body and never open a stream.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	setStreamCORS(w)

	ownerID, ok := h.auth.requireOwner(w, r)
	if !ok {
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required", h.logger)
		return
	}
	for i, m := range req.Messages {
		if err := m.Validate(); err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("message %d: %v", i, err), h.logger)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	h.logger.Debug("chat stream started", "owner", ownerID, "messages", len(req.Messages))

	emit := func(e chat.Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeEvent(w, flusher, string(e.Kind), e.Data)
	}

	if err := h.orchestrator.Run(ctx, ownerID, req.Messages, emit); err != nil {
		// Already surfaced in-band where possible; log for operators.
		h.logger.Warn("chat turn ended with error", "owner", ownerID, "error", err)
		return
	}

	h.logger.Debug("chat stream completed", "owner", ownerID)
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
