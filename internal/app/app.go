// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: Genkit, the
// database pool, the note store, and the chat orchestrator. Setup builds
// them in dependency order; Close releases them in reverse.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillnote/quill/internal/chat"
	"github.com/quillnote/quill/internal/config"
	"github.com/quillnote/quill/internal/note"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit       *genkit.Genkit
	Embedder     ai.Embedder
	DBPool       *pgxpool.Pool
	Notes        *note.Store
	Orchestrator *chat.Orchestrator

	logger      *slog.Logger
	otelCleanup func()
	dbCleanup   func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.logger != nil {
		a.logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
