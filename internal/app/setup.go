package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillnote/quill/db"
	"github.com/quillnote/quill/internal/chat"
	"github.com/quillnote/quill/internal/config"
	"github.com/quillnote/quill/internal/note"
	"github.com/quillnote/quill/internal/observability"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be configured before genkit.Init so the
	// TracerProvider picks up the OTEL env vars.
	a.otelCleanup = observability.Setup(ctx, cfg.Tracing, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	notes, err := note.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating note store: %w", err)
	}
	a.Notes = notes

	orchestrator, err := provideOrchestrator(g, cfg, notes, logger)
	if err != nil {
		return nil, err
	}
	a.Orchestrator = orchestrator

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	var g *genkit.Genkit

	switch provider {
	case "ollama":
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Ollama embedders are keyed by server address (registered in
// provideGenkit); Gemini embedders resolve by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == "ollama" {
		return ollama.Embedder(g, cfg.OllamaHost)
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideOrchestrator wires the retrieval tool and the generation engine
// into the chat turn orchestrator.
func provideOrchestrator(g *genkit.Genkit, cfg *config.Config, notes *note.Store, logger *slog.Logger) (*chat.Orchestrator, error) {
	timeout := time.Duration(cfg.RetrievalTimeoutMS) * time.Millisecond

	tool, err := chat.NewFinderTool(notes, cfg.RetrievalTopK, timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval tool: %w", err)
	}
	registered := tool.Register(g)

	engine, err := chat.NewGenkitEngine(g, cfg.FullModelName(), registered, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generation engine: %w", err)
	}

	orchestrator, err := chat.NewOrchestrator(engine, tool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return orchestrator, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}
