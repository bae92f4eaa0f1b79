package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillnote/quill/internal/chat"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Orchestrator *chat.Orchestrator // Required
	NoteStore    NoteStore          // Required
	Pool         *pgxpool.Pool      // Optional: nil disables pool stats in /ready
	AuthSecret   []byte             // Required: 32+ bytes, signs identity tokens
	IsDev        bool               // Enables HTTP cookies (no Secure flag)
	TrustProxy   bool               // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst    int                // Rate limiter burst size per IP (0 = default 60)
}

// Server is the HTTP server for the chat and notes API.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.NoteStore == nil {
		return nil, errors.New("note store is required")
	}
	if len(cfg.AuthSecret) < 32 {
		return nil, errors.New("auth secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	am := &authManager{
		secret: cfg.AuthSecret,
		isDev:  cfg.IsDev,
		logger: logger,
	}

	ch := &chatHandler{
		orchestrator: cfg.Orchestrator,
		auth:         am,
		logger:       logger,
	}

	nh := &notesHandler{
		store:  cfg.NoteStore,
		auth:   am,
		logger: logger,
	}

	mux := http.NewServeMux()

	// Identity provisioning
	mux.HandleFunc("POST /api/auth/session", am.createSession)

	// Chat: explicit OPTIONS route for preflight negotiation
	mux.HandleFunc("OPTIONS /api/chat", chatPreflight)
	mux.HandleFunc("POST /api/chat", ch.stream)

	// Notes CRUD
	mux.HandleFunc("POST /api/notes", nh.create)
	mux.HandleFunc("GET /api/notes", nh.list)
	mux.HandleFunc("GET /api/notes/{id}", nh.get)
	mux.HandleFunc("DELETE /api/notes/{id}", nh.delete)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.Handle("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
