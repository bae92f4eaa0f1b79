// Package cmd contains the quill command line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quillnote/quill/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the quill server.
// It handles flag parsing and command routing; main() stays minimal.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			logger := initLogger()
			slog.SetDefault(logger)
			return runServe(logger)
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	// Serving is the default behavior.
	logger := initLogger()
	slog.SetDefault(logger)
	return runServe(logger)
}

// initLogger builds the process logger. Debug level is controlled by the
// DEBUG environment variable.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo, JSON: true}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

func printVersionInfo() error {
	fmt.Printf("quill v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

func printHelp() {
	fmt.Println("quill - notes with a retrieval-augmented chat API")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quill                   Start the HTTP API server (default)")
	fmt.Println("  quill serve [addr]      Start the HTTP API server")
	fmt.Println("  quill version           Show version information")
	fmt.Println("  quill help              Show this help")
	fmt.Println()
	fmt.Println("Serve options:")
	fmt.Println("  quill serve :8080            Listen on a positional address")
	fmt.Println("  quill serve --addr :8080     Listen on a flag address")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY          Required with the gemini provider")
	fmt.Println("  QUILL_AUTH_SECRET       Required: identity signing secret (32+ bytes)")
	fmt.Println("  DATABASE_URL            Optional: PostgreSQL connection URL")
	fmt.Println("  DEBUG                   Optional: enable debug logging")
}
