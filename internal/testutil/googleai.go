package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// GoogleAISetup bundles the resources integration tests need when they
// talk to the real Gemini API.
type GoogleAISetup struct {
	Embedder ai.Embedder
	Genkit   *genkit.Genkit
	Logger   *slog.Logger
}

// SetupGoogleAI initializes Genkit with the Google AI plugin and returns
// a real embedder. Skips the test when GEMINI_API_KEY is not set.
func SetupGoogleAI(t *testing.T) *GoogleAISetup {
	t.Helper()

	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set - skipping test requiring Google AI")
	}

	g := genkit.Init(context.Background(),
		genkit.WithPlugins(&googlegenai.GoogleAI{}))

	return &GoogleAISetup{
		Embedder: googlegenai.GoogleAIEmbedder(g, "gemini-embedding-001"),
		Genkit:   g,
		Logger:   DiscardLogger(),
	}
}
