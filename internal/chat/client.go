package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini model IDs used by the analysis stages.
const (
	// ModelGemini25Pro is stable, for high-reasoning tasks such as synthesis.
	ModelGemini25Pro = "gemini-2.5-pro"

	// ModelGemini25Flash is stable, balanced performance for per-item extraction.
	ModelGemini25Flash = "gemini-2.5-flash"
)

// Defaults for the two analysis stages.
const (
	DefaultExtractModel   = ModelGemini25Flash
	DefaultAggregateModel = ModelGemini25Pro
)

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Debug().Msg("Gemini client created")
	return client, nil
}

// KeyFactory returns a ClientFactory that resolves the API key on first use.
func KeyFactory(key func(ctx context.Context) (string, error)) ClientFactory {
	return func(ctx context.Context) (*genai.Client, error) {
		apiKey, err := key(ctx)
		if err != nil {
			return nil, err
		}
		return NewGeminiClient(ctx, apiKey)
	}
}
