package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GenerateRequest is one text generation call.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	// JSON asks the model for an application/json response.
	JSON bool
}

// Generator produces model text for a prompt. Implementations make exactly
// one remote call per Generate and never retry.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ClientFactory builds a Gemini client on first use.
type ClientFactory func(ctx context.Context) (*genai.Client, error)

// GeminiGenerator is a Generator backed by the Gemini API. The client is
// created lazily so that runs which never reach a remote stage need no key.
type GeminiGenerator struct {
	factory ClientFactory
	limiter *rate.Limiter

	mu     sync.Mutex
	client *genai.Client
}

// GeneratorOption configures a GeminiGenerator.
type GeneratorOption func(*GeminiGenerator)

// WithRequestRate caps outgoing requests per second.
func WithRequestRate(perSecond float64, burst int) GeneratorOption {
	return func(g *GeminiGenerator) {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewGeminiGenerator creates a generator. factory is called at most once
// successfully.
func NewGeminiGenerator(factory ClientFactory, opts ...GeneratorOption) *GeminiGenerator {
	g := &GeminiGenerator{
		factory: factory,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Client returns the shared Gemini client, creating it on first use.
func (g *GeminiGenerator) Client(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := g.factory(ctx)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// Generate sends a single-turn request and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	client, err := g.Client(ctx)
	if err != nil {
		return "", err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}

	log.Debug().
		Str("model", req.Model).
		Int("prompt_length", len(req.Prompt)).
		Msg("Sending request to Gemini")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Failed to generate content from Gemini")
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	log.Debug().
		Dur("duration", time.Since(start)).
		Int("response_length", len(text)).
		Msg("Received response from Gemini")
	return text, nil
}
