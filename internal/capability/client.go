// Package capability adapts the external LLM capabilities (embedding,
// completion) behind one client with uniform timeout, retry, rate-limit,
// and circuit-breaker policy.
//
// The engines above this layer treat the capabilities as opaque:
// embed(text) -> vector and complete(prompt) -> text. Every call has an
// explicit timeout; on timeout or error the caller applies its own fallback.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// Config bundles the adapter-level policies.
type Config struct {
	// Timeout bounds each individual capability call. Zero disables the
	// per-call timeout (the parent context still applies).
	Timeout time.Duration

	// Retry configures transient-failure retries.
	Retry RetryConfig

	// Breaker guards the completion capability.
	Breaker CircuitBreakerConfig

	// RequestsPerSecond paces LLM calls; zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// EmbedOptions is attached to every embed request. The concrete type
	// is provider-specific (e.g. *genai.EmbedContentConfig for Gemini,
	// which needs OutputDimensionality to match the vector schema width).
	EmbedOptions any
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
		Breaker: DefaultCircuitBreakerConfig(),
	}
}

// Client is the production capability adapter backed by Genkit.
// Safe for concurrent use.
type Client struct {
	g         *genkit.Genkit
	model     ai.ModelRef
	embedder  ai.Embedder
	embedOpts any

	limiter *rate.Limiter
	breaker *CircuitBreaker
	retry   RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client. A nil logger falls back to slog.Default().
func New(g *genkit.Genkit, model ai.ModelRef, embedder ai.Embedder, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		g:         g,
		model:     model,
		embedder:  embedder,
		embedOpts: cfg.EmbedOptions,
		limiter:   limiter,
		breaker:   NewCircuitBreaker(cfg.Breaker),
		retry:     cfg.Retry,
		timeout:   cfg.Timeout,
		logger:    logger.With("component", "capability"),
	}
}

// Embed generates the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
			Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
			Options: c.embedOpts,
		})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return fmt.Errorf("empty embedding returned")
		}
		vec = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Generate runs a model generation with the configured model and the
// adapter's retry/breaker policy. Callers append their own options
// (ai.WithPrompt, ai.WithOutputType, ...).
func (c *Client) Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	var resp *ai.ModelResponse
	full := append([]ai.GenerateOption{ai.WithModel(c.model)}, opts...)
	err := c.withRetry(ctx, "generate", func(ctx context.Context) error {
		r, err := genkit.Generate(ctx, c.g, full...)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		c.breaker.Failure()
		return nil, err
	}
	c.breaker.Success()
	return resp, nil
}

// Complete runs a plain-text completion for the given prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Generate(ctx, ai.WithPrompt(prompt))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
