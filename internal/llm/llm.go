// Package llm wraps the chat completion providers used for query extraction
// and sentiment scoring behind a single Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/observability"
)

// ErrDisabled is returned by New when no provider is configured.
var ErrDisabled = errors.New("llm provider disabled")

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("llm returned no content")

// Request is one completion call.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON object response.
	JSON        bool
	Temperature float32
}

// Completer produces a single text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config is the provider-independent client configuration.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             RetryConfig
	Referer           string
	Title             string
}

// ConfigFrom maps the application config onto a client config.
func ConfigFrom(cfg config.LLMConfig) Config {
	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	return Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Retry:             retry,
		Referer:           cfg.Referer,
		Title:             cfg.Title,
	}
}

// New builds the completer for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *observability.Logger) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, ErrDisabled
	case "openai", "openrouter":
		return NewOpenAIClient(ConfigFrom(cfg), logger), nil
	case "gemini":
		client, err := NewGeminiClient(ctx, ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
