package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/localrecos/recos-engine/internal/observability"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *observability.Logger
}

// NewGeminiClient creates a client for the Gemini developer API.
func NewGeminiClient(ctx context.Context, cfg Config, logger *observability.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := cfg.Model
	if model == "" || strings.Contains(model, "/") {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		retry:   cfg.Retry,
		logger:  logger.WithComponent("llm.gemini"),
	}, nil
}

// Complete generates content and returns the first text part.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	out, err := retryWithBackoff(ctx, c.retry, c.logger.WithContext(ctx), func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
		if err != nil {
			return "", err
		}
		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
			len(result.Candidates[0].Content.Parts) == 0 {
			return "", ErrEmptyResponse
		}
		var b strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if strings.TrimSpace(b.String()) == "" {
			return "", ErrEmptyResponse
		}
		return b.String(), nil
	})
	if err != nil {
		return "", err
	}

	c.logger.WithContext(ctx).Debug().
		Str("model", c.model).
		Dur("latency", time.Since(start)).
		Msg("Completion received")
	return out, nil
}

var _ Completer = (*GeminiClient)(nil)
