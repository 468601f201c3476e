package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/localrecos/recos-engine/internal/domain"
	"github.com/localrecos/recos-engine/internal/llm"
	"github.com/localrecos/recos-engine/internal/observability"
)

const sentimentPrompt = `Analyze the sentiment of this text about a restaurant. Consider factors like food quality, service, atmosphere, and value.

Text: %q

Respond in this JSON format:
{
  "score": a number between 0 and 1 where 0 is very negative and 1 is very positive,
  "summary": "a concise 1-2 sentence summary of the sentiment"
}`

// Sentiment is a score in [0,1] with a short summary.
type Sentiment struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// Analyzer scores free text about a restaurant.
type Analyzer struct {
	completer llm.Completer
	logger    *observability.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(completer llm.Completer, logger *observability.Logger) *Analyzer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Analyzer{completer: completer, logger: logger.WithComponent("nlp.sentiment")}
}

// Analyze asks the model for a sentiment score. Unlike extraction there is
// no sensible fallback, so failures surface as upstream errors.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Sentiment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ValidationError("text is required", nil)
	}
	if a.completer == nil {
		return nil, domain.ConfigError("sentiment analysis requires an llm provider", llm.ErrDisabled)
	}

	raw, err := a.completer.Complete(ctx, llm.Request{Prompt: fmt.Sprintf(sentimentPrompt, text), JSON: true})
	if err != nil {
		return nil, domain.UpstreamError("sentiment analysis failed", err)
	}

	var out Sentiment
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		a.logger.WithContext(ctx).Warn().Err(err).Str("raw", raw).Msg("Sentiment returned malformed JSON")
		return nil, domain.UpstreamError("sentiment analysis returned malformed output", err)
	}
	out.Score = clamp01(out.Score)
	out.Summary = strings.TrimSpace(out.Summary)
	return &out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
