// Package nlp turns free text into search parameters and sentiment scores
// with the help of a text completion model.
package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/localrecos/recos-engine/internal/llm"
	"github.com/localrecos/recos-engine/internal/observability"
)

const extractionSystem = "You extract restaurant search parameters from user queries and answer with JSON only."

const extractionPrompt = `Extract the city and food type from this search query. If a city is not explicitly mentioned, return null for city.

Query: %q

Respond in this JSON format:
{
  "city": "city name or null if not specified",
  "foodType": "type of food or dish they're looking for"
}`

// Extraction is the structured form of a natural language query.
type Extraction struct {
	City     *string `json:"city"`
	FoodType string  `json:"foodType"`
	// Fallback is set when the model output could not be used.
	Fallback bool `json:"fallback,omitempty"`
}

// Extractor pulls city and food type out of free text.
type Extractor struct {
	completer llm.Completer
	logger    *observability.Logger
}

// NewExtractor creates an extractor. A nil completer makes every call fall back.
func NewExtractor(completer llm.Completer, logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Extractor{completer: completer, logger: logger.WithComponent("nlp.extract")}
}

// Extract never fails: malformed output or a completer error yields
// {city: nil, foodType: input}.
func (e *Extractor) Extract(ctx context.Context, input string) Extraction {
	input = strings.TrimSpace(input)
	fallback := Extraction{FoodType: input, Fallback: true}
	if e.completer == nil {
		return fallback
	}

	logger := e.logger.WithContext(ctx)
	raw, err := e.completer.Complete(ctx, llm.Request{
		System: extractionSystem,
		Prompt: fmt.Sprintf(extractionPrompt, input),
		JSON:   true,
	})
	if err != nil {
		logger.Warn().Err(err).Str("input", input).Msg("Extraction failed, using raw input")
		return fallback
	}

	var out struct {
		City     *string `json:"city"`
		FoodType string  `json:"foodType"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		logger.Warn().Err(err).Str("raw", raw).Msg("Extraction returned malformed JSON")
		return fallback
	}

	extraction := Extraction{City: normalizeCity(out.City), FoodType: strings.TrimSpace(out.FoodType)}
	if extraction.FoodType == "" {
		extraction.FoodType = input
	}
	return extraction
}

func normalizeCity(city *string) *string {
	if city == nil {
		return nil
	}
	c := strings.TrimSpace(*city)
	switch strings.ToLower(c) {
	case "", "null", "none", "n/a", "unknown":
		return nil
	}
	return &c
}

// cleanJSON strips markdown code fences and any prose around the first
// JSON object.
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	input = strings.TrimSpace(input)

	start := strings.Index(input, "{")
	end := strings.LastIndex(input, "}")
	if start >= 0 && end > start {
		return input[start : end+1]
	}
	return input
}
