// Package enrichment attaches community recommendations, sentiment and
// optional places data to matched restaurants.
package enrichment

import (
	"context"
	"fmt"

	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/places"
	"github.com/localrecos/recos-engine/internal/storage"
)

// EnrichedRestaurant is a restaurant with everything a result card shows.
type EnrichedRestaurant struct {
	storage.Restaurant
	Recommendations  []storage.Recommendation `json:"recommendations"`
	SentimentSummary *string                  `json:"sentimentSummary"`
	SentimentScore   *float64                 `json:"sentimentScore"`
	Place            *places.Candidate        `json:"place,omitempty"`
}

// Enricher is read-only over the repository.
type Enricher struct {
	recs   storage.RecommendationStore
	finder places.Finder
	logger *observability.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithPlaces attaches the best places listing to each restaurant.
func WithPlaces(finder places.Finder) Option {
	return func(e *Enricher) { e.finder = finder }
}

// NewEnricher creates an enricher.
func NewEnricher(recs storage.RecommendationStore, logger *observability.Logger, opts ...Option) *Enricher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	e := &Enricher{recs: recs, logger: logger.WithComponent("enrichment")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich preserves input order. Places lookup failures are logged and skipped;
// repository failures are returned.
func (e *Enricher) Enrich(ctx context.Context, restaurants []storage.Restaurant) ([]EnrichedRestaurant, error) {
	out := make([]EnrichedRestaurant, 0, len(restaurants))
	for _, r := range restaurants {
		enriched, err := e.EnrichOne(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, *enriched)
	}
	return out, nil
}

// EnrichOne enriches a single restaurant.
func (e *Enricher) EnrichOne(ctx context.Context, r storage.Restaurant) (*EnrichedRestaurant, error) {
	recs, err := e.recs.GetRecommendationsByRestaurant(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("recommendations for restaurant %d: %w", r.ID, err)
	}

	enriched := &EnrichedRestaurant{
		Restaurant:      r,
		Recommendations: recs,
	}
	if latest := MostRecent(recs); latest != nil {
		enriched.SentimentSummary = latest.SentimentSummary
		enriched.SentimentScore = latest.SentimentScore
	}

	if e.finder != nil {
		candidates, err := e.finder.FindPlaces(ctx, r.Name, r.City)
		if err != nil {
			e.logger.WithContext(ctx).Warn().Err(err).Int64("restaurant_id", r.ID).Msg("Places lookup failed")
		} else {
			enriched.Place = places.SelectBestMatch(r.Name, r.City, candidates)
		}
	}

	return enriched, nil
}

// MostRecent returns the recommendation with the latest PostDate. A missing
// PostDate sorts earliest; ties keep the first in input order.
func MostRecent(recs []storage.Recommendation) *storage.Recommendation {
	var best *storage.Recommendation
	for i := range recs {
		rec := &recs[i]
		if best == nil || after(rec, best) {
			best = rec
		}
	}
	return best
}

func after(a, b *storage.Recommendation) bool {
	switch {
	case a.PostDate == nil:
		return false
	case b.PostDate == nil:
		return true
	default:
		return a.PostDate.After(*b.PostDate)
	}
}
