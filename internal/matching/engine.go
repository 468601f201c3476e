// Package matching turns a classified query into a list of restaurants,
// falling back to a plain text match and finally to synthesized results.
package matching

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/localrecos/recos-engine/internal/classifier"
	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/taxonomy"
)

// BestRatingThreshold is the minimum rating kept by the "best" qualifier.
const BestRatingThreshold = taxonomy.BestMinRating

// Stage names the step that produced a result set.
type Stage string

const (
	StageFiltered    Stage = "filtered"
	StageTextMatch   Stage = "text_match"
	StageSynthesized Stage = "synthesized"
	StageEmpty       Stage = "empty"
)

// Synthesizer drafts restaurants when nothing matches.
type Synthesizer interface {
	Generate(query, city string) []storage.NewRestaurant
}

// Classifier tags a query.
type Classifier interface {
	Classify(query string) classifier.Classification
}

// Result is the outcome of one search.
type Result struct {
	Query          string                    `json:"query"`
	City           string                    `json:"city,omitempty"`
	Classification classifier.Classification `json:"classification"`
	Stage          Stage                     `json:"stage"`
	Restaurants    []storage.Restaurant      `json:"restaurants"`
	// Synthesized lists the records this search created. They are also
	// present in Restaurants.
	Synthesized []storage.Restaurant `json:"synthesized,omitempty"`
}

// Config holds engine settings.
type Config struct {
	SynthesisEnabled bool
}

// Metrics counts which stage answered each search.
type Metrics struct {
	Filtered    atomic.Int64
	TextMatch   atomic.Int64
	Synthesized atomic.Int64
	Empty       atomic.Int64
	Created     atomic.Int64
}

// Snapshot returns the counters as a map for reporting.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		string(StageFiltered):    m.Filtered.Load(),
		string(StageTextMatch):   m.TextMatch.Load(),
		string(StageSynthesized): m.Synthesized.Load(),
		string(StageEmpty):       m.Empty.Load(),
		"synthesized_records":    m.Created.Load(),
	}
}

func (m *Metrics) record(stage Stage) {
	switch stage {
	case StageFiltered:
		m.Filtered.Add(1)
	case StageTextMatch:
		m.TextMatch.Add(1)
	case StageSynthesized:
		m.Synthesized.Add(1)
	default:
		m.Empty.Add(1)
	}
}

// Engine runs the matching pipeline against a restaurant store.
type Engine struct {
	logger      *observability.Logger
	store       storage.RestaurantStore
	classifier  Classifier
	synthesizer Synthesizer
	config      Config
	metrics     *Metrics
}

// NewEngine creates an engine. synthesizer may be nil, which disables step five.
func NewEngine(
	logger *observability.Logger,
	store storage.RestaurantStore,
	cls Classifier,
	synthesizer Synthesizer,
	cfg Config,
) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cls == nil {
		cls = classifier.New()
	}
	return &Engine{
		logger:      logger.WithComponent("matching"),
		store:       store,
		classifier:  cls,
		synthesizer: synthesizer,
		config:      cfg,
		metrics:     &Metrics{},
	}
}

// Metrics exposes the stage counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Search runs the pipeline:
//  1. scope to city (case-insensitive) or the whole store
//  2. keep restaurants with a category matching any classified cuisine
//  3. apply the cheap, expensive and best qualifiers
//  4. if empty, match the raw query against name, categories or price
//  5. if still empty and a city was given, synthesize and persist
//
// An empty result is not an error. Store failures are.
func (e *Engine) Search(ctx context.Context, query, city string) (*Result, error) {
	start := time.Now()
	city = strings.TrimSpace(city)
	logger := e.logger.WithContext(ctx)

	cls := e.classifier.Classify(query)
	result := &Result{
		Query:          query,
		City:           city,
		Classification: cls,
		Restaurants:    []storage.Restaurant{},
	}

	scope, err := e.scope(ctx, city)
	if err != nil {
		return nil, err
	}

	matched := FilterByCuisine(scope, cls.Cuisines)
	matched = FilterByQualifiers(matched, cls)

	switch {
	case len(matched) > 0:
		result.Stage = StageFiltered
		result.Restaurants = matched
	default:
		if text := TextMatch(scope, query); len(text) > 0 {
			result.Stage = StageTextMatch
			result.Restaurants = text
		} else if city != "" && e.config.SynthesisEnabled && e.synthesizer != nil {
			created, err := e.synthesize(ctx, query, city)
			if err != nil {
				return nil, err
			}
			result.Stage = StageSynthesized
			result.Restaurants = created
			result.Synthesized = created
		} else {
			result.Stage = StageEmpty
		}
	}

	e.metrics.record(result.Stage)

	logger.Debug().
		Str("query", query).
		Str("city", city).
		Strs("cuisines", tagsToStrings(cls.Cuisines)).
		Strs("qualifiers", qualifiersToStrings(cls.Qualifiers)).
		Int("scope", len(scope)).
		Str("stage", string(result.Stage)).
		Int("results", len(result.Restaurants)).
		Dur("latency", time.Since(start)).
		Msg("Search matched")

	return result, nil
}

func (e *Engine) scope(ctx context.Context, city string) ([]storage.Restaurant, error) {
	if city == "" {
		all, err := e.store.ListRestaurants(ctx)
		if err != nil {
			return nil, fmt.Errorf("list restaurants: %w", err)
		}
		return all, nil
	}
	inCity, err := e.store.GetRestaurantsByCity(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("restaurants in %s: %w", city, err)
	}
	return inCity, nil
}

func (e *Engine) synthesize(ctx context.Context, query, city string) ([]storage.Restaurant, error) {
	drafts := e.synthesizer.Generate(query, city)
	created := make([]storage.Restaurant, 0, len(drafts))
	for _, draft := range drafts {
		r, err := e.store.CreateRestaurant(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("persist synthesized restaurant %q: %w", draft.Name, err)
		}
		created = append(created, *r)
	}
	e.metrics.Created.Add(int64(len(created)))

	e.logger.WithContext(ctx).Info().
		Str("query", query).
		Str("city", city).
		Int("created", len(created)).
		Msg("Synthesized fallback restaurants")

	return created, nil
}

// FilterByCuisine keeps restaurants with a category containing a term of any
// given cuisine. No cuisines means no filtering.
func FilterByCuisine(restaurants []storage.Restaurant, cuisines []taxonomy.CuisineTag) []storage.Restaurant {
	if len(cuisines) == 0 {
		return restaurants
	}

	var terms []string
	for _, tag := range cuisines {
		terms = append(terms, taxonomy.CategoryTerms(tag)...)
	}

	out := make([]storage.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if categoryMatches(r.Categories, terms) {
			out = append(out, r)
		}
	}
	return out
}

func categoryMatches(categories, terms []string) bool {
	for _, c := range categories {
		lc := strings.ToLower(c)
		for _, term := range terms {
			if strings.Contains(lc, term) {
				return true
			}
		}
	}
	return false
}

// FilterByQualifiers applies the gating qualifiers. cheap keeps $ and $$,
// expensive keeps $$$ and $$$$, best keeps ratings of at least 4.3. Other
// qualifiers are classified but do not filter.
func FilterByQualifiers(restaurants []storage.Restaurant, cls classifier.Classification) []storage.Restaurant {
	cheap := cls.HasQualifier(taxonomy.Cheap)
	expensive := cls.HasQualifier(taxonomy.Expensive)
	best := cls.HasQualifier(taxonomy.Best)
	if !cheap && !expensive && !best {
		return restaurants
	}

	out := make([]storage.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		if cheap && r.PriceRange != storage.PriceBudget && r.PriceRange != storage.PriceModerate {
			continue
		}
		if expensive && r.PriceRange != storage.PriceUpscale && r.PriceRange != storage.PriceLuxury {
			continue
		}
		if best {
			rating, ok := r.Rating()
			if !ok || rating < BestRatingThreshold {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// TextMatch keeps restaurants whose name, a category, or price range
// contains the lower-cased query.
func TextMatch(restaurants []storage.Restaurant, query string) []storage.Restaurant {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []storage.Restaurant{}
	}

	out := make([]storage.Restaurant, 0)
	for _, r := range restaurants {
		if strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(string(r.PriceRange), q) ||
			categoryMatches(r.Categories, []string{q}) {
			out = append(out, r)
		}
	}
	return out
}

func tagsToStrings(tags []taxonomy.CuisineTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func qualifiersToStrings(tags []taxonomy.QualifierTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
