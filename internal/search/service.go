// Package search is the application service behind the API and CLI: it
// validates requests, records history, consults the result cache and runs the
// matching pipeline followed by enrichment.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/localrecos/recos-engine/internal/classifier"
	"github.com/localrecos/recos-engine/internal/domain"
	"github.com/localrecos/recos-engine/internal/enrichment"
	"github.com/localrecos/recos-engine/internal/matching"
	"github.com/localrecos/recos-engine/internal/nlp"
	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/taxonomy"
)

// Request is a structured search.
type Request struct {
	Query  string `json:"query"`
	City   string `json:"city,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// Response is an enriched search result.
type Response struct {
	Query          string                          `json:"query"`
	City           string                          `json:"city,omitempty"`
	Stage          matching.Stage                  `json:"stage"`
	Classification classifier.Classification       `json:"classification"`
	Results        []enrichment.EnrichedRestaurant `json:"results"`
	Synthesized    int                             `json:"synthesized"`
	Filter         enrichment.Filter               `json:"filter,omitempty"`
	Cached         bool                            `json:"cached"`
}

// NaturalResponse pairs the model's extraction with the search it drove.
type NaturalResponse struct {
	Extraction nlp.Extraction `json:"extraction"`
	Response   *Response      `json:"response"`
}

// Service wires the engine, enrichment, cache and history together.
type Service struct {
	repo         storage.Repository
	engine       *matching.Engine
	enricher     *enrichment.Enricher
	cache        *ResultCache
	extractor    *nlp.Extractor
	analyzer     *nlp.Analyzer
	historyLimit int
	logger       *observability.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c *ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithExtractor enables natural language search.
func WithExtractor(e *nlp.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithAnalyzer enables sentiment analysis.
func WithAnalyzer(a *nlp.Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// WithHistoryLimit sets the default number of history entries returned.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewService creates a search service.
func NewService(
	logger *observability.Logger,
	repo storage.Repository,
	engine *matching.Engine,
	enricher *enrichment.Enricher,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Service{
		repo:         repo,
		engine:       engine,
		enricher:     enricher,
		historyLimit: storage.DefaultHistoryLimit,
		logger:       logger.WithComponent("search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewResultCache(nil, logger, ResultCacheConfig{})
	}
	if s.extractor == nil {
		s.extractor = nlp.NewExtractor(nil, logger)
	}
	if s.analyzer == nil {
		s.analyzer = nlp.NewAnalyzer(nil, logger)
	}
	return s
}

// Search validates req, records it in the history and returns enriched
// results, from the cache when possible.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	city := strings.TrimSpace(req.City)
	if query == "" {
		return nil, domain.ValidationError("query is required", nil)
	}
	filter, err := enrichment.ParseFilter(req.Filter)
	if err != nil {
		return nil, domain.ValidationError("invalid filter", err)
	}

	logger := s.logger.WithContext(ctx)
	s.recordHistory(ctx, query, city)

	if cached, ok := s.cache.Get(ctx, query, city); ok {
		out := *cached
		out.Cached = true
		out.Filter = filter
		out.Results = enrichment.ApplyFilter(cached.Results, filter)
		logger.Info().
			Str("query", query).
			Str("city", city).
			Int("results", len(out.Results)).
			Dur("latency", time.Since(start)).
			Msg("Search served from cache")
		return &out, nil
	}

	result, err := s.engine.Search(ctx, query, city)
	if err != nil {
		return nil, domain.StorageError("search failed", err)
	}
	enriched, err := s.enricher.Enrich(ctx, result.Restaurants)
	if err != nil {
		return nil, domain.StorageError("enrichment failed", err)
	}

	resp := &Response{
		Query:          query,
		City:           city,
		Stage:          result.Stage,
		Classification: result.Classification,
		Results:        enriched,
		Synthesized:    len(result.Synthesized),
	}
	if err := s.cache.Set(ctx, query, city, resp); err != nil {
		logger.Warn().Err(err).Msg("Search result not cached")
	}

	out := *resp
	out.Filter = filter
	out.Results = enrichment.ApplyFilter(resp.Results, filter)

	logger.Info().
		Str("query", query).
		Str("city", city).
		Str("stage", string(result.Stage)).
		Int("results", len(out.Results)).
		Dur("latency", time.Since(start)).
		Msg("Search completed")
	return &out, nil
}

func (s *Service) recordHistory(ctx context.Context, query, city string) {
	var cityPtr *string
	if city != "" {
		cityPtr = &city
	}
	if _, err := s.repo.CreateSearchHistory(ctx, query, cityPtr); err != nil {
		s.logger.WithContext(ctx).Warn().Err(err).Str("query", query).Msg("Failed to record search history")
	}
}

// SearchNatural extracts a city and food type from input and searches with
// them. Extraction never fails; it degrades to searching the raw input.
func (s *Service) SearchNatural(ctx context.Context, input, filter string) (*NaturalResponse, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.ValidationError("input is required", nil)
	}

	extraction := s.extractor.Extract(ctx, input)
	req := Request{Query: extraction.FoodType, Filter: filter}
	if extraction.City != nil {
		req.City = *extraction.City
	}

	resp, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return &NaturalResponse{Extraction: extraction, Response: resp}, nil
}

// AnalyzeSentiment scores free text.
func (s *Service) AnalyzeSentiment(ctx context.Context, text string) (*nlp.Sentiment, error) {
	return s.analyzer.Analyze(ctx, text)
}

// Classify exposes the classifier for a query.
func (s *Service) Classify(query string) classifier.Classification {
	return classifier.New().Classify(query)
}

// Cities returns the popular city list.
func (s *Service) Cities() []taxonomy.City {
	return append([]taxonomy.City(nil), taxonomy.PopularCities...)
}

// History returns recent searches, newest first. A non-positive limit uses
// the configured default.
func (s *Service) History(ctx context.Context, limit int) ([]storage.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	entries, err := s.repo.GetSearchHistory(ctx, limit)
	if err != nil {
		return nil, domain.StorageError("load search history", err)
	}
	return entries, nil
}

// Restaurant returns one enriched restaurant.
func (s *Service) Restaurant(ctx context.Context, id int64) (*enrichment.EnrichedRestaurant, error) {
	r, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFoundError("restaurant not found", err)
		}
		return nil, domain.StorageError("load restaurant", err)
	}
	enriched, err := s.enricher.EnrichOne(ctx, *r)
	if err != nil {
		return nil, domain.StorageError("enrich restaurant", err)
	}
	return enriched, nil
}

// CityRestaurants lists a city's restaurants, narrowed by query when given.
func (s *Service) CityRestaurants(ctx context.Context, city, query string) ([]enrichment.EnrichedRestaurant, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, domain.ValidationError("city is required", nil)
	}

	var (
		restaurants []storage.Restaurant
		err         error
	)
	if q := strings.TrimSpace(query); q != "" {
		restaurants, err = s.repo.GetRestaurantsByCityAndQuery(ctx, city, q)
	} else {
		restaurants, err = s.repo.GetRestaurantsByCity(ctx, city)
	}
	if err != nil {
		return nil, domain.StorageError("load city restaurants", err)
	}

	enriched, err := s.enricher.Enrich(ctx, restaurants)
	if err != nil {
		return nil, domain.StorageError("enrich city restaurants", err)
	}
	return enriched, nil
}

// Import stores restaurants and invalidates cached results. onEach is called
// after every stored record and may be nil.
func (s *Service) Import(ctx context.Context, items []storage.NewRestaurant, onEach func(storage.Restaurant)) (int, error) {
	imported := 0
	for _, item := range items {
		r, err := s.repo.CreateRestaurant(ctx, item)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidInput) {
				return imported, domain.ValidationError("invalid restaurant "+item.Name, err)
			}
			return imported, domain.StorageError("import restaurant", err)
		}
		imported++
		if onEach != nil {
			onEach(*r)
		}
	}
	if imported > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WithContext(ctx).Warn().Err(err).Msg("Failed to invalidate search cache after import")
		}
	}
	return imported, nil
}

// PurgeExpired drops expired cache entries.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.cache.PurgeExpired(ctx)
}

// Stats reports engine and cache counters.
func (s *Service) Stats() Stats {
	return Stats{Stages: s.engine.Metrics().Snapshot(), Cache: s.cache.Stats()}
}

// Stats is the service's counter snapshot.
type Stats struct {
	Stages map[string]int64 `json:"stages"`
	Cache  CacheStats       `json:"cache"`
}
