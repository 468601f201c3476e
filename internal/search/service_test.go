package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrecos/recos-engine/internal/cache"
	"github.com/localrecos/recos-engine/internal/domain"
	"github.com/localrecos/recos-engine/internal/enrichment"
	"github.com/localrecos/recos-engine/internal/llm"
	"github.com/localrecos/recos-engine/internal/matching"
	"github.com/localrecos/recos-engine/internal/nlp"
	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/synthesis"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store   *storage.MemoryStore
	service *Service
	clock   *clock
}

func newFixture(t *testing.T, synthesisEnabled bool, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := &clock{t: fixedNow}

	store := storage.NewMemoryStore().WithClock(clk.Now)
	_, err := storage.SeedSampleData(ctx, store, fixedNow)
	require.NoError(t, err)

	gen := synthesis.NewGenerator(synthesis.WithSeed(3), synthesis.WithClock(clk.Now))
	engine := matching.NewEngine(nil, store, nil, gen, matching.Config{SynthesisEnabled: synthesisEnabled})
	resultCache := NewResultCache(cache.NewMemoryClient(100).WithClock(clk.Now), nil, DefaultResultCacheConfig()).WithClock(clk.Now)

	opts = append([]Option{WithCache(resultCache)}, opts...)
	service := NewService(nil, store, engine, enrichment.NewEnricher(store, nil), opts...)
	return &fixture{store: store, service: service, clock: clk}
}

func resultNames(results []enrichment.EnrichedRestaurant) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.service.Search(ctx, Request{Query: "   ", City: "Ottawa"})
	assert.True(t, domain.Is(err, domain.ErrorTypeValidation))

	_, err = f.service.Search(ctx, Request{Query: "indian", Filter: "cheapest"})
	assert.True(t, domain.Is(err, domain.ErrorTypeValidation))

	history, err := f.service.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "rejected searches are not recorded")
}

func TestSearch_BestIndianOttawa(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.service.Search(context.Background(), Request{Query: "best indian", City: "Ottawa"})
	require.NoError(t, err)

	assert.Equal(t, matching.StageFiltered, resp.Stage)
	assert.False(t, resp.Cached)
	assert.Equal(t, []string{"House of Spice", "Samosa King", "Delhi Deli", "Punjab Palace"}, resultNames(resp.Results))
	for _, r := range resp.Results {
		assert.Len(t, r.Recommendations, 2)
		assert.NotNil(t, r.SentimentScore)
		assert.NotNil(t, r.SentimentSummary)
	}
}

func TestSearch_CachesByNormalizedQueryAndCity(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.service.Search(ctx, Request{Query: "best indian", City: "Ottawa"})
	require.NoError(t, err)

	second, err := f.service.Search(ctx, Request{Query: "Best Indian ", City: "OTTAWA"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, resultNames(first.Results), resultNames(second.Results))

	stats := f.service.Stats()
	assert.Equal(t, int64(1), stats.Cache.Hits)
	assert.Equal(t, int64(1), stats.Cache.Misses)
	assert.Equal(t, int64(1), stats.Stages["filtered"], "the cached search never reached the engine")

	history, err := f.service.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "cache hits are still recorded")
}

func TestSearch_CacheExpires(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)

	resp, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
}

func TestSearch_FiltersApplyToCachedResults(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	all, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa"})
	require.NoError(t, err)
	assert.Len(t, all.Results, 6)

	rated, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa", Filter: "highlyRated"})
	require.NoError(t, err)
	assert.True(t, rated.Cached)
	assert.Equal(t, enrichment.FilterHighlyRated, rated.Filter)
	assert.Equal(t, []string{"House of Spice", "Samosa King", "Punjab Palace"}, resultNames(rated.Results))

	cheap, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa", Filter: "under15"})
	require.NoError(t, err)
	assert.Len(t, cheap.Results, 5)
	assert.NotContains(t, resultNames(cheap.Results), "Punjab Palace")

	again, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa"})
	require.NoError(t, err)
	assert.Len(t, again.Results, 6, "filtering never shrinks the cached entry")
}

func TestSearch_SynthesizedResultsAreCachedAndStable(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.service.Search(ctx, Request{Query: "vegan ramen", City: "Boston"})
	require.NoError(t, err)
	assert.Equal(t, matching.StageSynthesized, first.Stage)
	assert.Equal(t, len(first.Results), first.Synthesized)

	second, err := f.service.Search(ctx, Request{Query: "vegan ramen", City: "Boston"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, resultNames(first.Results), resultNames(second.Results))

	boston, err := f.store.GetRestaurantsByCity(ctx, "Boston")
	require.NoError(t, err)
	assert.Len(t, boston, len(first.Results))
}

func TestSearchNatural(t *testing.T) {
	ctx := context.Background()

	t.Run("extraction drives the search", func(t *testing.T) {
		completer := &llm.StaticCompleter{Response: "```json\n{\"city\":\"Ottawa\",\"foodType\":\"samosa\"}\n```"}
		f := newFixture(t, true, WithExtractor(nlp.NewExtractor(completer, nil)))

		got, err := f.service.SearchNatural(ctx, "where can I get samosas in Ottawa", "")
		require.NoError(t, err)

		require.NotNil(t, got.Extraction.City)
		assert.Equal(t, "Ottawa", *got.Extraction.City)
		assert.Equal(t, "samosa", got.Response.Query)
		assert.Len(t, got.Response.Results, 6)

		history, err := f.service.History(ctx, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "samosa", history[0].Query)
		require.NotNil(t, history[0].City)
		assert.Equal(t, "Ottawa", *history[0].City)
	})

	t.Run("malformed output falls back to the raw input", func(t *testing.T) {
		completer := &llm.StaticCompleter{Response: "I think they want samosas"}
		f := newFixture(t, true, WithExtractor(nlp.NewExtractor(completer, nil)))

		got, err := f.service.SearchNatural(ctx, "cheap samosas", "")
		require.NoError(t, err)

		assert.True(t, got.Extraction.Fallback)
		assert.Nil(t, got.Extraction.City)
		assert.Equal(t, "cheap samosas", got.Response.Query)
		assert.Len(t, got.Response.Results, 6)
	})

	t.Run("empty input", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.service.SearchNatural(ctx, " ", "")
		assert.True(t, domain.Is(err, domain.ErrorTypeValidation))
	})
}

func TestAnalyzeSentiment(t *testing.T) {
	completer := &llm.StaticCompleter{Response: `{"score":0.9,"summary":"Very positive."}`}
	f := newFixture(t, true, WithAnalyzer(nlp.NewAnalyzer(completer, nil)))

	got, err := f.service.AnalyzeSentiment(context.Background(), "Best butter chicken in town")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Score)

	_, err = newFixture(t, true).service.AnalyzeSentiment(context.Background(), "good")
	assert.True(t, domain.Is(err, domain.ErrorTypeConfig))
}

func TestRestaurant(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	got, err := f.service.Restaurant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "House of Spice", got.Name)
	assert.Len(t, got.Recommendations, 2)

	_, err = f.service.Restaurant(ctx, 999)
	assert.True(t, domain.Is(err, domain.ErrorTypeNotFound))
}

func TestCityRestaurants(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	all, err := f.service.CityRestaurants(ctx, "ottawa", "")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	spice, err := f.service.CityRestaurants(ctx, "Ottawa", "spice")
	require.NoError(t, err)
	assert.Equal(t, []string{"House of Spice"}, resultNames(spice))

	none, err := f.service.CityRestaurants(ctx, "Boston", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.service.CityRestaurants(ctx, " ", "")
	assert.True(t, domain.Is(err, domain.ErrorTypeValidation))
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	f := newFixture(t, true, WithHistoryLimit(2))
	ctx := context.Background()

	for _, q := range []string{"indian", "samosa", "curry"} {
		_, err := f.service.Search(ctx, Request{Query: q, City: "Ottawa"})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	history, err := f.service.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "curry", history[0].Query)
	assert.Equal(t, "samosa", history[1].Query)

	history, err = f.service.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestImport_InvalidatesCache(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	empty, err := f.service.Search(ctx, Request{Query: "indian", City: "Toronto"})
	require.NoError(t, err)
	assert.Equal(t, matching.StageEmpty, empty.Stage)

	var seen []string
	n, err := f.service.Import(ctx, []storage.NewRestaurant{
		{Name: "Toronto Tandoor", City: "Toronto", Categories: []string{"Indian"}},
	}, func(r storage.Restaurant) { seen = append(seen, r.Name) })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Toronto Tandoor"}, seen)

	resp, err := f.service.Search(ctx, Request{Query: "indian", City: "Toronto"})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, []string{"Toronto Tandoor"}, resultNames(resp.Results))

	_, err = f.service.Import(ctx, []storage.NewRestaurant{{Name: "", City: "Toronto"}}, nil)
	assert.True(t, domain.Is(err, domain.ErrorTypeValidation))
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.service.Search(ctx, Request{Query: "indian", City: "Ottawa"})
	require.NoError(t, err)
	_, err = f.service.Search(ctx, Request{Query: "curry", City: "Ottawa"})
	require.NoError(t, err)

	n, err := f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(2 * time.Hour)
	n, err = f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestServiceWithoutCache(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := storage.SeedSampleData(context.Background(), store, fixedNow)
	require.NoError(t, err)
	engine := matching.NewEngine(nil, store, nil, nil, matching.Config{})
	service := NewService(nil, store, engine, enrichment.NewEnricher(store, nil))

	for i := 0; i < 2; i++ {
		resp, err := service.Search(context.Background(), Request{Query: "indian", City: "Ottawa"})
		require.NoError(t, err)
		assert.False(t, resp.Cached)
	}
	assert.False(t, service.Stats().Cache.Enabled)
}

func TestCacheKey(t *testing.T) {
	c := NewResultCache(nil, nil, DefaultResultCacheConfig())

	assert.Equal(t, c.CacheKey("Sushi", ""), c.CacheKey(" sushi ", "ALL"))
	assert.Equal(t, c.CacheKey("sushi", "Ottawa"), c.CacheKey("SUSHI", "ottawa"))
	assert.NotEqual(t, c.CacheKey("sushi", "Ottawa"), c.CacheKey("sushi", "Toronto"))
	assert.Contains(t, c.CacheKey("sushi", ""), "search:")
}
