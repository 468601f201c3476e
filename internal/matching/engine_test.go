package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrecos/recos-engine/internal/classifier"
	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/synthesis"
	"github.com/localrecos/recos-engine/internal/taxonomy"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	_, err := storage.SeedSampleData(context.Background(), store, fixedNow)
	require.NoError(t, err)
	return store
}

func newEngine(store storage.RestaurantStore) *Engine {
	gen := synthesis.NewGenerator(synthesis.WithSeed(11), synthesis.WithClock(func() time.Time { return fixedNow }))
	return NewEngine(nil, store, classifier.New(), gen, Config{SynthesisEnabled: true})
}

func names(rs []storage.Restaurant) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func ids(rs []storage.Restaurant) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestSearch_BestIndianOttawa(t *testing.T) {
	engine := newEngine(newSeededStore(t))

	got, err := engine.Search(context.Background(), "best indian", "Ottawa")
	require.NoError(t, err)

	assert.Equal(t, StageFiltered, got.Stage)
	assert.Equal(t, []string{"House of Spice", "Samosa King", "Delhi Deli", "Punjab Palace"}, names(got.Restaurants))
	assert.Empty(t, got.Synthesized)
}

func TestSearch_CheapTacosAustin(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for _, in := range []storage.NewRestaurant{
		{Name: "Taco Shack", City: "Austin", PriceRange: storage.PriceBudget, Categories: []string{"Mexican"}},
		{Name: "Casa Fina", City: "Austin", PriceRange: storage.PriceUpscale, Categories: []string{"Mexican"}},
		{Name: "Pho Austin", City: "Austin", PriceRange: storage.PriceBudget, Categories: []string{"Vietnamese"}},
	} {
		_, err := store.CreateRestaurant(ctx, in)
		require.NoError(t, err)
	}

	got, err := newEngine(store).Search(ctx, "cheap tacos", "Austin")
	require.NoError(t, err)

	assert.Equal(t, StageFiltered, got.Stage)
	assert.Equal(t, []string{"Taco Shack"}, names(got.Restaurants))
}

func TestSearch_ResultsStayInCity(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	_, err := store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Toronto Tandoor", City: "Toronto", Categories: []string{"Indian"}})
	require.NoError(t, err)

	engine := newEngine(store)
	for _, query := range []string{"indian", "samosa", "somewhere nice", "cheap"} {
		got, err := engine.Search(ctx, query, "ottawa")
		require.NoError(t, err)
		require.NotEmpty(t, got.Restaurants, query)
		for _, r := range got.Restaurants {
			assert.True(t, r.InCity("Ottawa"), "%s returned %s in %s", query, r.Name, r.City)
		}
	}
}

func TestSearch_NoCityScansEverything(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	_, err := store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Toronto Tandoor", City: "Toronto", Categories: []string{"Indian"}})
	require.NoError(t, err)

	got, err := newEngine(store).Search(ctx, "indian", "")
	require.NoError(t, err)
	assert.Len(t, got.Restaurants, 7)
}

func TestSearch_GenericQueryReturnsCityScope(t *testing.T) {
	got, err := newEngine(newSeededStore(t)).Search(context.Background(), "somewhere to go", "Ottawa")
	require.NoError(t, err)

	assert.True(t, got.Classification.IsGeneric())
	assert.Equal(t, StageFiltered, got.Stage)
	assert.Len(t, got.Restaurants, 6)
}

func TestSearch_TextMatchFallback(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_, err := store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Sushi Samba", City: "Austin", Categories: []string{"Brazilian"}})
	require.NoError(t, err)
	_, err = store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Churrasco", City: "Austin", Categories: []string{"Brazilian"}})
	require.NoError(t, err)

	got, err := newEngine(store).Search(ctx, "Sushi Samba", "Austin")
	require.NoError(t, err)

	assert.Equal(t, StageTextMatch, got.Stage)
	assert.Equal(t, []string{"Sushi Samba"}, names(got.Restaurants))
}

func TestSearch_SynthesizesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	engine := newEngine(store)

	first, err := engine.Search(ctx, "vegan ramen", "Boston")
	require.NoError(t, err)

	assert.Equal(t, StageSynthesized, first.Stage)
	require.GreaterOrEqual(t, len(first.Restaurants), 3)
	require.LessOrEqual(t, len(first.Restaurants), 6)
	assert.Equal(t, first.Restaurants, first.Synthesized)
	for i, r := range first.Restaurants {
		assert.Equal(t, int64(7+i), r.ID, "ids continue the store sequence")
		assert.Equal(t, "Boston", r.City)
	}

	boston, err := store.GetRestaurantsByCity(ctx, "boston")
	require.NoError(t, err)
	assert.Equal(t, ids(first.Restaurants), ids(boston))

	second, err := engine.Search(ctx, "vegan ramen", "Boston")
	require.NoError(t, err)
	assert.Equal(t, StageFiltered, second.Stage)
	assert.Equal(t, ids(first.Restaurants), ids(second.Restaurants))
	assert.Empty(t, second.Synthesized)

	all, err := store.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6+len(first.Restaurants), "the repeat search created nothing")

	snapshot := engine.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot["synthesized"])
	assert.Equal(t, int64(1), snapshot["filtered"])
}

func TestSearch_QualifiedSynthesisIsStable(t *testing.T) {
	queries := []string{"expensive poutine", "best poutine", "cheap poutine", "best upscale ramen"}

	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			for seed := int64(1); seed <= 50; seed++ {
				ctx := context.Background()
				store := storage.NewMemoryStore()
				gen := synthesis.NewGenerator(synthesis.WithSeed(seed), synthesis.WithClock(func() time.Time { return fixedNow }))
				engine := NewEngine(nil, store, classifier.New(), gen, Config{SynthesisEnabled: true})

				first, err := engine.Search(ctx, query, "Boston")
				require.NoError(t, err)
				require.Equal(t, StageSynthesized, first.Stage, "seed %d", seed)

				second, err := engine.Search(ctx, query, "Boston")
				require.NoError(t, err)
				require.Equal(t, StageFiltered, second.Stage, "seed %d: drafts must pass the qualifier filters", seed)
				assert.ElementsMatch(t, ids(first.Restaurants), ids(second.Restaurants), "seed %d", seed)
				assert.Empty(t, second.Synthesized, "seed %d", seed)

				all, err := store.ListRestaurants(ctx)
				require.NoError(t, err)
				assert.Len(t, all, len(first.Restaurants), "seed %d", seed)
			}
		})
	}
}

func TestSearch_NoCityNeverSynthesizes(t *testing.T) {
	got, err := newEngine(storage.NewMemoryStore()).Search(context.Background(), "pizza", "")
	require.NoError(t, err)

	assert.Equal(t, StageEmpty, got.Stage)
	assert.NotNil(t, got.Restaurants)
	assert.Empty(t, got.Restaurants)
}

func TestSearch_SynthesisDisabled(t *testing.T) {
	engine := NewEngine(nil, storage.NewMemoryStore(), nil, nil, Config{SynthesisEnabled: true})

	got, err := engine.Search(context.Background(), "pizza", "Chicago")
	require.NoError(t, err)
	assert.Equal(t, StageEmpty, got.Stage)
}

type failingStore struct {
	storage.RestaurantStore
}

func (failingStore) GetRestaurantsByCity(context.Context, string) ([]storage.Restaurant, error) {
	return nil, errors.New("connection reset")
}

func TestSearch_StoreErrorsSurface(t *testing.T) {
	_, err := newEngine(failingStore{}).Search(context.Background(), "pizza", "Chicago")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFilterByQualifiers(t *testing.T) {
	restaurants := []storage.Restaurant{
		{ID: 1, PriceRange: storage.PriceBudget, GoogleRating: storage.Float64(4.3)},
		{ID: 2, PriceRange: storage.PriceModerate, GoogleRating: storage.Float64(4.2)},
		{ID: 3, PriceRange: storage.PriceUpscale, GoogleRating: storage.Float64(4.8)},
		{ID: 4, PriceRange: storage.PriceLuxury},
		{ID: 5},
	}

	tests := []struct {
		name       string
		qualifiers []taxonomy.QualifierTag
		want       []int64
	}{
		{"none", nil, []int64{1, 2, 3, 4, 5}},
		{"cheap", []taxonomy.QualifierTag{taxonomy.Cheap}, []int64{1, 2}},
		{"expensive", []taxonomy.QualifierTag{taxonomy.Expensive}, []int64{3, 4}},
		{"best", []taxonomy.QualifierTag{taxonomy.Best}, []int64{1, 3}},
		{"cheap and best", []taxonomy.QualifierTag{taxonomy.Best, taxonomy.Cheap}, []int64{1}},
		{"non-gating", []taxonomy.QualifierTag{taxonomy.Authentic, taxonomy.Buffet, taxonomy.Vegetarian, taxonomy.GlutenFree}, []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByQualifiers(restaurants, classifier.Classification{Qualifiers: tt.qualifiers})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterByCuisine_AliasesAndTriggers(t *testing.T) {
	restaurants := []storage.Restaurant{
		{ID: 1, Categories: []string{"Sushi Bar"}},
		{ID: 2, Categories: []string{"Japanese"}},
		{ID: 3, Categories: []string{"Pizzeria"}},
		{ID: 4, Categories: []string{"Tacos"}},
	}

	assert.Equal(t, []int64{1, 2}, ids(FilterByCuisine(restaurants, []taxonomy.CuisineTag{taxonomy.Japanese})))
	assert.Equal(t, []int64{3}, ids(FilterByCuisine(restaurants, []taxonomy.CuisineTag{taxonomy.Italian})))
	assert.Equal(t, []int64{1, 2, 4}, ids(FilterByCuisine(restaurants, []taxonomy.CuisineTag{taxonomy.Japanese, taxonomy.Mexican})))
	assert.Len(t, FilterByCuisine(restaurants, nil), 4)
}

func TestTextMatch(t *testing.T) {
	restaurants := []storage.Restaurant{
		{ID: 1, Name: "Golden Dragon", Categories: []string{"Chinese"}, PriceRange: storage.PriceModerate},
		{ID: 2, Name: "Blue Door", Categories: []string{"Dragon Rolls"}},
		{ID: 3, Name: "Cheap Eats", PriceRange: storage.PriceBudget},
	}

	assert.Equal(t, []int64{1, 2}, ids(TextMatch(restaurants, "DRAGON")))
	assert.Equal(t, []int64{1}, ids(TextMatch(restaurants, "$$")))
	assert.Empty(t, TextMatch(restaurants, "  "))
}
