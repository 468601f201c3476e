package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrecos/recos-engine/internal/places"
	"github.com/localrecos/recos-engine/internal/storage"
)

func day(d int) *time.Time {
	t := time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMostRecent(t *testing.T) {
	tests := []struct {
		name   string
		recs   []storage.Recommendation
		wantID int64
	}{
		{"latest date wins", []storage.Recommendation{{ID: 1, PostDate: day(3)}, {ID: 2, PostDate: day(9)}, {ID: 3, PostDate: day(5)}}, 2},
		{"nil sorts earliest", []storage.Recommendation{{ID: 1}, {ID: 2, PostDate: day(1)}}, 2},
		{"all nil keeps first", []storage.Recommendation{{ID: 1}, {ID: 2}}, 1},
		{"tie keeps first", []storage.Recommendation{{ID: 1, PostDate: day(4)}, {ID: 2, PostDate: day(4)}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MostRecent(tt.recs)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	assert.Nil(t, MostRecent(nil))
}

func seedStore(t *testing.T) (*storage.MemoryStore, storage.Restaurant, storage.Restaurant) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	withRecs, err := store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Samosa King", City: "Ottawa", PriceRange: storage.PriceBudget, GoogleRating: storage.Float64(4.5)})
	require.NoError(t, err)
	bare, err := store.CreateRestaurant(ctx, storage.NewRestaurant{Name: "Quiet Place", City: "Ottawa", PriceRange: storage.PriceModerate, GoogleRating: storage.Float64(4.0)})
	require.NoError(t, err)

	_, err = store.CreateRecommendation(ctx, storage.NewRecommendation{
		RestaurantID: withRecs.ID, Content: "old", PostDate: day(1),
		SentimentScore: storage.Float64(0.2), SentimentSummary: storage.String("stale"),
	})
	require.NoError(t, err)
	_, err = store.CreateRecommendation(ctx, storage.NewRecommendation{
		RestaurantID: withRecs.ID, Content: "new", PostDate: day(20),
		SentimentScore: storage.Float64(0.9), SentimentSummary: storage.String("great"),
	})
	require.NoError(t, err)

	return store, *withRecs, *bare
}

func TestEnrich(t *testing.T) {
	store, withRecs, bare := seedStore(t)
	e := NewEnricher(store, nil)

	got, err := e.Enrich(context.Background(), []storage.Restaurant{withRecs, bare})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Samosa King", got[0].Name)
	assert.Len(t, got[0].Recommendations, 2)
	require.NotNil(t, got[0].SentimentSummary)
	assert.Equal(t, "great", *got[0].SentimentSummary)
	assert.InDelta(t, 0.9, *got[0].SentimentScore, 1e-9)
	assert.Nil(t, got[0].Place)

	assert.Empty(t, got[1].Recommendations)
	assert.Nil(t, got[1].SentimentSummary)
	assert.Nil(t, got[1].SentimentScore)
}

func TestEnrich_WithPlaces(t *testing.T) {
	store, withRecs, bare := seedStore(t)
	open := true
	finder := &places.StaticFinder{Candidates: map[string][]places.Candidate{
		"samosa king": {{PlaceID: "p1", Name: "Samosa King", Address: "456 Rideau St, Ottawa, ON", OpenNow: &open}},
	}}

	got, err := NewEnricher(store, nil, WithPlaces(finder)).Enrich(context.Background(), []storage.Restaurant{withRecs, bare})
	require.NoError(t, err)
	require.NotNil(t, got[0].Place)
	assert.Equal(t, "p1", got[0].Place.PlaceID)
	assert.Nil(t, got[1].Place)
}

func TestEnrich_PlacesErrorIsSkipped(t *testing.T) {
	store, withRecs, _ := seedStore(t)
	finder := &places.StaticFinder{Err: errors.New("quota exceeded")}

	got, err := NewEnricher(store, nil, WithPlaces(finder)).Enrich(context.Background(), []storage.Restaurant{withRecs})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Place)
	assert.NotNil(t, got[0].SentimentSummary)
}

func TestApplyFilter(t *testing.T) {
	open, closed := true, false
	results := []EnrichedRestaurant{
		{Restaurant: storage.Restaurant{ID: 1, PriceRange: storage.PriceBudget, GoogleRating: storage.Float64(4.7)}, Place: &places.Candidate{OpenNow: &open}},
		{Restaurant: storage.Restaurant{ID: 2, PriceRange: storage.PriceModerate, GoogleRating: storage.Float64(4.5)}, Place: &places.Candidate{OpenNow: &closed}},
		{Restaurant: storage.Restaurant{ID: 3, PriceRange: storage.PriceBudget}},
	}

	ids := func(rs []EnrichedRestaurant) []int64 {
		out := []int64{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2, 3}, ids(ApplyFilter(results, FilterNone)))
	assert.Equal(t, []int64{1, 3}, ids(ApplyFilter(results, FilterUnder15)))
	assert.Equal(t, []int64{1, 2}, ids(ApplyFilter(results, FilterHighlyRated)))
	assert.Equal(t, []int64{1}, ids(ApplyFilter(results, FilterOpen)))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("highlyRated")
	require.NoError(t, err)
	assert.Equal(t, FilterHighlyRated, f)

	_, err = ParseFilter("nearby")
	assert.Error(t, err)
}
