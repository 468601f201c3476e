package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore keeps everything in process. Safe for concurrent use.
type MemoryStore struct {
	mu              sync.RWMutex
	restaurants     map[int64]Restaurant
	order           []int64
	recommendations map[int64]Recommendation
	recsByRest      map[int64][]int64
	history         []SearchHistoryEntry

	restaurantSeq     atomic.Int64
	recommendationSeq atomic.Int64
	historySeq        atomic.Int64

	now func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants:     make(map[int64]Restaurant),
		recommendations: make(map[int64]Recommendation),
		recsByRest:      make(map[int64][]int64),
		now:             time.Now,
	}
}

// WithClock replaces the timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// GetRestaurant returns ErrNotFound for unknown ids.
func (s *MemoryStore) GetRestaurant(_ context.Context, id int64) (*Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRestaurant(r)
	return &out, nil
}

// ListRestaurants returns every restaurant in insertion order.
func (s *MemoryStore) ListRestaurants(_ context.Context) ([]Restaurant, error) {
	return s.collect(func(Restaurant) bool { return true }), nil
}

// GetRestaurantsByCity matches the city case-insensitively.
func (s *MemoryStore) GetRestaurantsByCity(_ context.Context, city string) ([]Restaurant, error) {
	return s.collect(func(r Restaurant) bool { return r.InCity(city) }), nil
}

// GetRestaurantsByCityAndQuery narrows the city set to names or categories containing query.
func (s *MemoryStore) GetRestaurantsByCityAndQuery(_ context.Context, city, query string) ([]Restaurant, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return s.collect(func(r Restaurant) bool {
		return r.InCity(city) && matchesText(r, q)
	}), nil
}

// CreateRestaurant assigns the next sequential id.
func (s *MemoryStore) CreateRestaurant(_ context.Context, in NewRestaurant) (*Restaurant, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := Restaurant{
		Name:            in.Name,
		Website:         in.Website,
		Address:         in.Address,
		City:            in.City,
		GoogleRating:    in.GoogleRating,
		PriceRange:      in.PriceRange,
		Categories:      append([]string{}, in.Categories...),
		MapLink:         in.MapLink,
		MentionCount:    in.MentionCount,
		LastMentionDate: in.LastMentionDate,
	}
	r = cloneRestaurant(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.restaurantSeq.Add(1)
	r.CreatedAt = s.now()
	s.restaurants[r.ID] = r
	s.order = append(s.order, r.ID)

	out := cloneRestaurant(r)
	return &out, nil
}

// UpdateRestaurant applies the non-nil fields of update.
func (s *MemoryStore) UpdateRestaurant(_ context.Context, id int64, update RestaurantUpdate) (*Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneRestaurant(r)
	if err := update.Apply(&r); err != nil {
		return nil, err
	}
	s.restaurants[id] = r

	out := cloneRestaurant(r)
	return &out, nil
}

// GetRecommendation returns ErrNotFound for unknown ids.
func (s *MemoryStore) GetRecommendation(_ context.Context, id int64) (*Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recommendations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// GetRecommendationsByRestaurant returns recommendations in insertion order.
func (s *MemoryStore) GetRecommendationsByRestaurant(_ context.Context, restaurantID int64) ([]Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.recsByRest[restaurantID]
	out := make([]Recommendation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.recommendations[id])
	}
	return out, nil
}

// CreateRecommendation rejects references to unknown restaurants.
func (s *MemoryStore) CreateRecommendation(_ context.Context, in NewRecommendation) (*Recommendation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.restaurants[in.RestaurantID]; !ok {
		return nil, ErrInvalidReference
	}

	rec := Recommendation{
		ID:               s.recommendationSeq.Add(1),
		RestaurantID:     in.RestaurantID,
		PostID:           in.PostID,
		CommentID:        in.CommentID,
		Subreddit:        in.Subreddit,
		Content:          in.Content,
		SentimentScore:   in.SentimentScore,
		SentimentSummary: in.SentimentSummary,
		PostDate:         in.PostDate,
		CreatedAt:        s.now(),
	}
	s.recommendations[rec.ID] = rec
	s.recsByRest[rec.RestaurantID] = append(s.recsByRest[rec.RestaurantID], rec.ID)

	return &rec, nil
}

// CreateSearchHistory appends to the search log.
func (s *MemoryStore) CreateSearchHistory(_ context.Context, query string, city *string) (*SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := SearchHistoryEntry{
		ID:        s.historySeq.Add(1),
		Query:     query,
		City:      city,
		CreatedAt: s.now(),
	}
	s.history = append(s.history, entry)
	return &entry, nil
}

// GetSearchHistory returns the newest entries first.
func (s *MemoryStore) GetSearchHistory(_ context.Context, limit int) ([]SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	out := append([]SearchHistoryEntry(nil), s.history...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) collect(keep func(Restaurant) bool) []Restaurant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Restaurant, 0)
	for _, id := range s.order {
		r := s.restaurants[id]
		if keep(r) {
			out = append(out, cloneRestaurant(r))
		}
	}
	return out
}

// cloneRestaurant copies the slice and pointer fields so callers cannot
// mutate stored records.
func cloneRestaurant(r Restaurant) Restaurant {
	if r.Categories != nil {
		r.Categories = append([]string(nil), r.Categories...)
	}
	if r.GoogleRating != nil {
		v := *r.GoogleRating
		r.GoogleRating = &v
	}
	if r.LastMentionDate != nil {
		v := *r.LastMentionDate
		r.LastMentionDate = &v
	}
	return r
}

var _ Repository = (*MemoryStore)(nil)
