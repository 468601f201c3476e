package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidReference = errors.New("referenced restaurant does not exist")
	ErrInvalidInput     = errors.New("invalid input")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// DefaultHistoryLimit is used when a non-positive limit is requested.
const DefaultHistoryLimit = 10

// RestaurantStore reads and writes restaurants. Results are in insertion order.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id int64) (*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]Restaurant, error)
	GetRestaurantsByCity(ctx context.Context, city string) ([]Restaurant, error)
	GetRestaurantsByCityAndQuery(ctx context.Context, city, query string) ([]Restaurant, error)
	CreateRestaurant(ctx context.Context, in NewRestaurant) (*Restaurant, error)
	UpdateRestaurant(ctx context.Context, id int64, update RestaurantUpdate) (*Restaurant, error)
}

// RecommendationStore reads and writes recommendations.
type RecommendationStore interface {
	GetRecommendation(ctx context.Context, id int64) (*Recommendation, error)
	GetRecommendationsByRestaurant(ctx context.Context, restaurantID int64) ([]Recommendation, error)
	CreateRecommendation(ctx context.Context, in NewRecommendation) (*Recommendation, error)
}

// SearchHistoryStore is the append-only search log.
type SearchHistoryStore interface {
	CreateSearchHistory(ctx context.Context, query string, city *string) (*SearchHistoryEntry, error)
	GetSearchHistory(ctx context.Context, limit int) ([]SearchHistoryEntry, error)
}

// Repository is the full storage surface used by the engine and API.
type Repository interface {
	RestaurantStore
	RecommendationStore
	SearchHistoryStore
	Close() error
}

// matchesText reports whether name or any category contains the lower-cased query.
func matchesText(r Restaurant, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(r.Name), lowerQuery) {
		return true
	}
	for _, c := range r.Categories {
		if strings.Contains(strings.ToLower(c), lowerQuery) {
			return true
		}
	}
	return false
}
