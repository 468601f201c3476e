package enrichment

import (
	"fmt"

	"github.com/localrecos/recos-engine/internal/storage"
)

// Filter is a result toggle offered to clients.
type Filter string

const (
	FilterNone        Filter = ""
	FilterUnder15     Filter = "under15"
	FilterHighlyRated Filter = "highlyRated"
	FilterOpen        Filter = "open"
)

// HighlyRatedThreshold is the minimum rating kept by FilterHighlyRated.
const HighlyRatedThreshold = 4.5

// ParseFilter validates a filter name.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterNone, FilterUnder15, FilterHighlyRated, FilterOpen:
		return f, nil
	}
	return FilterNone, fmt.Errorf("unknown filter %q", s)
}

// ApplyFilter keeps the results that pass f. FilterOpen keeps only results
// whose places listing reports open now.
func ApplyFilter(results []EnrichedRestaurant, f Filter) []EnrichedRestaurant {
	if f == FilterNone {
		return results
	}
	out := make([]EnrichedRestaurant, 0, len(results))
	for _, r := range results {
		if keep(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func keep(r EnrichedRestaurant, f Filter) bool {
	switch f {
	case FilterUnder15:
		return r.PriceRange == storage.PriceBudget
	case FilterHighlyRated:
		rating, ok := r.Rating()
		return ok && rating >= HighlyRatedThreshold
	case FilterOpen:
		return r.Place != nil && r.Place.OpenNow != nil && *r.Place.OpenNow
	}
	return true
}
