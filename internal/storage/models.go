// Package storage provides the restaurant data model and its repositories.
package storage

import (
	"strings"
	"time"
)

// PriceRange is the coarse price tier of a restaurant. The empty value means unknown.
type PriceRange string

const (
	PriceUnknown  PriceRange = ""
	PriceBudget   PriceRange = "$"
	PriceModerate PriceRange = "$$"
	PriceUpscale  PriceRange = "$$$"
	PriceLuxury   PriceRange = "$$$$"
)

// Valid reports whether p is unknown or one of the four tiers.
func (p PriceRange) Valid() bool {
	switch p {
	case PriceUnknown, PriceBudget, PriceModerate, PriceUpscale, PriceLuxury:
		return true
	}
	return false
}

// Label is a human-readable description of the tier.
func (p PriceRange) Label() string {
	switch p {
	case PriceBudget:
		return "Under $15"
	case PriceModerate:
		return "$15-30"
	case PriceUpscale:
		return "$31-60"
	case PriceLuxury:
		return "Over $60"
	}
	return "Unknown"
}

// Restaurant is a place that can be returned by a search.
type Restaurant struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Website         string     `json:"website,omitempty"`
	Address         string     `json:"address"`
	City            string     `json:"city"`
	GoogleRating    *float64   `json:"googleRating,omitempty"`
	PriceRange      PriceRange `json:"priceRange,omitempty"`
	Categories      []string   `json:"categories"`
	MapLink         string     `json:"googleMapLink,omitempty"`
	MentionCount    int        `json:"mentionCount"`
	LastMentionDate *time.Time `json:"lastMentionDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// InCity compares cities by CityKey.
func (r Restaurant) InCity(city string) bool {
	return CityKey(r.City) == CityKey(city)
}

// CityKey is the normalized form cities are matched by: trimmed and
// Unicode lower-cased.
func CityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Rating returns the rating and whether one is known.
func (r Restaurant) Rating() (float64, bool) {
	if r.GoogleRating == nil {
		return 0, false
	}
	return *r.GoogleRating, true
}

// NewRestaurant is the input to CreateRestaurant. ID and CreatedAt are assigned by the store.
type NewRestaurant struct {
	Name            string     `json:"name" yaml:"name"`
	Website         string     `json:"website,omitempty" yaml:"website"`
	Address         string     `json:"address" yaml:"address"`
	City            string     `json:"city" yaml:"city"`
	GoogleRating    *float64   `json:"googleRating,omitempty" yaml:"google_rating"`
	PriceRange      PriceRange `json:"priceRange,omitempty" yaml:"price_range"`
	Categories      []string   `json:"categories" yaml:"categories"`
	MapLink         string     `json:"googleMapLink,omitempty" yaml:"map_link"`
	MentionCount    int        `json:"mentionCount" yaml:"mention_count"`
	LastMentionDate *time.Time `json:"lastMentionDate,omitempty" yaml:"last_mention_date"`
}

// Validate checks field ranges before a restaurant is stored.
func (n NewRestaurant) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return invalidf("restaurant name is required")
	}
	if strings.TrimSpace(n.City) == "" {
		return invalidf("restaurant city is required")
	}
	if n.GoogleRating != nil && (*n.GoogleRating < 0 || *n.GoogleRating > 5) {
		return invalidf("rating %.2f outside 0-5", *n.GoogleRating)
	}
	if !n.PriceRange.Valid() {
		return invalidf("unknown price range %q", n.PriceRange)
	}
	if n.MentionCount < 0 {
		return invalidf("mention count must not be negative")
	}
	return nil
}

// RestaurantUpdate carries the mutable fields; nil fields are left untouched.
type RestaurantUpdate struct {
	Website         *string     `json:"website,omitempty"`
	Address         *string     `json:"address,omitempty"`
	GoogleRating    *float64    `json:"googleRating,omitempty"`
	PriceRange      *PriceRange `json:"priceRange,omitempty"`
	Categories      []string    `json:"categories,omitempty"`
	MapLink         *string     `json:"googleMapLink,omitempty"`
	MentionCount    *int        `json:"mentionCount,omitempty"`
	LastMentionDate *time.Time  `json:"lastMentionDate,omitempty"`
}

// Apply merges the update into r.
func (u RestaurantUpdate) Apply(r *Restaurant) error {
	if u.GoogleRating != nil && (*u.GoogleRating < 0 || *u.GoogleRating > 5) {
		return invalidf("rating %.2f outside 0-5", *u.GoogleRating)
	}
	if u.PriceRange != nil && !u.PriceRange.Valid() {
		return invalidf("unknown price range %q", *u.PriceRange)
	}
	if u.MentionCount != nil && *u.MentionCount < 0 {
		return invalidf("mention count must not be negative")
	}

	if u.Website != nil {
		r.Website = *u.Website
	}
	if u.Address != nil {
		r.Address = *u.Address
	}
	if u.GoogleRating != nil {
		rating := *u.GoogleRating
		r.GoogleRating = &rating
	}
	if u.PriceRange != nil {
		r.PriceRange = *u.PriceRange
	}
	if u.Categories != nil {
		r.Categories = append([]string(nil), u.Categories...)
	}
	if u.MapLink != nil {
		r.MapLink = *u.MapLink
	}
	if u.MentionCount != nil {
		r.MentionCount = *u.MentionCount
	}
	if u.LastMentionDate != nil {
		d := *u.LastMentionDate
		r.LastMentionDate = &d
	}
	return nil
}

// Recommendation is a community comment about a restaurant with its sentiment.
type Recommendation struct {
	ID               int64      `json:"id"`
	RestaurantID     int64      `json:"restaurantId"`
	PostID           string     `json:"postId"`
	CommentID        string     `json:"commentId,omitempty"`
	Subreddit        string     `json:"subreddit"`
	Content          string     `json:"content"`
	SentimentScore   *float64   `json:"sentimentScore,omitempty"`
	SentimentSummary *string    `json:"sentimentSummary,omitempty"`
	PostDate         *time.Time `json:"postDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// NewRecommendation is the input to CreateRecommendation.
type NewRecommendation struct {
	RestaurantID     int64      `json:"restaurantId" yaml:"restaurant_id"`
	PostID           string     `json:"postId" yaml:"post_id"`
	CommentID        string     `json:"commentId,omitempty" yaml:"comment_id"`
	Subreddit        string     `json:"subreddit" yaml:"subreddit"`
	Content          string     `json:"content" yaml:"content"`
	SentimentScore   *float64   `json:"sentimentScore,omitempty" yaml:"sentiment_score"`
	SentimentSummary *string    `json:"sentimentSummary,omitempty" yaml:"sentiment_summary"`
	PostDate         *time.Time `json:"postDate,omitempty" yaml:"post_date"`
}

// Validate checks the sentiment range. Referential integrity is checked by the store.
func (n NewRecommendation) Validate() error {
	if n.SentimentScore != nil && (*n.SentimentScore < 0 || *n.SentimentScore > 1) {
		return invalidf("sentiment score %.2f outside 0-1", *n.SentimentScore)
	}
	if strings.TrimSpace(n.Content) == "" {
		return invalidf("recommendation content is required")
	}
	return nil
}

// SearchHistoryEntry records one submitted search.
type SearchHistoryEntry struct {
	ID        int64     `json:"id"`
	Query     string    `json:"query"`
	City      *string   `json:"city,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }
