package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Seeder is the subset of Repository needed to load sample data.
type Seeder interface {
	RestaurantStore
	RecommendationStore
}

type sampleRestaurant struct {
	name         string
	address      string
	rating       float64
	price        PriceRange
	categories   []string
	mentions     int
	lastMentionD int
	tone         sampleTone
}

type sampleTone int

const (
	tonePositive sampleTone = iota
	toneMixed
	toneNegative
)

var ottawaSamples = []sampleRestaurant{
	{"House of Spice", "123 Bank St, Ottawa, ON", 4.7, PriceBudget, []string{"Indian", "Street Food"}, 12, 2, tonePositive},
	{"Samosa King", "456 Rideau St, Ottawa, ON", 4.5, PriceBudget, []string{"Indian", "Takeout"}, 8, 7, tonePositive},
	{"Delhi Deli", "789 Somerset St W, Ottawa, ON", 4.3, PriceBudget, []string{"Indian", "Casual"}, 5, 14, toneMixed},
	{"Maharaja Bites", "50 Rideau St, Ottawa, ON", 4.0, PriceBudget, []string{"Indian", "Food Court"}, 4, 30, toneMixed},
	{"Punjab Palace", "321 Elgin St, Ottawa, ON", 4.6, PriceModerate, []string{"Indian", "Sit-down"}, 6, 21, tonePositive},
	{"Curry Corner", "987 Merivale Rd, Ottawa, ON", 3.8, PriceBudget, []string{"Indian", "Takeout"}, 3, 30, toneNegative},
}

// SeedSampleData loads six Ottawa restaurants with two community
// recommendations each. It is a no-op when the store already has restaurants.
func SeedSampleData(ctx context.Context, store Seeder, now time.Time) (int, error) {
	existing, err := store.ListRestaurants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list restaurants: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for _, sample := range ottawaSamples {
		slug := strings.ReplaceAll(strings.ToLower(sample.name), " ", "")
		r, err := store.CreateRestaurant(ctx, NewRestaurant{
			Name:            sample.name,
			Website:         "https://" + slug + ".ca",
			Address:         sample.address,
			City:            "Ottawa",
			GoogleRating:    Float64(sample.rating),
			PriceRange:      sample.price,
			Categories:      sample.categories,
			MapLink:         "https://maps.google.com/?q=" + url.QueryEscape(sample.address),
			MentionCount:    sample.mentions,
			LastMentionDate: Time(now.AddDate(0, 0, -sample.lastMentionD)),
		})
		if err != nil {
			return 0, fmt.Errorf("seed restaurant %q: %w", sample.name, err)
		}

		score, summary, content := sampleSentiment(sample)
		for n := 1; n <= 2; n++ {
			_, err := store.CreateRecommendation(ctx, NewRecommendation{
				RestaurantID:     r.ID,
				PostID:           fmt.Sprintf("post_%d_%d", r.ID, n),
				CommentID:        fmt.Sprintf("comment_%d_%d", r.ID, n),
				Subreddit:        "r/Ottawa",
				Content:          content,
				SentimentScore:   Float64(score),
				SentimentSummary: String(summary),
				PostDate:         Time(now.AddDate(0, 0, -(sample.lastMentionD + (2-n)*3))),
			})
			if err != nil {
				return 0, fmt.Errorf("seed recommendation for %q: %w", sample.name, err)
			}
		}
	}

	return len(ottawaSamples), nil
}

func sampleSentiment(s sampleRestaurant) (float64, string, string) {
	switch s.tone {
	case tonePositive:
		return 0.9,
			"Highly recommended for authentic, affordable samosas. Reddit users praise the flavor and value.",
			s.name + " has the best samosas in town. Absolutely delicious and affordable."
	case toneMixed:
		return 0.5,
			"Mixed opinions on Reddit - praised for affordability but some mention inconsistent quality.",
			s.name + " has decent samosas. They're cheap but quality varies."
	default:
		return 0.2,
			"Mixed reviews on Reddit. While the samosas are considered very affordable, several users mention they can be stale.",
			s.name + " samosas are cheap but not that great. Sometimes they're stale."
	}
}
