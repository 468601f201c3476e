// Package synthesis drafts plausible restaurants for queries the data set
// cannot answer, so a search in a known city never comes back empty.
package synthesis

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/taxonomy"
)

const (
	placeholder  = "[CUISINE]"
	minSelected  = 3
	maxSelected  = 6
	maxMentions  = 10
	mentionDays  = 30
	fallbackType = "restaurant"
)

// Template is one restaurant archetype. Every name pattern contains the
// [CUISINE] placeholder.
type Template struct {
	Names      []string
	Categories []string
	Price      storage.PriceRange
	MinRating  float64
	MaxRating  float64
}

var baseTemplates = []Template{
	{Names: []string{"[CUISINE] House", "The [CUISINE] Kitchen", "[CUISINE] Corner"},
		Categories: []string{"[CUISINE]", "Casual"}, Price: storage.PriceModerate, MinRating: 4.0, MaxRating: 4.6},
	{Names: []string{"[CUISINE] Express", "Quick [CUISINE]", "[CUISINE] To Go"},
		Categories: []string{"[CUISINE]", "Takeout"}, Price: storage.PriceBudget, MinRating: 3.6, MaxRating: 4.3},
	{Names: []string{"[CUISINE] Bistro", "Maison [CUISINE]", "[CUISINE] Room"},
		Categories: []string{"[CUISINE]", "Fine Dining"}, Price: storage.PriceUpscale, MinRating: 4.3, MaxRating: 4.9},
	{Names: []string{"Family [CUISINE]", "[CUISINE] Garden"},
		Categories: []string{"[CUISINE]", "Family Friendly"}, Price: storage.PriceModerate, MinRating: 3.8, MaxRating: 4.5},
	{Names: []string{"[CUISINE] on Wheels", "The [CUISINE] Truck"},
		Categories: []string{"[CUISINE]", "Food Truck", "Street Food"}, Price: storage.PriceBudget, MinRating: 4.0, MaxRating: 4.7},
	{Names: []string{"Little [CUISINE] Cafe", "[CUISINE] & Co."},
		Categories: []string{"[CUISINE]", "Cafe"}, Price: storage.PriceBudget, MinRating: 3.9, MaxRating: 4.6},
	{Names: []string{"Modern [CUISINE]", "[CUISINE] Lab"},
		Categories: []string{"[CUISINE]", "Fusion"}, Price: storage.PriceUpscale, MinRating: 4.1, MaxRating: 4.8},
	{Names: []string{"[CUISINE] Spot", "Local [CUISINE] Joint"},
		Categories: []string{"[CUISINE]", "Local Favorite"}, Price: storage.PriceModerate, MinRating: 4.2, MaxRating: 4.8},
}

var upscaleTemplates = []Template{
	{Names: []string{"[CUISINE] Reserve", "Chez [CUISINE]"},
		Categories: []string{"[CUISINE]", "Fine Dining", "Tasting Menu"}, Price: storage.PriceLuxury, MinRating: 4.4, MaxRating: 4.9},
	{Names: []string{"Chef's [CUISINE] Table", "[CUISINE] Atelier"},
		Categories: []string{"[CUISINE]", "Chef's Table"}, Price: storage.PriceUpscale, MinRating: 4.2, MaxRating: 4.8},
}

var buffetTemplates = []Template{
	{Names: []string{"[CUISINE] Buffet Palace", "All You Can Eat [CUISINE]"},
		Categories: []string{"[CUISINE]", "Buffet"}, Price: storage.PriceModerate, MinRating: 3.7, MaxRating: 4.4},
	{Names: []string{"Grand [CUISINE] Buffet", "[CUISINE] Feast"},
		Categories: []string{"[CUISINE]", "Buffet", "Family Friendly"}, Price: storage.PriceModerate, MinRating: 3.8, MaxRating: 4.5},
}

var authenticTemplates = []Template{
	{Names: []string{"Authentic [CUISINE] Kitchen", "Traditional [CUISINE] House"},
		Categories: []string{"[CUISINE]", "Authentic"}, Price: storage.PriceModerate, MinRating: 4.2, MaxRating: 4.8},
	{Names: []string{"Grandma's [CUISINE]", "Old Town [CUISINE]"},
		Categories: []string{"[CUISINE]", "Authentic", "Family Owned"}, Price: storage.PriceBudget, MinRating: 4.3, MaxRating: 4.9},
}

var streets = []string{
	"Main St", "King St", "Queen St", "Elm St", "Oak Ave", "Maple Ave", "Park Ave",
	"Market St", "Church St", "Water St", "Lake Rd", "Mill Rd", "Broadway", "Center St",
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the output reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand supplies the random source directly.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock replaces the time source used for mention dates.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator drafts synthetic restaurants. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator seeded from the clock unless an option overrides it.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Flags are the query modifiers that shape the template bank. Buffet,
// Authentic and Expensive widen it; Cheap, Expensive and Best narrow it to
// drafts that pass the matching qualifier filters.
type Flags struct {
	Buffet    bool
	Authentic bool
	Cheap     bool
	Expensive bool
	Best      bool
}

// Generate drafts three to six restaurants for query in city. Nothing is
// persisted; callers decide what to store.
func (g *Generator) Generate(query, city string) []storage.NewRestaurant {
	foodType := FoodType(query, city)
	flags := DetectFlags(query)

	bank := append([]Template(nil), baseTemplates...)
	if flags.Expensive {
		bank = append(bank, upscaleTemplates...)
	}
	if flags.Buffet {
		bank = append(bank, buffetTemplates...)
	}
	if flags.Authentic {
		bank = append(bank, authenticTemplates...)
	}
	bank = restrict(bank, flags)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rng.Shuffle(len(bank), func(i, j int) { bank[i], bank[j] = bank[j], bank[i] })
	n := minSelected + g.rng.Intn(maxSelected-minSelected+1)
	if n > len(bank) {
		n = len(bank)
	}

	now := g.now()
	out := make([]storage.NewRestaurant, 0, n)
	for _, tmpl := range bank[:n] {
		out = append(out, g.draft(tmpl, foodType, city, now))
	}
	return out
}

// restrict keeps the templates whose price tier satisfies the cheap and
// expensive modifiers and lifts rating floors to taxonomy.BestMinRating for
// best. A query that is both cheap and expensive keeps every tier.
func restrict(bank []Template, flags Flags) []Template {
	out := make([]Template, 0, len(bank))
	for _, tmpl := range bank {
		if flags.Cheap != flags.Expensive {
			if flags.Cheap && tmpl.Price != storage.PriceBudget && tmpl.Price != storage.PriceModerate {
				continue
			}
			if flags.Expensive && tmpl.Price != storage.PriceUpscale && tmpl.Price != storage.PriceLuxury {
				continue
			}
		}
		if flags.Best {
			tmpl.MinRating = math.Max(tmpl.MinRating, taxonomy.BestMinRating)
			tmpl.MaxRating = math.Max(tmpl.MaxRating, tmpl.MinRating)
		}
		out = append(out, tmpl)
	}
	return out
}

func (g *Generator) draft(tmpl Template, foodType, city string, now time.Time) storage.NewRestaurant {
	name := strings.ReplaceAll(tmpl.Names[g.rng.Intn(len(tmpl.Names))], placeholder, foodType)

	categories := make([]string, len(tmpl.Categories))
	for i, c := range tmpl.Categories {
		categories[i] = strings.ReplaceAll(c, placeholder, foodType)
	}

	rating := tmpl.MinRating + g.rng.Float64()*(tmpl.MaxRating-tmpl.MinRating)
	rating = math.Round(rating*10) / 10

	address := fmt.Sprintf("%d %s, %s", 1+g.rng.Intn(999), streets[g.rng.Intn(len(streets))], city)
	lastMention := now.Add(-time.Duration(g.rng.Int63n(int64(mentionDays * 24 * time.Hour))))

	return storage.NewRestaurant{
		Name:            name,
		Website:         "https://www." + slug(name) + ".com",
		Address:         address,
		City:            city,
		GoogleRating:    storage.Float64(rating),
		PriceRange:      tmpl.Price,
		Categories:      categories,
		MapLink:         "https://maps.google.com/?q=" + url.QueryEscape(name+", "+address),
		MentionCount:    1 + g.rng.Intn(maxMentions),
		LastMentionDate: storage.Time(lastMention),
	}
}

// FoodType derives the display food type for query. The first taxonomy
// trigger found wins; otherwise the first token that is neither a stop word
// nor part of the city name is capitalized; otherwise "restaurant".
func FoodType(query, city string) string {
	q := strings.ToLower(query)

	for _, cuisine := range taxonomy.Cuisines() {
		if tr, ok := cuisine.FirstTrigger(q); ok {
			return tr.FoodType
		}
	}

	cityWords := make(map[string]struct{})
	for _, w := range tokenize(strings.ToLower(city)) {
		cityWords[w] = struct{}{}
	}

	for _, token := range tokenize(q) {
		if taxonomy.IsStopWord(token) {
			continue
		}
		if _, ok := cityWords[token]; ok {
			continue
		}
		return capitalize(token)
	}
	return fallbackType
}

// DetectFlags reports the qualifier modifiers in query, using the same
// triggers as query classification.
func DetectFlags(query string) Flags {
	q := strings.ToLower(query)
	return Flags{
		Buffet:    matches(taxonomy.Buffet, q),
		Authentic: matches(taxonomy.Authentic, q),
		Cheap:     matches(taxonomy.Cheap, q),
		Expensive: matches(taxonomy.Expensive, q),
		Best:      matches(taxonomy.Best, q),
	}
}

func matches(tag taxonomy.QualifierTag, lowerQuery string) bool {
	qual, ok := taxonomy.LookupQualifier(tag)
	return ok && qual.Matches(lowerQuery)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
