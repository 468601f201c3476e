// Package taxonomy is the single keyword table shared by query classification
// and synthetic result generation.
//
// Cuisines are ordered: lookups that take the first match (food-type
// derivation) depend on table order, and within an entry dish triggers come
// before the cuisine name so "indian samosas" yields "Samosa".
package taxonomy

import "strings"

// CuisineTag identifies a cuisine family.
type CuisineTag string

// QualifierTag identifies a non-cuisine intent modifier.
type QualifierTag string

const (
	Indian        CuisineTag = "indian"
	Japanese      CuisineTag = "japanese"
	Italian       CuisineTag = "italian"
	Mexican       CuisineTag = "mexican"
	Chinese       CuisineTag = "chinese"
	Thai          CuisineTag = "thai"
	Korean        CuisineTag = "korean"
	Vietnamese    CuisineTag = "vietnamese"
	American      CuisineTag = "american"
	Mediterranean CuisineTag = "mediterranean"
	French        CuisineTag = "french"
	Breakfast     CuisineTag = "breakfast"
	Dessert       CuisineTag = "dessert"
	Cafe          CuisineTag = "cafe"
	Seafood       CuisineTag = "seafood"

	// Extended families are only used to name synthesized restaurants.
	Vegan     CuisineTag = "vegan"
	Ethiopian CuisineTag = "ethiopian"
	Caribbean CuisineTag = "caribbean"
	Barbecue  CuisineTag = "bbq"
)

// BestMinRating is the lowest Google rating that satisfies the best qualifier.
const BestMinRating = 4.3

const (
	Authentic  QualifierTag = "authentic"
	Cheap      QualifierTag = "cheap"
	Expensive  QualifierTag = "expensive"
	Best       QualifierTag = "best"
	Buffet     QualifierTag = "buffet"
	Vegetarian QualifierTag = "vegetarian"
	GlutenFree QualifierTag = "gluten-free"
)

// Trigger is a phrase that, found in a query, selects its cuisine. FoodType
// is the display form used when naming synthesized restaurants.
type Trigger struct {
	Phrase   string
	FoodType string
}

// Cuisine is one row of the cuisine table.
type Cuisine struct {
	Tag      CuisineTag
	Label    string
	Triggers []Trigger
	// Aliases are extra category words that count as this cuisine
	// ("sushi" bars are japanese) without being query triggers.
	Aliases  []string
	Extended bool
}

// Qualifier is one row of the qualifier table.
type Qualifier struct {
	Tag      QualifierTag
	Triggers []string
	// Masks are blanked out of the query before Triggers are tested so that
	// "inexpensive" never reads as "expensive".
	Masks []string
}

func trig(phrase, foodType string) Trigger { return Trigger{Phrase: phrase, FoodType: foodType} }

var cuisines = []Cuisine{
	{Tag: Indian, Label: "Indian", Triggers: []Trigger{
		trig("samosa", "Samosa"), trig("biryani", "Biryani"), trig("tandoori", "Tandoori"),
		trig("butter chicken", "Butter Chicken"), trig("masala", "Masala"), trig("naan", "Naan"),
		trig("dosa", "Dosa"), trig("curry", "Curry"), trig("indian", "Indian"),
	}, Aliases: []string{"punjabi", "south asian"}},
	{Tag: Japanese, Label: "Japanese", Triggers: []Trigger{
		trig("sushi", "Sushi"), trig("ramen", "Ramen"), trig("sashimi", "Sashimi"), trig("udon", "Udon"),
		trig("tempura", "Tempura"), trig("izakaya", "Izakaya"), trig("japanese", "Japanese"),
	}},
	{Tag: Italian, Label: "Italian", Triggers: []Trigger{
		trig("pizza", "Pizza"), trig("pasta", "Pasta"), trig("lasagna", "Lasagna"), trig("risotto", "Risotto"),
		trig("gelato", "Gelato"), trig("italian", "Italian"),
	}, Aliases: []string{"pizzeria", "trattoria"}},
	{Tag: Mexican, Label: "Mexican", Triggers: []Trigger{
		trig("taco", "Taco"), trig("burrito", "Burrito"), trig("quesadilla", "Quesadilla"),
		trig("enchilada", "Enchilada"), trig("nacho", "Nacho"), trig("mexican", "Mexican"),
	}, Aliases: []string{"taqueria", "tex-mex"}},
	{Tag: Chinese, Label: "Chinese", Triggers: []Trigger{
		trig("dim sum", "Dim Sum"), trig("dumpling", "Dumpling"), trig("szechuan", "Szechuan"),
		trig("sichuan", "Sichuan"), trig("cantonese", "Cantonese"), trig("chinese", "Chinese"),
	}},
	{Tag: Thai, Label: "Thai", Triggers: []Trigger{
		trig("pad thai", "Pad Thai"), trig("green curry", "Thai Curry"), trig("thai", "Thai"),
	}},
	{Tag: Korean, Label: "Korean", Triggers: []Trigger{
		trig("bibimbap", "Bibimbap"), trig("kimchi", "Kimchi"), trig("korean", "Korean"),
	}},
	{Tag: Vietnamese, Label: "Vietnamese", Triggers: []Trigger{
		trig("pho", "Pho"), trig("banh mi", "Banh Mi"), trig("vietnamese", "Vietnamese"),
	}},
	{Tag: American, Label: "American", Triggers: []Trigger{
		trig("burger", "Burger"), trig("hot dog", "Hot Dog"), trig("wings", "Wings"),
		trig("fried chicken", "Fried Chicken"), trig("american", "American"),
	}, Aliases: []string{"diner"}},
	{Tag: Mediterranean, Label: "Mediterranean", Triggers: []Trigger{
		trig("shawarma", "Shawarma"), trig("falafel", "Falafel"), trig("gyro", "Gyro"),
		trig("hummus", "Hummus"), trig("greek", "Greek"), trig("lebanese", "Lebanese"),
		trig("mediterranean", "Mediterranean"),
	}, Aliases: []string{"middle eastern"}},
	{Tag: French, Label: "French", Triggers: []Trigger{
		trig("crepe", "Crepe"), trig("croissant", "Croissant"), trig("bistro", "Bistro"), trig("french", "French"),
	}},
	{Tag: Breakfast, Label: "Breakfast", Triggers: []Trigger{
		trig("brunch", "Brunch"), trig("pancake", "Pancake"), trig("waffle", "Waffle"), trig("breakfast", "Breakfast"),
	}},
	{Tag: Dessert, Label: "Dessert", Triggers: []Trigger{
		trig("ice cream", "Ice Cream"), trig("donut", "Donut"), trig("cake", "Cake"),
		trig("bakery", "Bakery"), trig("dessert", "Dessert"),
	}},
	{Tag: Cafe, Label: "Cafe", Triggers: []Trigger{
		trig("coffee", "Coffee"), trig("espresso", "Espresso"), trig("cafe", "Cafe"),
	}},
	{Tag: Seafood, Label: "Seafood", Triggers: []Trigger{
		trig("oyster", "Oyster"), trig("lobster", "Lobster"), trig("fish and chips", "Fish and Chips"),
		trig("seafood", "Seafood"),
	}},

	{Tag: Vegan, Label: "Vegan", Extended: true, Triggers: []Trigger{
		trig("vegan", "Vegan"), trig("plant based", "Plant-Based"), trig("plant-based", "Plant-Based"),
	}},
	{Tag: Ethiopian, Label: "Ethiopian", Extended: true, Triggers: []Trigger{
		trig("injera", "Injera"), trig("ethiopian", "Ethiopian"),
	}},
	{Tag: Caribbean, Label: "Caribbean", Extended: true, Triggers: []Trigger{
		trig("jerk chicken", "Jerk Chicken"), trig("jamaican", "Jamaican"), trig("caribbean", "Caribbean"),
	}},
	{Tag: Barbecue, Label: "BBQ", Extended: true, Triggers: []Trigger{
		trig("brisket", "Brisket"), trig("barbecue", "BBQ"), trig("bbq", "BBQ"), trig("smokehouse", "Smokehouse"),
	}},
}

var qualifiers = []Qualifier{
	{Tag: Authentic, Triggers: []string{"authentic", "traditional"}},
	{Tag: Cheap, Triggers: []string{"cheap", "affordable", "inexpensive", "budget", "under $15", "under 15"}},
	{Tag: Expensive, Triggers: []string{"expensive", "upscale", "fine dining", "fancy", "high end", "high-end", "luxury"},
		Masks: []string{"inexpensive", "not expensive", "not too expensive"}},
	{Tag: Best, Triggers: []string{"best", "top rated", "top-rated", "highly rated", "highest rated"}},
	{Tag: Buffet, Triggers: []string{"buffet", "all you can eat", "all-you-can-eat", "ayce", "unlimited"}},
	{Tag: Vegetarian, Triggers: []string{"vegetarian", "veggie", "vegan", "plant based", "plant-based"}},
	{Tag: GlutenFree, Triggers: []string{"gluten free", "gluten-free", "celiac", "coeliac"}},
}

// StopWords are dropped before the first remaining query token is used as a
// food type.
var StopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "at": {}, "near": {}, "me": {}, "around": {},
	"for": {}, "to": {}, "of": {}, "and": {}, "with": {}, "on": {}, "by": {}, "some": {},
	"find": {}, "where": {}, "what": {}, "get": {}, "eat": {}, "want": {}, "i": {},
	"food": {}, "foods": {}, "restaurant": {}, "restaurants": {}, "place": {}, "places": {},
	"spot": {}, "spots": {}, "joint": {}, "good": {}, "great": {}, "nice": {}, "delicious": {},
	"best": {}, "top": {}, "cheap": {}, "affordable": {}, "budget": {}, "expensive": {},
	"authentic": {}, "traditional": {}, "buffet": {}, "local": {}, "popular": {}, "open": {},
	"now": {}, "tonight": {}, "today": {},
}

// City is a selectable city with a stable identifier.
type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PopularCities is the static list offered to clients.
var PopularCities = []City{
	{ID: "toronto", Name: "Toronto"},
	{ID: "nyc", Name: "New York"},
	{ID: "chicago", Name: "Chicago"},
	{ID: "sf", Name: "San Francisco"},
	{ID: "ottawa", Name: "Ottawa"},
	{ID: "vancouver", Name: "Vancouver"},
	{ID: "austin", Name: "Austin"},
	{ID: "boston", Name: "Boston"},
	{ID: "seattle", Name: "Seattle"},
	{ID: "portland", Name: "Portland"},
}

// Cuisines returns the full cuisine table, extended entries included.
func Cuisines() []Cuisine {
	return cuisines
}

// Qualifiers returns the qualifier table.
func Qualifiers() []Qualifier {
	return qualifiers
}

// LookupCuisine finds a cuisine entry by tag.
func LookupCuisine(tag CuisineTag) (Cuisine, bool) {
	for _, c := range cuisines {
		if c.Tag == tag {
			return c, true
		}
	}
	return Cuisine{}, false
}

// LookupQualifier finds a qualifier entry by tag.
func LookupQualifier(tag QualifierTag) (Qualifier, bool) {
	for _, q := range qualifiers {
		if q.Tag == tag {
			return q, true
		}
	}
	return Qualifier{}, false
}

// CategoryTerms returns the lower-case words a restaurant category may contain
// to count as the given cuisine: the tag, its aliases and every trigger phrase.
func CategoryTerms(tag CuisineTag) []string {
	c, ok := LookupCuisine(tag)
	if !ok {
		return nil
	}
	terms := make([]string, 0, 1+len(c.Aliases)+len(c.Triggers))
	terms = append(terms, string(c.Tag))
	terms = append(terms, c.Aliases...)
	for _, tr := range c.Triggers {
		terms = append(terms, tr.Phrase)
	}
	return terms
}

// Matches reports whether a lower-cased query triggers q.
func (q Qualifier) Matches(lowerQuery string) bool {
	for _, m := range q.Masks {
		lowerQuery = strings.ReplaceAll(lowerQuery, m, " ")
	}
	for _, phrase := range q.Triggers {
		if strings.Contains(lowerQuery, phrase) {
			return true
		}
	}
	return false
}

// FirstTrigger returns the first trigger of c found in a lower-cased query.
func (c Cuisine) FirstTrigger(lowerQuery string) (Trigger, bool) {
	for _, tr := range c.Triggers {
		if strings.Contains(lowerQuery, tr.Phrase) {
			return tr, true
		}
	}
	return Trigger{}, false
}

// IsStopWord reports whether a lower-case token carries no food meaning.
func IsStopWord(token string) bool {
	_, ok := StopWords[token]
	return ok
}
