// Package classifier tags free-text queries with cuisine and qualifier intents.
package classifier

import (
	"sort"
	"strings"

	"github.com/localrecos/recos-engine/internal/taxonomy"
)

// Classification is the set of tags a query triggered. Both slices are
// deduplicated and sorted; order carries no ranking meaning.
type Classification struct {
	Cuisines   []taxonomy.CuisineTag   `json:"cuisines"`
	Qualifiers []taxonomy.QualifierTag `json:"qualifiers"`
}

// HasCuisine reports whether tag was triggered.
func (c Classification) HasCuisine(tag taxonomy.CuisineTag) bool {
	for _, t := range c.Cuisines {
		if t == tag {
			return true
		}
	}
	return false
}

// HasQualifier reports whether tag was triggered.
func (c Classification) HasQualifier(tag taxonomy.QualifierTag) bool {
	for _, t := range c.Qualifiers {
		if t == tag {
			return true
		}
	}
	return false
}

// IsGeneric reports a query that triggered nothing.
func (c Classification) IsGeneric() bool {
	return len(c.Cuisines) == 0 && len(c.Qualifiers) == 0
}

// Classifier maps queries onto the taxonomy. The zero value is ready to use.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify lower-cases the query and substring-tests every trigger phrase.
// Extended cuisines are ignored; they only name synthesized restaurants.
func (c *Classifier) Classify(query string) Classification {
	q := strings.ToLower(query)

	result := Classification{
		Cuisines:   []taxonomy.CuisineTag{},
		Qualifiers: []taxonomy.QualifierTag{},
	}
	if strings.TrimSpace(q) == "" {
		return result
	}

	for _, cuisine := range taxonomy.Cuisines() {
		if cuisine.Extended {
			continue
		}
		if _, ok := cuisine.FirstTrigger(q); ok {
			result.Cuisines = append(result.Cuisines, cuisine.Tag)
		}
	}

	for _, qualifier := range taxonomy.Qualifiers() {
		if qualifier.Matches(q) {
			result.Qualifiers = append(result.Qualifiers, qualifier.Tag)
		}
	}

	sort.Slice(result.Cuisines, func(i, j int) bool { return result.Cuisines[i] < result.Cuisines[j] })
	sort.Slice(result.Qualifiers, func(i, j int) bool { return result.Qualifiers[i] < result.Qualifiers[j] })

	return result
}
