// Package places looks restaurants up in an external places directory and
// picks the listing that best corresponds to a stored restaurant.
package places

import (
	"context"
	"strings"
	"unicode"
)

// Candidate is one listing returned by a places lookup.
type Candidate struct {
	PlaceID   string   `json:"placeId"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Rating    *float64 `json:"rating,omitempty"`
	OpenNow   *bool    `json:"openNow,omitempty"`
	MapsURL   string   `json:"mapsUrl,omitempty"`
	Latitude  float64  `json:"latitude,omitempty"`
	Longitude float64  `json:"longitude,omitempty"`
}

// Finder returns listings for a restaurant name in a city.
type Finder interface {
	FindPlaces(ctx context.Context, name, city string) ([]Candidate, error)
}

// SelectBestMatch prefers a listing whose normalized name and address city
// both match, then one whose name alone matches, then the first listing.
// It returns nil when there are no candidates.
func SelectBestMatch(name, city string, candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	wantName := NormalizeName(name)
	var nameOnly *Candidate
	for i := range candidates {
		c := &candidates[i]
		if NormalizeName(c.Name) != wantName {
			continue
		}
		if AddressInCity(c.Address, city) {
			return c
		}
		if nameOnly == nil {
			nameOnly = c
		}
	}
	if nameOnly != nil {
		return nameOnly
	}
	return &candidates[0]
}

// NormalizeName lower-cases, drops punctuation and collapses whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '&':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AddressInCity reports whether one comma-separated component of address
// names the city, allowing a trailing region or postal code ("Ottawa ON").
func AddressInCity(address, city string) bool {
	want := strings.ToLower(strings.TrimSpace(city))
	if want == "" {
		return false
	}
	for _, part := range strings.Split(address, ",") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == want || strings.HasPrefix(p, want+" ") {
			return true
		}
	}
	return false
}
