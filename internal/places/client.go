package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const fieldMask = "places.id,places.displayName,places.formattedAddress,places.rating," +
	"places.currentOpeningHours.openNow,places.googleMapsUri,places.location"

const defaultMaxResponseBytes = 4 << 20

// HTTPFinder queries the Google Places text search endpoint.
type HTTPFinder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxBytes   int64
}

// Config holds places client configuration.
type Config struct {
	APIKey           string
	BaseURL          string // Default: https://places.googleapis.com/v1
	Timeout          time.Duration
	MaxResponseBytes int64 // Default: 4 MiB
}

// NewHTTPFinder creates a places client.
func NewHTTPFinder(cfg Config) (*HTTPFinder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://places.googleapis.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	return &HTTPFinder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxBytes:   maxBytes,
	}, nil
}

type searchTextRequest struct {
	TextQuery string `json:"textQuery"`
}

type searchTextResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress    string   `json:"formattedAddress"`
		Rating              *float64 `json:"rating"`
		CurrentOpeningHours *struct {
			OpenNow *bool `json:"openNow"`
		} `json:"currentOpeningHours"`
		GoogleMapsURI string `json:"googleMapsUri"`
		Location      struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"places"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// FindPlaces searches for "<name> <city>".
func (f *HTTPFinder) FindPlaces(ctx context.Context, name, city string) ([]Candidate, error) {
	body, err := json.Marshal(searchTextRequest{TextQuery: strings.TrimSpace(name + " " + city)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", f.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", f.maxBytes)
	}

	var parsed searchTextResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("places API error: %s (status: %s)", parsed.Error.Message, parsed.Error.Status)
		}
		return nil, fmt.Errorf("places API returned HTTP %d", resp.StatusCode)
	}

	out := make([]Candidate, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		c := Candidate{
			PlaceID:   p.ID,
			Name:      p.DisplayName.Text,
			Address:   p.FormattedAddress,
			Rating:    p.Rating,
			MapsURL:   p.GoogleMapsURI,
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
		}
		if p.CurrentOpeningHours != nil {
			c.OpenNow = p.CurrentOpeningHours.OpenNow
		}
		out = append(out, c)
	}
	return out, nil
}

// StaticFinder is a test double serving canned candidates keyed by
// lower-cased restaurant name.
type StaticFinder struct {
	Candidates map[string][]Candidate
	Err        error
}

// FindPlaces returns the canned candidates for name.
func (s *StaticFinder) FindPlaces(_ context.Context, name, _ string) ([]Candidate, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Candidates[strings.ToLower(name)], nil
}

var (
	_ Finder = (*HTTPFinder)(nil)
	_ Finder = (*StaticFinder)(nil)
)
