package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestMatch(t *testing.T) {
	torontoSpice := Candidate{PlaceID: "a", Name: "House of Spice", Address: "10 Queen St W, Toronto, ON M5H 2N2, Canada"}
	ottawaSpice := Candidate{PlaceID: "b", Name: "House of Spice!", Address: "123 Bank St, Ottawa, ON K1P 5N7, Canada"}
	other := Candidate{PlaceID: "c", Name: "Spice Route", Address: "1 Main St, Ottawa, ON"}

	tests := []struct {
		name       string
		candidates []Candidate
		wantID     string
	}{
		{"name and city", []Candidate{other, torontoSpice, ottawaSpice}, "b"},
		{"name only", []Candidate{other, torontoSpice}, "a"},
		{"first candidate", []Candidate{other}, "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBestMatch("House of Spice", "Ottawa", tt.candidates)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.PlaceID)
		})
	}

	assert.Nil(t, SelectBestMatch("House of Spice", "Ottawa", nil))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "samosa king", NormalizeName("  Samosa   KING! "))
	assert.Equal(t, "fish chips", NormalizeName("Fish & Chips"))
	assert.Equal(t, "joe s diner", NormalizeName("Joe-s Diner"))
}

func TestAddressInCity(t *testing.T) {
	assert.True(t, AddressInCity("123 Bank St, Ottawa, ON K1P 5N7", "ottawa"))
	assert.True(t, AddressInCity("1 Congress Ave, Austin TX 78701", "Austin"))
	assert.False(t, AddressInCity("1 Main St, Ottawa Valley Rd, Arnprior", "Ottawa V"))
	assert.False(t, AddressInCity("1 Main St, Toronto", "Ottawa"))
	assert.False(t, AddressInCity("1 Main St, Toronto", ""))
}

func TestHTTPFinder_FindPlaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Samosa King Ottawa", body["textQuery"])

		_, _ = w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"Samosa King"},
			"formattedAddress":"456 Rideau St, Ottawa, ON","rating":4.5,
			"currentOpeningHours":{"openNow":true},"googleMapsUri":"https://maps.google.com/?cid=1",
			"location":{"latitude":45.43,"longitude":-75.68}}]}`))
	}))
	defer server.Close()

	finder, err := NewHTTPFinder(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	got, err := finder.FindPlaces(context.Background(), "Samosa King", "Ottawa")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PlaceID)
	assert.Equal(t, "Samosa King", got[0].Name)
	require.NotNil(t, got[0].Rating)
	assert.InDelta(t, 4.5, *got[0].Rating, 1e-9)
	require.NotNil(t, got[0].OpenNow)
	assert.True(t, *got[0].OpenNow)
	assert.InDelta(t, 45.43, got[0].Latitude, 1e-9)
}

func TestHTTPFinder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key invalid","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	finder, err := NewHTTPFinder(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = finder.FindPlaces(context.Background(), "X", "Ottawa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key invalid")
}

func TestHTTPFinder_ResponseSizeLimit(t *testing.T) {
	places := `{"places":[{"id":"p1","displayName":{"text":"Samosa King"}}]}`

	tests := []struct {
		name     string
		body     string
		maxBytes int64
		wantErr  string
	}{
		{name: "within limit", body: places, maxBytes: int64(len(places))},
		{name: "over limit", body: places + strings.Repeat(" ", 64), maxBytes: int64(len(places)), wantErr: "exceeds"},
		{name: "default limit", body: places},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			finder, err := NewHTTPFinder(Config{APIKey: "k", BaseURL: server.URL, MaxResponseBytes: tt.maxBytes})
			require.NoError(t, err)

			got, err := finder.FindPlaces(context.Background(), "Samosa King", "Ottawa")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "p1", got[0].PlaceID)
		})
	}
}

func TestNewHTTPFinder_RequiresKey(t *testing.T) {
	_, err := NewHTTPFinder(Config{})
	assert.Error(t, err)
}

func TestStaticFinder(t *testing.T) {
	f := &StaticFinder{Candidates: map[string][]Candidate{"samosa king": {{PlaceID: "p"}}}}
	got, err := f.FindPlaces(context.Background(), "Samosa King", "Ottawa")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
