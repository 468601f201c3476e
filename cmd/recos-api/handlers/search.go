package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/search"
)

// SearchHandler serves search, natural language search, classification and
// sentiment analysis.
type SearchHandler struct {
	logger  *observability.Logger
	service *search.Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(logger *observability.Logger, service *search.Service) *SearchHandler {
	return &SearchHandler{logger: logger, service: service}
}

// SearchRequestDTO is the body of POST /search.
type SearchRequestDTO struct {
	Query  string `json:"query"`
	City   string `json:"city,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// NLPSearchRequestDTO is the body of POST /nlp-search.
type NLPSearchRequestDTO struct {
	Input  string `json:"input"`
	Filter string `json:"filter,omitempty"`
}

// SentimentRequestDTO is the body of POST /analyze-sentiment.
type SentimentRequestDTO struct {
	Text string `json:"text"`
}

// Search handles POST /search. ?filter= overrides the body's filter.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if f := r.URL.Query().Get("filter"); f != "" {
		req.Filter = f
	}

	resp, err := h.service.Search(r.Context(), search.Request{Query: req.Query, City: req.City, Filter: req.Filter})
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to search restaurants")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// NLPSearch handles POST /nlp-search.
func (h *SearchHandler) NLPSearch(w http.ResponseWriter, r *http.Request) {
	var req NLPSearchRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if f := r.URL.Query().Get("filter"); f != "" {
		req.Filter = f
	}

	resp, err := h.service.SearchNatural(r.Context(), req.Input, req.Filter)
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to process natural language search")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"extraction": resp.Extraction,
		"results":    resp.Response.Results,
		"search":     resp.Response,
	})
}

// AnalyzeSentiment handles POST /analyze-sentiment.
func (h *SearchHandler) AnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sentiment, err := h.service.AnalyzeSentiment(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to analyze sentiment")
		return
	}
	writeJSON(w, http.StatusOK, sentiment)
}

// Classify handles GET /classify?q=.
func (h *SearchHandler) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":          q,
		"classification": h.service.Classify(q),
	})
}

// History handles GET /search-history?limit=.
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	entries, err := h.service.History(r.Context(), limit)
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to fetch search history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
