package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/search"
)

// RestaurantHandler serves restaurant and city lookups.
type RestaurantHandler struct {
	logger  *observability.Logger
	service *search.Service
}

// NewRestaurantHandler creates a new restaurant handler.
func NewRestaurantHandler(logger *observability.Logger, service *search.Service) *RestaurantHandler {
	return &RestaurantHandler{logger: logger, service: service}
}

// Cities handles GET /cities.
func (h *RestaurantHandler) Cities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Cities())
}

// Get handles GET /restaurants/{id}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid restaurant ID", "")
		return
	}

	restaurant, err := h.service.Restaurant(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to fetch restaurant")
		return
	}
	writeJSON(w, http.StatusOK, restaurant)
}

// ByCity handles GET /cities/{city}/restaurants?q=.
func (h *RestaurantHandler) ByCity(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.CityRestaurants(r.Context(), chi.URLParam(r, "city"), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, h.logger.WithContext(r.Context()), err, "Failed to fetch city restaurants")
		return
	}
	writeJSON(w, http.StatusOK, restaurants)
}

// Health handles GET /health.
func (h *RestaurantHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "recos-engine",
		"stats":   h.service.Stats(),
	})
}
