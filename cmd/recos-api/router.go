package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/localrecos/recos-engine/cmd/recos-api/handlers"
	"github.com/localrecos/recos-engine/cmd/recos-api/middleware"
	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/search"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, service *search.Service, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	searchHandler := handlers.NewSearchHandler(logger, service)
	restaurantHandler := handlers.NewRestaurantHandler(logger, service)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", restaurantHandler.Health)
		r.Get("/cities", restaurantHandler.Cities)
		r.Get("/cities/{city}/restaurants", restaurantHandler.ByCity)
		r.Get("/restaurants/{id}", restaurantHandler.Get)

		r.Get("/classify", searchHandler.Classify)
		r.Post("/search", searchHandler.Search)
		r.Post("/nlp-search", searchHandler.NLPSearch)
		r.Get("/search-history", searchHandler.History)
		r.Post("/analyze-sentiment", searchHandler.AnalyzeSentiment)
	})

	return r
}
