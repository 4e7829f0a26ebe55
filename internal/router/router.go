package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/yeopl/route-planner/internal/api/chat"
	placeSearch "github.com/yeopl/route-planner/internal/api/place_search"
	"github.com/yeopl/route-planner/internal/api/planner"
)

// Config contains dependencies needed for the router setup
type Config struct {
	ChatHandler        *chat.Handler
	PlaceSearchHandler *placeSearch.Handler
	PlannerHandler     *planner.Handler
	AllowedOrigins     []string
	// ModelRateLimit guards the routes that call the language model.
	ModelRateLimit func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the application router. Server-wide
// middleware (request id, logger, recoverer) is applied by the caller.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limit := cfg.ModelRateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	// Same path the web client has always called.
	r.With(limit).Post("/api/chat", cfg.ChatHandler.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/places/search", cfg.PlaceSearchHandler.SearchPlaces)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", cfg.PlannerHandler.ListConversations)
			r.Post("/", cfg.PlannerHandler.CreateConversation)
			r.Get("/active", cfg.PlannerHandler.ActiveConversation)
			r.Put("/{id}/select", cfg.PlannerHandler.SelectConversation)
			r.Patch("/{id}", cfg.PlannerHandler.RenameConversation)
			r.Delete("/{id}", cfg.PlannerHandler.DeleteConversation)
		})

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/messages", cfg.PlannerHandler.SendMessage)
			r.Post("/recommendations", cfg.PlannerHandler.RequestRecommendation)
		})

		r.Route("/itinerary", func(r chi.Router) {
			r.Get("/", cfg.PlannerHandler.Itinerary)
			r.Post("/places", cfg.PlannerHandler.AddPlace)
			r.Delete("/places/{placeID}", cfg.PlannerHandler.RemovePlace)
			r.Post("/reorder", cfg.PlannerHandler.ReorderPlace)
		})

		r.Get("/map", cfg.PlannerHandler.MapView)
	})

	return r
}
