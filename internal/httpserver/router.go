package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"bmo-gateway/internal/handlers"
	"bmo-gateway/internal/metrics"
	"bmo-gateway/internal/middleware"
)

// SetupRouter wires middleware and routes onto r.
func SetupRouter(
	r *chi.Mux,
	baseLogger *zap.Logger,
	allowedOrigins []string,
	chatHandler *handlers.ChatHandler,
	ttsHandler *handlers.TTSHandler,
	healthHandler *handlers.HealthHandler,
) {
	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Cache"},
		MaxAge:         300,
	}))

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.MaxBodySize(512 * 1024))

	// routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chatHandler.ServeChat)
		r.Post("/tts", ttsHandler.ServeTTS)
		r.Post("/tts/preload", ttsHandler.ServePreload)
	})

	r.Get("/health", healthHandler.ServeHealth)

	r.Handle("/metrics", metrics.Handler())
}
