package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/batchgen/internal/api"
	apiMiddleware "github.com/phrazzld/batchgen/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.RedactRequestURI)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(apiMiddleware.NewMetricsMiddleware(app.metrics))

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	submitLimiter := apiMiddleware.NewRateLimiter(app.config.Generation.SubmitRatePerMinute)

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	resultsHandler := api.NewResultsHandler(app.resultsService, app.logger)
	credentialHandler := api.NewCredentialHandler(app.credentialService, app.logger)
	storyboardHandler := api.NewStoryboardHandler(app.storyboardService, app.logger)
	progressHandler := api.NewProgressHandler(app.generationService, app.notifier, app.logger)
	healthHandler := api.NewHealthHandler(app.db, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Generation sessions
			r.With(submitLimiter.Limit).Post("/generations", generationHandler.Start)
			r.Get("/generations", generationHandler.List)
			r.Get("/generations/{id}", generationHandler.Get)
			r.Post("/generations/{id}/cancel", generationHandler.Cancel)

			// Progress push
			r.Get("/generations/{id}/events", progressHandler.Events)
			r.Get("/generations/{id}/ws", progressHandler.Socket)

			// Results and selection
			r.Get("/generations/{id}/results", resultsHandler.List)
			r.Patch("/results/{id}/selection", resultsHandler.SetSelection)

			// Video scripts and characters
			r.Post("/scripts/video", storyboardHandler.VideoScript)
			r.With(submitLimiter.Limit).Post("/scripts/characters", storyboardHandler.Characters)

			// API keys
			r.Post("/credentials/validate", credentialHandler.Validate)
			r.Get("/credentials", credentialHandler.List)
		})
	})

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", app.metrics.Handler())

	return r
}
