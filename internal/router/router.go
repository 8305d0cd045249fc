package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unifeed-dev/unifeed/internal/metrics"
	mw "github.com/unifeed-dev/unifeed/internal/middleware"
	"github.com/unifeed-dev/unifeed/internal/setup"
)

// New creates and configures the API router.
func New(deps *setup.Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)

	// CORS for the browser frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// JSON API only, no scripts/styles needed
	apiCSP := "default-src 'none'; frame-ancestors 'none'"
	r.Use(mw.SecurityHeadersWithCSP(deps.Cfg.Public.SecureCookies, apiCSP))

	h := deps.Handler

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(authed chi.Router) {
			authed.Use(deps.AuthMiddleware.NeedAuth())

			authed.Get("/progress/{ownerKind}/{ownerId}", h.Progress)
			authed.Post("/posts/{id}/photos", h.UploadPostPhotos)
			authed.Post("/featured-images", h.CreateFeaturedImage)
			authed.Post("/cohorts", h.GetOrCreateCohort)
		})
	})

	return r
}
