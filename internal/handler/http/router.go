package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sikiCompany/catalog-api/internal/service"
	"github.com/sikiCompany/catalog-api/pkg/health"
	"github.com/sikiCompany/catalog-api/pkg/middleware"
)

// NewRouter creates a chi router with all catalog API routes registered.
func NewRouter(
	catalogService *service.CatalogService,
	searchService *service.SearchService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("catalog-api"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("catalog-api"))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Product API endpoints
	productHandler := NewProductHandler(catalogService, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", productHandler.ListProducts)
		r.Post("/", productHandler.CreateProduct)
		r.Get("/{id}", productHandler.GetProduct)
		r.Put("/{id}", productHandler.UpdateProduct)
		r.Patch("/{id}", productHandler.UpdateProduct)
		r.Delete("/{id}", productHandler.DeleteProduct)
		r.Post("/{id}/restore", productHandler.RestoreProduct)
		r.Post("/{id}/image", productHandler.UploadImage)
	})

	// Search API endpoints
	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Get("/products", searchHandler.SearchProducts)
	})

	return r
}
