package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/RMahshie/sweepwatch/internal/api/handlers"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        http.Handler // served at /metrics when set
}

// NewRouter builds the chi router with middleware, the Huma API and the
// metrics endpoint.
func NewRouter(cfg RouterConfig, spectrumHandler *handlers.SpectrumHandler) (*chi.Mux, huma.API) {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(middleware.Compress(5))

	// Create Huma API
	config := huma.DefaultConfig("Sweepwatch API", Version)
	config.DocsPath = ""
	api := humachi.New(router, config)

	RegisterRoutes(api, spectrumHandler)

	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Serve OpenAPI spec at /api/docs
	router.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		spec, err := api.OpenAPI().MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to generate OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Write(spec)
	})

	return router, api
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, spectrumHandler *handlers.SpectrumHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getSpectrum",
		Method:      http.MethodGet,
		Path:        "/api/spectrum",
		Summary:     "Get spectrum",
		Description: "Returns last, min and max power per frequency bin, optionally limited to a window",
		Tags:        []string{"Spectrum"},
	}, spectrumHandler.GetSpectrum)

	huma.Register(api, huma.Operation{
		OperationID: "getPeaks",
		Method:      http.MethodGet,
		Path:        "/api/spectrum/peaks",
		Summary:     "Get peaks",
		Description: "Returns the strongest bins ranked by last or max power",
		Tags:        []string{"Spectrum"},
	}, spectrumHandler.GetPeaks)

	huma.Register(api, huma.Operation{
		OperationID: "getRate",
		Method:      http.MethodGet,
		Path:        "/api/rate",
		Summary:     "Get message rate",
		Description: "Returns ingested sweep records per second over a trailing window",
		Tags:        []string{"Ingest"},
	}, spectrumHandler.GetRate)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get pipeline status",
		Description: "Returns the source endpoint, aggregate size, rate and frame counters",
		Tags:        []string{"Ingest"},
	}, spectrumHandler.GetStatus)
}
