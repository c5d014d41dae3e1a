package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/internal/observability"
	"github.com/medtrack/medtrack/internal/request"
	"github.com/medtrack/medtrack/internal/stock"
	"github.com/medtrack/medtrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	ListingHandler      *listing.Handler
	StockHandler        *stock.Handler
	RequestHandler      *request.Handler
	NotificationHandler *notify.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router for the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/listings", params.ListingHandler.MountRoutes)
		r.Route("/stocks", params.StockHandler.MountRoutes)
		r.Route("/requests", params.RequestHandler.MountRoutes)
		r.Route("/notifications", params.NotificationHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
