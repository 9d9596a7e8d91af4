package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-fin/meridian/internal/aging"
	"github.com/meridian-fin/meridian/internal/observability"
	"github.com/meridian-fin/meridian/internal/payable"
	"github.com/meridian-fin/meridian/internal/payreq"
	"github.com/meridian-fin/meridian/internal/receivable"
	"github.com/meridian-fin/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	PayableHandler    *payable.Handler
	PayReqHandler     *payreq.Handler
	ReceivableHandler *receivable.Handler
	AgingHandler      *aging.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
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

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.PayableHandler != nil {
			api.Route("/payables", params.PayableHandler.MountRoutes)
		}
		if params.PayReqHandler != nil {
			api.Route("/payment-requests", params.PayReqHandler.MountRoutes)
		}
		if params.ReceivableHandler != nil {
			api.Route("/receivables", params.ReceivableHandler.MountRoutes)
		}
		if params.AgingHandler != nil {
			api.Route("/aging", params.AgingHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
