package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/customers"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/products"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/stores"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/suppliers"
	"github.com/atlas-retail/atlas-erp/internal/observability"
	"github.com/atlas-retail/atlas-erp/internal/pricing"
	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductsHandler    *products.Handler
	StoresHandler      *stores.Handler
	CustomersHandler   *customers.Handler
	SuppliersHandler   *suppliers.Handler
	PricingHandler     *pricing.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Atlas defaults.
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

	r.Route("/masterdata", func(r chi.Router) {
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.StoresHandler != nil {
			params.StoresHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.SuppliersHandler != nil {
			params.SuppliersHandler.MountRoutes(r)
		}
	})
	if params.PricingHandler != nil {
		r.Route("/pricing", params.PricingHandler.MountRoutes)
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
