package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/cafenet/internal/http/auth"
	"github.com/MrJamesThe3rd/cafenet/internal/http/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/http/export"
	"github.com/MrJamesThe3rd/cafenet/internal/http/importcsv"
	"github.com/MrJamesThe3rd/cafenet/internal/http/product"
	"github.com/MrJamesThe3rd/cafenet/internal/http/report"
	"github.com/MrJamesThe3rd/cafenet/internal/http/sales"
	"github.com/MrJamesThe3rd/cafenet/internal/http/undo"
)

type Options struct {
	AllowedOrigins []string
	// Auth guards /api/v1 when set.
	Auth *auth.Authenticator
}

type Handlers struct {
	Products *product.Handler
	Undo     *undo.Handler
	Sales    *sales.Handler
	Report   *report.Handler
	Import   *importcsv.Handler
	Export   *export.Handler
	// Backups is nil when the backup loop is disabled.
	Backups *backup.Handler
}

func New(opts Options, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.Middleware)
		}

		r.Route("/products", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Products.Routes(r)
		})

		r.Route("/undo", h.Undo.Routes)
		r.Route("/sales", h.Sales.Routes)
		r.Route("/report", h.Report.Routes)
		r.Route("/maintenance", h.Report.MaintenanceRoutes)
		r.Route("/import", h.Import.Routes)
		r.Route("/export", h.Export.Routes)

		if h.Backups != nil {
			r.Route("/backups", h.Backups.Routes)
		}
	})

	return router
}
