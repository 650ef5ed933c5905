package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	cataloghttp "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/http"
	orderhttp "github.com/dmehra2102/checkout-service/internal/order/infrastructure/http"
	paymenthttp "github.com/dmehra2102/checkout-service/internal/payment/infrastructure/http"
	reportinghttp "github.com/dmehra2102/checkout-service/internal/reporting/infrastructure/http"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/logging"
	"github.com/dmehra2102/checkout-service/pkg/respond"
)

type Handlers struct {
	Catalog   *cataloghttp.Handler
	Orders    *orderhttp.Handler
	Payments  *paymenthttp.Handler
	Reporting *reportinghttp.Handler
}

// NewRouter mounts the public catalog, the authenticated /api routes and the
// admin-only /admin routes. writeMW wraps checkout and payment processing.
func NewRouter(log *slog.Logger, authn *auth.Authenticator, h Handlers, writeMW ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		h.Catalog.Routes(api)
		api.Group(func(g chi.Router) {
			g.Use(authn.Middleware)
			h.Orders.APIRoutes(g, writeMW...)
			h.Payments.APIRoutes(g, writeMW...)
		})
	})

	r.Route("/admin", func(adm chi.Router) {
		adm.Use(authn.Middleware)
		adm.Use(authn.RequireAdmin)
		h.Reporting.AdminRoutes(adm)
		h.Orders.AdminRoutes(adm)
		h.Payments.AdminRoutes(adm)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusNotFound, respond.Envelope{Message: "Not found"})
	})
	return r
}
