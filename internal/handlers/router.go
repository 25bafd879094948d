package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/urbanwoods/api/internal/platform/auth"
	"github.com/urbanwoods/api/internal/platform/observability"
)

// RouterDeps wires the HTTP surface. Authenticator is optional so tests can
// exercise routes without a token verifier; production wiring always sets it.
type RouterDeps struct {
	Logger        *zap.Logger
	Orders        *OrdersHandler
	AdminOrders   *AdminOrdersHandler
	Health        *HealthHandler
	Authenticator *auth.Authenticator
}

// NewRouter assembles the chi router with the standard middleware stack.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(observability.InjectLoggerMiddleware(logger))
	r.Use(observability.TraceMiddleware())
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(logger))

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Live)
		r.Get("/readyz", deps.Health.Ready)
	}

	requireAuth := passthrough
	requireAdmin := passthrough
	if deps.Authenticator != nil {
		requireAuth = deps.Authenticator.RequireAuth()
		requireAdmin = deps.Authenticator.RequireAdmin()
	}

	r.Route("/api/v1/orders", func(r chi.Router) {
		if deps.Orders != nil {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/placeOrders", deps.Orders.PlaceOrder)
				r.Post("/create-razorpay-order", deps.Orders.CreateRazorpayOrder)
				r.Post("/verify-payment", deps.Orders.VerifyPayment)
			})
		}
		if deps.AdminOrders != nil {
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/all", deps.AdminOrders.ListAll)
				r.Get("/admin/order/{orderID}", deps.AdminOrders.Get)
				r.Delete("/admin/order/{orderID}", deps.AdminOrders.Delete)
				r.Post("/admin/manual-order", deps.AdminOrders.ManualOrder)
				r.Get("/admin/notifications", deps.AdminOrders.Notifications)
				r.Put("/updateStatus/{orderID}", deps.AdminOrders.UpdateStatus)
				r.Put("/updateTracking/{orderID}", deps.AdminOrders.UpdateTracking)
				r.Get("/dashboard/top-selling", deps.AdminOrders.TopSelling)
			})
		}
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
