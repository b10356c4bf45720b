package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rsainju/pasalmart/api/controllers"
	"github.com/rsainju/pasalmart/api/middleware"
	"github.com/rsainju/pasalmart/pkg/config"
	"github.com/rsainju/pasalmart/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Cart     controllers.CartService
	Checkout controllers.CheckoutService
	Session  sessionStore
	Receiver controllers.CallbackReceiver
	Store    storePinger
	Registry *prometheus.Registry
}

type sessionStore interface {
	controllers.SessionReader
	controllers.SessionEnder
}

type storePinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(logg, deps.Store))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Redirect landings: the payment gateway and the identity provider both
	// re-enter the process here after a full page navigation.
	r.Get("/payment/return", controllers.PaymentReturn(deps.Checkout, logg))
	r.Get(cfg.Auth.CallbackPath, controllers.AuthCallback(deps.Receiver, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Post("/items", controllers.CartAdd(deps.Cart, logg))
			r.Put("/items/{key}", controllers.CartSetQuantity(deps.Cart, logg))
			r.Delete("/items/{key}", controllers.CartRemove(deps.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(deps.Checkout, logg))
			r.Post("/buy-now", controllers.BuyNow(deps.Checkout, logg))
		})

		r.Post("/auth/logout", controllers.AuthLogout(deps.Session, logg))
		r.Get("/session", controllers.SessionInfo(deps.Session, logg))
		r.Get("/purchases", controllers.PurchaseHistory(deps.Checkout, logg))
	})

	return r
}
