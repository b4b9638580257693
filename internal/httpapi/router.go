// Package httpapi exposes the catalog, cart, checkout and order lifecycle over HTTP.
//
// Every response is a JSON envelope: {"success":true,"data":...} or
// {"success":false,"error":{"code":...,"message":...,"details":...}}.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/suriekke/shopeasy2-sub000/internal/auth"
	"github.com/suriekke/shopeasy2-sub000/internal/cart"
	"github.com/suriekke/shopeasy2-sub000/internal/catalog"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/metrics"
	"github.com/suriekke/shopeasy2-sub000/internal/orders"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

type Deps struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Store   repository.Store
	Catalog *catalog.Service
	Cart    *cart.Service
	Orders  *orders.Engine
	Auth    *auth.Service

	RequestTimeout    time.Duration
	RequestsPerMinute int
	OTPPerMinute      int
	Production        bool
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		RequestID(log),
		Recoverer(log),
		Logging(log),
		d.Metrics.Middleware,
		SecureHeaders(d.Production, log),
		middleware.Timeout(timeout),
	)
	if d.RequestsPerMinute > 0 {
		r.Use(httprate.Limit(d.RequestsPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimited),
		))
	}

	r.Get("/healthz", Health(d.Store, log))
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/auth/otp", func(r chi.Router) {
		if d.OTPPerMinute > 0 {
			r.Use(httprate.Limit(d.OTPPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimited),
			))
		}
		r.Post("/request", OTPRequest(d.Auth, log))
		r.Post("/verify", OTPVerify(d.Auth, log))
	})

	r.Get("/categories", CategoryList(d.Catalog, log))
	r.Get("/products", ProductList(d.Catalog, log))
	r.Get("/products/{id}", ProductGet(d.Catalog, log))

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(d.Auth, log))

		r.Post("/auth/logout", Logout(d.Auth, log))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", CartGet(d.Cart, log))
			r.Delete("/", CartClear(d.Cart, d.Metrics, log))
			r.Post("/items", CartAddItem(d.Cart, d.Metrics, log))
			r.Patch("/items/{product_id}", CartSetQuantity(d.Cart, d.Metrics, log))
			r.Delete("/items/{product_id}", CartRemoveItem(d.Cart, d.Metrics, log))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", OrderCreate(d.Orders, log))
			r.Get("/", OrderList(d.Orders, log))
			r.Get("/{id}", OrderGet(d.Orders, log))
			r.Post("/{id}/cancel", OrderCancel(d.Orders, log))
			r.With(RequireAdmin(log)).Patch("/{id}/status", OrderUpdateStatus(d.Orders, log))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(log))
			r.Get("/orders", AdminOrderList(d.Orders, log))
			r.Post("/categories", AdminCategoryCreate(d.Catalog, log))
			r.Post("/products", AdminProductCreate(d.Catalog, log))
			r.Patch("/products/{id}", AdminProductUpdate(d.Catalog, log))
		})
	})

	return r
}
