package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/postal"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/redis"
)

type pageFactory interface {
	controllers.PageOpener
	middleware.SessionChecker
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pages pageFactory,
	source catalog.Source,
	postalClient *postal.Client,
	redisClient *redis.Client,
	readiness map[string]controllers.Pinger,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	var limiter middleware.RateLimiter
	if redisClient != nil {
		limiter = redisClient
	}
	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/categories", controllers.CategoriesList(source, logg))
		r.Get("/postal/{cep}", controllers.PostalLookup(postalClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ClientID(cfg.FeatureFlags.SecureCookie, logg))

		r.Get("/ping", controllers.ClientPing())
		r.Get("/pages/{kind}", controllers.PageView(pages, logg))
		r.Get("/products", controllers.ProductsList(pages, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(pages, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(pages, logg))
			r.Post("/logout", controllers.AuthLogout(pages, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(pages, logg))
			r.Delete("/", controllers.CartClear(pages, logg))
			r.Post("/items", controllers.CartAddItem(pages, logg))
			r.Patch("/items/{position}", controllers.CartChangeQuantity(pages, logg))
			r.Delete("/items/{position}", controllers.CartRemoveItem(pages, logg))
			r.Put("/items/{position}/selection", controllers.CartSelectItem(pages, logg))
			r.Patch("/products/{productID}", controllers.CartChangeQuantityByID(pages, logg))
			r.Delete("/products/{productID}", controllers.CartRemoveByID(pages, logg))
			r.Put("/products/{productID}/selection", controllers.CartSelectByID(pages, logg))
			r.Put("/selection", controllers.CartSelectAll(pages, logg))
			r.Post("/checkout", controllers.CartCheckout(pages, logg))
			if !cfg.App.IsProd() {
				r.Post("/seed", controllers.CartSeed(pages, logg))
			}
		})

		r.Route("/account", func(r chi.Router) {
			r.Use(middleware.RequireSession(pages, logg))
			r.Get("/", controllers.AccountMe(pages, logg))
		})
	})

	return r
}
