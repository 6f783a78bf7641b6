package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greengrocer/storefront/api/controllers"
	"github.com/greengrocer/storefront/api/middleware"
	"github.com/greengrocer/storefront/internal/accounts"
	"github.com/greengrocer/storefront/internal/auth"
	"github.com/greengrocer/storefront/internal/cart"
	"github.com/greengrocer/storefront/internal/checkout"
	"github.com/greengrocer/storefront/internal/orders"
	product "github.com/greengrocer/storefront/internal/products"
	"github.com/greengrocer/storefront/pkg/auth/session"
	"github.com/greengrocer/storefront/pkg/config"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	productService product.Service,
	cartService cart.Service,
	checkoutService checkout.Service,
	ordersService orders.Service,
	profileService accounts.ProfileService,
	authService auth.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.RateLimit.Window,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginIdentityLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.RateLimit.Window,
		cfg.RateLimit.RegisterIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Cart.SessionCookieName, cfg.Cart.SessionTTL, cfg.App.IsProd(), logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
			r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(authService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ProductList(productService, logg))
				r.Get("/featured", controllers.ProductFeatured(productService, logg))
				r.Get("/{productId}", controllers.ProductDetail(productService, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartView(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
				r.Post("/items/{productId}/decrease", controllers.CartDecreaseItem(cartService, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))

			r.With(middleware.Idempotency(redisClient, cfg.Cart.IdempotencyTTL, logg)).Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderHistory(ordersService, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			})
			r.Get("/profile", controllers.Profile(profileService, logg))
		})
	})

	return r
}
