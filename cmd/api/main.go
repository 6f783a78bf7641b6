package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/greengrocer/storefront/api/routes"
	"github.com/greengrocer/storefront/internal/accounts"
	"github.com/greengrocer/storefront/internal/auth"
	"github.com/greengrocer/storefront/internal/cart"
	"github.com/greengrocer/storefront/internal/checkout"
	"github.com/greengrocer/storefront/internal/inventory"
	"github.com/greengrocer/storefront/internal/orders"
	product "github.com/greengrocer/storefront/internal/products"
	"github.com/greengrocer/storefront/pkg/auth/session"
	"github.com/greengrocer/storefront/pkg/config"
	"github.com/greengrocer/storefront/pkg/db"
	"github.com/greengrocer/storefront/pkg/instance"
	"github.com/greengrocer/storefront/pkg/logger"
	"github.com/greengrocer/storefront/pkg/metrics"
	"github.com/greengrocer/storefront/pkg/migrate"
	"github.com/greengrocer/storefront/pkg/outbox"
	"github.com/greengrocer/storefront/pkg/redis"
	"github.com/greengrocer/storefront/pkg/security"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"instance": instance.GetID()},
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gormDB := dbClient.DB()
	productRepo := product.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	accountsRepo := accounts.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	productService, err := product.NewService(productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, redisClient, cfg.Cart.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	merger, err := cart.NewMerger(cartRepo, dbClient, productRepo, redisClient, cfg.Cart.SessionTTL, metrics.NewMergeMetrics(registry), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart merger", err)
		os.Exit(1)
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(gormDB), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(dbClient, cartRepo, ordersRepo, ledger, outboxService, metrics.NewCheckoutMetrics(registry), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	profileService, err := accounts.NewProfileService(accountsRepo, ordersService)
	if err != nil {
		logg.Error(context.Background(), "failed to create profile service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		TxRunner:       dbClient,
		Accounts:       accountsRepo,
		Hasher:         security.NewPasswordHasher(cfg.Password),
		SessionManager: sessionManager,
		Merger:         merger,
		Outbox:         outboxService,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			registry,
			productService,
			cartService,
			checkoutService,
			ordersService,
			profileService,
			authService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
