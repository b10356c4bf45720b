package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rsainju/pasalmart/api/routes"
	"github.com/rsainju/pasalmart/internal/authcallback"
	"github.com/rsainju/pasalmart/internal/cart"
	"github.com/rsainju/pasalmart/internal/checkout"
	"github.com/rsainju/pasalmart/internal/gateway"
	"github.com/rsainju/pasalmart/internal/session"
	"github.com/rsainju/pasalmart/internal/storage"
	"github.com/rsainju/pasalmart/pkg/config"
	"github.com/rsainju/pasalmart/pkg/db"
	"github.com/rsainju/pasalmart/pkg/logger"
	"github.com/rsainju/pasalmart/pkg/metrics"
	"github.com/rsainju/pasalmart/pkg/redis"
)

type storeBackend interface {
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	kv, backend, err := buildDurableStore(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap durable store", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logg.Error(context.Background(), "error closing durable store", err)
		}
	}()

	sessionStore, err := session.NewStore(kv, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create session store", err)
		os.Exit(1)
	}
	cartAgg, err := cart.NewAggregator(kv, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart", err)
		os.Exit(1)
	}
	sessionStore.BindCart(cartAgg)

	if err := sessionStore.Load(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load session", err)
		os.Exit(1)
	}
	if err := cartAgg.Load(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load cart", err)
		os.Exit(1)
	}

	backendClient, err := gateway.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, sessionStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create backend client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	orchestrator, err := checkout.NewOrchestrator(checkout.Params{
		Cart:          cartAgg,
		Session:       sessionStore,
		Backend:       backendClient,
		Scratch:       kv,
		LoginURL:      cfg.Auth.LoginURL,
		VerifyRetries: cfg.Checkout.VerifyMaxRetries,
		VerifyBackoff: cfg.Checkout.VerifyBackoff,
		Metrics:       checkoutMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout orchestrator", err)
		os.Exit(1)
	}

	receiver, err := authcallback.NewReceiver(sessionStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth callback receiver", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Cart:     cartAgg,
			Checkout: orchestrator,
			Session:  sessionStore,
			Receiver: receiver,
			Store:    backend,
			Registry: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildDurableStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.KV, storeBackend, error) {
	if cfg.FeatureFlags.UseSQLite {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewGormStore(dbClient.DB())
		if err != nil {
			dbClient.Close()
			return nil, nil, err
		}
		return store, dbClient, nil
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewRedisStore(redisClient)
	if err != nil {
		redisClient.Close()
		return nil, nil, err
	}
	return store, redisClient, nil
}
