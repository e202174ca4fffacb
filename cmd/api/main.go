package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/kennethcatiis/ecommerce-platform/internal/auth"
	"github.com/kennethcatiis/ecommerce-platform/internal/cart"
	"github.com/kennethcatiis/ecommerce-platform/internal/catalog"
	"github.com/kennethcatiis/ecommerce-platform/internal/checkout"
	"github.com/kennethcatiis/ecommerce-platform/internal/config"
	"github.com/kennethcatiis/ecommerce-platform/internal/database"
	"github.com/kennethcatiis/ecommerce-platform/internal/events"
	"github.com/kennethcatiis/ecommerce-platform/internal/handlers"
	"github.com/kennethcatiis/ecommerce-platform/internal/ledger"
	"github.com/kennethcatiis/ecommerce-platform/internal/logging"
	"github.com/kennethcatiis/ecommerce-platform/internal/middleware"
	"github.com/kennethcatiis/ecommerce-platform/internal/repository"
	"github.com/kennethcatiis/ecommerce-platform/internal/repository/memory"
	"github.com/kennethcatiis/ecommerce-platform/internal/routes"
)

// backend is everything the services need from a storage driver. Both the
// MySQL repository and the in-memory store satisfy it.
type backend interface {
	cart.Store
	checkout.Store
	ledger.Store
	events.Store
	catalog.Reader
	middleware.UserDirectory
}

func main() {
	// 0. --- Configuration (.env + environment) ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. --- Storage ---
	store, closeStore, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	products := catalog.WithBreaker(catalog.WithTimeout(store, cfg.CatalogTimeout), "catalog")

	// 2. --- Cart cache (optional) ---
	cartOpts := []cart.Option{cart.WithTimeout(cfg.StorageTimeout), cart.WithLogger(log)}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, serving carts without cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			cartOpts = append(cartOpts, cart.WithCache(cart.NewRedisCache(rdb)))
			log.Info("cart cache enabled", "addr", cfg.RedisAddr)
		}
	}

	// 3. --- Services ---
	carts := cart.NewService(store, products, cartOpts...)
	app := &handlers.Handlers{
		Cart: carts,
		Processor: checkout.NewProcessor(store, products, store, carts, checkout.Config{
			StorageTimeout: cfg.StorageTimeout,
			CatalogTimeout: cfg.CatalogTimeout,
			Logger:         log,
		}),
		Ledger: ledger.New(store, cfg.StorageTimeout, log),
		Tokens: auth.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		Users:  store,
		Log:    log,
	}

	// 4. --- Background Worker (outbox relay) ---
	var publisher events.Publisher = events.LogPublisher{Log: log}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer kp.Close()
		publisher = kp
	}
	go events.NewPoller(store, publisher, cfg.OutboxInterval, log).Run(ctx)

	// --- Start Server ---
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           routes.SetupRouter(app, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting API server", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store := memory.New()
		if cfg.SeedFile != "" {
			if err := store.LoadSeed(cfg.SeedFile); err != nil {
				return nil, nil, err
			}
			log.Info("seed data loaded", "file", cfg.SeedFile)
		}
		return store, func() {}, nil

	case config.DriverMySQL:
		if cfg.MigrateOnStart {
			if err := database.Migrate(cfg.DSN); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.OpenDB(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.New(db), func() { closeDB(db, log) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("closing database", "error", err)
	}
}
