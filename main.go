package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/alxne/storefront/internal/api"
	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/clock"
	"github.com/alxne/storefront/internal/db"
	"github.com/alxne/storefront/internal/metrics"
	"github.com/alxne/storefront/internal/notify"
	"github.com/alxne/storefront/internal/server"
	"github.com/alxne/storefront/internal/services"
	"github.com/alxne/storefront/internal/store"
	"github.com/alxne/storefront/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Printf("[SERVER] %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.LoadConfig()
	log.Printf("[SERVER] NODE_ENV=%s", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry metrics
	appMetrics := metrics.NewNoop()
	var meterProvider metric.MeterProvider = noop.NewMeterProvider()
	if cfg.MetricsEnabled {
		m, provider, err := metrics.InitMetrics(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		appMetrics, meterProvider = m, provider
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down meter provider: %v", err)
			}
		}()
	}

	// Hosted backend database
	database, err := db.NewDB(ctx, cfg.DBDriver, cfg.GetDSN(), meterProvider, cfg.OTELServiceName)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.InitSchema(ctx, backend.Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	clk := clock.RealClock{}
	client := backend.NewSQLClient(database, appMetrics, clk, cfg.SessionTTL)
	if cfg.AdminEmail != "" {
		if err := client.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
	}

	st, closeStore, err := openStore(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize services
	bus := notify.NewBus()
	sales := services.NewSalesService(st, bus, clk, appMetrics)
	catalog := services.NewCatalogService(st, bus, clk, appMetrics, sales)
	app := api.NewApp(cfg, appMetrics, clk, st, bus, api.Services{
		Catalog:  catalog,
		Sales:    sales,
		Cart:     services.NewCartService(st, bus, clk, appMetrics, catalog, client),
		Orders:   services.NewOrderService(client),
		Users:    services.NewUserService(client),
		Wishlist: services.NewWishlistService(bus, catalog, client),
	})

	srv := &http.Server{
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(app.Close)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GetServerPortInt()))
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.ServerPort, err)
	}
	log.Printf("[SERVER] storefront on http://localhost:%d (store=%s, db=%s)", cfg.GetServerPortInt(), cfg.StoreBackend, cfg.DBDriver)
	if cfg.MetricsEnabled {
		log.Printf("[SERVER] OTLP endpoint: %s", cfg.OTELExporterOTLPEndpoint)
	}

	err = server.Run(ctx, srv, ln, cfg.ShutdownTimeout)
	if errors.Is(err, server.ErrForcedShutdown) {
		log.Printf("[SERVER] connections still open after %s, forced exit", cfg.ShutdownTimeout)
	}
	return err
}

// openStore selects the persistent store backend. The returned func releases
// the store and any client it owns.
func openStore(ctx context.Context, cfg *config.Config, database *db.DB) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		st := store.NewMemoryBackend(cfg.StoreQuotaBytes).Open(cfg.StoreNamespace)
		return st, func() { st.Close() }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		st := store.NewRedisStore(rdb, cfg.StoreNamespace)
		return st, func() {
			st.Close()
			if err := rdb.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
		}, nil
	case "sql":
		st, err := store.NewSQLStore(ctx, database.DB, cfg.StoreNamespace)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (want memory, redis or sql)", cfg.StoreBackend)
}
