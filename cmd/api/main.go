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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/cron"
	"github.com/angelmondragon/storefront/internal/notify"
	"github.com/angelmondragon/storefront/internal/page"
	"github.com/angelmondragon/storefront/internal/postal"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/redis"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)
	remoteMetrics := metrics.NewRemoteMetrics(registry)

	readiness := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		readiness["redis"] = redisClient
	}

	backend, err := storage.Open(ctx, cfg, storage.Deps{Logger: logg, Redis: redisClient})
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}
	readiness["storage"] = backend

	api, err := storefrontapi.NewClient(cfg.API.BaseURL,
		storefrontapi.WithTimeout(cfg.API.Timeout),
		storefrontapi.WithMetrics(remoteMetrics),
		storefrontapi.WithLogger(logg),
	)
	if err != nil {
		logg.Error(ctx, "failed to create storefront api client", err)
		os.Exit(1)
	}

	postalClient := postal.NewClient(
		postal.WithBaseURL(cfg.Postal.BaseURL),
		postal.WithTimeout(cfg.Postal.Timeout),
		postal.WithMetrics(remoteMetrics),
	)

	selections := cart.NewSelectionRegistry(cfg.Selection.IdleTTL)
	pages, err := page.NewFactory(page.Deps{
		Storage:    backend.Storage,
		Selections: selections,
		Source:     api,
		Auth:       api,
		Notifier:   notify.LogNotifier{Logger: logg},
		Metrics:    cartMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create page factory", err)
		os.Exit(1)
	}
	if err := startMaintenance(ctx, cfg, logg, registry, selections, backend, redisClient); err != nil {
		logg.Error(ctx, "failed to start maintenance jobs", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_driver": backend.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, pages, api, postalClient, redisClient, readiness, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	err = multierr.Append(err, backend.Close())
	if redisClient != nil {
		err = multierr.Append(err, redisClient.Close())
	}
	if err != nil {
		logg.Error(ctx, "error during shutdown", err)
		os.Exit(1)
	}
}

// startMaintenance runs the background jobs. The selection sweep touches only
// this process's memory; the storage retention job works on shared rows and is
// guarded by a redis lock when one is available.
func startMaintenance(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	reg prometheus.Registerer,
	selections *cart.SelectionRegistry,
	backend *storage.Backend,
	redisClient *redis.Client,
) error {
	jobMetrics := metrics.NewJobMetrics(reg)

	sweep, err := cron.NewSelectionSweepJob(selections, logg)
	if err != nil {
		return err
	}
	local, err := cron.NewService(cron.ServiceParams{
		Name:     "local",
		Logger:   logg,
		Registry: cron.NewRegistry(sweep),
		Metrics:  jobMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}
	go runScheduler(ctx, logg, local)

	sqlStore, ok := backend.Storage.(*storage.SQL)
	if !ok || cfg.Storage.TTL <= 0 {
		return nil
	}
	retention, err := cron.NewStorageRetentionJob(sqlStore, cfg.Storage.TTL, logg)
	if err != nil {
		return err
	}
	var lock cron.Lock = &cron.LocalLock{}
	if redisClient != nil {
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.App.Env+":storage-retention"), 0)
		if err != nil {
			return err
		}
	}
	shared, err := cron.NewService(cron.ServiceParams{
		Name:     "shared",
		Logger:   logg,
		Registry: cron.NewRegistry(retention),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}
	go runScheduler(ctx, logg, shared)
	return nil
}

func runScheduler(ctx context.Context, logg *logger.Logger, s *cron.Service) {
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "maintenance scheduler stopped unexpectedly", err)
	}
}
