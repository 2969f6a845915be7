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

	"github.com/angelmondragon/clinicvax-backend/api/routes"
	"github.com/angelmondragon/clinicvax-backend/internal/budgets"
	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
	"github.com/angelmondragon/clinicvax-backend/internal/quotes"
	"github.com/angelmondragon/clinicvax-backend/pkg/config"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/instance"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/metrics"
	"github.com/angelmondragon/clinicvax-backend/pkg/migrate"
	"github.com/angelmondragon/clinicvax-backend/pkg/outbox"
	"github.com/angelmondragon/clinicvax-backend/pkg/redis"
)

const (
	serviceName     = "clinicvax-api"
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
		Format:      cfg.App.LogFormat,
	})

	loc, err := cfg.Budgets.Location()
	if err != nil {
		logg.Error(context.Background(), "invalid budget timezone", err)
		os.Exit(1)
	}

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pricingMetrics := metrics.NewPricingMetrics(registry)

	svcs, err := buildServices(cfg, logg, dbClient, pricingMetrics, loc)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"timezone": loc.String(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, registry, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, pricingMetrics *metrics.PricingMetrics, loc *time.Location) (routes.Services, error) {
	gdb := dbClient.DB()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}

	tableSvc, err := pricetables.NewService(pricetables.NewRepository(gdb), dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	pricingSvc, err := pricing.NewService(pricing.ServiceParams{
		Repository: pricing.NewRepository(gdb),
		Tables:     tableSvc,
		Catalog:    catalogSvc,
		Logger:     logg,
		Location:   loc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	campaignSvc, err := campaigns.NewService(campaigns.ServiceParams{
		Repository: campaigns.NewRepository(gdb),
		Tx:         dbClient,
		Catalog:    catalogSvc,
		Location:   loc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	quoteSvc, err := quotes.NewService(quotes.ServiceParams{
		Tables:    tableSvc,
		Catalog:   catalogSvc,
		Prices:    pricingSvc,
		Campaigns: campaignSvc,
		Metrics:   pricingMetrics,
		Logger:    logg,
		Location:  loc,
	})
	if err != nil {
		return routes.Services{}, err
	}

	budgetSvc, err := budgets.NewService(budgets.ServiceParams{
		Repository:       budgets.NewRepository(gdb),
		Tx:               dbClient,
		Outbox:           outbox.NewService(outbox.NewRepository(gdb), logg),
		Quotes:           quoteSvc,
		Tables:           tableSvc,
		Catalog:          catalogSvc,
		Campaigns:        campaignSvc,
		Metrics:          pricingMetrics,
		Logger:           logg,
		Location:         loc,
		SequenceAttempts: cfg.Budgets.SequenceMaxAttempts,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Catalog:     catalogSvc,
		PriceTables: tableSvc,
		Pricing:     pricingSvc,
		Campaigns:   campaignSvc,
		Quotes:      quoteSvc,
		Budgets:     budgetSvc,
	}, nil
}
