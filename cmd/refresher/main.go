package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/jobs"
	"folio/internal/logger"
	"folio/internal/market"
	"folio/internal/services"
)

// The refresher runs the background side of the system: the periodic price
// refresh with alert evaluation, and the daily valuation snapshots. It holds
// its own database and Redis connections so it can be deployed apart from
// the API server.
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	redisCache, err := cache.NewRedisCache(appConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()
	priceCache := cache.NewPriceCache(redisCache, appConfig.PriceCacheTTL)

	db := dbManager.DB()
	quoteSource := market.NewCoinGeckoClient(appConfig.QuoteBaseURL, appConfig.QuoteTimeout)
	priceService := services.NewPriceService(priceCache, quoteSource)
	alertService := services.NewAlertService(db, priceCache, services.NewLogNotifier())
	valuationService := services.NewValuationService(db, priceService)

	refreshWorker := jobs.NewRefreshWorker(db, priceService, alertService, appConfig.RefreshInterval)
	snapshotWorker := jobs.NewSnapshotWorker(valuationService, appConfig.SnapshotInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := refreshWorker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresh worker: %w", err)
	}
	if err := snapshotWorker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start snapshot worker: %w", err)
	}

	log.Infow("refresher running",
		"refresh_interval", appConfig.RefreshInterval,
		"snapshot_interval", appConfig.SnapshotInterval,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("shutting down", "signal", sig.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := refreshWorker.Stop(stopCtx); err != nil {
		log.Warnw("refresh worker stop error", "error", err)
	}
	if err := snapshotWorker.Stop(stopCtx); err != nil {
		log.Warnw("snapshot worker stop error", "error", err)
	}

	return nil
}
