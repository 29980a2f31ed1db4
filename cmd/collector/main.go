// Package main provides the snapshot collector worker entry point.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cryptotracker/internal/collector"
	"github.com/cryptotracker/internal/config"
	"github.com/cryptotracker/internal/job"
	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/service"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.L().WithError(err).Fatal("failed to load configuration")
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.L()

	postgres, err := storage.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisStore(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redis.Close()

	registryRepo := storage.NewRegistryRepository(postgres)
	addressRepo := storage.NewAddressRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dial an RPC client for every configured network
	networks, err := registryRepo.ListNetworks(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to list networks")
	}
	clients := collector.DialNetworks(networks, logger)
	if len(clients) == 0 {
		logger.Warn("no network RPC clients connected, asset collection will fail")
	}

	// Symbol map for resolving positions API responses
	cryptos, err := registryRepo.ListCryptocurrencies(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to list cryptocurrencies")
	}
	bySymbol := make(map[string]string, len(cryptos))
	for _, crypto := range cryptos {
		bySymbol[strings.ToUpper(crypto.Symbol)] = crypto.ID
	}

	collectorService := service.NewCollectorService(
		registryRepo,
		addressRepo,
		snapshotRepo,
		collector.NewCoinGeckoSource(cfg.Collector.PriceAPIURL, types.ReportingCurrency, logger),
		collector.NewEVMCollector(clients, logger),
		collector.NewBeaconSource(cfg.Collector.BeaconAPIURL),
		collector.NewDefiClient(cfg.Collector.PositionsAPIURL, bySymbol, logger),
		logger,
	)

	queue := job.NewSnapshotQueue(redis, cfg.Collector.JobTTL)
	worker := job.NewWorker(queue, collectorService, cfg.Collector.PollInterval, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("worker exited with error")
	}

	logger.Info("collector exited")
}
