// Package main provides the API server entry point for the portfolio tracker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cryptotracker/internal/api"
	"github.com/cryptotracker/internal/config"
	"github.com/cryptotracker/internal/job"
	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/service"
	"github.com/cryptotracker/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.L().WithError(err).Fatal("failed to load configuration")
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.L()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("structured logging initialized")

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

	logger.Info("database connections established")

	// Repositories
	userRepo := storage.NewUserRepository(postgres)
	inviteRepo := storage.NewInviteRepository(postgres)
	accountRepo := storage.NewAccountRepository(postgres)
	addressRepo := storage.NewAddressRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)
	errorRepo := storage.NewErrorRepository(postgres)

	// Session store and snapshot job queue
	sessions := storage.NewSessionStore(redis, cfg.Session.TTL)
	queue := job.NewSnapshotQueue(redis, cfg.Collector.JobTTL)

	// Services
	authService := service.NewAuthService(userRepo, inviteRepo, logger)
	accountService := service.NewAccountService(accountRepo, logger)
	addressService := service.NewAddressService(addressRepo, accountRepo, logger)
	valuationService := service.NewValuationService(snapshotRepo, addressRepo, accountRepo, errorRepo, logger)
	adminService := service.NewAdminService(userRepo, logger)

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(
		serverConfig,
		authService,
		accountService,
		addressService,
		valuationService,
		adminService,
		sessions,
		queue,
		userRepo,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	logger.Info("server exited")
}
