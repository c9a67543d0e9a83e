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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/referralz-backend/api/routes"
	"github.com/angelmondragon/referralz-backend/internal/referrals"
	"github.com/angelmondragon/referralz-backend/internal/users"
	"github.com/angelmondragon/referralz-backend/pkg/config"
	"github.com/angelmondragon/referralz-backend/pkg/db"
	"github.com/angelmondragon/referralz-backend/pkg/env"
	"github.com/angelmondragon/referralz-backend/pkg/instance"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
	"github.com/angelmondragon/referralz-backend/pkg/metrics"
	"github.com/angelmondragon/referralz-backend/pkg/migrate"
	"github.com/angelmondragon/referralz-backend/pkg/outbox"
	"github.com/angelmondragon/referralz-backend/pkg/redis"
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

	decisionLock, err := referrals.NewRedisDecisionLock(redisClient, cfg.Referral.DecisionLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create referral decision lock", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	referralService, err := referrals.NewService(referrals.ServiceParams{
		Repository:          referrals.NewRepository(dbClient.DB()),
		Users:               users.NewRepository(dbClient.DB()),
		TxRunner:            dbClient,
		Outbox:              outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Lock:                decisionLock,
		Logger:              logg,
		Metrics:             metrics.NewReferralMetrics(registry),
		Rules:               referrals.RulesFromConfig(cfg.Referral),
		SettlementBatchSize: cfg.Referral.SettlementBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create referral service", err)
		os.Exit(1)
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			redisClient,
			referralService,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}
