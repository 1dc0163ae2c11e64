package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cmo/internal/bootstrap"
	"cmo/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.SetupTracing(ctx, cfg, "cmo-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: tracing setup failed")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	services, err := bootstrap.New(ctx, cfg, runner, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build services")
	}
	defer services.Close()
	if services.Social == nil {
		logger.Fatal().Msg("worker: social batches need a text generation key")
	}

	if err := services.Social.Run(ctx, cfg.WorkerPollInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error().Err(err).Msg("worker: failed to flush traces")
	}
	logger.Info().Msg("worker stopped")
}
