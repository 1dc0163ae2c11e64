package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cmo/internal/bootstrap"
	httpapi "cmo/internal/http/httpapi"
	"cmo/internal/infra"
	"cmo/internal/infra/geoip"
	"cmo/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	shutdownTracing, err := infra.SetupTracing(ctx, cfg, "cmo-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	services, err := bootstrap.New(ctx, cfg, runner, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer services.Close()

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.Lookup
	}

	router := httpapi.NewRouter(services.App(cfg.DefaultLanguage), httpapi.Options{
		Logger:             logger,
		AllowedOrigins:     cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		DefaultLanguage:    cfg.DefaultLanguage,
		CountryLookup:      countryLookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush traces")
	}
	logger.Info().Msg("server stopped")
}
