package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhejian/url-shortener/qrform/internal/config"
	"github.com/zhejian/url-shortener/qrform/internal/events"
	"github.com/zhejian/url-shortener/qrform/internal/infra"
	"github.com/zhejian/url-shortener/qrform/internal/observability"
	"github.com/zhejian/url-shortener/qrform/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.App.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger
	slog.SetDefault(logger)

	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString(), cfg.Database.MaxConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()
	logger.Info("cache connected")

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Broker.URL != "" {
		conn, err := infra.NewBrokerConnection(cfg.Broker.URL)
		if err != nil {
			logger.Error("failed to connect to broker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer conn.Close()

		amqpPublisher, err := events.NewAMQPPublisher(conn, cfg.Broker.Exchange)
		if err != nil {
			logger.Error("failed to open broker channel", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = amqpPublisher
		logger.Info("broker connected", slog.String("exchange", cfg.Broker.Exchange))
	} else {
		logger.Info("event publishing disabled")
	}
	defer publisher.Close()

	srv := server.NewServer(cfg, db, cache, publisher, obs)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("creation_url", cfg.Creation.BaseURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal (Ctrl+C or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	obs.Shutdown(shutdownCtx)

	logger.Info("server exited gracefully")
}
