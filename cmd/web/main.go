package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/feedbot/config"
	"github.com/spacesedan/feedbot/internal/clients"
	"github.com/spacesedan/feedbot/internal/clients/kafka_client"
	"github.com/spacesedan/feedbot/internal/jobs"
	"github.com/spacesedan/feedbot/internal/logging"
	"github.com/spacesedan/feedbot/internal/monitoring"
	"github.com/spacesedan/feedbot/internal/web"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	if err := config.LoadEnv(env); err != nil {
		slog.Error("[Main] Failed to load env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache clients.ResultCache
	if cfg.ValkeyAddress != "" {
		vc, err := clients.NewValkeyClient(ctx, clients.ValkeyOptions{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
			TTL:      cfg.SnapshotCacheTTL,
		})
		if err != nil {
			slog.Warn("[Main] Valkey unavailable, serving results uncached",
				slog.String("error", err.Error()))
		} else {
			defer vc.Close()
			cache = vc
		}
	}

	backend := clients.NewBackendClient(clients.BackendOptions{
		BaseURL:          cfg.BackendURL,
		Timeout:          cfg.RequestTimeout,
		SubmitMaxRetries: cfg.SubmitMaxRetries,
		Cache:            cache,
	})

	jobOpts := jobs.Options{
		Limit:          cfg.SubmitLimit,
		IncludeReddit:  cfg.IncludeReddit,
		IncludeTwitter: cfg.IncludeTwitter,
		Timeout:        cfg.RequestTimeout,
	}
	if kcfg, ok := kafka_client.GetKafkaConfig(cfg); ok {
		producer, err := kafka_client.NewJobEventProducer(kcfg)
		if err != nil {
			slog.Warn("[Main] Kafka unavailable, job events disabled",
				slog.String("error", err.Error()))
		} else {
			defer producer.Close()
			jobOpts.Events = producer
		}
	}
	controller := jobs.NewController(backend, jobOpts)
	defer controller.Close()

	backendHealthy := &atomic.Bool{}
	go monitoring.MonitorBackendHealth(ctx, backend, backendHealthy, cfg.HealthcheckInterval)

	server, err := web.NewServer(controller, backend, web.Options{
		PollInterval:   cfg.PollInterval,
		ResultsLimit:   cfg.ResultsLimit,
		BackendHealthy: backendHealthy,
		GinMode:        cfg.GinMode,
	})
	if err != nil {
		slog.Error("[Main] Failed to build web server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     server.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("[Main] Starting HTTP server",
			slog.String("addr", cfg.ListenAddr),
			slog.String("env", env),
			slog.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] HTTP server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Server forced to shutdown", slog.String("error", err.Error()))
	}

	// let an in-flight submission settle so its terminal event is published
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer waitCancel()
	if _, err := controller.Wait(waitCtx); err != nil {
		slog.Warn("[Main] Submission still in flight at shutdown", slog.String("brand", controller.Job().Brand))
	}

	slog.Info("[Main] Server stopped")
}
