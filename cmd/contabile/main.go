package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contabile/internal/amqp"
	"contabile/internal/cli"
	apphttp "contabile/internal/http"
	"contabile/internal/log"
	"contabile/internal/remote"
	"contabile/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.OpenStore(logger, cfg)
	defer store.Close()

	// AMQP is a wake-up line to the sync worker, not a dependency: without
	// it writes still land in the outbox and sync on the worker's poll.
	var amqpClient *amqp.Client
	if cfg.MessagingEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP connect failed, continuing without sync nudges", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled, sync relies on the worker's poll ticker")
	}

	// The settings screen offers password reset only when the hosted
	// backend is configured.
	var auth remote.Authenticator
	if remote.Kind(cfg.RemoteBackend) == remote.KindHTTPAPI {
		backend, cleanup, err := remote.New(context.Background(), cfg.RemoteConfig(), logger.Logger)
		if err != nil {
			logger.Error("Failed to initialize remote backend", log.FieldError, err)
			os.Exit(1)
		}
		if cleanup != nil {
			defer func() { _ = cleanup() }()
		}
		auth, _ = backend.(remote.Authenticator)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:     store,
		Ledger:    services.NewLedgerService(store, amqpClient),
		Documents: services.NewDocumentService(store, amqpClient),
		Catalog:   services.NewCatalogService(store, amqpClient),
		Settings:  services.NewSettingsService(store, amqpClient),
		Recurring: services.NewRecurringService(store),
		Nudger:    amqpClient,
		Auth:      auth,
	})

	// Configure server timeouts and limits. The write timeout leaves room
	// for CSV exports of long periods.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting contabile", "port", cfg.Port, "remote_backend", cfg.RemoteBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
