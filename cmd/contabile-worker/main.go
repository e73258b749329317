package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"contabile/internal/amqp"
	"contabile/internal/cli"
	"contabile/internal/log"
	"contabile/internal/remote"
	"contabile/internal/services"
	"contabile/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting contabile-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if remote.Kind(cfg.RemoteBackend) == remote.KindNone {
		logger.Info("No remote backend configured, nothing to sync")
		return
	}

	store := cli.OpenStore(logger, cfg)
	defer store.Close()

	backend, cleanup, err := remote.New(context.Background(), cfg.RemoteConfig(), logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize remote backend", log.FieldError, err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer func() { _ = cleanup() }()
	}

	// AMQP consumer for sync nudges (optional)
	var amqpClient *amqp.Client
	if cfg.MessagingEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP connect failed, sync runs on poll ticks only", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	syncCfg := services.DefaultSyncProcessorConfig()
	syncCfg.PollInterval = cfg.SyncPollInterval
	syncCfg.BatchSize = cfg.SyncBatchSize
	syncCfg.MaxRetries = cfg.SyncMaxRetries
	syncCfg.RetryDelay = cfg.SyncRetryDelay

	processor := services.NewSyncProcessor(store, backend, syncCfg)
	syncWorker := worker.NewSyncWorker(processor, amqpClient, cfg.SyncPullOnStart)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if p, ok := backend.(remote.Pinger); ok {
		pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logger.Warn("Remote backend unreachable at startup, pushes will retry", log.FieldError, err)
		}
		pingCancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncWorker.RunProcessor(ctx) })
	g.Go(func() error { return syncWorker.ConsumeNudges(ctx) })

	logger.Info("Sync worker running",
		"remote_backend", cfg.RemoteBackend,
		"poll_interval", cfg.SyncPollInterval,
		"batch_size", cfg.SyncBatchSize)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	// End the remote session if the backend holds one.
	if a, ok := backend.(remote.Authenticator); ok {
		signOutCtx, signOutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.SignOut(signOutCtx); err != nil {
			logger.Warn("Sign out failed", log.FieldError, err)
		}
		signOutCancel()
	}

	logger.Info("Sync worker stopped gracefully")
}
