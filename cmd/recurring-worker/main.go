package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"contabile/internal/amqp"
	"contabile/internal/cli"
	"contabile/internal/log"
	"contabile/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.OpenStore(logger, cfg)
	defer store.Close()

	// Nudge the sync worker so materialized transactions reach the remote
	// promptly instead of waiting for the next poll.
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
		logger.Info("AMQP disabled, materialized transactions sync on worker polls")
	}

	ledger := services.NewLedgerService(store, amqpClient)
	documents := services.NewDocumentService(store, amqpClient)
	processor := services.NewRecurringProcessor(store, ledger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Sweeps configured",
		"recurring_interval", cfg.RecurringInterval,
		"overdue_interval", cfg.OverdueInterval,
		"db", cfg.DBPath)

	// Run both sweeps once on startup so a machine that was off for days
	// catches up immediately.
	runRecurring(ctx, logger, processor, time.Now())
	runOverdue(ctx, logger, documents, time.Now())

	recurringTicker := time.NewTicker(cfg.RecurringInterval)
	defer recurringTicker.Stop()
	overdueTicker := time.NewTicker(cfg.OverdueInterval)
	defer overdueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring-worker stopped gracefully")
			return
		case now := <-recurringTicker.C:
			runRecurring(ctx, logger, processor, now)
		case now := <-overdueTicker.C:
			runOverdue(ctx, logger, documents, now)
		}
	}
}

func runRecurring(ctx context.Context, logger *log.Logger, processor *services.RecurringProcessor, now time.Time) {
	count, err := processor.ProcessDue(ctx, now)
	if err != nil {
		logger.Error("Recurring sweep failed", log.FieldError, err)
		return
	}
	if count > 0 {
		logger.Info("Recurring sweep complete", "transactions_created", count)
	}
}

func runOverdue(ctx context.Context, logger *log.Logger, documents *services.DocumentService, now time.Time) {
	flipped, err := documents.MarkOverdue(ctx, now)
	if err != nil {
		logger.Error("Overdue sweep failed", log.FieldError, err)
		return
	}
	if flipped > 0 {
		logger.Info("Overdue sweep complete", "documents_marked", flipped)
	}
}
