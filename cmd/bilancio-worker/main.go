package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	sheetsmem "bilancio/internal/sheets/memory"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting bilancio-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup := cli.InitStore(ctx, cfg, logger)
	if cleanup != nil {
		defer func() {
			if err := cleanup(); err != nil {
				logger.Error("Store cleanup failed", log.FieldError, err.Error())
			}
		}()
	}

	// Without a spreadsheet the worker still runs reconciliation, exports
	// land in an in-memory sink so queued messages keep draining.
	var writer sheets.TransactionWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			log.FieldSheetName, cfg.GoogleSheetName)
	} else {
		writer = sheetsmem.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to in-memory sink")
	}

	if cfg.AMQPURL == "" {
		logger.Error("The worker requires AMQP_URL to consume export messages")
		os.Exit(1)
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	service := services.NewLedgerService(store, nil, logger)
	syncWorker := worker.NewSyncWorker(store, writer, logger)
	reconciler := services.NewReconciler(service, services.ReconcilerConfig{
		Interval: cfg.ReconcileInterval,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionSync(gctx, func(msg *amqp.TransactionSyncMessage) error {
			return syncWorker.HandleSyncMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		if err := reconciler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return reconciler.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
