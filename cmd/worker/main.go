package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/config"
	"github.com/brojonat/shardpay/service/db"
	"github.com/brojonat/shardpay/service/logging"
	"github.com/brojonat/shardpay/service/metrics"
	natspkg "github.com/brojonat/shardpay/service/nats"
	"github.com/brojonat/shardpay/service/temporal"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.TemporalHost == "" {
		logger.Error("TEMPORAL_HOST is required for the settlement worker")
		os.Exit(1)
	}
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	metricsAddr := getEnv("METRICS_ADDR", ":9091")
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	ethClient, err := chain.Dial(ctx, cfg.Network.RPCURL)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}
	defer ethClient.Close()
	chainClient := chain.NewClient(ethClient, cfg.Network.RPCURL, metricsCollector, logger)

	// Settlement legs are signed by the wallet the provider has already
	// authorized; the worker never prompts.
	provider, err := wallet.DialProvider(ctx, cfg.WalletRPCURL, cfg.ProviderPollInterval, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to connect to wallet provider", "url", cfg.WalletRPCURL, "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	manager := wallet.NewManager(provider, cfg.Network, metricsCollector, logger)
	defer manager.Close()
	restored, err := manager.Restore(ctx)
	if err != nil {
		logger.Error("failed to restore wallet session", "error", err)
		os.Exit(1)
	}
	if !restored {
		logger.Error("no authorized wallet account; connect through the server first")
		os.Exit(1)
	}
	logger.Info("wallet session restored", "address", manager.Session().Address.Hex())

	opts := []txn.Option{txn.WithConfirmation(cfg.ConfirmationTimeout, cfg.ReceiptPollInterval)}

	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
		opts = append(opts, txn.WithJournal(db.NewStore(dbPool, metricsCollector, logger)))
	}

	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		opts = append(opts, txn.WithPublisher(natsPublisher))
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	submitter := txn.NewSubmitter(manager, chainClient, metricsCollector, logger, opts...)

	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Submitter:         submitter,
		Metrics:           metricsCollector,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"temporal_host", cfg.TemporalHost,
		"temporal_namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
	)

	workerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting temporal worker")
		workerErrors <- worker.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("temporal worker stopped")

		logger.Info("shutdown complete")
	}
}

// getEnv returns the value of an environment variable or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
