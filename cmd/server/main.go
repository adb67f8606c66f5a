package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/shardpay/service/assistant"
	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/config"
	"github.com/brojonat/shardpay/service/db"
	"github.com/brojonat/shardpay/service/logging"
	"github.com/brojonat/shardpay/service/metrics"
	natspkg "github.com/brojonat/shardpay/service/nats"
	"github.com/brojonat/shardpay/service/server"
	"github.com/brojonat/shardpay/service/split"
	"github.com/brojonat/shardpay/service/temporal"
	"github.com/brojonat/shardpay/service/txn"
	"github.com/brojonat/shardpay/service/vault"
	"github.com/brojonat/shardpay/service/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"chain_id", cfg.Network.ChainID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Chain reads go straight to the network RPC; signing goes through the
	// wallet provider.
	ethClient, err := chain.Dial(ctx, cfg.Network.RPCURL)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}
	defer ethClient.Close()
	chainClient := chain.NewClient(ethClient, cfg.Network.RPCURL, metricsCollector, logger)

	provider, err := wallet.DialProvider(ctx, cfg.WalletRPCURL, cfg.ProviderPollInterval, metricsCollector, logger)
	if err != nil {
		// The session reports the missing provider on connect.
		logger.Warn("wallet provider unavailable", "url", cfg.WalletRPCURL, "error", err)
	}
	var manager *wallet.Manager
	if provider != nil {
		defer provider.Close()
		manager = wallet.NewManager(provider, cfg.Network, metricsCollector, logger)
	} else {
		manager = wallet.NewManager(nil, cfg.Network, metricsCollector, logger)
	}
	defer manager.Close()

	if restored, err := manager.Restore(ctx); err != nil {
		logger.Warn("failed to restore wallet session", "error", err)
	} else if restored {
		logger.Info("restored wallet session", "address", manager.Session().Address.Hex())
	}

	opts := []txn.Option{txn.WithConfirmation(cfg.ConfirmationTimeout, cfg.ReceiptPollInterval)}

	// Optional transaction journal
	var journal server.TransactionLister
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
		store := db.NewStore(dbPool, metricsCollector, logger)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")
		opts = append(opts, txn.WithJournal(store))
		journal = store
	}

	// Optional NATS event stream
	var stream *server.SSEPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		opts = append(opts, txn.WithPublisher(natsPublisher))

		stream, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer stream.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	submitter := txn.NewSubmitter(manager, chainClient, metricsCollector, logger, opts...)

	contract, err := vault.NewContract(common.HexToAddress(cfg.VaultAddress), chainClient)
	if err != nil {
		logger.Error("failed to load vault contract", "error", err)
		os.Exit(1)
	}
	synchronizer := vault.NewSynchronizer(contract, manager, submitter, cfg.Network.Currency.Decimals, metricsCollector, logger)
	stopWatch := synchronizer.Watch()
	defer stopWatch()

	deps := server.Dependencies{
		Wallet:     manager,
		Payments:   submitter,
		Vault:      synchronizer,
		Bill:       split.NewDefaultBill(),
		Dispatcher: split.NewDispatcher(submitter, cfg.SplitSuccessWindow, metricsCollector, logger),
		Journal:    journal,
		Stream:     stream,
		Metrics:    metricsCollector,
		Logger:     logger,
	}

	if cfg.AssistantEnabled() {
		completer := assistant.NewOpenAICompleter(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		deps.Assistant = assistant.New(completer, metricsCollector, logger)
		logger.Info("assistant enabled", "model", cfg.AIModel)
	}

	// Optional durable settlement
	if cfg.TemporalHost != "" {
		temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		deps.Settler = temporalClient
		logger.Info("connected to temporal",
			"host", cfg.TemporalHost,
			"namespace", cfg.TemporalNamespace,
			"task_queue", cfg.TemporalTaskQueue,
		)
	}

	httpServer := server.New(cfg.ServerAddr, deps)

	logger.Info("server initialized, all dependencies ready",
		"journal", cfg.DatabaseURL != "",
		"nats", cfg.NATSURL != "",
		"temporal", cfg.TemporalHost != "",
		"assistant", cfg.AssistantEnabled(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
