package main

import (
	"context"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safe-mobile/safe-push/internal/api"
	"github.com/safe-mobile/safe-push/internal/config"
	"github.com/safe-mobile/safe-push/internal/eth"
	"github.com/safe-mobile/safe-push/internal/keystore"
	"github.com/safe-mobile/safe-push/internal/lifecycle"
	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/metrics"
	"github.com/safe-mobile/safe-push/internal/notification"
	"github.com/safe-mobile/safe-push/internal/signer"
	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/internal/storage/boltstore"
	"github.com/safe-mobile/safe-push/internal/txservice"
	"github.com/safe-mobile/safe-push/internal/worker"
	"github.com/safe-mobile/safe-push/pkg/types"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	// Initialize state storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("opened store", "backend", cfg.StoreBackend)

	// Initialize owner key storage
	sealer, err := keystore.NewSealer(cfg.SealerConfig())
	if err != nil {
		slog.Error("failed to initialize key sealer", "error", err)
		os.Exit(1)
	}
	keys := keystore.New(store.Keys(), sealer)

	slog.Info("initialized key sealer", "provider", sealer.Provider())

	// Chain access is optional; without it the chain id comes from config
	var chain *eth.Client
	if cfg.EthRPCURL != "" {
		chain, err = eth.NewClient(ctx, cfg.EthRPCURL)
		if err != nil {
			slog.Error("failed to connect to chain", "error", err)
			os.Exit(1)
		}
		defer chain.Close()
	}
	chainID := resolveChainID(cfg, chain)

	slog.Info("using chain", "chain_id", chainID.String())

	m := metrics.New()

	backend, err := txservice.New(txservice.Config{
		BaseURL:           cfg.TxServiceURL,
		ChainID:           chainID.String(),
		RequestsPerSecond: cfg.TxServiceRPS,
		Timeout:           cfg.TxServiceTimeout,
	})
	if err != nil {
		slog.Error("failed to initialize transaction service client", "error", err)
		os.Exit(1)
	}

	// The recorded decision seeds the managed permission so a restart does
	// not look like a revocation.
	status, recorded, err := store.States().AuthorizationStatus(ctx)
	if err != nil {
		slog.Error("failed to read authorization status", "error", err)
		os.Exit(1)
	}
	if !recorded {
		status = types.AuthorizationUndetermined
	}
	permissions := lifecycle.NewManagedPermissions(status)

	queue := worker.New(m)
	mainLoop := lifecycle.NewMainLoop()
	bus := notification.NewBus()

	events, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	go logEvents(events)

	lc := lifecycle.New(lifecycle.Deps{
		States:      store.States(),
		Safes:       store.Safes(),
		Keys:        keys,
		Backend:     backend,
		Permissions: permissions,
		Main:        mainLoop,
		Queue:       queue,
		Events:      bus,
		Signer:      signer.NewRegistrationSigner(signer.WithMetrics(m)),
		Metrics:     m,
	}, types.AppInfo{
		Bundle:      cfg.AppBundle,
		Version:     cfg.AppVersion,
		BuildNumber: cfg.AppBuildNumber,
	}, cfg.DeviceType)

	keys.OnChange(lc.SigningKeyUpdated)

	if err := lc.AppStarted(ctx); err != nil {
		slog.Error("failed to start push lifecycle", "error", err)
		os.Exit(1)
	}

	deps := api.Deps{
		Lifecycle:   lc,
		States:      store.States(),
		Safes:       store.Safes(),
		Keys:        keys,
		Signer:      signer.NewTransactionSigner(keys, m),
		Permissions: permissions,
		Breaker:     backend,
		Queue:       queue,
		Metrics:     m,
	}
	if chain != nil {
		deps.Chain = chain
	}

	// Initialize API server
	server := api.NewServer(cfg, deps)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for either server error or shutdown signal
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}

	// Pending registrations are dropped; the next start re-registers.
	if err := mainLoop.Stop(); err != nil {
		slog.Warn("main loop stopped with error", "error", err)
	}
	if err := queue.Stop(); err != nil {
		slog.Warn("worker stopped with error", "error", err)
	}

	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.StoreBackend == config.StorePostgres {
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := boltstore.Open(cfg.BoltPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// resolveChainID prefers CHAIN_ID, then the RPC node, then mainnet
func resolveChainID(cfg *config.Config, chain *eth.Client) *big.Int {
	if cfg.ChainID > 0 {
		return big.NewInt(cfg.ChainID)
	}
	if chain != nil {
		return chain.ChainID()
	}
	return big.NewInt(1)
}

func logEvents(events <-chan notification.Event) {
	for ev := range events {
		slog.Info("event", "type", ev.Type, "safe", ev.Safe.Checksummed(), "tracking", ev.Tracking)
	}
}
