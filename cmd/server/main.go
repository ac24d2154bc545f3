// Package main is the entry point for the stock ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/core/idempotency"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/domain/units"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/notify"
	"stockledger/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

const idempotencyTTL = 24 * time.Hour

// backend bundles the repositories of one storage driver.
type backend struct {
	txm         tx.Manager
	products    product.Repository
	inventories inventory.Repository
	movements   inventory.MovementRepository
	alerts      inventory.AlertRepository
	idempotency idempotency.Store
	pinger      handlers.Pinger
	poolStats   func() postgres.PoolStats
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting stock ledger", "version", version, "store", cfg.Store.Driver)

	store, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open store", "driver", cfg.Store.Driver, "error", err)
	}
	defer store.close()

	// --- Domain ---
	converter := units.NewConverter(nil)
	calculator := costing.NewCalculator()

	dispatcher := notify.NewDispatcher(newNotifyRouter(cfg.Notify, log), cfg.Notify.Dispatcher(), log)
	dispatcher.Start(ctx)

	ledger := inventory.NewService(inventory.Deps{
		TxManager:   store.txm,
		Products:    store.products,
		Inventories: store.inventories,
		Movements:   store.movements,
		Alerts:      store.alerts,
		Converter:   converter,
		Calculator:  calculator,
		Notifier:    dispatcher,
	}, inventory.Config{
		Retry:  cfg.Tx.Policy(),
		Alerts: cfg.Alerts.Policy(),
	})
	products := product.NewService(store.products, store.txm, converter)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		Inventory:   ledger,
		Products:    products,
		Converter:   converter,
		Calculator:  calculator,
		Idempotency: store.idempotency,
		Debug:       cfg.App.IsDevelopment(),
		Health: handlers.HealthConfig{
			App:           cfg.App.Name,
			Version:       version,
			Store:         cfg.Store.Driver,
			DB:            store.pinger,
			PoolStats:     store.poolStats,
			NotifierStats: dispatcher.Stats,
			UnitCache:     converter.Cache().Stats,
		},
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warnw("notification queue not drained", "error", err)
	}

	log.Info("server stopped")
}

// openBackend connects the configured storage driver.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store := memory.New()
		log.Warn("using in-memory store; data is lost on restart")
		return &backend{
			txm:         store,
			products:    store.Products(),
			inventories: store.Inventories(),
			movements:   store.Movements(),
			alerts:      store.Alerts(),
			idempotency: memory.NewIdempotencyStore(idempotencyTTL),
			pinger:      store,
			close:       func() {},
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Store.Pool())
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("database connection established")

		txm := postgres.NewTxManager(pool)
		if cfg.Tx.Serializable {
			txm = txm.WithOptions(postgres.SerializableTxOptions())
		}
		idem := postgres.NewIdempotencyStore(txm, idempotencyTTL)
		go cleanupIdempotency(ctx, idem, log)

		return &backend{
			txm:         txm,
			products:    catalog_repo.NewProductRepo(txm),
			inventories: ledger_repo.NewInventoryRepo(txm),
			movements:   ledger_repo.NewMovementRepo(txm),
			alerts:      ledger_repo.NewAlertRepo(txm),
			idempotency: idem,
			pinger:      pool,
			poolStats:   pool.Stats,
			close: func() {
				postgres.LogPoolStats(logger.WithLogger(context.Background(), log), pool.Pool)
				pool.Close()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newNotifyRouter logs every channel. A configured webhook takes over the
// external channels and in-app alerts stay in the log.
func newNotifyRouter(cfg config.NotifyConfig, log *logger.Logger) *notify.Router {
	router := notify.NewRouter().Register(
		notify.NewLogSender(log),
		notify.ChannelSMS, notify.ChannelEmail, notify.ChannelPush, notify.ChannelInApp,
	)
	if cfg.WebhookURL != "" {
		client := &http.Client{Timeout: 10 * time.Second}
		router.Register(notify.NewWebhookSender(cfg.WebhookURL, client),
			notify.ChannelSMS, notify.ChannelEmail, notify.ChannelPush)
	}
	return router
}

func cleanupIdempotency(ctx context.Context, store *postgres.IdempotencyStore, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx)
			if err != nil {
				log.Warnw("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debugw("idempotency keys expired", "count", n)
			}
		}
	}
}
