// cmd/uponly/app.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/config"
	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/events"
	"github.com/rovshanmuradov/up-only/internal/logger"
	"github.com/rovshanmuradov/up-only/internal/metrics"
	"github.com/rovshanmuradov/up-only/internal/program"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/memory"
	"github.com/rovshanmuradov/up-only/internal/storage/postgres"
	"github.com/rovshanmuradov/up-only/internal/storage/sqlite"
	"github.com/rovshanmuradov/up-only/internal/wallet"
)

// Keystore names used when the deployment keys are not configured.
const (
	programWallet     = "program"
	saleMintWallet    = "sale-mint"
	paymentMintWallet = "payment-mint"
)

// app holds what a single command invocation needs.
type app struct {
	cfgPath string
	debug   bool
	out     io.Writer
	errOut  io.Writer

	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Store
	keystore  *wallet.Keystore
	collector *metrics.Collector
	bus       *events.Bus

	eng  *engine.Engine
	proc *program.Processor
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logger.New(logger.Config{
		Debug:      cfg.Log.Debug || a.debug,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   true,
	}, a.errOut)
	if err != nil {
		return err
	}

	a.keystore, err = wallet.Open(cfg.Wallets)
	if err != nil {
		return fmt.Errorf("open wallets: %w", err)
	}

	a.store, err = openStore(ctx, cfg.Storage, a.logger)
	if err != nil {
		return err
	}

	a.collector = metrics.NewCollector()
	a.bus = events.NewBus(a.logger, 256)
	a.bus.Subscribe(events.Any, events.HandlerFunc(func(_ context.Context, ev events.Event) error {
		a.logger.Debug("Event", zap.String("type", string(ev.Type())), zap.Any("event", ev))
		return nil
	}))
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, l *zap.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN, l)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DSN, postgres.Options{}, l)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (a *app) close() {
	if a.logger == nil {
		return
	}
	if a.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.bus.Shutdown(ctx); err != nil {
			a.logger.Warn("Event bus shutdown", zap.Error(err))
		}
		a.bus = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Store close", zap.Error(err))
		}
		a.store = nil
	}
	_ = logger.Sync(a.logger)
}

// deployment resolves the engine configuration, falling back to the
// keystore for keys the config leaves empty.
func (a *app) deployment() (engine.Config, error) {
	cfg := *a.cfg
	fill := func(dst *string, name string) {
		if *dst != "" {
			return
		}
		if w, err := a.keystore.Get(name); err == nil {
			*dst = w.PublicKey.String()
		}
	}
	fill(&cfg.ProgramID, programWallet)
	fill(&cfg.SaleMint, saleMintWallet)
	fill(&cfg.PaymentMint, paymentMintWallet)
	return cfg.Engine()
}

func (a *app) engine() (*engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	ec, err := a.deployment()
	if err != nil {
		return nil, fmt.Errorf("%w (run `uponly deploy` first)", err)
	}
	a.eng, err = engine.New(a.store, ec, a.logger,
		engine.WithEventBus(a.bus),
		engine.WithMetrics(a.collector),
	)
	if err != nil {
		return nil, err
	}
	a.proc = program.NewProcessor(a.eng, a.logger)
	return a.eng, nil
}

// submit signs the instruction built for signer with its keystore key and
// runs it through the processor.
func (a *app) submit(ctx context.Context, signer string, build func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error)) (*engine.Receipt, error) {
	w, err := a.keystore.Get(signer)
	if err != nil {
		return nil, err
	}
	if _, err := a.engine(); err != nil {
		return nil, err
	}

	ix, err := build(a.proc.Builder(), w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("build instruction: %w", err)
	}
	tx, err := program.Transaction(ix)
	if err != nil {
		return nil, err
	}
	if err := w.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	receipt, err := a.proc.ProcessTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	renderReceipt(a.out, receipt)
	return receipt, nil
}

// optionalKey resolves a flag value that may be empty.
func (a *app) optionalKey(nameOrKey string) (*solana.PublicKey, error) {
	if nameOrKey == "" {
		return nil, nil
	}
	key, err := a.keystore.Resolve(nameOrKey)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
