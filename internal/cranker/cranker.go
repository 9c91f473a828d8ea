// ==============================================
// File: internal/cranker/cranker.go
// ==============================================

// Package cranker settles matured locks on behalf of their owners. Anyone
// may run one; proceeds always go to the lock owner.
package cranker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/metrics"
	"github.com/rovshanmuradov/up-only/internal/state"
)

// Settler is the part of the engine the cranker drives.
type Settler interface {
	MaturedLocks(ctx context.Context) ([]*state.LockedTokenState, error)
	ClaimLockedTokens(ctx context.Context, cranker, owner solana.PublicKey) (*engine.Receipt, error)
}

// Config задает параметры обхода
type Config struct {
	Interval       time.Duration `mapstructure:"interval"`
	Workers        int           `mapstructure:"workers"`
	MaxTries       uint          `mapstructure:"max_tries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxTries == 0 {
		c.MaxTries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	return c
}

// Cranker periodically settles every matured lock.
type Cranker struct {
	settler  Settler
	identity solana.PublicKey
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Collector
}

func New(settler Settler, identity solana.PublicKey, cfg Config, logger *zap.Logger, collector *metrics.Collector) *Cranker {
	return &Cranker{
		settler:  settler,
		identity: identity,
		cfg:      cfg.withDefaults(),
		logger:   logger.Named("cranker"),
		metrics:  collector,
	}
}

// Result summarizes one pass.
type Result struct {
	Found   int
	Settled int
	Skipped int // settled by someone else first
	Failed  int
	Paid    uint64 // payment-asset units paid to owners
}

// RunOnce settles the locks matured at call time, at most Workers at once.
// A failed lock does not stop the others; only cancellation does.
func (c *Cranker) RunOnce(ctx context.Context) (Result, error) {
	locks, err := c.settler.MaturedLocks(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Found: len(locks)}
	if len(locks) == 0 {
		return res, nil
	}

	var settled, skipped, failed atomic.Int64
	var paid atomic.Uint64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, lock := range locks {
		owner := lock.Owner
		g.Go(func() error {
			r, err := c.settle(gCtx, owner)
			switch {
			case err == nil:
				settled.Add(1)
				paid.Add(r.Paid)
				c.metrics.CrankAttempt("settled")
			case errors.Is(err, engine.ErrLockNotOpen):
				skipped.Add(1)
				c.metrics.CrankAttempt("skipped")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				failed.Add(1)
				c.metrics.CrankAttempt("failed")
				c.logger.Warn("Lock settlement failed",
					zap.Stringer("owner", owner),
					zap.Error(err))
			}
			return nil
		})
	}
	err = g.Wait()

	res.Settled = int(settled.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = int(failed.Load())
	res.Paid = paid.Load()
	return res, err
}

// settle retries only failures the engine classifies as internal, which
// covers storage contention; every rejection is final.
func (c *Cranker) settle(ctx context.Context, owner solana.PublicKey) (*engine.Receipt, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.InitialBackoff * 10

	notify := func(err error, d time.Duration) {
		c.logger.Info("Retrying lock settlement",
			zap.Stringer("owner", owner),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	op := func() (*engine.Receipt, error) {
		r, err := c.settler.ClaimLockedTokens(ctx, c.identity, owner)
		switch {
		case err == nil:
			return r, nil
		case ctx.Err() != nil, engine.KindOf(err) != engine.KindInternal:
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.cfg.MaxTries),
		backoff.WithNotify(notify))
}

// Run settles matured locks every Interval until ctx is cancelled.
func (c *Cranker) Run(ctx context.Context) error {
	c.logger.Info("Cranker started",
		zap.Stringer("identity", c.identity),
		zap.Duration("interval", c.cfg.Interval),
		zap.Int("workers", c.cfg.Workers))

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		res, err := c.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			c.logger.Info("Cranker stopped")
			return nil
		case err != nil:
			c.logger.Error("Crank pass failed", zap.Error(err))
		case res.Found > 0:
			c.logger.Info("Crank pass complete",
				zap.Int("found", res.Found),
				zap.Int("settled", res.Settled),
				zap.Int("skipped", res.Skipped),
				zap.Int("failed", res.Failed),
				zap.Uint64("paid", res.Paid))
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Cranker stopped")
			return nil
		case <-ticker.C:
		}
	}
}
