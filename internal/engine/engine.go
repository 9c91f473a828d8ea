// ==============================================
// File: internal/engine/engine.go
// ==============================================

// Package engine settles every operation of the sale: pass gating, curve
// buys and sells, vesting locks and founder payouts. Each operation runs in
// one storage transaction; it either commits whole or leaves no trace.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/events"
	"github.com/rovshanmuradov/up-only/internal/fees"
	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/metrics"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
	"github.com/rovshanmuradov/up-only/internal/token"
)

const (
	SecondsPerDay = 86400

	DefaultPassPrice       = 10_000 * ledger.PaymentUnit
	DefaultFounderCapacity = 60
	DefaultSeedDeposit     = 1 * ledger.PaymentUnit
	DefaultSeedSupply      = 1 * ledger.SaleUnit
)

// DefaultLockDays are the lock periods a buyer may choose from.
var DefaultLockDays = []uint64{3, 7, 14, 30, 60, 90, 180}

// Operation names, used in the journal, logs, metrics and events.
const (
	OpInitialize          = "initialize"
	OpInitializeFounders  = "initialize_founders_pool"
	OpAddFounder          = "add_founder"
	OpGivePass            = "give_pass"
	OpBuyPass             = "buy_pass"
	OpBuyToken            = "buy_token"
	OpSellToken           = "sell_token"
	OpInitializeUserVault = "initialize_user_vault"
	OpBuyAndLockToken     = "buy_and_lock_token"
	OpEarlyUnlockTokens   = "early_unlock_tokens"
	OpClaimLockedTokens   = "claim_locked_tokens"
	OpClaimFounderShare   = "claim_founder_share"
	OpSetTeam             = "set_team"
)

// Config is the deployment the engine settles for.
type Config struct {
	Program     solana.PublicKey
	SaleMint    solana.PublicKey
	PaymentMint solana.PublicKey

	Name   string
	Symbol string

	Fees            fees.Schedule
	PassPrice       uint64
	FounderCapacity uint8
	LockDays        []uint64
	SeedDeposit     uint64
	SeedSupply      uint64
}

// DefaultConfig returns the standard economics for a deployment.
func DefaultConfig(program, saleMint, paymentMint solana.PublicKey) Config {
	return Config{
		Program:         program,
		SaleMint:        saleMint,
		PaymentMint:     paymentMint,
		Name:            "UpOnly",
		Symbol:          "UP",
		Fees:            fees.DefaultSchedule(),
		PassPrice:       DefaultPassPrice,
		FounderCapacity: DefaultFounderCapacity,
		LockDays:        slices.Clone(DefaultLockDays),
		SeedDeposit:     DefaultSeedDeposit,
		SeedSupply:      DefaultSeedSupply,
	}
}

// Validate checks that cfg can settle anything at all.
func (c Config) Validate() error {
	if c.Program.IsZero() || c.SaleMint.IsZero() || c.PaymentMint.IsZero() {
		return ErrInvalidConfig.withf("program, sale mint and payment mint are required")
	}
	if c.SaleMint.Equals(c.PaymentMint) {
		return ErrInvalidConfig.withf("sale and payment mint must differ")
	}
	if err := c.Fees.Validate(); err != nil {
		return ErrInvalidSchedule.wrap(err)
	}
	if c.PassPrice == 0 {
		return ErrInvalidConfig.withf("pass price must be positive")
	}
	if c.FounderCapacity == 0 {
		return ErrInvalidConfig.withf("founder capacity must be positive")
	}
	if len(c.LockDays) == 0 {
		return ErrInvalidConfig.withf("at least one lock period is required")
	}
	for _, d := range c.LockDays {
		if d == 0 {
			return ErrInvalidConfig.withf("lock period of zero days")
		}
	}
	if c.SeedDeposit == 0 || c.SeedSupply == 0 {
		return ErrInvalidConfig.withf("seed deposit and supply must be positive")
	}
	return nil
}

// Engine applies operations against a Store. It holds no state of its own
// beyond configuration; concurrent callers are serialized by the Store.
type Engine struct {
	store   storage.Store
	cfg     Config
	addr    state.Addresses
	logger  *zap.Logger
	now     func() time.Time
	bus     *events.Bus
	metrics *metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for lock timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventBus publishes a settlement event after every commit.
func WithEventBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMetrics records operation metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// New creates an engine for cfg over store.
func New(store storage.Store, cfg Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		addr:   state.NewAddresses(cfg.Program, cfg.SaleMint, cfg.PaymentMint),
		logger: logger.Named("engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Addresses returns the derived addresses of the deployment.
func (e *Engine) Addresses() state.Addresses { return e.addr }

// Receipt describes a committed operation.
type Receipt struct {
	Operation string
	Signer    solana.PublicKey
	Subject   solana.PublicKey // the participant acted on, when not the signer

	Split  fees.Split // zero for operations without a fee
	Minted uint64
	Burned uint64
	Paid   uint64 // payment-asset units credited to the participant

	Before curve.State
	After  curve.State

	Lock *state.LockedTokenState
}

func (r *Receipt) entry() *models.Entry {
	entry := &models.Entry{
		Operation:     r.Operation,
		Signer:        r.Signer.String(),
		PaymentAmount: r.Split.Gross,
		SaleAmount:    r.Minted + r.Burned,
		ReserveAfter:  r.After.Reserve,
		SupplyAfter:   r.After.Supply,
	}
	if !r.Subject.IsZero() {
		entry.Subject = r.Subject.String()
	}
	return entry
}

// execute runs fn in one Update, journals the receipt in the same
// transaction and reports the outcome after commit. fn may run more than
// once, so it must build the receipt from scratch every time.
func (e *Engine) execute(ctx context.Context, op string, signer solana.PublicKey, fn func(tx storage.Tx, r *Receipt) error) (*Receipt, error) {
	start := time.Now()
	var receipt *Receipt
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		r := &Receipt{Operation: op, Signer: signer}
		if err := fn(tx, r); err != nil {
			return err
		}
		if !r.After.Seeded() {
			// operations that leave the curve alone still journal where it stands
			if st, err := e.curveState(ctx, tx); err == nil {
				r.After = st
			}
		}
		if !r.Before.Seeded() {
			r.Before = r.After
		}
		if err := tx.Append(ctx, r.entry()); err != nil {
			return err
		}
		receipt = r
		return nil
	})
	err = classify(err)
	e.metrics.RecordOperation(op, time.Since(start), err)

	if err != nil {
		e.logger.Warn("Operation rejected",
			zap.String("operation", op),
			zap.Stringer("signer", signer),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err))
		e.publish(&events.OperationFailedEvent{
			BaseEvent: events.BaseEvent{EventType: events.OperationFailed, EventTime: e.now()},
			Operation: op,
			Signer:    signer.String(),
			Code:      uint32(CodeOf(err)),
			Kind:      KindOf(err).String(),
			Error:     err,
		})
		return nil, err
	}

	e.logger.Info("Operation committed",
		zap.String("operation", op),
		zap.Stringer("signer", signer),
		zap.Uint64("gross", receipt.Split.Gross),
		zap.Uint64("minted", receipt.Minted),
		zap.Uint64("burned", receipt.Burned),
		zap.Uint64("reserve", receipt.After.Reserve),
		zap.Uint64("supply", receipt.After.Supply))
	e.report(receipt)
	return receipt, nil
}

var opEvents = map[string]events.EventType{
	OpInitialize:          events.Initialized,
	OpInitializeFounders:  events.FoundersPoolOpened,
	OpAddFounder:          events.FounderAdded,
	OpGivePass:            events.PassGranted,
	OpBuyPass:             events.PassGranted,
	OpBuyToken:            events.TokensBought,
	OpSellToken:           events.TokensSold,
	OpInitializeUserVault: events.VaultOpened,
	OpBuyAndLockToken:     events.TokensLocked,
	OpEarlyUnlockTokens:   events.LockEarlyExited,
	OpClaimLockedTokens:   events.LockSettled,
	OpClaimFounderShare:   events.FounderClaimed,
	OpSetTeam:             events.TeamChanged,
}

func (e *Engine) report(r *Receipt) {
	s := r.Split
	e.metrics.AddFees(s.Referral, s.Protocol, s.Founders, s.Liquidity)
	switch r.Operation {
	case OpClaimLockedTokens:
		e.metrics.LockSettled("matured")
	case OpEarlyUnlockTokens:
		e.metrics.LockSettled("early")
	}

	now := e.now()
	if r.After.Seeded() {
		after, _ := r.After.Price()
		e.metrics.UpdateCurve(r.After.Reserve, r.After.Supply, after)
		if before, err := r.Before.Price(); err == nil && before != after {
			e.publish(&events.PriceUpdatedEvent{
				BaseEvent: events.BaseEvent{EventType: events.PriceUpdated, EventTime: now},
				Before:    before,
				After:     after,
			})
		}
	}

	ev := &events.SettlementEvent{
		BaseEvent:    events.BaseEvent{EventType: opEvents[r.Operation], EventTime: now},
		Operation:    r.Operation,
		Signer:       r.Signer.String(),
		Gross:        s.Gross,
		Net:          s.Net,
		Referral:     s.Referral,
		Protocol:     s.Protocol,
		Founders:     s.Founders,
		Minted:       r.Minted,
		Burned:       r.Burned,
		ReserveAfter: r.After.Reserve,
		SupplyAfter:  r.After.Supply,
	}
	if !r.Subject.IsZero() {
		ev.Subject = r.Subject.String()
	}
	e.publish(ev)
}

func (e *Engine) publish(ev events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Debug("Event not published", zap.String("event_type", string(ev.Type())), zap.Error(err))
	}
}

// ---- shared helpers used inside transactions ----

func (e *Engine) metadata(ctx context.Context, tx storage.Tx) (*state.Metadata, error) {
	var md state.Metadata
	if err := state.Load(ctx, tx, e.addr.Metadata(), &md); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	if !md.Initialized {
		return nil, ErrNotInitialized
	}
	return &md, nil
}

// curveState reads the reserve balance and the circulating supply.
func (e *Engine) curveState(ctx context.Context, tx storage.Tx) (curve.State, error) {
	reserve, err := token.Balance(ctx, tx, e.addr.PoolAuthority(), e.cfg.PaymentMint)
	if err != nil {
		return curve.State{}, err
	}
	mint, err := token.GetMint(ctx, tx, e.cfg.SaleMint)
	if err != nil {
		return curve.State{}, err
	}
	return curve.State{Reserve: reserve, Supply: mint.Supply}, nil
}

// verifyUpOnly re-reads the committed-to-be state and checks it against
// before. The quote already guarantees this; the check guards the token
// movements that follow the quote.
func (e *Engine) verifyUpOnly(ctx context.Context, tx storage.Tx, before curve.State) (curve.State, error) {
	after, err := e.curveState(ctx, tx)
	if err != nil {
		return curve.State{}, err
	}
	if err := curve.CheckUpOnly(before, after); err != nil {
		return curve.State{}, err
	}
	return after, nil
}

func (e *Engine) userState(ctx context.Context, tx storage.Tx, user solana.PublicKey) (*state.UserState, error) {
	var us state.UserState
	err := state.Load(ctx, tx, e.addr.UserState(user), &us)
	switch {
	case err == nil:
		return &us, nil
	case errors.Is(err, storage.ErrNotFound):
		return &state.UserState{Owner: user}, nil
	default:
		return nil, err
	}
}

func (e *Engine) requirePass(ctx context.Context, tx storage.Tx, user solana.PublicKey) (*state.UserState, error) {
	us, err := e.userState(ctx, tx, user)
	if err != nil {
		return nil, err
	}
	if !us.HasPass {
		return nil, ErrNoPass.withf("user %s", user)
	}
	return us, nil
}

// resolveReferral picks the referral for one settlement: an explicit one
// wins, then the one stored at pass purchase.
func resolveReferral(user solana.PublicKey, explicit *solana.PublicKey, us *state.UserState) (solana.PublicKey, bool, error) {
	if explicit != nil && !explicit.IsZero() {
		if explicit.Equals(user) {
			return solana.PublicKey{}, false, ErrInvalidReferral
		}
		return *explicit, true, nil
	}
	if us != nil && us.ReferralSet {
		return us.Referral, true, nil
	}
	return solana.PublicKey{}, false, nil
}

// payFees moves the fee legs of split out of from. The net and the
// liquidity leg are left to the caller.
func (e *Engine) payFees(ctx context.Context, tx storage.Tx, md *state.Metadata, from solana.PublicKey, split fees.Split, referral solana.PublicKey, hasReferral bool) error {
	mint := e.cfg.PaymentMint
	if hasReferral {
		if err := token.Transfer(ctx, tx, mint, from, referral, split.Referral); err != nil {
			return fmt.Errorf("referral leg: %w", err)
		}
	}
	if err := token.Transfer(ctx, tx, mint, from, md.Team, split.Protocol); err != nil {
		return fmt.Errorf("protocol leg: %w", err)
	}
	if split.Founders == 0 {
		return nil
	}
	var pool state.FoundersPool
	if err := state.Load(ctx, tx, e.addr.FoundersPool(), &pool); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFoundersPoolNotInitialized
		}
		return err
	}
	if err := token.Transfer(ctx, tx, mint, from, e.addr.FounderAuthority(), split.Founders); err != nil {
		return fmt.Errorf("founders leg: %w", err)
	}
	var err error
	if pool.TotalCollected, err = ledger.Add(pool.TotalCollected, split.Founders); err != nil {
		return err
	}
	return state.Save(ctx, tx, e.addr.FoundersPool(), &pool)
}

func (e *Engine) requireDeployer(md *state.Metadata, signer solana.PublicKey) error {
	if !md.Deployer.Equals(signer) {
		return ErrUnauthorized.withf("signer %s is not the deployer", signer)
	}
	return nil
}
