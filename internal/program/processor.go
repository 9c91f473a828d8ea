// ==============================================
// File: internal/program/processor.go
// ==============================================
package program

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/engine"
)

var (
	ErrWrongProgram         = errors.New("program: instruction addressed to another program")
	ErrUnknownInstruction   = errors.New("program: unknown instruction discriminator")
	ErrMissingSigner        = errors.New("program: first account must sign")
	ErrAccountMismatch      = errors.New("program: account list does not match the instruction")
	ErrInvalidArgs          = errors.New("program: malformed instruction arguments")
	ErrSignature            = errors.New("program: signature verification failed")
	ErrMultipleInstructions = errors.New("program: a transaction carries exactly one instruction")
)

// Processor decodes instructions and dispatches them to the engine.
type Processor struct {
	engine  *engine.Engine
	builder *Builder
	logger  *zap.Logger
}

func NewProcessor(eng *engine.Engine, logger *zap.Logger) *Processor {
	return &Processor{
		engine:  eng,
		builder: NewBuilder(eng.Addresses()),
		logger:  logger.Named("program"),
	}
}

// Builder returns a builder for the processor's deployment.
func (p *Processor) Builder() *Builder { return p.builder }

// ProcessTransaction verifies the signatures of tx and executes its single
// instruction with signer flags taken from the signed message.
func (p *Processor) ProcessTransaction(ctx context.Context, tx *solana.Transaction) (*engine.Receipt, error) {
	if len(tx.Message.Instructions) != 1 {
		return nil, ErrMultipleInstructions
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	ci := tx.Message.Instructions[0]
	programID, err := tx.Message.ResolveProgramIDIndex(ci.ProgramIDIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountMismatch, err)
	}
	metas, err := ci.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountMismatch, err)
	}
	return p.Execute(ctx, solana.NewInstruction(programID, metas, ci.Data))
}

// Execute runs one instruction. Signer flags are trusted as given, so
// untrusted input goes through ProcessTransaction.
func (p *Processor) Execute(ctx context.Context, ix solana.Instruction) (*engine.Receipt, error) {
	if !ix.ProgramID().Equals(p.builder.addr.Program) {
		return nil, ErrWrongProgram
	}
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	name, ok := nameOf(data)
	if !ok {
		return nil, ErrUnknownInstruction
	}
	metas := ix.Accounts()
	if len(metas) == 0 || !metas[0].IsSigner {
		return nil, ErrMissingSigner
	}
	signer := metas[0].PublicKey
	var subject solana.PublicKey
	if hasSubject[name] {
		if len(metas) < 2 {
			return nil, ErrAccountMismatch
		}
		subject = metas[1].PublicKey
	}
	if err := checkAccounts(accountsFor(p.builder.addr, name, signer, subject), metas); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	p.logger.Debug("Dispatching instruction",
		zap.String("instruction", name),
		zap.Stringer("signer", signer))

	e := p.engine
	switch name {
	case engine.OpInitialize:
		return e.Initialize(ctx, signer, subject)
	case engine.OpInitializeFounders:
		return e.InitializeFoundersPool(ctx, signer)
	case engine.OpAddFounder:
		return e.AddFounder(ctx, signer, subject)
	case engine.OpGivePass:
		return e.GivePass(ctx, signer, subject)
	case engine.OpBuyPass:
		var args BuyPassArgs
		if err := decode(data, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return e.BuyPass(ctx, signer, args.ptr())
	case engine.OpBuyToken:
		var args AmountArgs
		if err := decode(data, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return e.BuyToken(ctx, signer, args.Amount, args.ptr())
	case engine.OpSellToken:
		var args AmountArgs
		if err := decode(data, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return e.SellToken(ctx, signer, args.Amount, args.ptr())
	case engine.OpInitializeUserVault:
		return e.InitializeUserVault(ctx, signer)
	case engine.OpBuyAndLockToken:
		var args BuyAndLockArgs
		if err := decode(data, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		return e.BuyAndLockToken(ctx, signer, args.Amount, args.LockDays, args.ptr())
	case engine.OpEarlyUnlockTokens:
		return e.EarlyUnlockTokens(ctx, signer, subject)
	case engine.OpClaimLockedTokens:
		return e.ClaimLockedTokens(ctx, signer, subject)
	case engine.OpClaimFounderShare:
		return e.ClaimFounderShare(ctx, signer)
	case engine.OpSetTeam:
		return e.SetTeam(ctx, signer, subject)
	default:
		return nil, ErrUnknownInstruction
	}
}

// checkAccounts compares keys only; writable flags are advisory here.
func checkAccounts(want, got []*solana.AccountMeta) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: want %d accounts, got %d", ErrAccountMismatch, len(want), len(got))
	}
	for i := range want {
		if !want[i].PublicKey.Equals(got[i].PublicKey) {
			return fmt.Errorf("%w: account %d is %s, want %s", ErrAccountMismatch, i, got[i].PublicKey, want[i].PublicKey)
		}
	}
	return nil
}
