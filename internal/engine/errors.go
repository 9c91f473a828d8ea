// ==============================================
// File: internal/engine/errors.go
// ==============================================
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/fees"
	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// Kind classifies a rejection by what the caller can do about it.
type Kind uint8

const (
	KindInternal      Kind = iota // storage or codec failure
	KindInput                     // malformed request
	KindAuthorization             // wrong signer
	KindState                     // precondition not met yet, or no longer
	KindArithmetic                // amounts that cannot be settled as given
	KindCapacity                  // a bounded registry is full
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindArithmetic:
		return "arithmetic"
	case KindCapacity:
		return "capacity"
	default:
		return "internal"
	}
}

// Code is the stable numeric reason code surfaced to callers.
type Code uint32

// Error is a rejected operation. Two errors match with errors.Is when their
// codes are equal, so sentinels below can be compared against wrapped copies
// that carry detail.
type Error struct {
	Code   Code
	Name   string
	Kind   Kind
	Msg    string
	detail string
	cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
	if e.detail != "" {
		msg += ": " + e.detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) withf(format string, args ...any) *Error {
	cp := *e
	cp.detail = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func newError(code Code, name string, kind Kind, msg string) *Error {
	return &Error{Code: code, Name: name, Kind: kind, Msg: msg}
}

var (
	ErrAlreadyInitialized         = newError(6000, "AlreadyInitialized", KindState, "account is already initialized")
	ErrAlreadyHasPass             = newError(6001, "AlreadyHasPass", KindState, "user already has a pass")
	ErrInvalidReferral            = newError(6002, "InvalidReferral", KindInput, "referral cannot be the user themselves")
	ErrNotInitialized             = newError(6003, "NotInitialized", KindState, "engine is not initialized")
	ErrNoPass                     = newError(6004, "NoPass", KindState, "user does not have a pass")
	ErrFounderLimitReached        = newError(6005, "FounderLimitReached", KindCapacity, "maximum number of founders reached")
	ErrNotFounder                 = newError(6006, "NotFounder", KindAuthorization, "caller is not a founder")
	ErrNothingToClaim             = newError(6007, "NothingToClaim", KindState, "nothing to claim")
	ErrUnauthorized               = newError(6008, "Unauthorized", KindAuthorization, "you are not authorized to perform this action")
	ErrLockNotMatured             = newError(6009, "LockPeriodNotOver", KindState, "lock period has not ended")
	ErrLockNotOpen                = newError(6010, "AlreadyClaimed", KindState, "no open lock for this user")
	ErrInvalidLockPeriod          = newError(6011, "InvalidLockPeriod", KindInput, "invalid lock period")
	ErrDuplicateFounder           = newError(6012, "DuplicateFounder", KindState, "founder is already registered")
	ErrLockExists                 = newError(6013, "LockAlreadyOpen", KindState, "user already has an open lock")
	ErrVaultNotInitialized        = newError(6014, "VaultNotInitialized", KindState, "user vault is not initialized")
	ErrVaultAlreadyInitialized    = newError(6015, "VaultAlreadyInitialized", KindState, "user vault is already initialized")
	ErrLockMatured                = newError(6016, "LockMatured", KindState, "lock has matured, claim it instead")
	ErrFoundersPoolNotInitialized = newError(6017, "FoundersPoolNotInitialized", KindState, "founders pool is not initialized")
	ErrZeroAmount                 = newError(6018, "ZeroAmount", KindInput, "amount must be positive")
	ErrZeroEffect                 = newError(6019, "ZeroEffect", KindArithmetic, "amount too small to mint or release anything")
	ErrInsufficientFunds          = newError(6020, "InsufficientFunds", KindArithmetic, "insufficient balance")
	ErrOverflow                   = newError(6021, "Overflow", KindArithmetic, "arithmetic overflow")
	ErrPriceDecreased             = newError(6022, "PriceDecreased", KindArithmetic, "operation would lower the unit price")
	ErrExceedsSupply              = newError(6023, "ExceedsSupply", KindArithmetic, "redemption exceeds circulating supply")
	ErrInvalidSchedule            = newError(6024, "InvalidFeeSchedule", KindInput, "fee schedule is invalid")
	ErrInvalidConfig              = newError(6025, "InvalidConfig", KindInput, "engine configuration is invalid")
	ErrEmptyIdentity              = newError(6026, "EmptyIdentity", KindInput, "identity must be set")
	ErrInternal                   = newError(6099, "Internal", KindInternal, "internal failure")
)

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the reason code of err, or ErrInternal's code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal.Code
}

// classify converts errors from the arithmetic and token layers into engine
// errors. Engine errors and context errors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case errors.Is(err, curve.ErrZeroAmount):
		return ErrZeroAmount.wrap(err)
	case errors.Is(err, curve.ErrZeroMint), errors.Is(err, curve.ErrZeroProceeds):
		return ErrZeroEffect.wrap(err)
	case errors.Is(err, curve.ErrPriceDecreased):
		return ErrPriceDecreased.wrap(err)
	case errors.Is(err, curve.ErrExceedsSupply):
		return ErrExceedsSupply.wrap(err)
	case errors.Is(err, curve.ErrNotSeeded):
		return ErrNotInitialized.wrap(err)
	case errors.Is(err, ledger.ErrOverflow), errors.Is(err, ledger.ErrUnderflow), errors.Is(err, ledger.ErrDivideByZero):
		return ErrOverflow.wrap(err)
	case errors.Is(err, token.ErrInsufficientFunds), errors.Is(err, token.ErrAccountNotFound):
		return ErrInsufficientFunds.wrap(err)
	case errors.Is(err, fees.ErrInvalidSchedule):
		return ErrInvalidSchedule.wrap(err)
	default:
		return ErrInternal.wrap(err)
	}
}
