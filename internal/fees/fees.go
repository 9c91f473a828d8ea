// ==============================================
// File: internal/fees/fees.go
// ==============================================

// Package fees splits a gross payment-asset amount into the legs that leave
// or stay in the pool on every settlement.
package fees

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/up-only/internal/ledger"
)

const (
	DefaultTotalBps              uint64 = 600 // 6%
	DefaultReferralBps           uint64 = 300 // 3% of gross when a referral is present
	DefaultEarlyUnlockPenaltyBps uint64 = 50  // 0.5%
)

var ErrInvalidSchedule = errors.New("fees: invalid schedule")

// Schedule is the fee configuration applied to a gross amount.
//
// TotalBps is shared between the referral and the protocol recipient.
// FoundersBps and LiquidityBps are separate legs; the first is credited to
// the founders pool, the second stays in the reserve without minting.
type Schedule struct {
	TotalBps              uint64 `mapstructure:"total_bps"`
	ReferralBps           uint64 `mapstructure:"referral_bps"`
	FoundersBps           uint64 `mapstructure:"founders_bps"`
	LiquidityBps          uint64 `mapstructure:"liquidity_bps"`
	EarlyUnlockPenaltyBps uint64 `mapstructure:"early_unlock_penalty_bps"`

	// LockTiers override the legs for locked buys and their settlement.
	// Empty means locks pay the flat schedule.
	LockTiers []LockTier `mapstructure:"lock_tiers"`
}

// LockTier applies to locks of up to MaxDays days. TotalBps plays the same
// role as in Schedule; half of it goes to the referral when one is present.
type LockTier struct {
	MaxDays      uint64 `mapstructure:"max_days"`
	TotalBps     uint64 `mapstructure:"total_bps"`
	FoundersBps  uint64 `mapstructure:"founders_bps"`
	LiquidityBps uint64 `mapstructure:"liquidity_bps"`
}

// StandardLockTiers is the table where longer locks leave more in the
// reserve.
func StandardLockTiers() []LockTier {
	return []LockTier{
		{MaxDays: 3, TotalBps: 75, FoundersBps: 25, LiquidityBps: 150},
		{MaxDays: 7, TotalBps: 100, FoundersBps: 25, LiquidityBps: 225},
		{MaxDays: 14, TotalBps: 125, FoundersBps: 25, LiquidityBps: 300},
		{MaxDays: 30, TotalBps: 150, FoundersBps: 25, LiquidityBps: 375},
		{MaxDays: 60, TotalBps: 175, FoundersBps: 25, LiquidityBps: 450},
		{MaxDays: 90, TotalBps: 200, FoundersBps: 25, LiquidityBps: 550},
		{MaxDays: 180, TotalBps: 250, FoundersBps: 25, LiquidityBps: 725},
	}
}

// ForLock returns the schedule for a lock of lockDays. The first tier whose
// MaxDays covers lockDays wins; past the last tier the last one applies.
// The early-unlock penalty is kept from s.
func (s Schedule) ForLock(lockDays uint64) Schedule {
	if len(s.LockTiers) == 0 {
		return s
	}
	tier := s.LockTiers[len(s.LockTiers)-1]
	for _, t := range s.LockTiers {
		if lockDays <= t.MaxDays {
			tier = t
			break
		}
	}
	return Schedule{
		TotalBps:              tier.TotalBps,
		ReferralBps:           tier.TotalBps / 2,
		FoundersBps:           tier.FoundersBps,
		LiquidityBps:          tier.LiquidityBps,
		EarlyUnlockPenaltyBps: s.EarlyUnlockPenaltyBps,
	}
}

// DefaultSchedule returns the 6% schedule with a 3%/3% referral split.
func DefaultSchedule() Schedule {
	return Schedule{
		TotalBps:              DefaultTotalBps,
		ReferralBps:           DefaultReferralBps,
		EarlyUnlockPenaltyBps: DefaultEarlyUnlockPenaltyBps,
	}
}

// Validate checks that the legs can never exceed the gross amount.
func (s Schedule) Validate() error {
	if s.ReferralBps > s.TotalBps {
		return fmt.Errorf("%w: referral_bps %d exceeds total_bps %d", ErrInvalidSchedule, s.ReferralBps, s.TotalBps)
	}
	sum := s.TotalBps + s.FoundersBps + s.LiquidityBps + s.EarlyUnlockPenaltyBps
	if sum >= ledger.BpsDenominator {
		return fmt.Errorf("%w: legs sum to %d bps", ErrInvalidSchedule, sum)
	}
	var prev uint64
	for i, t := range s.LockTiers {
		if i > 0 && t.MaxDays <= prev {
			return fmt.Errorf("%w: lock tier %d: max_days %d not above %d", ErrInvalidSchedule, i, t.MaxDays, prev)
		}
		prev = t.MaxDays
		if err := s.ForLock(t.MaxDays).Validate(); err != nil {
			return fmt.Errorf("lock tier %d: %w", i, err)
		}
	}
	return nil
}

// Split is the decomposition of Gross. Net + Referral + Protocol + Founders
// + Liquidity == Gross always holds.
type Split struct {
	Gross     uint64
	Net       uint64
	Referral  uint64
	Protocol  uint64
	Founders  uint64
	Liquidity uint64
}

// Fees returns everything except the net leg.
func (s Split) Fees() uint64 {
	return s.Referral + s.Protocol + s.Founders + s.Liquidity
}

// Apply splits gross. With a referral the referral and protocol legs are
// each floored independently; without one the whole TotalBps goes to the
// protocol. penaltyBps is added to the protocol leg. Rounding is always down
// on recipient legs so the remainder lands in Net.
func (s Schedule) Apply(gross uint64, hasReferral bool, penaltyBps uint64) (Split, error) {
	split := Split{Gross: gross}

	protocolBps := s.TotalBps
	if hasReferral {
		ref, err := ledger.Bps(gross, s.ReferralBps)
		if err != nil {
			return Split{}, err
		}
		split.Referral = ref
		protocolBps = s.TotalBps - s.ReferralBps
	}

	protocol, err := ledger.Bps(gross, protocolBps)
	if err != nil {
		return Split{}, err
	}
	if penaltyBps > 0 {
		penalty, err := ledger.Bps(gross, penaltyBps)
		if err != nil {
			return Split{}, err
		}
		if protocol, err = ledger.Add(protocol, penalty); err != nil {
			return Split{}, err
		}
	}
	split.Protocol = protocol

	if split.Founders, err = ledger.Bps(gross, s.FoundersBps); err != nil {
		return Split{}, err
	}
	if split.Liquidity, err = ledger.Bps(gross, s.LiquidityBps); err != nil {
		return Split{}, err
	}

	net, err := ledger.Sub(gross, split.Fees())
	if err != nil {
		return Split{}, fmt.Errorf("%w: fees exceed gross %d", ErrInvalidSchedule, gross)
	}
	split.Net = net
	return split, nil
}
