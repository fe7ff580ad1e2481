/*

The reward accrual engine maintains the global cumulative reward-per-share
accumulator and settles per-holder entitlements lazily. The accounting
pattern: Distribute folds a reward amount into the accumulator at the current
share supply; every share-balance change checkpoints the holder against the
accumulator *before* the balance mutation, so rewards accrued under the old
balance are settled into StoredRewards and never misattributed.

Reward release policy: instantaneous. A distribution is fully reflected in
the accumulator the moment it is accepted.

*/

package rewards

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount = errors.New("reward amount must be positive")
	ErrNoShares      = errors.New("no shares outstanding to distribute against")
	ErrNilAccount    = errors.New("holder account is nil")
)

// Precision is the fixed-point scale of the accumulator. Floor division at
// this scale loses at most Precision-1 scaled units per distribution ("dust");
// the loss is documented and never separately reconciled.
var Precision = sdkmath.NewIntFromUint64(1_000_000_000_000_000_000)

// Engine holds the global accumulator state. It carries no lock: all calls
// happen under the owning vault's writer lock.
type Engine struct {
	logger zerolog.Logger

	// cumulativeRewardPerShare is scaled by Precision and is monotonically
	// non-decreasing.
	cumulativeRewardPerShare sdkmath.Int
	totalDistributed         sdkmath.Int
}

// NewEngine creates an engine with a zeroed accumulator.
func NewEngine() *Engine {
	return &Engine{
		logger:                   logger.GetForComponent("reward_engine"),
		cumulativeRewardPerShare: sdkmath.ZeroInt(),
		totalDistributed:         sdkmath.ZeroInt(),
	}
}

// CumulativeRewardPerShare returns the current accumulator value, scaled by Precision.
func (e *Engine) CumulativeRewardPerShare() sdkmath.Int {
	return e.cumulativeRewardPerShare
}

// TotalDistributed returns the total reward amount ever accepted.
func (e *Engine) TotalDistributed() sdkmath.Int {
	return e.totalDistributed
}

// Distribute folds amount into the accumulator at the given share supply.
// The caller must have already taken custody of the reward asset; Distribute
// itself cannot fail after its preconditions pass.
func (e *Engine) Distribute(amount, totalShares sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if totalShares.IsNil() || !totalShares.IsPositive() {
		return ErrNoShares
	}

	perShare := amount.Mul(Precision).Quo(totalShares)
	e.cumulativeRewardPerShare = e.cumulativeRewardPerShare.Add(perShare)
	e.totalDistributed = e.totalDistributed.Add(amount)

	e.logger.Debug().
		Str("amount", amount.String()).
		Str("totalShares", totalShares.String()).
		Str("accumulator", e.cumulativeRewardPerShare.String()).
		Msg("Reward distribution folded into accumulator")
	return nil
}

// Checkpoint settles the holder's pending entitlement into StoredRewards and
// advances their checkpoint to the current accumulator value.
//
// oldShares MUST be the holder's share balance as it was before the pending
// balance mutation; it is an explicit parameter precisely so callers cannot
// accidentally checkpoint against an already-mutated balance.
func (e *Engine) Checkpoint(acc *types.HolderAccount, oldShares sdkmath.Int) error {
	if acc == nil {
		return ErrNilAccount
	}
	if !oldShares.IsNil() && oldShares.IsPositive() {
		delta := e.cumulativeRewardPerShare.Sub(acc.RewardCheckpoint)
		if delta.IsPositive() {
			accrued := oldShares.Mul(delta).Quo(Precision)
			acc.StoredRewards = acc.StoredRewards.Add(accrued)
		}
	}
	acc.RewardCheckpoint = e.cumulativeRewardPerShare
	return nil
}

// Claim settles the holder at their current (unchanged) share balance, zeroes
// StoredRewards, and returns the amount owed. A zero return is a no-op, not
// an error; the caller performs the actual transfer.
func (e *Engine) Claim(acc *types.HolderAccount, currentShares sdkmath.Int) (sdkmath.Int, error) {
	if err := e.Checkpoint(acc, currentShares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	owed := acc.StoredRewards
	acc.StoredRewards = sdkmath.ZeroInt()
	return owed, nil
}

// AccruedOf is a pure read of the holder's total entitlement: stored rewards
// plus the pending amount since their last checkpoint.
func (e *Engine) AccruedOf(acc *types.HolderAccount, currentShares sdkmath.Int) sdkmath.Int {
	if acc == nil {
		return sdkmath.ZeroInt()
	}
	accrued := acc.StoredRewards
	if !currentShares.IsNil() && currentShares.IsPositive() {
		delta := e.cumulativeRewardPerShare.Sub(acc.RewardCheckpoint)
		if delta.IsPositive() {
			accrued = accrued.Add(currentShares.Mul(delta).Quo(Precision))
		}
	}
	return accrued
}
