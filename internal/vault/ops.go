package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/rewards"
	"github.com/openvault-labs/pcv/internal/types"
)

// Deposit pulls amount of the pooled asset from the holder (who must have
// granted the vault an allowance) and mints shares 1:1. The holder is
// checkpointed against the reward accumulator at their pre-deposit balance
// before anything else moves.
func (v *Vault) Deposit(holder types.Principal, amount sdkmath.Int) error {
	if holder == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	j := newJournal(v.logger)
	acc := v.shares.Account(holder)
	j.restoreAccount(acc)
	if err := v.rewards.Checkpoint(acc, acc.Shares); err != nil {
		j.rollback()
		return err
	}

	if err := v.ledger.TransferFrom(v.poolAsset, holder, v.account, v.account, amount); err != nil {
		j.rollback()
		v.record("deposit", holder, "", amount, sdkmath.ZeroInt(), false, err.Error())
		return fmt.Errorf("deposit transfer failed: %w", err)
	}
	j.add(func() error {
		return v.ledger.Transfer(v.poolAsset, v.account, holder, amount)
	})

	if err := v.shares.Mint(holder, amount); err != nil {
		j.rollback()
		v.record("deposit", holder, "", amount, sdkmath.ZeroInt(), false, err.Error())
		return err
	}

	v.logger.Info().
		Str("holder", string(holder)).
		Str("amount", amount.String()).
		Str("totalShares", v.shares.TotalShares().String()).
		Msg("Deposit completed")
	v.record("deposit", holder, "", amount, amount, true, "")
	v.snapshot()
	return nil
}

// Withdraw burns amount shares and returns the same amount of the pooled
// asset to the holder. When the liquid balance cannot cover the request, the
// shortfall escalates through the default strategy: ordinary withdrawal
// first, then emergency liquidity. If the full amount still cannot be
// covered the whole operation fails and every intermediate effect is rolled
// back — the vault never silently substitutes a partial withdrawal.
func (v *Vault) Withdraw(holder types.Principal, amount sdkmath.Int) error {
	if holder == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	acc := v.shares.Lookup(holder)
	if acc == nil || acc.Shares.LT(amount) {
		return ErrInsufficientShares
	}

	j := newJournal(v.logger)
	j.restoreAccount(acc)
	if err := v.rewards.Checkpoint(acc, acc.Shares); err != nil {
		j.rollback()
		return err
	}

	liquid := v.liquidity.LiquidBalance()
	if v.defaultStrategy == "" {
		// Without a strategy there is no escalation path, so the withdrawal
		// itself must respect the reserve requirement.
		remaining := liquid.Sub(amount)
		if remaining.IsNegative() || remaining.LT(v.liquidity.ReserveRequired()) {
			j.rollback()
			v.record("withdraw", holder, "", amount, sdkmath.ZeroInt(), false, ErrInsufficientLiquidity.Error())
			return ErrInsufficientLiquidity
		}
	} else if liquid.LT(amount) {
		shortfall := amount.Sub(liquid)
		if err := v.resolveShortfall(j, shortfall); err != nil {
			j.rollback()
			v.record("withdraw", holder, v.defaultStrategy, amount, sdkmath.ZeroInt(), false, err.Error())
			return err
		}
	}

	if err := v.shares.Burn(holder, amount); err != nil {
		j.rollback()
		return err
	}
	j.add(func() error {
		return v.shares.Mint(holder, amount)
	})

	if err := v.ledger.Transfer(v.poolAsset, v.account, holder, amount); err != nil {
		j.rollback()
		v.record("withdraw", holder, "", amount, sdkmath.ZeroInt(), false, err.Error())
		return fmt.Errorf("withdrawal transfer failed: %w", err)
	}

	v.logger.Info().
		Str("holder", string(holder)).
		Str("amount", amount.String()).
		Str("totalShares", v.shares.TotalShares().String()).
		Msg("Withdrawal completed")
	v.record("withdraw", holder, "", amount, amount, true, "")
	v.snapshot()
	return nil
}

// resolveShortfall escalates a liquidity shortfall against the default
// strategy and fails with ErrInsufficientLiquidity when the gap cannot be
// closed. Requires v.mu to be held; recovered funds are journaled so the
// caller's rollback returns them to the strategy.
func (v *Vault) resolveShortfall(j *journal, shortfall sdkmath.Int) error {
	if v.defaultStrategy == "" {
		return fmt.Errorf("%w: %w", ErrInsufficientLiquidity, ErrNoDefaultStrategy)
	}
	unit := v.strategies[v.defaultStrategy]

	recovered, err := v.liquidity.CoverShortfall(unit, shortfall)
	if recovered.IsPositive() {
		refund := recovered
		j.add(func() error {
			return v.liquidity.RefundAllocation(unit, refund)
		})
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientLiquidity, err)
	}
	if recovered.LT(shortfall) {
		v.logger.Warn().
			Str("strategy", unit.Name()).
			Str("shortfall", shortfall.String()).
			Str("recovered", recovered.String()).
			Msg("Escalation could not close the liquidity gap")
		return ErrInsufficientLiquidity
	}
	return nil
}

// DistributeRewards pulls amount of the reward asset from the caller (who
// must have granted the vault an allowance) and folds it into the
// accumulator. Fails when no shares are outstanding; the preconditions are
// checked before any funds move, so the fold itself cannot fail.
func (v *Vault) DistributeRewards(from types.Principal, amount sdkmath.Int) error {
	if from == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	totalShares := v.shares.TotalShares()
	if !totalShares.IsPositive() {
		return rewards.ErrNoShares
	}

	if err := v.ledger.TransferFrom(v.rewardAsset, from, v.account, v.account, amount); err != nil {
		v.record("distribute_rewards", from, "", amount, sdkmath.ZeroInt(), false, err.Error())
		return fmt.Errorf("reward transfer failed: %w", err)
	}
	if err := v.rewards.Distribute(amount, totalShares); err != nil {
		// Preconditions were checked above; return the funds if this is ever hit.
		if undoErr := v.ledger.Transfer(v.rewardAsset, v.account, from, amount); undoErr != nil {
			v.logger.Error().Err(undoErr).Msg("Failed to return rewards after distribution failure")
		}
		return err
	}

	v.logger.Info().
		Str("from", string(from)).
		Str("amount", amount.String()).
		Msg("Rewards distributed")
	v.record("distribute_rewards", from, "", amount, amount, true, "")
	v.snapshot()
	return nil
}

// ClaimRewards settles and pays out the holder's accrued rewards. A holder
// with nothing accrued gets zero back with no transfer; claiming twice in a
// row pays zero the second time.
func (v *Vault) ClaimRewards(holder types.Principal) (sdkmath.Int, error) {
	if holder == "" {
		return sdkmath.ZeroInt(), ErrInvalidPrincipal
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	acc := v.shares.Lookup(holder)
	if acc == nil {
		return sdkmath.ZeroInt(), nil
	}

	j := newJournal(v.logger)
	j.restoreAccount(acc)
	owed, err := v.rewards.Claim(acc, acc.Shares)
	if err != nil {
		j.rollback()
		return sdkmath.ZeroInt(), err
	}
	if !owed.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	if err := v.ledger.Transfer(v.rewardAsset, v.account, holder, owed); err != nil {
		j.rollback()
		v.record("claim_rewards", holder, "", owed, sdkmath.ZeroInt(), false, err.Error())
		return sdkmath.ZeroInt(), fmt.Errorf("reward payout failed: %w", err)
	}

	v.logger.Info().
		Str("holder", string(holder)).
		Str("amount", owed.String()).
		Msg("Rewards claimed")
	v.record("claim_rewards", holder, "", owed, owed, true, "")
	v.snapshot()
	return owed, nil
}

// AccruedRewards returns the holder's total entitlement without settling it.
func (v *Vault) AccruedRewards(holder types.Principal) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	acc := v.shares.Lookup(holder)
	if acc == nil {
		return sdkmath.ZeroInt()
	}
	return v.rewards.AccruedOf(acc, acc.Shares)
}
