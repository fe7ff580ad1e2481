package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
)

// AllocateToStrategy pushes amount of the pooled asset into the named
// strategy. Agent-gated; refused outright when the amount would break the
// reserve requirement.
func (v *Vault) AllocateToStrategy(caller types.Principal, strategyKey string, amount sdkmath.Int) error {
	if err := capability.Require(v.caps, caller, types.CapabilityAgent); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	unit, err := v.strategyByName(strategyKey)
	if err != nil {
		return err
	}
	if err := v.liquidity.Allocate(unit, amount); err != nil {
		v.record("allocate", caller, strategyKey, amount, sdkmath.ZeroInt(), false, err.Error())
		return err
	}
	v.record("allocate", caller, strategyKey, amount, amount, true, "")
	v.snapshot()
	return nil
}

// WithdrawFromStrategy pulls up to amount back from the named strategy
// through its ordinary withdrawal path. Agent-gated. The strategy may fill
// partially under its own reserve policy; the returned amount is
// authoritative.
func (v *Vault) WithdrawFromStrategy(caller types.Principal, strategyKey string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := capability.Require(v.caps, caller, types.CapabilityAgent); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	unit, err := v.strategyByName(strategyKey)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	actual, err := v.liquidity.Deallocate(unit, amount)
	if err != nil {
		v.record("deallocate", caller, strategyKey, amount, sdkmath.ZeroInt(), false, err.Error())
		return sdkmath.ZeroInt(), err
	}
	v.record("deallocate", caller, strategyKey, amount, actual, true, "")
	v.snapshot()
	return actual, nil
}

// ExecuteAgentAction dispatches a typed action to the default strategy on
// behalf of the operator. A dispatch failure surfaces as a hard
// ErrStrategyExecutionFailed; it is never swallowed.
func (v *Vault) ExecuteAgentAction(caller types.Principal, action strategy.Action) (strategy.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defaultStrategy == "" {
		return strategy.Result{}, ErrNoDefaultStrategy
	}
	unit := v.strategies[v.defaultStrategy]

	result, err := unit.ExecuteAction(caller, action)
	if err != nil {
		v.record("agent_action", caller, v.defaultStrategy, sdkmath.ZeroInt(), sdkmath.ZeroInt(), false, err.Error())
		return strategy.Result{}, fmt.Errorf("%w: %w", ErrStrategyExecutionFailed, err)
	}
	v.record("agent_action", caller, v.defaultStrategy, result.Amount, result.Amount, true, result.Action)
	v.snapshot()
	return result, nil
}

// SetReserveRatio updates the vault's reserve ratio. Admin-gated; the new
// parameter set is persisted as a fresh version.
func (v *Vault) SetReserveRatio(caller types.Principal, bps uint64) error {
	if err := capability.Require(v.caps, caller, types.CapabilityAdmin); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.liquidity.SetReserveRatioBps(bps); err != nil {
		return err
	}
	v.persistParameters()
	return nil
}

// SetMinLiquidity updates the vault's absolute liquidity floor. Admin-gated.
func (v *Vault) SetMinLiquidity(caller types.Principal, amount sdkmath.Int) error {
	if err := capability.Require(v.caps, caller, types.CapabilityAdmin); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.liquidity.SetMinLiquidity(amount); err != nil {
		return err
	}
	v.persistParameters()
	return nil
}

// persistParameters writes the active parameter set as a new version.
// Requires v.mu to be held.
func (v *Vault) persistParameters() {
	if v.recorder == nil {
		return
	}
	params := types.VaultParameters{
		ReserveRatioBps: v.liquidity.ReserveRatioBps(),
		MinLiquidity:    v.liquidity.MinLiquidity(),
	}
	if err := v.recorder.SaveParameters(params); err != nil {
		v.logger.Error().Err(err).Msg("Failed to persist vault parameters")
	}
}

// EmergencyWithdraw drains the named strategy's tracked balance of asset to
// its emergency recipient. Guardian-gated at the unit. When the drained
// asset is the pooled asset, the allocation bookkeeping shrinks by the
// payout: those funds have left the pool.
func (v *Vault) EmergencyWithdraw(caller types.Principal, strategyKey string, asset types.AssetID) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	unit, err := v.strategyByName(strategyKey)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payout, err := unit.EmergencyWithdraw(caller, asset)
	if err != nil {
		v.record("emergency_withdraw", caller, strategyKey, sdkmath.ZeroInt(), sdkmath.ZeroInt(), false, err.Error())
		return sdkmath.ZeroInt(), err
	}
	if asset == v.poolAsset {
		v.liquidity.ReduceAllocated(payout, "vault.EmergencyWithdraw")
	}
	v.record("emergency_withdraw", caller, strategyKey, payout, payout, true, "")
	v.snapshot()
	return payout, nil
}

// PauseStrategy halts the named strategy. Guardian-gated at the unit.
func (v *Vault) PauseStrategy(caller types.Principal, strategyKey string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	unit, err := v.strategyByName(strategyKey)
	if err != nil {
		return err
	}
	return unit.Pause(caller)
}

// UnpauseStrategy resumes the named strategy. Admin-gated at the vault
// boundary; the unit itself only accepts the resume from its owning vault.
func (v *Vault) UnpauseStrategy(caller types.Principal, strategyKey string) error {
	if err := capability.Require(v.caps, caller, types.CapabilityAdmin); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	unit, err := v.strategyByName(strategyKey)
	if err != nil {
		return err
	}
	return unit.Unpause(v.account)
}
