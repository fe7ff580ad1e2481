package vault

import (
	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
)

// Summary is a consistent read-only snapshot of the whole vault for the web
// and audit surfaces.
type Summary struct {
	PoolAsset                string          `json:"pool_asset"`
	RewardAsset              string          `json:"reward_asset"`
	TotalShares              string          `json:"total_shares"`
	LiquidBalance            string          `json:"liquid_balance"`
	TotalAllocated           string          `json:"total_allocated"`
	TotalAssets              string          `json:"total_assets"`
	ReserveRatioBps          uint64          `json:"reserve_ratio_bps"`
	MinLiquidity             string          `json:"min_liquidity"`
	ReserveRequired          string          `json:"reserve_required"`
	MaxAllocatable           string          `json:"max_allocatable"`
	CumulativeRewardPerShare string          `json:"cumulative_reward_per_share"`
	TotalDistributed         string          `json:"total_distributed"`
	HolderCount              int             `json:"holder_count"`
	DefaultStrategy          string          `json:"default_strategy,omitempty"`
	Strategies               []strategy.View `json:"strategies"`
}

// Snapshot returns the vault-wide summary under the reader lock.
func (v *Vault) Snapshot() Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()

	summary := Summary{
		PoolAsset:                string(v.poolAsset),
		RewardAsset:              string(v.rewardAsset),
		TotalShares:              v.shares.TotalShares().String(),
		LiquidBalance:            v.liquidity.LiquidBalance().String(),
		TotalAllocated:           v.liquidity.TotalAllocated().String(),
		TotalAssets:              v.liquidity.TotalAssets().String(),
		ReserveRatioBps:          v.liquidity.ReserveRatioBps(),
		MinLiquidity:             v.liquidity.MinLiquidity().String(),
		ReserveRequired:          v.liquidity.ReserveRequired().String(),
		MaxAllocatable:           v.liquidity.MaxAllocatable().String(),
		CumulativeRewardPerShare: v.rewards.CumulativeRewardPerShare().String(),
		TotalDistributed:         v.rewards.TotalDistributed().String(),
		HolderCount:              len(v.shares.Holders()),
		DefaultStrategy:          v.defaultStrategy,
	}
	for _, unit := range v.strategies {
		summary.Strategies = append(summary.Strategies, unit.Snapshot())
	}
	return summary
}

// TotalShares returns the outstanding share supply.
func (v *Vault) TotalShares() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.shares.TotalShares()
}

// SharesOf returns the holder's share balance.
func (v *Vault) SharesOf(holder types.Principal) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.shares.SharesOf(holder)
}

// TotalAssets returns liquid balance plus strategy allocations.
func (v *Vault) TotalAssets() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.liquidity.TotalAssets()
}

// MaxAllocatable returns the amount currently available for allocation.
func (v *Vault) MaxAllocatable() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.liquidity.MaxAllocatable()
}

// ReserveRequired returns the current reserve requirement.
func (v *Vault) ReserveRequired() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.liquidity.ReserveRequired()
}
