/*

Core identifier and account types shared across the vault system.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Principal identifies an account that can hold shares or capabilities.
type Principal string

// AssetID identifies a fungible asset denomination, e.g. "uusdc".
type AssetID string

// Capability names understood by the capability store.
type Capability string

const (
	// CapabilityAdmin may change vault-level reserve parameters and unpause units.
	CapabilityAdmin Capability = "admin"
	// CapabilityAgent may drive strategy actions and allocation.
	CapabilityAgent Capability = "agent"
	// CapabilityGuardian may pause units and trigger emergency withdrawal.
	CapabilityGuardian Capability = "guardian"
)

// HolderAccount tracks a single depositor's shares and reward settlement state.
// Accounts are created on first deposit and never destroyed; a zero-share
// account must keep its checkpoint so later deposits settle correctly.
type HolderAccount struct {
	Shares sdkmath.Int `json:"shares"`
	// RewardCheckpoint is the global accumulator value last seen by this
	// holder, scaled by rewards.Precision.
	RewardCheckpoint sdkmath.Int `json:"reward_checkpoint"`
	// StoredRewards are settled but unclaimed rewards.
	StoredRewards sdkmath.Int `json:"stored_rewards"`
}

// NewHolderAccount returns an account with all amounts zeroed.
func NewHolderAccount() *HolderAccount {
	return &HolderAccount{
		Shares:           sdkmath.ZeroInt(),
		RewardCheckpoint: sdkmath.ZeroInt(),
		StoredRewards:    sdkmath.ZeroInt(),
	}
}

// VaultParameters are the admin-tunable liquidity knobs. A new version is
// persisted whenever an admin changes one of them.
type VaultParameters struct {
	// ReserveRatioBps is the minimum liquid fraction of total assets, in
	// basis points (0-10000).
	ReserveRatioBps uint64 `json:"reserve_ratio_bps"`
	// MinLiquidity is an absolute liquidity floor applied in addition to the
	// reserve ratio; the tighter constraint binds.
	MinLiquidity sdkmath.Int `json:"min_liquidity"`
}

// OperationReceipt is the audit record written after every public mutating
// operation on the vault.
type OperationReceipt struct {
	ReceiptID string    `json:"receipt_id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Principal Principal `json:"principal"`
	Strategy  string    `json:"strategy,omitempty"`
	Requested string    `json:"requested_amount"`
	Actual    string    `json:"actual_amount"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
}

// VaultSnapshot captures vault-wide totals after a mutating operation.
type VaultSnapshot struct {
	SnapshotID    int64     `json:"snapshot_id,omitempty"`
	OperationSeq  int       `json:"operation_seq"`
	Timestamp     time.Time `json:"timestamp"`
	TotalShares   string    `json:"total_shares"`
	LiquidBalance string    `json:"liquid_balance"`
	TotalAllocated string   `json:"total_allocated"`
	// CumulativeRewardPerShare is the reward accumulator scaled by
	// rewards.Precision, rendered as a decimal string.
	CumulativeRewardPerShare string `json:"cumulative_reward_per_share"`
	TotalDistributed         string `json:"total_distributed"`
}
