package vault

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/rewards"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
)

const (
	assetPool   = types.AssetID("uusdc")
	assetReward = types.AssetID("ureward")

	vaultAcct    = types.Principal("vault:main")
	unitAcct     = types.Principal("strategy:alpha")
	adminAcct    = types.Principal("admin:root")
	agentAcct    = types.Principal("agent:ops")
	guardianAcct = types.Principal("guardian:sec")
	recoveryAcct = types.Principal("emergency:recovery")
	alice        = types.Principal("alice")
	bob          = types.Principal("bob")
)

func newTestVault(t *testing.T, reserveRatioBps uint64, minLiquidity int64) (*Vault, *ledger.InMemoryLedger) {
	t.Helper()
	l := ledger.NewInMemoryLedger(assetPool, assetReward)
	policy := capability.NewStaticPolicy()
	policy.Grant(adminAcct, types.CapabilityAdmin)
	policy.Grant(agentAcct, types.CapabilityAgent)
	policy.Grant(guardianAcct, types.CapabilityGuardian)

	v, err := New(Config{
		Account:         vaultAcct,
		PoolAsset:       assetPool,
		RewardAsset:     assetReward,
		ReserveRatioBps: reserveRatioBps,
		MinLiquidity:    sdkmath.NewInt(minLiquidity),
		Ledger:          l,
		Capabilities:    policy,
	})
	require.NoError(t, err)
	return v, l
}

func addTestStrategy(t *testing.T, v *Vault, l *ledger.InMemoryLedger, reserveRatioPct uint64, minLiquidity int64) *strategy.Unit {
	t.Helper()
	policy := capability.NewStaticPolicy()
	policy.Grant(agentAcct, types.CapabilityAgent)
	policy.Grant(guardianAcct, types.CapabilityGuardian)
	u, err := strategy.NewUnit(strategy.Config{
		Name:               "alpha",
		Account:            unitAcct,
		Vault:              vaultAcct,
		EmergencyRecipient: recoveryAcct,
		SupportedAssets:    []types.AssetID{assetPool},
		ReserveRatioPct:    reserveRatioPct,
		MinLiquidity:       sdkmath.NewInt(minLiquidity),
		RiskLevel:          2,
		Ledger:             l,
		Capabilities:       policy,
	})
	require.NoError(t, err)
	require.NoError(t, v.RegisterStrategy(u))
	return u
}

func fund(t *testing.T, l *ledger.InMemoryLedger, asset types.AssetID, holder types.Principal, amount int64) {
	t.Helper()
	require.NoError(t, l.Mint(asset, holder, sdkmath.NewInt(amount)))
	require.NoError(t, l.Approve(asset, holder, vaultAcct, sdkmath.NewInt(amount)))
}

func TestDepositMintsSharesOneToOne(t *testing.T) {
	v, l := newTestVault(t, 2000, 100)
	fund(t, l, assetPool, alice, 1000)

	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.Equal(t, "1000", v.SharesOf(alice).String())
	require.Equal(t, "1000", v.TotalShares().String())
	require.Equal(t, "1000", v.TotalAssets().String())
	require.Equal(t, "1000", l.BalanceOf(assetPool, vaultAcct).String())
}

func TestDepositWithoutAllowanceLeavesNoTrace(t *testing.T) {
	v, l := newTestVault(t, 2000, 100)
	require.NoError(t, l.Mint(assetPool, alice, sdkmath.NewInt(1000)))

	err := v.Deposit(alice, sdkmath.NewInt(1000))
	require.Error(t, err)
	require.True(t, v.SharesOf(alice).IsZero())
	require.True(t, v.TotalShares().IsZero())
	require.True(t, v.AccruedRewards(alice).IsZero())
}

func TestWithdrawReserveBoundaryWithoutStrategy(t *testing.T) {
	v, l := newTestVault(t, 2000, 100)
	fund(t, l, assetPool, alice, 1000)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))

	// Reserve requirement is max(20% of 1000, 100) = 200; withdrawable 800.
	err := v.Withdraw(alice, sdkmath.NewInt(801))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.Equal(t, "1000", v.SharesOf(alice).String())

	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(800)))
	require.Equal(t, "200", v.SharesOf(alice).String())
	require.Equal(t, "800", l.BalanceOf(assetPool, alice).String())
}

func TestWithdrawableShrinksWithRatioAndFloor(t *testing.T) {
	v, l := newTestVault(t, 2000, 100)
	fund(t, l, assetPool, alice, 1000)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))

	require.NoError(t, v.SetReserveRatio(adminAcct, 5000))
	require.ErrorIs(t, v.Withdraw(alice, sdkmath.NewInt(501)), ErrInsufficientLiquidity)

	require.NoError(t, v.SetMinLiquidity(adminAcct, sdkmath.NewInt(600)))
	require.ErrorIs(t, v.Withdraw(alice, sdkmath.NewInt(401)), ErrInsufficientLiquidity)
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(400)))
}

func TestWithdrawInsufficientShares(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	fund(t, l, assetPool, alice, 500)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(500)))

	require.ErrorIs(t, v.Withdraw(alice, sdkmath.NewInt(501)), ErrInsufficientShares)
	require.ErrorIs(t, v.Withdraw(bob, sdkmath.NewInt(1)), ErrInsufficientShares)
}

func TestWithdrawEscalatesThroughStrategy(t *testing.T) {
	v, l := newTestVault(t, 1000, 0)
	addTestStrategy(t, v, l, 20, 50)
	fund(t, l, assetPool, alice, 1000)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))

	require.NoError(t, v.AllocateToStrategy(agentAcct, "alpha", sdkmath.NewInt(900)))
	require.Equal(t, "100", l.BalanceOf(assetPool, vaultAcct).String())

	// Liquid covers 100 of the 850; the strategy's ordinary path fills 720
	// and emergency liquidity covers the last 30.
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(850)))
	require.Equal(t, "850", l.BalanceOf(assetPool, alice).String())
	require.Equal(t, "150", v.SharesOf(alice).String())
	require.Equal(t, "150", v.TotalAssets().String())
	require.Equal(t, "0", l.BalanceOf(assetPool, vaultAcct).String())
}

func TestWithdrawRollsBackWhenShortfallUnrecoverable(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	addTestStrategy(t, v, l, 20, 50)
	fund(t, l, assetPool, alice, 1000)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.NoError(t, v.AllocateToStrategy(agentAcct, "alpha", sdkmath.NewInt(900)))

	// The guardian drain removes 900 from the pool entirely.
	payout, err := v.EmergencyWithdraw(guardianAcct, "alpha", assetPool)
	require.NoError(t, err)
	require.Equal(t, "900", payout.String())
	require.Equal(t, "100", v.TotalAssets().String())

	// A full redemption can no longer be covered; nothing may change.
	err = v.Withdraw(alice, sdkmath.NewInt(1000))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.Equal(t, "1000", v.SharesOf(alice).String())
	require.Equal(t, "100", l.BalanceOf(assetPool, vaultAcct).String())
	require.True(t, l.BalanceOf(assetPool, alice).IsZero())

	// What remains liquid is still redeemable.
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(100)))
	require.Equal(t, "100", l.BalanceOf(assetPool, alice).String())
}

func TestWithdrawWithoutDefaultStrategyReportsLiquidity(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	fund(t, l, assetPool, alice, 100)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(100)))

	// Shares exist but the pool cannot cover more than it holds.
	require.ErrorIs(t, v.Withdraw(alice, sdkmath.NewInt(101)), ErrInsufficientShares)
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(100)))
}

func TestRewardDistributionAndClaim(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	distributor := types.Principal("distributor")
	fund(t, l, assetPool, alice, 1000)
	fund(t, l, assetPool, bob, 500)
	fund(t, l, assetReward, distributor, 1500)

	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.NoError(t, v.Deposit(bob, sdkmath.NewInt(500)))
	require.NoError(t, v.DistributeRewards(distributor, sdkmath.NewInt(1500)))

	require.Equal(t, "1000", v.AccruedRewards(alice).String())
	require.Equal(t, "500", v.AccruedRewards(bob).String())

	owed, err := v.ClaimRewards(alice)
	require.NoError(t, err)
	require.Equal(t, "1000", owed.String())
	require.Equal(t, "1000", l.BalanceOf(assetReward, alice).String())

	// Claiming again pays nothing.
	owed, err = v.ClaimRewards(alice)
	require.NoError(t, err)
	require.True(t, owed.IsZero())

	// Unknown holders claim zero without error.
	owed, err = v.ClaimRewards(types.Principal("nobody"))
	require.NoError(t, err)
	require.True(t, owed.IsZero())
}

func TestRewardsSurviveShareChanges(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	distributor := types.Principal("distributor")
	fund(t, l, assetPool, alice, 1000)
	fund(t, l, assetReward, distributor, 2000)

	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.NoError(t, v.DistributeRewards(distributor, sdkmath.NewInt(1000)))

	// Withdrawing checkpoints first; the entitlement earned on the old
	// balance is preserved.
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(600)))
	require.Equal(t, "1000", v.AccruedRewards(alice).String())

	// A second distribution accrues against the reduced balance only.
	require.NoError(t, v.DistributeRewards(distributor, sdkmath.NewInt(400)))
	require.Equal(t, "1400", v.AccruedRewards(alice).String())
}

func TestDistributeRequiresOutstandingShares(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	distributor := types.Principal("distributor")
	fund(t, l, assetReward, distributor, 100)

	err := v.DistributeRewards(distributor, sdkmath.NewInt(100))
	require.ErrorIs(t, err, rewards.ErrNoShares)
	// Funds never moved.
	require.Equal(t, "100", l.BalanceOf(assetReward, distributor).String())
}

func TestCapabilityGates(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	addTestStrategy(t, v, l, 20, 50)

	err := v.AllocateToStrategy(alice, "alpha", sdkmath.NewInt(10))
	require.ErrorIs(t, err, capability.ErrUnauthorized)

	_, err = v.WithdrawFromStrategy(adminAcct, "alpha", sdkmath.NewInt(10))
	require.ErrorIs(t, err, capability.ErrUnauthorized)

	require.ErrorIs(t, v.SetReserveRatio(agentAcct, 100), capability.ErrUnauthorized)
	require.ErrorIs(t, v.SetMinLiquidity(guardianAcct, sdkmath.NewInt(1)), capability.ErrUnauthorized)
	require.ErrorIs(t, v.UnpauseStrategy(guardianAcct, "alpha"), capability.ErrUnauthorized)

	_, err = v.EmergencyWithdraw(agentAcct, "alpha", assetPool)
	require.ErrorIs(t, err, capability.ErrUnauthorized)
}

func TestPauseBlocksAgentActions(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	u := addTestStrategy(t, v, l, 20, 50)

	require.NoError(t, v.PauseStrategy(guardianAcct, "alpha"))
	require.True(t, u.Paused())

	_, err := v.ExecuteAgentAction(agentAcct, strategy.SetReserveRatioAction{Pct: 10})
	require.ErrorIs(t, err, ErrStrategyExecutionFailed)
	require.ErrorIs(t, err, strategy.ErrUnitPaused)

	// Allocation rides the unit's deposit path and stops too.
	fund(t, l, assetPool, alice, 100)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(100)))
	require.ErrorIs(t, v.AllocateToStrategy(agentAcct, "alpha", sdkmath.NewInt(50)), strategy.ErrUnitPaused)

	require.NoError(t, v.UnpauseStrategy(adminAcct, "alpha"))
	_, err = v.ExecuteAgentAction(agentAcct, strategy.SetReserveRatioAction{Pct: 10})
	require.NoError(t, err)
}

func TestEmergencyWithdrawShrinksAllocation(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	addTestStrategy(t, v, l, 20, 50)
	fund(t, l, assetPool, alice, 500)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(500)))
	require.NoError(t, v.AllocateToStrategy(agentAcct, "alpha", sdkmath.NewInt(300)))

	payout, err := v.EmergencyWithdraw(guardianAcct, "alpha", assetPool)
	require.NoError(t, err)
	require.Equal(t, "300", payout.String())
	require.Equal(t, "300", l.BalanceOf(assetPool, recoveryAcct).String())
	require.Equal(t, "200", v.TotalAssets().String())

	summary := v.Snapshot()
	require.Equal(t, "0", summary.TotalAllocated)
}

func TestStrategyRegistry(t *testing.T) {
	v, l := newTestVault(t, 0, 0)
	u := addTestStrategy(t, v, l, 20, 50)

	require.ErrorIs(t, v.RegisterStrategy(u), ErrStrategyAlreadyRegistered)
	require.ErrorIs(t, v.SetDefaultStrategy("missing"), ErrStrategyNotFound)
	require.NoError(t, v.SetDefaultStrategy("alpha"))

	err := v.AllocateToStrategy(agentAcct, "missing", sdkmath.NewInt(10))
	require.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestSnapshotTotals(t *testing.T) {
	v, l := newTestVault(t, 1000, 0)
	addTestStrategy(t, v, l, 20, 50)
	fund(t, l, assetPool, alice, 1000)
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.NoError(t, v.AllocateToStrategy(agentAcct, "alpha", sdkmath.NewInt(400)))

	summary := v.Snapshot()
	require.Equal(t, "1000", summary.TotalShares)
	require.Equal(t, "600", summary.LiquidBalance)
	require.Equal(t, "400", summary.TotalAllocated)
	require.Equal(t, "1000", summary.TotalAssets)
	require.Equal(t, "100", summary.ReserveRequired)
	require.Equal(t, 1, summary.HolderCount)
	require.Equal(t, "alpha", summary.DefaultStrategy)
	require.Len(t, summary.Strategies, 1)
}

// memRecorder captures audit writes in memory.
type memRecorder struct {
	receipts  []types.OperationReceipt
	snapshots []types.VaultSnapshot
	params    []types.VaultParameters
	seq       int
	fail      bool
}

func (m *memRecorder) SaveReceipt(receipt types.OperationReceipt) error {
	if m.fail {
		return errRecorderDown
	}
	m.receipts = append(m.receipts, receipt)
	return nil
}

func (m *memRecorder) SaveSnapshot(snapshot types.VaultSnapshot) error {
	if m.fail {
		return errRecorderDown
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *memRecorder) SaveParameters(params types.VaultParameters) error {
	if m.fail {
		return errRecorderDown
	}
	m.params = append(m.params, params)
	return nil
}

func (m *memRecorder) NextOperationSeq() (int, error) {
	if m.fail {
		return 0, errRecorderDown
	}
	m.seq++
	return m.seq, nil
}

var errRecorderDown = errors.New("recorder unavailable")

func newRecordedVault(t *testing.T, rec Recorder) (*Vault, *ledger.InMemoryLedger) {
	t.Helper()
	l := ledger.NewInMemoryLedger(assetPool, assetReward)
	policy := capability.NewStaticPolicy()
	policy.Grant(adminAcct, types.CapabilityAdmin)
	policy.Grant(agentAcct, types.CapabilityAgent)
	policy.Grant(guardianAcct, types.CapabilityGuardian)
	v, err := New(Config{
		Account:      vaultAcct,
		PoolAsset:    assetPool,
		RewardAsset:  assetReward,
		MinLiquidity: sdkmath.ZeroInt(),
		Ledger:       l,
		Capabilities: policy,
		Recorder:     rec,
	})
	require.NoError(t, err)
	return v, l
}

func TestOperationsEmitReceipts(t *testing.T) {
	rec := &memRecorder{}
	v, l := newRecordedVault(t, rec)
	fund(t, l, assetPool, alice, 1000)

	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(1000)))
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(400)))
	// The allowance is exhausted; the failure is recorded too.
	require.Error(t, v.Deposit(alice, sdkmath.NewInt(50)))

	require.Len(t, rec.receipts, 3)
	require.Equal(t, "deposit", rec.receipts[0].Operation)
	require.True(t, rec.receipts[0].Success)
	require.Equal(t, "1000", rec.receipts[0].Actual)
	require.Equal(t, "withdraw", rec.receipts[1].Operation)
	require.True(t, rec.receipts[1].Success)
	require.False(t, rec.receipts[2].Success)
	require.NotEmpty(t, rec.receipts[2].Message)
	for _, receipt := range rec.receipts {
		require.NotEmpty(t, receipt.ReceiptID)
	}

	// One snapshot per successful mutation, with an advancing sequence.
	require.Len(t, rec.snapshots, 2)
	require.Equal(t, 1, rec.snapshots[0].OperationSeq)
	require.Equal(t, 2, rec.snapshots[1].OperationSeq)
	require.Equal(t, "600", rec.snapshots[1].TotalShares)
}

func TestParameterChangesPersistVersions(t *testing.T) {
	rec := &memRecorder{}
	v, _ := newRecordedVault(t, rec)

	require.NoError(t, v.SetReserveRatio(adminAcct, 2500))
	require.NoError(t, v.SetMinLiquidity(adminAcct, sdkmath.NewInt(75)))

	require.Len(t, rec.params, 2)
	require.Equal(t, uint64(2500), rec.params[0].ReserveRatioBps)
	require.Equal(t, "75", rec.params[1].MinLiquidity.String())
}

func TestRecorderFailuresNeverSurface(t *testing.T) {
	rec := &memRecorder{fail: true}
	v, l := newRecordedVault(t, rec)
	fund(t, l, assetPool, alice, 100)

	// The audit trail is write-behind; a dead recorder must not block funds.
	require.NoError(t, v.Deposit(alice, sdkmath.NewInt(100)))
	require.NoError(t, v.Withdraw(alice, sdkmath.NewInt(100)))
	require.NoError(t, v.SetReserveRatio(adminAcct, 100))
}
