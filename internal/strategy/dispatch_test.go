package strategy

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/ledger"
)

func TestExecuteActionAgentGated(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	_, err := u.ExecuteAction(strangerAcct, SetReserveRatioAction{Pct: 10})
	require.ErrorIs(t, err, capability.ErrUnauthorized)
	_, err = u.ExecuteAction(guardianAcct, SetReserveRatioAction{Pct: 10})
	require.ErrorIs(t, err, capability.ErrUnauthorized)
}

func TestExecuteActionRejectedWhilePaused(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Pause(guardianAcct))
	_, err := u.ExecuteAction(agentAcct, SetReserveRatioAction{Pct: 10})
	require.ErrorIs(t, err, ErrUnitPaused)
}

func TestNilActionIsUnknown(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	ok, reason := u.ValidateAction(nil)
	require.False(t, ok)
	require.Equal(t, "unknown action variant", reason)

	_, err := u.ExecuteAction(agentAcct, nil)
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDepositActionMovesIdleToYield(t *testing.T) {
	u, _, yield := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Deposit(vaultAcct, assetPool, sdkmath.NewInt(500)))

	result, err := u.ExecuteAction(agentAcct, DepositAction{Asset: assetPool, Amount: sdkmath.NewInt(200)})
	require.NoError(t, err)
	require.Equal(t, "200", result.Amount.String())
	require.Equal(t, "300", u.IdleBalance(assetPool).String())
	require.Equal(t, "200", yield.Balance(assetPool).String())
}

func TestDepositActionValidatesIdleBalance(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Deposit(vaultAcct, assetPool, sdkmath.NewInt(100)))

	ok, reason := u.ValidateAction(DepositAction{Asset: assetPool, Amount: sdkmath.NewInt(200)})
	require.False(t, ok)
	require.Equal(t, "amount exceeds idle balance", reason)

	_, err := u.ExecuteAction(agentAcct, DepositAction{Asset: assetPool, Amount: sdkmath.NewInt(200)})
	require.ErrorIs(t, err, ErrActionRejected)
	require.Equal(t, "100", u.IdleBalance(assetPool).String())
}

func TestWithdrawActionPartialFill(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Deposit(vaultAcct, assetPool, sdkmath.NewInt(500)))
	_, err := u.ExecuteAction(agentAcct, DepositAction{Asset: assetPool, Amount: sdkmath.NewInt(300)})
	require.NoError(t, err)

	// The yield position holds 300; asking for more fills what exists.
	result, err := u.ExecuteAction(agentAcct, WithdrawAction{Asset: assetPool, Amount: sdkmath.NewInt(500)})
	require.NoError(t, err)
	require.Equal(t, "300", result.Amount.String())
	require.Equal(t, "500", u.IdleBalance(assetPool).String())
}

func TestSetReserveRatioActionCeiling(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)

	ok, reason := u.ValidateAction(SetReserveRatioAction{Pct: MaxReserveRatioPct + 1})
	require.False(t, ok)
	require.NotEmpty(t, reason)
	_, err := u.ExecuteAction(agentAcct, SetReserveRatioAction{Pct: MaxReserveRatioPct + 1})
	require.ErrorIs(t, err, ErrActionRejected)

	_, err = u.ExecuteAction(agentAcct, SetReserveRatioAction{Pct: MaxReserveRatioPct})
	require.NoError(t, err)
	require.Equal(t, uint64(MaxReserveRatioPct), u.Snapshot().ReserveRatioPct)
}

func TestSetMinLiquidityActionRequiresPositive(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)

	_, err := u.ExecuteAction(agentAcct, SetMinLiquidityAction{Amount: sdkmath.ZeroInt()})
	require.ErrorIs(t, err, ErrActionRejected)

	_, err = u.ExecuteAction(agentAcct, SetMinLiquidityAction{Amount: sdkmath.NewInt(75)})
	require.NoError(t, err)
	require.Equal(t, "75", u.Snapshot().MinLiquidity)
}

func TestClaimYieldAction(t *testing.T) {
	u, _, yield := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Deposit(vaultAcct, assetPool, sdkmath.NewInt(500)))
	require.NoError(t, yield.AccrueRewards(assetPool, sdkmath.NewInt(40)))

	result, err := u.ExecuteAction(agentAcct, ClaimYieldAction{Asset: assetPool})
	require.NoError(t, err)
	require.Equal(t, "40", result.Amount.String())
	require.Equal(t, "540", u.IdleBalance(assetPool).String())

	// Nothing pending the second time.
	result, err = u.ExecuteAction(agentAcct, ClaimYieldAction{Asset: assetPool})
	require.NoError(t, err)
	require.True(t, result.Amount.IsZero())
}

func TestValidateWithoutYieldSource(t *testing.T) {
	l := ledger.NewInMemoryLedger(assetPool)
	cfg := testConfig(l, nil, 20, 50)
	cfg.Name = "bare"
	bare, err := NewUnit(cfg)
	require.NoError(t, err)

	ok, reason := bare.ValidateAction(DepositAction{Asset: assetPool, Amount: sdkmath.NewInt(10)})
	require.False(t, ok)
	require.Equal(t, "no yield source configured", reason)

	// Parameter actions need no yield source.
	ok, _ = bare.ValidateAction(SetReserveRatioAction{Pct: 10})
	require.True(t, ok)
}

func TestSnapshotView(t *testing.T) {
	u, _, _ := newTestUnit(t, 20, 50, 900)
	require.NoError(t, u.Deposit(vaultAcct, assetPool, sdkmath.NewInt(250)))

	view := u.Snapshot()
	require.Equal(t, "test", view.Name)
	require.False(t, view.Paused)
	require.Equal(t, uint64(20), view.ReserveRatioPct)
	require.Equal(t, "50", view.MinLiquidity)
	require.Equal(t, 2, view.RiskLevel)
	require.Equal(t, "250", view.IdleBalances[string(assetPool)])
}
