package liquidity

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
)

const (
	assetPool = types.AssetID("uusdc")

	vaultAcct    = types.Principal("vault:main")
	unitAcct     = types.Principal("strategy:alpha")
	guardianAcct = types.Principal("guardian:sec")
	recoveryAcct = types.Principal("emergency:recovery")
)

func newTestController(t *testing.T, reserveRatioBps uint64, minLiquidity, vaultFunds int64) (*Controller, *ledger.InMemoryLedger) {
	t.Helper()
	l := ledger.NewInMemoryLedger(assetPool)
	require.NoError(t, l.Mint(assetPool, vaultAcct, sdkmath.NewInt(vaultFunds)))
	c, err := NewController(assetPool, vaultAcct, l, reserveRatioBps, sdkmath.NewInt(minLiquidity))
	require.NoError(t, err)
	return c, l
}

func newTestUnit(t *testing.T, l ledger.AssetLedger, reserveRatioPct uint64, minLiquidity int64) *strategy.Unit {
	t.Helper()
	policy := capability.NewStaticPolicy()
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
	return u
}

func TestReserveRequiredRatioBinds(t *testing.T) {
	// 1000 in the pool, 20% ratio, floor 100: the ratio binds.
	c, _ := newTestController(t, 2000, 100, 1000)
	require.Equal(t, "200", c.ReserveRequired().String())
	require.Equal(t, "800", c.MaxAllocatable().String())
}

func TestReserveRequiredAfterRatioRaise(t *testing.T) {
	c, _ := newTestController(t, 2000, 100, 1000)
	require.NoError(t, c.SetReserveRatioBps(5000))
	require.Equal(t, "500", c.ReserveRequired().String())
	require.Equal(t, "500", c.MaxAllocatable().String())
}

func TestReserveRequiredFloorBinds(t *testing.T) {
	// The 600 floor overtakes the 50% ratio.
	c, _ := newTestController(t, 5000, 100, 1000)
	require.NoError(t, c.SetMinLiquidity(sdkmath.NewInt(600)))
	require.Equal(t, "600", c.ReserveRequired().String())
	require.Equal(t, "400", c.MaxAllocatable().String())
}

func TestParameterValidation(t *testing.T) {
	c, _ := newTestController(t, 2000, 100, 1000)
	require.ErrorIs(t, c.SetReserveRatioBps(10001), ErrInvalidRatio)
	require.ErrorIs(t, c.SetMinLiquidity(sdkmath.NewInt(-1)), ErrNegativeFloor)

	// Zero floor is allowed at the vault level.
	require.NoError(t, c.SetMinLiquidity(sdkmath.ZeroInt()))

	_, err := NewController(assetPool, vaultAcct, ledger.NewInMemoryLedger(assetPool), 10001, sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInvalidRatio)
}

func TestAllocateRespectsReserve(t *testing.T) {
	c, l := newTestController(t, 2000, 100, 1000)
	u := newTestUnit(t, l, 20, 50)

	err := c.Allocate(u, sdkmath.NewInt(801))
	require.ErrorIs(t, err, ErrInsufficientReserve)

	require.NoError(t, c.Allocate(u, sdkmath.NewInt(800)))
	require.Equal(t, "800", c.TotalAllocated().String())
	require.Equal(t, "200", c.LiquidBalance().String())
	// Allocation moves assets, it does not destroy them.
	require.Equal(t, "1000", c.TotalAssets().String())
	require.Equal(t, "0", c.MaxAllocatable().String())
}

func TestDeallocatePartialFill(t *testing.T) {
	c, l := newTestController(t, 1000, 0, 1000)
	u := newTestUnit(t, l, 20, 50)
	require.NoError(t, c.Allocate(u, sdkmath.NewInt(900)))

	// The unit's own reserve keeps max(20% of 900, 50) = 180 back.
	actual, err := c.Deallocate(u, sdkmath.NewInt(900))
	require.NoError(t, err)
	require.Equal(t, "720", actual.String())
	require.Equal(t, "180", c.TotalAllocated().String())
	require.Equal(t, "1000", c.TotalAssets().String())
}

func TestCoverShortfallEscalates(t *testing.T) {
	c, l := newTestController(t, 1000, 0, 1000)
	u := newTestUnit(t, l, 20, 50)
	require.NoError(t, c.Allocate(u, sdkmath.NewInt(900)))

	// Ordinary withdrawal can fill 720 of the 750; emergency liquidity
	// covers the remaining 30.
	recovered, err := c.CoverShortfall(u, sdkmath.NewInt(750))
	require.NoError(t, err)
	require.Equal(t, "750", recovered.String())
	require.Equal(t, "150", c.TotalAllocated().String())
	require.Equal(t, "850", c.LiquidBalance().String())
}

func TestCoverShortfallStopsAtUnitBalance(t *testing.T) {
	c, l := newTestController(t, 0, 0, 1000)
	u := newTestUnit(t, l, 20, 50)
	require.NoError(t, c.Allocate(u, sdkmath.NewInt(300)))

	// The unit only holds 300; the caller sees the gap in the return value.
	recovered, err := c.CoverShortfall(u, sdkmath.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, "300", recovered.String())
	require.Equal(t, "0", c.TotalAllocated().String())
}

func TestRefundAllocation(t *testing.T) {
	c, l := newTestController(t, 0, 0, 1000)
	u := newTestUnit(t, l, 20, 50)
	require.NoError(t, c.Allocate(u, sdkmath.NewInt(500)))

	recovered, err := c.CoverShortfall(u, sdkmath.NewInt(400))
	require.NoError(t, err)
	require.Equal(t, "400", recovered.String())

	require.NoError(t, c.RefundAllocation(u, recovered))
	require.Equal(t, "500", c.TotalAllocated().String())
	require.Equal(t, "500", u.IdleBalance(assetPool).String())
}

func TestReduceAllocatedSaturates(t *testing.T) {
	c, l := newTestController(t, 0, 0, 1000)
	u := newTestUnit(t, l, 20, 50)
	require.NoError(t, c.Allocate(u, sdkmath.NewInt(200)))

	c.ReduceAllocated(sdkmath.NewInt(500), "test")
	require.True(t, c.TotalAllocated().IsZero())
}
