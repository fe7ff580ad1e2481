/*

The liquidity controller owns the reserve arithmetic and the allocation
bookkeeping: how much of the pooled asset must stay liquid, how much may be
pushed into a strategy, and how a withdrawal shortfall escalates from the
strategy's ordinary withdrawal path to its emergency liquidity path.

It carries no lock of its own; every call happens under the owning vault's
writer lock.

*/

package liquidity

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
	"github.com/openvault-labs/pcv/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidRatio        = errors.New("reserve ratio must not exceed 10000 bps")
	ErrNegativeFloor       = errors.New("minimum liquidity must not be negative")
	ErrInsufficientReserve = errors.New("allocation would break the reserve requirement")
)

// Controller computes reserve requirements and tracks assets allocated out
// to strategy units.
type Controller struct {
	logger zerolog.Logger

	asset        types.AssetID
	vaultAccount types.Principal
	ledger       ledger.AssetLedger

	reserveRatioBps uint64
	minLiquidity    sdkmath.Int
	totalAllocated  sdkmath.Int
}

// NewController creates a controller for the vault's pooled asset.
func NewController(asset types.AssetID, vaultAccount types.Principal, assetLedger ledger.AssetLedger, reserveRatioBps uint64, minLiquidity sdkmath.Int) (*Controller, error) {
	if reserveRatioBps > utils.BpsDenominator {
		return nil, ErrInvalidRatio
	}
	if minLiquidity.IsNil() || minLiquidity.IsNegative() {
		return nil, ErrNegativeFloor
	}
	return &Controller{
		logger:          logger.GetForComponent("liquidity"),
		asset:           asset,
		vaultAccount:    vaultAccount,
		ledger:          assetLedger,
		reserveRatioBps: reserveRatioBps,
		minLiquidity:    minLiquidity,
		totalAllocated:  sdkmath.ZeroInt(),
	}, nil
}

// LiquidBalance is the pooled asset immediately available on the vault account.
func (c *Controller) LiquidBalance() sdkmath.Int {
	return c.ledger.BalanceOf(c.asset, c.vaultAccount)
}

// TotalAllocated is the pooled asset currently out in strategies.
func (c *Controller) TotalAllocated() sdkmath.Int {
	return c.totalAllocated
}

// TotalAssets is the pool-wide asset total: liquid balance plus allocations.
func (c *Controller) TotalAssets() sdkmath.Int {
	return c.LiquidBalance().Add(c.totalAllocated)
}

// ReserveRatioBps returns the current reserve ratio.
func (c *Controller) ReserveRatioBps() uint64 {
	return c.reserveRatioBps
}

// MinLiquidity returns the current absolute liquidity floor.
func (c *Controller) MinLiquidity() sdkmath.Int {
	return c.minLiquidity
}

// ReserveRequired is the liquid amount that must remain in the vault:
// max(totalAssets * ratio / 10000, minLiquidity). The tighter constraint binds.
func (c *Controller) ReserveRequired() sdkmath.Int {
	return utils.MaxInt(utils.BpsOf(c.TotalAssets(), c.reserveRatioBps), c.minLiquidity)
}

// MaxAllocatable is the liquid amount above the reserve requirement,
// clamped at zero.
func (c *Controller) MaxAllocatable() sdkmath.Int {
	liquid := c.LiquidBalance()
	required := c.ReserveRequired()
	if liquid.LTE(required) {
		return sdkmath.ZeroInt()
	}
	return liquid.Sub(required)
}

// SetReserveRatioBps updates the reserve ratio.
func (c *Controller) SetReserveRatioBps(bps uint64) error {
	if bps > utils.BpsDenominator {
		return ErrInvalidRatio
	}
	c.reserveRatioBps = bps
	c.logger.Info().Uint64("reserveRatioBps", bps).Msg("Reserve ratio updated")
	return nil
}

// SetMinLiquidity updates the absolute liquidity floor. Zero disables the
// floor at the vault level; the per-strategy floor stays strict.
func (c *Controller) SetMinLiquidity(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrNegativeFloor
	}
	c.minLiquidity = amount
	c.logger.Info().Str("minLiquidity", amount.String()).Msg("Minimum liquidity updated")
	return nil
}

// Allocate pushes amount of the pooled asset into the strategy unit. The
// amount must fit under MaxAllocatable or the allocation is refused outright.
func (c *Controller) Allocate(unit *strategy.Unit, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GT(c.MaxAllocatable()) {
		return ErrInsufficientReserve
	}
	if err := unit.Deposit(c.vaultAccount, c.asset, amount); err != nil {
		return err
	}
	c.totalAllocated = c.totalAllocated.Add(amount)
	c.logger.Info().
		Str("unit", unit.Name()).
		Str("amount", amount.String()).
		Str("totalAllocated", c.totalAllocated.String()).
		Msg("Allocation completed")
	return nil
}

// Deallocate asks the unit for amount back through its ordinary withdrawal
// path. The unit may return less than requested under its own reserve
// policy; the returned amount is authoritative and totalAllocated shrinks by
// exactly that amount, saturating at zero.
func (c *Controller) Deallocate(unit *strategy.Unit, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}
	actual, err := unit.Withdraw(c.vaultAccount, c.asset, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if actual.IsPositive() {
		c.totalAllocated = utils.SaturatingSub(c.totalAllocated, actual, "liquidity.Deallocate")
	}
	return actual, nil
}

// CoverShortfall escalates a withdrawal shortfall against the unit: first
// the ordinary withdrawal path, then, if still short, the emergency
// liquidity path that bypasses the unit's reserve policy. Returns the total
// amount recovered; the caller decides whether a remaining gap is fatal.
func (c *Controller) CoverShortfall(unit *strategy.Unit, shortfall sdkmath.Int) (sdkmath.Int, error) {
	if shortfall.IsNil() || !shortfall.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}

	recovered, err := c.Deallocate(unit, shortfall)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if recovered.GTE(shortfall) {
		return recovered, nil
	}

	remaining := shortfall.Sub(recovered)
	c.logger.Warn().
		Str("unit", unit.Name()).
		Str("shortfall", shortfall.String()).
		Str("recovered", recovered.String()).
		Str("remaining", remaining.String()).
		Msg("Ordinary strategy withdrawal short, escalating to emergency liquidity")

	emergency, err := unit.ProvideEmergencyLiquidity(c.vaultAccount, c.asset, remaining)
	if err != nil {
		return recovered, err
	}
	if emergency.IsPositive() {
		c.totalAllocated = utils.SaturatingSub(c.totalAllocated, emergency, "liquidity.CoverShortfall")
		recovered = recovered.Add(emergency)
	}
	return recovered, nil
}

// RefundAllocation reverses a recovery made during a failed operation: the
// funds go back to the unit and totalAllocated grows again. Used only by the
// vault's rollback path.
func (c *Controller) RefundAllocation(unit *strategy.Unit, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := unit.Refund(c.vaultAccount, c.asset, amount); err != nil {
		return err
	}
	c.totalAllocated = c.totalAllocated.Add(amount)
	return nil
}

// ReduceAllocated shrinks the allocation bookkeeping without moving funds.
// Used when a guardian emergency withdrawal drains a unit to an external
// recipient: those assets have left the pool entirely.
func (c *Controller) ReduceAllocated(amount sdkmath.Int, site string) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	c.totalAllocated = utils.SaturatingSub(c.totalAllocated, amount, site)
}
