package strategy

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/types"
	"github.com/openvault-labs/pcv/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig    = errors.New("strategy unit configuration is invalid")
	ErrNotVault         = errors.New("caller is not the owning vault")
	ErrUnitPaused       = errors.New("strategy unit is paused")
	ErrUnsupportedAsset = errors.New("asset is not supported by this unit")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrRatioTooHigh     = errors.New("reserve ratio exceeds the allowed ceiling")
	ErrZeroMinLiquidity = errors.New("minimum liquidity must be positive")
	ErrInvalidRiskLevel = errors.New("risk level must be between 1 and 5")
	ErrActionRejected   = errors.New("action failed validation")
	ErrUnknownAction    = errors.New("unknown action variant")
)

// MaxReserveRatioPct is the ceiling for a unit's reserve ratio.
const MaxReserveRatioPct = 50

// Config describes a strategy unit at construction time.
type Config struct {
	// Name is the registry key the vault knows this unit by.
	Name string
	// Account is the unit's own principal on the asset ledger.
	Account types.Principal
	// Vault is the only principal allowed on the direct fund paths.
	Vault types.Principal
	// EmergencyRecipient receives funds on guardian emergency withdrawal.
	EmergencyRecipient types.Principal
	// SupportedAssets the unit will accept.
	SupportedAssets []types.AssetID
	// ReserveRatioPct of the idle balance kept back from ordinary withdrawals (0-50).
	ReserveRatioPct uint64
	// MinLiquidity is the absolute idle floor; must be positive.
	MinLiquidity sdkmath.Int
	// RiskLevel classifies the unit from 1 (lowest) to 5.
	RiskLevel int

	Ledger ledger.AssetLedger
	// Yield is the external yield protocol adapter; optional.
	Yield YieldSource
	// Capabilities gates guardian and agent operations.
	Capabilities capability.Checker
}

// Unit is one allocation target. It tracks its own idle balances, applies
// its own reserve policy to ordinary withdrawals, and exposes the typed
// action-dispatch surface to the operator role.
//
// The mutex serializes every state-touching entry point, so no two actions
// (or a direct call and an action) interleave against the same unit.
type Unit struct {
	mu     sync.Mutex
	logger zerolog.Logger

	name               string
	account            types.Principal
	vault              types.Principal
	emergencyRecipient types.Principal
	supported          map[types.AssetID]bool
	balances           map[types.AssetID]sdkmath.Int
	reserveRatioPct    uint64
	minLiquidity       sdkmath.Int
	riskLevel          int
	paused             bool

	ledger ledger.AssetLedger
	yield  YieldSource
	caps   capability.Checker
}

// NewUnit creates a strategy unit with comprehensive validation.
func NewUnit(cfg Config) (*Unit, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if cfg.Account == "" || cfg.Vault == "" || cfg.EmergencyRecipient == "" {
		return nil, fmt.Errorf("%w: account, vault, and emergency recipient are required", ErrInvalidConfig)
	}
	if len(cfg.SupportedAssets) == 0 {
		return nil, fmt.Errorf("%w: at least one supported asset is required", ErrInvalidConfig)
	}
	if cfg.ReserveRatioPct > MaxReserveRatioPct {
		return nil, ErrRatioTooHigh
	}
	if cfg.MinLiquidity.IsNil() || !cfg.MinLiquidity.IsPositive() {
		return nil, ErrZeroMinLiquidity
	}
	if cfg.RiskLevel < 1 || cfg.RiskLevel > 5 {
		return nil, ErrInvalidRiskLevel
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: asset ledger is required", ErrInvalidConfig)
	}
	if cfg.Capabilities == nil {
		return nil, fmt.Errorf("%w: capability checker is required", ErrInvalidConfig)
	}

	supported := make(map[types.AssetID]bool, len(cfg.SupportedAssets))
	balances := make(map[types.AssetID]sdkmath.Int, len(cfg.SupportedAssets))
	for _, asset := range cfg.SupportedAssets {
		if asset == "" {
			return nil, fmt.Errorf("%w: empty asset id", ErrInvalidConfig)
		}
		supported[asset] = true
		balances[asset] = sdkmath.ZeroInt()
	}

	u := &Unit{
		logger:             logger.GetForComponent("strategy_unit").With().Str("unit", cfg.Name).Logger(),
		name:               cfg.Name,
		account:            cfg.Account,
		vault:              cfg.Vault,
		emergencyRecipient: cfg.EmergencyRecipient,
		supported:          supported,
		balances:           balances,
		reserveRatioPct:    cfg.ReserveRatioPct,
		minLiquidity:       cfg.MinLiquidity,
		riskLevel:          cfg.RiskLevel,
		ledger:             cfg.Ledger,
		yield:              cfg.Yield,
		caps:               cfg.Capabilities,
	}
	u.logger.Info().
		Uint64("reserveRatioPct", u.reserveRatioPct).
		Str("minLiquidity", u.minLiquidity.String()).
		Int("riskLevel", u.riskLevel).
		Msg("Strategy unit initialized")
	return u, nil
}

// Name returns the unit's registry key.
func (u *Unit) Name() string { return u.name }

// Account returns the unit's ledger principal.
func (u *Unit) Account() types.Principal { return u.account }

// Deposit credits amount of asset to the unit's idle balance, pulling the
// funds from the vault's ledger account. Vault-only; blocked while paused.
func (u *Unit) Deposit(caller types.Principal, asset types.AssetID, amount sdkmath.Int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if caller != u.vault {
		return ErrNotVault
	}
	if u.paused {
		return ErrUnitPaused
	}
	if !u.supported[asset] {
		return ErrUnsupportedAsset
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := u.ledger.Transfer(asset, u.vault, u.account, amount); err != nil {
		return err
	}
	u.balances[asset] = u.balanceOf(asset).Add(amount)
	u.logger.Debug().Str("asset", string(asset)).Str("amount", amount.String()).Msg("Deposit accepted")
	return nil
}

// Withdraw returns up to the requested amount of asset to the vault, capped
// by the unit's own reserve policy. The returned amount is authoritative:
// the call never fails for requesting too much, it fills what the reserve
// policy allows. Available while paused.
func (u *Unit) Withdraw(caller types.Principal, asset types.AssetID, requested sdkmath.Int) (sdkmath.Int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if caller != u.vault {
		return sdkmath.ZeroInt(), ErrNotVault
	}
	if !u.supported[asset] {
		return sdkmath.ZeroInt(), ErrUnsupportedAsset
	}
	if requested.IsNil() || !requested.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}

	actual := utils.MinInt(requested, u.withdrawableOf(asset))
	if !actual.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := u.ledger.Transfer(asset, u.account, u.vault, actual); err != nil {
		return sdkmath.ZeroInt(), err
	}
	u.balances[asset] = utils.SaturatingSub(u.balanceOf(asset), actual, "strategy.Withdraw")
	u.logger.Debug().
		Str("asset", string(asset)).
		Str("requested", requested.String()).
		Str("actual", actual.String()).
		Msg("Withdrawal filled")
	return actual, nil
}

// ProvideEmergencyLiquidity drains up to the requested amount to the vault,
// bypassing the reserve ratio and minimum liquidity entirely. Used only by
// the vault to resolve a liquidity shortfall during a user withdrawal.
// Available while paused.
func (u *Unit) ProvideEmergencyLiquidity(caller types.Principal, asset types.AssetID, requested sdkmath.Int) (sdkmath.Int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if caller != u.vault {
		return sdkmath.ZeroInt(), ErrNotVault
	}
	if !u.supported[asset] {
		return sdkmath.ZeroInt(), ErrUnsupportedAsset
	}
	if requested.IsNil() || !requested.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmount
	}

	actual := utils.MinInt(requested, u.balanceOf(asset))
	if !actual.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := u.ledger.Transfer(asset, u.account, u.vault, actual); err != nil {
		return sdkmath.ZeroInt(), err
	}
	u.balances[asset] = utils.SaturatingSub(u.balanceOf(asset), actual, "strategy.ProvideEmergencyLiquidity")
	u.logger.Warn().
		Str("asset", string(asset)).
		Str("amount", actual.String()).
		Msg("Emergency liquidity provided, reserve policy bypassed")
	return actual, nil
}

// Refund puts funds back onto the unit after a failed vault operation is
// rolled back. Vault-only; deliberately works while paused so a rollback can
// always complete.
func (u *Unit) Refund(caller types.Principal, asset types.AssetID, amount sdkmath.Int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if caller != u.vault {
		return ErrNotVault
	}
	if !u.supported[asset] {
		return ErrUnsupportedAsset
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := u.ledger.Transfer(asset, u.vault, u.account, amount); err != nil {
		return err
	}
	u.balances[asset] = u.balanceOf(asset).Add(amount)
	return nil
}

// EmergencyWithdraw drains the unit's entire tracked idle balance of asset
// to the fixed emergency recipient and resets the tracked balance to zero.
// Guardian-gated.
//
// The tracked balance is reset regardless of the real ledger balance. If the
// two have drifted apart (external rebasing, direct transfers) this can
// under- or over-state later withdrawable capacity; the divergence is logged
// but intentionally not reconciled here.
func (u *Unit) EmergencyWithdraw(caller types.Principal, asset types.AssetID) (sdkmath.Int, error) {
	if err := capability.Require(u.caps, caller, types.CapabilityGuardian); err != nil {
		return sdkmath.ZeroInt(), err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.supported[asset] {
		return sdkmath.ZeroInt(), ErrUnsupportedAsset
	}

	tracked := u.balanceOf(asset)
	real := u.ledger.BalanceOf(asset, u.account)
	if !tracked.Equal(real) {
		u.logger.Warn().
			Str("asset", string(asset)).
			Str("tracked", tracked.String()).
			Str("real", real.String()).
			Msg("Tracked and real balances diverge at emergency withdrawal")
	}

	payout := utils.MinInt(tracked, real)
	if payout.IsPositive() {
		if err := u.ledger.Transfer(asset, u.account, u.emergencyRecipient, payout); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	u.balances[asset] = sdkmath.ZeroInt()
	u.logger.Warn().
		Str("asset", string(asset)).
		Str("payout", payout.String()).
		Str("recipient", string(u.emergencyRecipient)).
		Msg("Emergency withdrawal executed, tracked balance reset")
	return payout, nil
}

// Pause halts action execution and direct deposits. Guardian-gated.
// Withdrawal and emergency paths stay open while paused.
func (u *Unit) Pause(caller types.Principal) error {
	if err := capability.Require(u.caps, caller, types.CapabilityGuardian); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paused = true
	u.logger.Warn().Msg("Strategy unit paused")
	return nil
}

// Unpause resumes the unit. Vault-gated: the party that can halt is
// deliberately not the party that can resume.
func (u *Unit) Unpause(caller types.Principal) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if caller != u.vault {
		return ErrNotVault
	}
	u.paused = false
	u.logger.Info().Msg("Strategy unit unpaused")
	return nil
}

// Paused reports whether the unit is paused.
func (u *Unit) Paused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}

// IdleBalance returns the tracked idle balance of asset.
func (u *Unit) IdleBalance(asset types.AssetID) sdkmath.Int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.balanceOf(asset)
}

// Withdrawable returns what an ordinary withdrawal could currently take.
func (u *Unit) Withdrawable(asset types.AssetID) sdkmath.Int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.withdrawableOf(asset)
}

// balanceOf requires u.mu to be held.
func (u *Unit) balanceOf(asset types.AssetID) sdkmath.Int {
	if b, ok := u.balances[asset]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

// withdrawableOf computes the reserve-policy cap on an ordinary withdrawal:
// min(balance - minLiquidity, balance - balance*ratio/100), clamped at zero.
// Requires u.mu to be held.
func (u *Unit) withdrawableOf(asset types.AssetID) sdkmath.Int {
	balance := u.balanceOf(asset)
	reserveAmount := utils.PercentOf(balance, u.reserveRatioPct)
	byRatio := balance.Sub(reserveAmount)
	byFloor := balance.Sub(u.minLiquidity)
	withdrawable := utils.MinInt(byRatio, byFloor)
	if withdrawable.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return withdrawable
}
