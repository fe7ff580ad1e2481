package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/types"
	"github.com/openvault-labs/pcv/internal/utils"
)

// ValidateAction is the pure pre-check of the dispatch protocol. It mutates
// nothing and its verdict matches what ExecuteAction would do: an action that
// validates cannot fail execution for a reason validation could have seen.
// An unknown variant is invalid, with a reason.
func (u *Unit) ValidateAction(action Action) (bool, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.validateLocked(action)
}

// validateLocked requires u.mu to be held.
func (u *Unit) validateLocked(action Action) (bool, string) {
	switch a := action.(type) {
	case DepositAction:
		if !u.supported[a.Asset] {
			return false, "unsupported asset"
		}
		if a.Amount.IsNil() || !a.Amount.IsPositive() {
			return false, "amount must be positive"
		}
		if u.yield == nil {
			return false, "no yield source configured"
		}
		if u.balanceOf(a.Asset).LT(a.Amount) {
			return false, "amount exceeds idle balance"
		}
		return true, ""
	case WithdrawAction:
		if !u.supported[a.Asset] {
			return false, "unsupported asset"
		}
		if a.Amount.IsNil() || !a.Amount.IsPositive() {
			return false, "amount must be positive"
		}
		if u.yield == nil {
			return false, "no yield source configured"
		}
		return true, ""
	case SetReserveRatioAction:
		if a.Pct > MaxReserveRatioPct {
			return false, fmt.Sprintf("reserve ratio %d exceeds ceiling %d", a.Pct, MaxReserveRatioPct)
		}
		return true, ""
	case SetMinLiquidityAction:
		if a.Amount.IsNil() || !a.Amount.IsPositive() {
			return false, "minimum liquidity must be positive"
		}
		return true, ""
	case ClaimYieldAction:
		if !u.supported[a.Asset] {
			return false, "unsupported asset"
		}
		if u.yield == nil {
			return false, "no yield source configured"
		}
		return true, ""
	default:
		return false, "unknown action variant"
	}
}

// ExecuteAction runs one operator command against the unit. Agent-gated,
// rejected while paused, serialized by the unit's mutex. Validation runs
// first; a rejected action surfaces ErrActionRejected with the reason.
func (u *Unit) ExecuteAction(caller types.Principal, action Action) (Result, error) {
	if err := capability.Require(u.caps, caller, types.CapabilityAgent); err != nil {
		return Result{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.paused {
		return Result{}, ErrUnitPaused
	}

	ok, reason := u.validateLocked(action)
	if !ok {
		if action == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownAction, reason)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrActionRejected, reason)
	}

	result := Result{Action: action.actionName(), Amount: sdkmath.ZeroInt()}
	switch a := action.(type) {
	case DepositAction:
		if err := u.yield.Deposit(a.Asset, a.Amount); err != nil {
			return Result{}, err
		}
		u.balances[a.Asset] = utils.SaturatingSub(u.balanceOf(a.Asset), a.Amount, "strategy.DepositAction")
		result.Asset = a.Asset
		result.Amount = a.Amount
	case WithdrawAction:
		actual, err := u.yield.Withdraw(a.Asset, a.Amount)
		if err != nil {
			return Result{}, err
		}
		if actual.IsPositive() {
			u.balances[a.Asset] = u.balanceOf(a.Asset).Add(actual)
		}
		result.Asset = a.Asset
		result.Amount = actual
	case SetReserveRatioAction:
		u.reserveRatioPct = a.Pct
	case SetMinLiquidityAction:
		u.minLiquidity = a.Amount
	case ClaimYieldAction:
		claimed, err := u.yield.ClaimRewards(a.Asset)
		if err != nil {
			return Result{}, err
		}
		if claimed.IsPositive() && u.supported[a.Asset] {
			u.balances[a.Asset] = u.balanceOf(a.Asset).Add(claimed)
		}
		result.Asset = a.Asset
		result.Amount = claimed
	}

	u.logger.Info().
		Str("action", result.Action).
		Str("asset", string(result.Asset)).
		Str("amount", result.Amount.String()).
		Msg("Action executed")
	return result, nil
}

// View is a read-only snapshot of a unit for the web and audit surfaces.
type View struct {
	Name            string            `json:"name"`
	Paused          bool              `json:"paused"`
	ReserveRatioPct uint64            `json:"reserve_ratio_pct"`
	MinLiquidity    string            `json:"min_liquidity"`
	RiskLevel       int               `json:"risk_level"`
	IdleBalances    map[string]string `json:"idle_balances"`
	YieldBalances   map[string]string `json:"yield_balances,omitempty"`
}

// Snapshot returns a consistent view of the unit's state.
func (u *Unit) Snapshot() View {
	u.mu.Lock()
	defer u.mu.Unlock()

	view := View{
		Name:            u.name,
		Paused:          u.paused,
		ReserveRatioPct: u.reserveRatioPct,
		MinLiquidity:    u.minLiquidity.String(),
		RiskLevel:       u.riskLevel,
		IdleBalances:    make(map[string]string, len(u.balances)),
	}
	for asset, balance := range u.balances {
		view.IdleBalances[string(asset)] = balance.String()
	}
	if u.yield != nil {
		view.YieldBalances = make(map[string]string, len(u.supported))
		for asset := range u.supported {
			view.YieldBalances[string(asset)] = u.yield.Balance(asset).String()
		}
	}
	return view
}
