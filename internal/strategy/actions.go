/*

Strategy actions are a closed set of typed variants rather than an
actionId/payload pair: validation and execution are a single exhaustive
switch, so a malformed payload is unrepresentable and a validated action
cannot decode differently at execution time. There is deliberately no
raw-call escape hatch; every privileged operation an operator may drive is
enumerated here.

*/

package strategy

import (
	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/types"
)

// Action is one operator command against a strategy unit. The set of
// implementations is closed; external packages cannot add variants.
type Action interface {
	actionName() string
}

// DepositAction moves idle unit funds into the underlying yield source.
type DepositAction struct {
	Asset  types.AssetID
	Amount sdkmath.Int
}

// WithdrawAction pulls funds back from the yield source into the unit's
// idle balance.
type WithdrawAction struct {
	Asset  types.AssetID
	Amount sdkmath.Int
}

// SetReserveRatioAction changes the unit's reserve ratio percentage.
type SetReserveRatioAction struct {
	Pct uint64
}

// SetMinLiquidityAction changes the unit's absolute liquidity floor.
type SetMinLiquidityAction struct {
	Amount sdkmath.Int
}

// ClaimYieldAction claims accrued rewards from the yield source into the
// unit's idle balance.
type ClaimYieldAction struct {
	Asset types.AssetID
}

func (DepositAction) actionName() string         { return "deposit" }
func (WithdrawAction) actionName() string        { return "withdraw" }
func (SetReserveRatioAction) actionName() string { return "set_reserve_ratio" }
func (SetMinLiquidityAction) actionName() string { return "set_min_liquidity" }
func (ClaimYieldAction) actionName() string      { return "claim_yield" }

// Result reports what an executed action did. Amount carries the moved or
// claimed amount for fund-moving actions and is zero for parameter changes.
type Result struct {
	Action string        `json:"action"`
	Asset  types.AssetID `json:"asset,omitempty"`
	Amount sdkmath.Int   `json:"amount"`
}
