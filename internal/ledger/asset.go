/*

The asset ledger is an external collaborator from the vault's point of view:
it owns custody and movement of the pooled asset and the reward asset. The
vault only ever talks to the AssetLedger interface; the in-memory
implementation below backs the service and the test suites.

*/

package ledger

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidPrincipal      = errors.New("principal is invalid")
	ErrUnknownAsset          = errors.New("asset is not registered")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// AssetLedger is the custody collaborator consumed by the vault.
type AssetLedger interface {
	// Transfer moves amount of asset from one principal to another.
	Transfer(asset types.AssetID, from, to types.Principal, amount sdkmath.Int) error

	// TransferFrom moves amount of asset from owner to recipient on behalf of
	// spender, consuming spender's allowance.
	TransferFrom(asset types.AssetID, owner, spender, to types.Principal, amount sdkmath.Int) error

	// BalanceOf returns the principal's balance of asset.
	BalanceOf(asset types.AssetID, principal types.Principal) sdkmath.Int

	// Allowance returns how much of owner's asset the spender may move.
	Allowance(asset types.AssetID, owner, spender types.Principal) sdkmath.Int
}

// InMemoryLedger is a thread-safe AssetLedger backed by plain maps.
type InMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[types.AssetID]map[types.Principal]sdkmath.Int
	allowances map[types.AssetID]map[types.Principal]map[types.Principal]sdkmath.Int
}

// NewInMemoryLedger creates an empty ledger with the given assets registered.
func NewInMemoryLedger(assets ...types.AssetID) *InMemoryLedger {
	l := &InMemoryLedger{
		balances:   make(map[types.AssetID]map[types.Principal]sdkmath.Int),
		allowances: make(map[types.AssetID]map[types.Principal]map[types.Principal]sdkmath.Int),
	}
	for _, asset := range assets {
		l.balances[asset] = make(map[types.Principal]sdkmath.Int)
		l.allowances[asset] = make(map[types.Principal]map[types.Principal]sdkmath.Int)
	}
	return l
}

// Mint credits freshly created units of asset to a principal. Used by the
// bootstrap path and tests; the vault itself never mints.
func (l *InMemoryLedger) Mint(asset types.AssetID, to types.Principal, amount sdkmath.Int) error {
	if err := validateMovement(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balances, ok := l.balances[asset]
	if !ok {
		return ErrUnknownAsset
	}
	balances[to] = balanceOrZero(balances, to).Add(amount)
	return nil
}

// Approve sets spender's allowance over owner's asset balance.
func (l *InMemoryLedger) Approve(asset types.AssetID, owner, spender types.Principal, amount sdkmath.Int) error {
	if owner == "" || spender == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowances, ok := l.allowances[asset]
	if !ok {
		return ErrUnknownAsset
	}
	if allowances[owner] == nil {
		allowances[owner] = make(map[types.Principal]sdkmath.Int)
	}
	allowances[owner][spender] = amount
	return nil
}

// Transfer moves amount of asset from one principal to another.
func (l *InMemoryLedger) Transfer(asset types.AssetID, from, to types.Principal, amount sdkmath.Int) error {
	if from == "" {
		return ErrInvalidPrincipal
	}
	if err := validateMovement(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, from, to, amount)
}

// TransferFrom moves amount of owner's asset on behalf of spender.
func (l *InMemoryLedger) TransferFrom(asset types.AssetID, owner, spender, to types.Principal, amount sdkmath.Int) error {
	if owner == "" || spender == "" {
		return ErrInvalidPrincipal
	}
	if err := validateMovement(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowances, ok := l.allowances[asset]
	if !ok {
		return ErrUnknownAsset
	}
	granted := sdkmath.ZeroInt()
	if allowances[owner] != nil {
		if a, ok := allowances[owner][spender]; ok {
			granted = a
		}
	}
	if granted.LT(amount) {
		return ErrInsufficientAllowance
	}
	if err := l.move(asset, owner, to, amount); err != nil {
		return err
	}
	allowances[owner][spender] = granted.Sub(amount)
	return nil
}

// BalanceOf returns the principal's balance of asset.
func (l *InMemoryLedger) BalanceOf(asset types.AssetID, principal types.Principal) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balances, ok := l.balances[asset]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return balanceOrZero(balances, principal)
}

// Allowance returns spender's remaining allowance over owner's asset.
func (l *InMemoryLedger) Allowance(asset types.AssetID, owner, spender types.Principal) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	allowances, ok := l.allowances[asset]
	if !ok || allowances[owner] == nil {
		return sdkmath.ZeroInt()
	}
	if a, ok := allowances[owner][spender]; ok {
		return a
	}
	return sdkmath.ZeroInt()
}

// move requires l.mu to be held for writing.
func (l *InMemoryLedger) move(asset types.AssetID, from, to types.Principal, amount sdkmath.Int) error {
	balances, ok := l.balances[asset]
	if !ok {
		return ErrUnknownAsset
	}
	fromBalance := balanceOrZero(balances, from)
	if fromBalance.LT(amount) {
		return ErrInsufficientFunds
	}
	balances[from] = fromBalance.Sub(amount)
	balances[to] = balanceOrZero(balances, to).Add(amount)
	return nil
}

func balanceOrZero(balances map[types.Principal]sdkmath.Int, principal types.Principal) sdkmath.Int {
	if b, ok := balances[principal]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func validateMovement(to types.Principal, amount sdkmath.Int) error {
	if to == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
