package strategy

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/types"
)

var (
	ErrYieldUnavailable = errors.New("yield source is not configured")
)

// YieldSource is the abstract deposit/withdraw/balance/claim contract a
// strategy unit needs from an external yield protocol. Implementations own
// custody of deposited funds and move them through the asset ledger.
type YieldSource interface {
	// Deposit pulls amount of asset from the owner into the yield position.
	Deposit(asset types.AssetID, amount sdkmath.Int) error

	// Withdraw returns up to amount of asset to the owner and reports the
	// amount actually returned; partial fills are allowed.
	Withdraw(asset types.AssetID, amount sdkmath.Int) (sdkmath.Int, error)

	// Balance returns the owner's current position in asset.
	Balance(asset types.AssetID) sdkmath.Int

	// ClaimRewards transfers accrued rewards of asset to the owner and
	// returns the claimed amount. Zero is a no-op, not an error.
	ClaimRewards(asset types.AssetID) (sdkmath.Int, error)
}

// SimulatedYieldSource is an in-process YieldSource used by the service
// bootstrap and tests. Deposited funds sit on the source's own ledger
// account; rewards are credited externally via AccrueRewards.
type SimulatedYieldSource struct {
	mu        sync.Mutex
	ledger    ledger.AssetLedger
	account   types.Principal
	owner     types.Principal
	positions map[types.AssetID]sdkmath.Int
	pending   map[types.AssetID]sdkmath.Int
}

// NewSimulatedYieldSource creates a simulated yield source holding funds on
// the given account and returning them to owner.
func NewSimulatedYieldSource(assetLedger ledger.AssetLedger, account, owner types.Principal) *SimulatedYieldSource {
	return &SimulatedYieldSource{
		ledger:    assetLedger,
		account:   account,
		owner:     owner,
		positions: make(map[types.AssetID]sdkmath.Int),
		pending:   make(map[types.AssetID]sdkmath.Int),
	}
}

// Deposit pulls amount of asset from the owner into the position.
func (s *SimulatedYieldSource) Deposit(asset types.AssetID, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Transfer(asset, s.owner, s.account, amount); err != nil {
		return err
	}
	s.positions[asset] = s.positionOf(asset).Add(amount)
	return nil
}

// Withdraw returns up to amount of asset to the owner.
func (s *SimulatedYieldSource) Withdraw(asset types.AssetID, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ledger.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	position := s.positionOf(asset)
	actual := amount
	if position.LT(actual) {
		actual = position
	}
	if !actual.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := s.ledger.Transfer(asset, s.account, s.owner, actual); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.positions[asset] = position.Sub(actual)
	return actual, nil
}

// Balance returns the owner's current position in asset.
func (s *SimulatedYieldSource) Balance(asset types.AssetID) sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionOf(asset)
}

// ClaimRewards transfers accrued rewards of asset to the owner.
func (s *SimulatedYieldSource) ClaimRewards(asset types.AssetID) (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pending[asset]
	if !ok || !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := s.ledger.Transfer(asset, s.account, s.owner, pending); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.pending[asset] = sdkmath.ZeroInt()
	return pending, nil
}

// AccrueRewards credits pending rewards to the position, minting the backing
// funds onto the source's account when the ledger supports it. Simulation
// hook for tests and the demo bootstrap.
func (s *SimulatedYieldSource) AccrueRewards(asset types.AssetID, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if minter, ok := s.ledger.(*ledger.InMemoryLedger); ok {
		if err := minter.Mint(asset, s.account, amount); err != nil {
			return err
		}
	}
	if p, ok := s.pending[asset]; ok {
		s.pending[asset] = p.Add(amount)
	} else {
		s.pending[asset] = amount
	}
	return nil
}

// positionOf requires s.mu to be held.
func (s *SimulatedYieldSource) positionOf(asset types.AssetID) sdkmath.Int {
	if p, ok := s.positions[asset]; ok {
		return p
	}
	return sdkmath.ZeroInt()
}
