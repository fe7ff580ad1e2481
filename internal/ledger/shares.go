package ledger

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/openvault-labs/pcv/internal/types"
)

var (
	ErrInsufficientShares = errors.New("insufficient share balance")
)

// ShareLedger is the source of truth for who owns how much of the pool.
// It carries no lock of its own: every mutation happens under the owning
// vault's writer lock, and mint/burn must complete before any external asset
// transfer in the calling operation.
type ShareLedger struct {
	accounts    map[types.Principal]*types.HolderAccount
	totalShares sdkmath.Int
}

// NewShareLedger creates an empty share ledger.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		accounts:    make(map[types.Principal]*types.HolderAccount),
		totalShares: sdkmath.ZeroInt(),
	}
}

// Account returns the holder's account, creating it on first touch.
// Accounts are never destroyed: a zero-share account keeps its reward
// checkpoint so a later deposit settles from the right accumulator value.
func (s *ShareLedger) Account(holder types.Principal) *types.HolderAccount {
	acc, ok := s.accounts[holder]
	if !ok {
		acc = types.NewHolderAccount()
		s.accounts[holder] = acc
	}
	return acc
}

// Lookup returns the holder's account without creating one, or nil.
func (s *ShareLedger) Lookup(holder types.Principal) *types.HolderAccount {
	return s.accounts[holder]
}

// SharesOf returns the holder's share balance without creating an account.
func (s *ShareLedger) SharesOf(holder types.Principal) sdkmath.Int {
	if acc, ok := s.accounts[holder]; ok {
		return acc.Shares
	}
	return sdkmath.ZeroInt()
}

// TotalShares returns the outstanding share supply.
func (s *ShareLedger) TotalShares() sdkmath.Int {
	return s.totalShares
}

// Holders returns all principals with an account, including zero-share ones.
func (s *ShareLedger) Holders() []types.Principal {
	holders := make([]types.Principal, 0, len(s.accounts))
	for holder := range s.accounts {
		holders = append(holders, holder)
	}
	return holders
}

// Mint credits amount shares to the holder and grows the total supply.
func (s *ShareLedger) Mint(holder types.Principal, amount sdkmath.Int) error {
	if holder == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	acc := s.Account(holder)
	acc.Shares = acc.Shares.Add(amount)
	s.totalShares = s.totalShares.Add(amount)
	return nil
}

// Burn removes amount shares from the holder and shrinks the total supply.
func (s *ShareLedger) Burn(holder types.Principal, amount sdkmath.Int) error {
	if holder == "" {
		return ErrInvalidPrincipal
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}
	acc, ok := s.accounts[holder]
	if !ok || acc.Shares.LT(amount) {
		return ErrInsufficientShares
	}
	acc.Shares = acc.Shares.Sub(amount)
	s.totalShares = s.totalShares.Sub(amount)
	return nil
}
