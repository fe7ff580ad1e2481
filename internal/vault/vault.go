/*

The vault is the single logical owner of all accounting state: the share
ledger, the reward accumulator, the liquidity controller, and the strategy
registry. Every mutating operation runs under the writer lock, commits its
ledger effects before any external asset transfer, and rolls back through an
explicit journal if anything fails mid-flight — the caller always observes
all-or-nothing behavior.

*/

package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/liquidity"
	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/rewards"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig             = errors.New("vault configuration is invalid")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidPrincipal          = errors.New("principal is invalid")
	ErrInsufficientShares        = errors.New("insufficient share balance")
	ErrInsufficientLiquidity     = errors.New("insufficient liquidity to satisfy withdrawal")
	ErrStrategyNotFound          = errors.New("strategy is not registered")
	ErrStrategyAlreadyRegistered = errors.New("strategy is already registered")
	ErrNoDefaultStrategy         = errors.New("no default strategy configured")
	ErrStrategyExecutionFailed   = errors.New("strategy action execution failed")
)

// Recorder is the audit sink for receipts, snapshots, and parameter
// versions. Persistence is write-behind: a recorder failure is logged, never
// surfaced to the caller, and the in-memory state stays authoritative.
type Recorder interface {
	SaveReceipt(receipt types.OperationReceipt) error
	SaveSnapshot(snapshot types.VaultSnapshot) error
	SaveParameters(params types.VaultParameters) error
	NextOperationSeq() (int, error)
}

// Config wires a vault together.
type Config struct {
	// Account is the vault's own principal on the asset ledger.
	Account types.Principal
	// PoolAsset is the pooled (deposit) asset denomination.
	PoolAsset types.AssetID
	// RewardAsset is the distributed reward asset denomination.
	RewardAsset types.AssetID

	ReserveRatioBps uint64
	MinLiquidity    sdkmath.Int

	Ledger       ledger.AssetLedger
	Capabilities capability.Checker
	// Recorder is optional; nil disables the audit trail.
	Recorder Recorder
}

// Vault composes the share ledger, reward engine, liquidity controller, and
// strategy registry behind the public operation surface.
type Vault struct {
	mu     sync.RWMutex
	logger zerolog.Logger

	account     types.Principal
	poolAsset   types.AssetID
	rewardAsset types.AssetID

	ledger    ledger.AssetLedger
	shares    *ledger.ShareLedger
	rewards   *rewards.Engine
	liquidity *liquidity.Controller
	caps      capability.Checker
	recorder  Recorder

	strategies      map[string]*strategy.Unit
	defaultStrategy string
}

// New creates a vault with comprehensive validation.
func New(cfg Config) (*Vault, error) {
	if cfg.Account == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidConfig)
	}
	if cfg.PoolAsset == "" || cfg.RewardAsset == "" {
		return nil, fmt.Errorf("%w: pool and reward assets are required", ErrInvalidConfig)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: asset ledger is required", ErrInvalidConfig)
	}
	if cfg.Capabilities == nil {
		return nil, fmt.Errorf("%w: capability checker is required", ErrInvalidConfig)
	}

	controller, err := liquidity.NewController(cfg.PoolAsset, cfg.Account, cfg.Ledger, cfg.ReserveRatioBps, cfg.MinLiquidity)
	if err != nil {
		return nil, err
	}

	v := &Vault{
		logger:      logger.GetForComponent("vault_core"),
		account:     cfg.Account,
		poolAsset:   cfg.PoolAsset,
		rewardAsset: cfg.RewardAsset,
		ledger:      cfg.Ledger,
		shares:      ledger.NewShareLedger(),
		rewards:     rewards.NewEngine(),
		liquidity:   controller,
		caps:        cfg.Capabilities,
		recorder:    cfg.Recorder,
		strategies:  make(map[string]*strategy.Unit),
	}
	v.logger.Info().
		Str("account", string(cfg.Account)).
		Str("poolAsset", string(cfg.PoolAsset)).
		Str("rewardAsset", string(cfg.RewardAsset)).
		Uint64("reserveRatioBps", cfg.ReserveRatioBps).
		Msg("Vault initialized")
	return v, nil
}

// Account returns the vault's ledger principal.
func (v *Vault) Account() types.Principal { return v.account }

// RegisterStrategy adds a unit to the registry. The first registered unit
// becomes the default escalation target.
func (v *Vault) RegisterStrategy(unit *strategy.Unit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit is nil", ErrInvalidConfig)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.strategies[unit.Name()]; exists {
		return ErrStrategyAlreadyRegistered
	}
	v.strategies[unit.Name()] = unit
	if v.defaultStrategy == "" {
		v.defaultStrategy = unit.Name()
	}
	v.logger.Info().Str("strategy", unit.Name()).Msg("Strategy registered")
	return nil
}

// SetDefaultStrategy changes the escalation target for withdrawals.
func (v *Vault) SetDefaultStrategy(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.strategies[name]; !exists {
		return ErrStrategyNotFound
	}
	v.defaultStrategy = name
	return nil
}

// strategyByName requires v.mu to be held.
func (v *Vault) strategyByName(name string) (*strategy.Unit, error) {
	unit, ok := v.strategies[name]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return unit, nil
}

// record writes an operation receipt through the recorder, logging failures.
func (v *Vault) record(op string, principal types.Principal, strategyName string, requested, actual sdkmath.Int, success bool, message string) {
	if v.recorder == nil {
		return
	}
	receipt := types.OperationReceipt{
		ReceiptID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Operation: op,
		Principal: principal,
		Strategy:  strategyName,
		Requested: requested.String(),
		Actual:    actual.String(),
		Success:   success,
		Message:   message,
	}
	if err := v.recorder.SaveReceipt(receipt); err != nil {
		v.logger.Error().Err(err).Str("operation", op).Msg("Failed to persist operation receipt")
	}
}

// snapshot persists vault-wide totals after a successful mutating operation.
// Requires v.mu to be held.
func (v *Vault) snapshot() {
	if v.recorder == nil {
		return
	}
	seq, err := v.recorder.NextOperationSeq()
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to advance operation sequence")
	}
	snap := types.VaultSnapshot{
		OperationSeq:             seq,
		Timestamp:                time.Now().UTC(),
		TotalShares:              v.shares.TotalShares().String(),
		LiquidBalance:            v.liquidity.LiquidBalance().String(),
		TotalAllocated:           v.liquidity.TotalAllocated().String(),
		CumulativeRewardPerShare: v.rewards.CumulativeRewardPerShare().String(),
		TotalDistributed:         v.rewards.TotalDistributed().String(),
	}
	if err := v.recorder.SaveSnapshot(snap); err != nil {
		v.logger.Error().Err(err).Msg("Failed to persist vault snapshot")
	}
}
