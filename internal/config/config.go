package config

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/openvault-labs/pcv/internal/types"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PoolAssetDenom is the denomination of the pooled (deposit) asset.
	PoolAssetDenom string
	// RewardAssetDenom is the denomination of the distributed reward asset.
	RewardAssetDenom string

	// ReserveRatioBps is the vault's initial reserve ratio in basis points.
	ReserveRatioBps uint64
	// MinLiquidity is the vault's initial absolute liquidity floor.
	MinLiquidity sdkmath.Int

	// AdminPrincipal may change reserve parameters and unpause strategy units.
	AdminPrincipal types.Principal
	// AgentPrincipal may drive strategy actions and allocation.
	AgentPrincipal types.Principal
	// GuardianPrincipal may pause units and trigger emergency withdrawal.
	GuardianPrincipal types.Principal
	// EmergencyRecipient receives funds drained by a guardian emergency withdrawal.
	EmergencyRecipient types.Principal

	// StrategyReserveRatioPct is the default strategy's reserve ratio (0-100).
	StrategyReserveRatioPct uint64
	// StrategyMinLiquidity is the default strategy's absolute liquidity floor.
	StrategyMinLiquidity sdkmath.Int
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolAssetDenom, err = getEnv("PCV_POOL_ASSET_DENOM")
	if err != nil {
		return err
	}

	RewardAssetDenom, err = getEnv("PCV_REWARD_ASSET_DENOM")
	if err != nil {
		return err
	}

	ReserveRatioBps, err = getEnvAsUint64("PCV_RESERVE_RATIO_BPS")
	if err != nil {
		return err
	}
	if ReserveRatioBps > 10000 {
		return errors.New("PCV_RESERVE_RATIO_BPS must not exceed 10000")
	}

	MinLiquidity, err = getEnvAsInt("PCV_MIN_LIQUIDITY")
	if err != nil {
		return err
	}

	adminStr, err := getEnv("PCV_ADMIN_PRINCIPAL")
	if err != nil {
		return err
	}
	AdminPrincipal = types.Principal(adminStr)

	agentStr, err := getEnv("PCV_AGENT_PRINCIPAL")
	if err != nil {
		return err
	}
	AgentPrincipal = types.Principal(agentStr)

	guardianStr, err := getEnv("PCV_GUARDIAN_PRINCIPAL")
	if err != nil {
		return err
	}
	GuardianPrincipal = types.Principal(guardianStr)

	recipientStr, err := getEnv("PCV_EMERGENCY_RECIPIENT")
	if err != nil {
		return err
	}
	EmergencyRecipient = types.Principal(recipientStr)

	StrategyReserveRatioPct, err = getEnvAsUint64("PCV_STRATEGY_RESERVE_RATIO_PCT")
	if err != nil {
		return err
	}

	StrategyMinLiquidity, err = getEnvAsInt("PCV_STRATEGY_MIN_LIQUIDITY")
	if err != nil {
		return err
	}

	log.Debug().
		Str("PoolAsset", PoolAssetDenom).
		Str("RewardAsset", RewardAssetDenom).
		Uint64("ReserveRatioBps", ReserveRatioBps).
		Str("MinLiquidity", MinLiquidity.String()).
		Msg("Configuration loaded successfully.")

	return nil
}
