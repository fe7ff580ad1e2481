// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/openvault-labs/pcv/internal/types"
)

// SaveVaultParameters saves a new version of the vault's liquidity parameters.
func SaveVaultParameters(params types.VaultParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO vault_parameters (
            version, config_name, is_active, activated_at, created_at,
            reserve_ratio_bps, min_liquidity
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.ReserveRatioBps, params.MinLiquidity.String(),
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return paramsID, nil
}

// LoadActiveVaultParameters loads the currently active vault parameters.
func LoadActiveVaultParameters(configName string) (*types.VaultParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT reserve_ratio_bps, min_liquidity
        FROM vault_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var reserveRatioBps uint64
	var minLiquidityStr string
	row := DB.QueryRow(query, configName)
	err := row.Scan(&reserveRatioBps, &minLiquidityStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active vault parameters found for config %s", configName)
		}
		return nil, fmt.Errorf("failed to load active vault parameters: %w", err)
	}

	minLiquidity, ok := sdkmath.NewIntFromString(minLiquidityStr)
	if !ok {
		return nil, fmt.Errorf("stored min_liquidity is not a valid integer: %s", minLiquidityStr)
	}

	return &types.VaultParameters{
		ReserveRatioBps: reserveRatioBps,
		MinLiquidity:    minLiquidity,
	}, nil
}

// NextParameterVersion returns the next unused version number for a config.
func NextParameterVersion(configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM vault_parameters WHERE config_name = $1;`
	var next int
	if err := DB.QueryRow(query, configName).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next parameter version: %w", err)
	}
	return next, nil
}
