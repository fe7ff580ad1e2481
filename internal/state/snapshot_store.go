// ./internal/state/snapshot_store.go
package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openvault-labs/pcv/internal/types"
)

// SaveVaultSnapshot saves a vault-wide totals snapshot to the database.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO vault_snapshots (
			operation_seq, snapshot_timestamp,
			total_shares, liquid_balance, total_allocated,
			cumulative_reward_per_share, total_distributed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := DB.QueryRow(
		query,
		snapshot.OperationSeq, snapshot.Timestamp,
		snapshot.TotalShares, snapshot.LiquidBalance, snapshot.TotalAllocated,
		snapshot.CumulativeRewardPerShare, snapshot.TotalDistributed,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshot_id", snapshotID).
		Int("operation_seq", snapshot.OperationSeq).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the most recent snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT snapshot_id, operation_seq, snapshot_timestamp,
		       total_shares, liquid_balance, total_allocated,
		       cumulative_reward_per_share, total_distributed
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.VaultSnapshot
	for rows.Next() {
		var s types.VaultSnapshot
		if err := rows.Scan(
			&s.SnapshotID, &s.OperationSeq, &s.Timestamp,
			&s.TotalShares, &s.LiquidBalance, &s.TotalAllocated,
			&s.CumulativeRewardPerShare, &s.TotalDistributed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vault snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault snapshots: %w", err)
	}
	return snapshots, nil
}
