/*

This file manages the persistent global operation counter for the vault.
The counter is stored in the database to ensure continuity across restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentOperationSeq retrieves the current operation sequence from the database
func GetCurrentOperationSeq() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_seq FROM operation_counter WHERE id = 1;`

	var currentSeq int
	row := DB.QueryRow(query)
	err := row.Scan(&currentSeq)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No operation counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current operation sequence: %w", err)
	}

	return currentSeq, nil
}

// IncrementOperationSeq increments the operation counter and returns the new value
func IncrementOperationSeq() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	updateQuery := `
		UPDATE operation_counter
		SET current_seq = current_seq + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_seq;`

	var newSeq int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newSeq)

	if err != nil {
		return 0, fmt.Errorf("failed to increment operation sequence: %w", err)
	}

	return newSeq, nil
}
