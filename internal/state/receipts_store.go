// ./internal/state/receipts_store.go
package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openvault-labs/pcv/internal/types"
)

// SaveOperationReceipt persists one audit receipt.
func SaveOperationReceipt(receipt types.OperationReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO operation_receipts (
            receipt_id, receipt_timestamp, operation, principal, strategy,
            requested_amount, actual_amount, success, message
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	var strategyArg interface{}
	if receipt.Strategy != "" {
		strategyArg = receipt.Strategy
	}
	_, err := DB.Exec(
		stmt,
		receipt.ReceiptID, receipt.Timestamp, receipt.Operation, string(receipt.Principal), strategyArg,
		receipt.Requested, receipt.Actual, receipt.Success, receipt.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Str("receipt_id", receipt.ReceiptID).
		Str("operation", receipt.Operation).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved")
	return nil
}

// GetRecentReceipts returns the most recent receipts, newest first.
func GetRecentReceipts(limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT receipt_id, receipt_timestamp, operation, principal, strategy,
               requested_amount, actual_amount, success, message
        FROM operation_receipts
        ORDER BY receipt_timestamp DESC
        LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var r types.OperationReceipt
		var principal string
		var strategy sql.NullString
		var message sql.NullString
		if err := rows.Scan(
			&r.ReceiptID, &r.Timestamp, &r.Operation, &principal, &strategy,
			&r.Requested, &r.Actual, &r.Success, &message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}
		r.Principal = types.Principal(principal)
		if strategy.Valid {
			r.Strategy = strategy.String
		}
		if message.Valid {
			r.Message = message.String
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operation receipts: %w", err)
	}
	return receipts, nil
}
