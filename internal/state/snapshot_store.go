package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/clvault/internal/types"
)

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	initialAssetsJSON, err := json.Marshal(snapshot.InitialAssets)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal initial_assets: %w", err)
	}
	initialPositionsJSON, err := json.Marshal(snapshot.InitialPositions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal initial_positions: %w", err)
	}
	finalAssetsJSON, err := json.Marshal(snapshot.FinalAssets)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal final_assets: %w", err)
	}
	finalPositionsJSON, err := json.Marshal(snapshot.FinalPositions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal final_positions: %w", err)
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			initial_assets, initial_positions, initial_price,
			rebalanced, error_message,
			final_assets, final_positions, final_price,
			event_types, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRowContext(ctx,
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp,
		initialAssetsJSON, initialPositionsJSON, snapshot.InitialPrice,
		snapshot.Rebalanced, nullString(snapshot.Error),
		finalAssetsJSON, finalPositionsJSON, snapshot.FinalPrice,
		pq.Array(snapshot.EventTypes), snapshot.DurationMs,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Bool("rebalanced", snapshot.Rebalanced).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

// SaveActionReceipt records one delivered message.
func SaveActionReceipt(ctx context.Context, receipt types.ActionReceipt) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	query := `
		INSERT INTO action_receipts (
			action_timestamp, block_height, msg_type, sender, success, message, request, response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING receipt_id;
	`

	var receiptID int64
	err := DB.QueryRowContext(ctx,
		query,
		receipt.Timestamp, receipt.Height, receipt.MsgType, receipt.Sender, receipt.Success,
		nullString(receipt.Message), nullJSON(receipt.Request), nullJSON(receipt.Response),
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save action receipt: %w", err)
	}

	log.Debug().Int64("receipt_id", receiptID).Str("msg_type", receipt.MsgType).Msg("Action receipt saved")
	return receiptID, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
