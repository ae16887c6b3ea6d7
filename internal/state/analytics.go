package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/clvault/internal/types"
)

// ErrCycleNotFound is returned by GetCycleByID for an unknown snapshot id.
var ErrCycleNotFound = errors.New("cycle not found")

// MaxPageSize caps every list query.
const MaxPageSize = 100

// JournalSummary represents high-level statistics of the automated rebalancer.
type JournalSummary struct {
	TotalCycles      int        `json:"total_cycles"`
	RebalancedCycles int        `json:"rebalanced_cycles"`
	FailedCycles     int        `json:"failed_cycles"`
	AvgDurationMs    float64    `json:"avg_duration_ms"`
	LastCycleNumber  int        `json:"last_cycle_number"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
	TotalReceipts    int        `json:"total_receipts"`
	FailedReceipts   int        `json:"failed_receipts"`
}

const cycleColumns = `
	snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
	initial_assets, initial_positions, initial_price,
	rebalanced, error_message,
	final_assets, final_positions, final_price,
	event_types, duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle                            types.CycleSnapshot
		initialAssets, finalAssets       []byte
		initialPositions, finalPositions []byte
		errorMessage                     sql.NullString
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleNumber, &cycle.CycleID, &cycle.Timestamp,
		&initialAssets, &initialPositions, &cycle.InitialPrice,
		&cycle.Rebalanced, &errorMessage,
		&finalAssets, &finalPositions, &cycle.FinalPrice,
		pq.Array(&cycle.EventTypes), &cycle.DurationMs,
	)
	if err != nil {
		return cycle, err
	}
	cycle.Error = errorMessage.String

	fields := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"initial assets", initialAssets, &cycle.InitialAssets},
		{"initial positions", initialPositions, &cycle.InitialPositions},
		{"final assets", finalAssets, &cycle.FinalAssets},
		{"final positions", finalPositions, &cycle.FinalPositions},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return cycle, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return cycle, nil
}

// GetRecentCycles retrieves the most recent cycle snapshots, newest first.
func GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = 10
	}

	rows, err := DB.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycle_snapshots ORDER BY snapshot_timestamp DESC, snapshot_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetCycleByID retrieves a specific cycle by its snapshot id.
func GetCycleByID(ctx context.Context, snapshotID int64) (types.CycleSnapshot, error) {
	if DB == nil {
		return types.CycleSnapshot{}, ErrNotInitialized
	}

	row := DB.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycle_snapshots WHERE snapshot_id = $1`, snapshotID)
	cycle, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cycle, fmt.Errorf("%w: id %d", ErrCycleNotFound, snapshotID)
	}
	if err != nil {
		return cycle, fmt.Errorf("failed to query cycle %d: %w", snapshotID, err)
	}
	return cycle, nil
}

// GetRecentReceipts retrieves the most recent action receipts, newest first.
func GetRecentReceipts(ctx context.Context, limit int) ([]types.ActionReceipt, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = 20
	}

	rows, err := DB.QueryContext(ctx, `
		SELECT receipt_id, action_timestamp, block_height, msg_type, sender, success, message, request, response
		FROM action_receipts
		ORDER BY action_timestamp DESC, receipt_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query action receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.ActionReceipt
	for rows.Next() {
		var (
			r                 types.ActionReceipt
			message           sql.NullString
			request, response []byte
		)
		if err := rows.Scan(&r.ReceiptID, &r.Timestamp, &r.Height, &r.MsgType, &r.Sender, &r.Success, &message, &request, &response); err != nil {
			return nil, fmt.Errorf("failed to scan action receipt: %w", err)
		}
		r.Message = message.String
		r.Request = request
		r.Response = response
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return receipts, nil
}

// GetJournalSummary aggregates the cycle and receipt tables.
func GetJournalSummary(ctx context.Context) (JournalSummary, error) {
	var summary JournalSummary
	if DB == nil {
		return summary, ErrNotInitialized
	}

	var lastUpdated sql.NullTime
	err := DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN rebalanced THEN 1 END),
			COUNT(CASE WHEN error_message IS NOT NULL THEN 1 END),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(MAX(cycle_number), 0),
			MAX(snapshot_timestamp)
		FROM cycle_snapshots`).Scan(
		&summary.TotalCycles,
		&summary.RebalancedCycles,
		&summary.FailedCycles,
		&summary.AvgDurationMs,
		&summary.LastCycleNumber,
		&lastUpdated,
	)
	if err != nil {
		return summary, fmt.Errorf("failed to aggregate cycles: %w", err)
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		summary.LastUpdated = &t
	}

	err = DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN NOT success THEN 1 END)
		FROM action_receipts`).Scan(&summary.TotalReceipts, &summary.FailedReceipts)
	if err != nil {
		return summary, fmt.Errorf("failed to aggregate action receipts: %w", err)
	}

	return summary, nil
}
