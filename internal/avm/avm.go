package avm

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/metrics"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/vault"
)

// Host is the part of the node the rebalancer drives.
type Host interface {
	Deliver(ctx context.Context, msg types.Msg) (app.Result, error)
	Query(ctx context.Context, fn func(ctx sdk.Context, k vault.Keeper) error) error
	Pool(ctx context.Context) (types.PoolState, error)
}

// AVM submits a rebalance on every tick and journals the vault before and after.
type AVM struct {
	logger     zerolog.Logger
	host       Host
	journal    state.Journal
	rebalancer string

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new AVM instance
type Config struct {
	Host    Host
	Journal state.Journal
	// Rebalancer is the bech32 address the rebalance messages are sent from.
	Rebalancer string
}

// NewAVM creates a new AVM instance with dependency injection
func NewAVM(cfg Config) (*AVM, error) {
	if err := validateAVMConfig(cfg); err != nil {
		return nil, fmt.Errorf("AVM configuration validation failed: %w", err)
	}
	if cfg.Journal == nil {
		cfg.Journal = state.NewNop()
	}

	a := &AVM{
		logger:     logger.GetForComponent("avm_core"),
		host:       cfg.Host,
		journal:    cfg.Journal,
		rebalancer: cfg.Rebalancer,
	}
	a.logger.Info().Str("rebalancer", a.rebalancer).Msg("AVM instance created")
	return a, nil
}

func validateAVMConfig(cfg Config) error {
	if cfg.Host == nil {
		return fmt.Errorf("host cannot be nil")
	}
	if _, err := sdk.AccAddressFromBech32(cfg.Rebalancer); err != nil {
		return fmt.Errorf("invalid rebalancer address %q: %w", cfg.Rebalancer, err)
	}
	return nil
}

// RunLoop runs a cycle immediately and then on every interval until ctx is done.
func (a *AVM) RunLoop(ctx context.Context, interval time.Duration) {
	a.logger.Info().
		Dur("interval", interval).
		Msg("Starting AVM main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("AVM loop stopped due to context cancellation")
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *AVM) tick(ctx context.Context) {
	a.cycleCount++
	a.logger.Debug().Int("cycle", a.cycleCount).Msg("Initiating AVM cycle")
	if _, err := a.RunCycle(ctx); err != nil {
		a.logger.Error().Err(err).Int("cycle", a.cycleCount).Msg("AVM cycle aborted")
	}
}

// vaultState is what a cycle snapshot records on each side of the rebalance.
type vaultState struct {
	assets    types.TotalAssets
	positions []types.Position
	price     sdkmath.LegacyDec
}

// RunCycle executes one rebalance attempt. A rejected rebalance is part of a normal
// cycle and is reported in the snapshot; the error return is reserved for a vault
// that cannot be read.
func (a *AVM) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	cycleStartTime := time.Now()

	// Generate unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := a.logger.With().Str("cycle_id", cycleID).Logger()

	snapshot := types.CycleSnapshot{
		CycleNumber: a.nextCycleNumber(ctx, cycleLogger),
		CycleID:     cycleID,
		Timestamp:   cycleStartTime.UTC(),
		EventTypes:  make([]string, 0),
	}

	before, err := a.captureVaultState(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return snapshot, fmt.Errorf("failed to capture vault state: %w", err)
	}
	snapshot.InitialAssets = before.assets
	snapshot.InitialPositions = before.positions
	snapshot.InitialPrice = before.price.String()

	outcome := metrics.OutcomeRebalanced
	res, err := a.host.Deliver(ctx, types.MsgRebalance{Sender: a.rebalancer})
	switch {
	case err == nil:
		snapshot.Rebalanced = true
		snapshot.EventTypes = app.EventTypes(res.Events)
		cycleLogger.Info().Int64("height", res.Height).Int("events", len(res.Events)).Msg("Vault rebalanced")
	case errors.Is(err, types.ErrRebalanceNotAllowed), errors.Is(err, types.ErrNothingToRebalance):
		outcome = metrics.OutcomeSkipped
		snapshot.Error = err.Error()
		cycleLogger.Debug().Err(err).Msg("Rebalance skipped")
	default:
		outcome = metrics.OutcomeFailed
		snapshot.Error = err.Error()
		cycleLogger.Error().Err(err).Msg("Rebalance failed")
	}

	after, err := a.captureVaultState(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to capture final vault state, reusing initial state")
		after = before
	}
	snapshot.FinalAssets = after.assets
	snapshot.FinalPositions = after.positions
	snapshot.FinalPrice = after.price.String()

	duration := time.Since(cycleStartTime)
	snapshot.DurationMs = duration.Milliseconds()

	metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	metrics.CycleDuration.Observe(duration.Seconds())
	metrics.ObserveValuation(after.assets, len(after.positions))

	a.saveCycleSnapshot(ctx, snapshot, cycleLogger)
	a.logEndOfCycleState(snapshot, cycleLogger)
	return snapshot, nil
}

func (a *AVM) nextCycleNumber(ctx context.Context, cycleLogger zerolog.Logger) int {
	n, err := a.journal.NextCycleNumber(ctx)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to increment the persistent cycle counter, using the local count")
		return a.cycleCount
	}
	return n
}

func (a *AVM) captureVaultState(ctx context.Context) (vaultState, error) {
	var s vaultState
	err := a.host.Query(ctx, func(sdkCtx sdk.Context, k vault.Keeper) error {
		var err error
		if s.assets, err = k.TotalAssets(sdkCtx); err != nil {
			return err
		}
		s.positions, err = k.GetPositions(sdkCtx)
		return err
	})
	if err != nil {
		return s, err
	}

	pool, err := a.host.Pool(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to get pool state: %w", err)
	}
	s.price = pool.SpotPrice
	return s, nil
}

func (a *AVM) saveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot, cycleLogger zerolog.Logger) {
	snapshotID, err := a.journal.SaveCycleSnapshot(ctx, snapshot)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot to database")
		return
	}
	if snapshotID > 0 {
		cycleLogger.Debug().Int64("snapshot_id", snapshotID).Msg("Cycle snapshot saved")
	}
}

func (a *AVM) logEndOfCycleState(snapshot types.CycleSnapshot, cycleLogger zerolog.Logger) {
	cycleLogger.Info().
		Int("cycleNumber", snapshot.CycleNumber).
		Bool("rebalanced", snapshot.Rebalanced).
		Int("finalPositionsCount", len(snapshot.FinalPositions)).
		Str("finalTotal", snapshot.FinalAssets.Total.String()).
		Str("price", snapshot.FinalPrice).
		Int64("durationMs", snapshot.DurationMs).
		Msg("End of cycle state")
}
