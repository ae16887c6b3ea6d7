package vault

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
)

// PoolKeeper defines the concentrated liquidity pool the vault deploys into.
// Any implementation works as long as its writes go through the store of the context
// it is handed, so a discarded cache branch also discards them.
type PoolKeeper interface {
	// GetPool returns the pool's spot price, current tick and tick spacing.
	GetPool(ctx context.Context, poolID uint64) (types.PoolState, error)

	// ArithmeticTwap returns the time-weighted average spot price over the window
	// ending at the block time.
	ArithmeticTwap(ctx context.Context, poolID uint64, window time.Duration) (sdkmath.LegacyDec, error)

	// OpenPosition deposits up to amount0/amount1 into [lower, upper) for owner and
	// reports the liquidity created and the amounts actually consumed. It fails when a
	// consumed amount is below its minimum, and with an error wrapping
	// types.ErrZeroLiquidity when the amounts fund no liquidity.
	OpenPosition(ctx context.Context, owner sdk.AccAddress, poolID uint64, lower, upper int64, amount0, amount1, amount0Min, amount1Min sdkmath.Int) (types.OpenPositionResult, error)

	// ClosePosition removes all liquidity of a position and pays out its principal
	// and uncollected fees.
	ClosePosition(ctx context.Context, owner sdk.AccAddress, positionID uint64) (types.PositionAmounts, error)

	// WithdrawLiquidity removes part of a position's liquidity. It pays out the
	// principal of the removed liquidity and every uncollected fee of the position.
	WithdrawLiquidity(ctx context.Context, owner sdk.AccAddress, positionID uint64, liquidity sdkmath.LegacyDec) (types.PositionAmounts, error)

	// PositionValue returns the current principal and uncollected fees of a position
	// without changing it.
	PositionValue(ctx context.Context, positionID uint64) (types.PositionAmounts, error)
}
