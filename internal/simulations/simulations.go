// Package simulations is an in-process concentrated liquidity pool. It keeps pools and
// positions in its own store, prices positions with the tick function, and exposes
// hooks to move the price and accrue trading fees. It does not implement swaps.
package simulations

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	corestore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/kvstore"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/tickmath"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

const (
	// StoreKey is the name of the pool store in the multistore.
	StoreKey  = "clpool"
	codespace = "clpool"
)

var (
	ErrPoolNotFound       = errorsmod.Register(codespace, 2, "pool not found")
	ErrPositionNotFound   = errorsmod.Register(codespace, 3, "position not found")
	ErrNotPositionOwner   = errorsmod.Register(codespace, 4, "caller does not own the position")
	ErrZeroLiquidity      = types.ErrZeroLiquidity
	ErrInvalidPositionArg = errorsmod.Register(codespace, 6, "invalid position arguments")
	ErrLiquidityExceeded  = errorsmod.Register(codespace, 7, "not enough liquidity in position")
	ErrPoolMath           = errorsmod.Register(codespace, 8, "pool arithmetic failed")
	ErrBelowMinimum       = errorsmod.Register(codespace, 9, "position amounts below the requested minimum")
	ErrTwapUnavailable    = errorsmod.Register(codespace, 10, "not enough price history for the twap window")
)

var poolLogger = logger.GetForComponent("pool_simulator")

// Pool is the stored pool record.
type Pool struct {
	ID           uint64            `json:"id"`
	Token0       string            `json:"token0"`
	Token1       string            `json:"token1"`
	TickSpacing  uint64            `json:"tick_spacing"`
	CurrentTick  int64             `json:"current_tick"`
	SpreadFactor sdkmath.LegacyDec `json:"spread_factor"`
}

// Position is the stored position record. Fees accrue on the position until they are
// collected by a close or a partial withdrawal.
type Position struct {
	ID        uint64            `json:"id"`
	PoolID    uint64            `json:"pool_id"`
	Owner     sdk.AccAddress    `json:"owner"`
	LowerTick int64             `json:"lower_tick"`
	UpperTick int64             `json:"upper_tick"`
	Liquidity sdkmath.LegacyDec `json:"liquidity"`
	Fees0     sdkmath.Int       `json:"fees0"`
	Fees1     sdkmath.Int       `json:"fees1"`
}

func (p Position) inRange(tick int64) bool {
	return p.LowerTick <= tick && tick < p.UpperTick
}

type Keeper struct {
	Schema         collections.Schema
	Pools          collections.Map[uint64, Pool]
	Positions      collections.Map[uint64, Position]
	NextPoolID     collections.Sequence
	NextPositionID collections.Sequence
	Observations   collections.Map[collections.Pair[uint64, int64], Observation]
}

func NewKeeper(storeService corestore.KVStoreService) *Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := &Keeper{
		Pools:          collections.NewMap(sb, collections.NewPrefix(0), "pools", collections.Uint64Key, kvstore.JSONValue[Pool]("pool")),
		Positions:      collections.NewMap(sb, collections.NewPrefix(1), "positions", collections.Uint64Key, kvstore.JSONValue[Position]("position")),
		NextPoolID:     collections.NewSequence(sb, collections.NewPrefix(2), "next_pool_id"),
		NextPositionID: collections.NewSequence(sb, collections.NewPrefix(3), "next_position_id"),
		Observations: collections.NewMap(sb, collections.NewPrefix(4), "observations",
			collections.PairKeyCodec(collections.Uint64Key, collections.Int64Key), kvstore.JSONValue[Observation]("observation")),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema
	return k
}

// CreatePool registers a pool at the given tick and returns its id. Ids start at 1.
func (k *Keeper) CreatePool(ctx context.Context, token0, token1 string, tickSpacing uint64, tick int64, spreadFactor sdkmath.LegacyDec) (uint64, error) {
	if token0 == "" || token1 == "" || token0 == token1 {
		return 0, errorsmod.Wrapf(ErrInvalidPositionArg, "pool tokens %q and %q must be distinct", token0, token1)
	}
	if err := tickmath.ValidateSpacing(tickSpacing); err != nil {
		return 0, errorsmod.Wrap(ErrInvalidPositionArg, err.Error())
	}
	if tick < tickmath.MinTick || tick > tickmath.MaxTick {
		return 0, errorsmod.Wrapf(ErrInvalidPositionArg, "tick %d outside the valid domain", tick)
	}
	if spreadFactor.IsNil() {
		spreadFactor = sdkmath.LegacyZeroDec()
	}
	seq, err := k.NextPoolID.Next(ctx)
	if err != nil {
		return 0, err
	}
	pool := Pool{
		ID:           seq + 1,
		Token0:       token0,
		Token1:       token1,
		TickSpacing:  tickSpacing,
		CurrentTick:  tick,
		SpreadFactor: spreadFactor,
	}
	if err := k.Pools.Set(ctx, pool.ID, pool); err != nil {
		return 0, err
	}
	if err := k.observe(ctx, pool); err != nil {
		return 0, err
	}
	poolLogger.Info().Uint64("pool_id", pool.ID).Str("token0", token0).Str("token1", token1).Int64("tick", tick).Msg("Created pool")
	return pool.ID, nil
}

// GetPool returns the pool's spot price, tick and spacing.
func (k *Keeper) GetPool(ctx context.Context, poolID uint64) (types.PoolState, error) {
	pool, err := k.pool(ctx, poolID)
	if err != nil {
		return types.PoolState{}, err
	}
	price, err := tickmath.PriceFromTick(pool.CurrentTick)
	if err != nil {
		return types.PoolState{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	return types.PoolState{
		ID:           pool.ID,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		TickSpacing:  pool.TickSpacing,
		CurrentTick:  pool.CurrentTick,
		SpotPrice:    price,
		SpreadFactor: pool.SpreadFactor,
	}, nil
}

// OpenPosition deposits up to amount0/amount1 into [lower, upper) and reports the
// amounts actually consumed. It fails when either consumed amount is below its minimum.
func (k *Keeper) OpenPosition(ctx context.Context, owner sdk.AccAddress, poolID uint64, lower, upper int64, amount0, amount1, amount0Min, amount1Min sdkmath.Int) (types.OpenPositionResult, error) {
	pool, err := k.pool(ctx, poolID)
	if err != nil {
		return types.OpenPositionResult{}, err
	}
	if owner.Empty() {
		return types.OpenPositionResult{}, errorsmod.Wrap(ErrInvalidPositionArg, "owner is required")
	}
	if err := tickmath.ValidateRange(lower, upper, pool.TickSpacing); err != nil {
		return types.OpenPositionResult{}, errorsmod.Wrap(ErrInvalidPositionArg, err.Error())
	}
	for _, a := range []sdkmath.Int{amount0, amount1, amount0Min, amount1Min} {
		if utils.CheckAmount(a) != nil {
			return types.OpenPositionResult{}, errorsmod.Wrap(ErrInvalidPositionArg, "amounts must be set and non-negative")
		}
	}

	sp, err := tickmath.RangeSqrtPrices(lower, upper, pool.CurrentTick)
	if err != nil {
		return types.OpenPositionResult{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	liquidity, err := tickmath.LiquidityForAmounts(sp, pool.CurrentTick, lower, upper, amount0, amount1)
	if err != nil {
		return types.OpenPositionResult{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	if !liquidity.IsPositive() {
		return types.OpenPositionResult{}, errorsmod.Wrapf(ErrZeroLiquidity, "%s/%s in [%d, %d)", amount0, amount1, lower, upper)
	}
	used0, used1, err := tickmath.AmountsForLiquidity(sp, pool.CurrentTick, lower, upper, liquidity)
	if err != nil {
		return types.OpenPositionResult{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	if used0.LT(amount0Min) || used1.LT(amount1Min) {
		return types.OpenPositionResult{}, errorsmod.Wrapf(ErrBelowMinimum,
			"consumed %s/%s, minimum %s/%s", used0, used1, amount0Min, amount1Min)
	}

	seq, err := k.NextPositionID.Next(ctx)
	if err != nil {
		return types.OpenPositionResult{}, err
	}
	position := Position{
		ID:        seq + 1,
		PoolID:    poolID,
		Owner:     owner,
		LowerTick: lower,
		UpperTick: upper,
		Liquidity: liquidity,
		Fees0:     sdkmath.ZeroInt(),
		Fees1:     sdkmath.ZeroInt(),
	}
	if err := k.Positions.Set(ctx, position.ID, position); err != nil {
		return types.OpenPositionResult{}, err
	}

	poolLogger.Debug().
		Uint64("position_id", position.ID).
		Int64("lower", lower).
		Int64("upper", upper).
		Str("liquidity", liquidity.String()).
		Str("used0", used0.String()).
		Str("used1", used1.String()).
		Msg("Opened position")

	return types.OpenPositionResult{
		PositionID: position.ID,
		Liquidity:  liquidity,
		Amount0:    used0,
		Amount1:    used1,
	}, nil
}

// PositionValue is the principal and uncollected fees of a position at the current tick.
func (k *Keeper) PositionValue(ctx context.Context, positionID uint64) (types.PositionAmounts, error) {
	position, err := k.position(ctx, positionID)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	pool, err := k.pool(ctx, position.PoolID)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	a0, a1, err := k.principal(pool, position, position.Liquidity)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	return types.PositionAmounts{Amount0: a0, Amount1: a1, Fees0: position.Fees0, Fees1: position.Fees1}, nil
}

// WithdrawLiquidity removes liquidity from a position, paying out its principal and
// every uncollected fee of the position. A position left with no liquidity is deleted.
func (k *Keeper) WithdrawLiquidity(ctx context.Context, owner sdk.AccAddress, positionID uint64, liquidity sdkmath.LegacyDec) (types.PositionAmounts, error) {
	position, err := k.position(ctx, positionID)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	if !position.Owner.Equals(owner) {
		return types.PositionAmounts{}, errorsmod.Wrapf(ErrNotPositionOwner, "position %d", positionID)
	}
	if liquidity.IsNil() || liquidity.IsNegative() {
		return types.PositionAmounts{}, errorsmod.Wrap(ErrInvalidPositionArg, "liquidity must be set and non-negative")
	}
	if liquidity.GT(position.Liquidity) {
		return types.PositionAmounts{}, errorsmod.Wrapf(ErrLiquidityExceeded, "position %d has %s, requested %s", positionID, position.Liquidity, liquidity)
	}
	pool, err := k.pool(ctx, position.PoolID)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	a0, a1, err := k.principal(pool, position, liquidity)
	if err != nil {
		return types.PositionAmounts{}, err
	}

	out := types.PositionAmounts{Amount0: a0, Amount1: a1, Fees0: position.Fees0, Fees1: position.Fees1}
	position.Liquidity = position.Liquidity.Sub(liquidity)
	position.Fees0, position.Fees1 = sdkmath.ZeroInt(), sdkmath.ZeroInt()

	if position.Liquidity.IsZero() {
		err = k.Positions.Remove(ctx, positionID)
	} else {
		err = k.Positions.Set(ctx, positionID, position)
	}
	if err != nil {
		return types.PositionAmounts{}, err
	}
	return out, nil
}

// ClosePosition withdraws all liquidity and fees and deletes the position.
func (k *Keeper) ClosePosition(ctx context.Context, owner sdk.AccAddress, positionID uint64) (types.PositionAmounts, error) {
	position, err := k.position(ctx, positionID)
	if err != nil {
		return types.PositionAmounts{}, err
	}
	return k.WithdrawLiquidity(ctx, owner, positionID, position.Liquidity)
}

// SetTick moves the pool price and records a twap observation. Stands in for the
// swaps a live pool would see.
func (k *Keeper) SetTick(ctx context.Context, poolID uint64, tick int64) error {
	pool, err := k.pool(ctx, poolID)
	if err != nil {
		return err
	}
	if tick < tickmath.MinTick || tick > tickmath.MaxTick {
		return errorsmod.Wrapf(ErrInvalidPositionArg, "tick %d outside the valid domain", tick)
	}
	pool.CurrentTick = tick
	if err := k.Pools.Set(ctx, poolID, pool); err != nil {
		return err
	}
	return k.observe(ctx, pool)
}

// AccrueFees splits trading fees over the positions in range at the current tick,
// pro rata to their liquidity. Rounding remainders are not distributed. Returns the
// amounts handed out.
func (k *Keeper) AccrueFees(ctx context.Context, poolID uint64, fees0, fees1 sdkmath.Int) (types.Funds, error) {
	pool, err := k.pool(ctx, poolID)
	if err != nil {
		return types.Funds{}, err
	}
	if utils.CheckAmount(fees0) != nil || utils.CheckAmount(fees1) != nil {
		return types.Funds{}, errorsmod.Wrap(ErrInvalidPositionArg, "fees must be set and non-negative")
	}

	var active []Position
	total := sdkmath.ZeroInt()
	err = k.Positions.Walk(ctx, nil, func(_ uint64, p Position) (bool, error) {
		if p.PoolID == poolID && p.inRange(pool.CurrentTick) {
			active = append(active, p)
			total = total.Add(utils.Atomics(p.Liquidity))
		}
		return false, nil
	})
	if err != nil {
		return types.Funds{}, err
	}

	paid := types.ZeroFunds()
	if total.IsZero() {
		return paid, nil
	}
	for _, p := range active {
		share0, err := utils.MulDiv(fees0, utils.Atomics(p.Liquidity), total)
		if err != nil {
			return types.Funds{}, errorsmod.Wrap(ErrPoolMath, err.Error())
		}
		share1, err := utils.MulDiv(fees1, utils.Atomics(p.Liquidity), total)
		if err != nil {
			return types.Funds{}, errorsmod.Wrap(ErrPoolMath, err.Error())
		}
		p.Fees0 = p.Fees0.Add(share0)
		p.Fees1 = p.Fees1.Add(share1)
		if err := k.Positions.Set(ctx, p.ID, p); err != nil {
			return types.Funds{}, err
		}
		paid.Amount0 = paid.Amount0.Add(share0)
		paid.Amount1 = paid.Amount1.Add(share1)
	}
	return paid, nil
}

// OwnerPositions lists the ids of the positions owned by owner in a pool.
func (k *Keeper) OwnerPositions(ctx context.Context, poolID uint64, owner sdk.AccAddress) ([]uint64, error) {
	var ids []uint64
	err := k.Positions.Walk(ctx, nil, func(id uint64, p Position) (bool, error) {
		if p.PoolID == poolID && p.Owner.Equals(owner) {
			ids = append(ids, id)
		}
		return false, nil
	})
	return ids, err
}

func (k *Keeper) principal(pool Pool, position Position, liquidity sdkmath.LegacyDec) (sdkmath.Int, sdkmath.Int, error) {
	sp, err := tickmath.RangeSqrtPrices(position.LowerTick, position.UpperTick, pool.CurrentTick)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	a0, a1, err := tickmath.AmountsForLiquidity(sp, pool.CurrentTick, position.LowerTick, position.UpperTick, liquidity)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	return a0, a1, nil
}

func (k *Keeper) pool(ctx context.Context, poolID uint64) (Pool, error) {
	pool, err := k.Pools.Get(ctx, poolID)
	if errors.Is(err, collections.ErrNotFound) {
		return Pool{}, errorsmod.Wrapf(ErrPoolNotFound, "pool %d", poolID)
	}
	return pool, err
}

func (k *Keeper) position(ctx context.Context, positionID uint64) (Position, error) {
	position, err := k.Positions.Get(ctx, positionID)
	if errors.Is(err, collections.ErrNotFound) {
		return Position{}, errorsmod.Wrapf(ErrPositionNotFound, "position %d", positionID)
	}
	return position, err
}
