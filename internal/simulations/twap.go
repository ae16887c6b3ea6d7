package simulations

import (
	"context"
	"time"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/tickmath"
)

// Observation is a point of the pool's price accumulator. Cumulative is the integral
// of the spot price over time in price-seconds up to Time; Price holds from Time on.
type Observation struct {
	Time       time.Time         `json:"time"`
	Cumulative sdkmath.LegacyDec `json:"cumulative"`
	Price      sdkmath.LegacyDec `json:"price"`
}

// ArithmeticTwap is the time-weighted average spot price over the window ending at
// the block time. It fails when the pool's history is shorter than the window.
func (k *Keeper) ArithmeticTwap(ctx context.Context, poolID uint64, window time.Duration) (sdkmath.LegacyDec, error) {
	if _, err := k.pool(ctx, poolID); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	seconds := int64(window / time.Second)
	if seconds <= 0 {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(ErrInvalidPositionArg, "twap window %s", window)
	}
	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()

	end, err := k.cumulativeAt(ctx, poolID, now)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	start, err := k.cumulativeAt(ctx, poolID, now-seconds)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return end.Sub(start).QuoInt64(seconds), nil
}

// cumulativeAt extends the last observation at or before at up to at.
func (k *Keeper) cumulativeAt(ctx context.Context, poolID uint64, at int64) (sdkmath.LegacyDec, error) {
	obs, found, err := k.lastObservation(ctx, poolID, at)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !found {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(ErrTwapUnavailable, "pool %d has no observation at or before %d", poolID, at)
	}
	return obs.Cumulative.Add(obs.Price.MulInt64(at - obs.Time.Unix())), nil
}

func (k *Keeper) lastObservation(ctx context.Context, poolID uint64, at int64) (Observation, bool, error) {
	rng := collections.NewPrefixedPairRange[uint64, int64](poolID).EndInclusive(at).Descending()
	it, err := k.Observations.Iterate(ctx, rng)
	if err != nil {
		return Observation{}, false, err
	}
	defer it.Close()
	if !it.Valid() {
		return Observation{}, false, nil
	}
	obs, err := it.Value()
	if err != nil {
		return Observation{}, false, err
	}
	return obs, true, nil
}

// observe records the pool's current price at the block time. Observations share a
// second, so a later move within the same second replaces the earlier one.
func (k *Keeper) observe(ctx context.Context, pool Pool) error {
	now := sdk.UnwrapSDKContext(ctx).BlockTime()
	price, err := tickmath.PriceFromTick(pool.CurrentTick)
	if err != nil {
		return errorsmod.Wrap(ErrPoolMath, err.Error())
	}
	cumulative := sdkmath.LegacyZeroDec()
	prev, found, err := k.lastObservation(ctx, pool.ID, now.Unix())
	if err != nil {
		return err
	}
	if found {
		cumulative = prev.Cumulative.Add(prev.Price.MulInt64(now.Unix() - prev.Time.Unix()))
	}
	obs := Observation{Time: now.Truncate(time.Second), Cumulative: cumulative, Price: price}
	return k.Observations.Set(ctx, collections.Join(pool.ID, now.Unix()), obs)
}
