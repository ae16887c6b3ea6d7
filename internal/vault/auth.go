package vault

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

// requireAdmin fails with ErrUnauthorized unless sender is the current admin.
func (k Keeper) requireAdmin(ctx context.Context, sender sdk.AccAddress) (types.VaultInfo, error) {
	info, err := k.vaultInfo(ctx)
	if err != nil {
		return types.VaultInfo{}, err
	}
	if !info.HasAdmin() {
		return types.VaultInfo{}, errorsmod.Wrap(types.ErrUnauthorized, "vault admin has been burned")
	}
	if !info.Admin.Equals(sender) {
		return types.VaultInfo{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the vault admin", sender)
	}
	return info, nil
}

// requireProtocol fails with ErrUnauthorized unless sender is the protocol fee address.
func (k Keeper) requireProtocol(ctx context.Context, sender sdk.AccAddress) (types.FeeState, error) {
	fees, err := k.fees(ctx)
	if err != nil {
		return types.FeeState{}, err
	}
	if !fees.ProtocolAddress.Equals(sender) {
		return types.FeeState{}, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the protocol address", sender)
	}
	return fees, nil
}

// AuthorizeRebalance checks sender against the configured rebalancer. For the open
// variant it also enforces the rebalance guards: once per block, a minimum interval,
// a minimum price move and a spot price close to the recent average.
func (k Keeper) AuthorizeRebalance(ctx context.Context, sender sdk.AccAddress, price sdkmath.LegacyDec) error {
	info, err := k.vaultInfo(ctx)
	if err != nil {
		return err
	}
	r := info.Rebalancer
	switch r.Kind {
	case types.RebalancerAdmin:
		if !info.HasAdmin() || !info.Admin.Equals(sender) {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the vault admin", sender)
		}
		return nil
	case types.RebalancerDelegate:
		if !r.Address.Equals(sender) {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the delegated rebalancer", sender)
		}
		return nil
	case types.RebalancerAnyone:
		return k.checkRebalanceGuards(ctx, info, price)
	default:
		return errorsmod.Wrapf(types.ErrUnauthorized, "unknown rebalancer kind %q", r.Kind)
	}
}

func (k Keeper) checkRebalanceGuards(ctx context.Context, info types.VaultInfo, price sdkmath.LegacyDec) error {
	r := info.Rebalancer
	last, err := k.LastRebalance.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if sdkCtx.BlockHeight() == last.Height || sdkCtx.BlockTime().Equal(last.Time) {
		return errorsmod.Wrap(types.ErrRebalanceNotAllowed, "already rebalanced in this block")
	}

	elapsed := sdkCtx.BlockTime().Unix() - last.Time.Unix()
	if elapsed < 0 || uint64(elapsed) < r.MinIntervalSeconds {
		return errorsmod.Wrapf(types.ErrRebalanceNotAllowed, "%d of %d seconds elapsed since the last rebalance", elapsed, r.MinIntervalSeconds)
	}

	upper, err := utils.MulDecs(last.Price, r.PriceFactor)
	if err != nil {
		return mathError("upper price bound", err)
	}
	lower, err := utils.QuoDecs(last.Price, r.PriceFactor)
	if err != nil {
		return mathError("lower price bound", err)
	}
	if price.GT(lower) && price.LT(upper) {
		return errorsmod.Wrapf(types.ErrRebalanceNotAllowed, "price %s has not left (%s, %s)", price, lower, upper)
	}
	return k.checkTwap(ctx, info.PoolID, price)
}

// checkTwap rejects a spot price more than MaxTwapDeviation away from the pool's
// TwapWindow average, so a price pushed within the block cannot trigger a rebalance.
func (k Keeper) checkTwap(ctx context.Context, poolID uint64, price sdkmath.LegacyDec) error {
	twap, err := k.pool.ArithmeticTwap(ctx, poolID, types.TwapWindow)
	if err != nil {
		return errorsmod.Wrapf(types.ErrRebalanceNotAllowed, "twap over %s: %s", types.TwapWindow, err)
	}
	one := sdkmath.LegacyOneDec()
	lower, err := utils.MulDecs(twap, one.Sub(types.MaxTwapDeviation))
	if err != nil {
		return mathError("lower twap bound", err)
	}
	upper, err := utils.MulDecs(twap, one.Add(types.MaxTwapDeviation))
	if err != nil {
		return mathError("upper twap bound", err)
	}
	if price.LT(lower) || price.GT(upper) {
		return errorsmod.Wrapf(types.ErrRebalanceNotAllowed, "price %s is outside [%s, %s] around the %s twap %s",
			price, lower, upper, types.TwapWindow, twap)
	}
	return nil
}
