package vault

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/planner"
	"github.com/elys-network/clvault/internal/types"
)

// Rebalance closes every position and redeploys the idle balances into the ranges
// computed for the current price. Either every pool call succeeds and the new
// positions are recorded, or nothing changes.
func (k Keeper) Rebalance(ctx context.Context, sender sdk.AccAddress) (types.MsgRebalanceResponse, error) {
	info, err := k.vaultInfo(ctx)
	if err != nil {
		return types.MsgRebalanceResponse{}, err
	}
	pool, err := k.pool.GetPool(ctx, info.PoolID)
	if err != nil {
		return types.MsgRebalanceResponse{}, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "pool %d: %s", info.PoolID, err)
	}
	if err := k.AuthorizeRebalance(ctx, sender, pool.SpotPrice); err != nil {
		return types.MsgRebalanceResponse{}, err
	}
	params, err := k.params(ctx)
	if err != nil {
		return types.MsgRebalanceResponse{}, err
	}

	var resp types.MsgRebalanceResponse
	err = atomic(ctx, func(ctx context.Context) error {
		closed, err := k.closeAll(ctx)
		if err != nil {
			return err
		}
		funds, err := k.funds(ctx)
		if err != nil {
			return err
		}
		if funds.IsZero() {
			return errorsmod.Wrap(types.ErrNothingToRebalance, "vault holds no assets")
		}

		ranges, err := planner.ComputeRanges(planner.Input{
			Price:       pool.SpotPrice,
			CurrentTick: pool.CurrentTick,
			TickSpacing: pool.TickSpacing,
			Params:      params,
			Balance0:    funds.Amount0,
			Balance1:    funds.Amount1,
		})
		if err != nil {
			if errors.Is(err, planner.ErrMathematicalError) {
				return mathError("range calculation", err)
			}
			return errorsmod.Wrap(types.ErrInvalidParameters, err.Error())
		}

		opened, err := k.openRanges(ctx, info.PoolID, ranges)
		if err != nil {
			return err
		}

		sdkCtx := sdk.UnwrapSDKContext(ctx)
		record := types.RebalanceRecord{Time: sdkCtx.BlockTime(), Height: sdkCtx.BlockHeight(), Price: pool.SpotPrice}
		if err := k.LastRebalance.Set(ctx, record); err != nil {
			return err
		}
		idle, err := k.funds(ctx)
		if err != nil {
			return err
		}

		emit(ctx, sdk.NewEvent(types.EventTypeRebalance,
			sdk.NewAttribute(types.AttributeKeySender, sender.String()),
			sdk.NewAttribute(types.AttributeKeyPrice, pool.SpotPrice.String()),
			sdk.NewAttribute(types.AttributeKeyAmount0, idle.Amount0.String()),
			sdk.NewAttribute(types.AttributeKeyAmount1, idle.Amount1.String()),
		))
		k.Logger(ctx).Info("vault rebalanced",
			"closed", len(closed), "opened", len(opened), "price", pool.SpotPrice.String(), "tick", pool.CurrentTick)

		resp = types.MsgRebalanceResponse{Closed: closed, Opened: opened, Idle: idle, Price: pool.SpotPrice}
		return nil
	})
	if err != nil {
		return types.MsgRebalanceResponse{}, err
	}
	return resp, nil
}
