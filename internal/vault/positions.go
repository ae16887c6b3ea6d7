package vault

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/planner"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

// positions returns the recorded positions in id order.
func (k Keeper) positions(ctx context.Context) ([]types.Position, error) {
	var out []types.Position
	err := k.Positions.Walk(ctx, nil, func(_ uint64, p types.Position) (bool, error) {
		out = append(out, p)
		return false, nil
	})
	return out, err
}

// closeAll closes every recorded position. Principal and fees net of the protocol
// and admin cut go to idle balances. The registry is cleared once every close has
// succeeded; callers run it on a cache branch so a failed close leaves no trace.
func (k Keeper) closeAll(ctx context.Context) ([]types.Position, error) {
	positions, err := k.positions(ctx)
	if err != nil {
		return nil, err
	}
	funds, err := k.funds(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range positions {
		out, err := k.pool.ClosePosition(ctx, VaultAddress, p.ID)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "close position %d: %s", p.ID, err)
		}
		net, err := collectFees(&fees, out.Fees())
		if err != nil {
			return nil, err
		}
		if funds, err = addFunds(funds, out.Principal(), net); err != nil {
			return nil, mathError("idle balances", err)
		}
		emit(ctx, sdk.NewEvent(types.EventTypePositionClosed,
			sdk.NewAttribute(types.AttributeKeyPositionID, fmt.Sprint(p.ID)),
			sdk.NewAttribute(types.AttributeKeyKind, string(p.Kind)),
			sdk.NewAttribute(types.AttributeKeyAmount0, out.Amount0.String()),
			sdk.NewAttribute(types.AttributeKeyAmount1, out.Amount1.String()),
			sdk.NewAttribute(types.AttributeKeyFees0, out.Fees0.String()),
			sdk.NewAttribute(types.AttributeKeyFees1, out.Fees1.String()),
		))
	}

	for _, p := range positions {
		if err := k.Positions.Remove(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	if err := k.Funds.Set(ctx, funds); err != nil {
		return nil, err
	}
	if err := k.Fees.Set(ctx, fees); err != nil {
		return nil, err
	}
	return positions, nil
}

// openRanges opens one pool position per range, takes the consumed amounts out of
// idle balances and records the positions. The pool must consume at least
// PositionSlippage of each planned amount. A range the pool finds to fund no
// liquidity is skipped and its amounts stay idle.
func (k Keeper) openRanges(ctx context.Context, poolID uint64, ranges []planner.TargetRange) ([]types.Position, error) {
	funds, err := k.funds(ctx)
	if err != nil {
		return nil, err
	}

	opened := make([]types.Position, 0, len(ranges))
	for _, r := range ranges {
		min0, err := utils.MulDec(r.Amount0, types.PositionSlippage)
		if err != nil {
			return nil, mathError("position minimum", err)
		}
		min1, err := utils.MulDec(r.Amount1, types.PositionSlippage)
		if err != nil {
			return nil, mathError("position minimum", err)
		}
		res, err := k.pool.OpenPosition(ctx, VaultAddress, poolID, r.LowerTick, r.UpperTick, r.Offer0, r.Offer1, min0, min1)
		if errors.Is(err, types.ErrZeroLiquidity) {
			k.Logger(ctx).Debug("skipping range without liquidity", "kind", r.Kind, "lower", r.LowerTick, "upper", r.UpperTick)
			continue
		}
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "open %s position [%d, %d): %s", r.Kind, r.LowerTick, r.UpperTick, err)
		}
		if res.Amount0.GT(r.Offer0) || res.Amount1.GT(r.Offer1) {
			return nil, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "pool consumed %s/%s of %s/%s", res.Amount0, res.Amount1, r.Offer0, r.Offer1)
		}
		if funds, err = subFunds(funds, types.NewFunds(res.Amount0, res.Amount1)); err != nil {
			return nil, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "idle balances: %s", err)
		}

		position := types.Position{
			ID:        res.PositionID,
			Kind:      r.Kind,
			LowerTick: r.LowerTick,
			UpperTick: r.UpperTick,
			Liquidity: res.Liquidity,
		}
		if err := position.Validate(); err != nil {
			return nil, errorsmod.Wrap(types.ErrPoolInteractionFailed, err.Error())
		}
		if err := k.Positions.Set(ctx, position.ID, position); err != nil {
			return nil, err
		}
		emit(ctx, sdk.NewEvent(types.EventTypePositionOpened,
			sdk.NewAttribute(types.AttributeKeyPositionID, fmt.Sprint(position.ID)),
			sdk.NewAttribute(types.AttributeKeyKind, string(position.Kind)),
			sdk.NewAttribute(types.AttributeKeyLowerTick, fmt.Sprint(position.LowerTick)),
			sdk.NewAttribute(types.AttributeKeyUpperTick, fmt.Sprint(position.UpperTick)),
			sdk.NewAttribute(types.AttributeKeyLiquidity, position.Liquidity.String()),
			sdk.NewAttribute(types.AttributeKeyAmount0, res.Amount0.String()),
			sdk.NewAttribute(types.AttributeKeyAmount1, res.Amount1.String()),
		))
		opened = append(opened, position)
	}

	if err := k.Funds.Set(ctx, funds); err != nil {
		return nil, err
	}
	return opened, nil
}

// withdrawProportional removes shares/supply of every position's liquidity and of the
// idle balances, and returns the amounts released for the withdrawer. Fees collected
// along the way are split first, so the withdrawer's idle share includes their net part.
func (k Keeper) withdrawProportional(ctx context.Context, shares, supply sdkmath.Int) (types.Funds, error) {
	positions, err := k.positions(ctx)
	if err != nil {
		return types.Funds{}, err
	}
	funds, err := k.funds(ctx)
	if err != nil {
		return types.Funds{}, err
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return types.Funds{}, err
	}

	principal := types.ZeroFunds()
	for _, p := range positions {
		atoms, err := utils.MulDiv(utils.Atomics(p.Liquidity), shares, supply)
		if err != nil {
			return types.Funds{}, mathError("liquidity share", err)
		}
		liquidity := utils.DecFromAtomics(atoms)

		out, err := k.pool.WithdrawLiquidity(ctx, VaultAddress, p.ID, liquidity)
		if err != nil {
			return types.Funds{}, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "withdraw from position %d: %s", p.ID, err)
		}
		net, err := collectFees(&fees, out.Fees())
		if err != nil {
			return types.Funds{}, err
		}
		if funds, err = addFunds(funds, net); err != nil {
			return types.Funds{}, mathError("idle balances", err)
		}
		if principal, err = addFunds(principal, out.Principal()); err != nil {
			return types.Funds{}, mathError("withdrawn principal", err)
		}

		p.Liquidity = p.Liquidity.Sub(liquidity)
		if p.Liquidity.IsZero() {
			err = k.Positions.Remove(ctx, p.ID)
		} else {
			err = k.Positions.Set(ctx, p.ID, p)
		}
		if err != nil {
			return types.Funds{}, err
		}
	}

	idle0, err := utils.MulDiv(funds.Amount0, shares, supply)
	if err != nil {
		return types.Funds{}, mathError("idle share", err)
	}
	idle1, err := utils.MulDiv(funds.Amount1, shares, supply)
	if err != nil {
		return types.Funds{}, mathError("idle share", err)
	}
	idleShare := types.NewFunds(idle0, idle1)
	if funds, err = subFunds(funds, idleShare); err != nil {
		return types.Funds{}, mathError("idle balances", err)
	}

	if err := k.Funds.Set(ctx, funds); err != nil {
		return types.Funds{}, err
	}
	if err := k.Fees.Set(ctx, fees); err != nil {
		return types.Funds{}, err
	}
	payout, err := addFunds(principal, idleShare)
	if err != nil {
		return types.Funds{}, mathError("payout", err)
	}
	return payout, nil
}

// roundingAllowance is added to each side of a position's principal when a deposit is
// priced. The pool rounds principal down by less than one unit, so the quote values the
// vault at an upper bound of what its shares can later withdraw.
var roundingAllowance = sdkmath.OneInt()

// TotalAssets values the vault: idle balances plus, for every position, its principal
// and its uncollected fees net of the protocol and admin cut.
func (k Keeper) TotalAssets(ctx context.Context) (types.TotalAssets, error) {
	return k.valueAssets(ctx, sdkmath.ZeroInt())
}

// depositValuation is TotalAssets with the rounding allowance on every position.
func (k Keeper) depositValuation(ctx context.Context) (types.TotalAssets, error) {
	return k.valueAssets(ctx, roundingAllowance)
}

func (k Keeper) valueAssets(ctx context.Context, allowance sdkmath.Int) (types.TotalAssets, error) {
	idle, err := k.funds(ctx)
	if err != nil {
		return types.TotalAssets{}, err
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return types.TotalAssets{}, err
	}
	positions, err := k.positions(ctx)
	if err != nil {
		return types.TotalAssets{}, err
	}

	deployed := types.ZeroFunds()
	for _, p := range positions {
		value, err := k.pool.PositionValue(ctx, p.ID)
		if err != nil {
			return types.TotalAssets{}, errorsmod.Wrapf(types.ErrPoolInteractionFailed, "value of position %d: %s", p.ID, err)
		}
		net, err := netOfFees(fees, value.Fees())
		if err != nil {
			return types.TotalAssets{}, err
		}
		if deployed, err = addFunds(deployed, value.Principal(), net, types.NewFunds(allowance, allowance)); err != nil {
			return types.TotalAssets{}, mathError("position value", err)
		}
	}

	total, err := addFunds(idle, deployed)
	if err != nil {
		return types.TotalAssets{}, mathError("total assets", err)
	}
	supply, err := k.TotalSupply(ctx)
	if err != nil {
		return types.TotalAssets{}, err
	}
	return types.TotalAssets{Idle: idle, Positions: deployed, Total: total, Supply: supply}, nil
}

// feeCut returns the protocol and admin parts of a collected fee amount.
func feeCut(fees types.FeeState, amount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	protocol, err := utils.MulDec(amount, fees.ProtocolFee)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, mathError("protocol fee", err)
	}
	admin, err := utils.MulDec(amount, fees.AdminFee)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, mathError("admin fee", err)
	}
	return protocol, admin, nil
}

// netOfFees is the part of collected fees that belongs to shareholders.
func netOfFees(fees types.FeeState, collected types.Funds) (types.Funds, error) {
	p0, a0, err := feeCut(fees, collected.Amount0)
	if err != nil {
		return types.Funds{}, err
	}
	p1, a1, err := feeCut(fees, collected.Amount1)
	if err != nil {
		return types.Funds{}, err
	}
	return types.NewFunds(collected.Amount0.Sub(p0).Sub(a0), collected.Amount1.Sub(p1).Sub(a1)), nil
}

// collectFees books the protocol and admin cut of collected fees in fees and returns
// the shareholders' part.
func collectFees(fees *types.FeeState, collected types.Funds) (types.Funds, error) {
	p0, a0, err := feeCut(*fees, collected.Amount0)
	if err != nil {
		return types.Funds{}, err
	}
	p1, a1, err := feeCut(*fees, collected.Amount1)
	if err != nil {
		return types.Funds{}, err
	}
	if fees.Protocol, err = addFunds(fees.Protocol, types.NewFunds(p0, p1)); err != nil {
		return types.Funds{}, mathError("protocol fee tokens", err)
	}
	if fees.Admin, err = addFunds(fees.Admin, types.NewFunds(a0, a1)); err != nil {
		return types.Funds{}, mathError("admin fee tokens", err)
	}
	return types.NewFunds(collected.Amount0.Sub(p0).Sub(a0), collected.Amount1.Sub(p1).Sub(a1)), nil
}

func addFunds(base types.Funds, more ...types.Funds) (types.Funds, error) {
	out := base
	for _, f := range more {
		a0, err := utils.Add(out.Amount0, f.Amount0)
		if err != nil {
			return types.Funds{}, err
		}
		a1, err := utils.Add(out.Amount1, f.Amount1)
		if err != nil {
			return types.Funds{}, err
		}
		out = types.NewFunds(a0, a1)
	}
	return out, nil
}

func subFunds(base, less types.Funds) (types.Funds, error) {
	if less.Amount0.GT(base.Amount0) || less.Amount1.GT(base.Amount1) {
		return types.Funds{}, fmt.Errorf("%s exceeds %s", less, base)
	}
	return types.NewFunds(base.Amount0.Sub(less.Amount0), base.Amount1.Sub(less.Amount1)), nil
}
