package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

// shareQuote is the outcome of pricing a deposit against the current valuation.
type shareQuote struct {
	Shares sdkmath.Int
	Used0  sdkmath.Int
	Used1  sdkmath.Int
}

// Deposit mints shares for the consumed part of the deposited amounts and adds that
// part to idle balances. The rest is refunded. Deployment waits for the next rebalance.
func (k Keeper) Deposit(ctx context.Context, sender sdk.AccAddress, msg types.MsgDeposit) (types.MsgDepositResponse, error) {
	recipient, err := recipientOrSender(sender, msg.Recipient)
	if err != nil {
		return types.MsgDepositResponse{}, err
	}
	minLiquidity := sdkmath.NewInt(types.MinLiquidity)
	if !msg.Amount0.GT(minLiquidity) && !msg.Amount1.GT(minLiquidity) {
		return types.MsgDepositResponse{}, errorsmod.Wrapf(types.ErrInvalidRequest,
			"one of the amounts must exceed %s, got %s/%s", minLiquidity, msg.Amount0, msg.Amount1)
	}

	assets, err := k.depositValuation(ctx)
	if err != nil {
		return types.MsgDepositResponse{}, err
	}
	quote, err := quoteShares(msg.Amount0, msg.Amount1, assets.Total, assets.Supply)
	if err != nil {
		return types.MsgDepositResponse{}, err
	}
	if quote.Used0.LT(msg.Amount0Min) || quote.Used1.LT(msg.Amount1Min) {
		return types.MsgDepositResponse{}, errorsmod.Wrapf(types.ErrSlippageExceeded,
			"deposit would use %s/%s, wanted at least %s/%s", quote.Used0, quote.Used1, msg.Amount0Min, msg.Amount1Min)
	}
	if !quote.Shares.IsPositive() {
		return types.MsgDepositResponse{}, errorsmod.Wrapf(types.ErrInvalidRequest,
			"deposit of %s/%s mints no shares", msg.Amount0, msg.Amount1)
	}

	if assets.Supply.IsZero() {
		if err := k.Mint(ctx, VaultAddress, minLiquidity); err != nil {
			return types.MsgDepositResponse{}, err
		}
	}
	if err := k.Mint(ctx, recipient, quote.Shares); err != nil {
		return types.MsgDepositResponse{}, err
	}

	used := types.NewFunds(quote.Used0, quote.Used1)
	funds, err := addFunds(assets.Idle, used)
	if err != nil {
		return types.MsgDepositResponse{}, mathError("idle balances", err)
	}
	if err := k.Funds.Set(ctx, funds); err != nil {
		return types.MsgDepositResponse{}, err
	}

	emit(ctx, sdk.NewEvent(types.EventTypeDeposit,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyRecipient, recipient.String()),
		sdk.NewAttribute(types.AttributeKeyShares, quote.Shares.String()),
		sdk.NewAttribute(types.AttributeKeyAmount0, quote.Used0.String()),
		sdk.NewAttribute(types.AttributeKeyAmount1, quote.Used1.String()),
	))

	return types.MsgDepositResponse{
		Shares:   quote.Shares,
		Used:     used,
		Refunded: types.NewFunds(msg.Amount0.Sub(quote.Used0), msg.Amount1.Sub(quote.Used1)),
	}, nil
}

// quoteShares prices a deposit of (a0, a1) against a vault holding (t0, t1) with the
// given supply. The first deposit mints max(a0, a1) shares and uses both amounts. Later
// deposits use amounts in the vault's own proportion:
//
//	cross  = min(a0*t1, a1*t0)
//	used0  = ceil(cross/t1), used1 = ceil(cross/t0)
//	shares = floor(cross*supply/(t0*t1))
func quoteShares(a0, a1 sdkmath.Int, total types.Funds, supply sdkmath.Int) (shareQuote, error) {
	t0, t1 := total.Amount0, total.Amount1
	zero := sdkmath.ZeroInt()

	switch {
	case supply.IsZero():
		return shareQuote{Shares: sdkmath.MaxInt(a0, a1), Used0: a0, Used1: a1}, nil

	case t0.IsZero() && t1.IsZero():
		return shareQuote{}, errorsmod.Wrap(types.ErrInvalidRequest, "vault has shares but holds no assets")

	case t0.IsZero():
		shares, err := utils.MulDiv(a1, supply, t1)
		if err != nil {
			return shareQuote{}, mathError("shares", err)
		}
		return shareQuote{Shares: shares, Used0: zero, Used1: a1}, nil

	case t1.IsZero():
		shares, err := utils.MulDiv(a0, supply, t0)
		if err != nil {
			return shareQuote{}, mathError("shares", err)
		}
		return shareQuote{Shares: shares, Used0: a0, Used1: zero}, nil
	}

	x, err := utils.Mul(a0, t1)
	if err != nil {
		return shareQuote{}, mathError("deposit cross product", err)
	}
	y, err := utils.Mul(a1, t0)
	if err != nil {
		return shareQuote{}, mathError("deposit cross product", err)
	}
	cross := sdkmath.MinInt(x, y)
	if cross.IsZero() {
		return shareQuote{Shares: zero, Used0: zero, Used1: zero}, nil
	}

	used0, err := utils.QuoCeil(cross, t1)
	if err != nil {
		return shareQuote{}, mathError("used amount0", err)
	}
	used1, err := utils.QuoCeil(cross, t0)
	if err != nil {
		return shareQuote{}, mathError("used amount1", err)
	}
	// floor(cross*supply/(t0*t1)) without the quadruple product
	s0, err := utils.MulDiv(a0, supply, t0)
	if err != nil {
		return shareQuote{}, mathError("shares", err)
	}
	s1, err := utils.MulDiv(a1, supply, t1)
	if err != nil {
		return shareQuote{}, mathError("shares", err)
	}
	return shareQuote{Shares: sdkmath.MinInt(s0, s1), Used0: used0, Used1: used1}, nil
}

func recipientOrSender(sender sdk.AccAddress, recipient string) (sdk.AccAddress, error) {
	to := sender
	if recipient != "" {
		addr, err := sdk.AccAddressFromBech32(recipient)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "recipient: %s", err)
		}
		to = addr
	}
	if to.Equals(VaultAddress) {
		return nil, errorsmod.Wrap(types.ErrInvalidRequest, "the vault cannot be the recipient")
	}
	return to, nil
}
