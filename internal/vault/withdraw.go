package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
)

// Withdraw redeems shares for their proportional part of every position and of the
// idle balances. The positions are reduced through the pool right away. Must run on a
// cache branch: a payout below the minimums fails after the pool has been called.
func (k Keeper) Withdraw(ctx context.Context, sender sdk.AccAddress, msg types.MsgWithdraw) (types.MsgWithdrawResponse, error) {
	if err := checkNotVault(sender); err != nil {
		return types.MsgWithdrawResponse{}, err
	}
	recipient, err := recipientOrSender(sender, msg.Recipient)
	if err != nil {
		return types.MsgWithdrawResponse{}, err
	}
	balance, err := k.BalanceOf(ctx, sender)
	if err != nil {
		return types.MsgWithdrawResponse{}, err
	}
	if msg.Shares.GT(balance) {
		return types.MsgWithdrawResponse{}, errorsmod.Wrapf(types.ErrInsufficientBalance,
			"%s holds %s shares, withdrawing %s", sender, balance, msg.Shares)
	}
	supply, err := k.TotalSupply(ctx)
	if err != nil {
		return types.MsgWithdrawResponse{}, err
	}

	payout, err := k.withdrawProportional(ctx, msg.Shares, supply)
	if err != nil {
		return types.MsgWithdrawResponse{}, err
	}
	if payout.Amount0.LT(msg.Amount0Min) || payout.Amount1.LT(msg.Amount1Min) {
		return types.MsgWithdrawResponse{}, errorsmod.Wrapf(types.ErrSlippageExceeded,
			"withdrawal pays %s, wanted at least %s/%s", payout, msg.Amount0Min, msg.Amount1Min)
	}
	if err := k.Burn(ctx, sender, msg.Shares); err != nil {
		return types.MsgWithdrawResponse{}, err
	}

	emit(ctx, sdk.NewEvent(types.EventTypeWithdraw,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyRecipient, recipient.String()),
		sdk.NewAttribute(types.AttributeKeyShares, msg.Shares.String()),
		sdk.NewAttribute(types.AttributeKeyAmount0, payout.Amount0.String()),
		sdk.NewAttribute(types.AttributeKeyAmount1, payout.Amount1.String()),
	))
	return types.MsgWithdrawResponse{Amount0: payout.Amount0, Amount1: payout.Amount1}, nil
}
