package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
)

// MsgServer routes messages to the keeper. Every message runs on its own cache
// branch, so a failing message leaves no writes and no events behind.
type MsgServer struct {
	k Keeper
}

func NewMsgServer(k Keeper) MsgServer {
	return MsgServer{k: k}
}

// Handle validates msg, authenticates its sender and applies it.
func (s MsgServer) Handle(ctx context.Context, msg types.Msg) (any, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	sender, err := sdk.AccAddressFromBech32(msg.GetSender())
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "sender: %s", err)
	}
	if err := checkNotVault(sender); err != nil {
		return nil, err
	}

	var resp any
	err = atomic(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.dispatch(ctx, sender, msg)
		return err
	})
	if err != nil {
		s.k.Logger(ctx).Debug("message rejected", "type", msg.Type(), "sender", msg.GetSender(), "err", err)
		return nil, err
	}
	return resp, nil
}

func (s MsgServer) dispatch(ctx context.Context, sender sdk.AccAddress, msg types.Msg) (any, error) {
	empty := types.MsgEmptyResponse{}

	switch m := msg.(type) {
	case types.MsgDeposit:
		return s.k.Deposit(ctx, sender, m)
	case types.MsgWithdraw:
		return s.k.Withdraw(ctx, sender, m)
	case types.MsgRebalance:
		return s.k.Rebalance(ctx, sender)
	case types.MsgTransfer:
		to, err := recipientOrSender(sender, m.Recipient)
		if err != nil {
			return nil, err
		}
		return empty, s.k.Transfer(ctx, sender, to, m.Amount)
	case types.MsgUpdateParameters:
		return empty, s.k.UpdateParameters(ctx, sender, m.Params)
	case types.MsgChangeRebalancer:
		return empty, s.k.ChangeRebalancer(ctx, sender, m.Rebalancer)
	case types.MsgProposeNewAdmin:
		var newAdmin sdk.AccAddress
		if m.NewAdmin != "" {
			newAdmin = sdk.MustAccAddressFromBech32(m.NewAdmin)
		}
		return empty, s.k.ProposeNewAdmin(ctx, sender, newAdmin)
	case types.MsgAcceptNewAdmin:
		return empty, s.k.AcceptNewAdmin(ctx, sender)
	case types.MsgBurnAdmin:
		return empty, s.k.BurnAdmin(ctx, sender)
	case types.MsgChangeAdminFee:
		return empty, s.k.ChangeAdminFee(ctx, sender, m.AdminFee)
	case types.MsgChangeProtocolFee:
		return empty, s.k.ChangeProtocolFee(ctx, sender, m.ProtocolFee)
	case types.MsgWithdrawAdminFees:
		return s.k.WithdrawAdminFees(ctx, sender)
	case types.MsgWithdrawProtocolFees:
		return s.k.WithdrawProtocolFees(ctx, sender)
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "unknown message type %T", msg)
	}
}

// checkNotVault rejects the vault's own account as a sender. It holds the locked
// MinLiquidity shares and no key exists for it.
func checkNotVault(sender sdk.AccAddress) error {
	if sender.Equals(VaultAddress) {
		return errorsmod.Wrap(types.ErrUnauthorized, "the vault account cannot send messages")
	}
	return nil
}
