package vault

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
)

func (k Keeper) UpdateParameters(ctx context.Context, sender sdk.AccAddress, params types.VaultParameters) error {
	if _, err := k.requireAdmin(ctx, sender); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := k.Params.Set(ctx, params); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeParametersUpdated,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute("base_factor", params.BaseFactor.String()),
		sdk.NewAttribute("limit_factor", params.LimitFactor.String()),
		sdk.NewAttribute("full_range_weight", params.FullRangeWeight.String()),
	))
	return nil
}

func (k Keeper) ChangeRebalancer(ctx context.Context, sender sdk.AccAddress, rebalancer types.Rebalancer) error {
	info, err := k.requireAdmin(ctx, sender)
	if err != nil {
		return err
	}
	if err := rebalancer.Validate(); err != nil {
		return err
	}
	info.Rebalancer = rebalancer
	if err := k.Info.Set(ctx, info); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeRebalancerChanged,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyRebalancer, rebalancer.String()),
	))
	return nil
}

// ProposeNewAdmin starts an admin transfer that completes when the proposed account
// accepts it. An empty newAdmin cancels the pending proposal.
func (k Keeper) ProposeNewAdmin(ctx context.Context, sender, newAdmin sdk.AccAddress) error {
	info, err := k.requireAdmin(ctx, sender)
	if err != nil {
		return err
	}
	if newAdmin.Equals(VaultAddress) {
		return errorsmod.Wrap(types.ErrInvalidRequest, "the vault cannot be its own admin")
	}
	info.PendingAdmin = newAdmin
	if err := k.Info.Set(ctx, info); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeAdminProposed,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyAdmin, newAdmin.String()),
	))
	return nil
}

func (k Keeper) AcceptNewAdmin(ctx context.Context, sender sdk.AccAddress) error {
	info, err := k.vaultInfo(ctx)
	if err != nil {
		return err
	}
	if info.PendingAdmin.Empty() {
		return errorsmod.Wrap(types.ErrInvalidRequest, "no admin transfer is pending")
	}
	if !info.PendingAdmin.Equals(sender) {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the proposed admin", sender)
	}
	info.Admin = info.PendingAdmin
	info.PendingAdmin = nil
	if err := k.Info.Set(ctx, info); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeAdminAccepted,
		sdk.NewAttribute(types.AttributeKeyAdmin, sender.String()),
	))
	return nil
}

// BurnAdmin removes the admin role for good. The vault must already run without the
// admin: no pending transfer, an open rebalancer, a zero admin fee and no admin fee
// tokens left to withdraw.
func (k Keeper) BurnAdmin(ctx context.Context, sender sdk.AccAddress) error {
	info, err := k.requireAdmin(ctx, sender)
	if err != nil {
		return err
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return err
	}
	switch {
	case !info.PendingAdmin.Empty():
		return errorsmod.Wrap(types.ErrInvalidRequest, "cancel the pending admin transfer first")
	case info.Rebalancer.Kind != types.RebalancerAnyone:
		return errorsmod.Wrapf(types.ErrInvalidRequest, "rebalancer must be %q, got %q", types.RebalancerAnyone, info.Rebalancer.Kind)
	case !fees.AdminFee.IsZero():
		return errorsmod.Wrap(types.ErrInvalidRequest, "admin fee must be zero")
	case !fees.Admin.IsZero():
		return errorsmod.Wrapf(types.ErrInvalidRequest, "withdraw admin fee tokens %s first", fees.Admin)
	}

	info.Admin = nil
	if err := k.Info.Set(ctx, info); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeAdminBurned,
		sdk.NewAttribute(types.AttributeKeyAdmin, sender.String()),
	))
	k.Logger(ctx).Info("vault admin burned", "admin", sender.String())
	return nil
}

func (k Keeper) ChangeAdminFee(ctx context.Context, sender sdk.AccAddress, fee sdkmath.LegacyDec) error {
	if _, err := k.requireAdmin(ctx, sender); err != nil {
		return err
	}
	if fee.IsNil() || fee.IsNegative() || fee.GT(types.MaxAdminFee) {
		return errorsmod.Wrapf(types.ErrInvalidParameters, "admin fee must be in [0, %s]", types.MaxAdminFee)
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return err
	}
	fees.AdminFee = fee
	return k.setFees(ctx, fees, sender, "admin", fee)
}

func (k Keeper) ChangeProtocolFee(ctx context.Context, sender sdk.AccAddress, fee sdkmath.LegacyDec) error {
	fees, err := k.requireProtocol(ctx, sender)
	if err != nil {
		return err
	}
	if fee.IsNil() || fee.IsNegative() || fee.GT(types.MaxProtocolFee) {
		return errorsmod.Wrapf(types.ErrInvalidParameters, "protocol fee must be in [0, %s]", types.MaxProtocolFee)
	}
	fees.ProtocolFee = fee
	return k.setFees(ctx, fees, sender, "protocol", fee)
}

// WithdrawAdminFees pays out the admin's fee tokens and zeroes them.
func (k Keeper) WithdrawAdminFees(ctx context.Context, sender sdk.AccAddress) (types.MsgFeesResponse, error) {
	if _, err := k.requireAdmin(ctx, sender); err != nil {
		return types.MsgFeesResponse{}, err
	}
	fees, err := k.fees(ctx)
	if err != nil {
		return types.MsgFeesResponse{}, err
	}
	paid := fees.Admin
	fees.Admin = types.ZeroFunds()
	if err := k.Fees.Set(ctx, fees); err != nil {
		return types.MsgFeesResponse{}, err
	}
	emitFeesWithdrawn(ctx, sender, "admin", paid)
	return types.MsgFeesResponse{Paid: paid}, nil
}

// WithdrawProtocolFees pays out the protocol's fee tokens and zeroes them.
func (k Keeper) WithdrawProtocolFees(ctx context.Context, sender sdk.AccAddress) (types.MsgFeesResponse, error) {
	fees, err := k.requireProtocol(ctx, sender)
	if err != nil {
		return types.MsgFeesResponse{}, err
	}
	paid := fees.Protocol
	fees.Protocol = types.ZeroFunds()
	if err := k.Fees.Set(ctx, fees); err != nil {
		return types.MsgFeesResponse{}, err
	}
	emitFeesWithdrawn(ctx, sender, "protocol", paid)
	return types.MsgFeesResponse{Paid: paid}, nil
}

func (k Keeper) setFees(ctx context.Context, fees types.FeeState, sender sdk.AccAddress, receiver string, fee sdkmath.LegacyDec) error {
	if err := k.Fees.Set(ctx, fees); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeFeeChanged,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyFeeReceiver, receiver),
		sdk.NewAttribute(types.AttributeKeyFee, fee.String()),
	))
	return nil
}

func emitFeesWithdrawn(ctx context.Context, sender sdk.AccAddress, receiver string, paid types.Funds) {
	emit(ctx, sdk.NewEvent(types.EventTypeFeesWithdrawn,
		sdk.NewAttribute(types.AttributeKeySender, sender.String()),
		sdk.NewAttribute(types.AttributeKeyFeeReceiver, receiver),
		sdk.NewAttribute(types.AttributeKeyAmount0, paid.Amount0.String()),
		sdk.NewAttribute(types.AttributeKeyAmount1, paid.Amount1.String()),
	))
}
