package vault

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

// TotalSupply returns the number of shares in existence.
func (k Keeper) TotalSupply(ctx context.Context) (sdkmath.Int, error) {
	supply, err := k.Supply.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return sdkmath.ZeroInt(), nil
	}
	return supply, err
}

// BalanceOf returns the shares held by addr, zero for unknown holders.
func (k Keeper) BalanceOf(ctx context.Context, addr sdk.AccAddress) (sdkmath.Int, error) {
	balance, err := k.Balances.Get(ctx, addr)
	if errors.Is(err, collections.ErrNotFound) {
		return sdkmath.ZeroInt(), nil
	}
	return balance, err
}

// Mint creates shares for to.
func (k Keeper) Mint(ctx context.Context, to sdk.AccAddress, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidRequest, "mint amount must be positive, got %s", amount)
	}
	supply, err := k.TotalSupply(ctx)
	if err != nil {
		return err
	}
	newSupply, err := utils.Add(supply, amount)
	if err != nil {
		return mathError("total supply", err)
	}
	balance, err := k.BalanceOf(ctx, to)
	if err != nil {
		return err
	}
	if err := k.Supply.Set(ctx, newSupply); err != nil {
		return err
	}
	if err := k.setBalance(ctx, to, balance.Add(amount)); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeMint,
		sdk.NewAttribute(types.AttributeKeyRecipient, to.String()),
		sdk.NewAttribute(types.AttributeKeyShares, amount.String()),
	))
	return nil
}

// Burn destroys shares held by from.
func (k Keeper) Burn(ctx context.Context, from sdk.AccAddress, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidRequest, "burn amount must be positive, got %s", amount)
	}
	balance, err := k.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if balance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s holds %s shares, burning %s", from, balance, amount)
	}
	supply, err := k.TotalSupply(ctx)
	if err != nil {
		return err
	}
	if supply.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "total supply %s below burn amount %s", supply, amount)
	}
	if err := k.Supply.Set(ctx, supply.Sub(amount)); err != nil {
		return err
	}
	if err := k.setBalance(ctx, from, balance.Sub(amount)); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeBurn,
		sdk.NewAttribute(types.AttributeKeySender, from.String()),
		sdk.NewAttribute(types.AttributeKeyShares, amount.String()),
	))
	return nil
}

// Transfer moves shares between holders. Supply is unchanged.
func (k Keeper) Transfer(ctx context.Context, from, to sdk.AccAddress, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidRequest, "transfer amount must be positive, got %s", amount)
	}
	if err := checkNotVault(from); err != nil {
		return err
	}
	if to.Equals(VaultAddress) {
		return errorsmod.Wrap(types.ErrInvalidRequest, "shares cannot be sent to the vault")
	}
	fromBalance, err := k.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if fromBalance.LT(amount) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "%s holds %s shares, sending %s", from, fromBalance, amount)
	}
	if from.Equals(to) {
		return nil
	}
	toBalance, err := k.BalanceOf(ctx, to)
	if err != nil {
		return err
	}
	if err := k.setBalance(ctx, from, fromBalance.Sub(amount)); err != nil {
		return err
	}
	if err := k.setBalance(ctx, to, toBalance.Add(amount)); err != nil {
		return err
	}
	emit(ctx, sdk.NewEvent(types.EventTypeTransfer,
		sdk.NewAttribute(types.AttributeKeySender, from.String()),
		sdk.NewAttribute(types.AttributeKeyRecipient, to.String()),
		sdk.NewAttribute(types.AttributeKeyShares, amount.String()),
	))
	return nil
}

// Holders lists every non-zero balance in address order.
func (k Keeper) Holders(ctx context.Context) ([]types.HolderBalance, error) {
	var holders []types.HolderBalance
	err := k.Balances.Walk(ctx, nil, func(addr sdk.AccAddress, balance sdkmath.Int) (bool, error) {
		holders = append(holders, types.HolderBalance{Address: addr.String(), Balance: balance})
		return false, nil
	})
	return holders, err
}

// AssertInvariant checks that balances are non-negative and sum to the total supply,
// and that every recorded position has ordered bounds.
func (k Keeper) AssertInvariant(ctx context.Context) error {
	sum := sdkmath.ZeroInt()
	err := k.Balances.Walk(ctx, nil, func(addr sdk.AccAddress, balance sdkmath.Int) (bool, error) {
		if balance.IsNegative() {
			return true, fmt.Errorf("negative balance %s for %s", balance, addr)
		}
		sum = sum.Add(balance)
		return false, nil
	})
	if err != nil {
		return err
	}
	supply, err := k.TotalSupply(ctx)
	if err != nil {
		return err
	}
	if supply.IsNegative() {
		return fmt.Errorf("negative total supply %s", supply)
	}
	if !sum.Equal(supply) {
		return fmt.Errorf("sum of balances %s does not match total supply %s", sum, supply)
	}
	return k.Positions.Walk(ctx, nil, func(_ uint64, p types.Position) (bool, error) {
		return false, p.Validate()
	})
}

func (k Keeper) setBalance(ctx context.Context, addr sdk.AccAddress, balance sdkmath.Int) error {
	if balance.IsZero() {
		return k.Balances.Remove(ctx, addr)
	}
	return k.Balances.Set(ctx, addr, balance)
}
