package vault

import (
	"context"
	"errors"

	"cosmossdk.io/collections"

	"github.com/elys-network/clvault/internal/types"
)

func (k Keeper) GetVaultInfo(ctx context.Context) (types.VaultInfo, error) {
	return k.vaultInfo(ctx)
}

func (k Keeper) GetParams(ctx context.Context) (types.VaultParameters, error) {
	return k.params(ctx)
}

func (k Keeper) GetTokenInfo(ctx context.Context) (types.TokenInfo, error) {
	return getOrNotFound(ctx, k.TokenInfo)
}

// GetPositions returns the recorded positions in id order.
func (k Keeper) GetPositions(ctx context.Context) ([]types.Position, error) {
	if _, err := k.vaultInfo(ctx); err != nil {
		return nil, err
	}
	return k.positions(ctx)
}

// GetFunds returns the idle balances, the assets not deployed in any position.
func (k Keeper) GetFunds(ctx context.Context) (types.Funds, error) {
	return k.funds(ctx)
}

func (k Keeper) GetFees(ctx context.Context) (types.FeeState, error) {
	return k.fees(ctx)
}

// GetLastRebalance returns the record of the last successful rebalance. found is
// false before the first one.
func (k Keeper) GetLastRebalance(ctx context.Context) (record types.RebalanceRecord, found bool, err error) {
	record, err = k.LastRebalance.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return types.RebalanceRecord{}, false, nil
	}
	if err != nil {
		return types.RebalanceRecord{}, false, err
	}
	return record, true, nil
}
