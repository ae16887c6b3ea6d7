package vault

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	corestore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/elys-network/clvault/internal/kvstore"
	"github.com/elys-network/clvault/internal/types"
)

// StoreKey is the name of the vault store in the multistore.
const StoreKey = types.ModuleName

// VaultAddress is the vault's own account. It owns the pool positions and holds the
// shares locked on the first deposit.
var VaultAddress = authtypes.NewModuleAddress(types.ModuleName)

var (
	InfoPrefix          = collections.NewPrefix(0)
	ParamsPrefix        = collections.NewPrefix(1)
	TokenInfoPrefix     = collections.NewPrefix(2)
	SupplyPrefix        = collections.NewPrefix(3)
	BalancesPrefix      = collections.NewPrefix(4)
	PositionsPrefix     = collections.NewPrefix(5)
	FundsPrefix         = collections.NewPrefix(6)
	FeesPrefix          = collections.NewPrefix(7)
	LastRebalancePrefix = collections.NewPrefix(8)
)

type Keeper struct {
	storeService corestore.KVStoreService
	pool         PoolKeeper

	Schema        collections.Schema
	Info          collections.Item[types.VaultInfo]
	Params        collections.Item[types.VaultParameters]
	TokenInfo     collections.Item[types.TokenInfo]
	Supply        collections.Item[sdkmath.Int]
	Balances      collections.Map[sdk.AccAddress, sdkmath.Int]
	Positions     collections.Map[uint64, types.Position]
	Funds         collections.Item[types.Funds]
	Fees          collections.Item[types.FeeState]
	LastRebalance collections.Item[types.RebalanceRecord]
}

func NewKeeper(storeService corestore.KVStoreService, pool PoolKeeper) Keeper {
	sb := collections.NewSchemaBuilder(storeService)
	k := Keeper{
		storeService:  storeService,
		pool:          pool,
		Info:          collections.NewItem(sb, InfoPrefix, "info", kvstore.JSONValue[types.VaultInfo]("vault_info")),
		Params:        collections.NewItem(sb, ParamsPrefix, "params", kvstore.JSONValue[types.VaultParameters]("vault_params")),
		TokenInfo:     collections.NewItem(sb, TokenInfoPrefix, "token_info", kvstore.JSONValue[types.TokenInfo]("token_info")),
		Supply:        collections.NewItem(sb, SupplyPrefix, "supply", sdk.IntValue),
		Balances:      collections.NewMap(sb, BalancesPrefix, "balances", sdk.AccAddressKey, sdk.IntValue),
		Positions:     collections.NewMap(sb, PositionsPrefix, "positions", collections.Uint64Key, kvstore.JSONValue[types.Position]("position")),
		Funds:         collections.NewItem(sb, FundsPrefix, "funds", kvstore.JSONValue[types.Funds]("funds")),
		Fees:          collections.NewItem(sb, FeesPrefix, "fees", kvstore.JSONValue[types.FeeState]("fee_state")),
		LastRebalance: collections.NewItem(sb, LastRebalancePrefix, "last_rebalance", kvstore.JSONValue[types.RebalanceRecord]("rebalance_record")),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	k.Schema = schema
	return k
}

func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// Instantiate creates the vault. It fails if a vault already exists, if the pool is
// unknown, or if any parameter is invalid; nothing is written in that case.
func (k Keeper) Instantiate(ctx context.Context, msg types.MsgInstantiate) error {
	if err := msg.ValidateBasic(); err != nil {
		return err
	}
	exists, err := k.Info.Has(ctx)
	if err != nil {
		return err
	}
	if exists {
		return types.ErrVaultExists
	}
	if _, err := k.pool.GetPool(ctx, msg.PoolID); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidParameters, "pool %d: %s", msg.PoolID, err)
	}

	admin := sdk.MustAccAddressFromBech32(msg.Admin)
	protocol := sdk.MustAccAddressFromBech32(msg.ProtocolAddress)
	protocolFee := msg.ProtocolFee
	if protocolFee.IsNil() {
		protocolFee = types.DefaultProtocolFee
	}

	info := types.VaultInfo{
		PoolID:     msg.PoolID,
		Name:       msg.Name,
		Symbol:     msg.Symbol,
		Admin:      admin,
		Rebalancer: msg.Rebalancer,
	}
	fees := types.FeeState{
		ProtocolAddress: protocol,
		ProtocolFee:     protocolFee,
		AdminFee:        msg.AdminFee,
		Protocol:        types.ZeroFunds(),
		Admin:           types.ZeroFunds(),
	}

	return atomic(ctx, func(ctx context.Context) error {
		if err := k.Info.Set(ctx, info); err != nil {
			return err
		}
		if err := k.Params.Set(ctx, msg.Params); err != nil {
			return err
		}
		if err := k.TokenInfo.Set(ctx, types.TokenInfo{Name: msg.Name, Symbol: msg.Symbol, Decimals: types.ShareDecimals}); err != nil {
			return err
		}
		if err := k.Supply.Set(ctx, sdkmath.ZeroInt()); err != nil {
			return err
		}
		if err := k.Funds.Set(ctx, types.ZeroFunds()); err != nil {
			return err
		}
		if err := k.Fees.Set(ctx, fees); err != nil {
			return err
		}
		emit(ctx, sdk.NewEvent(types.EventTypeInstantiate,
			sdk.NewAttribute(types.AttributeKeyPoolID, fmt.Sprint(msg.PoolID)),
			sdk.NewAttribute(types.AttributeKeyAdmin, msg.Admin),
			sdk.NewAttribute(types.AttributeKeyRebalancer, msg.Rebalancer.String()),
		))
		k.Logger(ctx).Info("vault instantiated", "pool_id", msg.PoolID, "name", msg.Name, "rebalancer", msg.Rebalancer.String())
		return nil
	})
}

// IsInstantiated reports whether the vault exists.
func (k Keeper) IsInstantiated(ctx context.Context) (bool, error) {
	return k.Info.Has(ctx)
}

func (k Keeper) vaultInfo(ctx context.Context) (types.VaultInfo, error) {
	return getOrNotFound(ctx, k.Info)
}

func (k Keeper) params(ctx context.Context) (types.VaultParameters, error) {
	return getOrNotFound(ctx, k.Params)
}

func (k Keeper) funds(ctx context.Context) (types.Funds, error) {
	return getOrNotFound(ctx, k.Funds)
}

func (k Keeper) fees(ctx context.Context) (types.FeeState, error) {
	return getOrNotFound(ctx, k.Fees)
}

func getOrNotFound[T any](ctx context.Context, item collections.Item[T]) (T, error) {
	v, err := item.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return v, types.ErrVaultNotFound
	}
	return v, err
}

// atomic runs fn on a cache branch of ctx. The branch, and the events emitted on it,
// are written back only when fn succeeds.
func atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	cacheCtx, write := sdk.UnwrapSDKContext(ctx).CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}

func emit(ctx context.Context, event sdk.Event) {
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(event)
}

func mathError(what string, err error) error {
	return errorsmod.Wrapf(types.ErrOverflow, "%s: %s", what, err)
}
