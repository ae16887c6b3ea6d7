package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"google.golang.org/grpc"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/vault"
)

// ServiceName is the fully qualified name of the vault service.
const ServiceName = "clvault.v1.Vault"

// Transaction methods, one per message.
const (
	MethodDeposit              = "Deposit"
	MethodWithdraw             = "Withdraw"
	MethodRebalance            = "Rebalance"
	MethodTransfer             = "Transfer"
	MethodUpdateParameters     = "UpdateParameters"
	MethodChangeRebalancer     = "ChangeRebalancer"
	MethodProposeNewAdmin      = "ProposeNewAdmin"
	MethodAcceptNewAdmin       = "AcceptNewAdmin"
	MethodBurnAdmin            = "BurnAdmin"
	MethodChangeAdminFee       = "ChangeAdminFee"
	MethodChangeProtocolFee    = "ChangeProtocolFee"
	MethodWithdrawAdminFees    = "WithdrawAdminFees"
	MethodWithdrawProtocolFees = "WithdrawProtocolFees"
)

// Query methods.
const (
	MethodVaultInfo     = "VaultInfo"
	MethodParams        = "Params"
	MethodTokenInfo     = "TokenInfo"
	MethodTotalSupply   = "TotalSupply"
	MethodBalance       = "Balance"
	MethodHolders       = "Holders"
	MethodPositions     = "Positions"
	MethodFunds         = "Funds"
	MethodTotalAssets   = "TotalAssets"
	MethodFees          = "Fees"
	MethodLastRebalance = "LastRebalance"
	MethodPool          = "Pool"
	MethodAccount       = "Account"
	MethodNodeInfo      = "NodeInfo"
)

// FullMethod returns the gRPC path of a vault method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Host is the node the service runs against. Transactions are authenticated by
// DeliverTx; the service never delivers an unsigned message.
type Host interface {
	DeliverTx(ctx context.Context, tx types.Tx) (app.Result, error)
	Sequence(ctx context.Context, addr sdk.AccAddress) (uint64, error)
	Query(ctx context.Context, fn func(ctx sdk.Context, k vault.Keeper) error) error
	Pool(ctx context.Context) (types.PoolState, error)
	ChainID() string
	Height() int64
}

// TxResponse is the result of a committed message. Response holds the message
// specific response, e.g. a types.MsgDepositResponse for a deposit.
type TxResponse struct {
	Height   int64           `json:"height"`
	Response json.RawMessage `json:"response"`
	Events   []app.Event     `json:"events"`
}

// Decode unmarshals Response into out.
func (r TxResponse) Decode(out any) error {
	if len(r.Response) == 0 {
		return nil
	}
	return json.Unmarshal(r.Response, out)
}

type Empty struct{}

type BalanceRequest struct {
	Address string `json:"address"`
}

type BalanceResponse struct {
	Address string      `json:"address"`
	Balance sdkmath.Int `json:"balance"`
}

// AccountRequest names an account by its bech32 address.
type AccountRequest struct {
	Address string `json:"address"`
}

// AccountResponse carries the sequence the account's next transaction must be
// signed with.
type AccountResponse struct {
	Address  string `json:"address"`
	Sequence uint64 `json:"sequence"`
}

type NodeInfoResponse struct {
	ChainID string `json:"chain_id"`
	Height  int64  `json:"height"`
}

type SupplyResponse struct {
	TotalSupply sdkmath.Int `json:"total_supply"`
}

type HoldersResponse struct {
	Holders []types.HolderBalance `json:"holders"`
}

type PositionsResponse struct {
	Positions []types.Position `json:"positions"`
}

// LastRebalanceResponse has Found false and a nil Record before the first
// rebalance.
type LastRebalanceResponse struct {
	Found  bool                   `json:"found"`
	Record *types.RebalanceRecord `json:"record,omitempty"`
}

// vaultServer is the handler type the service descriptor is registered with.
type vaultServer interface {
	isVaultServer()
}

// Server implements clvault.v1.Vault over a Host. Transaction methods take a
// types.Tx carrying the signed message.
type Server struct {
	host Host
}

func NewServer(host Host) *Server {
	return &Server{host: host}
}

func (*Server) isVaultServer() {}

func (s *Server) deliver(ctx context.Context, tx types.Tx) (*TxResponse, error) {
	res, err := s.host.DeliverTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	bz, err := json.Marshal(res.Response)
	if err != nil {
		return nil, fmt.Errorf("marshal %s response: %w", tx.Type, err)
	}
	return &TxResponse{Height: res.Height, Response: bz, Events: res.Events}, nil
}

func (s *Server) query(ctx context.Context, fn func(ctx sdk.Context, k vault.Keeper) (any, error)) (any, error) {
	var out any
	err := s.host.Query(ctx, func(sdkCtx sdk.Context, k vault.Keeper) error {
		var err error
		out, err = fn(sdkCtx, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ServiceDesc describes clvault.v1.Vault. Requests and responses are plain structs
// carried by the JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*vaultServer)(nil),
	Methods: []grpc.MethodDesc{
		tx[types.MsgDeposit](MethodDeposit),
		tx[types.MsgWithdraw](MethodWithdraw),
		tx[types.MsgRebalance](MethodRebalance),
		tx[types.MsgTransfer](MethodTransfer),
		tx[types.MsgUpdateParameters](MethodUpdateParameters),
		tx[types.MsgChangeRebalancer](MethodChangeRebalancer),
		tx[types.MsgProposeNewAdmin](MethodProposeNewAdmin),
		tx[types.MsgAcceptNewAdmin](MethodAcceptNewAdmin),
		tx[types.MsgBurnAdmin](MethodBurnAdmin),
		tx[types.MsgChangeAdminFee](MethodChangeAdminFee),
		tx[types.MsgChangeProtocolFee](MethodChangeProtocolFee),
		tx[types.MsgWithdrawAdminFees](MethodWithdrawAdminFees),
		tx[types.MsgWithdrawProtocolFees](MethodWithdrawProtocolFees),

		query[Empty](MethodVaultInfo, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.GetVaultInfo(ctx)
		}),
		query[Empty](MethodParams, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.GetParams(ctx)
		}),
		query[Empty](MethodTokenInfo, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.GetTokenInfo(ctx)
		}),
		query[Empty](MethodTotalSupply, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			supply, err := k.TotalSupply(ctx)
			return SupplyResponse{TotalSupply: supply}, err
		}),
		query[BalanceRequest](MethodBalance, func(ctx sdk.Context, k vault.Keeper, req *BalanceRequest) (any, error) {
			addr, err := sdk.AccAddressFromBech32(req.Address)
			if err != nil {
				return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "address: %s", err)
			}
			balance, err := k.BalanceOf(ctx, addr)
			return BalanceResponse{Address: req.Address, Balance: balance}, err
		}),
		query[Empty](MethodHolders, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			holders, err := k.Holders(ctx)
			return HoldersResponse{Holders: holders}, err
		}),
		query[Empty](MethodPositions, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			positions, err := k.GetPositions(ctx)
			return PositionsResponse{Positions: positions}, err
		}),
		query[Empty](MethodFunds, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.GetFunds(ctx)
		}),
		query[Empty](MethodTotalAssets, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.TotalAssets(ctx)
		}),
		query[Empty](MethodFees, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			return k.GetFees(ctx)
		}),
		query[Empty](MethodLastRebalance, func(ctx sdk.Context, k vault.Keeper, _ *Empty) (any, error) {
			record, found, err := k.GetLastRebalance(ctx)
			if err != nil || !found {
				return LastRebalanceResponse{}, err
			}
			return LastRebalanceResponse{Found: true, Record: &record}, nil
		}),
		unary[Empty](MethodPool, func(s *Server, ctx context.Context, _ *Empty) (any, error) {
			return s.host.Pool(ctx)
		}),
		unary[AccountRequest](MethodAccount, func(s *Server, ctx context.Context, req *AccountRequest) (any, error) {
			addr, err := sdk.AccAddressFromBech32(req.Address)
			if err != nil {
				return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "address: %s", err)
			}
			seq, err := s.host.Sequence(ctx, addr)
			return AccountResponse{Address: req.Address, Sequence: seq}, err
		}),
		unary[Empty](MethodNodeInfo, func(s *Server, _ context.Context, _ *Empty) (any, error) {
			return NodeInfoResponse{ChainID: s.host.ChainID(), Height: s.host.Height()}, nil
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clvault/v1/vault.json",
}

func unary[Req any](name string, call func(s *Server, ctx context.Context, req *Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// tx registers a method taking a signed transaction whose message must be an M.
func tx[M types.Msg](name string) grpc.MethodDesc {
	var msg M
	msgType := msg.Type()
	return unary[types.Tx](name, func(s *Server, ctx context.Context, signed *types.Tx) (any, error) {
		if signed.Type != msgType {
			return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "%s takes a %s transaction, got %q", name, msgType, signed.Type)
		}
		return s.deliver(ctx, *signed)
	})
}

func query[Req any](name string, fn func(ctx sdk.Context, k vault.Keeper, req *Req) (any, error)) grpc.MethodDesc {
	return unary[Req](name, func(s *Server, ctx context.Context, req *Req) (any, error) {
		return s.query(ctx, func(sdkCtx sdk.Context, k vault.Keeper) (any, error) {
			return fn(sdkCtx, k, req)
		})
	})
}
