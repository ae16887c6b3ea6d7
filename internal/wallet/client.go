// Package wallet is the client side of the vault service: it signs messages with a
// keyring key, submits them and runs the read-only queries.
package wallet

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/rpc"
	"github.com/elys-network/clvault/internal/types"
)

var (
	ErrAddressInvalid        = errors.New("address is invalid")
	ErrGRPCConnectionInvalid = errors.New("gRPC connection is invalid")
	ErrUnknownMessage        = errors.New("unknown message type")
	ErrNoSender              = errors.New("client has no signing key")
	ErrKeyringInit           = errors.New("keyring initialization failed")
	ErrKeyNotFound           = errors.New("signing key not found")
	ErrTxSignFailed          = errors.New("transaction signing failed")
	ErrSenderMismatch        = errors.New("message sender is not the signing key")
	ErrTxBroadcastFailed     = errors.New("transaction broadcast failed")
	ErrResponseInvalid       = errors.New("response could not be decoded")
)

var methodsByType = map[string]string{
	types.MsgDeposit{}.Type():              rpc.MethodDeposit,
	types.MsgWithdraw{}.Type():             rpc.MethodWithdraw,
	types.MsgRebalance{}.Type():            rpc.MethodRebalance,
	types.MsgTransfer{}.Type():             rpc.MethodTransfer,
	types.MsgUpdateParameters{}.Type():     rpc.MethodUpdateParameters,
	types.MsgChangeRebalancer{}.Type():     rpc.MethodChangeRebalancer,
	types.MsgProposeNewAdmin{}.Type():      rpc.MethodProposeNewAdmin,
	types.MsgAcceptNewAdmin{}.Type():       rpc.MethodAcceptNewAdmin,
	types.MsgBurnAdmin{}.Type():            rpc.MethodBurnAdmin,
	types.MsgChangeAdminFee{}.Type():       rpc.MethodChangeAdminFee,
	types.MsgChangeProtocolFee{}.Type():    rpc.MethodChangeProtocolFee,
	types.MsgWithdrawAdminFees{}.Type():    rpc.MethodWithdrawAdminFees,
	types.MsgWithdrawProtocolFees{}.Type(): rpc.MethodWithdrawProtocolFees,
}

// Client talks to a node over gRPC. Messages are signed by the client's signer and
// the typed helpers send them from the signer's address. Sends must not overlap,
// since each one reads the account sequence before signing.
type Client struct {
	conn     *grpc.ClientConn
	signer   Signer
	chainID  string
	ownsConn bool
	log      zerolog.Logger
}

// Dial connects to target without transport security. signer may be nil for a
// query-only client.
func Dial(target string, signer Signer, opts ...grpc.DialOption) (*Client, error) {
	if target == "" {
		return nil, errors.Join(ErrGRPCConnectionInvalid, errors.New("target is empty"))
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	dialOpts = append(dialOpts, rpc.DialOptions()...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, errors.Join(ErrGRPCConnectionInvalid, err)
	}
	c, err := NewClient(conn, signer)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.ownsConn = true
	return c, nil
}

// NewClient wraps an existing connection. The connection must have been created
// with rpc.DialOptions.
func NewClient(conn *grpc.ClientConn, signer Signer) (*Client, error) {
	if conn == nil {
		return nil, errors.Join(ErrGRPCConnectionInvalid, errors.New("connection is nil"))
	}
	if signer != nil {
		if err := sdk.VerifyAddressFormat(signer.Address()); err != nil {
			return nil, errors.Join(ErrAddressInvalid, err)
		}
	}
	return &Client{conn: conn, signer: signer, log: logger.GetForComponent("wallet_client")}, nil
}

// Sender returns the bech32 address of the signer, empty for a query-only client.
func (c *Client) Sender() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().String()
}

// Close closes the connection when the client created it.
func (c *Client) Close() error {
	if !c.ownsConn {
		return nil
	}
	return c.conn.Close()
}

// Send signs msg at the account's next sequence, submits it and returns the
// committed result. The message sender must be the signer.
func (c *Client) Send(ctx context.Context, msg types.Msg) (*rpc.TxResponse, error) {
	method, ok := methodsByType[msg.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type())
	}
	if c.signer == nil {
		return nil, ErrNoSender
	}
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	chainID, err := c.chain(ctx)
	if err != nil {
		return nil, err
	}
	account, err := c.Account(ctx, c.signer.Address().String())
	if err != nil {
		return nil, err
	}
	tx, err := SignTx(c.signer, chainID, account.Sequence, msg)
	if err != nil {
		return nil, err
	}

	resp := new(rpc.TxResponse)
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), tx, resp); err != nil {
		c.log.Warn().Err(err).Str("msg_type", msg.Type()).Msg("Transaction rejected")
		return nil, fmt.Errorf("%w: %w", ErrTxBroadcastFailed, err)
	}
	c.log.Info().
		Str("msg_type", msg.Type()).
		Uint64("sequence", tx.Sequence).
		Int64("height", resp.Height).
		Int("events", len(resp.Events)).
		Msg("Transaction committed")
	return resp, nil
}

// chain returns the node's chain id, asking the node once.
func (c *Client) chain(ctx context.Context) (string, error) {
	if c.chainID != "" {
		return c.chainID, nil
	}
	info, err := c.NodeInfo(ctx)
	if err != nil {
		return "", err
	}
	c.chainID = info.ChainID
	return c.chainID, nil
}

func (c *Client) senderAddress() (string, error) {
	if c.signer == nil {
		return "", ErrNoSender
	}
	return c.signer.Address().String(), nil
}

func sendTyped[R any](ctx context.Context, c *Client, msg types.Msg) (R, error) {
	var out R
	resp, err := c.Send(ctx, msg)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, errors.Join(ErrResponseInvalid, err)
	}
	return out, nil
}

// Deposit deposits up to amount0/amount1, crediting the shares to the sender.
func (c *Client) Deposit(ctx context.Context, amount0, amount1, amount0Min, amount1Min sdkmath.Int) (types.MsgDepositResponse, error) {
	sender, err := c.senderAddress()
	if err != nil {
		return types.MsgDepositResponse{}, err
	}
	return sendTyped[types.MsgDepositResponse](ctx, c, types.MsgDeposit{
		Sender:     sender,
		Amount0:    amount0,
		Amount1:    amount1,
		Amount0Min: amount0Min,
		Amount1Min: amount1Min,
	})
}

// Withdraw burns shares and returns the tokens paid to the sender.
func (c *Client) Withdraw(ctx context.Context, shares, amount0Min, amount1Min sdkmath.Int) (types.MsgWithdrawResponse, error) {
	sender, err := c.senderAddress()
	if err != nil {
		return types.MsgWithdrawResponse{}, err
	}
	return sendTyped[types.MsgWithdrawResponse](ctx, c, types.MsgWithdraw{
		Sender:     sender,
		Shares:     shares,
		Amount0Min: amount0Min,
		Amount1Min: amount1Min,
	})
}

func (c *Client) Rebalance(ctx context.Context) (types.MsgRebalanceResponse, error) {
	sender, err := c.senderAddress()
	if err != nil {
		return types.MsgRebalanceResponse{}, err
	}
	return sendTyped[types.MsgRebalanceResponse](ctx, c, types.MsgRebalance{Sender: sender})
}

func (c *Client) Transfer(ctx context.Context, recipient string, amount sdkmath.Int) error {
	sender, err := c.senderAddress()
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, types.MsgTransfer{Sender: sender, Recipient: recipient, Amount: amount})
	return err
}

func query[R any](ctx context.Context, c *Client, method string, req any) (R, error) {
	var out R
	if req == nil {
		req = rpc.Empty{}
	}
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), req, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) VaultInfo(ctx context.Context) (types.VaultInfo, error) {
	return query[types.VaultInfo](ctx, c, rpc.MethodVaultInfo, nil)
}

func (c *Client) Params(ctx context.Context) (types.VaultParameters, error) {
	return query[types.VaultParameters](ctx, c, rpc.MethodParams, nil)
}

func (c *Client) TokenInfo(ctx context.Context) (types.TokenInfo, error) {
	return query[types.TokenInfo](ctx, c, rpc.MethodTokenInfo, nil)
}

func (c *Client) TotalSupply(ctx context.Context) (sdkmath.Int, error) {
	resp, err := query[rpc.SupplyResponse](ctx, c, rpc.MethodTotalSupply, nil)
	return resp.TotalSupply, err
}

// Balance returns the share balance of address, or of the sender when address is
// empty.
func (c *Client) Balance(ctx context.Context, address string) (sdkmath.Int, error) {
	if address == "" {
		sender, err := c.senderAddress()
		if err != nil {
			return sdkmath.Int{}, err
		}
		address = sender
	}
	resp, err := query[rpc.BalanceResponse](ctx, c, rpc.MethodBalance, rpc.BalanceRequest{Address: address})
	return resp.Balance, err
}

func (c *Client) Holders(ctx context.Context) ([]types.HolderBalance, error) {
	resp, err := query[rpc.HoldersResponse](ctx, c, rpc.MethodHolders, nil)
	return resp.Holders, err
}

func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	resp, err := query[rpc.PositionsResponse](ctx, c, rpc.MethodPositions, nil)
	return resp.Positions, err
}

func (c *Client) Funds(ctx context.Context) (types.Funds, error) {
	return query[types.Funds](ctx, c, rpc.MethodFunds, nil)
}

func (c *Client) TotalAssets(ctx context.Context) (types.TotalAssets, error) {
	return query[types.TotalAssets](ctx, c, rpc.MethodTotalAssets, nil)
}

func (c *Client) Fees(ctx context.Context) (types.FeeState, error) {
	return query[types.FeeState](ctx, c, rpc.MethodFees, nil)
}

func (c *Client) LastRebalance(ctx context.Context) (rpc.LastRebalanceResponse, error) {
	return query[rpc.LastRebalanceResponse](ctx, c, rpc.MethodLastRebalance, nil)
}

func (c *Client) Pool(ctx context.Context) (types.PoolState, error) {
	return query[types.PoolState](ctx, c, rpc.MethodPool, nil)
}

// Account returns the sequence the next transaction of address must carry.
func (c *Client) Account(ctx context.Context, address string) (rpc.AccountResponse, error) {
	return query[rpc.AccountResponse](ctx, c, rpc.MethodAccount, rpc.AccountRequest{Address: address})
}

func (c *Client) NodeInfo(ctx context.Context) (rpc.NodeInfoResponse, error) {
	return query[rpc.NodeInfoResponse](ctx, c, rpc.MethodNodeInfo, nil)
}
