package main

import (
	"fmt"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/elys-network/clvault/internal/config"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
	"github.com/elys-network/clvault/internal/wallet"
)

const (
	flagNode           = "node"
	flagFrom           = "from"
	flagKeyringBackend = "keyring-backend"
	flagKeyringDir     = "keyring-dir"
	flagMin0           = "min0"
	flagMin1           = "min1"
	flagRecipient      = "recipient"
)

// clientViper returns the configuration with the changed client flags applied.
func clientViper(cmd *cobra.Command) *viper.Viper {
	v := config.NewViper()
	for _, name := range []string{flagKeyringBackend, flagKeyringDir} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			v.Set(strings.ReplaceAll(name, "-", "_"), f.Value.String())
		}
	}
	if f := cmd.Flags().Lookup(flagNode); f != nil && f.Changed {
		v.Set("node_grpc", f.Value.String())
	}
	return v
}

// dial connects to the node named by --node, NODE_GRPC or the default endpoint.
// signer may be nil for queries.
func dial(cmd *cobra.Command, signer wallet.Signer) (*wallet.Client, error) {
	endpoint, err := config.NodeEndpoint(clientViper(cmd))
	if err != nil {
		return nil, err
	}
	return wallet.Dial(endpoint, signer)
}

// openKeyring opens the keyring named by --keyring-backend and --keyring-dir, or by
// KEYRING_BACKEND and KEYRING_DIR.
func openKeyring(cmd *cobra.Command) (keyring.Keyring, error) {
	cfg, err := config.Keyring(clientViper(cmd))
	if err != nil {
		return nil, err
	}
	return wallet.OpenKeyring(cfg.Backend, cfg.Dir, cmd.InOrStdin())
}

func addKeyringFlags(flags *pflag.FlagSet) {
	flags.String(flagKeyringBackend, "", "keyring backend: os, file or test (default KEYRING_BACKEND or test)")
	flags.String(flagKeyringDir, "", "keyring directory (default KEYRING_DIR or ~/.clvault)")
}

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Submit vault messages",
	}
	cmd.PersistentFlags().String(flagNode, "", "gRPC endpoint of the node (default NODE_GRPC)")
	cmd.PersistentFlags().String(flagFrom, "", "name of the keyring key that signs and sends the message")
	_ = cmd.MarkPersistentFlagRequired(flagFrom)
	addKeyringFlags(cmd.PersistentFlags())

	deposit := txCommand("deposit [amount0] [amount1]", "Deposit both tokens for shares", 2, func(cmd *cobra.Command, from string, args []string) (types.Msg, error) {
		amount0, err := utils.ParseAmount(args[0])
		if err != nil {
			return nil, err
		}
		amount1, err := utils.ParseAmount(args[1])
		if err != nil {
			return nil, err
		}
		min0, min1, err := minimums(cmd)
		if err != nil {
			return nil, err
		}
		recipient, _ := cmd.Flags().GetString(flagRecipient)
		return types.MsgDeposit{Sender: from, Amount0: amount0, Amount1: amount1, Amount0Min: min0, Amount1Min: min1, Recipient: recipient}, nil
	})
	withMinimums(deposit)

	withdraw := txCommand("withdraw [shares]", "Redeem shares for both tokens", 1, func(cmd *cobra.Command, from string, args []string) (types.Msg, error) {
		shares, err := utils.ParseAmount(args[0])
		if err != nil {
			return nil, err
		}
		min0, min1, err := minimums(cmd)
		if err != nil {
			return nil, err
		}
		recipient, _ := cmd.Flags().GetString(flagRecipient)
		return types.MsgWithdraw{Sender: from, Shares: shares, Amount0Min: min0, Amount1Min: min1, Recipient: recipient}, nil
	})
	withMinimums(withdraw)

	cmd.AddCommand(
		deposit,
		withdraw,
		txCommand("rebalance", "Close every position and redeploy around the current price", 0, func(_ *cobra.Command, from string, _ []string) (types.Msg, error) {
			return types.MsgRebalance{Sender: from}, nil
		}),
		txCommand("transfer [recipient] [amount]", "Send shares to another account", 2, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			amount, err := utils.ParseAmount(args[1])
			if err != nil {
				return nil, err
			}
			return types.MsgTransfer{Sender: from, Recipient: args[0], Amount: amount}, nil
		}),
		txCommand("update-params [base-factor] [limit-factor] [full-range-weight]", "Change the range parameters", 3, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			decs, err := parseDecs(args...)
			if err != nil {
				return nil, err
			}
			return types.MsgUpdateParameters{Sender: from, Params: types.VaultParameters{
				BaseFactor:      decs[0],
				LimitFactor:     decs[1],
				FullRangeWeight: decs[2],
			}}, nil
		}),
		txCommand("change-rebalancer [admin | delegate ADDRESS | anyone PRICE_FACTOR MIN_INTERVAL_SECONDS]", "Change who may rebalance", -1, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			rebalancer, err := parseRebalancer(args)
			if err != nil {
				return nil, err
			}
			return types.MsgChangeRebalancer{Sender: from, Rebalancer: rebalancer}, nil
		}),
		txCommand("propose-admin [address]", "Propose a new admin, or cancel the proposal without an address", -1, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			if len(args) > 1 {
				return nil, fmt.Errorf("expected at most one address, got %d arguments", len(args))
			}
			msg := types.MsgProposeNewAdmin{Sender: from}
			if len(args) == 1 {
				msg.NewAdmin = args[0]
			}
			return msg, nil
		}),
		txCommand("accept-admin", "Accept a pending admin proposal", 0, func(_ *cobra.Command, from string, _ []string) (types.Msg, error) {
			return types.MsgAcceptNewAdmin{Sender: from}, nil
		}),
		txCommand("burn-admin", "Give up the admin role for good", 0, func(_ *cobra.Command, from string, _ []string) (types.Msg, error) {
			return types.MsgBurnAdmin{Sender: from}, nil
		}),
		txCommand("change-admin-fee [fee]", "Change the admin cut of collected fees", 1, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			fee, err := utils.ParseDec(args[0])
			if err != nil {
				return nil, err
			}
			return types.MsgChangeAdminFee{Sender: from, AdminFee: fee}, nil
		}),
		txCommand("change-protocol-fee [fee]", "Change the protocol cut of collected fees", 1, func(_ *cobra.Command, from string, args []string) (types.Msg, error) {
			fee, err := utils.ParseDec(args[0])
			if err != nil {
				return nil, err
			}
			return types.MsgChangeProtocolFee{Sender: from, ProtocolFee: fee}, nil
		}),
		txCommand("withdraw-admin-fees", "Pay out the owed admin fees", 0, func(_ *cobra.Command, from string, _ []string) (types.Msg, error) {
			return types.MsgWithdrawAdminFees{Sender: from}, nil
		}),
		txCommand("withdraw-protocol-fees", "Pay out the owed protocol fees", 0, func(_ *cobra.Command, from string, _ []string) (types.Msg, error) {
			return types.MsgWithdrawProtocolFees{Sender: from}, nil
		}),
	)
	return cmd
}

type msgBuilder func(cmd *cobra.Command, from string, args []string) (types.Msg, error)

// txCommand builds a command that signs the message returned by build with the
// --from key and sends it. build receives the key's address as the sender. nargs < 0
// leaves argument checking to build.
func txCommand(use, short string, nargs int, build msgBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyName, _ := cmd.Flags().GetString(flagFrom)
			kr, err := openKeyring(cmd)
			if err != nil {
				return err
			}
			signer, err := wallet.NewKeyringSigner(kr, keyName)
			if err != nil {
				return err
			}
			msg, err := build(cmd, signer.Address().String(), args)
			if err != nil {
				return err
			}
			client, err := dial(cmd, signer)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Send(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	if nargs >= 0 {
		cmd.Args = cobra.ExactArgs(nargs)
	}
	return cmd
}

func withMinimums(cmd *cobra.Command) {
	cmd.Flags().String(flagMin0, "0", "minimum amount of token0")
	cmd.Flags().String(flagMin1, "0", "minimum amount of token1")
	cmd.Flags().String(flagRecipient, "", "account credited instead of the sender")
}

func minimums(cmd *cobra.Command) (sdkmath.Int, sdkmath.Int, error) {
	s0, _ := cmd.Flags().GetString(flagMin0)
	s1, _ := cmd.Flags().GetString(flagMin1)
	min0, err := utils.ParseAmount(s0)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	min1, err := utils.ParseAmount(s1)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return min0, min1, nil
}

func parseDecs(args ...string) ([]sdkmath.LegacyDec, error) {
	decs := make([]sdkmath.LegacyDec, len(args))
	for i, arg := range args {
		d, err := utils.ParseDec(arg)
		if err != nil {
			return nil, err
		}
		decs[i] = d
	}
	return decs, nil
}

func parseRebalancer(args []string) (types.Rebalancer, error) {
	if len(args) == 0 {
		return types.Rebalancer{}, fmt.Errorf("rebalancer kind is required")
	}
	switch types.RebalancerKind(args[0]) {
	case types.RebalancerAdmin:
		if len(args) != 1 {
			return types.Rebalancer{}, fmt.Errorf("admin takes no arguments")
		}
		return types.AdminRebalancer(), nil
	case types.RebalancerDelegate:
		if len(args) != 2 {
			return types.Rebalancer{}, fmt.Errorf("delegate takes an address")
		}
		addr, err := sdk.AccAddressFromBech32(args[1])
		if err != nil {
			return types.Rebalancer{}, fmt.Errorf("delegate address: %w", err)
		}
		return types.DelegateRebalancer(addr), nil
	case types.RebalancerAnyone:
		if len(args) != 3 {
			return types.Rebalancer{}, fmt.Errorf("anyone takes a price factor and a minimum interval in seconds")
		}
		factor, err := utils.ParseDec(args[1])
		if err != nil {
			return types.Rebalancer{}, err
		}
		interval, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return types.Rebalancer{}, fmt.Errorf("minimum interval: %w", err)
		}
		return types.AnyoneRebalancer(factor, interval), nil
	default:
		return types.Rebalancer{}, fmt.Errorf("unknown rebalancer kind %q", args[0])
	}
}
