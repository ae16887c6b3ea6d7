package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/elys-network/clvault/internal/rpc"
	"github.com/elys-network/clvault/internal/wallet"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Read the vault state",
	}
	cmd.PersistentFlags().String(flagNode, "", "gRPC endpoint of the node (default NODE_GRPC)")

	cmd.AddCommand(
		queryCommand("info", "Vault identity, admin and rebalancer", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.VaultInfo(ctx)
		}),
		queryCommand("params", "Range parameters", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.Params(ctx)
		}),
		queryCommand("token", "Share token metadata", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.TokenInfo(ctx)
		}),
		queryCommand("supply", "Total share supply", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			supply, err := c.TotalSupply(ctx)
			return rpc.SupplyResponse{TotalSupply: supply}, err
		}),
		queryCommand("balance [address]", "Share balance of an account", 1, func(ctx context.Context, c *wallet.Client, args []string) (any, error) {
			balance, err := c.Balance(ctx, args[0])
			return rpc.BalanceResponse{Address: args[0], Balance: balance}, err
		}),
		queryCommand("holders", "Every share balance", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			holders, err := c.Holders(ctx)
			return rpc.HoldersResponse{Holders: holders}, err
		}),
		queryCommand("positions", "Open pool positions", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			positions, err := c.Positions(ctx)
			return rpc.PositionsResponse{Positions: positions}, err
		}),
		queryCommand("funds", "Idle balances", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.Funds(ctx)
		}),
		queryCommand("assets", "Vault valuation", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.TotalAssets(ctx)
		}),
		queryCommand("fees", "Fee rates and owed fees", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.Fees(ctx)
		}),
		queryCommand("last-rebalance", "Time, height and price of the last rebalance", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.LastRebalance(ctx)
		}),
		queryCommand("pool", "State of the managed pool", 0, func(ctx context.Context, c *wallet.Client, _ []string) (any, error) {
			return c.Pool(ctx)
		}),
	)
	return cmd
}

type queryFunc func(ctx context.Context, c *wallet.Client, args []string) (any, error)

func queryCommand(use, short string, nargs int, run queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(cmd, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			out, err := run(cmd.Context(), client, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
