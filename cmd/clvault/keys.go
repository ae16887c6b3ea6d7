package main

import (
	"github.com/spf13/cobra"

	"github.com/elys-network/clvault/internal/wallet"
)

type keyOutput struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the keys that sign transactions",
	}
	addKeyringFlags(cmd.PersistentFlags())

	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a new secp256k1 key and print its address and mnemonic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, err := openKeyring(cmd)
			if err != nil {
				return err
			}
			addr, mnemonic, err := wallet.CreateKey(kr, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keyOutput{Name: args[0], Address: addr.String(), Mnemonic: mnemonic})
		},
	}

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Print the address of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, err := openKeyring(cmd)
			if err != nil {
				return err
			}
			signer, err := wallet.NewKeyringSigner(kr, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keyOutput{Name: args[0], Address: signer.Address().String()})
		},
	}

	cmd.AddCommand(add, show)
	return cmd
}
