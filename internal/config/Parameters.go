/*

This file contains the defaults the node builds its genesis from when no genesis file
is configured: an ATOM/USDC pool at price 1 and a vault with a wide base range.

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvault/internal/types"
)

// DefaultVaultParameters makes the base range 100 tick spacings wide on each side of
// the current tick and the limit range 5 spacings wide, and gives the full range half
// of the liquidity shared with the base range.
var DefaultVaultParameters = types.VaultParameters{
	BaseFactor:      sdkmath.LegacyNewDec(100),
	LimitFactor:     sdkmath.LegacyNewDec(5),
	FullRangeWeight: sdkmath.LegacyNewDecWithPrec(5, 1),
}

// DefaultPool is the simulated pool created at genesis.
var DefaultPool = types.PoolGenesis{
	Token0:       "uatom",
	Token1:       "uusdc",
	TickSpacing:  100,
	CurrentTick:  0,
	SpreadFactor: sdkmath.LegacyNewDecWithPrec(3, 3), // 0.3%
}

// DefaultAdminFee is the admin cut of collected pool fees.
var DefaultAdminFee = sdkmath.LegacyNewDecWithPrec(1, 1) // 10%

const (
	DefaultVaultName   = "ATOM/USDC vault"
	DefaultVaultSymbol = "vATOMUSDC"
)

// DefaultGenesis builds a genesis with the default pool and parameters, an admin
// rebalancer and the default protocol fee.
func DefaultGenesis(chainID, admin, protocol string) types.GenesisState {
	return types.GenesisState{
		ChainID: chainID,
		Pool:    DefaultPool,
		Vault: types.MsgInstantiate{
			Admin:           admin,
			Name:            DefaultVaultName,
			Symbol:          DefaultVaultSymbol,
			Rebalancer:      types.AdminRebalancer(),
			Params:          DefaultVaultParameters,
			AdminFee:        DefaultAdminFee,
			ProtocolAddress: protocol,
			ProtocolFee:     types.DefaultProtocolFee,
		},
	}
}

// LoadGenesis returns the configured genesis: GenesisFile when set, the default
// genesis otherwise.
func LoadGenesis() (types.GenesisState, error) {
	if GenesisFile != "" {
		return types.LoadGenesis(GenesisFile)
	}
	g := DefaultGenesis(ChainID, AdminAddress, ProtocolAddress)
	return g, g.Validate()
}
