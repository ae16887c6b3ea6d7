/*

This file contains the genesis document a node starts from: the simulated pool the
vault is bound to and the vault's creation parameters.

*/

package types

import (
	"encoding/json"
	"fmt"
	"os"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// PoolGenesis describes the concentrated liquidity pool created at genesis.
type PoolGenesis struct {
	Token0       string            `json:"token0"`
	Token1       string            `json:"token1"`
	TickSpacing  uint64            `json:"tick_spacing"`
	CurrentTick  int64             `json:"current_tick"`
	SpreadFactor sdkmath.LegacyDec `json:"spread_factor"`
}

// GenesisState is applied once, on an empty store. Vault.PoolID is ignored and set
// to the id of the pool created from Pool.
type GenesisState struct {
	ChainID string         `json:"chain_id"`
	Pool    PoolGenesis    `json:"pool"`
	Vault   MsgInstantiate `json:"vault"`
}

func (g GenesisState) Validate() error {
	if g.ChainID == "" {
		return errorsmod.Wrap(ErrInvalidParameters, "chain id must be set")
	}
	if g.Pool.Token0 == "" || g.Pool.Token1 == "" || g.Pool.Token0 == g.Pool.Token1 {
		return errorsmod.Wrapf(ErrInvalidParameters, "pool needs two distinct tokens, got %q and %q", g.Pool.Token0, g.Pool.Token1)
	}
	if g.Pool.TickSpacing == 0 {
		return errorsmod.Wrap(ErrInvalidParameters, "pool tick spacing must be positive")
	}
	if g.Pool.SpreadFactor.IsNil() || g.Pool.SpreadFactor.IsNegative() || g.Pool.SpreadFactor.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrap(ErrInvalidParameters, "pool spread factor must be in [0, 1)")
	}
	vault := g.Vault
	if vault.PoolID == 0 {
		vault.PoolID = 1
	}
	return vault.ValidateBasic()
}

// LoadGenesis reads a JSON genesis document.
func LoadGenesis(path string) (GenesisState, error) {
	var g GenesisState
	bz, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("failed to read genesis file %s: %w", path, err)
	}
	if err := json.Unmarshal(bz, &g); err != nil {
		return g, fmt.Errorf("failed to parse genesis file %s: %w", path, err)
	}
	return g, g.Validate()
}
