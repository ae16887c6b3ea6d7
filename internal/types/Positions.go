/*

This file contains the types for the vault's pool positions and the balances that are
not deployed in any position.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// PositionKind is the role a position plays in the vault's range strategy.
type PositionKind string

const (
	PositionBase  PositionKind = "base"  // wide range centred on the current tick
	PositionLimit PositionKind = "limit" // one-sided range holding the excess asset
	PositionFull  PositionKind = "full"  // entire valid tick domain
)

// Position is a concentrated liquidity position owned by the vault.
type Position struct {
	ID        uint64            `json:"id"` // assigned by the pool
	Kind      PositionKind      `json:"kind"`
	LowerTick int64             `json:"lower_tick"`
	UpperTick int64             `json:"upper_tick"`
	Liquidity sdkmath.LegacyDec `json:"liquidity"`
}

func (p Position) Validate() error {
	if p.LowerTick >= p.UpperTick {
		return fmt.Errorf("position %d: lower tick %d >= upper tick %d", p.ID, p.LowerTick, p.UpperTick)
	}
	return nil
}

// Funds is an amount of each of the pool's two assets.
type Funds struct {
	Amount0 sdkmath.Int `json:"amount0"`
	Amount1 sdkmath.Int `json:"amount1"`
}

func NewFunds(amount0, amount1 sdkmath.Int) Funds {
	return Funds{Amount0: amount0, Amount1: amount1}
}

func ZeroFunds() Funds {
	return Funds{Amount0: sdkmath.ZeroInt(), Amount1: sdkmath.ZeroInt()}
}

func (f Funds) IsZero() bool { return f.Amount0.IsZero() && f.Amount1.IsZero() }

func (f Funds) String() string { return f.Amount0.String() + "/" + f.Amount1.String() }

// RebalanceRecord remembers the conditions of the last successful rebalance.
type RebalanceRecord struct {
	Time   time.Time         `json:"time"`
	Height int64             `json:"height"`
	Price  sdkmath.LegacyDec `json:"price"`
}
