/*

This file contains the types exchanged with the concentrated liquidity pool.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// PoolState is the part of a pool the vault needs to plan ranges.
type PoolState struct {
	ID           uint64            `json:"id"`
	Token0       string            `json:"token0"`
	Token1       string            `json:"token1"`
	TickSpacing  uint64            `json:"tick_spacing"`
	CurrentTick  int64             `json:"current_tick"`
	SpotPrice    sdkmath.LegacyDec `json:"spot_price"` // token1 per token0
	SpreadFactor sdkmath.LegacyDec `json:"spread_factor"`
}

// OpenPositionResult is returned by the pool when a position is created.
type OpenPositionResult struct {
	PositionID uint64            `json:"position_id"`
	Liquidity  sdkmath.LegacyDec `json:"liquidity"`
	Amount0    sdkmath.Int       `json:"amount0"` // actually consumed
	Amount1    sdkmath.Int       `json:"amount1"`
}

// PositionAmounts is the principal and the uncollected fees of a position, either
// still held (a value query) or paid out (a close or partial withdrawal).
type PositionAmounts struct {
	Amount0 sdkmath.Int `json:"amount0"`
	Amount1 sdkmath.Int `json:"amount1"`
	Fees0   sdkmath.Int `json:"fees0"`
	Fees1   sdkmath.Int `json:"fees1"`
}

func (a PositionAmounts) Principal() Funds { return NewFunds(a.Amount0, a.Amount1) }

func (a PositionAmounts) Fees() Funds { return NewFunds(a.Fees0, a.Fees1) }
