/*

This file contains the share balance records exposed through the fungible-token
query surface.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// HolderBalance is one row of the share ledger.
type HolderBalance struct {
	Address string      `json:"address"`
	Balance sdkmath.Int `json:"balance"`
}

// TotalAssets is the vault valuation used for share pricing: idle balances plus
// every position's principal and its fees net of the protocol and admin cut.
type TotalAssets struct {
	Idle      Funds       `json:"idle"`
	Positions Funds       `json:"positions"`
	Total     Funds       `json:"total"`
	Supply    sdkmath.Int `json:"total_supply"`
}
