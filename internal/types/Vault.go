/*

This file contains the vault's configuration records: identity, authority and the
tunable range parameters.

*/

package types

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// MinLiquidity is the number of shares locked in the vault's own account on the
	// first deposit, and the smallest amount a deposit must exceed on one side.
	MinLiquidity int64 = 1000
	// ShareDecimals is the display precision of vault shares.
	ShareDecimals uint32 = 18
	// TwapWindow is the averaging window an open rebalance compares the spot price to.
	TwapWindow = 60 * time.Second
)

var (
	DefaultProtocolFee = sdkmath.LegacyNewDecWithPrec(5, 2)  // 5%
	MaxProtocolFee     = sdkmath.LegacyNewDecWithPrec(10, 2) // 10%
	MaxAdminFee        = sdkmath.LegacyNewDecWithPrec(50, 2) // 50%

	// MaxTwapDeviation bounds how far the spot price may sit from the TwapWindow
	// average when anyone may rebalance.
	MaxTwapDeviation = sdkmath.LegacyNewDecWithPrec(1, 2) // 1%
	// PositionSlippage is the share of each planned position amount the pool must
	// consume when a rebalance opens it.
	PositionSlippage = sdkmath.LegacyNewDecWithPrec(999, 3)
)

// VaultInfo identifies the vault and the accounts allowed to manage it.
// Admin is empty once the admin role has been burned.
type VaultInfo struct {
	PoolID       uint64         `json:"pool_id"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Admin        sdk.AccAddress `json:"admin,omitempty"`
	PendingAdmin sdk.AccAddress `json:"pending_admin,omitempty"`
	Rebalancer   Rebalancer     `json:"rebalancer"`
}

func (v VaultInfo) HasAdmin() bool { return !v.Admin.Empty() }

// VaultParameters drive the range calculation on every rebalance.
type VaultParameters struct {
	BaseFactor      sdkmath.LegacyDec `json:"base_factor"`       // >= 1, base half-width in tick spacings
	LimitFactor     sdkmath.LegacyDec `json:"limit_factor"`      // > 0, limit width in tick spacings
	FullRangeWeight sdkmath.LegacyDec `json:"full_range_weight"` // in [0, 1]
}

func (p VaultParameters) Validate() error {
	if p.BaseFactor.IsNil() || p.LimitFactor.IsNil() || p.FullRangeWeight.IsNil() {
		return errorsmod.Wrap(ErrInvalidParameters, "all parameters must be set")
	}
	if p.BaseFactor.LT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(ErrInvalidParameters, "base_factor must be >= 1, got %s", p.BaseFactor)
	}
	if !p.LimitFactor.IsPositive() {
		return errorsmod.Wrapf(ErrInvalidParameters, "limit_factor must be > 0, got %s", p.LimitFactor)
	}
	if p.FullRangeWeight.IsNegative() || p.FullRangeWeight.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(ErrInvalidParameters, "full_range_weight must be in [0, 1], got %s", p.FullRangeWeight)
	}
	return nil
}

// RebalancerKind tags the Rebalancer variant.
type RebalancerKind string

const (
	RebalancerAdmin    RebalancerKind = "admin"
	RebalancerDelegate RebalancerKind = "delegate"
	RebalancerAnyone   RebalancerKind = "anyone"
)

// Rebalancer is the authority allowed to trigger rebalances. Only the fields of the
// active Kind are meaningful.
type Rebalancer struct {
	Kind RebalancerKind `json:"kind"`

	// Delegate
	Address sdk.AccAddress `json:"address,omitempty"`

	// Anyone: the price must have left [last/PriceFactor, last*PriceFactor] and at least
	// MinIntervalSeconds must have passed since the last rebalance.
	PriceFactor        sdkmath.LegacyDec `json:"price_factor"`
	MinIntervalSeconds uint64            `json:"min_interval_seconds,omitempty"`
}

func AdminRebalancer() Rebalancer {
	return Rebalancer{Kind: RebalancerAdmin, PriceFactor: sdkmath.LegacyZeroDec()}
}

func DelegateRebalancer(addr sdk.AccAddress) Rebalancer {
	return Rebalancer{Kind: RebalancerDelegate, Address: addr, PriceFactor: sdkmath.LegacyZeroDec()}
}

func AnyoneRebalancer(priceFactor sdkmath.LegacyDec, minIntervalSeconds uint64) Rebalancer {
	return Rebalancer{Kind: RebalancerAnyone, PriceFactor: priceFactor, MinIntervalSeconds: minIntervalSeconds}
}

func (r Rebalancer) Validate() error {
	switch r.Kind {
	case RebalancerAdmin:
		return nil
	case RebalancerDelegate:
		if err := sdk.VerifyAddressFormat(r.Address); err != nil {
			return errorsmod.Wrapf(ErrInvalidParameters, "delegate rebalancer address: %s", err)
		}
		return nil
	case RebalancerAnyone:
		if r.PriceFactor.IsNil() || r.PriceFactor.LT(sdkmath.LegacyOneDec()) {
			return errorsmod.Wrap(ErrInvalidParameters, "anyone rebalancer price_factor must be >= 1")
		}
		return nil
	default:
		return errorsmod.Wrapf(ErrInvalidParameters, "unknown rebalancer kind %q", r.Kind)
	}
}

func (r Rebalancer) String() string {
	switch r.Kind {
	case RebalancerDelegate:
		return "delegate(" + r.Address.String() + ")"
	case RebalancerAnyone:
		return "anyone(" + r.PriceFactor.String() + ")"
	default:
		return string(r.Kind)
	}
}

// TokenInfo is the fungible-token metadata of the vault shares.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint32 `json:"decimals"`
}

// FeeState holds the fee rates and the fee tokens owed to the protocol and the
// admin. Owed amounts are not part of the share valuation.
type FeeState struct {
	ProtocolAddress sdk.AccAddress    `json:"protocol_address"`
	ProtocolFee     sdkmath.LegacyDec `json:"protocol_fee"`
	AdminFee        sdkmath.LegacyDec `json:"admin_fee"`
	Protocol        Funds             `json:"protocol_tokens"`
	Admin           Funds             `json:"admin_tokens"`
}

// TotalFee is the fraction of collected fees that does not go to shareholders.
func (f FeeState) TotalFee() sdkmath.LegacyDec {
	return f.ProtocolFee.Add(f.AdminFee)
}
