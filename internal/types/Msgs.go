package types

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Msg is a state-changing request. Sender is the bech32 address of the caller and is
// the identity every authorization check runs against.
type Msg interface {
	Type() string
	GetSender() string
	ValidateBasic() error
}

// MsgInstantiate creates the vault. It is applied once, from genesis.
type MsgInstantiate struct {
	Admin           string            `json:"admin"`
	PoolID          uint64            `json:"pool_id"`
	Name            string            `json:"name"`
	Symbol          string            `json:"symbol"`
	Rebalancer      Rebalancer        `json:"rebalancer"`
	Params          VaultParameters   `json:"params"`
	AdminFee        sdkmath.LegacyDec `json:"admin_fee"`
	ProtocolAddress string            `json:"protocol_address"`
	ProtocolFee     sdkmath.LegacyDec `json:"protocol_fee"` // DefaultProtocolFee when unset
}

func (m MsgInstantiate) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(m.Admin); err != nil {
		return errorsmod.Wrapf(ErrInvalidParameters, "admin address: %s", err)
	}
	if _, err := sdk.AccAddressFromBech32(m.ProtocolAddress); err != nil {
		return errorsmod.Wrapf(ErrInvalidParameters, "protocol address: %s", err)
	}
	if m.PoolID == 0 {
		return errorsmod.Wrap(ErrInvalidParameters, "pool id must be set")
	}
	if m.Name == "" || m.Symbol == "" {
		return errorsmod.Wrap(ErrInvalidParameters, "vault name and symbol must be set")
	}
	if err := m.Params.Validate(); err != nil {
		return err
	}
	if err := m.Rebalancer.Validate(); err != nil {
		return err
	}
	if !m.ProtocolFee.IsNil() {
		if err := validateFee(m.ProtocolFee, MaxProtocolFee, "protocol fee"); err != nil {
			return err
		}
	}
	return validateFee(m.AdminFee, MaxAdminFee, "admin fee")
}

type MsgDeposit struct {
	Sender     string      `json:"sender"`
	Amount0    sdkmath.Int `json:"amount0"`
	Amount1    sdkmath.Int `json:"amount1"`
	Amount0Min sdkmath.Int `json:"amount0_min"`
	Amount1Min sdkmath.Int `json:"amount1_min"`
	Recipient  string      `json:"recipient,omitempty"` // defaults to Sender
}

func (m MsgDeposit) Type() string      { return "deposit" }
func (m MsgDeposit) GetSender() string { return m.Sender }

func (m MsgDeposit) ValidateBasic() error {
	if err := validateAddresses(m.Sender, m.Recipient); err != nil {
		return err
	}
	if err := nonNegative(m.Amount0, m.Amount1, m.Amount0Min, m.Amount1Min); err != nil {
		return err
	}
	if m.Amount0.IsZero() && m.Amount1.IsZero() {
		return errorsmod.Wrap(ErrInvalidRequest, "deposit amounts are zero")
	}
	return nil
}

type MsgDepositResponse struct {
	Shares   sdkmath.Int `json:"shares"`
	Used     Funds       `json:"used"`
	Refunded Funds       `json:"refunded"`
}

type MsgWithdraw struct {
	Sender     string      `json:"sender"`
	Shares     sdkmath.Int `json:"shares"`
	Amount0Min sdkmath.Int `json:"amount0_min"`
	Amount1Min sdkmath.Int `json:"amount1_min"`
	Recipient  string      `json:"recipient,omitempty"`
}

func (m MsgWithdraw) Type() string      { return "withdraw" }
func (m MsgWithdraw) GetSender() string { return m.Sender }

func (m MsgWithdraw) ValidateBasic() error {
	if err := validateAddresses(m.Sender, m.Recipient); err != nil {
		return err
	}
	if err := nonNegative(m.Shares, m.Amount0Min, m.Amount1Min); err != nil {
		return err
	}
	if m.Shares.IsZero() {
		return errorsmod.Wrap(ErrInvalidRequest, "withdraw of zero shares")
	}
	return nil
}

type MsgWithdrawResponse struct {
	Amount0 sdkmath.Int `json:"amount0"`
	Amount1 sdkmath.Int `json:"amount1"`
}

type MsgRebalance struct {
	Sender string `json:"sender"`
}

func (m MsgRebalance) Type() string      { return "rebalance" }
func (m MsgRebalance) GetSender() string { return m.Sender }
func (m MsgRebalance) ValidateBasic() error {
	return validateAddresses(m.Sender, "")
}

type MsgRebalanceResponse struct {
	Closed []Position        `json:"closed"`
	Opened []Position        `json:"opened"`
	Idle   Funds             `json:"idle"`
	Price  sdkmath.LegacyDec `json:"price"`
}

type MsgTransfer struct {
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient"`
	Amount    sdkmath.Int `json:"amount"`
}

func (m MsgTransfer) Type() string      { return "transfer" }
func (m MsgTransfer) GetSender() string { return m.Sender }

func (m MsgTransfer) ValidateBasic() error {
	if m.Recipient == "" {
		return errorsmod.Wrap(ErrInvalidRequest, "recipient is required")
	}
	if err := validateAddresses(m.Sender, m.Recipient); err != nil {
		return err
	}
	if err := nonNegative(m.Amount); err != nil {
		return err
	}
	if m.Amount.IsZero() {
		return errorsmod.Wrap(ErrInvalidRequest, "transfer of zero shares")
	}
	return nil
}

type MsgUpdateParameters struct {
	Sender string          `json:"sender"`
	Params VaultParameters `json:"params"`
}

func (m MsgUpdateParameters) Type() string      { return "update_parameters" }
func (m MsgUpdateParameters) GetSender() string { return m.Sender }
func (m MsgUpdateParameters) ValidateBasic() error {
	if err := validateAddresses(m.Sender, ""); err != nil {
		return err
	}
	return m.Params.Validate()
}

type MsgChangeRebalancer struct {
	Sender     string     `json:"sender"`
	Rebalancer Rebalancer `json:"rebalancer"`
}

func (m MsgChangeRebalancer) Type() string      { return "change_rebalancer" }
func (m MsgChangeRebalancer) GetSender() string { return m.Sender }
func (m MsgChangeRebalancer) ValidateBasic() error {
	if err := validateAddresses(m.Sender, ""); err != nil {
		return err
	}
	return m.Rebalancer.Validate()
}

// MsgProposeNewAdmin proposes NewAdmin, or cancels the pending proposal when
// NewAdmin is empty.
type MsgProposeNewAdmin struct {
	Sender   string `json:"sender"`
	NewAdmin string `json:"new_admin,omitempty"`
}

func (m MsgProposeNewAdmin) Type() string      { return "propose_new_admin" }
func (m MsgProposeNewAdmin) GetSender() string { return m.Sender }
func (m MsgProposeNewAdmin) ValidateBasic() error {
	return validateAddresses(m.Sender, m.NewAdmin)
}

type MsgAcceptNewAdmin struct {
	Sender string `json:"sender"`
}

func (m MsgAcceptNewAdmin) Type() string         { return "accept_new_admin" }
func (m MsgAcceptNewAdmin) GetSender() string    { return m.Sender }
func (m MsgAcceptNewAdmin) ValidateBasic() error { return validateAddresses(m.Sender, "") }

type MsgBurnAdmin struct {
	Sender string `json:"sender"`
}

func (m MsgBurnAdmin) Type() string         { return "burn_admin" }
func (m MsgBurnAdmin) GetSender() string    { return m.Sender }
func (m MsgBurnAdmin) ValidateBasic() error { return validateAddresses(m.Sender, "") }

type MsgChangeAdminFee struct {
	Sender   string            `json:"sender"`
	AdminFee sdkmath.LegacyDec `json:"admin_fee"`
}

func (m MsgChangeAdminFee) Type() string      { return "change_admin_fee" }
func (m MsgChangeAdminFee) GetSender() string { return m.Sender }
func (m MsgChangeAdminFee) ValidateBasic() error {
	if err := validateAddresses(m.Sender, ""); err != nil {
		return err
	}
	return validateFee(m.AdminFee, MaxAdminFee, "admin fee")
}

type MsgChangeProtocolFee struct {
	Sender      string            `json:"sender"`
	ProtocolFee sdkmath.LegacyDec `json:"protocol_fee"`
}

func (m MsgChangeProtocolFee) Type() string      { return "change_protocol_fee" }
func (m MsgChangeProtocolFee) GetSender() string { return m.Sender }
func (m MsgChangeProtocolFee) ValidateBasic() error {
	if err := validateAddresses(m.Sender, ""); err != nil {
		return err
	}
	return validateFee(m.ProtocolFee, MaxProtocolFee, "protocol fee")
}

type MsgWithdrawAdminFees struct {
	Sender string `json:"sender"`
}

func (m MsgWithdrawAdminFees) Type() string         { return "withdraw_admin_fees" }
func (m MsgWithdrawAdminFees) GetSender() string    { return m.Sender }
func (m MsgWithdrawAdminFees) ValidateBasic() error { return validateAddresses(m.Sender, "") }

type MsgWithdrawProtocolFees struct {
	Sender string `json:"sender"`
}

func (m MsgWithdrawProtocolFees) Type() string         { return "withdraw_protocol_fees" }
func (m MsgWithdrawProtocolFees) GetSender() string    { return m.Sender }
func (m MsgWithdrawProtocolFees) ValidateBasic() error { return validateAddresses(m.Sender, "") }

// MsgFeesResponse reports fee tokens paid out by a fee withdrawal.
type MsgFeesResponse struct {
	Paid Funds `json:"paid"`
}

// MsgEmptyResponse is returned by messages that only change configuration.
type MsgEmptyResponse struct{}

func validateAddresses(sender, other string) error {
	if _, err := sdk.AccAddressFromBech32(sender); err != nil {
		return errorsmod.Wrapf(ErrInvalidRequest, "sender address: %s", err)
	}
	if other == "" {
		return nil
	}
	if _, err := sdk.AccAddressFromBech32(other); err != nil {
		return errorsmod.Wrapf(ErrInvalidRequest, "address %q: %s", other, err)
	}
	return nil
}

func nonNegative(amounts ...sdkmath.Int) error {
	for _, a := range amounts {
		if a.IsNil() || a.IsNegative() {
			return errorsmod.Wrap(ErrInvalidRequest, "amounts must be set and non-negative")
		}
	}
	return nil
}

func validateFee(fee, max sdkmath.LegacyDec, name string) error {
	if fee.IsNil() || fee.IsNegative() || fee.GT(max) {
		return errorsmod.Wrapf(ErrInvalidParameters, "%s must be in [0, %s]", name, max)
	}
	return nil
}
