package types

// Event types emitted by the vault keeper.
const (
	EventTypeInstantiate       = "vault_instantiate"
	EventTypeDeposit           = "vault_deposit"
	EventTypeWithdraw          = "vault_withdraw"
	EventTypeRebalance         = "vault_rebalance"
	EventTypePositionClosed    = "position_closed"
	EventTypePositionOpened    = "position_opened"
	EventTypeTransfer          = "share_transfer"
	EventTypeMint              = "share_mint"
	EventTypeBurn              = "share_burn"
	EventTypeParametersUpdated = "parameters_updated"
	EventTypeRebalancerChanged = "rebalancer_changed"
	EventTypeAdminProposed     = "admin_proposed"
	EventTypeAdminAccepted     = "admin_accepted"
	EventTypeAdminBurned       = "admin_burned"
	EventTypeFeeChanged        = "fee_changed"
	EventTypeFeesWithdrawn     = "fees_withdrawn"
)

// Event attribute keys.
const (
	AttributeKeySender      = "sender"
	AttributeKeyRecipient   = "recipient"
	AttributeKeyShares      = "shares"
	AttributeKeyAmount0     = "amount0"
	AttributeKeyAmount1     = "amount1"
	AttributeKeyFees0       = "fees0"
	AttributeKeyFees1       = "fees1"
	AttributeKeyPositionID  = "position_id"
	AttributeKeyKind        = "kind"
	AttributeKeyLowerTick   = "lower_tick"
	AttributeKeyUpperTick   = "upper_tick"
	AttributeKeyLiquidity   = "liquidity"
	AttributeKeyPrice       = "price"
	AttributeKeyPoolID      = "pool_id"
	AttributeKeyRebalancer  = "rebalancer"
	AttributeKeyAdmin       = "admin"
	AttributeKeyFee         = "fee"
	AttributeKeyFeeReceiver = "fee_receiver"
)
