package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of every registered vault error.
const ModuleName = "clvault"

// Vault errors. Callers distinguish the kind with errors.Is.
var (
	ErrUnauthorized          = errorsmod.Register(ModuleName, 2, "unauthorized")
	ErrInvalidParameters     = errorsmod.Register(ModuleName, 3, "invalid vault parameters")
	ErrSlippageExceeded      = errorsmod.Register(ModuleName, 4, "slippage exceeded")
	ErrInsufficientBalance   = errorsmod.Register(ModuleName, 5, "insufficient balance")
	ErrPoolInteractionFailed = errorsmod.Register(ModuleName, 6, "pool interaction failed")
	ErrInvalidRequest        = errorsmod.Register(ModuleName, 7, "invalid request")
	ErrNothingToRebalance    = errorsmod.Register(ModuleName, 8, "nothing to rebalance")
	ErrRebalanceNotAllowed   = errorsmod.Register(ModuleName, 9, "rebalance not allowed yet")
	ErrOverflow              = errorsmod.Register(ModuleName, 10, "arithmetic overflow")
	ErrVaultNotFound         = errorsmod.Register(ModuleName, 11, "vault not initialized")
	ErrVaultExists           = errorsmod.Register(ModuleName, 12, "vault already initialized")
	ErrInvalidSignature      = errorsmod.Register(ModuleName, 13, "invalid transaction signature")
	ErrWrongSequence         = errorsmod.Register(ModuleName, 14, "wrong account sequence")
)

// ErrZeroLiquidity is returned by a pool when the amounts offered for a position fund
// no liquidity. The vault drops such a range instead of failing the rebalance.
var ErrZeroLiquidity = errorsmod.Register(ModuleName, 15, "amounts fund zero liquidity")
