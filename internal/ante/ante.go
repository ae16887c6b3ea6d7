// Package ante authenticates signed transactions before their message reaches the
// vault: the signer's key must own the sender address and the account sequence
// must match, which also stops replays.
package ante

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	corestore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvault/internal/types"
)

// StoreKey is the name of the account sequence store in the multistore.
const StoreKey = "clauth"

var SequencesPrefix = collections.NewPrefix(0)

type Authenticator struct {
	Schema    collections.Schema
	Sequences collections.Map[sdk.AccAddress, uint64]
}

func NewAuthenticator(storeService corestore.KVStoreService) Authenticator {
	sb := collections.NewSchemaBuilder(storeService)
	a := Authenticator{
		Sequences: collections.NewMap(sb, SequencesPrefix, "sequences", sdk.AccAddressKey, collections.Uint64Value),
	}
	schema, err := sb.Build()
	if err != nil {
		panic(err)
	}
	a.Schema = schema
	return a
}

// Sequence is the sequence the next transaction of addr must carry.
func (a Authenticator) Sequence(ctx context.Context, addr sdk.AccAddress) (uint64, error) {
	seq, err := a.Sequences.Get(ctx, addr)
	if errors.Is(err, collections.ErrNotFound) {
		return 0, nil
	}
	return seq, err
}

// Authenticate checks tx and consumes the signer's sequence. It returns the decoded
// message, whose sender is proven to be the signer.
func (a Authenticator) Authenticate(ctx context.Context, chainID string, tx types.Tx) (types.Msg, error) {
	if tx.ChainID != chainID {
		return nil, errorsmod.Wrapf(types.ErrInvalidSignature, "chain id %q, expected %q", tx.ChainID, chainID)
	}
	msg, err := tx.GetMsg()
	if err != nil {
		return nil, err
	}
	sender, err := sdk.AccAddressFromBech32(msg.GetSender())
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidRequest, "sender address: %s", err)
	}

	if len(tx.PubKey) != secp256k1.PubKeySize {
		return nil, errorsmod.Wrapf(types.ErrInvalidSignature, "public key must be %d bytes, got %d", secp256k1.PubKeySize, len(tx.PubKey))
	}
	pubKey := &secp256k1.PubKey{Key: tx.PubKey}
	signer := sdk.AccAddress(pubKey.Address())
	if !signer.Equals(sender) {
		return nil, errorsmod.Wrapf(types.ErrInvalidSignature, "signer %s is not the sender %s", signer, sender)
	}
	signBytes, err := tx.SignBytes()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrInvalidRequest, err.Error())
	}
	if !pubKey.VerifySignature(signBytes, tx.Signature) {
		return nil, errorsmod.Wrap(types.ErrInvalidSignature, "signature does not verify")
	}

	seq, err := a.Sequence(ctx, sender)
	if err != nil {
		return nil, err
	}
	if tx.Sequence != seq {
		return nil, errorsmod.Wrapf(types.ErrWrongSequence, "account %s expects sequence %d, got %d", sender, seq, tx.Sequence)
	}
	if err := a.Sequences.Set(ctx, sender, seq+1); err != nil {
		return nil, err
	}
	return msg, nil
}
