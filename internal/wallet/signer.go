package wallet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"

	"github.com/elys-network/clvault/internal/types"
)

// KeyringAppName namespaces the keys of this tool inside an OS keyring.
const KeyringAppName = "clvault"

// Signer signs transactions for one account.
type Signer interface {
	Address() sdk.AccAddress
	// Sign returns the compressed public key and the signature over signBytes.
	Sign(signBytes []byte) (pubKey, signature []byte, err error)
}

// KeyringSigner signs with a secp256k1 key held in a cosmos-sdk keyring.
type KeyringSigner struct {
	kr   keyring.Keyring
	name string
	addr sdk.AccAddress
}

func keyringCodec() codec.Codec {
	registry := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(registry)
	return codec.NewProtoCodec(registry)
}

// OpenKeyring opens the keyring of backend (os, file, test, ...) under dir.
func OpenKeyring(backend, dir string, input io.Reader) (keyring.Keyring, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Join(ErrKeyringInit, fmt.Errorf("failed to create keyring directory: %w", err))
	}
	kr, err := keyring.New(KeyringAppName, backend, dir, input, keyringCodec())
	if err != nil {
		return nil, errors.Join(ErrKeyringInit, err)
	}
	return kr, nil
}

// NewInMemoryKeyring returns a keyring that lives only as long as the process.
func NewInMemoryKeyring() keyring.Keyring {
	return keyring.NewInMemory(keyringCodec())
}

// CreateKey generates a new secp256k1 key under name and returns its address and
// the mnemonic it was derived from.
func CreateKey(kr keyring.Keyring, name string) (sdk.AccAddress, string, error) {
	record, mnemonic, err := kr.NewMnemonic(name, keyring.English, sdk.FullFundraiserPath, keyring.DefaultBIP39Passphrase, hd.Secp256k1)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create key %q: %w", name, err)
	}
	addr, err := record.GetAddress()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read address of key %q: %w", name, err)
	}
	return addr, mnemonic, nil
}

// NewKeyringSigner signs with the key called name.
func NewKeyringSigner(kr keyring.Keyring, name string) (*KeyringSigner, error) {
	record, err := kr.Key(name)
	if err != nil {
		return nil, errors.Join(ErrKeyNotFound, fmt.Errorf("key %q: %w", name, err))
	}
	addr, err := record.GetAddress()
	if err != nil {
		return nil, errors.Join(ErrKeyNotFound, err)
	}
	if err := sdk.VerifyAddressFormat(addr); err != nil {
		return nil, errors.Join(ErrAddressInvalid, err)
	}
	return &KeyringSigner{kr: kr, name: name, addr: addr}, nil
}

func (s *KeyringSigner) Address() sdk.AccAddress { return s.addr }

func (s *KeyringSigner) Name() string { return s.name }

func (s *KeyringSigner) Sign(signBytes []byte) ([]byte, []byte, error) {
	sig, pubKey, err := s.kr.Sign(s.name, signBytes, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return nil, nil, errors.Join(ErrTxSignFailed, err)
	}
	return pubKey.Bytes(), sig, nil
}

// SignTx wraps msg in a transaction for chainID at sequence and signs it.
func SignTx(signer Signer, chainID string, sequence uint64, msg types.Msg) (types.Tx, error) {
	if !signer.Address().Equals(senderOf(msg)) {
		return types.Tx{}, fmt.Errorf("%w: message sender %s, signer %s", ErrSenderMismatch, msg.GetSender(), signer.Address())
	}
	tx, err := types.NewTx(chainID, sequence, msg)
	if err != nil {
		return types.Tx{}, errors.Join(ErrTxSignFailed, err)
	}
	signBytes, err := tx.SignBytes()
	if err != nil {
		return types.Tx{}, errors.Join(ErrTxSignFailed, err)
	}
	tx.PubKey, tx.Signature, err = signer.Sign(signBytes)
	if err != nil {
		return types.Tx{}, err
	}
	return tx, nil
}

// senderOf parses the sender of a message that passed ValidateBasic; an invalid
// address yields nil, which never equals a signer.
func senderOf(msg types.Msg) sdk.AccAddress {
	addr, err := sdk.AccAddressFromBech32(msg.GetSender())
	if err != nil {
		return nil
	}
	return addr
}
