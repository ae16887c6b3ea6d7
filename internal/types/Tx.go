package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Tx is a signed message. The node derives the sender from PubKey and rejects the
// transaction unless that address is the message's sender, Signature verifies over
// SignBytes and Sequence is the account's next sequence.
type Tx struct {
	Type      string          `json:"type"`
	Msg       json.RawMessage `json:"msg"`
	ChainID   string          `json:"chain_id"`
	Sequence  uint64          `json:"sequence"`
	PubKey    []byte          `json:"pub_key"` // compressed secp256k1
	Signature []byte          `json:"signature"`
}

type signDoc struct {
	ChainID  string          `json:"chain_id"`
	Sequence uint64          `json:"sequence"`
	Type     string          `json:"type"`
	Msg      json.RawMessage `json:"msg"`
}

// NewTx wraps msg in an unsigned transaction.
func NewTx(chainID string, sequence uint64, msg Msg) (Tx, error) {
	bz, err := json.Marshal(msg)
	if err != nil {
		return Tx{}, fmt.Errorf("marshal %s: %w", msg.Type(), err)
	}
	return Tx{Type: msg.Type(), Msg: bz, ChainID: chainID, Sequence: sequence}, nil
}

// SignBytes is the canonical, key-sorted JSON of everything the signature covers.
func (tx Tx) SignBytes() ([]byte, error) {
	bz, err := json.Marshal(signDoc{ChainID: tx.ChainID, Sequence: tx.Sequence, Type: tx.Type, Msg: tx.Msg})
	if err != nil {
		return nil, err
	}
	return sdk.SortJSON(bz)
}

// GetMsg decodes the wrapped message.
func (tx Tx) GetMsg() (Msg, error) {
	return DecodeMsg(tx.Type, tx.Msg)
}

var msgDecoders = map[string]func([]byte) (Msg, error){
	MsgDeposit{}.Type():              decodeMsg[MsgDeposit],
	MsgWithdraw{}.Type():             decodeMsg[MsgWithdraw],
	MsgRebalance{}.Type():            decodeMsg[MsgRebalance],
	MsgTransfer{}.Type():             decodeMsg[MsgTransfer],
	MsgUpdateParameters{}.Type():     decodeMsg[MsgUpdateParameters],
	MsgChangeRebalancer{}.Type():     decodeMsg[MsgChangeRebalancer],
	MsgProposeNewAdmin{}.Type():      decodeMsg[MsgProposeNewAdmin],
	MsgAcceptNewAdmin{}.Type():       decodeMsg[MsgAcceptNewAdmin],
	MsgBurnAdmin{}.Type():            decodeMsg[MsgBurnAdmin],
	MsgChangeAdminFee{}.Type():       decodeMsg[MsgChangeAdminFee],
	MsgChangeProtocolFee{}.Type():    decodeMsg[MsgChangeProtocolFee],
	MsgWithdrawAdminFees{}.Type():    decodeMsg[MsgWithdrawAdminFees],
	MsgWithdrawProtocolFees{}.Type(): decodeMsg[MsgWithdrawProtocolFees],
}

// KnownMsgType reports whether msgType names a message users can send.
func KnownMsgType(msgType string) bool {
	_, ok := msgDecoders[msgType]
	return ok
}

// DecodeMsg strictly decodes a message of the named type. Unknown fields are
// rejected.
func DecodeMsg(msgType string, bz []byte) (Msg, error) {
	decode, ok := msgDecoders[msgType]
	if !ok {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "unknown message type %q", msgType)
	}
	msg, err := decode(bz)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidRequest, "invalid %s message: %s", msgType, err)
	}
	return msg, nil
}

func decodeMsg[M Msg](body []byte) (Msg, error) {
	var msg M
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}
