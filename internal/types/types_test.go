package types

import (
	"encoding/json"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }

func testAddr(name string) sdk.AccAddress {
	b := make([]byte, 20)
	copy(b, name)
	return sdk.AccAddress(b)
}

func TestVaultParametersValidate(t *testing.T) {
	tests := []struct {
		name   string
		params VaultParameters
		ok     bool
	}{
		{"valid", VaultParameters{dec("2"), dec("1"), dec("0.25")}, true},
		{"weight zero", VaultParameters{dec("1"), dec("0.1"), dec("0")}, true},
		{"weight one", VaultParameters{dec("1"), dec("0.1"), dec("1")}, true},
		{"base below one", VaultParameters{dec("0.99"), dec("1"), dec("0.2")}, false},
		{"limit zero", VaultParameters{dec("2"), dec("0"), dec("0.2")}, false},
		{"weight above one", VaultParameters{dec("2"), dec("1"), dec("1.01")}, false},
		{"weight negative", VaultParameters{dec("2"), dec("1"), dec("-0.1")}, false},
		{"unset", VaultParameters{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestRebalancerValidate(t *testing.T) {
	require.NoError(t, AdminRebalancer().Validate())
	require.NoError(t, DelegateRebalancer(testAddr("bot")).Validate())
	require.NoError(t, AnyoneRebalancer(dec("1.05"), 3600).Validate())

	require.ErrorIs(t, DelegateRebalancer(nil).Validate(), ErrInvalidParameters)
	require.ErrorIs(t, AnyoneRebalancer(dec("0.5"), 0).Validate(), ErrInvalidParameters)
	require.ErrorIs(t, Rebalancer{Kind: "someone"}.Validate(), ErrInvalidParameters)
}

func TestRebalancerJSON(t *testing.T) {
	in := DelegateRebalancer(testAddr("bot"))
	bz, err := json.Marshal(in)
	require.NoError(t, err)

	var out Rebalancer
	require.NoError(t, json.Unmarshal(bz, &out))
	assert.Equal(t, RebalancerDelegate, out.Kind)
	assert.True(t, in.Address.Equals(out.Address))
}

func TestMsgValidateBasic(t *testing.T) {
	sender := testAddr("alice").String()
	zero := sdkmath.ZeroInt()

	t.Run("deposit ok", func(t *testing.T) {
		msg := MsgDeposit{Sender: sender, Amount0: sdkmath.NewInt(5000), Amount1: zero, Amount0Min: zero, Amount1Min: zero}
		require.NoError(t, msg.ValidateBasic())
	})
	t.Run("deposit zero", func(t *testing.T) {
		msg := MsgDeposit{Sender: sender, Amount0: zero, Amount1: zero, Amount0Min: zero, Amount1Min: zero}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidRequest)
	})
	t.Run("deposit bad recipient", func(t *testing.T) {
		msg := MsgDeposit{Sender: sender, Amount0: sdkmath.NewInt(5000), Amount1: zero, Amount0Min: zero, Amount1Min: zero, Recipient: "nope"}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidRequest)
	})
	t.Run("withdraw zero shares", func(t *testing.T) {
		msg := MsgWithdraw{Sender: sender, Shares: zero, Amount0Min: zero, Amount1Min: zero}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidRequest)
	})
	t.Run("unset amounts", func(t *testing.T) {
		msg := MsgWithdraw{Sender: sender}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidRequest)
	})
	t.Run("protocol fee cap", func(t *testing.T) {
		msg := MsgChangeProtocolFee{Sender: sender, ProtocolFee: dec("0.2")}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidParameters)
	})
	t.Run("update parameters", func(t *testing.T) {
		msg := MsgUpdateParameters{Sender: sender, Params: VaultParameters{dec("0"), dec("1"), dec("0")}}
		require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidParameters)
	})
}

func TestPositionValidate(t *testing.T) {
	require.NoError(t, Position{ID: 1, LowerTick: -100, UpperTick: 100}.Validate())
	require.Error(t, Position{ID: 1, LowerTick: 100, UpperTick: 100}.Validate())
}

func TestTxSignBytesCoverEveryField(t *testing.T) {
	msg := MsgRebalance{Sender: testAddr("alice").String()}
	tx, err := NewTx("clvault-1", 3, msg)
	require.NoError(t, err)
	base, err := tx.SignBytes()
	require.NoError(t, err)

	again, err := tx.SignBytes()
	require.NoError(t, err)
	assert.Equal(t, base, again)

	variants := map[string]func(tx *Tx){
		"chain id": func(tx *Tx) { tx.ChainID = "clvault-2" },
		"sequence": func(tx *Tx) { tx.Sequence = 4 },
		"type":     func(tx *Tx) { tx.Type = MsgBurnAdmin{}.Type() },
		"message":  func(tx *Tx) { tx.Msg = json.RawMessage(`{"sender":"` + testAddr("bob").String() + `"}`) },
	}
	for name, change := range variants {
		changed := tx
		change(&changed)
		bz, err := changed.SignBytes()
		require.NoError(t, err)
		assert.NotEqual(t, base, bz, name)
	}

	// the pub key and signature are not signed over
	tx.PubKey = []byte{1}
	tx.Signature = []byte{2}
	signed, err := tx.SignBytes()
	require.NoError(t, err)
	assert.Equal(t, base, signed)

	decoded, err := tx.GetMsg()
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeMsg(t *testing.T) {
	_, err := DecodeMsg("mint", []byte(`{}`))
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = DecodeMsg(MsgRebalance{}.Type(), []byte(`{"sender":"x","extra":1}`))
	require.ErrorIs(t, err, ErrInvalidRequest)

	msg, err := DecodeMsg(MsgTransfer{}.Type(), []byte(`{"sender":"a","recipient":"b","amount":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", msg.GetSender())
	assert.True(t, KnownMsgType(MsgTransfer{}.Type()))
	assert.False(t, KnownMsgType("mint"))
}
