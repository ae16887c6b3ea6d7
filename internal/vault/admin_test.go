package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvault/internal/types"
)

func TestUpdateParameters(t *testing.T) {
	f := newFixture(t, "0.5")
	updated := types.VaultParameters{BaseFactor: dec("20"), LimitFactor: dec("2"), FullRangeWeight: dec("0.25")}
	before := f.snapshot()

	_, err := f.srv.Handle(f.ctx, types.MsgUpdateParameters{Sender: bob.String(), Params: updated})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, before, f.snapshot())

	f.deliver(t, types.MsgUpdateParameters{Sender: admin.String(), Params: updated})
	params, err := f.k.GetParams(f.ctx)
	require.NoError(t, err)
	assert.True(t, params.BaseFactor.Equal(dec("20")))
	assert.True(t, params.FullRangeWeight.Equal(dec("0.25")))

	err = f.k.UpdateParameters(f.ctx, admin, types.VaultParameters{BaseFactor: dec("1"), LimitFactor: dec("0"), FullRangeWeight: dec("0")})
	require.ErrorIs(t, err, types.ErrInvalidParameters)
}

func TestAdminTransfer(t *testing.T) {
	f := newFixture(t, "0.5")

	_, err := f.srv.Handle(f.ctx, types.MsgAcceptNewAdmin{Sender: bob.String()})
	require.ErrorIs(t, err, types.ErrInvalidRequest, "nothing pending")

	_, err = f.srv.Handle(f.ctx, types.MsgProposeNewAdmin{Sender: bob.String(), NewAdmin: bob.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	f.deliver(t, types.MsgProposeNewAdmin{Sender: admin.String(), NewAdmin: bob.String()})
	info, err := f.k.GetVaultInfo(f.ctx)
	require.NoError(t, err)
	assert.True(t, info.PendingAdmin.Equals(bob))
	assert.True(t, info.Admin.Equals(admin), "admin changes only on acceptance")

	_, err = f.srv.Handle(f.ctx, types.MsgAcceptNewAdmin{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	f.deliver(t, types.MsgAcceptNewAdmin{Sender: bob.String()})
	info, err = f.k.GetVaultInfo(f.ctx)
	require.NoError(t, err)
	assert.True(t, info.Admin.Equals(bob))
	assert.True(t, info.PendingAdmin.Empty())

	_, err = f.srv.Handle(f.ctx, types.MsgUpdateParameters{Sender: admin.String(), Params: vaultParams("0")})
	require.ErrorIs(t, err, types.ErrUnauthorized, "previous admin lost its rights")
}

func TestCancelAdminProposal(t *testing.T) {
	f := newFixture(t, "0.5")

	f.deliver(t, types.MsgProposeNewAdmin{Sender: admin.String(), NewAdmin: carol.String()})
	f.deliver(t, types.MsgProposeNewAdmin{Sender: admin.String()})

	info, err := f.k.GetVaultInfo(f.ctx)
	require.NoError(t, err)
	assert.True(t, info.PendingAdmin.Empty())

	_, err = f.srv.Handle(f.ctx, types.MsgAcceptNewAdmin{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestBurnAdmin(t *testing.T) {
	f := newFixture(t, "0.5")
	burn := types.MsgBurnAdmin{Sender: admin.String()}

	_, err := f.srv.Handle(f.ctx, burn)
	require.ErrorIs(t, err, types.ErrInvalidRequest, "admin rebalancer")

	f.deliver(t, types.MsgChangeRebalancer{Sender: admin.String(), Rebalancer: types.AnyoneRebalancer(dec("1.05"), 3600)})
	_, err = f.srv.Handle(f.ctx, burn)
	require.ErrorIs(t, err, types.ErrInvalidRequest, "admin fee still set")

	f.deliver(t, types.MsgChangeAdminFee{Sender: admin.String(), AdminFee: sdkmath.LegacyZeroDec()})
	f.deliver(t, types.MsgProposeNewAdmin{Sender: admin.String(), NewAdmin: bob.String()})
	_, err = f.srv.Handle(f.ctx, burn)
	require.ErrorIs(t, err, types.ErrInvalidRequest, "transfer pending")

	f.deliver(t, types.MsgProposeNewAdmin{Sender: admin.String()})
	_, err = f.srv.Handle(f.ctx, types.MsgBurnAdmin{Sender: bob.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	f.deliver(t, burn)
	info, err := f.k.GetVaultInfo(f.ctx)
	require.NoError(t, err)
	assert.False(t, info.HasAdmin())

	for _, msg := range []types.Msg{
		types.MsgUpdateParameters{Sender: admin.String(), Params: vaultParams("0")},
		types.MsgChangeRebalancer{Sender: admin.String(), Rebalancer: types.AdminRebalancer()},
		types.MsgProposeNewAdmin{Sender: admin.String(), NewAdmin: admin.String()},
		types.MsgWithdrawAdminFees{Sender: admin.String()},
		burn,
	} {
		_, err := f.srv.Handle(f.ctx, msg)
		require.ErrorIs(t, err, types.ErrUnauthorized, msg.Type())
	}
}

func TestFeeChanges(t *testing.T) {
	f := newFixture(t, "0.5")

	f.deliver(t, types.MsgChangeAdminFee{Sender: admin.String(), AdminFee: dec("0.2")})
	f.deliver(t, types.MsgChangeProtocolFee{Sender: protocol.String(), ProtocolFee: dec("0.01")})
	fees, err := f.k.GetFees(f.ctx)
	require.NoError(t, err)
	assert.True(t, fees.AdminFee.Equal(dec("0.2")))
	assert.True(t, fees.ProtocolFee.Equal(dec("0.01")))

	_, err = f.srv.Handle(f.ctx, types.MsgChangeAdminFee{Sender: admin.String(), AdminFee: dec("0.6")})
	require.ErrorIs(t, err, types.ErrInvalidParameters)
	_, err = f.srv.Handle(f.ctx, types.MsgChangeProtocolFee{Sender: admin.String(), ProtocolFee: dec("0.02")})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.srv.Handle(f.ctx, types.MsgChangeAdminFee{Sender: protocol.String(), AdminFee: dec("0.02")})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = f.k.ChangeProtocolFee(f.ctx, protocol, dec("0.11"))
	require.ErrorIs(t, err, types.ErrInvalidParameters)
}

func TestCollectedFeesAreSplit(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.rebalance(t, admin)

	before, err := f.k.TotalAssets(f.ctx)
	require.NoError(t, err)
	paid, err := f.pool.AccrueFees(f.ctx, f.poolID, sdkmath.NewInt(100_000), sdkmath.NewInt(100_000))
	require.NoError(t, err)
	require.InDelta(t, 100_000, paid.Amount0.Int64(), 3)

	// shareholders are credited with fees net of 5% protocol and 10% admin cut
	after, err := f.k.TotalAssets(f.ctx)
	require.NoError(t, err)
	gained := after.Total.Amount0.Sub(before.Total.Amount0)
	assert.InDelta(t, 85_000, gained.Int64(), 5)

	f.rebalance(t, admin)
	fees, err := f.k.GetFees(f.ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5_000, fees.Protocol.Amount0.Int64(), 3)
	assert.InDelta(t, 5_000, fees.Protocol.Amount1.Int64(), 3)
	assert.InDelta(t, 10_000, fees.Admin.Amount0.Int64(), 3)
	assert.InDelta(t, 10_000, fees.Admin.Amount1.Int64(), 3)

	// owed fee tokens are not part of the valuation
	settled, err := f.k.TotalAssets(f.ctx)
	require.NoError(t, err)
	assert.InDelta(t, after.Total.Amount0.Int64(), settled.Total.Amount0.Int64(), 10)

	_, err = f.srv.Handle(f.ctx, types.MsgWithdrawProtocolFees{Sender: bob.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.srv.Handle(f.ctx, types.MsgWithdrawAdminFees{Sender: protocol.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)

	protocolResp := f.deliver(t, types.MsgWithdrawProtocolFees{Sender: protocol.String()}).(types.MsgFeesResponse)
	assert.True(t, protocolResp.Paid.Amount0.Equal(fees.Protocol.Amount0))
	assert.True(t, protocolResp.Paid.Amount1.Equal(fees.Protocol.Amount1))
	adminResp := f.deliver(t, types.MsgWithdrawAdminFees{Sender: admin.String()}).(types.MsgFeesResponse)
	assert.True(t, adminResp.Paid.Amount0.Equal(fees.Admin.Amount0))

	fees, err = f.k.GetFees(f.ctx)
	require.NoError(t, err)
	assert.True(t, fees.Protocol.IsZero())
	assert.True(t, fees.Admin.IsZero())

	again := f.deliver(t, types.MsgWithdrawProtocolFees{Sender: protocol.String()}).(types.MsgFeesResponse)
	assert.True(t, again.Paid.IsZero())
}
