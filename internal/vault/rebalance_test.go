package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvault/internal/simulations"
	"github.com/elys-network/clvault/internal/tickmath"
	"github.com/elys-network/clvault/internal/types"
)

// faultyPool fails the failOn-th OpenPosition call with failErr, or a generic error
// when failErr is nil. With shortFill set, offers are cut to that share before they
// reach the pool. Every minimum and consumed amount is recorded.
type faultyPool struct {
	PoolKeeper
	opens     int
	failOn    int
	failErr   error
	shortFill sdkmath.LegacyDec
	minimums  []types.Funds
	consumed  []types.Funds
}

func (p *faultyPool) OpenPosition(ctx context.Context, owner sdk.AccAddress, poolID uint64, lower, upper int64, amount0, amount1, amount0Min, amount1Min sdkmath.Int) (types.OpenPositionResult, error) {
	p.opens++
	if p.opens == p.failOn {
		if p.failErr != nil {
			return types.OpenPositionResult{}, p.failErr
		}
		return types.OpenPositionResult{}, errors.New("pool unavailable")
	}
	if !p.shortFill.IsNil() {
		amount0 = p.shortFill.MulInt(amount0).TruncateInt()
		amount1 = p.shortFill.MulInt(amount1).TruncateInt()
	}
	p.minimums = append(p.minimums, types.NewFunds(amount0Min, amount1Min))
	res, err := p.PoolKeeper.OpenPosition(ctx, owner, poolID, lower, upper, amount0, amount1, amount0Min, amount1Min)
	if err == nil {
		p.consumed = append(p.consumed, types.NewFunds(res.Amount0, res.Amount1))
	}
	return res, err
}

// withPool returns a message server over the fixture's vault store and pool.
func (f *fixture) withPool(pool PoolKeeper) MsgServer {
	return NewMsgServer(NewKeeper(runtime.NewKVStoreService(f.vaultKey), pool))
}

func kinds(positions []types.Position) map[types.PositionKind]types.Position {
	out := make(map[types.PositionKind]types.Position, len(positions))
	for _, p := range positions {
		out[p.Kind] = p
	}
	return out
}

func positionIDs(positions []types.Position) []uint64 {
	ids := make([]uint64, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRebalanceOpensRanges(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)

	resp := f.rebalance(t, admin)
	assert.Empty(t, resp.Closed)
	assert.True(t, resp.Price.Equal(sdkmath.LegacyOneDec()))

	positions, err := f.k.GetPositions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, positionIDs(resp.Opened), positionIDs(positions))

	got := kinds(positions)
	require.Contains(t, got, types.PositionFull)
	require.Contains(t, got, types.PositionBase)
	assert.Equal(t, tickmath.MinValidTick(100), got[types.PositionFull].LowerTick)
	assert.Equal(t, tickmath.MaxValidTick(100), got[types.PositionFull].UpperTick)
	assert.Equal(t, int64(-10_000), got[types.PositionBase].LowerTick)
	assert.Equal(t, int64(10_000), got[types.PositionBase].UpperTick)
	for _, p := range positions {
		assert.Less(t, p.LowerTick, p.UpperTick)
		assert.True(t, p.Liquidity.IsPositive())
	}

	// the pool holds exactly the recorded positions, owned by the vault
	ids, err := f.pool.OwnerPositions(f.ctx, f.poolID, VaultAddress)
	require.NoError(t, err)
	assert.Len(t, ids, len(positions))

	// token0 binds the full and base ranges at this price; the token1 they leave
	// goes to a limit range below the price
	limit, ok := got[types.PositionLimit]
	require.True(t, ok)
	assert.Equal(t, int64(-500), limit.LowerTick)
	assert.Equal(t, int64(0), limit.UpperTick)
	idle, err := f.k.GetFunds(f.ctx)
	require.NoError(t, err)
	assert.True(t, idle.Amount0.LT(sdkmath.NewInt(10)), idle.String())
	assert.True(t, idle.Amount1.LT(sdkmath.NewInt(10)), idle.String())

	record, found, err := f.k.GetLastRebalance(f.ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), record.Height)
	assert.True(t, record.Time.Equal(genesisTime))
	assert.True(t, record.Price.Equal(sdkmath.LegacyOneDec()))

	// valuation is unchanged by deployment, up to pool rounding
	assets, err := f.k.TotalAssets(f.ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, assets.Total.Amount0.Int64(), 10)
	assert.InDelta(t, 1_000_000, assets.Total.Amount1.Int64(), 10)
	require.NoError(t, f.k.AssertInvariant(f.ctx))
}

func TestRebalanceWithoutFullRangeWeight(t *testing.T) {
	f := newFixture(t, "0")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.rebalance(t, admin)

	positions, err := f.k.GetPositions(f.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, positions)
	assert.NotContains(t, kinds(positions), types.PositionFull)
}

func TestRebalanceClosesPreviousPositions(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	first := f.rebalance(t, admin)

	require.NoError(t, f.pool.SetTick(f.ctx, f.poolID, 200_000))
	f.ctx = f.ctx.WithBlockHeight(2).WithBlockTime(genesisTime.Add(time.Minute))
	second := f.rebalance(t, admin)

	assert.Equal(t, positionIDs(first.Opened), positionIDs(second.Closed))
	assert.True(t, second.Price.Equal(dec("1.2")), second.Price.String())

	positions, err := f.k.GetPositions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, positionIDs(second.Opened), positionIDs(positions))
	for _, p := range first.Opened {
		_, err := f.pool.PositionValue(f.ctx, p.ID)
		require.Error(t, err, "position %d should be closed in the pool", p.ID)
	}
	base := kinds(positions)[types.PositionBase]
	assert.Equal(t, int64(190_000), base.LowerTick)
	assert.Equal(t, int64(210_000), base.UpperTick)
}

func TestRebalanceNothingToDeploy(t *testing.T) {
	f := newFixture(t, "0.5")

	_, err := f.srv.Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.ErrorIs(t, err, types.ErrNothingToRebalance)
}

func TestUnauthorizedRebalanceLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.rebalance(t, admin)
	before := f.snapshot()

	_, err := f.srv.Handle(f.ctx, types.MsgRebalance{Sender: bob.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, before, f.snapshot())

	f.deliver(t, types.MsgChangeRebalancer{Sender: admin.String(), Rebalancer: types.DelegateRebalancer(carol)})
	before = f.snapshot()

	_, err = f.srv.Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, before, f.snapshot())

	f.rebalance(t, carol)
}

func TestFailedOpenLeavesRegistryUnchanged(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.rebalance(t, admin)

	before, err := f.k.GetPositions(f.ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(before), 2)
	stores := f.snapshot()

	faulty := &faultyPool{PoolKeeper: f.pool, failOn: 2}
	srv := f.withPool(faulty)

	_, err = srv.Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.ErrorIs(t, err, types.ErrPoolInteractionFailed)
	assert.Equal(t, 2, faulty.opens)

	after, err := f.k.GetPositions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, stores, f.snapshot())

	// the positions closed on the discarded branch are still open in the pool
	for _, p := range after {
		_, err := f.pool.PositionValue(f.ctx, p.ID)
		require.NoError(t, err)
	}
}

func TestAnyoneRebalancerGuards(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.deliver(t, types.MsgChangeRebalancer{
		Sender:     admin.String(),
		Rebalancer: types.AnyoneRebalancer(dec("1.1"), 60),
	})

	// no previous rebalance
	f.rebalance(t, bob)

	_, err := f.srv.Handle(f.ctx, types.MsgRebalance{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrRebalanceNotAllowed, "same block")

	f.ctx = f.ctx.WithBlockHeight(2).WithBlockTime(genesisTime.Add(30 * time.Second))
	require.NoError(t, f.pool.SetTick(f.ctx, f.poolID, 200_000))
	_, err = f.srv.Handle(f.ctx, types.MsgRebalance{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrRebalanceNotAllowed, "interval not elapsed")

	f.ctx = f.ctx.WithBlockHeight(3).WithBlockTime(genesisTime.Add(2 * time.Minute))
	require.NoError(t, f.pool.SetTick(f.ctx, f.poolID, 50_000))
	_, err = f.srv.Handle(f.ctx, types.MsgRebalance{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrRebalanceNotAllowed, "price 1.05 inside the band")

	require.NoError(t, f.pool.SetTick(f.ctx, f.poolID, 200_000))
	f.rebalance(t, carol)

	record, found, err := f.k.GetLastRebalance(f.ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), record.Height)
	assert.True(t, record.Price.Equal(dec("1.2")))
}

func TestAuthorizeRebalanceVariants(t *testing.T) {
	f := newFixture(t, "0.5")
	price := sdkmath.LegacyOneDec()

	require.NoError(t, f.k.AuthorizeRebalance(f.ctx, admin, price))
	require.ErrorIs(t, f.k.AuthorizeRebalance(f.ctx, bob, price), types.ErrUnauthorized)

	require.NoError(t, f.k.ChangeRebalancer(f.ctx, admin, types.DelegateRebalancer(bob)))
	require.NoError(t, f.k.AuthorizeRebalance(f.ctx, bob, price))
	require.ErrorIs(t, f.k.AuthorizeRebalance(f.ctx, admin, price), types.ErrUnauthorized)

	require.NoError(t, f.k.ChangeRebalancer(f.ctx, admin, types.AnyoneRebalancer(dec("1.5"), 0)))
	require.NoError(t, f.k.AuthorizeRebalance(f.ctx, carol, price))

	err := f.k.ChangeRebalancer(f.ctx, bob, types.AdminRebalancer())
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = f.k.ChangeRebalancer(f.ctx, admin, types.AnyoneRebalancer(dec("0.5"), 0))
	require.ErrorIs(t, err, types.ErrInvalidParameters)
}

func TestRebalancePassesPositionMinimums(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)

	recording := &faultyPool{PoolKeeper: f.pool}
	resp, err := f.withPool(recording).Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.NoError(t, err)
	opened := resp.(types.MsgRebalanceResponse).Opened
	require.Len(t, recording.minimums, len(opened))

	for i, used := range recording.consumed {
		want0 := types.PositionSlippage.MulInt(used.Amount0).TruncateInt()
		want1 := types.PositionSlippage.MulInt(used.Amount1).TruncateInt()
		assert.True(t, want0.Equal(recording.minimums[i].Amount0), "range %d: minimum %s for %s", i, recording.minimums[i].Amount0, used.Amount0)
		assert.True(t, want1.Equal(recording.minimums[i].Amount1), "range %d: minimum %s for %s", i, recording.minimums[i].Amount1, used.Amount1)
	}
}

func TestRebalanceFailsWhenPoolUnderfills(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	before := f.snapshot()

	short := &faultyPool{PoolKeeper: f.pool, shortFill: dec("0.99")}
	_, err := f.withPool(short).Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.ErrorIs(t, err, types.ErrPoolInteractionFailed)
	assert.ErrorContains(t, err, simulations.ErrBelowMinimum.Error())
	assert.Equal(t, before, f.snapshot())
}

func TestRebalanceSkipsRangesWithoutLiquidity(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)

	// the pool reports the base range, opened second, as funding no liquidity
	zeroBase := &faultyPool{PoolKeeper: f.pool, failOn: 2, failErr: errorsmod.Wrap(types.ErrZeroLiquidity, "base")}
	resp, err := f.withPool(zeroBase).Handle(f.ctx, types.MsgRebalance{Sender: admin.String()})
	require.NoError(t, err)
	rebalanced := resp.(types.MsgRebalanceResponse)

	got := kinds(rebalanced.Opened)
	assert.Contains(t, got, types.PositionFull)
	assert.NotContains(t, got, types.PositionBase)
	assert.Contains(t, got, types.PositionLimit)

	// the base range's share stays idle
	assert.True(t, rebalanced.Idle.Amount0.GT(sdkmath.NewInt(1_000)), rebalanced.Idle.String())
	require.NoError(t, f.k.AssertInvariant(f.ctx))
}

func TestAnyoneRebalanceRejectsPriceAwayFromTwap(t *testing.T) {
	f := newFixture(t, "0.5")
	f.deposit(t, alice, 1_000_000, 1_000_000)
	f.deliver(t, types.MsgChangeRebalancer{
		Sender:     admin.String(),
		Rebalancer: types.AnyoneRebalancer(dec("1.1"), 60),
	})
	f.rebalance(t, bob)

	// price 1 held for two minutes, then jumps to 1.2 inside the block
	f.ctx = f.ctx.WithBlockHeight(2).WithBlockTime(genesisTime.Add(2 * time.Minute))
	require.NoError(t, f.pool.SetTick(f.ctx, f.poolID, 200_000))
	_, err := f.srv.Handle(f.ctx, types.MsgRebalance{Sender: carol.String()})
	require.ErrorIs(t, err, types.ErrRebalanceNotAllowed)
	assert.ErrorContains(t, err, "twap")

	// within 1% of the average once the new price has held for the window
	f.ctx = f.ctx.WithBlockHeight(3).WithBlockTime(genesisTime.Add(3 * time.Minute))
	f.rebalance(t, carol)
}

func TestTwapGuardBounds(t *testing.T) {
	f := newFixture(t, "0.5")

	// the fixture's pool exists since genesis; ten seconds is shorter than the window
	f.ctx = f.ctx.WithBlockHeight(2).WithBlockTime(genesisTime.Add(10 * time.Second))
	err := f.k.checkTwap(f.ctx, f.poolID, sdkmath.LegacyOneDec())
	require.ErrorIs(t, err, types.ErrRebalanceNotAllowed)

	// price 1 throughout, so the accepted band is [0.99, 1.01]
	f.ctx = f.ctx.WithBlockHeight(3).WithBlockTime(genesisTime.Add(2 * time.Minute))
	require.NoError(t, f.k.checkTwap(f.ctx, f.poolID, dec("1.01")))
	require.NoError(t, f.k.checkTwap(f.ctx, f.poolID, dec("0.99")))
	require.ErrorIs(t, f.k.checkTwap(f.ctx, f.poolID, dec("1.0101")), types.ErrRebalanceNotAllowed)
	require.ErrorIs(t, f.k.checkTwap(f.ctx, f.poolID, dec("0.9899")), types.ErrRebalanceNotAllowed)
}
