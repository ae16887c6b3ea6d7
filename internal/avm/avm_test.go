package avm

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/config"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
)

var (
	admin    = sdk.AccAddress([]byte("admin_______________"))
	protocol = sdk.AccAddress([]byte("protocol____________"))
	alice    = sdk.AccAddress([]byte("alice_______________"))
)

type snapshotJournal struct {
	state.Nop
	mu        sync.Mutex
	snapshots []types.CycleSnapshot
}

func (j *snapshotJournal) SaveCycleSnapshot(_ context.Context, s types.CycleSnapshot) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snapshots = append(j.snapshots, s)
	return int64(len(j.snapshots)), nil
}

func (j *snapshotJournal) saved() []types.CycleSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]types.CycleSnapshot(nil), j.snapshots...)
}

func newHost(t *testing.T) *app.App {
	t.Helper()
	clock := func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	host, err := app.New(config.DefaultGenesis("avm-test", admin.String(), protocol.String()), app.Options{Clock: clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	_, err = host.Deliver(context.Background(), types.MsgDeposit{
		Sender:     alice.String(),
		Amount0:    sdkmath.NewInt(1_000_000),
		Amount1:    sdkmath.NewInt(1_000_000),
		Amount0Min: sdkmath.ZeroInt(),
		Amount1Min: sdkmath.ZeroInt(),
	})
	require.NoError(t, err)
	return host
}

func newAVM(t *testing.T, host Host, rebalancer sdk.AccAddress, journal state.Journal) *AVM {
	t.Helper()
	a, err := NewAVM(Config{Host: host, Journal: journal, Rebalancer: rebalancer.String()})
	require.NoError(t, err)
	return a
}

func TestNewAVMValidation(t *testing.T) {
	_, err := NewAVM(Config{Rebalancer: admin.String()})
	require.Error(t, err)

	host := newHost(t)
	_, err = NewAVM(Config{Host: host, Rebalancer: "not-an-address"})
	require.Error(t, err)
}

func TestRunCycleRebalances(t *testing.T) {
	host := newHost(t)
	journal := &snapshotJournal{Nop: state.NewNop()}
	a := newAVM(t, host, admin, journal)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.Rebalanced)
	assert.Empty(t, snapshot.Error)
	assert.Equal(t, 1, snapshot.CycleNumber)
	assert.NotEmpty(t, snapshot.CycleID)
	assert.Empty(t, snapshot.InitialPositions)
	assert.NotEmpty(t, snapshot.FinalPositions)
	assert.Contains(t, snapshot.EventTypes, types.EventTypeRebalance)
	assert.Equal(t, "1.000000000000000000", snapshot.InitialPrice)

	// deployment does not change the valuation beyond position dust
	assert.InDelta(t, snapshot.InitialAssets.Total.Amount0.Int64(), snapshot.FinalAssets.Total.Amount0.Int64(), 10)

	saved := journal.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, snapshot.CycleID, saved[0].CycleID)
}

func TestRunCycleSkipsGuardedRebalance(t *testing.T) {
	host := newHost(t)
	_, err := host.Deliver(context.Background(), types.MsgChangeRebalancer{
		Sender:     admin.String(),
		Rebalancer: types.AnyoneRebalancer(sdkmath.LegacyMustNewDecFromStr("1.1"), 3600),
	})
	require.NoError(t, err)

	journal := &snapshotJournal{Nop: state.NewNop()}
	a := newAVM(t, host, alice, journal)

	first, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, first.Rebalanced)

	// same clock and price: the interval guard rejects the second attempt
	second, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Rebalanced)
	assert.Contains(t, second.Error, "rebalance not allowed")
	assert.Equal(t, 2, second.CycleNumber)
	assert.Len(t, second.FinalPositions, len(second.InitialPositions))
	assert.Empty(t, second.EventTypes)
}

func TestRunCycleReportsUnauthorizedSender(t *testing.T) {
	host := newHost(t)
	a := newAVM(t, host, alice, nil)

	snapshot, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.Rebalanced)
	assert.Contains(t, snapshot.Error, "unauthorized")
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	host := newHost(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	journal := &snapshotJournal{Nop: state.NewNop()}
	a := newAVM(t, host, admin, journal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.RunLoop(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return len(journal.saved()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not return after cancellation")
	}

	saved := journal.saved()
	assert.True(t, saved[0].Rebalanced)
	for i, s := range saved {
		assert.Equal(t, i+1, s.CycleNumber)
	}
}
