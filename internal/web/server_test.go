package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvault/internal/app"
	"github.com/elys-network/clvault/internal/config"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
)

var (
	adminKey = secp256k1.GenPrivKey()
	aliceKey = secp256k1.GenPrivKey()

	admin    = sdk.AccAddress(adminKey.PubKey().Address())
	alice    = sdk.AccAddress(aliceKey.PubKey().Address())
	protocol = sdk.AccAddress([]byte("protocol____________"))
)

type memJournal struct {
	state.Nop
	cycles  []types.CycleSnapshot
	healthy error
}

func (j *memJournal) RecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	if limit > len(j.cycles) {
		limit = len(j.cycles)
	}
	return j.cycles[:limit], nil
}

func (j *memJournal) CycleByID(_ context.Context, id int64) (types.CycleSnapshot, error) {
	for _, c := range j.cycles {
		if c.SnapshotID == id {
			return c, nil
		}
	}
	return types.CycleSnapshot{}, state.ErrCycleNotFound
}

func (j *memJournal) Summary(context.Context) (state.JournalSummary, error) {
	return state.JournalSummary{TotalCycles: len(j.cycles), LastCycleNumber: j.cycles[0].CycleNumber}, nil
}

func (j *memJournal) Healthy(context.Context) error { return j.healthy }

func newServer(t *testing.T, journal state.Journal, simulation bool) *httptest.Server {
	t.Helper()
	clock := func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	node, err := app.New(config.DefaultGenesis("web-test", admin.String(), protocol.String()), app.Options{Clock: clock})
	require.NoError(t, err)

	ws, err := NewWebServer(Config{Node: node, Journal: journal, Simulation: simulation})
	require.NoError(t, err)
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = node.Close()
	})
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func post(t *testing.T, srv *httptest.Server, path, body string, out any) int {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signTx signs msg with key at the key's next sequence, read from the account route.
func signTx(t *testing.T, srv *httptest.Server, key *secp256k1.PrivKey, msg types.Msg) types.Tx {
	t.Helper()
	var account struct {
		Sequence uint64 `json:"sequence"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/account/"+sdk.AccAddress(key.PubKey().Address()).String(), &account))
	tx, err := types.NewTx("web-test", account.Sequence, msg)
	require.NoError(t, err)
	signBytes, err := tx.SignBytes()
	require.NoError(t, err)
	tx.Signature, err = key.Sign(signBytes)
	require.NoError(t, err)
	tx.PubKey = key.PubKey().Bytes()
	return tx
}

func postTx(t *testing.T, srv *httptest.Server, tx types.Tx, out any) int {
	t.Helper()
	bz, err := json.Marshal(tx)
	require.NoError(t, err)
	return post(t, srv, "/api/tx/"+tx.Type, string(bz), out)
}

// send signs msg with key and posts it to the route of its type.
func send(t *testing.T, srv *httptest.Server, key *secp256k1.PrivKey, msg types.Msg, out any) int {
	t.Helper()
	return postTx(t, srv, signTx(t, srv, key, msg), out)
}

func depositMsg(sender sdk.AccAddress) types.MsgDeposit {
	return types.MsgDeposit{
		Sender:     sender.String(),
		Amount0:    sdkmath.NewInt(1_000_000),
		Amount1:    sdkmath.NewInt(1_000_000),
		Amount0Min: sdkmath.ZeroInt(),
		Amount1Min: sdkmath.ZeroInt(),
	}
}

func TestNewWebServerRequiresNode(t *testing.T) {
	_, err := NewWebServer(Config{})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, nil, false)

	var body map[string]any
	require.Equal(t, http.StatusOK, get(t, srv, "/health", &body))
	assert.Equal(t, "OK", body["status"])
	assert.EqualValues(t, 1, body["height"])

	journal := &memJournal{Nop: state.NewNop(), healthy: errors.New("connection refused")}
	degraded := newServer(t, journal, false)
	require.Equal(t, http.StatusServiceUnavailable, get(t, degraded, "/api/health", &body))
	assert.Equal(t, "DEGRADED", body["status"])
}

func TestDepositThroughTxRoute(t *testing.T) {
	srv := newServer(t, nil, false)

	var result struct {
		Height   int64                    `json:"height"`
		Response types.MsgDepositResponse `json:"response"`
		Events   []app.Event              `json:"events"`
	}
	require.Equal(t, http.StatusOK, send(t, srv, aliceKey, depositMsg(alice), &result))
	assert.Equal(t, int64(2), result.Height)
	require.True(t, result.Response.Shares.IsPositive())
	assert.Contains(t, app.EventTypes(result.Events), types.EventTypeDeposit)

	var balance struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/balance/"+alice.String(), &balance))
	assert.Equal(t, result.Response.Shares.String(), balance.Balance)

	var info types.VaultInfo
	require.Equal(t, http.StatusOK, get(t, srv, "/api/vault/info", &info))
	assert.Equal(t, config.DefaultVaultName, info.Name)

	var assets types.TotalAssets
	require.Equal(t, http.StatusOK, get(t, srv, "/api/vault/assets", &assets))
	assert.Equal(t, "1000000", assets.Total.Amount0.String())
}

func TestTxRouteErrors(t *testing.T) {
	srv := newServer(t, nil, false)

	tests := []struct {
		name string
		path string
		body func(t *testing.T) string
		want int
	}{
		{"unknown type", "/api/tx/mint", func(*testing.T) string { return `{}` }, http.StatusNotFound},
		{"malformed body", "/api/tx/deposit", func(*testing.T) string { return `{"type":` }, http.StatusBadRequest},
		{"unknown field", "/api/tx/rebalance", func(*testing.T) string { return `{"type":"rebalance","extra":1}` }, http.StatusBadRequest},
		{"type does not match route", "/api/tx/withdraw", func(t *testing.T) string {
			bz, err := json.Marshal(signTx(t, srv, aliceKey, types.MsgRebalance{Sender: alice.String()}))
			require.NoError(t, err)
			return string(bz)
		}, http.StatusBadRequest},
		{"invalid message", "/api/tx/deposit", func(t *testing.T) string {
			tx := signTx(t, srv, aliceKey, depositMsg(alice))
			tx.Msg = []byte(`{"sender":"` + alice.String() + `","extra":1}`)
			bz, err := json.Marshal(tx)
			require.NoError(t, err)
			return string(bz)
		}, http.StatusBadRequest},
		{"unauthorized", "/api/tx/rebalance", func(t *testing.T) string {
			bz, err := json.Marshal(signTx(t, srv, aliceKey, types.MsgRebalance{Sender: alice.String()}))
			require.NoError(t, err)
			return string(bz)
		}, http.StatusForbidden},
		{"insufficient balance", "/api/tx/transfer", func(t *testing.T) string {
			bz, err := json.Marshal(signTx(t, srv, aliceKey, types.MsgTransfer{Sender: alice.String(), Recipient: admin.String(), Amount: sdkmath.NewInt(5)}))
			require.NoError(t, err)
			return string(bz)
		}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			assert.Equal(t, tt.want, post(t, srv, tt.path, tt.body(t), &body))
			assert.Equal(t, true, body["error"])
		})
	}

	require.Equal(t, http.StatusBadRequest, get(t, srv, "/api/balance/nope", nil))
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/api/account/nope", nil))
}

func TestSimulationRoutes(t *testing.T) {
	srv := newServer(t, nil, true)

	require.Equal(t, http.StatusOK, send(t, srv, aliceKey, depositMsg(alice), nil))
	require.Equal(t, http.StatusOK, send(t, srv, adminKey, types.MsgRebalance{Sender: admin.String()}, nil))

	var moved struct {
		Height int64           `json:"height"`
		Pool   types.PoolState `json:"pool"`
	}
	require.Equal(t, http.StatusOK, post(t, srv, "/api/pool/tick", `{"tick":1000}`, &moved))
	assert.Equal(t, int64(1000), moved.Pool.CurrentTick)

	var fees struct {
		Height   int64       `json:"height"`
		Credited types.Funds `json:"credited"`
	}
	require.Equal(t, http.StatusOK, post(t, srv, "/api/pool/fees", `{"amount0":"1000","amount1":"1000"}`, &fees))
	assert.Equal(t, moved.Height+1, fees.Height)
	assert.True(t, fees.Credited.Amount0.IsPositive())

	require.Equal(t, http.StatusBadRequest, post(t, srv, "/api/pool/fees", `{"amount0":"-1"}`, nil))

	disabled := newServer(t, nil, false)
	require.Equal(t, http.StatusNotFound, post(t, disabled, "/api/pool/tick", `{"tick":1000}`, nil))
}

func TestJournalRoutes(t *testing.T) {
	journal := &memJournal{
		Nop: state.NewNop(),
		cycles: []types.CycleSnapshot{
			{SnapshotID: 8, CycleNumber: 2, CycleID: "b", Rebalanced: false, Error: "rebalance not allowed yet"},
			{SnapshotID: 7, CycleNumber: 1, CycleID: "a", Rebalanced: true},
		},
	}
	srv := newServer(t, journal, false)

	var list struct {
		Cycles []types.CycleSnapshot `json:"cycles"`
		Count  int                   `json:"count"`
		Limit  int                   `json:"limit"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/cycles?limit=1", &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 1, list.Limit)

	require.Equal(t, http.StatusOK, get(t, srv, "/api/cycles?limit=1000", &list))
	assert.Equal(t, 20, list.Limit, "out of range limits fall back to the default")
	assert.Equal(t, 2, list.Count)

	var cycle types.CycleSnapshot
	require.Equal(t, http.StatusOK, get(t, srv, "/api/cycles/latest", &cycle))
	assert.Equal(t, "b", cycle.CycleID)
	require.Equal(t, http.StatusOK, get(t, srv, "/api/cycles/7", &cycle))
	assert.True(t, cycle.Rebalanced)
	require.Equal(t, http.StatusNotFound, get(t, srv, "/api/cycles/99", nil))

	var summary state.JournalSummary
	require.Equal(t, http.StatusOK, get(t, srv, "/api/summary", &summary))
	assert.Equal(t, 2, summary.TotalCycles)

	// the in-memory journal has nothing to read
	disabled := newServer(t, nil, false)
	require.Equal(t, http.StatusServiceUnavailable, get(t, disabled, "/api/cycles", nil))
	require.Equal(t, http.StatusServiceUnavailable, get(t, disabled, "/api/receipts", nil))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, nil, false)
	require.Equal(t, http.StatusOK, send(t, srv, aliceKey, depositMsg(alice), nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `clvault_messages_total{result="ok",type="deposit"}`)
	assert.Contains(t, string(body), "clvault_block_height")
}
