// Package app hosts the vault and the pool it manages on a versioned multistore and
// turns every request into one atomic state transition.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/clvault/internal/ante"
	"github.com/elys-network/clvault/internal/kvstore"
	"github.com/elys-network/clvault/internal/logger"
	"github.com/elys-network/clvault/internal/metrics"
	"github.com/elys-network/clvault/internal/simulations"
	"github.com/elys-network/clvault/internal/state"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/vault"
)

// Options configure a node. The zero value runs in memory on the wall clock with the
// journal disabled.
type Options struct {
	DataDir string
	Clock   func() time.Time
	Journal state.Journal
}

// Attribute is one key/value pair of an emitted event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is an emitted event in a JSON friendly form.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Result is the outcome of a committed message.
type Result struct {
	Height   int64   `json:"height"`
	Response any     `json:"response"`
	Events   []Event `json:"events"`
}

// App serialises every invocation. A message runs on a cache branch of the multistore
// that is written and committed only when the handler succeeds, so a failed message
// leaves both stores untouched.
type App struct {
	mu sync.Mutex

	db       dbm.DB
	cms      storetypes.CommitMultiStore
	vaultKey *storetypes.KVStoreKey
	poolKey  *storetypes.KVStoreKey
	authKey  *storetypes.KVStoreKey

	chainID string
	poolID  uint64
	clock   func() time.Time
	journal state.Journal
	sdkLog  log.Logger
	log     zerolog.Logger

	vault vault.Keeper
	pool  *simulations.Keeper
	msgs  vault.MsgServer
	auth  ante.Authenticator
}

// New opens the stores and applies genesis when they are empty.
func New(genesis types.GenesisState, opts Options) (*App, error) {
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Journal == nil {
		opts.Journal = state.NewNop()
	}

	db, err := kvstore.OpenDB("clvault", opts.DataDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		db:       db,
		vaultKey: storetypes.NewKVStoreKey(vault.StoreKey),
		poolKey:  storetypes.NewKVStoreKey(simulations.StoreKey),
		authKey:  storetypes.NewKVStoreKey(ante.StoreKey),
		chainID:  genesis.ChainID,
		clock:    opts.Clock,
		journal:  opts.Journal,
		sdkLog:   logger.SDKLogger("keeper"),
		log:      logger.GetForComponent("app"),
	}

	a.cms, err = kvstore.MountKVStores(db, a.sdkLog, a.vaultKey, a.poolKey, a.authKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.pool = simulations.NewKeeper(runtime.NewKVStoreService(a.poolKey))
	a.vault = vault.NewKeeper(runtime.NewKVStoreService(a.vaultKey), a.pool)
	a.msgs = vault.NewMsgServer(a.vault)
	a.auth = ante.NewAuthenticator(runtime.NewKVStoreService(a.authKey))

	if err := a.initChain(genesis); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// initChain applies genesis on an empty store and recovers the pool id otherwise.
func (a *App) initChain(genesis types.GenesisState) error {
	ctx := a.newContext(a.cms, a.cms.LastCommitID().Version, context.Background())
	exists, err := a.vault.IsInstantiated(ctx)
	if err != nil {
		return err
	}
	if exists {
		info, err := a.vault.GetVaultInfo(ctx)
		if err != nil {
			return err
		}
		a.poolID = info.PoolID
		metrics.BlockHeight.Set(float64(a.cms.LastCommitID().Version))
		a.log.Info().Int64("height", a.cms.LastCommitID().Version).Uint64("pool_id", a.poolID).Msg("Resumed from stored state")
		return nil
	}

	height := a.cms.LastCommitID().Version + 1
	cache := a.cms.CacheMultiStore()
	ctx = a.newContext(cache, height, context.Background())

	p := genesis.Pool
	poolID, err := a.pool.CreatePool(ctx, p.Token0, p.Token1, p.TickSpacing, p.CurrentTick, p.SpreadFactor)
	if err != nil {
		return fmt.Errorf("failed to create genesis pool: %w", err)
	}
	msg := genesis.Vault
	msg.PoolID = poolID
	if err := a.vault.Instantiate(ctx, msg); err != nil {
		return fmt.Errorf("failed to instantiate vault: %w", err)
	}

	cache.Write()
	a.cms.Commit()
	a.poolID = poolID
	metrics.BlockHeight.Set(float64(height))
	a.log.Info().
		Str("chain_id", a.chainID).
		Uint64("pool_id", poolID).
		Str("symbol", msg.Symbol).
		Msg("Applied genesis")
	return nil
}

func (a *App) newContext(ms storetypes.MultiStore, height int64, goCtx context.Context) sdk.Context {
	return kvstore.NewContext(ms, a.chainID, height, a.clock(), a.sdkLog).WithContext(goCtx)
}

// Deliver runs msg as the next block. The response is the handler's response type.
// The sender is trusted as is: only in-process callers such as the automated
// rebalancer use it. Remote requests go through DeliverTx.
func (a *App) Deliver(ctx context.Context, msg types.Msg) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := a.cms.LastCommitID().Version + 1
	cache := a.cms.CacheMultiStore()
	res, err := a.run(ctx, cache, height, msg)
	if err != nil {
		return Result{}, err
	}
	cache.Write()
	a.commit(height)
	return res, nil
}

// DeliverTx authenticates tx and runs its message as the next block. A transaction
// that fails authentication changes nothing. Once authenticated, the signer's
// sequence is consumed and committed even when the message itself fails.
func (a *App) DeliverTx(ctx context.Context, tx types.Tx) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := a.cms.LastCommitID().Version + 1
	authCache := a.cms.CacheMultiStore()
	msg, err := a.auth.Authenticate(a.newContext(authCache, height, ctx), a.chainID, tx)
	if err != nil {
		msgType := tx.Type
		if !types.KnownMsgType(msgType) {
			msgType = "unknown"
		}
		metrics.ObserveMessage(msgType, err)
		a.log.Warn().Err(err).Str("msg_type", tx.Type).Msg("Rejected transaction")
		return Result{}, err
	}

	msgCache := authCache.CacheMultiStore()
	res, err := a.run(ctx, msgCache, height, msg)
	if err == nil {
		msgCache.Write()
	}
	authCache.Write()
	a.commit(height)
	return res, err
}

// run executes msg on ms and records the outcome.
func (a *App) run(ctx context.Context, ms storetypes.MultiStore, height int64, msg types.Msg) (Result, error) {
	sdkCtx := a.newContext(ms, height, ctx)
	resp, err := a.msgs.Handle(sdkCtx, msg)
	metrics.ObserveMessage(msg.Type(), err)
	a.record(ctx, sdkCtx.BlockTime(), height, msg, resp, err)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Height:   height,
		Response: resp,
		Events:   convertEvents(sdkCtx.EventManager().Events()),
	}, nil
}

func (a *App) commit(height int64) {
	a.cms.Commit()
	metrics.BlockHeight.Set(float64(height))
}

// Sequence is the sequence the next transaction signed by addr must carry.
func (a *App) Sequence(ctx context.Context, addr sdk.AccAddress) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sdkCtx := a.newContext(a.cms.CacheMultiStore(), a.cms.LastCommitID().Version, ctx)
	return a.auth.Sequence(sdkCtx, addr)
}

// Query runs fn against the last committed state. Writes made by fn are discarded.
func (a *App) Query(ctx context.Context, fn func(ctx sdk.Context, k vault.Keeper) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sdkCtx := a.newContext(a.cms.CacheMultiStore(), a.cms.LastCommitID().Version, ctx)
	return fn(sdkCtx, a.vault)
}

// Pool returns the state of the managed pool.
func (a *App) Pool(ctx context.Context) (types.PoolState, error) {
	var pool types.PoolState
	err := a.Query(ctx, func(sdkCtx sdk.Context, _ vault.Keeper) error {
		var err error
		pool, err = a.pool.GetPool(sdkCtx, a.poolID)
		return err
	})
	return pool, err
}

// SetTick moves the simulated pool price, committing a block.
func (a *App) SetTick(ctx context.Context, tick int64) (int64, error) {
	return a.simulate(ctx, func(sdkCtx sdk.Context) error {
		return a.pool.SetTick(sdkCtx, a.poolID, tick)
	})
}

// AccrueFees credits swap fees to the in-range positions of the simulated pool,
// committing a block. It returns the amounts actually credited.
func (a *App) AccrueFees(ctx context.Context, fees0, fees1 sdkmath.Int) (types.Funds, int64, error) {
	var paid types.Funds
	height, err := a.simulate(ctx, func(sdkCtx sdk.Context) error {
		var err error
		paid, err = a.pool.AccrueFees(sdkCtx, a.poolID, fees0, fees1)
		return err
	})
	return paid, height, err
}

func (a *App) simulate(ctx context.Context, fn func(sdkCtx sdk.Context) error) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := a.cms.LastCommitID().Version + 1
	cache := a.cms.CacheMultiStore()
	if err := fn(a.newContext(cache, height, ctx)); err != nil {
		return 0, err
	}
	cache.Write()
	a.commit(height)
	return height, nil
}

// Height is the height of the last committed state.
func (a *App) Height() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cms.LastCommitID().Version
}

func (a *App) ChainID() string { return a.chainID }

func (a *App) PoolID() uint64 { return a.poolID }

// Journal is the journal every delivered message is recorded to.
func (a *App) Journal() state.Journal { return a.journal }

// Close releases the database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}

// record writes an action receipt. Journal failures never fail the message.
func (a *App) record(ctx context.Context, at time.Time, height int64, msg types.Msg, resp any, err error) {
	receipt := types.ActionReceipt{
		Timestamp: at,
		Height:    height,
		MsgType:   msg.Type(),
		Sender:    msg.GetSender(),
		Success:   err == nil,
	}
	if err != nil {
		receipt.Message = err.Error()
	}
	if bz, mErr := json.Marshal(msg); mErr == nil {
		receipt.Request = bz
	}
	if err == nil {
		if bz, mErr := json.Marshal(resp); mErr == nil {
			receipt.Response = bz
		}
	}
	if _, jErr := a.journal.SaveActionReceipt(ctx, receipt); jErr != nil {
		a.log.Warn().Err(jErr).Str("msg_type", receipt.MsgType).Msg("Failed to record action receipt")
	}
}

func convertEvents(events sdk.Events) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		attrs := make([]Attribute, 0, len(e.Attributes))
		for _, attr := range e.Attributes {
			attrs = append(attrs, Attribute{Key: attr.Key, Value: attr.Value})
		}
		out = append(out, Event{Type: e.Type, Attributes: attrs})
	}
	return out
}

// EventTypes lists the types of events in emission order.
func EventTypes(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
