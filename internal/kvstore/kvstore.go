// Package kvstore sets up the versioned key-value multistore the keepers run on and
// provides the value codec their collections use.
package kvstore

import (
	"encoding/json"
	"fmt"
	"time"

	collcodec "cosmossdk.io/collections/codec"
	"cosmossdk.io/log"
	rootstore "cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	pruningtypes "cosmossdk.io/store/pruning/types"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// OpenDB opens a goleveldb database under dir, or an in-memory one when dir is empty.
func OpenDB(name, dir string) (dbm.DB, error) {
	if dir == "" {
		return dbm.NewMemDB(), nil
	}
	db, err := dbm.NewDB(name, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database in %s: %w", name, dir, err)
	}
	return db, nil
}

// MountKVStores mounts one IAVL store per key on db and loads the latest version.
func MountKVStores(db dbm.DB, logger log.Logger, keys ...*storetypes.KVStoreKey) (storetypes.CommitMultiStore, error) {
	cms := rootstore.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	cms.SetPruning(pruningtypes.NewPruningOptions(pruningtypes.PruningEverything))
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load multistore: %w", err)
	}
	return cms, nil
}

// NewContext builds the execution context of one invocation on top of ms.
func NewContext(ms storetypes.MultiStore, chainID string, height int64, blockTime time.Time, logger log.Logger) sdk.Context {
	header := cmtproto.Header{ChainID: chainID, Height: height, Time: blockTime}
	return sdk.NewContext(ms, header, false, logger)
}

// Snapshot copies every key/value pair of one store. Used to prove that a failed
// invocation left the persisted state untouched.
func Snapshot(ctx sdk.Context, key storetypes.StoreKey) map[string][]byte {
	out := make(map[string][]byte)
	it := ctx.KVStore(key).Iterator(nil, nil)
	defer it.Close()
	for ; it.Valid(); it.Next() {
		out[string(it.Key())] = append([]byte(nil), it.Value()...)
	}
	return out
}

type jsonValue[T any] struct {
	name string
}

// JSONValue encodes collection values as JSON. sdkmath and address types marshal to
// canonical strings, so the encoding is deterministic.
func JSONValue[T any](name string) collcodec.ValueCodec[T] {
	return jsonValue[T]{name: name}
}

func (c jsonValue[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (c jsonValue[T]) Decode(b []byte) (T, error) {
	var value T
	if err := json.Unmarshal(b, &value); err != nil {
		return value, fmt.Errorf("failed to decode %s: %w", c.name, err)
	}
	return value, nil
}

func (c jsonValue[T]) EncodeJSON(value T) ([]byte, error) {
	return c.Encode(value)
}

func (c jsonValue[T]) DecodeJSON(b []byte) (T, error) {
	return c.Decode(b)
}

func (c jsonValue[T]) Stringify(value T) string {
	return fmt.Sprintf("%+v", value)
}

func (c jsonValue[T]) ValueType() string {
	return "clvault/json/" + c.name
}
