package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvault/internal/types"
)

var (
	admin    = sdk.AccAddress([]byte("admin_______________")).String()
	protocol = sdk.AccAddress([]byte("protocol____________")).String()
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_ADDRESS", admin)
	t.Setenv("PROTOCOL_ADDRESS", protocol)
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	require.NoError(t, LoadConfig(NewViper()))
	assert.Equal(t, "clvault-local", ChainID)
	assert.Equal(t, "info", LogLevel)
	assert.Empty(t, DataDir)
	assert.True(t, AVMEnabled)
	assert.Equal(t, admin, RebalancerAddress, "rebalancer defaults to the admin")
	assert.Equal(t, time.Minute, RebalanceInterval)
	assert.Equal(t, ":8080", HTTPAddr)
	assert.Equal(t, ":9090", GRPCAddr)
	assert.True(t, SimulationAPI)
	assert.False(t, DBEnabled)

	g, err := LoadGenesis()
	require.NoError(t, err)
	assert.Equal(t, "clvault-local", g.ChainID)
	assert.Equal(t, admin, g.Vault.Admin)
	assert.Equal(t, types.RebalancerAdmin, g.Vault.Rebalancer.Kind)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAIN_ID", "clvault-1")
	t.Setenv("REBALANCE_INTERVAL", "15s")
	t.Setenv("AVM_ENABLED", "false")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_USER", "vault")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_PORT", "6543")

	require.NoError(t, LoadConfig(NewViper()))
	assert.Equal(t, "clvault-1", ChainID)
	assert.Equal(t, 15*time.Second, RebalanceInterval)
	assert.False(t, AVMEnabled)
	require.True(t, DBEnabled)
	assert.Equal(t, "vault", Database.User)
	assert.Equal(t, 6543, Database.Port)
	assert.Equal(t, "clvault", Database.DBName)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing admin", map[string]string{"PROTOCOL_ADDRESS": protocol}, "environment variable ADMIN_ADDRESS is required but not set"},
		{"bad interval", map[string]string{"ADMIN_ADDRESS": admin, "PROTOCOL_ADDRESS": protocol, "REBALANCE_INTERVAL": "soon"}, "REBALANCE_INTERVAL must be a positive duration"},
		{"bad bool", map[string]string{"ADMIN_ADDRESS": admin, "PROTOCOL_ADDRESS": protocol, "AVM_ENABLED": "maybe"}, "AVM_ENABLED must be a valid bool"},
		{"db without user", map[string]string{"ADMIN_ADDRESS": admin, "PROTOCOL_ADDRESS": protocol, "DB_ENABLED": "true"}, "DB_USER is required"},
		{"bad port", map[string]string{"ADMIN_ADDRESS": admin, "PROTOCOL_ADDRESS": protocol, "DB_ENABLED": "true", "DB_USER": "u", "DB_PORT": "x"}, "DB_PORT must be a valid int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := LoadConfig(NewViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":7000")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("http-addr", ":8080", "")
	flags.Duration("rebalance-interval", time.Minute, "")
	require.NoError(t, flags.Parse([]string{"--http-addr=:9999", "--rebalance-interval=5s"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, LoadConfig(v))
	assert.Equal(t, ":9999", HTTPAddr)
	assert.Equal(t, 5*time.Second, RebalanceInterval)
}

func TestGenesisFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	g := DefaultGenesis("from-file", admin, protocol)
	g.Pool.CurrentTick = 200_000
	bz, err := json.Marshal(g)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bz, 0o600))

	t.Setenv("GENESIS_FILE", path)
	t.Setenv("REBALANCER_ADDRESS", admin)
	require.NoError(t, LoadConfig(NewViper()))

	loaded, err := LoadGenesis()
	require.NoError(t, err)
	assert.Equal(t, "from-file", loaded.ChainID)
	assert.Equal(t, int64(200_000), loaded.Pool.CurrentTick)
	assert.True(t, loaded.Vault.Params.BaseFactor.Equal(DefaultVaultParameters.BaseFactor))
}

func TestReadConfigFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "clvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain_id: from-yaml\nhttp_addr: \":8181\"\n"), 0o600))

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))
	require.NoError(t, LoadConfig(v))
	assert.Equal(t, "from-yaml", ChainID)
	assert.Equal(t, ":8181", HTTPAddr)

	require.Error(t, ReadConfigFile(NewViper(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestKeyringConfig(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Keyring(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Backend)
	assert.Equal(t, filepath.Join(home, ".clvault"), cfg.Dir)

	t.Setenv("KEYRING_BACKEND", "file")
	t.Setenv("KEYRING_DIR", "/var/lib/clvault/keys")
	cfg, err = Keyring(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, "/var/lib/clvault/keys", cfg.Dir)
}
