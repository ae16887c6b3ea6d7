package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/elys-network/clvault/internal/state"
)

// Endpoint configuration. Populated by LoadConfig.
var (
	// HTTPAddr is the listen address of the web API.
	HTTPAddr string
	// GRPCAddr is the listen address of the gRPC service.
	GRPCAddr string
	// NodeGRPC is the gRPC endpoint the tx and query commands dial.
	NodeGRPC string
	// SimulationAPI exposes the routes that move the simulated pool price and accrue
	// swap fees.
	SimulationAPI bool

	// DBEnabled turns on the PostgreSQL journal.
	DBEnabled bool
	// Database holds the journal connection parameters.
	Database state.DBConfig
)

const (
	keyHTTPAddr   = "http_addr"
	keyGRPCAddr   = "grpc_addr"
	keyNodeGRPC   = "node_grpc"
	keySimulation = "simulation_api"
	keyDBEnabled  = "db_enabled"
	keyDBHost     = "db_host"
	keyDBPort     = "db_port"
	keyDBUser     = "db_user"
	keyDBPassword = "db_password"
	keyDBName     = "db_name"
	keyDBSSLMode  = "db_sslmode"
)

func setEndpointDefaults(v *viper.Viper) {
	v.SetDefault(keyHTTPAddr, ":8080")
	v.SetDefault(keyGRPCAddr, ":9090")
	v.SetDefault(keyNodeGRPC, "localhost:9090")
	v.SetDefault(keySimulation, true)
	v.SetDefault(keyDBEnabled, false)
	v.SetDefault(keyDBHost, "localhost")
	v.SetDefault(keyDBPort, 5432)
	v.SetDefault(keyDBName, "clvault")
	v.SetDefault(keyDBSSLMode, "disable")
}

// loadEndpointConfig loads the endpoint configuration. Called by LoadConfig.
func loadEndpointConfig(v *viper.Viper) error {
	var err error

	if HTTPAddr, err = getString(v, keyHTTPAddr); err != nil {
		return err
	}
	if GRPCAddr, err = getString(v, keyGRPCAddr); err != nil {
		return err
	}
	if NodeGRPC, err = getString(v, keyNodeGRPC); err != nil {
		return err
	}

	if SimulationAPI, err = getBool(v, keySimulation); err != nil {
		return err
	}

	if err := LoadDatabaseConfig(v); err != nil {
		return err
	}

	log.Debug().
		Str("HTTPAddr", HTTPAddr).
		Str("GRPCAddr", GRPCAddr).
		Bool("SimulationAPI", SimulationAPI).
		Bool("DBEnabled", DBEnabled).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// LoadDatabaseConfig sets DBEnabled and, when enabled, Database. Called by
// LoadConfig and by tools that only need the database.
func LoadDatabaseConfig(v *viper.Viper) error {
	var err error
	if DBEnabled, err = getBool(v, keyDBEnabled); err != nil {
		return err
	}
	Database = state.DBConfig{}
	if !DBEnabled {
		return nil
	}
	if Database.Host, err = getString(v, keyDBHost); err != nil {
		return err
	}
	if Database.Port, err = getInt(v, keyDBPort); err != nil {
		return err
	}
	if Database.User, err = getString(v, keyDBUser); err != nil {
		return err
	}
	Database.Password = v.GetString(keyDBPassword)
	if Database.DBName, err = getString(v, keyDBName); err != nil {
		return err
	}
	Database.SSLMode = v.GetString(keyDBSSLMode)
	return nil
}

// NodeEndpoint returns the gRPC endpoint the client commands dial. It does not
// need the rest of the node configuration.
func NodeEndpoint(v *viper.Viper) (string, error) {
	return getString(v, keyNodeGRPC)
}
