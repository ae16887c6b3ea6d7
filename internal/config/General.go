package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppConfig holds all node configuration. Values come from flags, the environment
// (a .env file is loaded first when present) and an optional config file, in that
// order of precedence. They are populated at startup by LoadConfig.
var (
	// ChainID is the chain id written into every block header.
	ChainID string

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string
	// LogFile, when set, receives a copy of every log line.
	LogFile string

	// DataDir holds the goleveldb state. Empty runs the node in memory.
	DataDir string
	// GenesisFile is a JSON genesis document. Empty builds genesis from the defaults
	// in Parameters.go and the admin and protocol addresses below.
	GenesisFile string

	// AdminAddress is the vault admin in the default genesis.
	AdminAddress string
	// ProtocolAddress receives the protocol fee in the default genesis.
	ProtocolAddress string

	// AVMEnabled starts the automated rebalancer with the node.
	AVMEnabled bool
	// RebalancerAddress is the sender of the automated rebalances. Defaults to the admin.
	RebalancerAddress string
	// RebalanceInterval is the period of the automated rebalancer.
	RebalanceInterval time.Duration
)

// Environment keys. Viper reads each from the upper-cased variable of the same name.
const (
	keyChainID           = "chain_id"
	keyLogLevel          = "log_level"
	keyLogFile           = "log_file"
	keyDataDir           = "data_dir"
	keyGenesisFile       = "genesis_file"
	keyAdminAddress      = "admin_address"
	keyProtocolAddress   = "protocol_address"
	keyAVMEnabled        = "avm_enabled"
	keyRebalancerAddress = "rebalancer_address"
	keyRebalanceInterval = "rebalance_interval"
)

// NewViper returns a viper instance reading the environment, with the node defaults
// set. A .env file in the working directory is loaded into the environment first.
func NewViper() *viper.Viper {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyChainID, "clvault-local")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFile, "")
	v.SetDefault(keyDataDir, "")
	v.SetDefault(keyGenesisFile, "")
	v.SetDefault(keyAVMEnabled, true)
	v.SetDefault(keyRebalancerAddress, "")
	v.SetDefault(keyRebalanceInterval, "1m")
	setEndpointDefaults(v)
	setKeyringDefaults(v)
	return v
}

// BindFlags binds command flags to their configuration keys. Flag names use dashes,
// keys use underscores.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// ReadConfigFile merges a YAML, TOML or JSON config file into v.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.New("failed to read config file " + path + ": " + err.Error())
	}
	return nil
}

// LoadConfig resolves every configuration value from v and sets the package vars.
func LoadConfig(v *viper.Viper) error {
	log.Info().Msg("Loading node configuration...")

	var err error

	ChainID, err = getString(v, keyChainID)
	if err != nil {
		return err
	}
	LogLevel = v.GetString(keyLogLevel)
	LogFile = v.GetString(keyLogFile)

	DataDir, err = expandHome(v.GetString(keyDataDir))
	if err != nil {
		return err
	}
	GenesisFile, err = expandHome(v.GetString(keyGenesisFile))
	if err != nil {
		return err
	}

	AdminAddress = v.GetString(keyAdminAddress)
	ProtocolAddress = v.GetString(keyProtocolAddress)
	if GenesisFile == "" {
		// the default genesis needs both addresses
		if AdminAddress, err = getString(v, keyAdminAddress); err != nil {
			return err
		}
		if ProtocolAddress, err = getString(v, keyProtocolAddress); err != nil {
			return err
		}
	}

	AVMEnabled, err = getBool(v, keyAVMEnabled)
	if err != nil {
		return err
	}
	RebalancerAddress = v.GetString(keyRebalancerAddress)
	if RebalancerAddress == "" {
		RebalancerAddress = AdminAddress
	}
	if AVMEnabled && RebalancerAddress == "" {
		return errors.New("environment variable " + envName(keyRebalancerAddress) + " is required when the AVM is enabled with a genesis file")
	}
	RebalanceInterval, err = getDuration(v, keyRebalanceInterval)
	if err != nil {
		return err
	}

	if err := loadEndpointConfig(v); err != nil {
		return err
	}

	log.Debug().
		Str("ChainID", ChainID).
		Str("DataDir", DataDir).
		Bool("AVMEnabled", AVMEnabled).
		Dur("RebalanceInterval", RebalanceInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}

// getString retrieves a required string value.
func getString(v *viper.Viper, key string) (string, error) {
	if value := v.GetString(key); value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + envName(key) + " is required but not set")
}

func getBool(v *viper.Viper, key string) (bool, error) {
	valueStr := v.GetString(key)
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + envName(key) + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	valueStr := v.GetString(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + envName(key) + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	valueStr := v.GetString(key)
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + envName(key) + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
