package config

import (
	"github.com/spf13/viper"
)

// KeyringConfig locates the keyring the tx and keys commands sign with.
type KeyringConfig struct {
	// Backend is the keyring backend: os, file, test, ...
	Backend string
	// Dir is the keyring directory. A leading ~/ is expanded.
	Dir string
}

const (
	keyKeyringBackend = "keyring_backend"
	keyKeyringDir     = "keyring_dir"
)

func setKeyringDefaults(v *viper.Viper) {
	v.SetDefault(keyKeyringBackend, "test")
	v.SetDefault(keyKeyringDir, "~/.clvault")
}

// Keyring resolves the keyring configuration. It does not need the rest of the node
// configuration.
func Keyring(v *viper.Viper) (KeyringConfig, error) {
	backend, err := getString(v, keyKeyringBackend)
	if err != nil {
		return KeyringConfig{}, err
	}
	dir, err := getString(v, keyKeyringDir)
	if err != nil {
		return KeyringConfig{}, err
	}
	if dir, err = expandHome(dir); err != nil {
		return KeyringConfig{}, err
	}
	return KeyringConfig{Backend: backend, Dir: dir}, nil
}
