package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadCLI loads configuration for CLI tools.
// Uses $HOME/.ibridge as the default IBRIDGE_CONFIG_DIR if not set.
func LoadCLI() (*Config, error) {
	configDir := os.Getenv(EnvPrefix + "_CONFIG_DIR")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		configDir = filepath.Join(home, ".ibridge")
	}

	return load(filepath.Join(configDir, "config.yaml"))
}
