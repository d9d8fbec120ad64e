package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate the client's files.
const (
	EnvConfigPath = "ACTA_CONFIG_PATH"
	EnvHome       = "ACTA_HOME"
)

// Defaults are the well-known locations of the client's files.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	// EnvFiles are the .env files loaded before the config is read,
	// lowest precedence last.
	EnvFiles []string
}

// GetDefaults resolves the default paths:
//   - ACTA_CONFIG_PATH: config file (default: ~/.config/acta.toml)
//   - ACTA_HOME: data directory (default: ~/.local/share/acta)
func GetDefaults() (Defaults, error) {
	configPath, err := configPath()
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := baseDir()
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		EnvFiles:   []string{".env", filepath.Join(baseDir, ".env")},
	}, nil
}

func configPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "acta.toml"), nil
}

func baseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "acta"), nil
}
