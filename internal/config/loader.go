package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".citawatch.yaml"

// LoadConfigFile loads the configuration file at path.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a configuration document. Unknown keys are errors so
// that a misspelled option does not silently fall back to its default.
func ParseConfig(data []byte) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .citawatch.yaml in the current directory
// 3. Look for config.yaml in the XDG config directory
// 4. Look for .citawatch.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Load finds, reads and validates the configuration of cfg, filling
// cfg.File and cfg.Targets. Secrets from getenv override the file.
func Load(cfg *Config, getenv func(string) string) error {
	path := FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return fmt.Errorf("%w: run 'citawatch init' to create %s", ErrConfigNotFound, DefaultConfigFile)
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if getenv != nil {
		cf.ApplyEnv(getenv)
	}

	targets, err := cf.Targets()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cfg.ConfigFilePath = path
	cfg.File = cf
	cfg.Targets = targets
	return cfg.Validate()
}
