// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/xonecas/agentcore/internal/protocol"
)

// Config is the root configuration structure.
type Config struct {
	DefaultProvider string                    `toml:"default_provider"`
	Providers       map[string]ProviderConfig `toml:"providers"`
	Workspace       WorkspaceConfig           `toml:"workspace"`
	Cache           CacheConfig               `toml:"cache"`
}

// WorkspaceConfig holds per-project settings: a root_override path (loaded,
// but not consulted when the CLI chooses the workspace root) and the storage-mode
// choice of spec §6 ("Storage mode is a per-project setting {Local,
// Server}"), plus the one workspace-scoped bypass this repo supports: an
// operator-approved override that lets tools touch paths `.gitignore`
// would otherwise hide from search/read.
type WorkspaceConfig struct {
	RootOverride   string `toml:"root_override"`
	StorageMode    string `toml:"storage_mode"`
	GitignoreAllow bool   `toml:"gitignore_allow"`
}

// ResolvedStorageMode returns the configured storage mode, defaulting to
// local (matching spec §6's "Local mode" being the baseline before a
// project opts into server-held transcripts).
func (w WorkspaceConfig) ResolvedStorageMode() protocol.StorageMode {
	if w.StorageMode == string(protocol.StorageServer) {
		return protocol.StorageServer
	}
	return protocol.StorageLocal
}

// CacheConfig holds web cache settings.
type CacheConfig struct {
	TTLHours int `toml:"ttl_hours"`
}

// CacheTTLOrDefault returns the configured TTL or 24 hours if unset.
func (c CacheConfig) CacheTTLOrDefault() int {
	if c.TTLHours <= 0 {
		return 24
	}
	return c.TTLHours
}

// ProviderConfig names one selectable model and the session defaults used
// when the user doesn't override them (spec's "provider/session
// defaults").
type ProviderConfig struct {
	Endpoint       string  `toml:"endpoint"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	DefaultSession string  `toml:"default_session"`
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers: make(map[string]ProviderConfig),
	}

	// Config file is required
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	// File must exist
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Load from file
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	} else {
		for name, providerCfg := range c.Providers {
			errs = append(errs, validateProviderConfig(name, providerCfg)...)
		}
	}

	// Validate default provider if specified
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider=%q does not exist in providers", c.DefaultProvider))
		}
	}

	if c.Workspace.StorageMode != "" &&
		c.Workspace.StorageMode != string(protocol.StorageLocal) &&
		c.Workspace.StorageMode != string(protocol.StorageServer) {
		errs = append(errs, fmt.Errorf("workspace.storage_mode=%q must be %q or %q",
			c.Workspace.StorageMode, protocol.StorageLocal, protocol.StorageServer))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateProviderConfig(name string, cfg ProviderConfig) []error {
	var errs []error
	if cfg.Endpoint == "" {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint is required", name))
	} else if err := validateEndpoint(cfg.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("providers.%s.endpoint=%q is invalid: %v", name, cfg.Endpoint, err))
	}

	if cfg.Model == "" {
		errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
	}

	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("providers.%s.temperature=%v must be between 0.0 and 2.0", name, cfg.Temperature))
	}

	return errs
}

func validateEndpoint(value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("missing scheme or host")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"AGENTCORE_ENDPOINT", func(v string) {
			if v != "" && cfg.DefaultProvider != "" {
				p := cfg.Providers[cfg.DefaultProvider]
				p.Endpoint = v
				cfg.Providers[cfg.DefaultProvider] = p
			}
		}},
		{"AGENTCORE_STORAGE_MODE", func(v string) {
			if v != "" {
				cfg.Workspace.StorageMode = v
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}

// DataDir returns the path to the agentcore data directory (~/.config/agentcore).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "agentcore"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}
