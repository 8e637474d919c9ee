// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Parley
// clients.
//
// Configuration is loaded from a single file specified by either the
// PARLEY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for a Parley client.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures the connection to the Parley server.
	Server ServerConfig `yaml:"server"`

	// Send configures the message send pipeline.
	Send SendConfig `yaml:"send"`

	// Cache configures the local message cache.
	Cache CacheConfig `yaml:"cache"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Send   *SendConfig   `yaml:"send,omitempty"`
	Cache  *CacheConfig  `yaml:"cache,omitempty"`
}

// ServerConfig configures the connection to the Parley server.
type ServerConfig struct {
	// BaseURL is the base URL of the HTTP API
	// (e.g., "https://parley.example.com").
	BaseURL string `yaml:"base_url"`

	// PushURL is the websocket URL of the push channel
	// (e.g., "wss://parley.example.com/push"). When empty, derived
	// from BaseURL by swapping the scheme and appending /push.
	PushURL string `yaml:"push_url"`

	// TokenEnv names the environment variable holding the access
	// token. The token itself never appears in the config file.
	// Default: PARLEY_TOKEN
	TokenEnv string `yaml:"token_env"`
}

// ResolvedPushURL returns the push endpoint: PushURL when set,
// otherwise derived from BaseURL by swapping the scheme to websocket
// and appending /push.
func (s ServerConfig) ResolvedPushURL() string {
	if s.PushURL != "" {
		return s.PushURL
	}
	derived := s.BaseURL
	switch {
	case strings.HasPrefix(derived, "https://"):
		derived = "wss://" + strings.TrimPrefix(derived, "https://")
	case strings.HasPrefix(derived, "http://"):
		derived = "ws://" + strings.TrimPrefix(derived, "http://")
	}
	return strings.TrimRight(derived, "/") + "/push"
}

// SendConfig configures the message send pipeline.
type SendConfig struct {
	// AckTimeout is how long to wait for the server acknowledgment
	// before a send is reported as timed out. Default: 10s
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// CacheConfig configures the local message cache.
type CacheConfig struct {
	// PageSize is the number of messages requested per pagination
	// fetch. Default: 50
	PageSize int `yaml:"page_size"`

	// SnapshotPath is where the cache snapshot is persisted between
	// runs. Empty disables snapshot persistence.
	SnapshotPath string `yaml:"snapshot_path"`
}

// Default returns the default configuration. These defaults ensure
// every field has a sensible zero-value before the config file is
// merged in. The config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Server: ServerConfig{
			TokenEnv: "PARLEY_TOKEN",
		},
		Send: SendConfig{
			AckTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			PageSize:     50,
			SnapshotPath: filepath.Join(homeDir, ".cache", "parley", "snapshot.cbor.zst"),
		},
	}
}

// Load loads configuration from the PARLEY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// If PARLEY_CONFIG is not set, Load fails; there are no fallbacks.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values (the access token is the one exception,
// and the file only names the variable). The only expansion performed
// is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if cfg.Server.BaseURL == "" {
		return nil, fmt.Errorf("config: %s: server.base_url is required", path)
	}
	return cfg, nil
}

// Token reads the access token from the configured environment
// variable. Returns an error when the variable is unset or empty.
func (c *Config) Token() (string, error) {
	token := os.Getenv(c.Server.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("config: access token environment variable %s is not set", c.Server.TokenEnv)
	}
	return token, nil
}

// applyEnvironmentOverrides applies the section matching c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.BaseURL != "" {
			c.Server.BaseURL = overrides.Server.BaseURL
		}
		if overrides.Server.PushURL != "" {
			c.Server.PushURL = overrides.Server.PushURL
		}
		if overrides.Server.TokenEnv != "" {
			c.Server.TokenEnv = overrides.Server.TokenEnv
		}
	}
	if overrides.Send != nil {
		if overrides.Send.AckTimeout != 0 {
			c.Send.AckTimeout = overrides.Send.AckTimeout
		}
	}
	if overrides.Cache != nil {
		if overrides.Cache.PageSize != 0 {
			c.Cache.PageSize = overrides.Cache.PageSize
		}
		if overrides.Cache.SnapshotPath != "" {
			c.Cache.SnapshotPath = overrides.Cache.SnapshotPath
		}
	}
}

// expandVariables expands ${HOME} and $HOME in path fields.
func (c *Config) expandVariables() {
	c.Cache.SnapshotPath = os.Expand(c.Cache.SnapshotPath, func(name string) string {
		if name == "HOME" {
			home, _ := os.UserHomeDir()
			return home
		}
		return os.Getenv(name)
	})
}
