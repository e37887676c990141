// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Environment string            `yaml:"environment" json:"environment"`
	Session     *SessionConfig    `yaml:"session" json:"session"`
	Handshake   *HandshakeConfig  `yaml:"handshake" json:"handshake"`
	PAKE        *PAKEConfig       `yaml:"pake" json:"pake"`
	TrustStore  *TrustStoreConfig `yaml:"trust_store" json:"trust_store"`
	Bootstrap   *BootstrapConfig  `yaml:"bootstrap" json:"bootstrap"`
	KeyStore    *KeyStoreConfig   `yaml:"keystore" json:"keystore"`
	Logging     *LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig    `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig     `yaml:"health" json:"health"`
}

// SessionConfig mirrors session.Config: the file-level settings a
// caller translates into the session manager's lifecycle limits.
type SessionConfig struct {
	MaxIdleTime     time.Duration `yaml:"max_idle_time" json:"max_idle_time"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`
}

// HandshakeConfig tunes the handshake driver's retry behavior above and
// beyond the wire-level HandshakePolicy (suite/tier negotiation).
type HandshakeConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	RequirePQC   bool          `yaml:"require_pqc" json:"require_pqc"`
}

// PAKEConfig mirrors pake.RateLimiterConfig at the file level.
type PAKEConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff" json:"base_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff" json:"max_backoff"`
	LockoutDuration time.Duration `yaml:"lockout_duration" json:"lockout_duration"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// TrustStoreConfig selects and tunes the trust.Store backend (C8).
type TrustStoreConfig struct {
	Backend         string        `yaml:"backend" json:"backend"` // memory, postgres
	DSN             string        `yaml:"dsn" json:"dsn"`
	TombstoneGCAfter time.Duration `yaml:"tombstone_gc_after" json:"tombstone_gc_after"`
}

// BootstrapConfig tunes the peer-KEM bootstrap cache (C9).
type BootstrapConfig struct {
	EntryTTL time.Duration `yaml:"entry_ttl" json:"entry_ttl"`
}

// KeyStoreConfig represents key storage configuration
type KeyStoreConfig struct {
	Type          string `yaml:"type" json:"type"`
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from a file
func LoadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	// Try to parse as YAML first
	if err := yaml.Unmarshal(data, cfg); err != nil {
		// Try JSON if YAML fails
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	// Set defaults
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file
func SaveToFile(cfg *Config, path string) error {
	// Determine format by extension
	var data []byte
	var err error

	if path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Session != nil {
		if cfg.Session.MaxIdleTime == 0 {
			cfg.Session.MaxIdleTime = 30 * time.Minute
		}
		if cfg.Session.CleanupInterval == 0 {
			cfg.Session.CleanupInterval = 5 * time.Minute
		}
		if cfg.Session.MaxSessions == 0 {
			cfg.Session.MaxSessions = 10000
		}
	}

	if cfg.Handshake != nil {
		if cfg.Handshake.Timeout == 0 {
			cfg.Handshake.Timeout = 30 * time.Second
		}
		if cfg.Handshake.MaxRetries == 0 {
			cfg.Handshake.MaxRetries = 3
		}
		if cfg.Handshake.RetryBackoff == 0 {
			cfg.Handshake.RetryBackoff = 1 * time.Second
		}
	}

	if cfg.PAKE != nil {
		if cfg.PAKE.MaxAttempts == 0 {
			cfg.PAKE.MaxAttempts = 5
		}
		if cfg.PAKE.BaseBackoff == 0 {
			cfg.PAKE.BaseBackoff = time.Second
		}
		if cfg.PAKE.MaxBackoff == 0 {
			cfg.PAKE.MaxBackoff = time.Hour
		}
		if cfg.PAKE.LockoutDuration == 0 {
			cfg.PAKE.LockoutDuration = 15 * time.Minute
		}
		if cfg.PAKE.CleanupInterval == 0 {
			cfg.PAKE.CleanupInterval = 60 * time.Second
		}
	}

	if cfg.TrustStore != nil {
		if cfg.TrustStore.Backend == "" {
			cfg.TrustStore.Backend = "memory"
		}
		if cfg.TrustStore.TombstoneGCAfter == 0 {
			cfg.TrustStore.TombstoneGCAfter = 30 * 24 * time.Hour
		}
	}

	if cfg.Bootstrap != nil {
		if cfg.Bootstrap.EntryTTL == 0 {
			cfg.Bootstrap.EntryTTL = 24 * time.Hour
		}
	}

	if cfg.KeyStore != nil {
		if cfg.KeyStore.Type == "" {
			cfg.KeyStore.Type = "encrypted-file"
		}
		if cfg.KeyStore.Directory == "" {
			cfg.KeyStore.Directory = ".sage/keys"
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}
}
