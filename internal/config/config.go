// Copyright (c) 2025 Web3Authn Labs
//
// This file is part of go-vrf-sdk.
//
// go-vrf-sdk is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@web3authn.dev for commercial licensing options.

// Package config loads the relay server configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete relay server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Shamir    ShamirConfig    `yaml:"shamir"`
	Keys      KeysConfig      `yaml:"keys"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"` // info, debug
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// ShamirConfig pins the commutative-encryption group. All clients of a
// relay must be configured with the same prime.
type ShamirConfig struct {
	PB64u string `yaml:"p_b64u"`
}

// KeysConfig controls server key rotation. RotateInterval of zero
// disables automatic rotation; RetireAfter of zero never prunes retired
// keys.
type KeysConfig struct {
	RotateInterval Duration `yaml:"rotate_interval"`
	RetireAfter    Duration `yaml:"retire_after"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
		Shamir:  ShamirConfig{PB64u: shamir3pass.DefaultPrimeB64u},
	}
}

// Load reads configuration from a YAML file, applies environment
// variable overrides, and validates the result. An empty path loads the
// defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - config file path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("VRF_RELAY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("VRF_RELAY_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid VRF_RELAY_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid VRF_RELAY_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}
	if level := os.Getenv("VRF_RELAY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if p := os.Getenv("SHAMIR_P_B64U"); p != "" {
		cfg.Shamir.PB64u = p
	}
	if interval := os.Getenv("VRF_RELAY_KEY_ROTATE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			log.Printf("Warning: invalid VRF_RELAY_KEY_ROTATE_INTERVAL value %q: %v", interval, err)
		} else {
			cfg.Keys.RotateInterval = Duration(d)
		}
	}
}

// Validate checks the configuration for errors.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	switch cfg.Logging.Level {
	case "", "info", "debug":
	default:
		return fmt.Errorf("unknown log level: %s", cfg.Logging.Level)
	}
	if cfg.Shamir.PB64u == "" {
		return fmt.Errorf("shamir prime is required")
	}
	if _, err := shamir3pass.NewGroup(cfg.Shamir.PB64u); err != nil {
		return fmt.Errorf("shamir prime: %w", err)
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("rate limit requires requests_per_min >= 1")
	}
	if cfg.Keys.RotateInterval < 0 {
		return fmt.Errorf("key rotate interval must not be negative")
	}
	if cfg.Keys.RetireAfter < 0 {
		return fmt.Errorf("key retire-after must not be negative")
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// Debug reports whether debug logging is enabled.
func (cfg *Config) Debug() bool {
	return cfg.Logging.Level == "debug"
}
