package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// EnvPrefix is the prefix for environment variable overrides.
// Priority: Environment > Config File > Default
const EnvPrefix = "PENALTYPOT_"

// Config holds non-sensitive application configuration.
type Config struct {
	SchemaVersion      int  `json:"schema_version" env:"-"`
	Port               int  `json:"port" env:"PORT"`
	LanEnabled         bool `json:"lan_enabled" env:"LAN_ENABLED"`
	DiscordBatchSec    int  `json:"discord_batch_sec" env:"DISCORD_BATCH_SEC"`
	NotifyOnCommit     bool `json:"notify_on_commit" env:"NOTIFY_ON_COMMIT"`
	NotifyOnRoster     bool `json:"notify_on_roster" env:"NOTIFY_ON_ROSTER"`
	NotifyOnMultiplier bool `json:"notify_on_multiplier" env:"NOTIFY_ON_MULTIPLIER"`
	NotifyOnVerify     bool `json:"notify_on_verify" env:"NOTIFY_ON_VERIFY"`
	NotifyOnSummary    bool `json:"notify_on_summary" env:"NOTIFY_ON_SUMMARY"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:      CurrentSchemaVersion,
		Port:               8080,
		LanEnabled:         false,
		DiscordBatchSec:    3,
		NotifyOnCommit:     true,
		NotifyOnRoster:     true,
		NotifyOnMultiplier: true,
		NotifyOnVerify:     true,
		NotifyOnSummary:    true,
	}
}

// LoadConfig reads config from the default location.
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads config from the specified path. A missing or
// corrupt file is non-fatal; defaults are returned with a warning logged.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		log.Printf("Warning: failed to read config file: %v, using defaults", err)
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		log.Printf("Warning: config file is corrupt: %v, using defaults", err)
		return DefaultConfig(), nil
	}

	if cfg.SchemaVersion != CurrentSchemaVersion {
		log.Printf("Warning: config schema version mismatch (got %d, expected %d), using defaults",
			cfg.SchemaVersion, CurrentSchemaVersion)
		return DefaultConfig(), nil
	}

	return normalizeConfig(cfg), nil
}

// normalizeConfig validates and normalizes config values.
func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	cfg.SchemaVersion = CurrentSchemaVersion

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}
	if cfg.DiscordBatchSec < 0 {
		cfg.DiscordBatchSec = defaults.DiscordBatchSec
	}

	return cfg
}

// SaveConfig writes config to the default location atomically.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(cfg, path)
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	cfg.SchemaVersion = CurrentSchemaVersion
	return writeJSONAtomic(path, cfg)
}

// ApplyEnvOverrides applies PENALTYPOT_* environment variables on top of
// the loaded config. Environment takes highest priority.
func ApplyEnvOverrides(cfg Config) (Config, error) {
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env overrides: %w", err)
	}
	return normalizeConfig(cfg), nil
}
