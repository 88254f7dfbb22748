/*
Package config loads server settings from the environment.

PURPOSE:
  One place that knows every knob: the HTTP port, the database path, and the
  bank engine's tunables. Values come from REAGENT_BANK_* environment
  variables with sane defaults; cmd/server may still override port and
  database path with flags.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/thornwood/reagent-bank/bank"
)

// Config is the full server configuration.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"./reagentbank.db"`

	// Engine tunables
	MaxOptionsPerPage           int   `env:"PAGE_SIZE" envDefault:"7"`
	AccountWide                 bool  `env:"ACCOUNT_WIDE" envDefault:"false"`
	AuditEnabled                bool  `env:"AUDIT_ENABLED" envDefault:"false"`
	AuditRetentionSeconds       int64 `env:"AUDIT_RETENTION_SECONDS" envDefault:"604800"`
	AuditCleanupIntervalSeconds int64 `env:"AUDIT_CLEANUP_INTERVAL_SECONDS" envDefault:"3600"`
}

// Load reads configuration from REAGENT_BANK_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "REAGENT_BANK_"}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Bank converts the loaded settings into the engine's configuration.
func (c Config) Bank() bank.Config {
	return bank.Config{
		MaxOptionsPerPage:    c.MaxOptionsPerPage,
		AccountWide:          c.AccountWide,
		AuditEnabled:         c.AuditEnabled,
		AuditRetention:       time.Duration(c.AuditRetentionSeconds) * time.Second,
		AuditCleanupInterval: time.Duration(c.AuditCleanupIntervalSeconds) * time.Second,
	}
}
