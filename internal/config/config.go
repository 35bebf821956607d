// Package config loads the indexer's environment-backed configuration.
//
// All settings are plain environment variables; an optional .env file
// is merged in first via godotenv.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/multisig-chain/wallet-indexer/pkg/utils"
)

// MissingConfigError lists required keys that were not set. Startup
// surfaces this verbatim and exits non-zero.
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// Config is the full set of environment-backed settings the pipeline,
// RPC client, store gateway, and health probe are constructed from.
type Config struct {
	// Required.
	StoreURL        string
	StoreServiceKey string
	FactoryAddress  string
	WalletImplAddr  string

	// Optional, with defaults.
	RPCURL             string
	WebsocketURL       string
	BatchSize          int
	PollIntervalMS     int
	StartBlock         uint64
	ConfirmationDepth  uint64
	ModuleDailyLimit   string
	ModuleWhitelist    string
	ModuleRecovery     string
	LogLevel           string
	LogToFile          bool
	LogFilePath        string
	HealthEnabled      bool
	HealthPort         int
	MaxBlocksBehind    uint64
	RateLimitN         int
	RateLimitWindowMS  int
	TimestampCacheSize int
	StoreSchema        string

	// Standalone backfill entrypoint range.
	BackfillFrom uint64
	BackfillTo   uint64
}

// Load reads .env (if present, silently ignored if absent) and then the
// process environment, returning a populated Config or a
// *MissingConfigError naming every absent required key.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	var missing []string
	require := func(key string) string {
		v := utils.EnvOrDefault(key, "")
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		StoreURL:        require("STORE_URL"),
		StoreServiceKey: require("STORE_SERVICE_KEY"),
		FactoryAddress:  require("FACTORY_ADDRESS"),
		WalletImplAddr:  require("WALLET_IMPLEMENTATION_ADDRESS"),

		RPCURL:             utils.EnvOrDefault("RPC_URL", "http://127.0.0.1:8545"),
		WebsocketURL:       utils.EnvOrDefault("WS_URL", ""),
		BatchSize:          utils.EnvOrDefaultInt("BATCH_SIZE", 1000),
		PollIntervalMS:     utils.EnvOrDefaultInt("POLL_INTERVAL_MS", 5000),
		StartBlock:         utils.EnvOrDefaultUint64("START_BLOCK", 0),
		ConfirmationDepth:  utils.EnvOrDefaultUint64("CONFIRMATION_DEPTH", 2),
		ModuleDailyLimit:   utils.EnvOrDefault("MODULE_DAILY_LIMIT_ADDRESS", ""),
		ModuleWhitelist:    utils.EnvOrDefault("MODULE_WHITELIST_ADDRESS", ""),
		ModuleRecovery:     utils.EnvOrDefault("MODULE_SOCIAL_RECOVERY_ADDRESS", ""),
		LogLevel:           utils.EnvOrDefault("LOG_LEVEL", "info"),
		LogToFile:          utils.EnvOrDefault("LOG_TO_FILE", "false") == "true",
		LogFilePath:        utils.EnvOrDefault("LOG_FILE_PATH", "indexer.log"),
		HealthEnabled:      utils.EnvOrDefault("HEALTH_ENABLED", "true") == "true",
		HealthPort:         utils.EnvOrDefaultInt("HEALTH_PORT", 3000),
		MaxBlocksBehind:    utils.EnvOrDefaultUint64("MAX_BLOCKS_BEHIND", 100),
		RateLimitN:         utils.EnvOrDefaultInt("RATE_LIMIT_N", 50),
		RateLimitWindowMS:  utils.EnvOrDefaultInt("RATE_LIMIT_WINDOW_MS", 1000),
		TimestampCacheSize: utils.EnvOrDefaultInt("TIMESTAMP_CACHE_SIZE", 1000),
		StoreSchema:        utils.EnvOrDefault("STORE_SCHEMA", "public"),

		BackfillFrom: utils.EnvOrDefaultUint64("BACKFILL_FROM", 0),
		BackfillTo:   utils.EnvOrDefaultUint64("BACKFILL_TO", 0),
	}

	if len(missing) > 0 {
		return nil, &MissingConfigError{Keys: missing}
	}
	return cfg, nil
}

// ModuleAddresses returns the configured module addresses, lowercased,
// skipping any left unset.
func (c *Config) ModuleAddresses() []string {
	var out []string
	for _, a := range []string{c.ModuleDailyLimit, c.ModuleWhitelist, c.ModuleRecovery} {
		if a != "" {
			out = append(out, strings.ToLower(a))
		}
	}
	return out
}
