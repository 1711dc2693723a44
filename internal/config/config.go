// Package config loads the security core's configuration from environment
// variables. A .env file is honored for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrNoTokenSecret means TOKEN_SECRET is unset. There is no default: a
// deployment without a signing secret must refuse to start rather than
// sign tokens with a known value.
var ErrNoTokenSecret = errors.New("config: TOKEN_SECRET is required")

// Config holds all settings for the security core.
type Config struct {
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// TokenSecret signs security tokens. Required, no fallback.
	TokenSecret string
	// TokenTTL is the default token lifetime.
	TokenTTL time.Duration

	// Rate limiting defaults applied by the middleware.
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration

	// VaultTTL is the default lifetime for ephemeral secrets.
	VaultTTL time.Duration

	// EthRPCURL is the endpoint for EVM submit-and-confirm. Optional;
	// operations that need it fail loudly when it is absent.
	EthRPCURL string
	// EthChainID selects the EVM network for transaction signing.
	EthChainID int64
}

const (
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultTokenTTL     = 15 * time.Minute
	DefaultRateLimitMax = 100
	DefaultRateLimitWin = time.Minute
	DefaultVaultTTL     = 5 * time.Minute
	DefaultEthChainID   = 1
)

// Load reads configuration from the environment, loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		TokenSecret:          os.Getenv("TOKEN_SECRET"), // required, no default
		TokenTTL:             getEnvDuration("TOKEN_TTL", DefaultTokenTTL),
		RateLimitMaxRequests: int(getEnvInt64("RATE_LIMIT_MAX_REQUESTS", DefaultRateLimitMax)),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWin),
		VaultTTL:             getEnvDuration("VAULT_TTL", DefaultVaultTTL),
		EthRPCURL:            os.Getenv("ETH_RPC_URL"),
		EthChainID:           getEnvInt64("ETH_CHAIN_ID", DefaultEthChainID),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would degrade to insecure behavior.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return ErrNoTokenSecret
	}
	if c.RateLimitMaxRequests <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_MAX_REQUESTS must be positive, got %d", c.RateLimitMaxRequests)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.VaultTTL <= 0 {
		return fmt.Errorf("config: VAULT_TTL must be positive, got %s", c.VaultTTL)
	}
	if c.EthChainID <= 0 {
		return fmt.Errorf("config: ETH_CHAIN_ID must be positive, got %d", c.EthChainID)
	}
	return nil
}

// IsProduction reports whether the core runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
