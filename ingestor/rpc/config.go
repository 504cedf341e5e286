package rpc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// MaxBatchSize is the getMultipleAccounts key limit.
	MaxBatchSize = 100

	defaultEndpoint    = "https://api.mainnet-beta.solana.com"
	defaultRPS         = 10
	defaultConcurrency = 4
	defaultTimeout     = 10 * time.Second

	envRPCURL         = "SOLANA_RPC_URL"
	envRPCRPS         = "SOLANA_RPC_RPS"
	envRPCBatch       = "SOLANA_RPC_BATCH"
	envRPCConcurrency = "SOLANA_RPC_CONCURRENCY"
	envRPCTimeoutMS   = "SOLANA_RPC_TIMEOUT_MS"
)

// Config captures the JSON-RPC endpoint and request shaping used when warming
// the account store.
type Config struct {
	Endpoint string

	// RequestsPerSecond caps getMultipleAccounts calls across all workers.
	RequestsPerSecond float64
	BatchSize         int
	Concurrency       int
	RequestTimeout    time.Duration
}

// DefaultConfig returns mainnet defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:          defaultEndpoint,
		RequestsPerSecond: defaultRPS,
		BatchSize:         MaxBatchSize,
		Concurrency:       defaultConcurrency,
		RequestTimeout:    defaultTimeout,
	}
}

// Validate ensures the endpoint is set and the limits are within range.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("rpc endpoint is required")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid RequestsPerSecond: %v", c.RequestsPerSecond)
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("BatchSize must be within 1..%d, got %d", MaxBatchSize, c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid Concurrency: %d", c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid RequestTimeout: %s", c.RequestTimeout)
	}
	return nil
}

// FromEnv builds a Config from the environment, applying defaults for unset values.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if v := os.Getenv(envRPCURL); v != "" {
		cfg.Endpoint = v
	}

	if v := os.Getenv(envRPCRPS); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", envRPCRPS, err)
		}
		cfg.RequestsPerSecond = rps
	}

	if v := os.Getenv(envRPCBatch); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", envRPCBatch, err)
		}
		cfg.BatchSize = n
	}

	if v := os.Getenv(envRPCConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", envRPCConcurrency, err)
		}
		cfg.Concurrency = n
	}

	if v := os.Getenv(envRPCTimeoutMS); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", envRPCTimeoutMS, err)
		}
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	}

	return cfg, cfg.Validate()
}
