package geyser

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/decoder/meteora"
	"github.com/rexbrahh/lp-pricer/pricing"
)

// Config holds Geyser client configuration
type Config struct {
	// Name labels the source in logs and metrics.
	Name string

	// Endpoint is the Geyser gRPC endpoint (e.g., "grpc.chainstack.com:443")
	Endpoint string

	// APIKey is the authentication key for the Geyser endpoint
	APIKey string

	// ProgramFilters maps filter names to owner program IDs whose accounts are streamed.
	ProgramFilters map[string]string

	// TrackedAccounts are streamed individually regardless of owner (vaults, mints,
	// configs of tracked pools).
	TrackedAccounts []string

	// Discover adds SOL-paired pools seen on the owner filters to the directory.
	Discover bool
}

// LoadConfig loads the endpoint from the environment and owner filters from the
// pricing program table.
func LoadConfig(programs *pricing.Config) (*Config, error) {
	cfg := &Config{
		Name:           "geyser",
		Endpoint:       os.Getenv("GEYSER_ENDPOINT"),
		APIKey:         os.Getenv("GEYSER_API_KEY"),
		ProgramFilters: ProgramFilters(programs),
	}
	if v := os.Getenv("GEYSER_DISCOVER"); v != "" {
		discover, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GEYSER_DISCOVER: %w", err)
		}
		cfg.Discover = discover
	}
	return cfg, nil
}

// FallbackConfig derives a secondary source from GEYSER_FALLBACK_*; it returns nil
// when no fallback endpoint is set.
func FallbackConfig(primary *Config) *Config {
	endpoint := os.Getenv("GEYSER_FALLBACK_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	fallback := *primary
	fallback.Name = "fallback"
	fallback.Endpoint = endpoint
	if key := os.Getenv("GEYSER_FALLBACK_API_KEY"); key != "" {
		fallback.APIKey = key
	}
	return &fallback
}

// ProgramFilters names one owner filter per pool program plus the dynamic vault
// program, whose vault accounts DAMM pools price through.
func ProgramFilters(programs *pricing.Config) map[string]string {
	filters := make(map[string]string)
	if programs == nil {
		return filters
	}
	for _, kind := range common.KnownProgramKinds() {
		if id, ok := programs.ProgramID(kind); ok {
			filters[kind.String()] = id.String()
		}
	}
	if _, ok := programs.ProgramID(common.MeteoraDamm); ok {
		filters["meteora_vault"] = meteora.VaultProgramID.String()
	}
	return filters
}

// Validate checks that required configuration fields are set
func (c *Config) Validate() error {
	var errors []string

	if c.Endpoint == "" {
		errors = append(errors, "GEYSER_ENDPOINT is required")
	}

	if c.APIKey == "" {
		errors = append(errors, "GEYSER_API_KEY is required")
	}

	if len(c.ProgramFilters) == 0 && len(c.TrackedAccounts) == 0 {
		errors = append(errors, "at least one program filter or tracked account is required")
	}

	for name, programID := range c.ProgramFilters {
		if programID == "" {
			errors = append(errors, fmt.Sprintf("program filter '%s' has empty program ID", name))
			continue
		}
		if _, err := solana.PublicKeyFromBase58(programID); err != nil {
			errors = append(errors, fmt.Sprintf("program filter '%s' has invalid program ID: %s", name, programID))
		}
	}
	for _, account := range c.TrackedAccounts {
		if _, err := solana.PublicKeyFromBase58(account); err != nil {
			errors = append(errors, fmt.Sprintf("tracked account %q is not a valid public key", account))
		}
	}

	if len(errors) > 0 {
		sort.Strings(errors)
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// String returns a sanitized string representation of the config
func (c *Config) String() string {
	// Mask API key for logging
	maskedKey := c.APIKey
	if len(maskedKey) > 8 {
		maskedKey = maskedKey[:4] + "****" + maskedKey[len(maskedKey)-4:]
	} else if maskedKey != "" {
		maskedKey = "****"
	}

	var programs []string
	for name, id := range c.ProgramFilters {
		programs = append(programs, fmt.Sprintf("%s=%s", name, id))
	}
	sort.Strings(programs)

	return fmt.Sprintf("Config{Name=%s, Endpoint=%s, APIKey=%s, Programs=[%s], TrackedAccounts=%d, Discover=%t}",
		c.Name, c.Endpoint, maskedKey, strings.Join(programs, ", "), len(c.TrackedAccounts), c.Discover)
}
