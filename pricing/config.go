package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58/base58"
	"gopkg.in/yaml.v3"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/decoder/meteora"
	orcawhirlpool "github.com/rexbrahh/lp-pricer/decoder/orca_whirlpool"
	"github.com/rexbrahh/lp-pricer/decoder/pumpfun"
	"github.com/rexbrahh/lp-pricer/decoder/raydium"
)

// Config is the immutable program table and native mint the calculator prices against.
// Build it once at startup; it is safe for concurrent use.
type Config struct {
	byOwner    map[solana.PublicKey]common.ProgramKind
	byKind     map[common.ProgramKind]solana.PublicKey
	nativeMint solana.PublicKey
	mints      common.MintMetadataProvider
}

// DefaultProgramIDs returns the mainnet program for every supported kind.
func DefaultProgramIDs() map[common.ProgramKind]solana.PublicKey {
	return map[common.ProgramKind]solana.PublicKey{
		common.RaydiumLegacyAmm: raydium.LegacyAmmProgramID,
		common.RaydiumCpmm:      raydium.CpmmProgramID,
		common.RaydiumClmm:      raydium.ClmmProgramID,
		common.OrcaWhirlpool:    orcawhirlpool.ProgramID,
		common.MeteoraDlmm:      meteora.DlmmProgramID,
		common.MeteoraDamm:      meteora.DammProgramID,
		common.PumpFunLegacy:    pumpfun.BondingCurveProgramID,
		common.PumpFunAmm:       pumpfun.AmmProgramID,
	}
}

// DefaultConfig uses mainnet program ids, wrapped SOL and the built-in mint list.
func DefaultConfig() *Config {
	cfg, err := NewConfig(DefaultProgramIDs(), common.NativeMint, nil)
	if err != nil {
		panic(fmt.Sprintf("default pricing config: %v", err))
	}
	return cfg
}

// NewConfig builds a Config. A nil provider gets the built-in mint list.
func NewConfig(programs map[common.ProgramKind]solana.PublicKey, nativeMint solana.PublicKey, mints common.MintMetadataProvider) (*Config, error) {
	var errs []string
	if nativeMint.IsZero() {
		errs = append(errs, "native mint is required")
	}

	cfg := &Config{
		byOwner:    make(map[solana.PublicKey]common.ProgramKind, len(programs)),
		byKind:     make(map[common.ProgramKind]solana.PublicKey, len(programs)),
		nativeMint: nativeMint,
		mints:      mints,
	}
	for kind, id := range programs {
		if kind == common.Unknown {
			errs = append(errs, "program kind unknown cannot be mapped")
			continue
		}
		if id.IsZero() {
			errs = append(errs, fmt.Sprintf("program %s has empty program ID", kind))
			continue
		}
		if other, dup := cfg.byOwner[id]; dup {
			errs = append(errs, fmt.Sprintf("program ID %s mapped to both %s and %s", id, other, kind))
			continue
		}
		cfg.byOwner[id] = kind
		cfg.byKind[kind] = id
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	if cfg.mints == nil {
		cfg.mints = common.NewInMemoryMintMetadataProvider()
	}
	return cfg, nil
}

type fileConfig struct {
	NativeMint string            `yaml:"native_mint"`
	Programs   map[string]string `yaml:"programs"`
	Mints      []struct {
		Address  string `yaml:"address"`
		Symbol   string `yaml:"symbol"`
		Name     string `yaml:"name"`
		Decimals uint8  `yaml:"decimals"`
		Stable   bool   `yaml:"stable"`
	} `yaml:"mints"`
}

// LoadConfig reads programs.yaml. An empty path yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read programs file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses programs.yaml content. Programs missing from the file keep their
// mainnet defaults; native_mint defaults to wrapped SOL.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse programs YAML: %w", err)
	}

	var errs []string
	programs := DefaultProgramIDs()
	for name, id := range fc.Programs {
		kind, err := common.ParseProgramKind(name)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		key, err := parsePubkey(id)
		if err != nil {
			errs = append(errs, fmt.Sprintf("program '%s': %v", name, err))
			continue
		}
		programs[kind] = key
	}

	native := common.NativeMint
	if fc.NativeMint != "" {
		key, err := parsePubkey(fc.NativeMint)
		if err != nil {
			errs = append(errs, fmt.Sprintf("native_mint: %v", err))
		} else {
			native = key
		}
	}

	var extra []*common.MintMetadata
	for i, m := range fc.Mints {
		key, err := parsePubkey(m.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("mints[%d]: %v", i, err))
			continue
		}
		extra = append(extra, &common.MintMetadata{
			Address:  key,
			Symbol:   m.Symbol,
			Name:     m.Name,
			Decimals: m.Decimals,
			Stable:   m.Stable,
		})
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return NewConfig(programs, native, common.NewInMemoryMintMetadataProvider(extra...))
}

func parsePubkey(s string) (solana.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid base58 %q: %w", s, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("invalid public key length %d for %q", len(raw), s)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// NativeMint is the denominator of every price.
func (c *Config) NativeMint() solana.PublicKey {
	return c.nativeMint
}

// Mints resolves decimals for pools that do not record them.
func (c *Config) Mints() common.MintMetadataProvider {
	return c.mints
}

// ProgramID returns the configured program for kind.
func (c *Config) ProgramID(kind common.ProgramKind) (solana.PublicKey, bool) {
	id, ok := c.byKind[kind]
	return id, ok
}

// ProgramIDs lists every configured program, ordered by kind.
func (c *Config) ProgramIDs() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(c.byKind))
	for _, kind := range common.KnownProgramKinds() {
		if id, ok := c.byKind[kind]; ok {
			out = append(out, id)
		}
	}
	return out
}
