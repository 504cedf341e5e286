package directory

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type seedFile struct {
	Pools []struct {
		Address   string `yaml:"address"`
		Kind      string `yaml:"kind"`
		BaseMint  string `yaml:"base_mint"`
		QuoteMint string `yaml:"quote_mint"`
	} `yaml:"pools"`
}

// LoadSeeds reads the pools to track at startup. An empty path yields no seeds.
func LoadSeeds(path string) ([]pricing.PoolRequest, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool seeds: %w", err)
	}
	return ParseSeeds(data)
}

// ParseSeeds decodes a pools: list. Mints are optional and only checked
// against the decoded pool when present.
func ParseSeeds(data []byte) ([]pricing.PoolRequest, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pool seeds: %w", err)
	}

	seen := make(map[solana.PublicKey]struct{}, len(file.Pools))
	out := make([]pricing.PoolRequest, 0, len(file.Pools))
	for i, p := range file.Pools {
		pool, err := solana.PublicKeyFromBase58(p.Address)
		if err != nil {
			return nil, fmt.Errorf("seed %d: invalid address %q: %w", i, p.Address, err)
		}
		kind, err := common.ParseProgramKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", p.Address, err)
		}
		req := pricing.PoolRequest{Pool: pool, Kind: kind}
		if req.BaseMint, err = optionalKey(p.BaseMint); err != nil {
			return nil, fmt.Errorf("seed %s: base mint: %w", p.Address, err)
		}
		if req.QuoteMint, err = optionalKey(p.QuoteMint); err != nil {
			return nil, fmt.Errorf("seed %s: quote mint: %w", p.Address, err)
		}
		if _, dup := seen[pool]; dup {
			continue
		}
		seen[pool] = struct{}{}
		out = append(out, req)
	}
	return out, nil
}

func optionalKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	return solana.PublicKeyFromBase58(s)
}
