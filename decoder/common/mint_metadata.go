package common

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MintMetadata represents metadata for a Solana token mint
type MintMetadata struct {
	Address  solana.PublicKey `json:"address" yaml:"address"`
	Symbol   string           `json:"symbol" yaml:"symbol"`
	Decimals uint8            `json:"decimals" yaml:"decimals"`
	Name     string           `json:"name" yaml:"name"`
	Stable   bool             `json:"stable,omitempty" yaml:"stable"`
}

// MintMetadataProvider resolves mint decimals when neither the pool account nor a
// mint snapshot carries them.
type MintMetadataProvider interface {
	// GetMintMetadata retrieves metadata for a given mint address
	GetMintMetadata(mint solana.PublicKey) (*MintMetadata, error)

	// GetDecimals returns just the decimal places for a mint (convenience method)
	GetDecimals(mint solana.PublicKey) (uint8, error)
}

// InMemoryMintMetadataProvider is a concurrency-safe in-memory provider.
type InMemoryMintMetadataProvider struct {
	mu       sync.RWMutex
	metadata map[solana.PublicKey]*MintMetadata
}

// DefaultMints are the well-known mints every provider starts with.
func DefaultMints() []*MintMetadata {
	return []*MintMetadata{
		{
			Address:  NativeMint,
			Symbol:   "SOL",
			Decimals: NativeDecimals,
			Name:     "Wrapped SOL",
		},
		{
			Address:  solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			Symbol:   "USDC",
			Decimals: 6,
			Name:     "USD Coin",
			Stable:   true,
		},
		{
			Address:  solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
			Symbol:   "USDT",
			Decimals: 6,
			Name:     "USDT",
			Stable:   true,
		},
		{
			Address:  solana.MustPublicKeyFromBase58("7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs"),
			Symbol:   "ORCA",
			Decimals: 6,
			Name:     "Orca",
		},
	}
}

// NewInMemoryMintMetadataProvider creates a provider seeded with DefaultMints plus extra.
func NewInMemoryMintMetadataProvider(extra ...*MintMetadata) *InMemoryMintMetadataProvider {
	provider := &InMemoryMintMetadataProvider{
		metadata: make(map[solana.PublicKey]*MintMetadata),
	}
	for _, mint := range DefaultMints() {
		provider.metadata[mint.Address] = mint
	}
	for _, mint := range extra {
		if mint != nil {
			provider.metadata[mint.Address] = mint
		}
	}
	return provider
}

// GetMintMetadata retrieves metadata for a given mint address
func (p *InMemoryMintMetadataProvider) GetMintMetadata(mint solana.PublicKey) (*MintMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	metadata, ok := p.metadata[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDecimals, mint)
	}
	return metadata, nil
}

// GetDecimals returns just the decimal places for a mint
func (p *InMemoryMintMetadataProvider) GetDecimals(mint solana.PublicKey) (uint8, error) {
	metadata, err := p.GetMintMetadata(mint)
	if err != nil {
		return 0, err
	}
	return metadata.Decimals, nil
}

// AddMintMetadata adds or updates metadata for a mint.
func (p *InMemoryMintMetadataProvider) AddMintMetadata(metadata *MintMetadata) {
	if metadata == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[metadata.Address] = metadata
}

// IsStable reports whether the mint is flagged as a stablecoin.
func (p *InMemoryMintMetadataProvider) IsStable(mint solana.PublicKey) bool {
	md, err := p.GetMintMetadata(mint)
	return err == nil && md.Stable
}

// Len returns the number of known mints.
func (p *InMemoryMintMetadataProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.metadata)
}
