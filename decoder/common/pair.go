package common

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// CanonicalPair is a pool's pair oriented so the native mint is the quote.
type CanonicalPair struct {
	// BaseMint is the priced token.
	BaseMint solana.PublicKey
	// QuoteMint is always the native mint.
	QuoteMint solana.PublicKey

	// BaseIndex is the pool side (0 or 1) holding the base token.
	BaseIndex int

	// Inverted is true when the native mint is token0, so a token1-per-token0 price
	// must be inverted to read as native per base.
	Inverted bool
}

// QuoteIndex is the pool side holding the native mint.
func (p *CanonicalPair) QuoteIndex() int {
	return 1 - p.BaseIndex
}

// ResolvePair orients a pool's two mints against the native mint.
func ResolvePair(mint0, mint1, native solana.PublicKey) (*CanonicalPair, error) {
	if mint0.IsZero() || mint1.IsZero() {
		return nil, fmt.Errorf("%w: zero mint", ErrMintMismatch)
	}
	if mint0.Equals(mint1) {
		return nil, fmt.Errorf("%w: both sides are %s", ErrMintMismatch, mint0)
	}

	switch {
	case mint1.Equals(native):
		return &CanonicalPair{BaseMint: mint0, QuoteMint: mint1, BaseIndex: 0}, nil
	case mint0.Equals(native):
		return &CanonicalPair{BaseMint: mint1, QuoteMint: mint0, BaseIndex: 1, Inverted: true}, nil
	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotNativePair, mint0, mint1)
	}
}

// MatchesRequest reports whether the pool's mints are the requested pair in either order.
func MatchesRequest(mint0, mint1, base, quote solana.PublicKey) bool {
	return (mint0.Equals(base) && mint1.Equals(quote)) ||
		(mint0.Equals(quote) && mint1.Equals(base))
}

// Symbol renders the pair as BASE/SOL using provider symbols, falling back to a
// shortened mint address.
func (p *CanonicalPair) Symbol(provider MintMetadataProvider) string {
	return fmt.Sprintf("%s/%s", symbolFor(provider, p.BaseMint), symbolFor(provider, p.QuoteMint))
}

func symbolFor(provider MintMetadataProvider, mint solana.PublicKey) string {
	if provider != nil {
		if md, err := provider.GetMintMetadata(mint); err == nil && md.Symbol != "" {
			return md.Symbol
		}
	}
	s := mint.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
