package pricing

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// Classify maps an account owner to its program kind; unknown owners yield common.Unknown.
func (c *Config) Classify(owner solana.PublicKey) common.ProgramKind {
	if kind, ok := c.byOwner[owner]; ok {
		return kind
	}
	return common.Unknown
}

// ClassifySnapshot classifies the owner of snap, treating nil as unknown.
func (c *Config) ClassifySnapshot(snap *common.AccountSnapshot) common.ProgramKind {
	if snap == nil {
		return common.Unknown
	}
	return c.Classify(snap.Owner)
}
