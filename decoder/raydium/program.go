// Package raydium decodes Raydium legacy AMM v4, CPMM and CLMM pool accounts.
package raydium

import "github.com/gagliardetto/solana-go"

var (
	LegacyAmmProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	CpmmProgramID      = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	ClmmProgramID      = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
)

var (
	// PoolStateDiscriminator tags both CPMM and CLMM PoolState accounts.
	PoolStateDiscriminator = [8]byte{247, 237, 227, 245, 215, 195, 222, 70}
	// AmmConfigDiscriminator tags both CPMM and CLMM AmmConfig accounts.
	AmmConfigDiscriminator = [8]byte{218, 244, 33, 104, 203, 203, 43, 111}
)
