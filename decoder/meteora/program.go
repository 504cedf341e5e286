// Package meteora decodes Meteora DLMM and DAMM v1 pools plus the dynamic vaults
// DAMM pools deposit into.
package meteora

import "github.com/gagliardetto/solana-go"

var (
	DlmmProgramID  = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
	DammProgramID  = solana.MustPublicKeyFromBase58("Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB")
	VaultProgramID = solana.MustPublicKeyFromBase58("24Uqj9JCLxUeoC3hGfh5W3s9FM9uCHDS2SG3LYwBpyTi")
)

var (
	LbPairDiscriminator   = [8]byte{33, 11, 49, 98, 181, 101, 177, 13}
	DammPoolDiscriminator = [8]byte{241, 154, 109, 4, 17, 177, 109, 188}
	VaultDiscriminator    = [8]byte{211, 8, 232, 43, 2, 152, 117, 119}
)
