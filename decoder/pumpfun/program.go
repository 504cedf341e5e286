// Package pumpfun decodes PumpFun bonding curves and PumpSwap AMM pools.
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	BondingCurveProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	AmmProgramID          = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
)

var (
	BondingCurveDiscriminator = [8]byte{23, 183, 248, 55, 96, 216, 172, 96}
	PoolDiscriminator         = [8]byte{241, 154, 109, 4, 17, 177, 109, 188}
)

// TokenDecimals is the fixed precision of tokens launched on the bonding curve.
const TokenDecimals uint8 = 6

// BondingCurveSeed prefixes the mint in a bonding curve's program address.
const BondingCurveSeed = "bonding-curve"

// BondingCurveAddress derives the bonding curve account of mint under program.
func BondingCurveAddress(mint, program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(BondingCurveSeed), mint[:]}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve for %s: %w", mint, err)
	}
	return addr, nil
}
