package pricing

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/decoder/meteora"
	orcawhirlpool "github.com/rexbrahh/lp-pricer/decoder/orca_whirlpool"
	"github.com/rexbrahh/lp-pricer/decoder/pumpfun"
	"github.com/rexbrahh/lp-pricer/decoder/raydium"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
)

var (
	sol       = common.NativeMint
	tokenMint = layouttest.Key(100)
	usdcMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	poolKey   = layouttest.Key(101)
	vault0    = layouttest.Key(102)
	vault1    = layouttest.Key(103)
	configKey = layouttest.Key(104)
)

const fixtureSlot = 312_000_000

type accountsBuilder struct {
	t   *testing.T
	set common.AccountSet
}

func newAccounts(t *testing.T) *accountsBuilder {
	t.Helper()
	return &accountsBuilder{t: t, set: common.AccountSet{}}
}

func (b *accountsBuilder) add(addr, owner solana.PublicKey, data []byte) *accountsBuilder {
	b.set.Add(&common.AccountSnapshot{
		Address:  addr,
		Owner:    owner,
		Data:     data,
		Lamports: 2_039_280,
		Slot:     fixtureSlot,
	})
	return b
}

func (b *accountsBuilder) token(addr, mint solana.PublicKey, amount uint64) *accountsBuilder {
	return b.add(addr, common.TokenProgramID, layouttest.TokenAccount(mint, amount))
}

func (b *accountsBuilder) mint(addr solana.PublicKey, supply uint64, decimals uint8) *accountsBuilder {
	return b.add(addr, common.TokenProgramID, layouttest.MintAccount(supply, decimals))
}

func (b *accountsBuilder) build() common.AccountSet {
	return b.set
}

// cpmmPool lays out a CPMM PoolState with side 0 = mint0.
func cpmmPool(mint0, mint1 solana.PublicKey, dec0, dec1 uint8, status uint8) []byte {
	return layouttest.New(raydium.CpmmAccountSize).
		Discriminator(raydium.PoolStateDiscriminator).
		Pubkey(8, configKey).
		Pubkey(72, vault0).
		Pubkey(104, vault1).
		Pubkey(168, mint0).
		Pubkey(200, mint1).
		U8(329, status).
		U8(331, dec0).
		U8(332, dec1).
		Bytes()
}

func cpmmConfig(tradeFee uint64) []byte {
	return layouttest.New(236).
		Discriminator(raydium.AmmConfigDiscriminator).
		U64(12, tradeFee).
		Bytes()
}

func legacyPool(coin, pc solana.PublicKey, coinDec, pcDec uint64, status uint64, pnlCoin, pnlPc uint64) []byte {
	return layouttest.New(raydium.LegacyAmmAccountSize).
		U64(0, status).
		U64(32, coinDec).
		U64(40, pcDec).
		U64(144, 25).
		U64(152, 10000).
		U64(192, pnlCoin).
		U64(200, pnlPc).
		Pubkey(336, vault0).
		Pubkey(368, vault1).
		Pubkey(400, coin).
		Pubkey(432, pc).
		Bytes()
}

func clmmPool(mint0, mint1 solana.PublicKey, dec0, dec1 uint8, liquidity, sqrtPrice uint128.Uint128, tick int32) []byte {
	return layouttest.New(1544).
		Discriminator(raydium.PoolStateDiscriminator).
		Pubkey(9, configKey).
		Pubkey(73, mint0).
		Pubkey(105, mint1).
		Pubkey(137, vault0).
		Pubkey(169, vault1).
		U8(233, dec0).
		U8(234, dec1).
		U16(235, 1).
		U128(237, liquidity).
		U128(253, sqrtPrice).
		I32(269, tick).
		Bytes()
}

func clmmConfig(tradeFee uint32) []byte {
	return layouttest.New(117).
		Discriminator(raydium.AmmConfigDiscriminator).
		U32(47, tradeFee).
		Bytes()
}

func whirlpool(mintA, mintB solana.PublicKey, liquidity, sqrtPrice uint128.Uint128, tick int32) []byte {
	return layouttest.New(653).
		Discriminator(orcawhirlpool.WhirlpoolDiscriminator).
		U16(41, 64).
		U16(45, 3000).
		U128(49, liquidity).
		U128(65, sqrtPrice).
		I32(81, tick).
		Pubkey(101, mintA).
		Pubkey(133, vault0).
		Pubkey(181, mintB).
		Pubkey(213, vault1).
		Bytes()
}

func lbPair(mintX, mintY solana.PublicKey, activeID int32, binStep uint16, status uint8) []byte {
	return layouttest.New(904).
		Discriminator(meteora.LbPairDiscriminator).
		U16(8, 10000).
		I32(76, activeID).
		U16(80, binStep).
		U8(82, status).
		Pubkey(88, mintX).
		Pubkey(120, mintY).
		Pubkey(152, vault0).
		Pubkey(184, vault1).
		Bytes()
}

var (
	dammLp0 = layouttest.Key(110)
	dammLp1 = layouttest.Key(111)
	lpMint0 = layouttest.Key(112)
	lpMint1 = layouttest.Key(113)
)

func dammPool(mintA, mintB solana.PublicKey, enabled bool) []byte {
	return layouttest.New(944).
		Discriminator(meteora.DammPoolDiscriminator).
		Pubkey(40, mintA).
		Pubkey(72, mintB).
		Pubkey(104, vault0).
		Pubkey(136, vault1).
		Pubkey(168, dammLp0).
		Pubkey(200, dammLp1).
		Bool(233, enabled).
		U64(330, 25).
		U64(338, 10000).
		Bytes()
}

func dynamicVault(mint, lpMint solana.PublicKey, total uint64) []byte {
	return layouttest.New(1227).
		Discriminator(meteora.VaultDiscriminator).
		U8(8, 1).
		U64(11, total).
		Pubkey(83, mint).
		Pubkey(115, lpMint).
		Bytes()
}

// curveAddress is the bonding curve account mint derives to.
func curveAddress(t *testing.T, mint solana.PublicKey) solana.PublicKey {
	t.Helper()
	addr, err := pumpfun.BondingCurveAddress(mint, pumpfun.BondingCurveProgramID)
	require.NoError(t, err)
	return addr
}

func bondingCurve(virtualToken, virtualSol uint64, complete bool) []byte {
	return layouttest.New(150).
		Discriminator(pumpfun.BondingCurveDiscriminator).
		U64(8, virtualToken).
		U64(16, virtualSol).
		U64(40, 1_000_000_000_000_000).
		Bool(48, complete).
		Bytes()
}

func pumpAmmPool(base, quote solana.PublicKey) []byte {
	return layouttest.New(300).
		Discriminator(pumpfun.PoolDiscriminator).
		Pubkey(43, base).
		Pubkey(75, quote).
		Pubkey(139, vault0).
		Pubkey(171, vault1).
		Bytes()
}
