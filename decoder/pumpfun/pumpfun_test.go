package pumpfun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
)

func curveFixture(size int, complete bool) []byte {
	b := layouttest.New(size).
		Discriminator(BondingCurveDiscriminator).
		U64(curveVirtualTokenOffset, 1_073_000_000_000_000).
		U64(curveVirtualSolOffset, 30_000_000_000).
		U64(curveRealTokenOffset, 793_100_000_000_000).
		U64(curveRealSolOffset, 0).
		U64(curveSupplyOffset, 1_000_000_000_000_000).
		Bool(curveCompleteOffset, complete)
	if size >= curveCreatorOffset+32 {
		b.Pubkey(curveCreatorOffset, layouttest.Key(30))
	}
	return b.Bytes()
}

func TestDecodeBondingCurve(t *testing.T) {
	info, curve, err := DecodeBondingCurveDetails(curveFixture(150, false))
	require.NoError(t, err)

	assert.Equal(t, common.PumpFunLegacy, info.ProgramKind)
	assert.Equal(t, common.NativeMint, info.TokenMint0)
	assert.True(t, info.TokenMint1.IsZero())
	assert.Equal(t, uint64(30_000_000_000), info.Reserve0)
	assert.Equal(t, uint64(1_073_000_000_000_000), info.Reserve1)
	assert.Equal(t, uint8(9), info.Decimals0)
	assert.Equal(t, uint8(6), info.Decimals1)
	assert.True(t, info.DecimalsKnown)
	assert.Equal(t, common.StatusEnabled, info.Status)
	assert.Empty(t, info.Dependencies())

	assert.Equal(t, layouttest.Key(30), curve.Creator)
	assert.Equal(t, uint64(793_100_000_000_000), curve.RealTokenReserves)

	// Initial curve: 30 SOL against 1.073B tokens.
	price, err := common.ReservesToPrice(info.Reserve1, info.Reserve0, info.Decimals1, info.Decimals0)
	require.NoError(t, err)
	assert.InEpsilon(t, 2.7958993476234857e-08, price, 1e-9)
}

func TestDecodeBondingCurveLegacyLayout(t *testing.T) {
	info, curve, err := DecodeBondingCurveDetails(curveFixture(BondingCurveRequiredLength, true))
	require.NoError(t, err)
	assert.True(t, curve.Creator.IsZero())
	assert.True(t, curve.Complete)
	assert.Equal(t, common.StatusDisabled, info.Status)
}

func poolFixture(size int) []byte {
	b := layouttest.New(size).
		Discriminator(PoolDiscriminator).
		U8(poolBumpOffset, 254).
		U16(poolIndexOffset, 3).
		Pubkey(poolCreatorOffset, layouttest.Key(31)).
		Pubkey(poolBaseMintOffset, layouttest.Key(32)).
		Pubkey(poolQuoteMintOffset, common.NativeMint).
		Pubkey(poolLpMintOffset, layouttest.Key(33)).
		Pubkey(poolBaseVaultOffset, layouttest.Key(34)).
		Pubkey(poolQuoteVaultOffset, layouttest.Key(35)).
		U64(poolLpSupplyOffset, 4_193_388_000)
	if size >= poolCoinCreatorOffset+32 {
		b.Pubkey(poolCoinCreatorOffset, layouttest.Key(36))
	}
	return b.Bytes()
}

func TestDecodeAmmPool(t *testing.T) {
	info, pool, err := DecodeAmmPoolDetails(poolFixture(300))
	require.NoError(t, err)

	assert.Equal(t, common.PumpFunAmm, info.ProgramKind)
	assert.Equal(t, AmmProgramID, info.ProgramID)
	assert.Equal(t, layouttest.Key(32), info.TokenMint0)
	assert.Equal(t, common.NativeMint, info.TokenMint1)
	assert.Equal(t, layouttest.Key(34), info.TokenVault0)
	assert.Equal(t, layouttest.Key(35), info.TokenVault1)
	assert.False(t, info.DecimalsKnown)

	assert.Equal(t, uint8(254), pool.Bump)
	assert.Equal(t, uint16(3), pool.Index)
	assert.Equal(t, layouttest.Key(31), pool.Creator)
	assert.Equal(t, layouttest.Key(33), pool.LpMint)
	assert.Equal(t, uint64(4_193_388_000), pool.LpSupply)
	assert.Equal(t, layouttest.Key(36), pool.CoinCreator)

	_, pool, err = DecodeAmmPoolDetails(poolFixture(PoolRequiredLength))
	require.NoError(t, err)
	assert.True(t, pool.CoinCreator.IsZero())
}

func TestDecodersRejectMalformed(t *testing.T) {
	_, err := DecodeBondingCurve(curveFixture(150, false)[:BondingCurveRequiredLength-1])
	assert.ErrorIs(t, err, common.ErrTooShort)

	_, err = DecodeAmmPool(poolFixture(300)[:PoolRequiredLength-1])
	assert.ErrorIs(t, err, common.ErrTooShort)

	// A curve is never mistaken for a pool and vice versa.
	_, err = DecodeAmmPool(curveFixture(300, false))
	assert.ErrorIs(t, err, common.ErrInvalidDiscriminator)
	_, err = DecodeBondingCurve(poolFixture(300))
	assert.ErrorIs(t, err, common.ErrInvalidDiscriminator)
}

func TestBondingCurveAddress(t *testing.T) {
	mint := layouttest.Key(40)
	addr, err := BondingCurveAddress(mint, BondingCurveProgramID)
	require.NoError(t, err)

	again, err := BondingCurveAddress(mint, BondingCurveProgramID)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	other, err := BondingCurveAddress(layouttest.Key(41), BondingCurveProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)

	elsewhere, err := BondingCurveAddress(mint, AmmProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, addr, elsewhere)
}
