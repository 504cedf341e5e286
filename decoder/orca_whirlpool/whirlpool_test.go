package orca_whirlpool

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
)

type whirlpoolFixture struct {
	Address         solana.PublicKey `json:"address"`
	Config          solana.PublicKey `json:"config"`
	TickSpacing     uint16           `json:"tick_spacing"`
	FeeRate         uint16           `json:"fee_rate"`
	ProtocolFeeRate uint16           `json:"protocol_fee_rate"`
	Liquidity       string           `json:"liquidity"`
	SqrtPriceX64    string           `json:"sqrt_price_x64"`
	TickCurrent     int32            `json:"tick_current_index"`
	TokenMintA      solana.PublicKey `json:"token_mint_a"`
	TokenVaultA     solana.PublicKey `json:"token_vault_a"`
	TokenMintB      solana.PublicKey `json:"token_mint_b"`
	TokenVaultB     solana.PublicKey `json:"token_vault_b"`
}

func loadFixture(t *testing.T, name string) whirlpoolFixture {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	var f whirlpoolFixture
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func mustU128(t *testing.T, s string) uint128.Uint128 {
	t.Helper()
	v, err := uint128.FromString(s)
	require.NoError(t, err)
	return v
}

func (f whirlpoolFixture) encode(t *testing.T) []byte {
	t.Helper()
	return layouttest.New(653).
		Discriminator(WhirlpoolDiscriminator).
		Pubkey(whirlpoolConfigOffset, f.Config).
		U16(whirlpoolTickSpacingOffset, f.TickSpacing).
		U16(whirlpoolFeeRateOffset, f.FeeRate).
		U16(whirlpoolProtocolFeeOffset, f.ProtocolFeeRate).
		U128(whirlpoolLiquidityOffset, mustU128(t, f.Liquidity)).
		U128(whirlpoolSqrtPriceOffset, mustU128(t, f.SqrtPriceX64)).
		I32(whirlpoolTickOffset, f.TickCurrent).
		U64(whirlpoolProtocolFeeAOwed, 42).
		Pubkey(whirlpoolTokenMintAOffset, f.TokenMintA).
		Pubkey(whirlpoolTokenVaultAOffset, f.TokenVaultA).
		Pubkey(whirlpoolTokenMintBOffset, f.TokenMintB).
		Pubkey(whirlpoolTokenVaultBOffset, f.TokenVaultB).
		Bytes()
}

func TestDecodeWhirlpoolFixture(t *testing.T) {
	f := loadFixture(t, "whirlpool_sol_usdc.json")

	info, extra, err := DecodeWhirlpoolDetails(f.encode(t))
	require.NoError(t, err)

	assert.Equal(t, common.OrcaWhirlpool, info.ProgramKind)
	assert.Equal(t, ProgramID, info.ProgramID)
	assert.Equal(t, f.TokenMintA, info.TokenMint0)
	assert.Equal(t, f.TokenMintB, info.TokenMint1)
	assert.Equal(t, f.TokenVaultA, info.TokenVault0)
	assert.Equal(t, f.TokenVaultB, info.TokenVault1)
	assert.False(t, info.DecimalsKnown)
	require.NotNil(t, info.FeeRate)
	assert.Equal(t, uint32(3000), *info.FeeRate)

	require.NotNil(t, info.Concentrated)
	assert.Equal(t, mustU128(t, f.SqrtPriceX64), info.Concentrated.SqrtPriceX64)
	assert.Equal(t, mustU128(t, f.Liquidity), info.Concentrated.Liquidity)
	assert.Equal(t, f.TickCurrent, info.Concentrated.CurrentTick)
	assert.Equal(t, f.TickSpacing, info.Concentrated.TickSpacing)

	assert.Equal(t, f.Config, extra.Config)
	assert.Equal(t, f.ProtocolFeeRate, extra.ProtocolFeeRate)
	assert.Equal(t, uint64(42), extra.ProtocolFeeA)

	// Decimals must come from mint accounts, so both mints are dependencies.
	deps := info.Dependencies()
	assert.Contains(t, deps, f.TokenMintA)
	assert.Contains(t, deps, f.TokenMintB)
}

func TestDecodeWhirlpoolSqrtPriceMatchesTick(t *testing.T) {
	f := loadFixture(t, "whirlpool_sol_usdc.json")
	info, err := DecodeWhirlpool(f.encode(t))
	require.NoError(t, err)

	fromSqrt := common.SqrtPriceX64ToPrice(info.Concentrated.SqrtPriceX64)
	fromTick := common.TickToPrice(info.Concentrated.CurrentTick)
	// The current tick is the floor of the sqrt price, so they agree within one tick.
	assert.InEpsilon(t, fromTick, fromSqrt, 1.5e-4)
}

func TestDecodeWhirlpoolErrors(t *testing.T) {
	f := loadFixture(t, "whirlpool_sol_usdc.json")
	data := f.encode(t)

	_, err := DecodeWhirlpool(data[:WhirlpoolRequiredLength-1])
	assert.ErrorIs(t, err, common.ErrTooShort)

	bad := append([]byte(nil), data...)
	bad[3]++
	_, err = DecodeWhirlpool(bad)
	assert.ErrorIs(t, err, common.ErrInvalidDiscriminator)

	for _, tick := range []int32{common.MaxTickIndex + 1, common.MinTickIndex - 1} {
		f.TickCurrent = tick
		_, err = DecodeWhirlpool(f.encode(t))
		assert.ErrorIs(t, err, common.ErrInvalidLayout)
	}
}
