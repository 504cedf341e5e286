package orca_whirlpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// ProgramID is the Orca Whirlpools program.
var ProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

// WhirlpoolDiscriminator tags Whirlpool accounts.
var WhirlpoolDiscriminator = [8]byte{63, 149, 209, 12, 225, 128, 99, 9}

const (
	whirlpoolConfigOffset      = common.DiscriminatorLen
	whirlpoolTickSpacingOffset = whirlpoolConfigOffset + 32 + 1
	whirlpoolFeeRateOffset     = whirlpoolTickSpacingOffset + 2 + 2
	whirlpoolProtocolFeeOffset = whirlpoolFeeRateOffset + 2
	whirlpoolLiquidityOffset   = whirlpoolProtocolFeeOffset + 2
	whirlpoolSqrtPriceOffset   = whirlpoolLiquidityOffset + 16
	whirlpoolTickOffset        = whirlpoolSqrtPriceOffset + 16
	whirlpoolProtocolFeeAOwed  = whirlpoolTickOffset + 4
	whirlpoolProtocolFeeBOwed  = whirlpoolProtocolFeeAOwed + 8
	whirlpoolTokenMintAOffset  = whirlpoolProtocolFeeBOwed + 8
	whirlpoolTokenVaultAOffset = whirlpoolTokenMintAOffset + 32
	whirlpoolFeeGrowthAOffset  = whirlpoolTokenVaultAOffset + 32
	whirlpoolTokenMintBOffset  = whirlpoolFeeGrowthAOffset + 16
	whirlpoolTokenVaultBOffset = whirlpoolTokenMintBOffset + 32
	// WhirlpoolRequiredLength covers every field through token_vault_b.
	WhirlpoolRequiredLength = whirlpoolTokenVaultBOffset + 32
)

// Whirlpool carries the fields priced from plus the pool's config account.
type Whirlpool struct {
	Config          solana.PublicKey
	ProtocolFeeRate uint16
	ProtocolFeeA    uint64
	ProtocolFeeB    uint64
}

// DecodeWhirlpool decodes a Whirlpool account. Mint decimals are not stored on the
// pool and must be resolved from the mint accounts.
func DecodeWhirlpool(data []byte) (*common.PoolInfo, error) {
	info, _, err := decodeWhirlpool(data)
	if err != nil {
		return nil, common.NewDecodeError(common.OrcaWhirlpool, err)
	}
	return info, nil
}

// DecodeWhirlpoolDetails is DecodeWhirlpool plus the Whirlpool-only fields.
func DecodeWhirlpoolDetails(data []byte) (*common.PoolInfo, *Whirlpool, error) {
	info, extra, err := decodeWhirlpool(data)
	if err != nil {
		return nil, nil, common.NewDecodeError(common.OrcaWhirlpool, err)
	}
	return info, extra, nil
}

func decodeWhirlpool(data []byte) (*common.PoolInfo, *Whirlpool, error) {
	if err := common.CheckLength(data, WhirlpoolRequiredLength); err != nil {
		return nil, nil, err
	}
	if err := common.CheckDiscriminator(data, WhirlpoolDiscriminator); err != nil {
		return nil, nil, err
	}

	tick := common.I32At(data, whirlpoolTickOffset)
	if tick < common.MinTickIndex || tick > common.MaxTickIndex {
		return nil, nil, fmt.Errorf("%w: tick %d out of range", common.ErrInvalidLayout, tick)
	}

	// fee_rate is stored in hundredths of a basis point, which is already ppm.
	feeRate := uint32(common.U16At(data, whirlpoolFeeRateOffset))

	info := &common.PoolInfo{
		ProgramID:   ProgramID,
		ProgramKind: common.OrcaWhirlpool,
		TokenMint0:  common.PubkeyAt(data, whirlpoolTokenMintAOffset),
		TokenMint1:  common.PubkeyAt(data, whirlpoolTokenMintBOffset),
		TokenVault0: common.PubkeyAt(data, whirlpoolTokenVaultAOffset),
		TokenVault1: common.PubkeyAt(data, whirlpoolTokenVaultBOffset),
		Concentrated: &common.Concentrated{
			SqrtPriceX64: common.U128At(data, whirlpoolSqrtPriceOffset),
			Liquidity:    common.U128At(data, whirlpoolLiquidityOffset),
			CurrentTick:  tick,
			TickSpacing:  common.U16At(data, whirlpoolTickSpacingOffset),
		},
		FeeRate: common.FeeRatePPM(feeRate),
		Status:  common.StatusEnabled,
	}
	extra := &Whirlpool{
		Config:          common.PubkeyAt(data, whirlpoolConfigOffset),
		ProtocolFeeRate: common.U16At(data, whirlpoolProtocolFeeOffset),
		ProtocolFeeA:    common.U64At(data, whirlpoolProtocolFeeAOwed),
		ProtocolFeeB:    common.U64At(data, whirlpoolProtocolFeeBOwed),
	}
	return info, extra, nil
}
