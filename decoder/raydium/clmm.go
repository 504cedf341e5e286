package raydium

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// CLMM PoolState layout.
const (
	clmmAmmConfigOffset    = 9
	clmmMint0Offset        = 73
	clmmMint1Offset        = 105
	clmmVault0Offset       = 137
	clmmVault1Offset       = 169
	clmmObservationOffset  = 201
	clmmDecimals0Offset    = 233
	clmmDecimals1Offset    = 234
	clmmTickSpacingOffset  = 235
	clmmLiquidityOffset    = 237
	clmmSqrtPriceOffset    = 253
	clmmTickCurrentOffset  = 269
	clmmStatusOffset       = 389
	ClmmRequiredLength     = clmmStatusOffset + 1
	clmmStatusSwapDisabled = 1 << 4
)

// DecodeClmmPool decodes a Raydium CLMM PoolState account.
func DecodeClmmPool(data []byte) (*common.PoolInfo, error) {
	info, err := decodeClmm(data)
	if err != nil {
		return nil, common.NewDecodeError(common.RaydiumClmm, err)
	}
	return info, nil
}

// ClmmObservation returns the observation account key of a CLMM pool.
func ClmmObservation(data []byte) (solana.PublicKey, error) {
	if err := common.CheckLength(data, ClmmRequiredLength); err != nil {
		return solana.PublicKey{}, common.NewDecodeError(common.RaydiumClmm, err)
	}
	return common.PubkeyAt(data, clmmObservationOffset), nil
}

func decodeClmm(data []byte) (*common.PoolInfo, error) {
	if err := common.CheckLength(data, ClmmRequiredLength); err != nil {
		return nil, err
	}
	if err := common.CheckDiscriminator(data, PoolStateDiscriminator); err != nil {
		return nil, err
	}

	tick := common.I32At(data, clmmTickCurrentOffset)
	if tick < common.MinTickIndex || tick > common.MaxTickIndex {
		return nil, fmt.Errorf("%w: tick %d out of range", common.ErrInvalidLayout, tick)
	}

	status := common.StatusEnabled
	if common.U8At(data, clmmStatusOffset)&clmmStatusSwapDisabled != 0 {
		status = common.StatusPaused
	}

	return &common.PoolInfo{
		ProgramID:     ClmmProgramID,
		ProgramKind:   common.RaydiumClmm,
		TokenMint0:    common.PubkeyAt(data, clmmMint0Offset),
		TokenMint1:    common.PubkeyAt(data, clmmMint1Offset),
		TokenVault0:   common.PubkeyAt(data, clmmVault0Offset),
		TokenVault1:   common.PubkeyAt(data, clmmVault1Offset),
		Decimals0:     common.U8At(data, clmmDecimals0Offset),
		Decimals1:     common.U8At(data, clmmDecimals1Offset),
		DecimalsKnown: true,
		AmmConfig:     common.PubkeyAt(data, clmmAmmConfigOffset),
		Concentrated: &common.Concentrated{
			SqrtPriceX64: common.U128At(data, clmmSqrtPriceOffset),
			Liquidity:    common.U128At(data, clmmLiquidityOffset),
			CurrentTick:  tick,
			TickSpacing:  common.U16At(data, clmmTickSpacingOffset),
		},
		Status: status,
	}, nil
}
