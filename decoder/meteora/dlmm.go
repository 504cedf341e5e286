package meteora

import (
	"fmt"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// LbPair layout.
const (
	lbPairBaseFactorOffset   = 8
	lbPairBaseFeePowerOffset = 34
	lbPairActiveIDOffset     = 76
	lbPairBinStepOffset      = 80
	lbPairStatusOffset       = 82
	lbPairTokenXMintOffset   = 88
	lbPairTokenYMintOffset   = 120
	lbPairReserveXOffset     = 152
	lbPairReserveYOffset     = 184
	LbPairRequiredLength     = lbPairReserveYOffset + 32
)

const lbPairStatusDisabled uint8 = 1

// DecodeLbPair decodes a DLMM LbPair. Token X is side 0, token Y side 1.
func DecodeLbPair(data []byte) (*common.PoolInfo, error) {
	info, err := decodeLbPair(data)
	if err != nil {
		return nil, common.NewDecodeError(common.MeteoraDlmm, err)
	}
	return info, nil
}

func decodeLbPair(data []byte) (*common.PoolInfo, error) {
	if err := common.CheckLength(data, LbPairRequiredLength); err != nil {
		return nil, err
	}
	if err := common.CheckDiscriminator(data, LbPairDiscriminator); err != nil {
		return nil, err
	}

	bins := &common.Bins{
		ActiveBinID:        common.I32At(data, lbPairActiveIDOffset),
		BinStep:            common.U16At(data, lbPairBinStepOffset),
		BaseFactor:         common.U16At(data, lbPairBaseFactorOffset),
		BaseFeePowerFactor: common.U8At(data, lbPairBaseFeePowerOffset),
	}
	if bins.BinStep == 0 {
		return nil, fmt.Errorf("%w: zero bin step", common.ErrInvalidLayout)
	}

	fee, err := BaseFeePPM(bins)
	if err != nil {
		return nil, err
	}

	status := common.StatusEnabled
	if common.U8At(data, lbPairStatusOffset) == lbPairStatusDisabled {
		status = common.StatusDisabled
	}

	return &common.PoolInfo{
		ProgramID:   DlmmProgramID,
		ProgramKind: common.MeteoraDlmm,
		TokenMint0:  common.PubkeyAt(data, lbPairTokenXMintOffset),
		TokenMint1:  common.PubkeyAt(data, lbPairTokenYMintOffset),
		TokenVault0: common.PubkeyAt(data, lbPairReserveXOffset),
		TokenVault1: common.PubkeyAt(data, lbPairReserveYOffset),
		Bins:        bins,
		FeeRate:     common.FeeRatePPM(fee),
		Status:      status,
	}, nil
}

// BaseFeePPM is the static DLMM fee: base_factor * bin_step * 10 * 10^power in
// 1e-9 units, returned as parts per million.
func BaseFeePPM(b *common.Bins) (uint32, error) {
	if b.BaseFeePowerFactor > 9 {
		return 0, fmt.Errorf("%w: base fee power %d", common.ErrArithmeticOverflow, b.BaseFeePowerFactor)
	}
	scale := uint64(10)
	for i := uint8(0); i < b.BaseFeePowerFactor; i++ {
		scale *= 10
	}
	ppm, err := common.MulDiv(uint64(b.BaseFactor)*uint64(b.BinStep), scale, 1000)
	if err != nil {
		return 0, err
	}
	if ppm > 1_000_000 {
		return 0, fmt.Errorf("%w: fee %d ppm", common.ErrArithmeticOverflow, ppm)
	}
	return uint32(ppm), nil
}
