package pumpfun

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

const (
	curveVirtualTokenOffset = 8
	curveVirtualSolOffset   = 16
	curveRealTokenOffset    = 24
	curveRealSolOffset      = 32
	curveSupplyOffset       = 40
	curveCompleteOffset     = 48
	curveCreatorOffset      = 49
	// BondingCurveRequiredLength covers every field through complete; creator is
	// only present on newer curves.
	BondingCurveRequiredLength = curveCompleteOffset + 1
)

// BondingCurve is the full curve state.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// DecodeBondingCurve decodes a bonding curve into a pool with SOL on side 0. The
// curve does not store its token mint, so TokenMint1 is left zero for the caller.
func DecodeBondingCurve(data []byte) (*common.PoolInfo, error) {
	info, _, err := decodeBondingCurve(data)
	if err != nil {
		return nil, common.NewDecodeError(common.PumpFunLegacy, err)
	}
	return info, nil
}

func DecodeBondingCurveDetails(data []byte) (*common.PoolInfo, *BondingCurve, error) {
	info, curve, err := decodeBondingCurve(data)
	if err != nil {
		return nil, nil, common.NewDecodeError(common.PumpFunLegacy, err)
	}
	return info, curve, nil
}

func decodeBondingCurve(data []byte) (*common.PoolInfo, *BondingCurve, error) {
	if err := common.CheckLength(data, BondingCurveRequiredLength); err != nil {
		return nil, nil, err
	}
	if err := common.CheckDiscriminator(data, BondingCurveDiscriminator); err != nil {
		return nil, nil, err
	}

	curve := &BondingCurve{
		VirtualTokenReserves: common.U64At(data, curveVirtualTokenOffset),
		VirtualSolReserves:   common.U64At(data, curveVirtualSolOffset),
		RealTokenReserves:    common.U64At(data, curveRealTokenOffset),
		RealSolReserves:      common.U64At(data, curveRealSolOffset),
		TokenTotalSupply:     common.U64At(data, curveSupplyOffset),
		Complete:             common.BoolAt(data, curveCompleteOffset),
	}
	if len(data) >= curveCreatorOffset+32 {
		curve.Creator = common.PubkeyAt(data, curveCreatorOffset)
	}

	status := common.StatusEnabled
	if curve.Complete {
		// Migrated curves no longer trade; liquidity lives in the AMM pool.
		status = common.StatusDisabled
	}

	info := &common.PoolInfo{
		ProgramID:     BondingCurveProgramID,
		ProgramKind:   common.PumpFunLegacy,
		TokenMint0:    common.NativeMint,
		Decimals0:     common.NativeDecimals,
		Decimals1:     TokenDecimals,
		DecimalsKnown: true,
		Reserve0:      curve.VirtualSolReserves,
		Reserve1:      curve.VirtualTokenReserves,
		Status:        status,
	}
	return info, curve, nil
}
