package meteora

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// DAMM v1 Pool layout.
const (
	dammLpMintOffset        = 8
	dammTokenAMintOffset    = 40
	dammTokenBMintOffset    = 72
	dammAVaultOffset        = 104
	dammBVaultOffset        = 136
	dammAVaultLpOffset      = 168
	dammBVaultLpOffset      = 200
	dammEnabledOffset       = 233
	dammTradeFeeNumOffset   = 330
	dammTradeFeeDenomOffset = 338
	DammRequiredLength      = dammTradeFeeDenomOffset + 8
)

// DammPool holds the pool's own LP mint, which is not part of the normalized model.
type DammPool struct {
	LpMint solana.PublicKey
}

// DecodeDammPool decodes a DAMM v1 pool. TokenVault0/1 are the dynamic vault state
// accounts; VaultShares names the pool's LP token accounts in those vaults.
func DecodeDammPool(data []byte) (*common.PoolInfo, error) {
	info, _, err := decodeDamm(data)
	if err != nil {
		return nil, common.NewDecodeError(common.MeteoraDamm, err)
	}
	return info, nil
}

func DecodeDammPoolDetails(data []byte) (*common.PoolInfo, *DammPool, error) {
	info, extra, err := decodeDamm(data)
	if err != nil {
		return nil, nil, common.NewDecodeError(common.MeteoraDamm, err)
	}
	return info, extra, nil
}

func decodeDamm(data []byte) (*common.PoolInfo, *DammPool, error) {
	if err := common.CheckLength(data, DammRequiredLength); err != nil {
		return nil, nil, err
	}
	if err := common.CheckDiscriminator(data, DammPoolDiscriminator); err != nil {
		return nil, nil, err
	}

	status := common.StatusEnabled
	if !common.BoolAt(data, dammEnabledOffset) {
		status = common.StatusDisabled
	}

	info := &common.PoolInfo{
		ProgramID:   DammProgramID,
		ProgramKind: common.MeteoraDamm,
		TokenMint0:  common.PubkeyAt(data, dammTokenAMintOffset),
		TokenMint1:  common.PubkeyAt(data, dammTokenBMintOffset),
		TokenVault0: common.PubkeyAt(data, dammAVaultOffset),
		TokenVault1: common.PubkeyAt(data, dammBVaultOffset),
		VaultShares: &common.VaultShares{
			LpAccount0: common.PubkeyAt(data, dammAVaultLpOffset),
			LpAccount1: common.PubkeyAt(data, dammBVaultLpOffset),
		},
		Status: status,
	}

	num := common.U64At(data, dammTradeFeeNumOffset)
	denom := common.U64At(data, dammTradeFeeDenomOffset)
	if denom != 0 {
		ppm, err := common.FeeRateFromFraction(num, denom)
		if err != nil {
			return nil, nil, err
		}
		info.FeeRate = common.FeeRatePPM(ppm)
	}
	return info, &DammPool{LpMint: common.PubkeyAt(data, dammLpMintOffset)}, nil
}
