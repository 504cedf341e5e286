package raydium

import (
	"fmt"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// AmmInfo layout (v4). All scalars are u64; there is no discriminator.
const (
	legacyStatusOffset          = 0
	legacyCoinDecimalsOffset    = 32
	legacyPcDecimalsOffset      = 40
	legacyTradeFeeNumOffset     = 144
	legacyTradeFeeDenomOffset   = 152
	legacyNeedTakePnlCoinOffset = 192
	legacyNeedTakePnlPcOffset   = 200
	legacyCoinVaultOffset       = 336
	legacyPcVaultOffset         = 368
	legacyCoinMintOffset        = 400
	legacyPcMintOffset          = 432
	// LegacyAmmRequiredLength covers every field through the pc mint.
	LegacyAmmRequiredLength = legacyPcMintOffset + 32
	// LegacyAmmAccountSize is the full on-chain AmmInfo size.
	LegacyAmmAccountSize = 752
)

// Legacy AmmStatus values.
const (
	legacyStatusUninitialized = 0
	legacyStatusDisabled      = 2
	legacyStatusWithdrawOnly  = 3
	legacyStatusLiquidityOnly = 4
	legacyStatusWaitingTrade  = 7
)

// DecodeLegacyAmm decodes a Raydium AMM v4 AmmInfo account. Coin is side 0, pc side 1.
func DecodeLegacyAmm(data []byte) (*common.PoolInfo, error) {
	info, err := decodeLegacyAmm(data)
	if err != nil {
		return nil, common.NewDecodeError(common.RaydiumLegacyAmm, err)
	}
	return info, nil
}

func decodeLegacyAmm(data []byte) (*common.PoolInfo, error) {
	if err := common.CheckLength(data, LegacyAmmRequiredLength); err != nil {
		return nil, err
	}

	coinDecimals := common.U64At(data, legacyCoinDecimalsOffset)
	pcDecimals := common.U64At(data, legacyPcDecimalsOffset)
	if coinDecimals > 255 || pcDecimals > 255 {
		return nil, fmt.Errorf("%w: decimals %d/%d", common.ErrInvalidLayout, coinDecimals, pcDecimals)
	}

	info := &common.PoolInfo{
		ProgramID:     LegacyAmmProgramID,
		ProgramKind:   common.RaydiumLegacyAmm,
		TokenMint0:    common.PubkeyAt(data, legacyCoinMintOffset),
		TokenMint1:    common.PubkeyAt(data, legacyPcMintOffset),
		TokenVault0:   common.PubkeyAt(data, legacyCoinVaultOffset),
		TokenVault1:   common.PubkeyAt(data, legacyPcVaultOffset),
		Decimals0:     uint8(coinDecimals),
		Decimals1:     uint8(pcDecimals),
		DecimalsKnown: true,
		PendingFees0:  common.U64At(data, legacyNeedTakePnlCoinOffset),
		PendingFees1:  common.U64At(data, legacyNeedTakePnlPcOffset),
		Status:        legacyStatus(common.U64At(data, legacyStatusOffset)),
	}

	num := common.U64At(data, legacyTradeFeeNumOffset)
	denom := common.U64At(data, legacyTradeFeeDenomOffset)
	if denom != 0 {
		ppm, err := common.FeeRateFromFraction(num, denom)
		if err != nil {
			return nil, err
		}
		info.FeeRate = common.FeeRatePPM(ppm)
	}
	return info, nil
}

func legacyStatus(raw uint64) common.PoolStatus {
	switch raw {
	case legacyStatusUninitialized, legacyStatusDisabled:
		return common.StatusDisabled
	case legacyStatusWithdrawOnly, legacyStatusLiquidityOnly, legacyStatusWaitingTrade:
		return common.StatusPaused
	default:
		return common.StatusEnabled
	}
}
