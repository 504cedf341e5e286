package pumpfun

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

const (
	poolBumpOffset        = 8
	poolIndexOffset       = 9
	poolCreatorOffset     = 11
	poolBaseMintOffset    = 43
	poolQuoteMintOffset   = 75
	poolLpMintOffset      = 107
	poolBaseVaultOffset   = 139
	poolQuoteVaultOffset  = 171
	poolLpSupplyOffset    = 203
	poolCoinCreatorOffset = 211
	// PoolRequiredLength covers every field through lp_supply; coin_creator is optional.
	PoolRequiredLength = poolCoinCreatorOffset
)

// AmmPool carries PumpSwap fields outside the normalized model.
type AmmPool struct {
	Bump        uint8
	Index       uint16
	Creator     solana.PublicKey
	LpMint      solana.PublicKey
	LpSupply    uint64
	CoinCreator solana.PublicKey
}

// DecodeAmmPool decodes a PumpSwap pool: base mint is side 0, quote mint side 1.
func DecodeAmmPool(data []byte) (*common.PoolInfo, error) {
	info, _, err := decodeAmmPool(data)
	if err != nil {
		return nil, common.NewDecodeError(common.PumpFunAmm, err)
	}
	return info, nil
}

func DecodeAmmPoolDetails(data []byte) (*common.PoolInfo, *AmmPool, error) {
	info, pool, err := decodeAmmPool(data)
	if err != nil {
		return nil, nil, common.NewDecodeError(common.PumpFunAmm, err)
	}
	return info, pool, nil
}

func decodeAmmPool(data []byte) (*common.PoolInfo, *AmmPool, error) {
	if err := common.CheckLength(data, PoolRequiredLength); err != nil {
		return nil, nil, err
	}
	if err := common.CheckDiscriminator(data, PoolDiscriminator); err != nil {
		return nil, nil, err
	}

	pool := &AmmPool{
		Bump:     common.U8At(data, poolBumpOffset),
		Index:    common.U16At(data, poolIndexOffset),
		Creator:  common.PubkeyAt(data, poolCreatorOffset),
		LpMint:   common.PubkeyAt(data, poolLpMintOffset),
		LpSupply: common.U64At(data, poolLpSupplyOffset),
	}
	if len(data) >= poolCoinCreatorOffset+32 {
		pool.CoinCreator = common.PubkeyAt(data, poolCoinCreatorOffset)
	}

	info := &common.PoolInfo{
		ProgramID:   AmmProgramID,
		ProgramKind: common.PumpFunAmm,
		TokenMint0:  common.PubkeyAt(data, poolBaseMintOffset),
		TokenMint1:  common.PubkeyAt(data, poolQuoteMintOffset),
		TokenVault0: common.PubkeyAt(data, poolBaseVaultOffset),
		TokenVault1: common.PubkeyAt(data, poolQuoteVaultOffset),
		Status:      common.StatusEnabled,
	}
	return info, pool, nil
}
