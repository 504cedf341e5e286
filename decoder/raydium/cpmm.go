package raydium

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// CPMM PoolState layout.
const (
	cpmmAmmConfigOffset     = 8
	cpmmVault0Offset        = 72
	cpmmVault1Offset        = 104
	cpmmLpMintOffset        = 136
	cpmmMint0Offset         = 168
	cpmmMint1Offset         = 200
	cpmmObservationOffset   = 296
	cpmmStatusOffset        = 329
	cpmmMint0DecimalsOffset = 331
	cpmmMint1DecimalsOffset = 332
	cpmmLpSupplyOffset      = 333
	cpmmProtocolFees0Offset = 341
	cpmmProtocolFees1Offset = 349
	cpmmFundFees0Offset     = 357
	cpmmFundFees1Offset     = 365
	cpmmOpenTimeOffset      = 373
	cpmmRecentEpochOffset   = 381
	// CpmmRequiredLength covers every field through recent_epoch.
	CpmmRequiredLength = cpmmRecentEpochOffset + 8
	// CpmmAccountSize is the full on-chain PoolState size including padding.
	CpmmAccountSize = 637
)

// cpmmStatusSwapDisabled is bit 2 of the CPMM status bitmask.
const cpmmStatusSwapDisabled = 1 << 2

// CpmmPool exposes CPMM fields that do not fit the normalized pool model.
type CpmmPool struct {
	LpMint      solana.PublicKey
	Observation solana.PublicKey
	LpSupply    uint64
	OpenTime    uint64
}

// DecodeCpmmPool decodes a Raydium CPMM PoolState account.
func DecodeCpmmPool(data []byte) (*common.PoolInfo, error) {
	info, _, err := decodeCpmm(data)
	if err != nil {
		return nil, common.NewDecodeError(common.RaydiumCpmm, err)
	}
	return info, nil
}

// DecodeCpmmPoolDetails is DecodeCpmmPool plus the CPMM-only fields.
func DecodeCpmmPoolDetails(data []byte) (*common.PoolInfo, *CpmmPool, error) {
	info, extra, err := decodeCpmm(data)
	if err != nil {
		return nil, nil, common.NewDecodeError(common.RaydiumCpmm, err)
	}
	return info, extra, nil
}

func decodeCpmm(data []byte) (*common.PoolInfo, *CpmmPool, error) {
	if err := common.CheckLength(data, CpmmRequiredLength); err != nil {
		return nil, nil, err
	}
	if err := common.CheckDiscriminator(data, PoolStateDiscriminator); err != nil {
		return nil, nil, err
	}

	status := common.StatusEnabled
	if common.U8At(data, cpmmStatusOffset)&cpmmStatusSwapDisabled != 0 {
		status = common.StatusPaused
	}

	info := &common.PoolInfo{
		ProgramID:     CpmmProgramID,
		ProgramKind:   common.RaydiumCpmm,
		TokenMint0:    common.PubkeyAt(data, cpmmMint0Offset),
		TokenMint1:    common.PubkeyAt(data, cpmmMint1Offset),
		TokenVault0:   common.PubkeyAt(data, cpmmVault0Offset),
		TokenVault1:   common.PubkeyAt(data, cpmmVault1Offset),
		Decimals0:     common.U8At(data, cpmmMint0DecimalsOffset),
		Decimals1:     common.U8At(data, cpmmMint1DecimalsOffset),
		DecimalsKnown: true,
		PendingFees0: saturatingAdd(
			common.U64At(data, cpmmProtocolFees0Offset),
			common.U64At(data, cpmmFundFees0Offset),
		),
		PendingFees1: saturatingAdd(
			common.U64At(data, cpmmProtocolFees1Offset),
			common.U64At(data, cpmmFundFees1Offset),
		),
		AmmConfig: common.PubkeyAt(data, cpmmAmmConfigOffset),
		Status:    status,
	}

	extra := &CpmmPool{
		LpMint:      common.PubkeyAt(data, cpmmLpMintOffset),
		Observation: common.PubkeyAt(data, cpmmObservationOffset),
		LpSupply:    common.U64At(data, cpmmLpSupplyOffset),
		OpenTime:    common.U64At(data, cpmmOpenTimeOffset),
	}
	return info, extra, nil
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
