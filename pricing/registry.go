package pricing

import (
	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/decoder/meteora"
	orcawhirlpool "github.com/rexbrahh/lp-pricer/decoder/orca_whirlpool"
	"github.com/rexbrahh/lp-pricer/decoder/pumpfun"
	"github.com/rexbrahh/lp-pricer/decoder/raydium"
)

// PricingModel selects how a decoded pool turns into a price.
type PricingModel uint8

const (
	// ModelConstantProduct prices from SPL vault balances.
	ModelConstantProduct PricingModel = iota + 1
	// ModelBondingCurve prices from reserves stored in the pool account.
	ModelBondingCurve
	// ModelConcentrated prices from a Q64.64 sqrt price.
	ModelConcentrated
	// ModelBins prices from the active bin of a discretized-liquidity pool.
	ModelBins
	// ModelVaultShares prices from LP shares held in dynamic yield vaults.
	ModelVaultShares
)

func (m PricingModel) String() string {
	switch m {
	case ModelConstantProduct:
		return "constant_product"
	case ModelBondingCurve:
		return "bonding_curve"
	case ModelConcentrated:
		return "concentrated"
	case ModelBins:
		return "bins"
	case ModelVaultShares:
		return "vault_shares"
	default:
		return "unknown"
	}
}

// DecodeFunc turns raw pool account bytes into a PoolInfo.
type DecodeFunc func(data []byte) (*common.PoolInfo, error)

// FeeConfigFunc reads a fee rate in ppm from a pool's config account.
type FeeConfigFunc func(data []byte) (uint32, error)

type route struct {
	decode    DecodeFunc
	model     PricingModel
	feeConfig FeeConfigFunc
}

// defaultRoutes is the dispatch table; a new protocol is one row.
func defaultRoutes() map[common.ProgramKind]route {
	return map[common.ProgramKind]route{
		common.RaydiumLegacyAmm: {decode: raydium.DecodeLegacyAmm, model: ModelConstantProduct},
		common.RaydiumCpmm:      {decode: raydium.DecodeCpmmPool, model: ModelConstantProduct, feeConfig: raydium.DecodeCpmmAmmConfig},
		common.RaydiumClmm:      {decode: raydium.DecodeClmmPool, model: ModelConcentrated, feeConfig: raydium.DecodeClmmAmmConfig},
		common.OrcaWhirlpool:    {decode: orcawhirlpool.DecodeWhirlpool, model: ModelConcentrated},
		common.MeteoraDlmm:      {decode: meteora.DecodeLbPair, model: ModelBins},
		common.MeteoraDamm:      {decode: meteora.DecodeDammPool, model: ModelVaultShares},
		common.PumpFunLegacy:    {decode: pumpfun.DecodeBondingCurve, model: ModelBondingCurve},
		common.PumpFunAmm:       {decode: pumpfun.DecodeAmmPool, model: ModelConstantProduct},
	}
}

// Model reports the pricing model registered for kind.
func (c *Calculator) Model(kind common.ProgramKind) (PricingModel, bool) {
	r, ok := c.routes[kind]
	return r.model, ok
}
