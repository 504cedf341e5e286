package common

import (
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// PoolStatus is the normalized trading status of a pool.
type PoolStatus uint8

const (
	StatusEnabled PoolStatus = iota
	StatusDisabled
	StatusPaused
)

func (s PoolStatus) String() string {
	switch s {
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText keeps JSON payloads readable.
func (s PoolStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText; unrecognised values decode as disabled.
func (s *PoolStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "enabled":
		*s = StatusEnabled
	case "paused":
		*s = StatusPaused
	default:
		*s = StatusDisabled
	}
	return nil
}

// Concentrated carries the pricing state of CLMM-style pools.
type Concentrated struct {
	SqrtPriceX64 uint128.Uint128 `json:"sqrt_price_x64"`
	Liquidity    uint128.Uint128 `json:"liquidity"`
	CurrentTick  int32           `json:"current_tick"`
	TickSpacing  uint16          `json:"tick_spacing"`
}

// Bins carries the pricing state of discretized-liquidity pools.
type Bins struct {
	ActiveBinID        int32  `json:"active_bin_id"`
	BinStep            uint16 `json:"bin_step"`
	BaseFactor         uint16 `json:"base_factor"`
	BaseFeePowerFactor uint8  `json:"base_fee_power_factor"`
}

// VaultShares identifies the LP token accounts a pool holds in shared yield vaults.
// TokenVault0/1 then point at the vault state accounts rather than SPL token accounts.
type VaultShares struct {
	LpAccount0 solana.PublicKey `json:"lp_account_0"`
	LpAccount1 solana.PublicKey `json:"lp_account_1"`
}

// PoolInfo is the protocol-independent view of a decoded pool account.
type PoolInfo struct {
	PoolAddress solana.PublicKey `json:"pool_address"`
	ProgramID   solana.PublicKey `json:"program_id"`
	ProgramKind ProgramKind      `json:"program_kind"`

	TokenMint0    solana.PublicKey `json:"token_mint_0"`
	TokenMint1    solana.PublicKey `json:"token_mint_1"`
	TokenVault0   solana.PublicKey `json:"token_vault_0"`
	TokenVault1   solana.PublicKey `json:"token_vault_1"`
	Decimals0     uint8            `json:"decimals_0"`
	Decimals1     uint8            `json:"decimals_1"`
	DecimalsKnown bool             `json:"decimals_known"`

	Reserve0 uint64 `json:"reserve_0"`
	Reserve1 uint64 `json:"reserve_1"`
	// PendingFees are vault balances owed to the protocol rather than to liquidity providers.
	PendingFees0 uint64 `json:"pending_fees_0,omitempty"`
	PendingFees1 uint64 `json:"pending_fees_1,omitempty"`

	AmmConfig solana.PublicKey `json:"amm_config,omitempty"`

	Concentrated *Concentrated `json:"concentrated,omitempty"`
	Bins         *Bins         `json:"bins,omitempty"`
	VaultShares  *VaultShares  `json:"vault_shares,omitempty"`

	// FeeRate is the swap fee in parts per million, when the pool or its config carries one.
	FeeRate *uint32    `json:"fee_rate,omitempty"`
	Status  PoolStatus `json:"status"`
}

// Mints returns both sides' mints in pool order.
func (p *PoolInfo) Mints() [2]solana.PublicKey {
	return [2]solana.PublicKey{p.TokenMint0, p.TokenMint1}
}

// Vaults returns both sides' vaults in pool order.
func (p *PoolInfo) Vaults() [2]solana.PublicKey {
	return [2]solana.PublicKey{p.TokenVault0, p.TokenVault1}
}

// Dependencies lists every auxiliary account pricing this pool may read.
func (p *PoolInfo) Dependencies() []solana.PublicKey {
	var deps []solana.PublicKey
	add := func(keys ...solana.PublicKey) {
		for _, k := range keys {
			if !k.IsZero() {
				deps = append(deps, k)
			}
		}
	}
	add(p.TokenVault0, p.TokenVault1)
	if !p.DecimalsKnown {
		add(p.TokenMint0, p.TokenMint1)
	}
	add(p.AmmConfig)
	if p.VaultShares != nil {
		add(p.VaultShares.LpAccount0, p.VaultShares.LpAccount1)
	}
	return deps
}

// FeeRatePPM is a small helper for decoders setting the optional fee.
func FeeRatePPM(v uint32) *uint32 {
	return &v
}
