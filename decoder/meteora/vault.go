package meteora

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// Dynamic vault layout: discriminator, enabled, two bumps, then total_amount.
const (
	vaultEnabledOffset     = 8
	vaultTotalAmountOffset = 11
	vaultTokenVaultOffset  = 19
	vaultTokenMintOffset   = 83
	vaultLpMintOffset      = 115
	VaultRequiredLength    = vaultLpMintOffset + 32
)

// Vault is the subset of a dynamic vault account needed to value LP shares.
type Vault struct {
	Enabled     bool
	TotalAmount uint64
	TokenVault  solana.PublicKey
	TokenMint   solana.PublicKey
	LpMint      solana.PublicKey
}

// DecodeVault decodes a dynamic vault state snapshot. The owner must be the vault program
// and the account must carry the Vault discriminator.
func DecodeVault(snap *common.AccountSnapshot) (*Vault, error) {
	if snap == nil {
		return nil, common.NewDecodeError(common.MeteoraDamm, common.ErrMissingVault)
	}
	if !snap.Owner.Equals(VaultProgramID) {
		return nil, common.NewDecodeError(common.MeteoraDamm,
			fmt.Errorf("%w: vault %s owned by %s", common.ErrWrongOwner, snap.Address, snap.Owner))
	}
	if err := common.CheckLength(snap.Data, VaultRequiredLength); err != nil {
		return nil, common.NewDecodeError(common.MeteoraDamm, err)
	}
	if err := common.CheckDiscriminator(snap.Data, VaultDiscriminator); err != nil {
		return nil, common.NewDecodeError(common.MeteoraDamm, err)
	}
	data := snap.Data
	return &Vault{
		Enabled:     common.BoolAt(data, vaultEnabledOffset),
		TotalAmount: common.U64At(data, vaultTotalAmountOffset),
		TokenVault:  common.PubkeyAt(data, vaultTokenVaultOffset),
		TokenMint:   common.PubkeyAt(data, vaultTokenMintOffset),
		LpMint:      common.PubkeyAt(data, vaultLpMintOffset),
	}, nil
}

// ShareAmount values lpBalance vault LP tokens in underlying tokens:
// total_amount * lp_balance / lp_supply.
func (v *Vault) ShareAmount(lpBalance, lpSupply uint64) (uint64, error) {
	if lpSupply == 0 {
		return 0, fmt.Errorf("%w: vault lp supply", common.ErrZeroReserve)
	}
	return common.MulDiv(v.TotalAmount, lpBalance, lpSupply)
}
