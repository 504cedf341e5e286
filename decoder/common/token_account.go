package common

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SPL token account and mint layouts shared by Token and Token-2022.
const (
	tokenAccountMintOffset   = 0
	tokenAccountAmountOffset = 64
	// TokenAccountMinLength covers mint, owner and amount.
	TokenAccountMinLength = tokenAccountAmountOffset + 8

	mintSupplyOffset   = 36
	mintDecimalsOffset = 44
	// MintAccountMinLength is the size of a base SPL mint account.
	MintAccountMinLength = 82

	// NativeDecimals is the precision of SOL and wrapped SOL.
	NativeDecimals uint8 = 9
)

var (
	TokenProgramID     = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	// NativeMint is the wrapped SOL mint.
	NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// IsTokenProgram reports whether owner is one of the SPL token programs.
func IsTokenProgram(owner solana.PublicKey) bool {
	return owner.Equals(TokenProgramID) || owner.Equals(Token2022ProgramID)
}

// TokenAccountAmount reads the balance of an SPL token account snapshot.
func TokenAccountAmount(snap *AccountSnapshot) (uint64, error) {
	if snap == nil {
		return 0, ErrMissingVault
	}
	if !IsTokenProgram(snap.Owner) {
		return 0, fmt.Errorf("%w: token account %s owned by %s", ErrWrongOwner, snap.Address, snap.Owner)
	}
	if err := CheckLength(snap.Data, TokenAccountMinLength); err != nil {
		return 0, fmt.Errorf("token account %s: %w", snap.Address, err)
	}
	return U64At(snap.Data, tokenAccountAmountOffset), nil
}

// TokenAccountMint returns the mint recorded in an SPL token account.
func TokenAccountMint(snap *AccountSnapshot) (solana.PublicKey, error) {
	if snap == nil {
		return solana.PublicKey{}, ErrMissingVault
	}
	if !IsTokenProgram(snap.Owner) {
		return solana.PublicKey{}, fmt.Errorf("%w: token account %s owned by %s", ErrWrongOwner, snap.Address, snap.Owner)
	}
	if err := CheckLength(snap.Data, TokenAccountMinLength); err != nil {
		return solana.PublicKey{}, fmt.Errorf("token account %s: %w", snap.Address, err)
	}
	return PubkeyAt(snap.Data, tokenAccountMintOffset), nil
}

// MintDecimals reads the decimals byte of an SPL mint account snapshot.
func MintDecimals(snap *AccountSnapshot) (uint8, error) {
	if snap == nil {
		return 0, ErrMissingAccount
	}
	if !IsTokenProgram(snap.Owner) {
		return 0, fmt.Errorf("%w: mint %s owned by %s", ErrWrongOwner, snap.Address, snap.Owner)
	}
	if err := CheckLength(snap.Data, MintAccountMinLength); err != nil {
		return 0, fmt.Errorf("mint %s: %w", snap.Address, err)
	}
	return U8At(snap.Data, mintDecimalsOffset), nil
}

// MintSupply reads the total supply of an SPL mint account snapshot.
func MintSupply(snap *AccountSnapshot) (uint64, error) {
	if snap == nil {
		return 0, ErrMissingAccount
	}
	if !IsTokenProgram(snap.Owner) {
		return 0, fmt.Errorf("%w: mint %s owned by %s", ErrWrongOwner, snap.Address, snap.Owner)
	}
	if err := CheckLength(snap.Data, MintAccountMinLength); err != nil {
		return 0, fmt.Errorf("mint %s: %w", snap.Address, err)
	}
	return U64At(snap.Data, mintSupplyOffset), nil
}
