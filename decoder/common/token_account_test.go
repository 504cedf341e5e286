package common

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenAccountSnapshot(t *testing.T, owner, mint solana.PublicKey, amount uint64) *AccountSnapshot {
	t.Helper()
	data := make([]byte, 165)
	copy(data[0:32], mint[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	return &AccountSnapshot{Address: solana.PublicKey{1}, Owner: owner, Data: data}
}

func mintSnapshot(t *testing.T, owner solana.PublicKey, supply uint64, decimals uint8) *AccountSnapshot {
	t.Helper()
	data := make([]byte, MintAccountMinLength)
	binary.LittleEndian.PutUint64(data[36:44], supply)
	data[44] = decimals
	return &AccountSnapshot{Address: solana.PublicKey{2}, Owner: owner, Data: data}
}

func TestTokenAccountAmount(t *testing.T) {
	for _, owner := range []solana.PublicKey{TokenProgramID, Token2022ProgramID} {
		snap := tokenAccountSnapshot(t, owner, NativeMint, 1_000_000_000)
		amount, err := TokenAccountAmount(snap)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000_000), amount)

		mint, err := TokenAccountMint(snap)
		require.NoError(t, err)
		assert.Equal(t, NativeMint, mint)
	}
}

func TestTokenAccountAmountErrors(t *testing.T) {
	_, err := TokenAccountAmount(nil)
	assert.ErrorIs(t, err, ErrMissingVault)

	wrong := tokenAccountSnapshot(t, orcaMint, NativeMint, 5)
	_, err = TokenAccountAmount(wrong)
	assert.ErrorIs(t, err, ErrWrongOwner)

	short := tokenAccountSnapshot(t, TokenProgramID, NativeMint, 5)
	short.Data = short.Data[:TokenAccountMinLength-1]
	_, err = TokenAccountAmount(short)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestTokenAccountMintErrors(t *testing.T) {
	_, err := TokenAccountMint(nil)
	assert.ErrorIs(t, err, ErrMissingVault)

	foreign := tokenAccountSnapshot(t, orcaMint, NativeMint, 5)
	_, err = TokenAccountMint(foreign)
	assert.ErrorIs(t, err, ErrWrongOwner)

	short := tokenAccountSnapshot(t, Token2022ProgramID, NativeMint, 5)
	short.Data = short.Data[:TokenAccountMinLength-1]
	_, err = TokenAccountMint(short)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestMintDecimalsAndSupply(t *testing.T) {
	snap := mintSnapshot(t, TokenProgramID, 42_000_000, 6)
	decimals, err := MintDecimals(snap)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	supply, err := MintSupply(snap)
	require.NoError(t, err)
	assert.Equal(t, uint64(42_000_000), supply)

	_, err = MintDecimals(nil)
	assert.ErrorIs(t, err, ErrMissingAccount)

	snap.Data = snap.Data[:MintAccountMinLength-1]
	_, err = MintDecimals(snap)
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = MintSupply(mintSnapshot(t, orcaMint, 1, 6))
	assert.ErrorIs(t, err, ErrWrongOwner)
}

func TestAccountSetLookup(t *testing.T) {
	set := AccountSet{}
	snap := tokenAccountSnapshot(t, TokenProgramID, NativeMint, 1)
	set.Add(snap, nil)

	got, ok := set.Lookup(snap.Address)
	require.True(t, ok)
	assert.Same(t, snap, got)

	_, ok = set.Lookup(solana.PublicKey{})
	assert.False(t, ok)

	set.Add(&AccountSnapshot{Address: solana.PublicKey{9}})
	_, ok = set.Lookup(solana.PublicKey{9})
	assert.False(t, ok)
}
