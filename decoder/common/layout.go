package common

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// DiscriminatorLen is the size of an Anchor account discriminator.
const DiscriminatorLen = 8

// Discriminator is the 8-byte Anchor account tag.
type Discriminator [DiscriminatorLen]byte

// CheckLength fails with ErrTooShort when data cannot hold want bytes.
func CheckLength(data []byte, want int) error {
	if len(data) < want {
		return fmt.Errorf("%w: have %d want >= %d", ErrTooShort, len(data), want)
	}
	return nil
}

// CheckDiscriminator validates the leading Anchor tag. Callers check length first.
func CheckDiscriminator(data []byte, want Discriminator) error {
	if len(data) < DiscriminatorLen {
		return fmt.Errorf("%w: have %d want >= %d", ErrTooShort, len(data), DiscriminatorLen)
	}
	if !bytes.Equal(data[:DiscriminatorLen], want[:]) {
		return fmt.Errorf("%w: got %x want %x", ErrInvalidDiscriminator, data[:DiscriminatorLen], want[:])
	}
	return nil
}

// HasDiscriminator reports whether data starts with want.
func HasDiscriminator(data []byte, want Discriminator) bool {
	return len(data) >= DiscriminatorLen && bytes.Equal(data[:DiscriminatorLen], want[:])
}

// The readers below assume the caller already validated the layout length.

func PubkeyAt(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+solana.PublicKeyLength])
}

func U8At(data []byte, offset int) uint8 {
	return data[offset]
}

func BoolAt(data []byte, offset int) bool {
	return data[offset] != 0
}

func U16At(data []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(data[offset : offset+2])
}

func U32At(data []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset : offset+4])
}

func I32At(data []byte, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
}

func U64At(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

func U128At(data []byte, offset int) uint128.Uint128 {
	return uint128.FromBytes(data[offset : offset+16])
}
