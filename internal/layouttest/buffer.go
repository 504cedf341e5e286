// Package layouttest builds synthetic account images for decoder and pricing tests.
package layouttest

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Buffer is a fixed-size little-endian account image.
type Buffer struct {
	data []byte
}

// New returns a zeroed image of size bytes.
func New(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

func (b *Buffer) Discriminator(d [8]byte) *Buffer {
	copy(b.data[0:8], d[:])
	return b
}

func (b *Buffer) Pubkey(offset int, key solana.PublicKey) *Buffer {
	copy(b.data[offset:offset+32], key[:])
	return b
}

func (b *Buffer) U8(offset int, v uint8) *Buffer {
	b.data[offset] = v
	return b
}

func (b *Buffer) Bool(offset int, v bool) *Buffer {
	if v {
		b.data[offset] = 1
	} else {
		b.data[offset] = 0
	}
	return b
}

func (b *Buffer) U16(offset int, v uint16) *Buffer {
	binary.LittleEndian.PutUint16(b.data[offset:], v)
	return b
}

func (b *Buffer) U32(offset int, v uint32) *Buffer {
	binary.LittleEndian.PutUint32(b.data[offset:], v)
	return b
}

func (b *Buffer) I32(offset int, v int32) *Buffer {
	binary.LittleEndian.PutUint32(b.data[offset:], uint32(v))
	return b
}

func (b *Buffer) U64(offset int, v uint64) *Buffer {
	binary.LittleEndian.PutUint64(b.data[offset:], v)
	return b
}

func (b *Buffer) U128(offset int, v uint128.Uint128) *Buffer {
	v.PutBytes(b.data[offset : offset+16])
	return b
}

// Bytes returns a copy of the image.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Key derives a deterministic non-zero public key from a seed byte.
func Key(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed ^ byte(i*7+1)
	}
	return k
}

// TokenAccount builds an SPL token account image holding amount of mint.
func TokenAccount(mint solana.PublicKey, amount uint64) []byte {
	return New(165).Pubkey(0, mint).U64(64, amount).Bytes()
}

// MintAccount builds an SPL mint account image.
func MintAccount(supply uint64, decimals uint8) []byte {
	return New(82).U32(0, 0).U64(36, supply).U8(44, decimals).Bool(45, true).Bytes()
}
