package common

import (
	"errors"
	"fmt"
)

var (
	// ErrTooShort is returned when account data is smaller than the layout requires.
	ErrTooShort = errors.New("account data too short")
	// ErrInvalidDiscriminator is returned when the leading 8 bytes do not match the account type.
	ErrInvalidDiscriminator = errors.New("invalid account discriminator")
	// ErrInvalidLayout covers decoded values that cannot be valid for the account type.
	ErrInvalidLayout = errors.New("invalid account layout")
	// ErrUnsupportedProgram is returned for owners that map to no known AMM.
	ErrUnsupportedProgram = errors.New("unsupported program")
	// ErrWrongOwner is returned when an account's owner disagrees with the requested program kind.
	ErrWrongOwner = errors.New("account owner mismatch")
	// ErrMissingAccount is returned when the pool account is absent from the input set.
	ErrMissingAccount = errors.New("account missing")
	// ErrMissingVault is returned when a reserve-bearing account is absent from the input set.
	ErrMissingVault = errors.New("vault account missing")
	// ErrArithmeticOverflow is returned when checked fixed-point math exceeds its range.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrZeroReserve is returned when a price would divide by an empty reserve.
	ErrZeroReserve = errors.New("zero reserve")
	// ErrNotNativePair is returned when neither side of a pool is the native mint.
	ErrNotNativePair = errors.New("pool is not paired with the native mint")
	// ErrMintMismatch is returned when a pool's mints disagree with the requested pair.
	ErrMintMismatch = errors.New("pool mints do not match requested pair")
	// ErrPoolDisabled is returned for pools whose on-chain status forbids trading.
	ErrPoolDisabled = errors.New("pool disabled")
	// ErrUnknownDecimals is returned when a mint's decimals cannot be resolved.
	ErrUnknownDecimals = errors.New("mint decimals unknown")
)

// DecodeError annotates decode failures with the program they were decoded for.
type DecodeError struct {
	Program string
	Err     error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Program, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewDecodeError wraps err for the given program kind.
func NewDecodeError(kind ProgramKind, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{Program: kind.String(), Err: err}
}
