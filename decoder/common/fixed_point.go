package common

import (
	"fmt"
	"math"
	"math/big"

	"lukechampine.com/uint128"
)

// Q64.64 fixed point: sqrt prices in CLMM pools (Raydium, Orca Whirlpools) carry
// 64 integer bits and 64 fractional bits in a u128.
const (
	Q64Shift = 64

	// MinTickIndex and MaxTickIndex bound the concentrated-liquidity tick range.
	MinTickIndex int32 = -443636
	MaxTickIndex int32 = 443636

	// BasisPointMax is the denominator for bin steps and fee rates expressed in bps.
	BasisPointMax = 10000

	tickBase       = 1.0001
	bigFloatPrec   = 256
	feeRateDenomPP = 1_000_000
)

var (
	Q64One  = new(big.Int).Lsh(big.NewInt(1), Q64Shift)
	q128One = new(big.Int).Lsh(big.NewInt(1), 2*Q64Shift)
)

func newFloat() *big.Float {
	return new(big.Float).SetPrec(bigFloatPrec)
}

// SqrtPriceX64ToPrice converts a Q64.64 sqrt price to the raw price of token0 in token1.
// Formula: price = (sqrt_price / 2^64)^2, squared in 256-bit space before narrowing.
// The result is not yet adjusted for mint decimals.
func SqrtPriceX64ToPrice(sqrtPriceX64 uint128.Uint128) float64 {
	if sqrtPriceX64.IsZero() {
		return 0
	}
	s := sqrtPriceX64.Big()
	squared := new(big.Int).Mul(s, s)

	price := newFloat().SetInt(squared)
	price.Quo(price, newFloat().SetInt(q128One))

	f, _ := price.Float64()
	return f
}

// FloatToSqrtPriceX64 converts a raw price to its Q64.64 sqrt price.
// Formula: sqrt_price_x64 = sqrt(price) * 2^64; saturates at the u128 maximum.
func FloatToSqrtPriceX64(price float64) uint128.Uint128 {
	if price <= 0 || math.IsNaN(price) {
		return uint128.Zero
	}
	if math.IsInf(price, 1) {
		return uint128.Max
	}
	sqrtPrice := newFloat().SetFloat64(math.Sqrt(price))
	sqrtPrice.Mul(sqrtPrice, newFloat().SetInt(Q64One))
	return bigFloatToU128(sqrtPrice)
}

// TickIndexToSqrtPriceX64 converts a tick index to a Q64.64 sqrt price.
// Formula: sqrt_price = 1.0001^(tick_index / 2) * 2^64
func TickIndexToSqrtPriceX64(tickIndex int32) uint128.Uint128 {
	sqrtPrice := math.Pow(tickBase, float64(tickIndex)/2.0)
	value := newFloat().SetFloat64(sqrtPrice)
	value.Mul(value, newFloat().SetInt(Q64One))
	return bigFloatToU128(value)
}

// SqrtPriceX64ToTickIndex converts a sqrt price to the tick at or below it.
// Formula: tick_index = floor(log_1.0001(sqrt_price / 2^64) * 2)
func SqrtPriceX64ToTickIndex(sqrtPriceX64 uint128.Uint128) (int32, error) {
	if sqrtPriceX64.IsZero() {
		return 0, fmt.Errorf("%w: zero sqrt price", ErrInvalidLayout)
	}
	ratio := newFloat().SetInt(sqrtPriceX64.Big())
	ratio.Quo(ratio, newFloat().SetInt(Q64One))
	sqrtPrice, _ := ratio.Float64()

	tick := math.Floor(math.Log(sqrtPrice) / math.Log(tickBase) * 2.0)
	if tick < float64(MinTickIndex) || tick > float64(MaxTickIndex) {
		return 0, fmt.Errorf("%w: tick %.0f out of range", ErrArithmeticOverflow, tick)
	}
	return int32(tick), nil
}

func bigFloatToU128(f *big.Float) uint128.Uint128 {
	i, _ := f.Int(nil)
	if i.Sign() <= 0 {
		return uint128.Zero
	}
	if i.BitLen() > 128 {
		return uint128.Max
	}
	return uint128.FromBig(i)
}

// TickToPrice is the standard tick-to-price conversion, 1.0001^tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(tickBase, float64(tick))
}

// BinIDToPrice returns the raw price at a discretized-liquidity bin:
// (1 + bin_step / 10000)^active_id.
func BinIDToPrice(activeID int32, binStep uint16) float64 {
	return math.Pow(1+float64(binStep)/BasisPointMax, float64(activeID))
}

// ReservesToPrice prices one whole base token in whole quote tokens from raw reserves:
// (reserve_quote / 10^decimals_quote) / (reserve_base / 10^decimals_base).
func ReservesToPrice(reserveBase, reserveQuote uint64, decimalsBase, decimalsQuote uint8) (float64, error) {
	if reserveBase == 0 || reserveQuote == 0 {
		return 0, fmt.Errorf("%w: base=%d quote=%d", ErrZeroReserve, reserveBase, reserveQuote)
	}
	return ScaleAmount(reserveQuote, decimalsQuote) / ScaleAmount(reserveBase, decimalsBase), nil
}

// AdjustForDecimals turns a raw token1-per-token0 price into whole-unit terms.
func AdjustForDecimals(rawPrice float64, decimals0, decimals1 uint8) float64 {
	return rawPrice * math.Pow10(int(decimals0)-int(decimals1))
}

// ImpliedReserves derives the virtual reserves of a concentrated pool at its current price:
// x = L / sqrt(P), y = L * sqrt(P), in raw units.
func ImpliedReserves(liquidity, sqrtPriceX64 uint128.Uint128) (reserve0, reserve1 float64) {
	if liquidity.IsZero() || sqrtPriceX64.IsZero() {
		return 0, 0
	}
	l := liquidity.Big()
	s := sqrtPriceX64.Big()

	x := newFloat().SetInt(new(big.Int).Mul(l, Q64One))
	x.Quo(x, newFloat().SetInt(s))

	y := newFloat().SetInt(new(big.Int).Mul(l, s))
	y.Quo(y, newFloat().SetInt(Q64One))

	reserve0, _ = x.Float64()
	reserve1, _ = y.Float64()
	return reserve0, reserve1
}

// MulDiv computes a*b/denom with a 128-bit intermediate, failing instead of wrapping.
func MulDiv(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	q := uint128.From64(a).Mul64(b).Div64(denom)
	if q.Hi != 0 {
		return 0, fmt.Errorf("%w: %d*%d/%d exceeds u64", ErrArithmeticOverflow, a, b, denom)
	}
	return q.Lo, nil
}

// FeeRateFromFraction converts numerator/denominator to parts per million.
func FeeRateFromFraction(numerator, denominator uint64) (uint32, error) {
	ppm, err := MulDiv(numerator, feeRateDenomPP, denominator)
	if err != nil {
		return 0, err
	}
	if ppm > math.MaxUint32 {
		return 0, fmt.Errorf("%w: fee rate %d ppm", ErrArithmeticOverflow, ppm)
	}
	return uint32(ppm), nil
}

// ScaleAmount scales a raw token amount by its decimal places
func ScaleAmount(amount uint64, decimals uint8) float64 {
	divisor := math.Pow(10, float64(decimals))
	return float64(amount) / divisor
}
