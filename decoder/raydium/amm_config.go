package raydium

import (
	"fmt"
	"math"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// AmmConfig layouts. Both programs express trade_fee_rate in parts per million.
const (
	clmmConfigTradeFeeOffset = 8 + 1 + 2 + 32 + 4
	clmmConfigRequiredLength = clmmConfigTradeFeeOffset + 4

	cpmmConfigTradeFeeOffset = 8 + 1 + 1 + 2
	cpmmConfigRequiredLength = cpmmConfigTradeFeeOffset + 8
)

// DecodeClmmAmmConfig returns the trade fee rate (ppm) of a CLMM AmmConfig account.
func DecodeClmmAmmConfig(data []byte) (uint32, error) {
	if err := checkAmmConfig(data, clmmConfigRequiredLength); err != nil {
		return 0, common.NewDecodeError(common.RaydiumClmm, err)
	}
	return common.U32At(data, clmmConfigTradeFeeOffset), nil
}

// DecodeCpmmAmmConfig returns the trade fee rate (ppm) of a CPMM AmmConfig account.
func DecodeCpmmAmmConfig(data []byte) (uint32, error) {
	if err := checkAmmConfig(data, cpmmConfigRequiredLength); err != nil {
		return 0, common.NewDecodeError(common.RaydiumCpmm, err)
	}
	rate := common.U64At(data, cpmmConfigTradeFeeOffset)
	if rate > math.MaxUint32 {
		return 0, common.NewDecodeError(common.RaydiumCpmm,
			fmt.Errorf("%w: trade fee rate %d", common.ErrArithmeticOverflow, rate))
	}
	return uint32(rate), nil
}

func checkAmmConfig(data []byte, want int) error {
	if err := common.CheckLength(data, want); err != nil {
		return err
	}
	return common.CheckDiscriminator(data, AmmConfigDiscriminator)
}
