package lending

import (
	"math/big"
	"math/bits"
)

// InterestCalculator prices loans with simple per-block interest.
type InterestCalculator struct {
	perBlockPPM uint64
}

// NewInterestCalculator constructs a calculator charging perBlockPPM parts per
// million of principal for each block of duration.
func NewInterestCalculator(perBlockPPM uint64) InterestCalculator {
	return InterestCalculator{perBlockPPM: perBlockPPM}
}

// PerBlockPPM exposes the configured rate.
func (c InterestCalculator) PerBlockPPM() uint64 { return c.perBlockPPM }

// Interest returns floor(principal * rate * duration / 1_000_000).
func (c InterestCalculator) Interest(principal *big.Int, duration uint64) (*big.Int, error) {
	if principal == nil || principal.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	hi, factor := bits.Mul64(c.perBlockPPM, duration)
	if hi != 0 {
		return nil, ErrArithmeticOverflow
	}
	return mulDivFloor(principal, factor, PPMDenominator)
}

// AmountDue returns principal plus Interest(principal, duration).
func (c InterestCalculator) AmountDue(principal *big.Int, duration uint64) (*big.Int, error) {
	interest, err := c.Interest(principal, duration)
	if err != nil {
		return nil, err
	}
	return checkedAdd(principal, interest)
}

// RequiredCollateral returns ceil(principal * ratioBps / 10_000).
func RequiredCollateral(principal *big.Int, ratioBps uint64) (*big.Int, error) {
	if principal == nil || principal.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return mulDivCeil(principal, ratioBps, BasisPointDenominator)
}
