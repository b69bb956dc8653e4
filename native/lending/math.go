package lending

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Amounts are persisted as big integers but every mutation is checked against
// the 256-bit word size.

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return word, nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	x, err := toWord(a)
	if err != nil {
		return nil, err
	}
	y, err := toWord(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return sum.ToBig(), nil
}

// checkedSub returns a-b, reporting ok=false when the result would be
// negative.
func checkedSub(a, b *big.Int) (*big.Int, bool) {
	x, err := toWord(a)
	if err != nil {
		return nil, false
	}
	y, err := toWord(b)
	if err != nil {
		return nil, false
	}
	diff, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, false
	}
	return diff.ToBig(), true
}

func mulDivFloor(v *big.Int, num, den uint64) (*big.Int, error) {
	x, err := toWord(v)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(x, uint256.NewInt(num))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return product.Div(product, uint256.NewInt(den)).ToBig(), nil
}

func mulDivCeil(v *big.Int, num, den uint64) (*big.Int, error) {
	x, err := toWord(v)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(x, uint256.NewInt(num))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	quotient, remainder := new(uint256.Int), new(uint256.Int)
	quotient.DivMod(product, uint256.NewInt(den), remainder)
	if !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient.ToBig(), nil
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
