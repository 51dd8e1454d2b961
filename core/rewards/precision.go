package rewards

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxPrecisionDigits bounds the number of fractional digits folded into a
// scaled balance. 10^38 still leaves head room inside 256 bits for the
// intermediate products.
const MaxPrecisionDigits = 38

var maxUint64Big = new(big.Int).SetUint64(math.MaxUint64)

// Precision converts between scaled integer balances and exact rationals used
// for proportional splitting. All conversions are pure; truncation always
// rounds toward zero so repeated conversions can only lose value.
type Precision struct {
	digits uint8
	scale  *big.Int
}

// NewPrecision builds a converter for the given number of fractional digits.
func NewPrecision(digits uint8) (Precision, error) {
	if digits > MaxPrecisionDigits {
		return Precision{}, fmt.Errorf("%w: precision %d exceeds %d digits", ErrInvalidConfig, digits, MaxPrecisionDigits)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	return Precision{digits: digits, scale: scale}, nil
}

// Digits returns the configured number of fractional digits.
func (p Precision) Digits() uint8 { return p.digits }

// Scale returns 10^digits.
func (p Precision) Scale() *big.Int {
	if p.scale == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(p.scale)
}

// Truncate drops the fractional digits of a scaled amount.
func (p Precision) Truncate(amount *uint256.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(amount.ToBig(), p.Scale())
}

// ToRatio truncates the fractional digits first and then treats the whole part
// as an exact rational. Stakes enter ShareOf this way; the double truncation is
// part of the payout contract.
func (p Precision) ToRatio(amount *uint256.Int) *big.Rat {
	return new(big.Rat).SetInt(p.Truncate(amount))
}

// FromScaled converts a scaled amount into a rational without truncation.
func (p Precision) FromScaled(amount *uint256.Int) *big.Rat {
	if amount == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(amount.ToBig(), p.Scale())
}

// ShareOf returns (truncate(amount) / truncate(total)) * reward. A total that
// truncates to zero is an error rather than a silent zero share.
func (p Precision) ShareOf(amount, total *uint256.Int, reward *big.Rat) (*big.Rat, error) {
	// Totals were historically narrowed to 64 bits after truncation.
	denominator := new(big.Int).And(p.Truncate(total), maxUint64Big)
	if denominator.Sign() == 0 {
		return nil, ErrZeroTotalStake
	}
	share := p.ToRatio(amount)
	share.Quo(share, new(big.Rat).SetInt(denominator))
	if reward == nil {
		return share.SetInt64(0), nil
	}
	return share.Mul(share, reward), nil
}

// FromRatio multiplies by 10^digits and truncates toward zero. It never rounds
// up.
func (p Precision) FromRatio(value *big.Rat) (*uint256.Int, error) {
	if value == nil || value.Sign() == 0 {
		return new(uint256.Int), nil
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("rewards: negative ratio %s", value.RatString())
	}
	scaled := new(big.Int).Mul(value.Num(), p.Scale())
	scaled.Quo(scaled, value.Denom())
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, fmt.Errorf("rewards: ratio %s overflows balance", value.RatString())
	}
	return out, nil
}
