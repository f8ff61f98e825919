package vault

import "github.com/holiman/uint256"

const (
	// MaxBps is the basis point denominator used for every ratio and fee.
	MaxBps = 10_000
	// MaxStrategies bounds the withdrawal queue.
	MaxStrategies = 20
	// SecsPerYear is the Gregorian year length used to prorate management fees.
	SecsPerYear = 31_556_952
	// MaxPerformanceFeeBps caps both the vault and strategist performance fee.
	MaxPerformanceFeeBps = MaxBps / 2
)

var (
	maxBps = uint256.NewInt(MaxBps)
	// DegradationCoefficient is the 1e18 fixed point scale of the locked
	// profit degradation rate.
	DegradationCoefficient = uint256.NewInt(1_000_000_000_000_000_000)
	// DefaultLockedProfitDegradation releases locked profit over ~6 hours.
	DefaultLockedProfitDegradation = new(uint256.Int).Div(
		new(uint256.Int).Mul(DegradationCoefficient, uint256.NewInt(46)),
		uint256.NewInt(1_000_000),
	)
	// MaxUint256 is used as the "unlimited"/"everything" sentinel.
	MaxUint256 = new(uint256.Int).SetAllOne()
)

func zero() *uint256.Int { return new(uint256.Int) }

func clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return clone(a)
	}
	return clone(b)
}

// subOrZero returns a-b, clamped at zero.
func subOrZero(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return zero()
	}
	return new(uint256.Int).Sub(a, b)
}

// checkedAdd returns a+b or ErrArithmeticOverflow.
func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// checkedSub returns a-b or ErrArithmeticUnderflow.
func checkedSub(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrArithmeticUnderflow
	}
	return out, nil
}

// mulDiv computes a*b/d rounding down. The intermediate product is kept at
// 512 bits so the only failure is a result that does not fit in 256 bits or a
// zero divisor.
func mulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// bpsOf returns amount*bps/MaxBps rounding down.
func bpsOf(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	return mulDiv(amount, uint256.NewInt(bps), maxBps)
}

func unitOf(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
