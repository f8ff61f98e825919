package vault

import "github.com/holiman/uint256"

// FeeInput carries everything the fee model needs for a single report.
type FeeInput struct {
	Gain *uint256.Int
	// TotalDebt is the reporting strategy's debt after any loss was booked.
	TotalDebt *uint256.Int
	// Duration is the number of seconds since the strategy's last report.
	Duration uint64
	// AtActivation is set when the report lands in the strategy's
	// activation second.
	AtActivation      bool
	ManagementFeeBps  uint64
	PerformanceFeeBps uint64
	StrategistFeeBps  uint64
}

// FeeBreakdown splits the fee charged on a report. Total never exceeds the
// reported gain.
type FeeBreakdown struct {
	Management  *uint256.Int
	Strategist  *uint256.Int
	Performance *uint256.Int
	Total       *uint256.Int
}

func zeroFees() FeeBreakdown {
	return FeeBreakdown{Management: zero(), Strategist: zero(), Performance: zero(), Total: zero()}
}

// ManagementFee prorates the yearly management fee over duration seconds.
func ManagementFee(debt *uint256.Int, duration, feeBps uint64) (*uint256.Int, error) {
	if debt == nil || debt.IsZero() || duration == 0 || feeBps == 0 {
		return zero(), nil
	}
	scaled, overflow := new(uint256.Int).MulOverflow(debt, uint256.NewInt(duration))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	perBps, err := mulDiv(scaled, uint256.NewInt(feeBps), maxBps)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(perBps, uint256.NewInt(SecsPerYear)), nil
}

// StrategistFee is the strategy's cut of gain.
func StrategistFee(gain *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if gain == nil {
		return zero(), nil
	}
	return bpsOf(gain, feeBps)
}

// PerformanceFee is the vault's cut of gain.
func PerformanceFee(gain *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if gain == nil {
		return zero(), nil
	}
	return bpsOf(gain, feeBps)
}

// ComputeFees applies the fee model to a report. Nothing is charged on a zero
// gain or in the activation second.
func ComputeFees(in FeeInput) (FeeBreakdown, error) {
	if in.AtActivation || in.Gain == nil || in.Gain.IsZero() {
		return zeroFees(), nil
	}
	management, err := ManagementFee(in.TotalDebt, in.Duration, in.ManagementFeeBps)
	if err != nil {
		return FeeBreakdown{}, err
	}
	strategist, err := StrategistFee(in.Gain, in.StrategistFeeBps)
	if err != nil {
		return FeeBreakdown{}, err
	}
	performance, err := PerformanceFee(in.Gain, in.PerformanceFeeBps)
	if err != nil {
		return FeeBreakdown{}, err
	}
	total, err := checkedAdd(management, strategist)
	if err != nil {
		return FeeBreakdown{}, err
	}
	if total, err = checkedAdd(total, performance); err != nil {
		return FeeBreakdown{}, err
	}
	if total.Gt(in.Gain) {
		total = clone(in.Gain)
	}
	return FeeBreakdown{
		Management:  management,
		Strategist:  strategist,
		Performance: performance,
		Total:       total,
	}, nil
}

// SplitReward divides the fee shares minted for a report. The strategist
// receives strategistFee/totalFee of reward, the rest goes to the vault's
// rewards address.
func SplitReward(reward, strategistFee, totalFee *uint256.Int) (strategist, rest *uint256.Int, err error) {
	if reward == nil || reward.IsZero() || totalFee == nil || totalFee.IsZero() || strategistFee == nil || strategistFee.IsZero() {
		return zero(), clone(reward), nil
	}
	strategist, err = mulDiv(strategistFee, reward, totalFee)
	if err != nil {
		return nil, nil, err
	}
	if strategist.Gt(reward) {
		strategist = clone(reward)
	}
	return strategist, new(uint256.Int).Sub(reward, strategist), nil
}
