package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

// creditAvailable is the additional debt entry may take on right now.
func (e *Engine) creditAvailable(v *Vault, entry *StrategyEntry) (*uint256.Int, error) {
	if v.EmergencyShutdown {
		return zero(), nil
	}
	total, err := e.totalAssets(v)
	if err != nil {
		return nil, err
	}
	vaultLimit, err := bpsOf(total, v.DebtRatio)
	if err != nil {
		return nil, err
	}
	strategyLimit, err := bpsOf(total, entry.DebtRatio)
	if err != nil {
		return nil, err
	}
	if !strategyLimit.Gt(entry.TotalDebt) || !vaultLimit.Gt(v.TotalDebt) {
		return zero(), nil
	}
	available := new(uint256.Int).Sub(strategyLimit, entry.TotalDebt)
	available = minInt(available, new(uint256.Int).Sub(vaultLimit, v.TotalDebt))
	idle, err := e.vaultBalance()
	if err != nil {
		return nil, err
	}
	available = minInt(available, idle)
	if available.Lt(entry.MinDebtPerHarvest) {
		return zero(), nil
	}
	return minInt(available, entry.MaxDebtPerHarvest), nil
}

// debtOutstanding is how much entry holds above its debt limit. The whole
// debt is due under shutdown or once no strategy has a ratio.
func (e *Engine) debtOutstanding(v *Vault, entry *StrategyEntry) (*uint256.Int, error) {
	if v.DebtRatio == 0 || v.EmergencyShutdown {
		return clone(entry.TotalDebt), nil
	}
	total, err := e.totalAssets(v)
	if err != nil {
		return nil, err
	}
	limit, err := bpsOf(total, entry.DebtRatio)
	if err != nil {
		return nil, err
	}
	return subOrZero(entry.TotalDebt, limit), nil
}

// reportLoss books loss against entry and shrinks its debt ratio in
// proportion to the share of total debt that was lost.
func reportLoss(v *Vault, entry *StrategyEntry, loss *uint256.Int) error {
	if loss.Gt(entry.TotalDebt) {
		return ErrLossExceedsDebt
	}
	if v.DebtRatio != 0 {
		change, err := mulDiv(loss, uint256.NewInt(v.DebtRatio), v.TotalDebt)
		if err != nil {
			return err
		}
		ratioChange := entry.DebtRatio
		if change.IsUint64() && change.Uint64() < ratioChange {
			ratioChange = change.Uint64()
		}
		entry.DebtRatio -= ratioChange
		v.DebtRatio -= ratioChange
	}
	totalLoss, err := checkedAdd(entry.TotalLoss, loss)
	if err != nil {
		return err
	}
	vaultDebt, err := checkedSub(v.TotalDebt, loss)
	if err != nil {
		return err
	}
	entry.TotalLoss = totalLoss
	entry.TotalDebt = new(uint256.Int).Sub(entry.TotalDebt, loss)
	v.TotalDebt = vaultDebt
	return nil
}

// CreditAvailable returns how much more the strategy may borrow at its next
// report.
func (e *Engine) CreditAvailable(strategy common.Address) (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	entry, err := e.loadEntry(strategy)
	if err != nil {
		return nil, err
	}
	if !entry.Status.Registered() {
		return zero(), nil
	}
	return e.creditAvailable(v, entry)
}

// DebtOutstanding returns how much the strategy should hand back.
func (e *Engine) DebtOutstanding(strategy common.Address) (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	entry, err := e.loadEntry(strategy)
	if err != nil {
		return nil, err
	}
	return e.debtOutstanding(v, entry)
}

// ExpectedReturn extrapolates the strategy's historic gain rate over the time
// since its last report.
func (e *Engine) ExpectedReturn(strategy common.Address) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	entry, err := e.loadEntry(strategy)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if entry.Status != StatusActive || now <= entry.LastReport || entry.LastReport <= entry.Activation {
		return zero(), nil
	}
	return mulDiv(entry.TotalGain, uint256.NewInt(now-entry.LastReport), uint256.NewInt(entry.LastReport-entry.Activation))
}

// Report is called by a strategy to settle its position: it declares gain and
// loss since its last report and offers debtPayment towards its outstanding
// debt. Fees are charged, credit extended or debt pulled back, and the gain
// is locked to be released into the share price over time.
func (e *Engine) Report(caller common.Address, gain, loss, debtPayment *uint256.Int) (ReportOutcome, error) {
	var outcome ReportOutcome
	err := e.atomic(func() error {
		gain, loss, debtPayment := orZero(gain), orZero(loss), orZero(debtPayment)
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		entry, err := e.registeredEntry(caller)
		if err != nil {
			return err
		}
		strategy, err := e.collaborator(caller)
		if err != nil {
			return err
		}
		offered, err := checkedAdd(gain, debtPayment)
		if err != nil {
			return err
		}
		held, err := e.balanceOf(caller)
		if err != nil {
			return err
		}
		if held.Lt(offered) {
			return ErrInsufficientBalance
		}
		outstanding, err := e.debtOutstanding(v, entry)
		if err != nil {
			return err
		}
		if err := e.checkHealth(caller, entry, gain, loss, debtPayment, outstanding); err != nil {
			return err
		}
		now := e.now()
		if !loss.IsZero() {
			if err := reportLoss(v, entry, loss); err != nil {
				return err
			}
		}
		fees, err := e.assessFees(v, entry, gain, now)
		if err != nil {
			return err
		}
		if entry.TotalGain, err = checkedAdd(entry.TotalGain, gain); err != nil {
			return err
		}
		credit, err := e.creditAvailable(v, entry)
		if err != nil {
			return err
		}
		debt, err := e.debtOutstanding(v, entry)
		if err != nil {
			return err
		}
		paid := minInt(debtPayment, debt)
		if !paid.IsZero() {
			if entry.TotalDebt, err = checkedSub(entry.TotalDebt, paid); err != nil {
				return err
			}
			if v.TotalDebt, err = checkedSub(v.TotalDebt, paid); err != nil {
				return err
			}
			debt.Sub(debt, paid)
		}
		if !credit.IsZero() {
			if entry.TotalDebt, err = checkedAdd(entry.TotalDebt, credit); err != nil {
				return err
			}
			if v.TotalDebt, err = checkedAdd(v.TotalDebt, credit); err != nil {
				return err
			}
		}
		totalAvail := new(uint256.Int).Add(gain, paid)
		switch {
		case totalAvail.Lt(credit):
			if err := e.safeTransfer(caller, new(uint256.Int).Sub(credit, totalAvail)); err != nil {
				return err
			}
		case totalAvail.Gt(credit):
			if err := e.safeTransferFrom(caller, new(uint256.Int).Sub(totalAvail, credit)); err != nil {
				return err
			}
		}
		locked, err := checkedAdd(v.lockedProfit(now), gain)
		if err != nil {
			return err
		}
		locked = subOrZero(subOrZero(locked, fees), loss)
		v.LockedProfit = locked
		entry.LastReport = now
		v.LastReport = now

		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		if entry.DebtRatio == 0 || v.EmergencyShutdown {
			estimated, err := strategy.EstimatedTotalAssets()
			if err != nil {
				return fmt.Errorf("vault engine: strategy %s estimate: %w", caller.Hex(), err)
			}
			debt = clone(orZero(estimated))
		}
		e.emit(events.VaultStrategyReported{
			Strategy:     caller,
			Gain:         clone(gain),
			Loss:         clone(loss),
			DebtPaid:     clone(paid),
			TotalGain:    clone(entry.TotalGain),
			TotalLoss:    clone(entry.TotalLoss),
			TotalDebt:    clone(entry.TotalDebt),
			DebtAdded:    clone(credit),
			DebtRatio:    entry.DebtRatio,
			TotalFees:    clone(fees),
			LockedProfit: clone(locked),
		})
		outcome = ReportOutcome{Credit: credit, DebtPaid: paid, DebtOutstanding: debt, TotalFees: fees}
		return nil
	})
	if err != nil {
		return ReportOutcome{}, err
	}
	return outcome, nil
}

// assessFees mints the report's fees as vault shares and distributes them
// between the strategist and the rewards address.
func (e *Engine) assessFees(v *Vault, entry *StrategyEntry, gain *uint256.Int, now uint64) (*uint256.Int, error) {
	var duration uint64
	if now > entry.LastReport {
		duration = now - entry.LastReport
	}
	breakdown, err := ComputeFees(FeeInput{
		Gain:              gain,
		TotalDebt:         entry.TotalDebt,
		Duration:          duration,
		AtActivation:      entry.Activation == now,
		ManagementFeeBps:  v.ManagementFeeBps,
		PerformanceFeeBps: v.PerformanceFeeBps,
		StrategistFeeBps:  entry.PerformanceFeeBps,
	})
	if err != nil {
		return nil, err
	}
	if breakdown.Total.IsZero() {
		return zero(), nil
	}
	reward, err := e.sharesToIssue(v, breakdown.Total, now)
	if err != nil {
		return nil, err
	}
	// A fee too small to mint a single share is waived.
	if reward.IsZero() {
		return zero(), nil
	}
	if err := e.mint(v, e.vaultAddress, reward); err != nil {
		return nil, err
	}
	strategistShares, rest, err := SplitReward(reward, breakdown.Strategist, breakdown.Total)
	if err != nil {
		return nil, err
	}
	if !strategistShares.IsZero() {
		if err := e.moveShares(v, e.vaultAddress, entry.Address, strategistShares); err != nil {
			return nil, err
		}
	}
	if !rest.IsZero() {
		if err := e.moveShares(v, e.vaultAddress, v.Rewards, rest); err != nil {
			return nil, err
		}
	}
	return breakdown.Total, nil
}
