package vault

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

const (
	// DefaultProfitLimitBps is the largest gain, relative to debt, a report
	// may declare without tripping the health check.
	DefaultProfitLimitBps = 300
	// DefaultLossLimitBps is the matching bound for losses.
	DefaultLossLimitBps = 100
)

// DefaultHealthCheck returns the enforced check with the default limits.
func DefaultHealthCheck() HealthCheck {
	return HealthCheck{
		EnforceChangeLimit: true,
		ProfitLimitBps:     DefaultProfitLimitBps,
		LossLimitBps:       DefaultLossLimitBps,
	}
}

func validateHealthCheck(hc HealthCheck) error {
	if hc.ProfitLimitBps > MaxBps || hc.LossLimitBps > MaxBps {
		return ErrInvalidHealthLimits
	}
	return nil
}

// WithinLimits applies the default profit/loss comparison against debt.
func (hc HealthCheck) WithinLimits(debt, gain, loss *uint256.Int) (bool, error) {
	profitLimit, err := bpsOf(debt, hc.ProfitLimitBps)
	if err != nil {
		return false, err
	}
	lossLimit, err := bpsOf(debt, hc.LossLimitBps)
	if err != nil {
		return false, err
	}
	return !gain.Gt(profitLimit) && !loss.Gt(lossLimit), nil
}

// checkHealth gates a report. A pending override lets exactly one report
// through and is consumed here; the caller persists the entry.
func (e *Engine) checkHealth(addr common.Address, entry *StrategyEntry, gain, loss, debtPayment, outstanding *uint256.Int) error {
	if entry.HealthCheckOverride {
		entry.HealthCheckOverride = false
		return nil
	}
	if !entry.HealthCheck.EnforceChangeLimit {
		return nil
	}
	if custom, ok := e.customChecks[addr]; ok && custom != nil {
		passed, err := custom.Check(HealthReport{
			Strategy:        addr,
			Gain:            clone(gain),
			Loss:            clone(loss),
			DebtPayment:     clone(debtPayment),
			DebtOutstanding: clone(outstanding),
			TotalDebt:       clone(entry.TotalDebt),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHealthCheckFailed, err)
		}
		if !passed {
			return ErrHealthCheckFailed
		}
		return nil
	}
	ok, err := entry.HealthCheck.WithinLimits(entry.TotalDebt, gain, loss)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHealthCheckFailed
	}
	return nil
}

// SetStrategyHealthCheck reconfigures the report gate of a registered
// strategy. Disabling EnforceChangeLimit turns the gate off.
func (e *Engine) SetStrategyHealthCheck(caller, strategy common.Address, hc HealthCheck) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionManageHealthCheck); err != nil {
			return err
		}
		if err := validateHealthCheck(hc); err != nil {
			return err
		}
		entry, err := e.registeredEntry(strategy)
		if err != nil {
			return err
		}
		entry.HealthCheck = hc
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		_, custom := e.customChecks[strategy]
		e.emit(events.VaultHealthCheckUpdated{
			Strategy:       strategy,
			Enforced:       hc.EnforceChangeLimit,
			ProfitLimitBps: hc.ProfitLimitBps,
			LossLimitBps:   hc.LossLimitBps,
			Custom:         custom,
		})
		return nil
	})
}

// SetCustomHealthCheck installs a check whose verdict replaces the default
// limits. Passing nil removes it.
func (e *Engine) SetCustomHealthCheck(caller, strategy common.Address, check CustomCheck) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionManageHealthCheck); err != nil {
			return err
		}
		entry, err := e.registeredEntry(strategy)
		if err != nil {
			return err
		}
		if check == nil {
			delete(e.customChecks, strategy)
		} else {
			e.customChecks[strategy] = check
		}
		e.emit(events.VaultHealthCheckUpdated{
			Strategy:       strategy,
			Enforced:       entry.HealthCheck.EnforceChangeLimit,
			ProfitLimitBps: entry.HealthCheck.ProfitLimitBps,
			LossLimitBps:   entry.HealthCheck.LossLimitBps,
			Custom:         check != nil,
		})
		return nil
	})
}

// OverrideHealthCheck lets the strategy's next report skip the gate.
func (e *Engine) OverrideHealthCheck(caller, strategy common.Address) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionManageHealthCheck); err != nil {
			return err
		}
		entry, err := e.registeredEntry(strategy)
		if err != nil {
			return err
		}
		entry.HealthCheckOverride = true
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		e.emit(events.VaultHealthCheckOverride{Strategy: strategy, Caller: caller})
		return nil
	})
}

func formatHealth(hc HealthCheck) string {
	return strconv.FormatBool(hc.EnforceChangeLimit) + "/" +
		strconv.FormatUint(hc.ProfitLimitBps, 10) + "/" +
		strconv.FormatUint(hc.LossLimitBps, 10)
}
