package vault

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

func (e *Engine) governVault(caller common.Address, action Action, fn func(v *Vault) (string, string, error)) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, action); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		field, value, err := fn(v)
		if err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultConfigUpdated{Field: field, Value: value})
		return nil
	})
}

// SetDepositLimit caps the total assets deposits may bring the vault to.
func (e *Engine) SetDepositLimit(caller common.Address, limit *uint256.Int) error {
	return e.governVault(caller, ActionSetDepositLimit, func(v *Vault) (string, string, error) {
		v.DepositLimit = clone(limit)
		return "depositLimit", v.DepositLimit.Dec(), nil
	})
}

// SetPerformanceFee sets the vault's cut of reported gains.
func (e *Engine) SetPerformanceFee(caller common.Address, feeBps uint64) error {
	return e.governVault(caller, ActionSetFees, func(v *Vault) (string, string, error) {
		if feeBps > MaxPerformanceFeeBps {
			return "", "", ErrFeeTooHigh
		}
		v.PerformanceFeeBps = feeBps
		return "performanceFeeBps", strconv.FormatUint(feeBps, 10), nil
	})
}

// SetManagementFee sets the yearly fee charged on strategy debt.
func (e *Engine) SetManagementFee(caller common.Address, feeBps uint64) error {
	return e.governVault(caller, ActionSetFees, func(v *Vault) (string, string, error) {
		if feeBps > MaxBps {
			return "", "", ErrFeeTooHigh
		}
		v.ManagementFeeBps = feeBps
		return "managementFeeBps", strconv.FormatUint(feeBps, 10), nil
	})
}

// SetLockedProfitDegradation changes how fast locked profit is released.
// Profit already locked keeps degrading from the last report at the new rate.
func (e *Engine) SetLockedProfitDegradation(caller common.Address, degradation *uint256.Int) error {
	return e.governVault(caller, ActionSetDegradation, func(v *Vault) (string, string, error) {
		degradation := orZero(degradation)
		if degradation.Gt(DegradationCoefficient) {
			return "", "", ErrDegradationTooHigh
		}
		v.LockedProfitDegradation = clone(degradation)
		return "lockedProfitDegradation", degradation.Dec(), nil
	})
}

// SetRewards changes where the vault's fee shares are sent.
func (e *Engine) SetRewards(caller, rewards common.Address) error {
	return e.governVault(caller, ActionSetRewards, func(v *Vault) (string, string, error) {
		if err := e.validRecipient(rewards); err != nil {
			return "", "", err
		}
		v.Rewards = rewards
		return "rewards", rewards.Hex(), nil
	})
}

// SetDefaultHealthCheck changes the health check given to strategies added
// from now on.
func (e *Engine) SetDefaultHealthCheck(caller common.Address, hc HealthCheck) error {
	return e.governVault(caller, ActionManageHealthCheck, func(v *Vault) (string, string, error) {
		if err := validateHealthCheck(hc); err != nil {
			return "", "", err
		}
		v.DefaultHealthCheck = hc
		return "defaultHealthCheck", formatHealth(hc), nil
	})
}

// SetEmergencyShutdown toggles shutdown. Under shutdown no deposits are
// taken, no credit is extended and every strategy is asked to return its full
// debt. Lifting it takes governance.
func (e *Engine) SetEmergencyShutdown(caller common.Address, active bool) error {
	action := ActionActivateShutdown
	if !active {
		action = ActionDeactivateShutdown
	}
	return e.atomic(func() error {
		if err := e.authorize(caller, action); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		v.EmergencyShutdown = active
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultEmergencyShutdown{Active: active, Caller: caller})
		return nil
	})
}

// Pause blocks deposits, withdrawals, share transfers and approvals.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, ActionPause, true)
}

// Unpause lifts a pause.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, ActionUnpause, false)
}

func (e *Engine) setPaused(caller common.Address, action Action, paused bool) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, action); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		v.Paused = paused
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultPauseChanged{Paused: paused, Caller: caller})
		return nil
	})
}

// ApproveContractAccess lets a contract caller deposit and withdraw. The
// block lock still applies to it.
func (e *Engine) ApproveContractAccess(caller, contract common.Address) error {
	return e.setContractAccess(caller, contract, true)
}

// RevokeContractAccess withdraws a contract's approval.
func (e *Engine) RevokeContractAccess(caller, contract common.Address) error {
	return e.setContractAccess(caller, contract, false)
}

func (e *Engine) setContractAccess(caller, contract common.Address, approved bool) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionContractAccess); err != nil {
			return err
		}
		if contract == (common.Address{}) {
			return ErrInvalidRecipient
		}
		if _, err := e.loadVault(); err != nil {
			return err
		}
		if err := e.state.SetContractApproved(contract, approved); err != nil {
			return err
		}
		e.emit(events.VaultContractAccess{Contract: contract, Approved: approved})
		return nil
	})
}

// Approved reports whether governance approved contract.
func (e *Engine) Approved(contract common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.ContractApproved(contract)
}
