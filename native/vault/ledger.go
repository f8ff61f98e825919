package vault

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

// StrategyParams are the allocation parameters of a strategy.
type StrategyParams struct {
	DebtRatio         uint64
	MinDebtPerHarvest *uint256.Int
	MaxDebtPerHarvest *uint256.Int
	PerformanceFeeBps uint64
}

func (e *Engine) checkCompatible(v *Vault, s Strategy) error {
	if s == nil || s.Address() == (common.Address{}) || s.Address() == e.vaultAddress {
		return ErrInvalidRecipient
	}
	if s.Vault() != e.vaultAddress || s.Want() != v.Asset {
		return ErrStrategyMismatch
	}
	return nil
}

// AddStrategy registers s with the given parameters and appends it to the
// withdrawal queue.
func (e *Engine) AddStrategy(caller common.Address, s Strategy, params StrategyParams) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionAddStrategy); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if v.EmergencyShutdown {
			return ErrEmergencyShutdown
		}
		if err := e.checkCompatible(v, s); err != nil {
			return err
		}
		addr := s.Address()
		entry, err := e.loadEntry(addr)
		if err != nil {
			return err
		}
		if entry.Status != StatusUnregistered {
			return ErrStrategyExists
		}
		if len(v.WithdrawalQueue) >= MaxStrategies {
			return ErrQueueFull
		}
		if params.DebtRatio > MaxBps || v.DebtRatio > MaxBps-params.DebtRatio {
			return ErrDebtRatioOverflow
		}
		minDebt, maxDebt := orZero(params.MinDebtPerHarvest), orZero(params.MaxDebtPerHarvest)
		if minDebt.Gt(maxDebt) {
			return ErrDebtBounds
		}
		if params.PerformanceFeeBps > MaxPerformanceFeeBps {
			return ErrFeeTooHigh
		}
		now := e.now()
		entry = &StrategyEntry{
			Address:           addr,
			Status:            StatusActive,
			PerformanceFeeBps: params.PerformanceFeeBps,
			Activation:        now,
			DebtRatio:         params.DebtRatio,
			MinDebtPerHarvest: clone(minDebt),
			MaxDebtPerHarvest: clone(maxDebt),
			LastReport:        now,
			HealthCheck:       v.DefaultHealthCheck,
		}
		entry.ensureDefaults()
		v.DebtRatio += params.DebtRatio
		v.WithdrawalQueue = append(v.WithdrawalQueue, addr)
		v.Strategies = append(v.Strategies, addr)
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.strategies[addr] = s
		e.emit(events.VaultStrategyAdded{
			Strategy:          addr,
			DebtRatio:         params.DebtRatio,
			MinDebtPerHarvest: clone(minDebt),
			MaxDebtPerHarvest: clone(maxDebt),
			PerformanceFeeBps: params.PerformanceFeeBps,
		})
		e.emit(events.VaultQueueUpdated{Queue: append([]common.Address(nil), v.WithdrawalQueue...)})
		return nil
	})
}

// updateActive loads an active entry, applies fn and persists both records.
func (e *Engine) updateActive(caller, strategy common.Address, action Action, fn func(v *Vault, entry *StrategyEntry) (string, string, error)) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, action); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		entry, err := e.loadEntry(strategy)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusActive:
		case StatusUnregistered:
			return ErrStrategyNotFound
		default:
			return ErrStrategyInactive
		}
		field, value, err := fn(v, entry)
		if err != nil {
			return err
		}
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultStrategyUpdated{Strategy: strategy, Field: field, Value: value})
		return nil
	})
}

// UpdateStrategyDebtRatio changes the share of total assets the strategy may
// borrow.
func (e *Engine) UpdateStrategyDebtRatio(caller, strategy common.Address, ratio uint64) error {
	return e.updateActive(caller, strategy, ActionUpdateStrategy, func(v *Vault, entry *StrategyEntry) (string, string, error) {
		if ratio > MaxBps || entry.DebtRatio > v.DebtRatio {
			return "", "", ErrDebtRatioOverflow
		}
		next := v.DebtRatio - entry.DebtRatio
		if next > MaxBps-ratio {
			return "", "", ErrDebtRatioOverflow
		}
		next += ratio
		v.DebtRatio = next
		entry.DebtRatio = ratio
		return "debtRatio", strconv.FormatUint(ratio, 10), nil
	})
}

func (e *Engine) UpdateStrategyMinDebtPerHarvest(caller, strategy common.Address, amount *uint256.Int) error {
	return e.updateActive(caller, strategy, ActionUpdateStrategy, func(_ *Vault, entry *StrategyEntry) (string, string, error) {
		amount := orZero(amount)
		if amount.Gt(entry.MaxDebtPerHarvest) {
			return "", "", ErrDebtBounds
		}
		entry.MinDebtPerHarvest = clone(amount)
		return "minDebtPerHarvest", amount.Dec(), nil
	})
}

func (e *Engine) UpdateStrategyMaxDebtPerHarvest(caller, strategy common.Address, amount *uint256.Int) error {
	return e.updateActive(caller, strategy, ActionUpdateStrategy, func(_ *Vault, entry *StrategyEntry) (string, string, error) {
		amount := orZero(amount)
		if entry.MinDebtPerHarvest.Gt(amount) {
			return "", "", ErrDebtBounds
		}
		entry.MaxDebtPerHarvest = clone(amount)
		return "maxDebtPerHarvest", amount.Dec(), nil
	})
}

// UpdateStrategyPerformanceFee sets the strategist's cut of future gains.
func (e *Engine) UpdateStrategyPerformanceFee(caller, strategy common.Address, feeBps uint64) error {
	return e.updateActive(caller, strategy, ActionUpdateStrategyFee, func(_ *Vault, entry *StrategyEntry) (string, string, error) {
		if feeBps > MaxPerformanceFeeBps {
			return "", "", ErrFeeTooHigh
		}
		entry.PerformanceFeeBps = feeBps
		return "performanceFeeBps", strconv.FormatUint(feeBps, 10), nil
	})
}

// RevokeStrategy zeroes the strategy's debt ratio so its next report returns
// everything. A strategy may revoke itself.
func (e *Engine) RevokeStrategy(caller, strategy common.Address) error {
	return e.atomic(func() error {
		if caller != strategy {
			if err := e.authorize(caller, ActionRevokeStrategy); err != nil {
				return err
			}
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		entry, err := e.loadEntry(strategy)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusActive:
		case StatusUnregistered:
			return ErrStrategyNotFound
		default:
			return ErrStrategyInactive
		}
		v.DebtRatio -= entry.DebtRatio
		entry.DebtRatio = 0
		entry.Status = StatusRevoked
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultStrategyRevoked{Strategy: strategy})
		return nil
	})
}

// MigrateStrategy hands old's position over to next. The new entry inherits
// ratio, limits, fee and debt but starts with a clean gain/loss history.
func (e *Engine) MigrateStrategy(caller, old common.Address, next Strategy) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionMigrateStrategy); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.checkCompatible(v, next); err != nil {
			return err
		}
		newAddr := next.Address()
		if newAddr == old {
			return ErrSameStrategy
		}
		prev, err := e.loadEntry(old)
		if err != nil {
			return err
		}
		switch prev.Status {
		case StatusActive:
		case StatusUnregistered:
			return ErrStrategyNotFound
		default:
			return ErrStrategyInactive
		}
		existing, err := e.loadEntry(newAddr)
		if err != nil {
			return err
		}
		if existing.Status != StatusUnregistered {
			return ErrStrategyExists
		}
		oldStrategy, err := e.collaborator(old)
		if err != nil {
			return err
		}
		successor := &StrategyEntry{
			Address:           newAddr,
			Status:            StatusActive,
			PerformanceFeeBps: prev.PerformanceFeeBps,
			Activation:        prev.LastReport,
			DebtRatio:         prev.DebtRatio,
			MinDebtPerHarvest: clone(prev.MinDebtPerHarvest),
			MaxDebtPerHarvest: clone(prev.MaxDebtPerHarvest),
			LastReport:        prev.LastReport,
			TotalDebt:         clone(prev.TotalDebt),
			HealthCheck:       prev.HealthCheck,
		}
		successor.ensureDefaults()
		prev.Status = StatusMigrated
		prev.DebtRatio = 0
		prev.TotalDebt = zero()
		prev.HealthCheckOverride = false
		if idx := v.queueIndex(old); idx >= 0 {
			v.WithdrawalQueue[idx] = newAddr
		}
		v.Strategies = append(v.Strategies, newAddr)
		if err := e.state.PutStrategyEntry(prev); err != nil {
			return err
		}
		if err := e.state.PutStrategyEntry(successor); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		if err := oldStrategy.Migrate(newAddr); err != nil {
			return fmt.Errorf("vault engine: strategy %s migrate: %w", old.Hex(), err)
		}
		e.strategies[newAddr] = next
		delete(e.strategies, old)
		if check, ok := e.customChecks[old]; ok {
			e.customChecks[newAddr] = check
			delete(e.customChecks, old)
		}
		e.emit(events.VaultStrategyMigrated{Old: old, New: newAddr})
		e.emit(events.VaultQueueUpdated{Queue: append([]common.Address(nil), v.WithdrawalQueue...)})
		return nil
	})
}

// AddStrategyToQueue appends a registered strategy to the withdrawal queue.
func (e *Engine) AddStrategyToQueue(caller, strategy common.Address) error {
	return e.manageQueue(caller, func(v *Vault) error {
		if _, err := e.registeredEntry(strategy); err != nil {
			return err
		}
		if v.queueIndex(strategy) >= 0 {
			return ErrQueueDuplicate
		}
		if len(v.WithdrawalQueue) >= MaxStrategies {
			return ErrQueueFull
		}
		v.WithdrawalQueue = append(v.WithdrawalQueue, strategy)
		return nil
	})
}

// RemoveStrategyFromQueue drops strategy from the queue keeping the order of
// the rest.
func (e *Engine) RemoveStrategyFromQueue(caller, strategy common.Address) error {
	return e.manageQueue(caller, func(v *Vault) error {
		idx := v.queueIndex(strategy)
		if idx < 0 {
			return ErrQueueMissing
		}
		v.WithdrawalQueue = append(v.WithdrawalQueue[:idx], v.WithdrawalQueue[idx+1:]...)
		return nil
	})
}

// SetWithdrawalQueue reorders the queue. A zero address ends the list. The
// new order must be a permutation of the current queue and must contain every
// active strategy; use AddStrategyToQueue and RemoveStrategyFromQueue to
// change membership.
func (e *Engine) SetWithdrawalQueue(caller common.Address, queue []common.Address) error {
	return e.manageQueue(caller, func(v *Vault) error {
		next := make([]common.Address, 0, len(queue))
		seen := make(map[common.Address]struct{}, len(queue))
		for _, addr := range queue {
			if addr == (common.Address{}) {
				break
			}
			if _, dup := seen[addr]; dup {
				return ErrQueueDuplicate
			}
			if _, err := e.registeredEntry(addr); err != nil {
				return err
			}
			if v.queueIndex(addr) < 0 {
				return ErrQueueMissing
			}
			seen[addr] = struct{}{}
			next = append(next, addr)
		}
		if len(next) > MaxStrategies {
			return ErrQueueFull
		}
		for _, queued := range v.WithdrawalQueue {
			if _, ok := seen[queued]; !ok {
				return ErrQueueIncomplete
			}
		}
		for _, addr := range v.Strategies {
			if _, ok := seen[addr]; ok {
				continue
			}
			entry, err := e.loadEntry(addr)
			if err != nil {
				return err
			}
			if entry.Status == StatusActive {
				return ErrQueueIncomplete
			}
		}
		v.WithdrawalQueue = next
		return nil
	})
}

func (e *Engine) manageQueue(caller common.Address, fn func(v *Vault) error) error {
	return e.atomic(func() error {
		if err := e.authorize(caller, ActionManageQueue); err != nil {
			return err
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultQueueUpdated{Queue: append([]common.Address(nil), v.WithdrawalQueue...)})
		return nil
	})
}

// Strategy returns a copy of the ledger entry for addr.
func (e *Engine) Strategy(addr common.Address) (*StrategyEntry, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	entry, err := e.loadEntry(addr)
	if err != nil {
		return nil, err
	}
	if entry.Status == StatusUnregistered {
		return nil, ErrStrategyNotFound
	}
	return entry.Clone(), nil
}

// WithdrawalQueue returns the current queue order.
func (e *Engine) WithdrawalQueue() ([]common.Address, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return append([]common.Address(nil), v.WithdrawalQueue...), nil
}
