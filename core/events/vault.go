package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/types"
)

const (
	TypeVaultDeposit             = "vault.deposit"
	TypeVaultWithdraw            = "vault.withdraw"
	TypeVaultTransfer            = "vault.transfer"
	TypeVaultApproval            = "vault.approval"
	TypeVaultStrategyAdded       = "vault.strategy.added"
	TypeVaultStrategyUpdated     = "vault.strategy.updated"
	TypeVaultStrategyReported    = "vault.strategy.reported"
	TypeVaultStrategyRevoked     = "vault.strategy.revoked"
	TypeVaultStrategyMigrated    = "vault.strategy.migrated"
	TypeVaultStrategyWithdrawn   = "vault.strategy.withdrawn"
	TypeVaultQueueUpdated        = "vault.queue.updated"
	TypeVaultHealthCheckUpdated  = "vault.healthcheck.updated"
	TypeVaultConfigUpdated       = "vault.config.updated"
	TypeVaultEmergencyShutdown   = "vault.shutdown"
	TypeVaultPauseChanged        = "vault.paused"
	TypeVaultHealthCheckOverride = "vault.healthcheck.override"
	TypeVaultContractAccess      = "vault.contract.access"
	TypeVaultClaim               = "vault.claim"
)

type VaultDeposit struct {
	Depositor common.Address
	Recipient common.Address
	Amount    *uint256.Int
	Shares    *uint256.Int
}

func (VaultDeposit) EventType() string { return TypeVaultDeposit }

func (e VaultDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposit,
		Attributes: map[string]string{
			"depositor": e.Depositor.Hex(),
			"recipient": e.Recipient.Hex(),
			"amount":    formatAmount(e.Amount),
			"shares":    formatAmount(e.Shares),
		},
	}
}

type VaultWithdraw struct {
	Owner     common.Address
	Recipient common.Address
	Shares    *uint256.Int
	Amount    *uint256.Int
	Loss      *uint256.Int
}

func (VaultWithdraw) EventType() string { return TypeVaultWithdraw }

func (e VaultWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdraw,
		Attributes: map[string]string{
			"owner":     e.Owner.Hex(),
			"recipient": e.Recipient.Hex(),
			"shares":    formatAmount(e.Shares),
			"amount":    formatAmount(e.Amount),
			"loss":      formatAmount(e.Loss),
		},
	}
}

// VaultTransfer covers share moves including mints (From zero) and burns
// (To zero).
type VaultTransfer struct {
	From   common.Address
	To     common.Address
	Shares *uint256.Int
}

func (VaultTransfer) EventType() string { return TypeVaultTransfer }

func (e VaultTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultTransfer,
		Attributes: map[string]string{
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"shares": formatAmount(e.Shares),
		},
	}
}

type VaultApproval struct {
	Owner   common.Address
	Spender common.Address
	Shares  *uint256.Int
}

func (VaultApproval) EventType() string { return TypeVaultApproval }

func (e VaultApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultApproval,
		Attributes: map[string]string{
			"owner":   e.Owner.Hex(),
			"spender": e.Spender.Hex(),
			"shares":  formatAmount(e.Shares),
		},
	}
}

type VaultStrategyAdded struct {
	Strategy          common.Address
	DebtRatio         uint64
	MinDebtPerHarvest *uint256.Int
	MaxDebtPerHarvest *uint256.Int
	PerformanceFeeBps uint64
}

func (VaultStrategyAdded) EventType() string { return TypeVaultStrategyAdded }

func (e VaultStrategyAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyAdded,
		Attributes: map[string]string{
			"strategy":          e.Strategy.Hex(),
			"debtRatio":         uintToString(e.DebtRatio),
			"minDebtPerHarvest": formatAmount(e.MinDebtPerHarvest),
			"maxDebtPerHarvest": formatAmount(e.MaxDebtPerHarvest),
			"performanceFeeBps": uintToString(e.PerformanceFeeBps),
		},
	}
}

// VaultStrategyUpdated reports a single field change on a strategy entry.
type VaultStrategyUpdated struct {
	Strategy common.Address
	Field    string
	Value    string
}

func (VaultStrategyUpdated) EventType() string { return TypeVaultStrategyUpdated }

func (e VaultStrategyUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyUpdated,
		Attributes: map[string]string{
			"strategy": e.Strategy.Hex(),
			"field":    e.Field,
			"value":    e.Value,
		},
	}
}

type VaultStrategyReported struct {
	Strategy     common.Address
	Gain         *uint256.Int
	Loss         *uint256.Int
	DebtPaid     *uint256.Int
	TotalGain    *uint256.Int
	TotalLoss    *uint256.Int
	TotalDebt    *uint256.Int
	DebtAdded    *uint256.Int
	DebtRatio    uint64
	TotalFees    *uint256.Int
	LockedProfit *uint256.Int
}

func (VaultStrategyReported) EventType() string { return TypeVaultStrategyReported }

func (e VaultStrategyReported) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyReported,
		Attributes: map[string]string{
			"strategy":     e.Strategy.Hex(),
			"gain":         formatAmount(e.Gain),
			"loss":         formatAmount(e.Loss),
			"debtPaid":     formatAmount(e.DebtPaid),
			"totalGain":    formatAmount(e.TotalGain),
			"totalLoss":    formatAmount(e.TotalLoss),
			"totalDebt":    formatAmount(e.TotalDebt),
			"debtAdded":    formatAmount(e.DebtAdded),
			"debtRatio":    uintToString(e.DebtRatio),
			"totalFees":    formatAmount(e.TotalFees),
			"lockedProfit": formatAmount(e.LockedProfit),
		},
	}
}

type VaultStrategyRevoked struct {
	Strategy common.Address
}

func (VaultStrategyRevoked) EventType() string { return TypeVaultStrategyRevoked }

func (e VaultStrategyRevoked) Event() *types.Event {
	return &types.Event{
		Type:       TypeVaultStrategyRevoked,
		Attributes: map[string]string{"strategy": e.Strategy.Hex()},
	}
}

type VaultStrategyMigrated struct {
	Old common.Address
	New common.Address
}

func (VaultStrategyMigrated) EventType() string { return TypeVaultStrategyMigrated }

func (e VaultStrategyMigrated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyMigrated,
		Attributes: map[string]string{
			"old": e.Old.Hex(),
			"new": e.New.Hex(),
		},
	}
}

// VaultStrategyWithdrawn is emitted for every strategy tapped while serving
// a share withdrawal.
type VaultStrategyWithdrawn struct {
	Strategy  common.Address
	TotalDebt *uint256.Int
	Withdrawn *uint256.Int
	Loss      *uint256.Int
}

func (VaultStrategyWithdrawn) EventType() string { return TypeVaultStrategyWithdrawn }

func (e VaultStrategyWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyWithdrawn,
		Attributes: map[string]string{
			"strategy":  e.Strategy.Hex(),
			"totalDebt": formatAmount(e.TotalDebt),
			"withdrawn": formatAmount(e.Withdrawn),
			"loss":      formatAmount(e.Loss),
		},
	}
}

type VaultQueueUpdated struct {
	Queue []common.Address
}

func (VaultQueueUpdated) EventType() string { return TypeVaultQueueUpdated }

func (e VaultQueueUpdated) Event() *types.Event {
	attrs := map[string]string{"length": strconv.Itoa(len(e.Queue))}
	for i, addr := range e.Queue {
		attrs["queue."+strconv.Itoa(i)] = addr.Hex()
	}
	return &types.Event{Type: TypeVaultQueueUpdated, Attributes: attrs}
}

type VaultHealthCheckUpdated struct {
	Strategy       common.Address
	Enforced       bool
	ProfitLimitBps uint64
	LossLimitBps   uint64
	Custom         bool
}

func (VaultHealthCheckUpdated) EventType() string { return TypeVaultHealthCheckUpdated }

func (e VaultHealthCheckUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultHealthCheckUpdated,
		Attributes: map[string]string{
			"strategy":       e.Strategy.Hex(),
			"enforced":       strconv.FormatBool(e.Enforced),
			"profitLimitBps": uintToString(e.ProfitLimitBps),
			"lossLimitBps":   uintToString(e.LossLimitBps),
			"custom":         strconv.FormatBool(e.Custom),
		},
	}
}

type VaultHealthCheckOverride struct {
	Strategy common.Address
	Caller   common.Address
}

func (VaultHealthCheckOverride) EventType() string { return TypeVaultHealthCheckOverride }

func (e VaultHealthCheckOverride) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultHealthCheckOverride,
		Attributes: map[string]string{
			"strategy": e.Strategy.Hex(),
			"caller":   e.Caller.Hex(),
		},
	}
}

// VaultConfigUpdated reports a change to a vault-level parameter.
type VaultConfigUpdated struct {
	Field string
	Value string
}

func (VaultConfigUpdated) EventType() string { return TypeVaultConfigUpdated }

func (e VaultConfigUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultConfigUpdated,
		Attributes: map[string]string{
			"field": e.Field,
			"value": e.Value,
		},
	}
}

type VaultEmergencyShutdown struct {
	Active bool
	Caller common.Address
}

func (VaultEmergencyShutdown) EventType() string { return TypeVaultEmergencyShutdown }

func (e VaultEmergencyShutdown) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultEmergencyShutdown,
		Attributes: map[string]string{
			"active": strconv.FormatBool(e.Active),
			"caller": e.Caller.Hex(),
		},
	}
}

type VaultPauseChanged struct {
	Paused bool
	Caller common.Address
}

func (VaultPauseChanged) EventType() string { return TypeVaultPauseChanged }

func (e VaultPauseChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultPauseChanged,
		Attributes: map[string]string{
			"paused": strconv.FormatBool(e.Paused),
			"caller": e.Caller.Hex(),
		},
	}
}

// VaultContractAccess reports a contract being approved or revoked.
type VaultContractAccess struct {
	Contract common.Address
	Approved bool
}

func (VaultContractAccess) EventType() string { return TypeVaultContractAccess }

func (e VaultContractAccess) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultContractAccess,
		Attributes: map[string]string{
			"contract": e.Contract.Hex(),
			"approved": strconv.FormatBool(e.Approved),
		},
	}
}

type VaultClaim struct {
	Holder common.Address
	Amount *uint256.Int
}

func (VaultClaim) EventType() string { return TypeVaultClaim }

func (e VaultClaim) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultClaim,
		Attributes: map[string]string{
			"holder": e.Holder.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
