package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StrategyStatus tracks where a strategy is in its lifecycle.
type StrategyStatus uint8

const (
	StatusUnregistered StrategyStatus = iota
	StatusActive
	StatusRevoked
	StatusMigrated
)

func (s StrategyStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusMigrated:
		return "migrated"
	default:
		return "unregistered"
	}
}

// Registered reports whether the strategy still participates in the ledger:
// it may report, hold debt and sit in the withdrawal queue.
func (s StrategyStatus) Registered() bool {
	return s == StatusActive || s == StatusRevoked
}

// Vault captures the singleton accounting state of the pool. Amounts are in
// the asset's base units.
type Vault struct {
	// Asset is the symbol of the pooled asset.
	Asset string
	// Decimals mirrors the asset's decimals and sets the share unit.
	Decimals uint8
	// TotalShares is the outstanding share supply.
	TotalShares *uint256.Int
	// TotalDebt is the sum of assets lent to strategies.
	TotalDebt *uint256.Int
	// DebtRatio is the sum of all strategy debt ratios in basis points.
	DebtRatio uint64
	// DepositLimit caps total assets accepted through deposits.
	DepositLimit *uint256.Int
	// ManagementFeeBps is the yearly fee charged on strategy debt.
	ManagementFeeBps uint64
	// PerformanceFeeBps is the vault's cut of reported gains.
	PerformanceFeeBps uint64
	// LockedProfit is the profit hidden from the share price at LastReport.
	LockedProfit *uint256.Int
	// LockedProfitDegradation is the 1e18 scaled fraction released per second.
	LockedProfitDegradation *uint256.Int
	LastReport              uint64
	Activation              uint64
	// WithdrawalQueue is the ordered list of strategies tapped on withdraw.
	WithdrawalQueue []common.Address
	// Strategies lists every address that was ever registered.
	Strategies        []common.Address
	EmergencyShutdown bool
	Paused            bool
	// Rewards receives the vault's share of fees.
	Rewards common.Address
	// DefaultHealthCheck is applied to newly added strategies.
	DefaultHealthCheck HealthCheck
	// ClaimIndex is the 1e18 scaled claim token accrued per share.
	ClaimIndex *uint256.Int
	// ClaimBalance is the claim token balance already folded into ClaimIndex.
	ClaimBalance *uint256.Int
}

// HealthCheck configures the report circuit breaker of a strategy.
type HealthCheck struct {
	EnforceChangeLimit bool
	ProfitLimitBps     uint64
	LossLimitBps       uint64
}

// StrategyEntry is the ledger record kept per strategy.
type StrategyEntry struct {
	Address           common.Address
	Status            StrategyStatus
	PerformanceFeeBps uint64
	Activation        uint64
	DebtRatio         uint64
	MinDebtPerHarvest *uint256.Int
	MaxDebtPerHarvest *uint256.Int
	LastReport        uint64
	TotalDebt         *uint256.Int
	TotalGain         *uint256.Int
	TotalLoss         *uint256.Int
	HealthCheck       HealthCheck
	// HealthCheckOverride lets the next report bypass the health check once.
	HealthCheckOverride bool
}

// Checkpoint is a share balance as of the end of block Block.
type Checkpoint struct {
	Block  uint64
	Shares *uint256.Int
}

// ClaimAccount tracks a holder's share of the claim token.
type ClaimAccount struct {
	// Index is the vault ClaimIndex the holder was last settled at.
	Index *uint256.Int
	// Claimable is the settled amount not yet paid out.
	Claimable *uint256.Int
}

// ReportOutcome tells a reporting strategy how its balance with the vault
// changed.
type ReportOutcome struct {
	// Credit is the new debt sent to the strategy.
	Credit *uint256.Int
	// DebtPaid is the portion of the offered debt payment that was accepted.
	DebtPaid *uint256.Int
	// DebtOutstanding is what the strategy should return before the next
	// report. Revoked strategies and shutdown vaults ask for everything.
	DebtOutstanding *uint256.Int
	// TotalFees is the fee value minted as shares for this report.
	TotalFees *uint256.Int
}

func (v *Vault) ensureDefaults() {
	if v.TotalShares == nil {
		v.TotalShares = zero()
	}
	if v.TotalDebt == nil {
		v.TotalDebt = zero()
	}
	if v.DepositLimit == nil {
		v.DepositLimit = zero()
	}
	if v.LockedProfit == nil {
		v.LockedProfit = zero()
	}
	if v.LockedProfitDegradation == nil {
		v.LockedProfitDegradation = zero()
	}
	if v.ClaimIndex == nil {
		v.ClaimIndex = zero()
	}
	if v.ClaimBalance == nil {
		v.ClaimBalance = zero()
	}
}

func (s *StrategyEntry) ensureDefaults() {
	if s.MinDebtPerHarvest == nil {
		s.MinDebtPerHarvest = zero()
	}
	if s.MaxDebtPerHarvest == nil {
		s.MaxDebtPerHarvest = zero()
	}
	if s.TotalDebt == nil {
		s.TotalDebt = zero()
	}
	if s.TotalGain == nil {
		s.TotalGain = zero()
	}
	if s.TotalLoss == nil {
		s.TotalLoss = zero()
	}
}

// Clone returns a deep copy of the vault record.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	out := *v
	out.TotalShares = clone(v.TotalShares)
	out.TotalDebt = clone(v.TotalDebt)
	out.DepositLimit = clone(v.DepositLimit)
	out.LockedProfit = clone(v.LockedProfit)
	out.LockedProfitDegradation = clone(v.LockedProfitDegradation)
	out.ClaimIndex = clone(v.ClaimIndex)
	out.ClaimBalance = clone(v.ClaimBalance)
	out.WithdrawalQueue = append([]common.Address(nil), v.WithdrawalQueue...)
	out.Strategies = append([]common.Address(nil), v.Strategies...)
	return &out
}

// Clone returns a deep copy of the strategy entry.
func (s *StrategyEntry) Clone() *StrategyEntry {
	if s == nil {
		return nil
	}
	out := *s
	out.MinDebtPerHarvest = clone(s.MinDebtPerHarvest)
	out.MaxDebtPerHarvest = clone(s.MaxDebtPerHarvest)
	out.TotalDebt = clone(s.TotalDebt)
	out.TotalGain = clone(s.TotalGain)
	out.TotalLoss = clone(s.TotalLoss)
	return &out
}

func (v *Vault) queueIndex(addr common.Address) int {
	for i, queued := range v.WithdrawalQueue {
		if queued == addr {
			return i
		}
	}
	return -1
}
