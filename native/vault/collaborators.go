package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Asset is the fungible token pooled by the vault. Every method names the
// acting principal explicitly. Implementations may be non-standard and return
// nil without moving funds, so the engine verifies every movement against the
// recipient's balance.
type Asset interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(owner common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
	// TransferFrom moves funds from `from` to `to` spending the allowance
	// `from` granted to `spender`.
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// Strategy is the yield source the vault lends to. Implementations live
// outside the engine and are attached by address.
type Strategy interface {
	Address() common.Address
	// Want returns the asset symbol the strategy works with.
	Want() string
	// Vault returns the vault address the strategy reports to.
	Vault() common.Address
	EstimatedTotalAssets() (*uint256.Int, error)
	// Withdraw liquidates up to amount and sends it to the vault. freed is
	// what the strategy believes it sent; loss is value it realised as lost
	// while unwinding.
	Withdraw(amount *uint256.Int) (freed *uint256.Int, loss *uint256.Int, err error)
	// Migrate moves every asset the strategy holds to newStrategy.
	Migrate(newStrategy common.Address) error
}

// HealthReport is the input handed to a CustomCheck.
type HealthReport struct {
	Strategy        common.Address
	Gain            *uint256.Int
	Loss            *uint256.Int
	DebtPayment     *uint256.Int
	DebtOutstanding *uint256.Int
	TotalDebt       *uint256.Int
}

// CustomCheck replaces the default profit/loss limits of a strategy's health
// check. Returning false rejects the report.
type CustomCheck interface {
	Check(report HealthReport) (bool, error)
}

// CustomCheckFunc adapts a function to CustomCheck.
type CustomCheckFunc func(report HealthReport) (bool, error)

// Check implements CustomCheck.
func (f CustomCheckFunc) Check(report HealthReport) (bool, error) { return f(report) }

// ContractView tells contract principals apart from plain accounts.
type ContractView interface {
	IsContract(addr common.Address) bool
}

// ContractSet is a static ContractView.
type ContractSet map[common.Address]bool

// IsContract implements ContractView.
func (s ContractSet) IsContract(addr common.Address) bool { return s[addr] }
