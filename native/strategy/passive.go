package strategy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/native/vault"
)

// Asset is the subset of the asset ledger the strategy moves funds with.
type Asset interface {
	Symbol() string
	BalanceOf(owner common.Address) (*uint256.Int, error)
	Transfer(from, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// Reporter is the vault side of a harvest.
type Reporter interface {
	Strategy(addr common.Address) (*vault.StrategyEntry, error)
	DebtOutstanding(addr common.Address) (*uint256.Int, error)
	Report(caller common.Address, gain, loss, debtPayment *uint256.Int) (vault.ReportOutcome, error)
}

// Passive keeps its whole position as an asset balance at its own address.
// Anything credited to that address on top of its debt is reported as gain,
// any shortfall as loss.
type Passive struct {
	addr  common.Address
	vault common.Address
	asset Asset
}

// NewPassive creates a passive strategy and approves the vault to pull its
// report payments.
func NewPassive(addr, vaultAddr common.Address, asset Asset) (*Passive, error) {
	if asset == nil {
		return nil, fmt.Errorf("strategy: asset required")
	}
	if err := asset.Approve(addr, vaultAddr, new(uint256.Int).SetAllOne()); err != nil {
		return nil, fmt.Errorf("strategy: approve vault: %w", err)
	}
	return &Passive{addr: addr, vault: vaultAddr, asset: asset}, nil
}

func (p *Passive) Address() common.Address { return p.addr }
func (p *Passive) Want() string            { return p.asset.Symbol() }
func (p *Passive) Vault() common.Address   { return p.vault }

func (p *Passive) EstimatedTotalAssets() (*uint256.Int, error) {
	return p.asset.BalanceOf(p.addr)
}

// Withdraw sends up to amount back to the vault. A passive position never
// realises a loss while unwinding.
func (p *Passive) Withdraw(amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	held, err := p.asset.BalanceOf(p.addr)
	if err != nil {
		return nil, nil, err
	}
	freed := new(uint256.Int).Set(amount)
	if held.Lt(freed) {
		freed.Set(held)
	}
	if err := p.asset.Transfer(p.addr, p.vault, freed); err != nil {
		return nil, nil, err
	}
	return freed, new(uint256.Int), nil
}

func (p *Passive) Migrate(next common.Address) error {
	held, err := p.asset.BalanceOf(p.addr)
	if err != nil {
		return err
	}
	return p.asset.Transfer(p.addr, next, held)
}

// Harvest settles the position with the vault: it reports the difference
// between its balance and its debt and pays back as much outstanding debt as
// it can.
func (p *Passive) Harvest(r Reporter) (vault.ReportOutcome, error) {
	entry, err := r.Strategy(p.addr)
	if err != nil {
		return vault.ReportOutcome{}, err
	}
	held, err := p.asset.BalanceOf(p.addr)
	if err != nil {
		return vault.ReportOutcome{}, err
	}
	gain, loss := new(uint256.Int), new(uint256.Int)
	if held.Gt(entry.TotalDebt) {
		gain.Sub(held, entry.TotalDebt)
	} else {
		loss.Sub(entry.TotalDebt, held)
	}
	outstanding, err := r.DebtOutstanding(p.addr)
	if err != nil {
		return vault.ReportOutcome{}, err
	}
	payable := new(uint256.Int).Sub(held, gain)
	if outstanding.Lt(payable) {
		payable.Set(outstanding)
	}
	return r.Report(p.addr, gain, loss, payable)
}
