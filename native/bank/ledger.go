package bank

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

var (
	ErrNilState              = errors.New("bank: state not configured")
	ErrInvalidSymbol         = errors.New("bank: asset symbol required")
	ErrInvalidAddress        = errors.New("bank: zero address")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrSupplyOverflow        = errors.New("bank: supply overflows 256 bits")
)

type ledgerState interface {
	TokenBalance(symbol string, owner common.Address) (*uint256.Int, error)
	SetTokenBalance(symbol string, owner common.Address, amount *uint256.Int) error
	TokenAllowance(symbol string, owner, spender common.Address) (*uint256.Int, error)
	SetTokenAllowance(symbol string, owner, spender common.Address, amount *uint256.Int) error
	TokenSupply(symbol string) (*uint256.Int, error)
	SetTokenSupply(symbol string, amount *uint256.Int) error
}

// Ledger is a fungible asset tracked in state. It is the asset a vault pools
// and the balance sheet strategies hold their position in.
type Ledger struct {
	state    ledgerState
	symbol   string
	decimals uint8
	emitter  events.Emitter
}

// NewLedger creates a ledger for the asset with the given symbol.
func NewLedger(symbol string, decimals uint8) (*Ledger, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, ErrInvalidSymbol
	}
	return &Ledger{symbol: normalized, decimals: decimals, emitter: events.NoopEmitter{}}, nil
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil discards events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

// BalanceOf returns the balance held by owner.
func (l *Ledger) BalanceOf(owner common.Address) (*uint256.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenBalance(l.symbol, owner)
}

// Allowance returns what spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenAllowance(l.symbol, owner, spender)
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	if l.state == nil {
		return nil, ErrNilState
	}
	return l.state.TokenSupply(l.symbol)
}

// Mint credits new units to `to`.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if to == (common.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	supply, err := l.state.TokenSupply(l.symbol)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	balance, err := l.state.TokenBalance(l.symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(l.symbol, newSupply); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, to, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenMint{Asset: l.symbol, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}
