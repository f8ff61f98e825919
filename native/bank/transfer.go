package bank

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

var maxAllowance = new(uint256.Int).SetAllOne()

// Transfer moves amount from `from` to `to`. A zero amount is a no-op.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	return l.move(from, to, amount)
}

// TransferFrom moves amount out of `from` on behalf of spender. An allowance
// of MaxUint256 is never decremented.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	allowance, err := l.state.TokenAllowance(l.symbol, from, spender)
	if err != nil {
		return err
	}
	if !allowance.Eq(maxAllowance) {
		if allowance.Lt(amount) {
			return ErrInsufficientAllowance
		}
		if err := l.state.SetTokenAllowance(l.symbol, from, spender, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return l.move(from, to, amount)
}

// Approve sets the allowance spender may draw from owner.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrInvalidAddress
	}
	value := new(uint256.Int)
	if amount != nil {
		value.Set(amount)
	}
	if err := l.state.SetTokenAllowance(l.symbol, owner, spender, value); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenApproval{Asset: l.symbol, Owner: owner, Spender: spender, Amount: new(uint256.Int).Set(value)})
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrInvalidAddress
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	fromBal, err := l.state.TokenBalance(l.symbol, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBal, err := l.state.TokenBalance(l.symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, to, new(uint256.Int).Add(toBal, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Asset: l.symbol, From: from, To: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}
