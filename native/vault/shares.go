package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

func (e *Engine) totalAssets(v *Vault) (*uint256.Int, error) {
	bal, err := e.vaultBalance()
	if err != nil {
		return nil, err
	}
	return checkedAdd(bal, v.TotalDebt)
}

// freeFunds is total assets less the profit still locked at now.
func (e *Engine) freeFunds(v *Vault, now uint64) (*uint256.Int, error) {
	total, err := e.totalAssets(v)
	if err != nil {
		return nil, err
	}
	return checkedSub(total, v.lockedProfit(now))
}

func (e *Engine) shareValue(v *Vault, shares *uint256.Int, now uint64) (*uint256.Int, error) {
	if v.TotalShares.IsZero() {
		return clone(shares), nil
	}
	free, err := e.freeFunds(v, now)
	if err != nil {
		return nil, err
	}
	return mulDiv(shares, free, v.TotalShares)
}

func (e *Engine) sharesForAmount(v *Vault, amount *uint256.Int, now uint64) (*uint256.Int, error) {
	free, err := e.freeFunds(v, now)
	if err != nil {
		return nil, err
	}
	if free.IsZero() {
		return zero(), nil
	}
	return mulDiv(amount, v.TotalShares, free)
}

// issueShares mints shares worth amount to `to` at the current free funds
// price. A mint that rounds to zero is refused.
func (e *Engine) issueShares(v *Vault, to common.Address, amount *uint256.Int, now uint64) (*uint256.Int, error) {
	shares, err := e.sharesToIssue(v, amount, now)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	if err := e.mint(v, to, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

func (e *Engine) sharesToIssue(v *Vault, amount *uint256.Int, now uint64) (*uint256.Int, error) {
	if v.TotalShares.IsZero() {
		return clone(amount), nil
	}
	free, err := e.freeFunds(v, now)
	if err != nil {
		return nil, err
	}
	return mulDiv(amount, v.TotalShares, free)
}

func (e *Engine) mint(v *Vault, to common.Address, shares *uint256.Int) error {
	supply, err := checkedAdd(v.TotalShares, shares)
	if err != nil {
		return err
	}
	if err := e.settleClaims(v, to); err != nil {
		return err
	}
	bal, err := e.state.ShareBalance(to)
	if err != nil {
		return err
	}
	if bal, err = checkedAdd(orZero(bal), shares); err != nil {
		return err
	}
	if err := e.setShares(to, bal); err != nil {
		return err
	}
	v.TotalShares = supply
	if err := e.checkpoint(supplyHolder, supply); err != nil {
		return err
	}
	e.emit(events.VaultTransfer{From: common.Address{}, To: to, Shares: clone(shares)})
	return nil
}

func (e *Engine) burn(v *Vault, from common.Address, shares *uint256.Int) error {
	bal, err := e.state.ShareBalance(from)
	if err != nil {
		return err
	}
	if orZero(bal).Lt(shares) {
		return ErrInsufficientShares
	}
	supply, err := checkedSub(v.TotalShares, shares)
	if err != nil {
		return err
	}
	if err := e.settleClaims(v, from); err != nil {
		return err
	}
	if err := e.setShares(from, new(uint256.Int).Sub(bal, shares)); err != nil {
		return err
	}
	v.TotalShares = supply
	if err := e.checkpoint(supplyHolder, supply); err != nil {
		return err
	}
	e.emit(events.VaultTransfer{From: from, To: common.Address{}, Shares: clone(shares)})
	return nil
}

// moveShares transfers shares between two holders. Recipients are not
// validated here so fee distribution can move shares out of the vault.
func (e *Engine) moveShares(v *Vault, from, to common.Address, shares *uint256.Int) error {
	fromBal, err := e.state.ShareBalance(from)
	if err != nil {
		return err
	}
	fromBal = orZero(fromBal)
	if fromBal.Lt(shares) {
		return ErrInsufficientShares
	}
	if err := e.settleClaims(v, from); err != nil {
		return err
	}
	if err := e.settleClaims(v, to); err != nil {
		return err
	}
	if err := e.setShares(from, new(uint256.Int).Sub(fromBal, shares)); err != nil {
		return err
	}
	toBal, err := e.state.ShareBalance(to)
	if err != nil {
		return err
	}
	if toBal, err = checkedAdd(orZero(toBal), shares); err != nil {
		return err
	}
	if err := e.setShares(to, toBal); err != nil {
		return err
	}
	e.emit(events.VaultTransfer{From: from, To: to, Shares: clone(shares)})
	return nil
}

// setShares writes owner's balance and its checkpoint.
func (e *Engine) setShares(owner common.Address, bal *uint256.Int) error {
	if err := e.state.SetShareBalance(owner, bal); err != nil {
		return err
	}
	return e.checkpoint(owner, bal)
}

// Deposit pulls amount of the asset from caller and mints shares to
// recipient. MaxUint256 deposits the caller's whole balance up to the
// remaining deposit limit.
func (e *Engine) Deposit(caller common.Address, amount *uint256.Int, recipient common.Address) (*uint256.Int, error) {
	var minted *uint256.Int
	err := e.atomic(func() error {
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.checkOpen(v); err != nil {
			return err
		}
		if v.EmergencyShutdown {
			return ErrEmergencyShutdown
		}
		if err := e.validRecipient(recipient); err != nil {
			return err
		}
		if err := e.defend(caller); err != nil {
			return err
		}
		if err := e.lockBlock(caller); err != nil {
			return err
		}
		if amount == nil {
			return ErrInvalidAmount
		}
		total, err := e.totalAssets(v)
		if err != nil {
			return err
		}
		value := clone(amount)
		if amount.Eq(MaxUint256) {
			held, err := e.balanceOf(caller)
			if err != nil {
				return err
			}
			value = minInt(subOrZero(v.DepositLimit, total), held)
		} else {
			after, err := checkedAdd(total, value)
			if err != nil || after.Gt(v.DepositLimit) {
				return ErrDepositLimit
			}
		}
		if value.IsZero() {
			return ErrInvalidAmount
		}
		now := e.now()
		shares, err := e.issueShares(v, recipient, value, now)
		if err != nil {
			return err
		}
		if err := e.safeTransferFrom(caller, value); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultDeposit{Depositor: caller, Recipient: recipient, Amount: clone(value), Shares: clone(shares)})
		minted = shares
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Withdraw burns up to maxShares of caller's shares and pays their value to
// recipient, pulling from strategies in queue order when the vault's idle
// balance is short. The call fails when realised losses exceed maxLossBps of
// the requested value.
func (e *Engine) Withdraw(caller common.Address, maxShares *uint256.Int, recipient common.Address, maxLossBps uint64) (*uint256.Int, error) {
	var paid *uint256.Int
	err := e.atomic(func() error {
		if maxLossBps > MaxBps {
			return ErrInvalidMaxLoss
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.checkOpen(v); err != nil {
			return err
		}
		if recipient == (common.Address{}) {
			return ErrInvalidRecipient
		}
		if err := e.defend(caller); err != nil {
			return err
		}
		if err := e.lockBlock(caller); err != nil {
			return err
		}
		if maxShares == nil {
			return ErrInvalidAmount
		}
		held, err := e.state.ShareBalance(caller)
		if err != nil {
			return err
		}
		held = orZero(held)
		shares := clone(maxShares)
		if shares.Gt(held) {
			shares = clone(held)
		}
		if shares.IsZero() {
			return ErrInvalidAmount
		}
		now := e.now()
		value, err := e.shareValue(v, shares, now)
		if err != nil {
			return err
		}
		balance, err := e.vaultBalance()
		if err != nil {
			return err
		}
		totalLoss := zero()
		if value.Gt(balance) {
			if value, balance, totalLoss, err = e.liquidate(v, value, balance); err != nil {
				return err
			}
			if value.Gt(balance) {
				value = clone(balance)
				requested, err := checkedAdd(value, totalLoss)
				if err != nil {
					return err
				}
				if shares, err = e.sharesForAmount(v, requested, now); err != nil {
					return err
				}
			}
			requested, err := checkedAdd(value, totalLoss)
			if err != nil {
				return err
			}
			tolerated, err := bpsOf(requested, maxLossBps)
			if err != nil {
				return err
			}
			if totalLoss.Gt(tolerated) {
				return ErrMaxLossExceeded
			}
		}
		if err := e.burn(v, caller, shares); err != nil {
			return err
		}
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		if err := e.safeTransfer(recipient, value); err != nil {
			return err
		}
		e.emit(events.VaultWithdraw{Owner: caller, Recipient: recipient, Shares: clone(shares), Amount: clone(value), Loss: totalLoss})
		paid = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// liquidate walks the withdrawal queue until the vault holds value. Losses
// realised by strategies reduce value and are booked against them.
func (e *Engine) liquidate(v *Vault, value, balance *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	totalLoss := zero()
	queue := append([]common.Address(nil), v.WithdrawalQueue...)
	for _, addr := range queue {
		if addr == (common.Address{}) || !value.Gt(balance) {
			break
		}
		entry, err := e.registeredEntry(addr)
		if err != nil {
			return nil, nil, nil, err
		}
		needed := minInt(new(uint256.Int).Sub(value, balance), entry.TotalDebt)
		if needed.IsZero() {
			continue
		}
		strategy, err := e.collaborator(addr)
		if err != nil {
			return nil, nil, nil, err
		}
		before, err := e.vaultBalance()
		if err != nil {
			return nil, nil, nil, err
		}
		claimed, loss, err := strategy.Withdraw(clone(needed))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("vault engine: strategy %s withdraw: %w", addr.Hex(), err)
		}
		after, err := e.vaultBalance()
		if err != nil {
			return nil, nil, nil, err
		}
		withdrawn := subOrZero(after, before)
		if claimed != nil && claimed.Gt(withdrawn) {
			return nil, nil, nil, ErrStrategyOverreported
		}
		if balance, err = checkedAdd(balance, withdrawn); err != nil {
			return nil, nil, nil, err
		}
		loss = orZero(loss)
		if !loss.IsZero() {
			if value, err = checkedSub(value, loss); err != nil {
				return nil, nil, nil, err
			}
			totalLoss.Add(totalLoss, loss)
			if err := reportLoss(v, entry, loss); err != nil {
				return nil, nil, nil, err
			}
		}
		if entry.TotalDebt, err = checkedSub(entry.TotalDebt, withdrawn); err != nil {
			return nil, nil, nil, err
		}
		if v.TotalDebt, err = checkedSub(v.TotalDebt, withdrawn); err != nil {
			return nil, nil, nil, err
		}
		if err := e.state.PutStrategyEntry(entry); err != nil {
			return nil, nil, nil, err
		}
		e.emit(events.VaultStrategyWithdrawn{Strategy: addr, TotalDebt: clone(entry.TotalDebt), Withdrawn: withdrawn, Loss: clone(loss)})
	}
	return value, balance, totalLoss, nil
}

// Transfer moves caller's shares to `to`.
func (e *Engine) Transfer(caller, to common.Address, shares *uint256.Int) error {
	return e.atomic(func() error {
		v, err := e.shareTransferChecks(caller, to, shares)
		if err != nil {
			return err
		}
		if err := e.moveShares(v, caller, to, shares); err != nil {
			return err
		}
		return e.state.PutVault(v)
	})
}

// TransferFrom moves shares from owner to `to`, spending spender's
// allowance. A MaxUint256 allowance is never decreased.
func (e *Engine) TransferFrom(spender, owner, to common.Address, shares *uint256.Int) error {
	return e.atomic(func() error {
		v, err := e.shareTransferChecks(spender, to, shares)
		if err != nil {
			return err
		}
		allowance, err := e.state.ShareAllowance(owner, spender)
		if err != nil {
			return err
		}
		allowance = orZero(allowance)
		if !allowance.Eq(MaxUint256) {
			if allowance.Lt(shares) {
				return ErrInsufficientAllow
			}
			remaining := new(uint256.Int).Sub(allowance, shares)
			if err := e.state.SetShareAllowance(owner, spender, remaining); err != nil {
				return err
			}
			e.emit(events.VaultApproval{Owner: owner, Spender: spender, Shares: clone(remaining)})
		}
		if err := e.moveShares(v, owner, to, shares); err != nil {
			return err
		}
		return e.state.PutVault(v)
	})
}

func (e *Engine) shareTransferChecks(caller, to common.Address, shares *uint256.Int) (*Vault, error) {
	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}
	if err := e.checkOpen(v); err != nil {
		return nil, err
	}
	if err := e.validRecipient(to); err != nil {
		return nil, err
	}
	if shares == nil {
		return nil, ErrInvalidAmount
	}
	if err := e.lockBlock(caller); err != nil {
		return nil, err
	}
	return v, nil
}

// Approve sets spender's allowance over owner's shares.
func (e *Engine) Approve(owner, spender common.Address, shares *uint256.Int) error {
	return e.atomic(func() error {
		if err := e.approvalChecks(); err != nil {
			return err
		}
		return e.setAllowance(owner, spender, clone(shares))
	})
}

// IncreaseAllowance raises spender's allowance by delta.
func (e *Engine) IncreaseAllowance(owner, spender common.Address, delta *uint256.Int) error {
	return e.atomic(func() error {
		if err := e.approvalChecks(); err != nil {
			return err
		}
		current, err := e.state.ShareAllowance(owner, spender)
		if err != nil {
			return err
		}
		next, err := checkedAdd(orZero(current), orZero(delta))
		if err != nil {
			return err
		}
		return e.setAllowance(owner, spender, next)
	})
}

// DecreaseAllowance lowers spender's allowance by delta.
func (e *Engine) DecreaseAllowance(owner, spender common.Address, delta *uint256.Int) error {
	return e.atomic(func() error {
		if err := e.approvalChecks(); err != nil {
			return err
		}
		current, err := e.state.ShareAllowance(owner, spender)
		if err != nil {
			return err
		}
		next, err := checkedSub(orZero(current), orZero(delta))
		if err != nil {
			return ErrInsufficientAllow
		}
		return e.setAllowance(owner, spender, next)
	})
}

func (e *Engine) approvalChecks() error {
	v, err := e.loadVault()
	if err != nil {
		return err
	}
	return e.checkOpen(v)
}

func (e *Engine) setAllowance(owner, spender common.Address, shares *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if err := e.state.SetShareAllowance(owner, spender, shares); err != nil {
		return err
	}
	e.emit(events.VaultApproval{Owner: owner, Spender: spender, Shares: clone(shares)})
	return nil
}

// BalanceOf returns owner's share balance.
func (e *Engine) BalanceOf(owner common.Address) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	bal, err := e.state.ShareBalance(owner)
	if err != nil {
		return nil, err
	}
	return clone(bal), nil
}

// Allowance returns the shares spender may move on owner's behalf.
func (e *Engine) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	allowance, err := e.state.ShareAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return clone(allowance), nil
}

// TotalSupply returns the outstanding share supply.
func (e *Engine) TotalSupply() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return clone(v.TotalShares), nil
}

// TotalAssets is the vault's idle balance plus everything lent out.
func (e *Engine) TotalAssets() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return e.totalAssets(v)
}

// PricePerShare is the value of one whole share in asset base units.
func (e *Engine) PricePerShare() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return e.shareValue(v, unitOf(v.Decimals), e.now())
}

// LockedProfit returns the profit still hidden from the share price.
func (e *Engine) LockedProfit() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return v.lockedProfit(e.now()), nil
}

// MaxAvailableShares is the share amount redeemable right now from the idle
// balance plus every queued strategy's debt.
func (e *Engine) MaxAvailableShares() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	now := e.now()
	available, err := e.vaultBalance()
	if err != nil {
		return nil, err
	}
	for _, addr := range v.WithdrawalQueue {
		if addr == (common.Address{}) {
			break
		}
		entry, err := e.loadEntry(addr)
		if err != nil {
			return nil, err
		}
		if available, err = checkedAdd(available, entry.TotalDebt); err != nil {
			return nil, err
		}
	}
	shares, err := e.sharesForAmount(v, available, now)
	if err != nil {
		return nil, err
	}
	if shares.Gt(v.TotalShares) {
		return clone(v.TotalShares), nil
	}
	return shares, nil
}

// AvailableDepositLimit is how much more the vault accepts before hitting
// its deposit limit.
func (e *Engine) AvailableDepositLimit() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	total, err := e.totalAssets(v)
	if err != nil {
		return nil, err
	}
	return subOrZero(v.DepositLimit, total), nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return zero()
	}
	return v
}
