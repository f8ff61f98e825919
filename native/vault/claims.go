package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
)

// claimScale is the fixed point scale of Vault.ClaimIndex.
var claimScale = uint256.NewInt(1_000_000_000_000_000_000)

// updateClaimIndex folds claim tokens received since the last update into
// v.ClaimIndex. Tokens that arrive while no shares exist are never assigned.
func (e *Engine) updateClaimIndex(v *Vault) error {
	if e.claimAsset == nil || v.TotalShares.IsZero() {
		return nil
	}
	held, err := e.claimAsset.BalanceOf(e.vaultAddress)
	if err != nil {
		return err
	}
	held = orZero(held)
	if !held.Gt(v.ClaimBalance) {
		return nil
	}
	ratio, err := mulDiv(new(uint256.Int).Sub(held, v.ClaimBalance), claimScale, v.TotalShares)
	if err != nil {
		return err
	}
	if ratio.IsZero() {
		return nil
	}
	if v.ClaimIndex, err = checkedAdd(v.ClaimIndex, ratio); err != nil {
		return err
	}
	v.ClaimBalance = clone(held)
	return nil
}

func (e *Engine) loadClaimAccount(owner common.Address) (*ClaimAccount, error) {
	acct, err := e.state.ClaimAccount(owner)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return &ClaimAccount{Index: zero(), Claimable: zero()}, nil
	}
	acct.Index = orZero(acct.Index)
	acct.Claimable = orZero(acct.Claimable)
	return acct, nil
}

// settleClaims credits owner with everything accrued on its current share
// balance and moves it to the current index. It must run before the balance
// changes.
func (e *Engine) settleClaims(v *Vault, owner common.Address) error {
	if e.claimAsset == nil {
		return nil
	}
	if err := e.updateClaimIndex(v); err != nil {
		return err
	}
	acct, err := e.loadClaimAccount(owner)
	if err != nil {
		return err
	}
	bal, err := e.state.ShareBalance(owner)
	if err != nil {
		return err
	}
	if bal = orZero(bal); !bal.IsZero() && v.ClaimIndex.Gt(acct.Index) {
		accrued, err := mulDiv(bal, new(uint256.Int).Sub(v.ClaimIndex, acct.Index), claimScale)
		if err != nil {
			return err
		}
		if acct.Claimable, err = checkedAdd(acct.Claimable, accrued); err != nil {
			return err
		}
	}
	acct.Index = clone(v.ClaimIndex)
	return e.state.PutClaimAccount(owner, acct)
}

// UpdateClaims folds newly received claim tokens into the per-share index.
func (e *Engine) UpdateClaims() error {
	return e.atomic(func() error {
		if e.claimAsset == nil {
			return ErrClaimAssetUnset
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.updateClaimIndex(v); err != nil {
			return err
		}
		return e.state.PutVault(v)
	})
}

// UpdateClaimsFor settles owner's accrued claim without paying it out.
func (e *Engine) UpdateClaimsFor(owner common.Address) error {
	return e.atomic(func() error {
		if e.claimAsset == nil {
			return ErrClaimAssetUnset
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.settleClaims(v, owner); err != nil {
			return err
		}
		return e.state.PutVault(v)
	})
}

// Claim settles caller and pays out its whole claimable balance.
func (e *Engine) Claim(caller common.Address) (*uint256.Int, error) {
	var paid *uint256.Int
	err := e.atomic(func() error {
		if e.claimAsset == nil {
			return ErrClaimAssetUnset
		}
		v, err := e.loadVault()
		if err != nil {
			return err
		}
		if err := e.settleClaims(v, caller); err != nil {
			return err
		}
		acct, err := e.loadClaimAccount(caller)
		if err != nil {
			return err
		}
		amount := acct.Claimable
		acct.Claimable = zero()
		if err := e.state.PutClaimAccount(caller, acct); err != nil {
			return err
		}
		if !amount.IsZero() {
			before, err := e.claimAsset.BalanceOf(caller)
			if err != nil {
				return err
			}
			if err := e.claimAsset.Transfer(e.vaultAddress, caller, amount); err != nil {
				return err
			}
			after, err := e.claimAsset.BalanceOf(caller)
			if err != nil {
				return err
			}
			if want, err := checkedAdd(orZero(before), amount); err != nil || !orZero(after).Eq(want) {
				return ErrTransferFailed
			}
		}
		held, err := e.claimAsset.BalanceOf(e.vaultAddress)
		if err != nil {
			return err
		}
		v.ClaimBalance = clone(held)
		if err := e.state.PutVault(v); err != nil {
			return err
		}
		e.emit(events.VaultClaim{Holder: caller, Amount: clone(amount)})
		paid = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// Claimable returns owner's settled, unpaid claim. Accruals since the last
// settlement show up after UpdateClaimsFor.
func (e *Engine) Claimable(owner common.Address) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acct, err := e.loadClaimAccount(owner)
	if err != nil {
		return nil, err
	}
	return clone(acct.Claimable), nil
}

// ClaimBalance returns the claim token balance already assigned to holders.
func (e *Engine) ClaimBalance() (*uint256.Int, error) {
	v, err := e.Vault()
	if err != nil {
		return nil, err
	}
	return clone(v.ClaimBalance), nil
}
