package vault

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// supplyHolder keys the total supply history. The zero address can never
// hold shares.
var supplyHolder = common.Address{}

// checkpoint records shares as owner's balance at the current block. Heights
// are expected not to decrease; a write at or below the last recorded block
// replaces that entry.
func (e *Engine) checkpoint(owner common.Address, shares *uint256.Int) error {
	cps, err := e.state.ShareCheckpoints(owner)
	if err != nil {
		return err
	}
	if n := len(cps); n > 0 && cps[n-1].Block >= e.blockHeight {
		cps[n-1].Shares = clone(shares)
	} else {
		cps = append(cps, Checkpoint{Block: e.blockHeight, Shares: clone(shares)})
	}
	return e.state.PutShareCheckpoints(owner, cps)
}

func (e *Engine) sharesAt(owner common.Address, block uint64) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cps, err := e.state.ShareCheckpoints(owner)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(cps), func(i int) bool { return cps[i].Block > block })
	if i == 0 {
		return zero(), nil
	}
	return clone(cps[i-1].Shares), nil
}

// BalanceOfAt returns owner's share balance as of the end of block.
func (e *Engine) BalanceOfAt(owner common.Address, block uint64) (*uint256.Int, error) {
	if owner == supplyHolder {
		return zero(), nil
	}
	return e.sharesAt(owner, block)
}

// TotalSupplyAt returns the share supply as of the end of block.
func (e *Engine) TotalSupplyAt(block uint64) (*uint256.Int, error) {
	return e.sharesAt(supplyHolder, block)
}
