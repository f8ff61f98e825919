package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/types"
)

const (
	TypeTokenTransfer = "bank.transfer"
	TypeTokenApproval = "bank.approval"
	TypeTokenMint     = "bank.mint"
)

// TokenTransfer is emitted when the bank ledger moves an asset balance.
type TokenTransfer struct {
	Asset  string
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

type TokenApproval struct {
	Asset   string
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"asset":   e.Asset,
			"owner":   e.Owner.Hex(),
			"spender": e.Spender.Hex(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

type TokenMint struct {
	Asset  string
	To     common.Address
	Amount *uint256.Int
}

func (TokenMint) EventType() string { return TypeTokenMint }

func (e TokenMint) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMint,
		Attributes: map[string]string{
			"asset":  e.Asset,
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}
