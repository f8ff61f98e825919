package state

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TokenBalance returns owner's balance of the asset. Unknown owners hold zero.
func (m *Manager) TokenBalance(symbol string, owner common.Address) (*uint256.Int, error) {
	return m.getAmount(TokenBalanceKey(normalizeSymbol(symbol), owner))
}

func (m *Manager) SetTokenBalance(symbol string, owner common.Address, amount *uint256.Int) error {
	return m.putAmount(TokenBalanceKey(normalizeSymbol(symbol), owner), amount)
}

func (m *Manager) TokenAllowance(symbol string, owner, spender common.Address) (*uint256.Int, error) {
	return m.getAmount(TokenAllowanceKey(normalizeSymbol(symbol), owner, spender))
}

func (m *Manager) SetTokenAllowance(symbol string, owner, spender common.Address, amount *uint256.Int) error {
	return m.putAmount(TokenAllowanceKey(normalizeSymbol(symbol), owner, spender), amount)
}

func (m *Manager) TokenSupply(symbol string) (*uint256.Int, error) {
	return m.getAmount(TokenSupplyKey(normalizeSymbol(symbol)))
}

func (m *Manager) SetTokenSupply(symbol string, amount *uint256.Int) error {
	return m.putAmount(TokenSupplyKey(normalizeSymbol(symbol)), amount)
}
