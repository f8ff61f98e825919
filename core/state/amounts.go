package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}

func fromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("state: negative amount %s", b)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("state: amount %s overflows 256 bits", b)
	}
	return v, nil
}

func (m *Manager) getAmount(key []byte) (*uint256.Int, error) {
	var stored big.Int
	ok, err := m.KVGet(key, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return fromBig(&stored)
}

func (m *Manager) putAmount(key []byte, amount *uint256.Int) error {
	return m.KVPut(key, toBig(amount))
}
