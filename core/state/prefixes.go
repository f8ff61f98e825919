package state

import "github.com/ethereum/go-ethereum/common"

var (
	vaultRecordPrefix     = []byte("vault/record/")
	vaultStrategyPrefix   = []byte("vault/strategy/")
	vaultSharesPrefix     = []byte("vault/shares/")
	vaultAllowancePrefix  = []byte("vault/allowance/")
	vaultLastBlockPrefix  = []byte("vault/last-block/")
	vaultCheckpointPrefix = []byte("vault/checkpoints/")
	vaultClaimPrefix      = []byte("vault/claim/")
	vaultContractPrefix   = []byte("vault/contract/")

	tokenBalancePrefix   = []byte("bank/balance/")
	tokenAllowancePrefix = []byte("bank/allowance/")
	tokenSupplyPrefix    = []byte("bank/supply/")
)

func composeKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

// VaultRecordKey namespaces the singleton record of a vault.
func VaultRecordKey(vault common.Address) []byte {
	return composeKey(vaultRecordPrefix, vault.Bytes())
}

func VaultStrategyKey(vault, strategy common.Address) []byte {
	return composeKey(vaultStrategyPrefix, vault.Bytes(), strategy.Bytes())
}

func VaultSharesKey(vault, owner common.Address) []byte {
	return composeKey(vaultSharesPrefix, vault.Bytes(), owner.Bytes())
}

func VaultAllowanceKey(vault, owner, spender common.Address) []byte {
	return composeKey(vaultAllowancePrefix, vault.Bytes(), owner.Bytes(), spender.Bytes())
}

func VaultLastBlockKey(vault, caller common.Address) []byte {
	return composeKey(vaultLastBlockPrefix, vault.Bytes(), caller.Bytes())
}

func VaultCheckpointKey(vault, owner common.Address) []byte {
	return composeKey(vaultCheckpointPrefix, vault.Bytes(), owner.Bytes())
}

func VaultClaimKey(vault, owner common.Address) []byte {
	return composeKey(vaultClaimPrefix, vault.Bytes(), owner.Bytes())
}

func VaultContractKey(vault, contract common.Address) []byte {
	return composeKey(vaultContractPrefix, vault.Bytes(), contract.Bytes())
}

// TokenBalanceKey namespaces a bank balance by asset symbol and owner.
func TokenBalanceKey(symbol string, owner common.Address) []byte {
	return composeKey(tokenBalancePrefix, []byte(symbol), owner.Bytes())
}

func TokenAllowanceKey(symbol string, owner, spender common.Address) []byte {
	return composeKey(tokenAllowancePrefix, []byte(symbol), owner.Bytes(), spender.Bytes())
}

func TokenSupplyKey(symbol string) []byte {
	return composeKey(tokenSupplyPrefix, []byte(symbol))
}
