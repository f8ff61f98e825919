package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultledger/native/vault"
)

// MaxAssetDecimals keeps one whole asset unit well inside 256 bits.
const MaxAssetDecimals = 36

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must be set")
	}
	if strings.TrimSpace(cfg.Asset.Symbol) == "" {
		return fmt.Errorf("asset: Symbol must be set")
	}
	if cfg.Asset.Decimals > MaxAssetDecimals {
		return fmt.Errorf("asset: Decimals %d exceeds %d", cfg.Asset.Decimals, MaxAssetDecimals)
	}
	addr := strings.TrimSpace(cfg.VaultAddress)
	if !common.IsHexAddress(addr) || common.HexToAddress(addr) == (common.Address{}) {
		return fmt.Errorf("VaultAddress %q is not a non-zero hex address", cfg.VaultAddress)
	}
	if err := cfg.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := validateStrategies(cfg); err != nil {
		return err
	}
	if _, err := cfg.Keeper.Interval(); err != nil {
		return fmt.Errorf("keeper: HarvestInterval: %w", err)
	}
	return nil
}

func validateStrategies(cfg *Config) error {
	seen := make(map[common.Address]struct{}, len(cfg.Strategies))
	var ratio uint64
	for i, s := range cfg.Strategies {
		raw := strings.TrimSpace(s.Address)
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("strategy[%d]: Address %q is not a hex address", i, s.Address)
		}
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) || addr == cfg.VaultAddr() {
			return fmt.Errorf("strategy[%d]: Address must be non-zero and differ from the vault", i)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("strategy[%d]: duplicate address %s", i, addr.Hex())
		}
		seen[addr] = struct{}{}
		if _, err := s.Params(); err != nil {
			return fmt.Errorf("strategy[%d]: %w", i, err)
		}
		if s.PerformanceFeeBps > vault.MaxPerformanceFeeBps {
			return fmt.Errorf("strategy[%d]: PerformanceFeeBps %d exceeds %d", i, s.PerformanceFeeBps, vault.MaxPerformanceFeeBps)
		}
		ratio += s.DebtRatio
		if ratio > vault.MaxBps {
			return fmt.Errorf("strategy[%d]: debt ratios sum above %d bps", i, vault.MaxBps)
		}
	}
	return nil
}
