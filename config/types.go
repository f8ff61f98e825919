package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vaultledger/native/vault"
)

// Asset describes the fungible asset the vault pools.
type Asset struct {
	Symbol   string `toml:"Symbol" yaml:"symbol"`
	Decimals uint8  `toml:"Decimals" yaml:"decimals"`
}

// Pauses lists the modules an operator has switched off.
type Pauses struct {
	Vault bool `toml:"Vault" yaml:"vault"`
	Bank  bool `toml:"Bank" yaml:"bank"`
}

// IsPaused implements the native module pause view.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "vault":
		return p.Vault
	case "bank":
		return p.Bank
	default:
		return false
	}
}

// Global bundles the runtime configuration values enforced by ValidateConfig.
type Global struct {
	Pauses Pauses `toml:"pauses" yaml:"pauses"`
}

// StrategyConfig registers a passive strategy with the vault on first boot.
// Amounts are decimal strings in asset base units; an empty
// MaxDebtPerHarvest means unlimited.
type StrategyConfig struct {
	Address           string `toml:"Address" yaml:"address"`
	DebtRatio         uint64 `toml:"DebtRatio" yaml:"debtRatio"`
	MinDebtPerHarvest string `toml:"MinDebtPerHarvest" yaml:"minDebtPerHarvest"`
	MaxDebtPerHarvest string `toml:"MaxDebtPerHarvest" yaml:"maxDebtPerHarvest"`
	PerformanceFeeBps uint64 `toml:"PerformanceFeeBps" yaml:"performanceFeeBps"`
}

// Addr returns the parsed strategy address. Only valid after ValidateConfig.
func (s StrategyConfig) Addr() common.Address {
	return common.HexToAddress(strings.TrimSpace(s.Address))
}

// Params converts the entry into registration parameters.
func (s StrategyConfig) Params() (vault.StrategyParams, error) {
	minDebt, err := vault.ParseAmount(s.MinDebtPerHarvest)
	if err != nil {
		return vault.StrategyParams{}, fmt.Errorf("MinDebtPerHarvest: %w", err)
	}
	maxRaw := s.MaxDebtPerHarvest
	if strings.TrimSpace(maxRaw) == "" {
		maxRaw = vault.Unlimited
	}
	maxDebt, err := vault.ParseAmount(maxRaw)
	if err != nil {
		return vault.StrategyParams{}, fmt.Errorf("MaxDebtPerHarvest: %w", err)
	}
	return vault.StrategyParams{
		DebtRatio:         s.DebtRatio,
		MinDebtPerHarvest: minDebt,
		MaxDebtPerHarvest: maxDebt,
		PerformanceFeeBps: s.PerformanceFeeBps,
	}, nil
}

// Keeper drives the periodic harvest of configured strategies.
type Keeper struct {
	// HarvestInterval is a Go duration string. Empty disables the keeper.
	HarvestInterval string `toml:"HarvestInterval" yaml:"harvestInterval"`
}

// Interval parses HarvestInterval.
func (k Keeper) Interval() (time.Duration, error) {
	raw := strings.TrimSpace(k.HarvestInterval)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", raw)
	}
	return d, nil
}
