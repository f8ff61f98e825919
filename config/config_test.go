package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vaultledger/native/vault"
)

const testGovernance = "0x0000000000000000000000000000000000000001"

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9470", cfg.ListenAddress)
	require.Equal(t, "USDX", cfg.Asset.Symbol)
	require.NoError(t, ValidateConfig(cfg))

	key, err := ethcrypto.LoadECDSA(cfg.OperatorKeyPath)
	require.NoError(t, err)
	operator := ethcrypto.PubkeyToAddress(key.PublicKey)
	require.Equal(t, operator.Hex(), cfg.Vault.Roles.Governance)
	require.Equal(t, ethcrypto.CreateAddress(operator, 0), cfg.VaultAddr())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.VaultAddress, reloaded.VaultAddress)
	require.Equal(t, vault.Unlimited, reloaded.Vault.DepositLimit)
	require.Equal(t, cfg.Vault.HealthCheck, reloaded.Vault.HealthCheck)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.toml")
	contents := `ListenAddress = "127.0.0.1:9500"
DataDir = "./data"
VaultAddress = "0x00000000000000000000000000000000000000aa"

[asset]
Symbol = "dai"
Decimals = 18

[vault]
DepositLimit = "1000000"
ManagementFeeBps = 100
PerformanceFeeBps = 2000
Rewards = "0x0000000000000000000000000000000000000004"
BlockLock = true

[vault.healthcheck]
Enforce = true
ProfitLimitBps = 500
LossLimitBps = 50

[vault.roles]
Governance = "` + testGovernance + `"

[global.pauses]
Vault = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DAI", cfg.Asset.Symbol)
	require.Equal(t, uint8(18), cfg.Asset.Decimals)
	require.True(t, cfg.Vault.BlockLock)
	require.Equal(t, uint64(500), cfg.Vault.HealthCheck.ProfitLimitBps)
	require.True(t, cfg.Global.Pauses.IsPaused("vault"))
	require.False(t, cfg.Global.Pauses.IsPaused("bank"))

	g, err := cfg.Vault.ToGenesis()
	require.NoError(t, err)
	require.Equal(t, "1000000", g.DepositLimit.Dec())
	require.Nil(t, g.LockedProfitDegradation)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.yaml")
	contents := `listen: ":9600"
vaultAddress: "0x00000000000000000000000000000000000000aa"
asset:
  symbol: usdc
  decimals: 6
vault:
  depositLimit: unlimited
  performanceFeeBps: 1000
  rewards: "0x0000000000000000000000000000000000000004"
  roles:
    governance: "` + testGovernance + `"
    guardian: "0x0000000000000000000000000000000000000003"
global:
  pauses:
    bank: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9600", cfg.ListenAddress)
	require.Equal(t, "./vault-data", cfg.DataDir)
	require.Equal(t, "USDC", cfg.Asset.Symbol)
	require.True(t, cfg.Global.Pauses.IsPaused("BANK"))

	roles, err := cfg.Vault.Roles.Parse()
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x03"), roles.Guardian)
}

func TestLoadRejectsUnknownTOMLKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = \":1\"\nRPCAddress = \":2\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "RPCAddress"), err.Error())
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			ListenAddress: ":9470",
			VaultAddress:  "0x00000000000000000000000000000000000000aa",
			Asset:         Asset{Symbol: "USDX", Decimals: 6},
			Vault:         vault.DefaultConfig(),
		}
		cfg.Vault.Rewards = "0x0000000000000000000000000000000000000004"
		cfg.Vault.Roles.Governance = testGovernance
		return cfg
	}
	require.NoError(t, ValidateConfig(valid()))
	require.Error(t, ValidateConfig(nil))

	cases := map[string]func(*Config){
		"listen":   func(c *Config) { c.ListenAddress = " " },
		"symbol":   func(c *Config) { c.Asset.Symbol = "" },
		"decimals": func(c *Config) { c.Asset.Decimals = MaxAssetDecimals + 1 },
		"vault":    func(c *Config) { c.VaultAddress = "0x0000000000000000000000000000000000000000" },
		"fees":     func(c *Config) { c.Vault.PerformanceFeeBps = vault.MaxBps },
		"keeper":   func(c *Config) { c.Keeper.HarvestInterval = "soon" },
		"strategy": func(c *Config) { c.Strategies = []StrategyConfig{{Address: c.VaultAddress}} },
		"ratios": func(c *Config) {
			c.Strategies = []StrategyConfig{
				{Address: "0x0000000000000000000000000000000000005a01", DebtRatio: 6_000},
				{Address: "0x0000000000000000000000000000000000005a02", DebtRatio: 4_001},
			}
		},
		"duplicate": func(c *Config) {
			c.Strategies = []StrategyConfig{
				{Address: "0x0000000000000000000000000000000000005a01"},
				{Address: "0x0000000000000000000000000000000000005A01"},
			}
		},
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadParsesStrategies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.toml")
	contents := `VaultAddress = "0x00000000000000000000000000000000000000aa"

[asset]
Symbol = "USDX"
Decimals = 6

[vault]
Rewards = "0x0000000000000000000000000000000000000004"

[vault.roles]
Governance = "` + testGovernance + `"

[keeper]
HarvestInterval = "15m"

[[strategy]]
Address = "0x0000000000000000000000000000000000005a01"
DebtRatio = 6000
MinDebtPerHarvest = "10"

[[strategy]]
Address = "0x0000000000000000000000000000000000005a02"
DebtRatio = 2000
MaxDebtPerHarvest = "500"
PerformanceFeeBps = 1000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Strategies, 2)
	interval, err := cfg.Keeper.Interval()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, interval)

	first, err := cfg.Strategies[0].Params()
	require.NoError(t, err)
	require.Equal(t, uint64(6_000), first.DebtRatio)
	require.Equal(t, uint64(10), first.MinDebtPerHarvest.Uint64())
	require.True(t, first.MaxDebtPerHarvest.Eq(new(uint256.Int).SetAllOne()), "empty max is unlimited")

	second, err := cfg.Strategies[1].Params()
	require.NoError(t, err)
	require.Equal(t, uint64(500), second.MaxDebtPerHarvest.Uint64())
	require.Equal(t, common.HexToAddress("0x5a02"), cfg.Strategies[1].Addr())
}

func TestKeeperIntervalDisabledWhenEmpty(t *testing.T) {
	interval, err := Keeper{}.Interval()
	require.NoError(t, err)
	require.Zero(t, interval)
	if _, err := (Keeper{HarvestInterval: "-1s"}).Interval(); err == nil {
		t.Fatalf("expected negative interval to be rejected")
	}
}
