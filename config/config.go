package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"vaultledger/native/vault"
)

type Config struct {
	ListenAddress   string           `toml:"ListenAddress" yaml:"listen"`
	DataDir         string           `toml:"DataDir" yaml:"dataDir"`
	Environment     string           `toml:"Environment" yaml:"environment"`
	LogLevel        string           `toml:"LogLevel" yaml:"logLevel"`
	OperatorKeyPath string           `toml:"OperatorKeyPath" yaml:"operatorKeyPath"`
	VaultAddress    string           `toml:"VaultAddress" yaml:"vaultAddress"`
	Asset           Asset            `toml:"asset" yaml:"asset"`
	Vault           vault.Config     `toml:"vault" yaml:"vault"`
	Strategies      []StrategyConfig `toml:"strategy" yaml:"strategies"`
	Keeper          Keeper           `toml:"keeper" yaml:"keeper"`
	Global          Global           `toml:"global" yaml:"global"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are read as YAML, everything else as TOML. A missing file is created
// with defaults and a freshly generated operator key.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":9470"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vault-data"
	}
	cfg.Asset.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Asset.Symbol))
}

// VaultAddr returns the parsed vault address. Only valid after ValidateConfig.
func (cfg *Config) VaultAddr() common.Address {
	return common.HexToAddress(strings.TrimSpace(cfg.VaultAddress))
}

// createDefault creates and saves a default configuration file. The generated
// operator holds every role and receives the fees; the vault address is
// derived from it.
func createDefault(path string) (*Config, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	keyPath := defaultKeyPath(path)
	if err := ethcrypto.SaveECDSA(keyPath, key); err != nil {
		return nil, err
	}
	operator := ethcrypto.PubkeyToAddress(key.PublicKey)

	cfg := &Config{
		ListenAddress:   ":9470",
		DataDir:         "./vault-data",
		Environment:     "local",
		OperatorKeyPath: keyPath,
		VaultAddress:    ethcrypto.CreateAddress(operator, 0).Hex(),
		Asset:           Asset{Symbol: "USDX", Decimals: 6},
		Vault:           vault.DefaultConfig(),
		Keeper:          Keeper{HarvestInterval: "1h"},
	}
	cfg.Vault.DepositLimit = vault.Unlimited
	cfg.Vault.Rewards = operator.Hex()
	cfg.Vault.Roles = vault.RolesConfig{
		Governance: operator.Hex(),
		Management: operator.Hex(),
		Guardian:   operator.Hex(),
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func defaultKeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "operator.key")
}
