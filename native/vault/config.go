package vault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Unlimited is the config spelling of a MaxUint256 amount.
const Unlimited = "unlimited"

// Config captures the runtime configuration of the vault module. Amounts are
// decimal strings in asset base units so they survive TOML and YAML intact.
type Config struct {
	DepositLimit            string            `toml:"DepositLimit" yaml:"depositLimit"`
	ManagementFeeBps        uint64            `toml:"ManagementFeeBps" yaml:"managementFeeBps"`
	PerformanceFeeBps       uint64            `toml:"PerformanceFeeBps" yaml:"performanceFeeBps"`
	LockedProfitDegradation string            `toml:"LockedProfitDegradation" yaml:"lockedProfitDegradation"`
	Rewards                 string            `toml:"Rewards" yaml:"rewards"`
	BlockLock               bool              `toml:"BlockLock" yaml:"blockLock"`
	// Contracts lists callers that need governance approval to deposit or
	// withdraw.
	Contracts []string `toml:"Contracts" yaml:"contracts"`
	// ClaimAsset names the token distributed to share holders, if any.
	ClaimAsset  string            `toml:"ClaimAsset" yaml:"claimAsset"`
	HealthCheck HealthCheckConfig `toml:"healthcheck" yaml:"healthcheck"`
	Roles       RolesConfig       `toml:"roles" yaml:"roles"`
}

// HealthCheckConfig holds the defaults applied to new strategies.
type HealthCheckConfig struct {
	Enforce        bool   `toml:"Enforce" yaml:"enforce"`
	ProfitLimitBps uint64 `toml:"ProfitLimitBps" yaml:"profitLimitBps"`
	LossLimitBps   uint64 `toml:"LossLimitBps" yaml:"lossLimitBps"`
}

// RolesConfig names the operator addresses as hex strings.
type RolesConfig struct {
	Governance string `toml:"Governance" yaml:"governance"`
	Management string `toml:"Management" yaml:"management"`
	Guardian   string `toml:"Guardian" yaml:"guardian"`
}

// DefaultConfig mirrors the parameters a freshly deployed vault starts with.
func DefaultConfig() Config {
	return Config{
		DepositLimit:            "0",
		ManagementFeeBps:        200,
		PerformanceFeeBps:       1000,
		LockedProfitDegradation: DefaultLockedProfitDegradation.Dec(),
		HealthCheck: HealthCheckConfig{
			Enforce:        true,
			ProfitLimitBps: DefaultProfitLimitBps,
			LossLimitBps:   DefaultLossLimitBps,
		},
	}
}

// ParseAmount reads a decimal amount, accepting Unlimited for MaxUint256 and
// an empty string for zero.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "":
		return zero(), nil
	case Unlimited:
		return clone(MaxUint256), nil
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("vault config: invalid amount %q: %w", raw, err)
	}
	return v, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("vault config: %s %q is not a hex address", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// Validate checks every bound the engine would enforce at initialisation.
func (c Config) Validate() error {
	if _, err := ParseAmount(c.DepositLimit); err != nil {
		return err
	}
	if c.ManagementFeeBps > MaxBps || c.PerformanceFeeBps > MaxPerformanceFeeBps {
		return ErrFeeTooHigh
	}
	degradation, err := ParseAmount(c.LockedProfitDegradation)
	if err != nil {
		return err
	}
	if degradation.Gt(DegradationCoefficient) {
		return ErrDegradationTooHigh
	}
	rewards, err := parseAddress("Rewards", c.Rewards)
	if err != nil {
		return err
	}
	if rewards == (common.Address{}) {
		return errors.New("vault config: Rewards must be set")
	}
	if err := validateHealthCheck(c.HealthCheck.toHealthCheck()); err != nil {
		return err
	}
	roles, err := c.Roles.Parse()
	if err != nil {
		return err
	}
	if roles.Governance == (common.Address{}) {
		return errors.New("vault config: roles.Governance must be set")
	}
	if _, err := c.ContractSet(); err != nil {
		return err
	}
	return nil
}

// ContractSet parses the configured contract callers.
func (c Config) ContractSet() (ContractSet, error) {
	set := make(ContractSet, len(c.Contracts))
	for _, raw := range c.Contracts {
		addr, err := parseAddress("Contracts", raw)
		if err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			return nil, errors.New("vault config: Contracts entries must be set")
		}
		set[addr] = true
	}
	return set, nil
}

func (h HealthCheckConfig) toHealthCheck() HealthCheck {
	return HealthCheck{
		EnforceChangeLimit: h.Enforce,
		ProfitLimitBps:     h.ProfitLimitBps,
		LossLimitBps:       h.LossLimitBps,
	}
}

// Parse converts the configured operator addresses.
func (r RolesConfig) Parse() (Roles, error) {
	gov, err := parseAddress("roles.Governance", r.Governance)
	if err != nil {
		return Roles{}, err
	}
	mgmt, err := parseAddress("roles.Management", r.Management)
	if err != nil {
		return Roles{}, err
	}
	guardian, err := parseAddress("roles.Guardian", r.Guardian)
	if err != nil {
		return Roles{}, err
	}
	return Roles{Governance: gov, Management: mgmt, Guardian: guardian}, nil
}

// ToGenesis converts a validated config into initialisation parameters.
func (c Config) ToGenesis() (Genesis, error) {
	if err := c.Validate(); err != nil {
		return Genesis{}, err
	}
	limit, _ := ParseAmount(c.DepositLimit)
	var degradation *uint256.Int
	if strings.TrimSpace(c.LockedProfitDegradation) != "" {
		degradation, _ = ParseAmount(c.LockedProfitDegradation)
	}
	rewards, _ := parseAddress("Rewards", c.Rewards)
	return Genesis{
		DepositLimit:            limit,
		ManagementFeeBps:        c.ManagementFeeBps,
		PerformanceFeeBps:       c.PerformanceFeeBps,
		LockedProfitDegradation: degradation,
		Rewards:                 rewards,
		HealthCheck:             c.HealthCheck.toHealthCheck(),
	}, nil
}
