package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/native/vault"
)

type storedHealthCheck struct {
	EnforceChangeLimit bool
	ProfitLimitBps     uint64
	LossLimitBps       uint64
}

func newStoredHealthCheck(hc vault.HealthCheck) storedHealthCheck {
	return storedHealthCheck{
		EnforceChangeLimit: hc.EnforceChangeLimit,
		ProfitLimitBps:     hc.ProfitLimitBps,
		LossLimitBps:       hc.LossLimitBps,
	}
}

func (s storedHealthCheck) toHealthCheck() vault.HealthCheck {
	return vault.HealthCheck{
		EnforceChangeLimit: s.EnforceChangeLimit,
		ProfitLimitBps:     s.ProfitLimitBps,
		LossLimitBps:       s.LossLimitBps,
	}
}

type storedVault struct {
	Asset                   string
	Decimals                uint8
	TotalShares             *big.Int
	TotalDebt               *big.Int
	DebtRatio               uint64
	DepositLimit            *big.Int
	ManagementFeeBps        uint64
	PerformanceFeeBps       uint64
	LockedProfit            *big.Int
	LockedProfitDegradation *big.Int
	LastReport              uint64
	Activation              uint64
	WithdrawalQueue         []common.Address
	Strategies              []common.Address
	EmergencyShutdown       bool
	Paused                  bool
	Rewards                 common.Address
	DefaultHealthCheck      storedHealthCheck
	ClaimIndex              *big.Int
	ClaimBalance            *big.Int
}

func newStoredVault(v *vault.Vault) *storedVault {
	return &storedVault{
		Asset:                   v.Asset,
		Decimals:                v.Decimals,
		TotalShares:             toBig(v.TotalShares),
		TotalDebt:               toBig(v.TotalDebt),
		DebtRatio:               v.DebtRatio,
		DepositLimit:            toBig(v.DepositLimit),
		ManagementFeeBps:        v.ManagementFeeBps,
		PerformanceFeeBps:       v.PerformanceFeeBps,
		LockedProfit:            toBig(v.LockedProfit),
		LockedProfitDegradation: toBig(v.LockedProfitDegradation),
		LastReport:              v.LastReport,
		Activation:              v.Activation,
		WithdrawalQueue:         append([]common.Address{}, v.WithdrawalQueue...),
		Strategies:              append([]common.Address{}, v.Strategies...),
		EmergencyShutdown:       v.EmergencyShutdown,
		Paused:                  v.Paused,
		Rewards:                 v.Rewards,
		DefaultHealthCheck:      newStoredHealthCheck(v.DefaultHealthCheck),
		ClaimIndex:              toBig(v.ClaimIndex),
		ClaimBalance:            toBig(v.ClaimBalance),
	}
}

func (s *storedVault) toVault() (*vault.Vault, error) {
	out := &vault.Vault{
		Asset:              s.Asset,
		Decimals:           s.Decimals,
		DebtRatio:          s.DebtRatio,
		ManagementFeeBps:   s.ManagementFeeBps,
		PerformanceFeeBps:  s.PerformanceFeeBps,
		LastReport:         s.LastReport,
		Activation:         s.Activation,
		WithdrawalQueue:    append([]common.Address{}, s.WithdrawalQueue...),
		Strategies:         append([]common.Address{}, s.Strategies...),
		EmergencyShutdown:  s.EmergencyShutdown,
		Paused:             s.Paused,
		Rewards:            s.Rewards,
		DefaultHealthCheck: s.DefaultHealthCheck.toHealthCheck(),
	}
	var err error
	if out.TotalShares, err = fromBig(s.TotalShares); err != nil {
		return nil, err
	}
	if out.TotalDebt, err = fromBig(s.TotalDebt); err != nil {
		return nil, err
	}
	if out.DepositLimit, err = fromBig(s.DepositLimit); err != nil {
		return nil, err
	}
	if out.LockedProfit, err = fromBig(s.LockedProfit); err != nil {
		return nil, err
	}
	if out.LockedProfitDegradation, err = fromBig(s.LockedProfitDegradation); err != nil {
		return nil, err
	}
	if out.ClaimIndex, err = fromBig(s.ClaimIndex); err != nil {
		return nil, err
	}
	if out.ClaimBalance, err = fromBig(s.ClaimBalance); err != nil {
		return nil, err
	}
	return out, nil
}

type storedStrategyEntry struct {
	Address             common.Address
	Status              uint8
	PerformanceFeeBps   uint64
	Activation          uint64
	DebtRatio           uint64
	MinDebtPerHarvest   *big.Int
	MaxDebtPerHarvest   *big.Int
	LastReport          uint64
	TotalDebt           *big.Int
	TotalGain           *big.Int
	TotalLoss           *big.Int
	HealthCheck         storedHealthCheck
	HealthCheckOverride bool
}

func newStoredStrategyEntry(e *vault.StrategyEntry) *storedStrategyEntry {
	return &storedStrategyEntry{
		Address:             e.Address,
		Status:              uint8(e.Status),
		PerformanceFeeBps:   e.PerformanceFeeBps,
		Activation:          e.Activation,
		DebtRatio:           e.DebtRatio,
		MinDebtPerHarvest:   toBig(e.MinDebtPerHarvest),
		MaxDebtPerHarvest:   toBig(e.MaxDebtPerHarvest),
		LastReport:          e.LastReport,
		TotalDebt:           toBig(e.TotalDebt),
		TotalGain:           toBig(e.TotalGain),
		TotalLoss:           toBig(e.TotalLoss),
		HealthCheck:         newStoredHealthCheck(e.HealthCheck),
		HealthCheckOverride: e.HealthCheckOverride,
	}
}

func (s *storedStrategyEntry) toEntry() (*vault.StrategyEntry, error) {
	out := &vault.StrategyEntry{
		Address:             s.Address,
		Status:              vault.StrategyStatus(s.Status),
		PerformanceFeeBps:   s.PerformanceFeeBps,
		Activation:          s.Activation,
		DebtRatio:           s.DebtRatio,
		LastReport:          s.LastReport,
		HealthCheck:         s.HealthCheck.toHealthCheck(),
		HealthCheckOverride: s.HealthCheckOverride,
	}
	var err error
	if out.MinDebtPerHarvest, err = fromBig(s.MinDebtPerHarvest); err != nil {
		return nil, err
	}
	if out.MaxDebtPerHarvest, err = fromBig(s.MaxDebtPerHarvest); err != nil {
		return nil, err
	}
	if out.TotalDebt, err = fromBig(s.TotalDebt); err != nil {
		return nil, err
	}
	if out.TotalGain, err = fromBig(s.TotalGain); err != nil {
		return nil, err
	}
	if out.TotalLoss, err = fromBig(s.TotalLoss); err != nil {
		return nil, err
	}
	return out, nil
}

type storedCheckpoint struct {
	Block  uint64
	Shares *big.Int
}

type storedClaimAccount struct {
	Index     *big.Int
	Claimable *big.Int
}

// VaultStore is the persistence view the vault engine runs on. All vault
// stores of a Manager share its journal, so one snapshot covers the vault
// and every asset balance it moves.
type VaultStore struct {
	m     *Manager
	vault common.Address
}

// VaultStore returns the state view for the vault at addr.
func (m *Manager) VaultStore(addr common.Address) *VaultStore {
	return &VaultStore{m: m, vault: addr}
}

func (s *VaultStore) GetVault() (*vault.Vault, error) {
	var stored storedVault
	ok, err := s.m.KVGet(VaultRecordKey(s.vault), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load vault %s: %w", s.vault.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	return stored.toVault()
}

func (s *VaultStore) PutVault(v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	return s.m.KVPut(VaultRecordKey(s.vault), newStoredVault(v))
}

func (s *VaultStore) GetStrategyEntry(addr common.Address) (*vault.StrategyEntry, error) {
	var stored storedStrategyEntry
	ok, err := s.m.KVGet(VaultStrategyKey(s.vault, addr), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load strategy %s: %w", addr.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	return stored.toEntry()
}

func (s *VaultStore) PutStrategyEntry(entry *vault.StrategyEntry) error {
	if entry == nil {
		return fmt.Errorf("state: nil strategy entry")
	}
	return s.m.KVPut(VaultStrategyKey(s.vault, entry.Address), newStoredStrategyEntry(entry))
}

func (s *VaultStore) ShareBalance(owner common.Address) (*uint256.Int, error) {
	return s.m.getAmount(VaultSharesKey(s.vault, owner))
}

func (s *VaultStore) SetShareBalance(owner common.Address, amount *uint256.Int) error {
	return s.m.putAmount(VaultSharesKey(s.vault, owner), amount)
}

func (s *VaultStore) ShareAllowance(owner, spender common.Address) (*uint256.Int, error) {
	return s.m.getAmount(VaultAllowanceKey(s.vault, owner, spender))
}

func (s *VaultStore) SetShareAllowance(owner, spender common.Address, amount *uint256.Int) error {
	return s.m.putAmount(VaultAllowanceKey(s.vault, owner, spender), amount)
}

func (s *VaultStore) LastActionBlock(addr common.Address) (uint64, bool, error) {
	var height uint64
	ok, err := s.m.KVGet(VaultLastBlockKey(s.vault, addr), &height)
	if err != nil {
		return 0, false, err
	}
	return height, ok, nil
}

func (s *VaultStore) SetLastActionBlock(addr common.Address, height uint64) error {
	return s.m.KVPut(VaultLastBlockKey(s.vault, addr), height)
}

func (s *VaultStore) ShareCheckpoints(owner common.Address) ([]vault.Checkpoint, error) {
	var stored []storedCheckpoint
	if _, err := s.m.KVGet(VaultCheckpointKey(s.vault, owner), &stored); err != nil {
		return nil, fmt.Errorf("state: load checkpoints %s: %w", owner.Hex(), err)
	}
	out := make([]vault.Checkpoint, len(stored))
	for i, cp := range stored {
		shares, err := fromBig(cp.Shares)
		if err != nil {
			return nil, err
		}
		out[i] = vault.Checkpoint{Block: cp.Block, Shares: shares}
	}
	return out, nil
}

func (s *VaultStore) PutShareCheckpoints(owner common.Address, cps []vault.Checkpoint) error {
	stored := make([]storedCheckpoint, len(cps))
	for i, cp := range cps {
		stored[i] = storedCheckpoint{Block: cp.Block, Shares: toBig(cp.Shares)}
	}
	return s.m.KVPut(VaultCheckpointKey(s.vault, owner), stored)
}

func (s *VaultStore) ClaimAccount(owner common.Address) (*vault.ClaimAccount, error) {
	var stored storedClaimAccount
	ok, err := s.m.KVGet(VaultClaimKey(s.vault, owner), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load claim %s: %w", owner.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	out := &vault.ClaimAccount{}
	if out.Index, err = fromBig(stored.Index); err != nil {
		return nil, err
	}
	if out.Claimable, err = fromBig(stored.Claimable); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *VaultStore) PutClaimAccount(owner common.Address, acct *vault.ClaimAccount) error {
	if acct == nil {
		return fmt.Errorf("state: nil claim account")
	}
	return s.m.KVPut(VaultClaimKey(s.vault, owner), &storedClaimAccount{
		Index:     toBig(acct.Index),
		Claimable: toBig(acct.Claimable),
	})
}

func (s *VaultStore) ContractApproved(addr common.Address) (bool, error) {
	var approved bool
	if _, err := s.m.KVGet(VaultContractKey(s.vault, addr), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

func (s *VaultStore) SetContractApproved(addr common.Address, approved bool) error {
	return s.m.KVPut(VaultContractKey(s.vault, addr), approved)
}

func (s *VaultStore) Snapshot() int { return s.m.Snapshot() }

func (s *VaultStore) RevertToSnapshot(id int) { s.m.RevertToSnapshot(id) }
