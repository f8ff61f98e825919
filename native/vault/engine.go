package vault

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"vaultledger/core/events"
	nativecommon "vaultledger/native/common"
)

const moduleName = "vault"

type engineState interface {
	GetVault() (*Vault, error)
	PutVault(v *Vault) error
	GetStrategyEntry(addr common.Address) (*StrategyEntry, error)
	PutStrategyEntry(entry *StrategyEntry) error
	ShareBalance(owner common.Address) (*uint256.Int, error)
	SetShareBalance(owner common.Address, amount *uint256.Int) error
	ShareAllowance(owner, spender common.Address) (*uint256.Int, error)
	SetShareAllowance(owner, spender common.Address, amount *uint256.Int) error
	LastActionBlock(addr common.Address) (uint64, bool, error)
	SetLastActionBlock(addr common.Address, height uint64) error
	ShareCheckpoints(owner common.Address) ([]Checkpoint, error)
	PutShareCheckpoints(owner common.Address, cps []Checkpoint) error
	ClaimAccount(owner common.Address) (*ClaimAccount, error)
	PutClaimAccount(owner common.Address, acct *ClaimAccount) error
	ContractApproved(addr common.Address) (bool, error)
	SetContractApproved(addr common.Address, approved bool) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Genesis holds the parameters a vault is created with.
type Genesis struct {
	DepositLimit            *uint256.Int
	ManagementFeeBps        uint64
	PerformanceFeeBps       uint64
	LockedProfitDegradation *uint256.Int
	Rewards                 common.Address
	HealthCheck             HealthCheck
}

// Engine runs every state transition of a single vault. It is not safe for
// concurrent use; the host serialises calls.
type Engine struct {
	state        engineState
	asset        Asset
	auth         Authorizer
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	vaultAddress common.Address
	nowFn        func() int64
	blockHeight  uint64
	blockLock    bool
	contracts    ContractView
	claimAsset   Asset

	guard        nativecommon.ReentrancyGuard
	pending      []events.Event
	strategies   map[common.Address]Strategy
	customChecks map[common.Address]CustomCheck
}

// NewEngine creates a vault engine bound to the vault's own address, the
// pooled asset and the authorizer consulted for privileged calls.
func NewEngine(vaultAddr common.Address, asset Asset, auth Authorizer) *Engine {
	return &Engine{
		asset:        asset,
		auth:         auth,
		vaultAddress: vaultAddr,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		strategies:   make(map[common.Address]Strategy),
		customChecks: make(map[common.Address]CustomCheck),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the unix-seconds clock. Passing nil restores wall time.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the height used by the per-block action lock.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetBlockLock toggles the rule that a caller may deposit, withdraw or
// transfer at most once per block.
func (e *Engine) SetBlockLock(enabled bool) {
	if e == nil {
		return
	}
	e.blockLock = enabled
}

// SetContractView configures how contract callers are told apart. Contract
// callers must be approved by governance before they may deposit or
// withdraw. Passing nil treats every caller as an account.
func (e *Engine) SetContractView(view ContractView) {
	if e == nil {
		return
	}
	e.contracts = view
}

// SetClaimAsset configures the secondary token distributed to share holders.
// Without one the claim operations fail with ErrClaimAssetUnset.
func (e *Engine) SetClaimAsset(asset Asset) {
	if e == nil {
		return
	}
	e.claimAsset = asset
}

// Address returns the vault's own principal.
func (e *Engine) Address() common.Address { return e.vaultAddress }

// AttachStrategy binds a strategy collaborator to its ledger entry. Entries
// loaded from persistent state need their collaborator attached again before
// they can report or be withdrawn from.
func (e *Engine) AttachStrategy(s Strategy) error {
	if s == nil || s.Address() == (common.Address{}) {
		return ErrInvalidRecipient
	}
	e.strategies[s.Address()] = s
	return nil
}

// Initialize creates the vault record.
func (e *Engine) Initialize(g Genesis) error {
	return e.atomic(func() error {
		if e.asset == nil {
			return ErrNilAsset
		}
		existing, err := e.state.GetVault()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInitialised
		}
		if g.ManagementFeeBps > MaxBps || g.PerformanceFeeBps > MaxPerformanceFeeBps {
			return ErrFeeTooHigh
		}
		if err := validateHealthCheck(g.HealthCheck); err != nil {
			return err
		}
		if err := e.validRecipient(g.Rewards); err != nil {
			return err
		}
		degradation := clone(g.LockedProfitDegradation)
		if g.LockedProfitDegradation == nil {
			degradation = clone(DefaultLockedProfitDegradation)
		}
		if degradation.Gt(DegradationCoefficient) {
			return ErrDegradationTooHigh
		}
		now := e.now()
		v := &Vault{
			Asset:                   e.asset.Symbol(),
			Decimals:                e.asset.Decimals(),
			DepositLimit:            clone(g.DepositLimit),
			ManagementFeeBps:        g.ManagementFeeBps,
			PerformanceFeeBps:       g.PerformanceFeeBps,
			LockedProfitDegradation: degradation,
			LastReport:              now,
			Activation:              now,
			Rewards:                 g.Rewards,
			DefaultHealthCheck:      g.HealthCheck,
		}
		v.ensureDefaults()
		return e.state.PutVault(v)
	})
}

// Vault returns a copy of the persisted vault record.
func (e *Engine) Vault() (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadVault()
}

// atomic runs fn as one transition: reentrant calls are refused, state is
// reverted and buffered events dropped when fn fails.
func (e *Engine) atomic(fn func() error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.guard.Enter(); err != nil {
		return ErrReentrantCall
	}
	defer e.guard.Exit()
	snapshot := e.state.Snapshot()
	e.pending = nil
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.pending = nil
		return err
	}
	buffered := e.pending
	e.pending = nil
	for _, evt := range buffered {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	if e.guard.Entered() {
		e.pending = append(e.pending, evt)
		return
	}
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) loadVault() (*Vault, error) {
	v, err := e.state.GetVault()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotInitialised
	}
	v.ensureDefaults()
	return v, nil
}

// loadEntry returns the entry for addr, or an unregistered placeholder.
func (e *Engine) loadEntry(addr common.Address) (*StrategyEntry, error) {
	entry, err := e.state.GetStrategyEntry(addr)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = &StrategyEntry{Address: addr}
	}
	entry.ensureDefaults()
	return entry, nil
}

func (e *Engine) registeredEntry(addr common.Address) (*StrategyEntry, error) {
	entry, err := e.loadEntry(addr)
	if err != nil {
		return nil, err
	}
	if !entry.Status.Registered() {
		return nil, ErrStrategyNotFound
	}
	return entry, nil
}

func (e *Engine) collaborator(addr common.Address) (Strategy, error) {
	s, ok := e.strategies[addr]
	if !ok || s == nil {
		return nil, ErrStrategyDetached
	}
	return s, nil
}

func (e *Engine) validRecipient(addr common.Address) error {
	if addr == (common.Address{}) || addr == e.vaultAddress {
		return ErrInvalidRecipient
	}
	return nil
}

// checkOpen rejects user facing calls while the vault or module is paused.
func (e *Engine) checkOpen(v *Vault) error {
	if v.Paused {
		return ErrPaused
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// defend rejects contract callers governance has not approved.
func (e *Engine) defend(caller common.Address) error {
	if e.contracts == nil || !e.contracts.IsContract(caller) {
		return nil
	}
	ok, err := e.state.ContractApproved(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrContractNotApproved
	}
	return nil
}

// lockBlock enforces and records the per-caller block lock.
func (e *Engine) lockBlock(caller common.Address) error {
	if !e.blockLock {
		return nil
	}
	last, ok, err := e.state.LastActionBlock(caller)
	if err != nil {
		return err
	}
	if ok && last >= e.blockHeight {
		return ErrBlockLocked
	}
	return e.state.SetLastActionBlock(caller, e.blockHeight)
}

func (e *Engine) vaultBalance() (*uint256.Int, error) {
	bal, err := e.asset.BalanceOf(e.vaultAddress)
	if err != nil {
		return nil, fmt.Errorf("vault engine: read vault balance: %w", err)
	}
	if bal == nil {
		return zero(), nil
	}
	return bal, nil
}

func (e *Engine) balanceOf(owner common.Address) (*uint256.Int, error) {
	bal, err := e.asset.BalanceOf(owner)
	if err != nil {
		return nil, fmt.Errorf("vault engine: read balance: %w", err)
	}
	if bal == nil {
		return zero(), nil
	}
	return bal, nil
}

// safeTransfer sends amount from the vault to `to` and checks that the
// recipient's balance grew by exactly that much.
func (e *Engine) safeTransfer(to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	before, err := e.balanceOf(to)
	if err != nil {
		return err
	}
	if err := e.asset.Transfer(e.vaultAddress, to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return e.verifyCredit(to, before, amount)
}

// safeTransferFrom pulls amount from `from` into the vault using the allowance
// `from` granted the vault.
func (e *Engine) safeTransferFrom(from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	before, err := e.vaultBalance()
	if err != nil {
		return err
	}
	if err := e.asset.TransferFrom(e.vaultAddress, from, e.vaultAddress, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return e.verifyCredit(e.vaultAddress, before, amount)
}

func (e *Engine) verifyCredit(owner common.Address, before, amount *uint256.Int) error {
	after, err := e.balanceOf(owner)
	if err != nil {
		return err
	}
	want, err := checkedAdd(before, amount)
	if err != nil {
		return err
	}
	if !after.Eq(want) {
		return ErrTransferFailed
	}
	return nil
}

// CheckInvariants verifies the ledger sums and queue rules against the
// persisted state.
func (e *Engine) CheckInvariants() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	v, err := e.loadVault()
	if err != nil {
		return err
	}
	if v.DebtRatio > MaxBps {
		return fmt.Errorf("%w: debt ratio %d above %d", ErrInvariantViolation, v.DebtRatio, MaxBps)
	}
	var ratioSum uint64
	debtSum := zero()
	for _, addr := range v.Strategies {
		entry, err := e.loadEntry(addr)
		if err != nil {
			return err
		}
		if !entry.Status.Registered() {
			if !entry.TotalDebt.IsZero() || entry.DebtRatio != 0 {
				return fmt.Errorf("%w: retired strategy %s still holds debt", ErrInvariantViolation, addr.Hex())
			}
			continue
		}
		if entry.DebtRatio > MaxBps || ratioSum > MaxBps-entry.DebtRatio {
			return fmt.Errorf("%w: strategy %s debt ratio %d pushes the sum above %d", ErrInvariantViolation, addr.Hex(), entry.DebtRatio, MaxBps)
		}
		ratioSum += entry.DebtRatio
		if _, overflow := debtSum.AddOverflow(debtSum, entry.TotalDebt); overflow {
			return fmt.Errorf("%w: strategy debt sum overflows", ErrInvariantViolation)
		}
	}
	if ratioSum != v.DebtRatio {
		return fmt.Errorf("%w: debt ratio %d, strategies sum to %d", ErrInvariantViolation, v.DebtRatio, ratioSum)
	}
	if !debtSum.Eq(v.TotalDebt) {
		return fmt.Errorf("%w: total debt %s, strategies sum to %s", ErrInvariantViolation, v.TotalDebt.Dec(), debtSum.Dec())
	}
	if len(v.WithdrawalQueue) > MaxStrategies {
		return fmt.Errorf("%w: queue length %d", ErrInvariantViolation, len(v.WithdrawalQueue))
	}
	seen := make(map[common.Address]struct{}, len(v.WithdrawalQueue))
	for _, addr := range v.WithdrawalQueue {
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("%w: %s queued twice", ErrInvariantViolation, addr.Hex())
		}
		seen[addr] = struct{}{}
		entry, err := e.loadEntry(addr)
		if err != nil {
			return err
		}
		if !entry.Status.Registered() {
			return fmt.Errorf("%w: %s queued while %s", ErrInvariantViolation, addr.Hex(), entry.Status)
		}
	}
	return nil
}
