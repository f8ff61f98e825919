package vault

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vaultledger/core/events"
)

var (
	govAddr      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	mgmtAddr     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	guardianAddr = common.HexToAddress("0x0000000000000000000000000000000000000003")
	rewardsAddr  = common.HexToAddress("0x0000000000000000000000000000000000000004")
	vaultAddr    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	aliceAddr    = common.HexToAddress("0x0000000000000000000000000000000000000010")
	bobAddr      = common.HexToAddress("0x0000000000000000000000000000000000000011")
	sinkAddr     = common.HexToAddress("0x00000000000000000000000000000000000000de")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

type mockData struct {
	vault       *Vault
	entries     map[common.Address]*StrategyEntry
	shares      map[common.Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	blocks      map[common.Address]uint64
	tokens      map[common.Address]*uint256.Int
	tokenAllows map[allowanceKey]*uint256.Int
	checkpoints map[common.Address][]Checkpoint
	claims      map[common.Address]*ClaimAccount
	contracts   map[common.Address]bool
	claimTokens map[common.Address]*uint256.Int
}

func (d *mockData) clone() *mockData {
	out := &mockData{
		vault:       d.vault.Clone(),
		entries:     make(map[common.Address]*StrategyEntry, len(d.entries)),
		shares:      cloneAmounts(d.shares),
		allowances:  cloneAllowances(d.allowances),
		blocks:      make(map[common.Address]uint64, len(d.blocks)),
		tokens:      cloneAmounts(d.tokens),
		tokenAllows: cloneAllowances(d.tokenAllows),
		checkpoints: make(map[common.Address][]Checkpoint, len(d.checkpoints)),
		claims:      make(map[common.Address]*ClaimAccount, len(d.claims)),
		contracts:   make(map[common.Address]bool, len(d.contracts)),
		claimTokens: cloneAmounts(d.claimTokens),
	}
	for k, v := range d.entries {
		out.entries[k] = v.Clone()
	}
	for k, v := range d.blocks {
		out.blocks[k] = v
	}
	for k, v := range d.checkpoints {
		out.checkpoints[k] = cloneCheckpoints(v)
	}
	for k, v := range d.claims {
		out.claims[k] = cloneClaimAccount(v)
	}
	for k, v := range d.contracts {
		out.contracts[k] = v
	}
	return out
}

func cloneCheckpoints(in []Checkpoint) []Checkpoint {
	out := make([]Checkpoint, len(in))
	for i, cp := range in {
		out[i] = Checkpoint{Block: cp.Block, Shares: clone(cp.Shares)}
	}
	return out
}

func cloneClaimAccount(in *ClaimAccount) *ClaimAccount {
	if in == nil {
		return nil
	}
	return &ClaimAccount{Index: clone(in.Index), Claimable: clone(in.Claimable)}
}

func cloneAmounts(in map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func cloneAllowances(in map[allowanceKey]*uint256.Int) map[allowanceKey]*uint256.Int {
	out := make(map[allowanceKey]*uint256.Int, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

// mockState keeps the vault records and the asset ledger together so a
// snapshot covers token movements as well.
type mockState struct {
	data      *mockData
	snapshots []*mockData
}

func newMockState() *mockState {
	return &mockState{data: &mockData{
		entries:     make(map[common.Address]*StrategyEntry),
		shares:      make(map[common.Address]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
		blocks:      make(map[common.Address]uint64),
		tokens:      make(map[common.Address]*uint256.Int),
		tokenAllows: make(map[allowanceKey]*uint256.Int),
		checkpoints: make(map[common.Address][]Checkpoint),
		claims:      make(map[common.Address]*ClaimAccount),
		contracts:   make(map[common.Address]bool),
		claimTokens: make(map[common.Address]*uint256.Int),
	}}
}

func (m *mockState) GetVault() (*Vault, error) { return m.data.vault.Clone(), nil }

func (m *mockState) PutVault(v *Vault) error {
	m.data.vault = v.Clone()
	return nil
}

func (m *mockState) GetStrategyEntry(addr common.Address) (*StrategyEntry, error) {
	return m.data.entries[addr].Clone(), nil
}

func (m *mockState) PutStrategyEntry(entry *StrategyEntry) error {
	m.data.entries[entry.Address] = entry.Clone()
	return nil
}

func (m *mockState) ShareBalance(owner common.Address) (*uint256.Int, error) {
	return clone(m.data.shares[owner]), nil
}

func (m *mockState) SetShareBalance(owner common.Address, amount *uint256.Int) error {
	m.data.shares[owner] = clone(amount)
	return nil
}

func (m *mockState) ShareAllowance(owner, spender common.Address) (*uint256.Int, error) {
	return clone(m.data.allowances[allowanceKey{owner, spender}]), nil
}

func (m *mockState) SetShareAllowance(owner, spender common.Address, amount *uint256.Int) error {
	m.data.allowances[allowanceKey{owner, spender}] = clone(amount)
	return nil
}

func (m *mockState) LastActionBlock(addr common.Address) (uint64, bool, error) {
	h, ok := m.data.blocks[addr]
	return h, ok, nil
}

func (m *mockState) SetLastActionBlock(addr common.Address, height uint64) error {
	m.data.blocks[addr] = height
	return nil
}

func (m *mockState) ShareCheckpoints(owner common.Address) ([]Checkpoint, error) {
	return cloneCheckpoints(m.data.checkpoints[owner]), nil
}

func (m *mockState) PutShareCheckpoints(owner common.Address, cps []Checkpoint) error {
	m.data.checkpoints[owner] = cloneCheckpoints(cps)
	return nil
}

func (m *mockState) ClaimAccount(owner common.Address) (*ClaimAccount, error) {
	return cloneClaimAccount(m.data.claims[owner]), nil
}

func (m *mockState) PutClaimAccount(owner common.Address, acct *ClaimAccount) error {
	m.data.claims[owner] = cloneClaimAccount(acct)
	return nil
}

func (m *mockState) ContractApproved(addr common.Address) (bool, error) {
	return m.data.contracts[addr], nil
}

func (m *mockState) SetContractApproved(addr common.Address, approved bool) error {
	m.data.contracts[addr] = approved
	return nil
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.data.clone())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	m.data = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

func (m *mockState) tokenBalance(addr common.Address) *uint256.Int {
	return clone(m.data.tokens[addr])
}

// mockAsset is a token whose ledger lives inside mockState.
type mockAsset struct {
	state    *mockState
	decimals uint8
	// silent makes transfers report success without moving funds.
	silent bool
}

func (a *mockAsset) Symbol() string  { return "USDX" }
func (a *mockAsset) Decimals() uint8 { return a.decimals }

func (a *mockAsset) BalanceOf(owner common.Address) (*uint256.Int, error) {
	return a.state.tokenBalance(owner), nil
}

func (a *mockAsset) Transfer(from, to common.Address, amount *uint256.Int) error {
	if a.silent {
		return nil
	}
	return a.move(from, to, amount)
}

func (a *mockAsset) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if a.silent {
		return nil
	}
	key := allowanceKey{from, spender}
	allowance := clone(a.state.data.tokenAllows[key])
	if !allowance.Eq(MaxUint256) {
		if allowance.Lt(amount) {
			return errors.New("mock asset: allowance exceeded")
		}
		a.state.data.tokenAllows[key] = new(uint256.Int).Sub(allowance, amount)
	}
	return a.move(from, to, amount)
}

func (a *mockAsset) Approve(owner, spender common.Address, amount *uint256.Int) error {
	a.state.data.tokenAllows[allowanceKey{owner, spender}] = clone(amount)
	return nil
}

func (a *mockAsset) move(from, to common.Address, amount *uint256.Int) error {
	bal := a.state.tokenBalance(from)
	if bal.Lt(amount) {
		return errors.New("mock asset: insufficient balance")
	}
	a.state.data.tokens[from] = new(uint256.Int).Sub(bal, amount)
	a.state.data.tokens[to] = new(uint256.Int).Add(a.state.tokenBalance(to), amount)
	return nil
}

func (a *mockAsset) mint(to common.Address, amount *uint256.Int) {
	a.state.data.tokens[to] = new(uint256.Int).Add(a.state.tokenBalance(to), amount)
}

// mockClaimToken is the secondary token handed out to share holders. Its
// ledger also lives inside mockState.
type mockClaimToken struct {
	state *mockState
}

func (c *mockClaimToken) Symbol() string  { return "CLAIM" }
func (c *mockClaimToken) Decimals() uint8 { return 18 }

func (c *mockClaimToken) BalanceOf(owner common.Address) (*uint256.Int, error) {
	return clone(c.state.data.claimTokens[owner]), nil
}

func (c *mockClaimToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	bal := clone(c.state.data.claimTokens[from])
	if bal.Lt(amount) {
		return errors.New("mock claim token: insufficient balance")
	}
	c.state.data.claimTokens[from] = new(uint256.Int).Sub(bal, amount)
	c.state.data.claimTokens[to] = new(uint256.Int).Add(clone(c.state.data.claimTokens[to]), amount)
	return nil
}

func (c *mockClaimToken) TransferFrom(_, from, to common.Address, amount *uint256.Int) error {
	return c.Transfer(from, to, amount)
}

func (c *mockClaimToken) Approve(common.Address, common.Address, *uint256.Int) error { return nil }

func (c *mockClaimToken) mint(to common.Address, amount uint64) {
	c.state.data.claimTokens[to] = new(uint256.Int).AddUint64(clone(c.state.data.claimTokens[to]), amount)
}

// testStrategy holds its position as a plain asset balance.
type testStrategy struct {
	addr  common.Address
	vault common.Address
	want  string
	asset *mockAsset
	// withdrawLoss is realised on every withdrawal, capped at the request.
	withdrawLoss *uint256.Int
	// liquidCap bounds how much a single withdrawal can free.
	liquidCap *uint256.Int
	// overclaim makes Withdraw report more than it sent.
	overclaim  bool
	onWithdraw func()
	migratedTo common.Address
}

func (s *testStrategy) Address() common.Address { return s.addr }
func (s *testStrategy) Want() string            { return s.want }
func (s *testStrategy) Vault() common.Address   { return s.vault }

func (s *testStrategy) EstimatedTotalAssets() (*uint256.Int, error) {
	return s.asset.BalanceOf(s.addr)
}

func (s *testStrategy) Withdraw(amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if s.onWithdraw != nil {
		s.onWithdraw()
	}
	loss := zero()
	if s.withdrawLoss != nil {
		loss = minInt(s.withdrawLoss, amount)
		if err := s.asset.move(s.addr, sinkAddr, loss); err != nil {
			return nil, nil, err
		}
	}
	freed := new(uint256.Int).Sub(amount, loss)
	held := s.asset.state.tokenBalance(s.addr)
	freed = minInt(freed, held)
	if s.liquidCap != nil {
		freed = minInt(freed, s.liquidCap)
	}
	if err := s.asset.move(s.addr, s.vault, freed); err != nil {
		return nil, nil, err
	}
	if s.overclaim {
		freed = new(uint256.Int).AddUint64(freed, 1)
	}
	return freed, loss, nil
}

func (s *testStrategy) Migrate(next common.Address) error {
	s.migratedTo = next
	return s.asset.move(s.addr, next, s.asset.state.tokenBalance(s.addr))
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool { return s.modules[module] }

type harness struct {
	t        *testing.T
	engine   *Engine
	state    *mockState
	asset    *mockAsset
	recorder *events.Recorder
	now      int64
}

func newHarness(t *testing.T, decimals uint8) *harness {
	t.Helper()
	state := newMockState()
	h := &harness{
		t:        t,
		state:    state,
		asset:    &mockAsset{state: state, decimals: decimals},
		recorder: &events.Recorder{},
		now:      1_700_000_000,
	}
	h.engine = NewEngine(vaultAddr, h.asset, Roles{Governance: govAddr, Management: mgmtAddr, Guardian: guardianAddr})
	h.engine.SetState(state)
	h.engine.SetEmitter(h.recorder)
	h.engine.SetNowFunc(func() int64 { return h.now })
	require.NoError(t, h.engine.Initialize(Genesis{
		DepositLimit: clone(MaxUint256),
		Rewards:      rewardsAddr,
	}))
	return h
}

func (h *harness) advance(secs int64) { h.now += secs }

func (h *harness) fund(addr common.Address, amount uint64) {
	h.asset.mint(addr, u(amount))
	require.NoError(h.t, h.asset.Approve(addr, vaultAddr, clone(MaxUint256)))
}

func (h *harness) deposit(addr common.Address, amount uint64) *uint256.Int {
	h.t.Helper()
	h.fund(addr, amount)
	shares, err := h.engine.Deposit(addr, u(amount), addr)
	require.NoError(h.t, err)
	return shares
}

func (h *harness) newStrategy(b byte) *testStrategy {
	s := &testStrategy{
		addr:  common.BytesToAddress([]byte{0x5a, b}),
		vault: vaultAddr,
		want:  h.asset.Symbol(),
		asset: h.asset,
	}
	require.NoError(h.t, h.asset.Approve(s.addr, vaultAddr, clone(MaxUint256)))
	return s
}

func (h *harness) addStrategy(b byte, ratio uint64) *testStrategy {
	h.t.Helper()
	s := h.newStrategy(b)
	require.NoError(h.t, h.engine.AddStrategy(govAddr, s, StrategyParams{
		DebtRatio:         ratio,
		MaxDebtPerHarvest: clone(MaxUint256),
	}))
	return s
}

func (h *harness) report(s *testStrategy, gain, loss, debtPayment uint64) ReportOutcome {
	h.t.Helper()
	out, err := h.engine.Report(s.addr, u(gain), u(loss), u(debtPayment))
	require.NoError(h.t, err)
	return out
}

func (h *harness) tokenBalance(addr common.Address) *uint256.Int {
	return h.state.tokenBalance(addr)
}

func (h *harness) shareBalance(addr common.Address) *uint256.Int {
	bal, err := h.engine.BalanceOf(addr)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) entry(addr common.Address) *StrategyEntry {
	entry, err := h.engine.Strategy(addr)
	require.NoError(h.t, err)
	return entry
}

func (h *harness) vault() *Vault {
	v, err := h.engine.Vault()
	require.NoError(h.t, err)
	return v
}

func (h *harness) requireInvariants() {
	h.t.Helper()
	require.NoError(h.t, h.engine.CheckInvariants())
}

func requireAmount(t *testing.T, want uint64, got *uint256.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	require.Equal(t, u(want).Dec(), got.Dec(), msgAndArgs...)
}
