package bank

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"vaultledger/core/events"
	"vaultledger/core/state"
	"vaultledger/native/vault"
	"vaultledger/storage"
)

var _ vault.Asset = (*Ledger)(nil)

var (
	alice   = common.HexToAddress("0x10")
	bob     = common.HexToAddress("0x11")
	spender = common.HexToAddress("0xaa")
)

func newTestLedger(t *testing.T) (*Ledger, *state.Manager, *events.Recorder) {
	t.Helper()
	ledger, err := NewLedger(" usdx ", 6)
	require.NoError(t, err)
	mgr := state.NewManager(storage.NewMemDB())
	rec := &events.Recorder{}
	ledger.SetState(mgr)
	ledger.SetEmitter(rec)
	return ledger, mgr, rec
}

func TestMintAndTransfer(t *testing.T) {
	ledger, _, rec := newTestLedger(t)
	require.Equal(t, "USDX", ledger.Symbol())

	require.NoError(t, ledger.Mint(alice, uint256.NewInt(100)))
	require.NoError(t, ledger.Transfer(alice, bob, uint256.NewInt(40)))

	bal, err := ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal.Uint64())
	bal, err = ledger.BalanceOf(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal.Uint64())
	supply, err := ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, uint64(100), supply.Uint64())
	require.Equal(t, []string{events.TypeTokenMint, events.TypeTokenTransfer}, rec.Types())

	if err := ledger.Transfer(bob, alice, uint256.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(bob, common.Address{}, uint256.NewInt(1)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(alice, uint256.NewInt(100)))

	if err := ledger.TransferFrom(spender, alice, bob, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	require.NoError(t, ledger.Approve(alice, spender, uint256.NewInt(30)))
	require.NoError(t, ledger.TransferFrom(spender, alice, bob, uint256.NewInt(20)))
	allowance, err := ledger.Allowance(alice, spender)
	require.NoError(t, err)
	require.Equal(t, uint64(10), allowance.Uint64())

	require.NoError(t, ledger.Approve(alice, spender, new(uint256.Int).SetAllOne()))
	require.NoError(t, ledger.TransferFrom(spender, alice, bob, uint256.NewInt(50)))
	allowance, err = ledger.Allowance(alice, spender)
	require.NoError(t, err)
	require.True(t, allowance.Eq(maxAllowance), "infinite allowance is never spent")
}

func TestLedgerRevertsWithState(t *testing.T) {
	ledger, mgr, _ := newTestLedger(t)
	require.NoError(t, ledger.Mint(alice, uint256.NewInt(100)))

	snap := mgr.Snapshot()
	require.NoError(t, ledger.Transfer(alice, bob, uint256.NewInt(100)))
	mgr.RevertToSnapshot(snap)

	bal, err := ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal.Uint64())
}

func TestLedgerRequiresState(t *testing.T) {
	ledger, err := NewLedger("USDX", 6)
	require.NoError(t, err)
	if _, err := ledger.BalanceOf(alice); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected ErrNilState, got %v", err)
	}
	if _, err := NewLedger("  ", 6); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
}
