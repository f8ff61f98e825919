package vault

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"vaultledger/core/events"
)

func TestDepositWithdrawRoundTrip(t *testing.T) {
	h := newHarness(t, 6)

	shares := h.deposit(aliceAddr, 1_000)
	requireAmount(t, 1_000, shares)
	requireAmount(t, 0, h.tokenBalance(aliceAddr))
	requireAmount(t, 1_000, h.tokenBalance(vaultAddr))

	paid, err := h.engine.Withdraw(aliceAddr, clone(MaxUint256), aliceAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 1_000, paid)
	requireAmount(t, 1_000, h.tokenBalance(aliceAddr))
	requireAmount(t, 0, h.shareBalance(aliceAddr))
	requireAmount(t, 0, h.vault().TotalShares)
	h.requireInvariants()
}

func TestTwoDepositorsWithdrawIndependently(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 900)
	h.deposit(bobAddr, 100)

	paid, err := h.engine.Withdraw(aliceAddr, clone(MaxUint256), aliceAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 900, paid)

	requireAmount(t, 100, h.shareBalance(bobAddr))
	price, err := h.engine.PricePerShare()
	require.NoError(t, err)
	requireAmount(t, 1_000_000, price)

	paid, err = h.engine.Withdraw(bobAddr, clone(MaxUint256), bobAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 100, paid)
}

func TestDepositLimit(t *testing.T) {
	h := newHarness(t, 6)
	require.NoError(t, h.engine.SetDepositLimit(govAddr, u(1_000)))
	h.fund(aliceAddr, 2_000)

	if _, err := h.engine.Deposit(aliceAddr, u(1_001), aliceAddr); !errors.Is(err, ErrDepositLimit) {
		t.Fatalf("expected ErrDepositLimit, got %v", err)
	}

	shares, err := h.engine.Deposit(aliceAddr, clone(MaxUint256), aliceAddr)
	require.NoError(t, err)
	requireAmount(t, 1_000, shares)
	requireAmount(t, 1_000, h.tokenBalance(aliceAddr))

	remaining, err := h.engine.AvailableDepositLimit()
	require.NoError(t, err)
	requireAmount(t, 0, remaining)

	if _, err := h.engine.Deposit(aliceAddr, clone(MaxUint256), aliceAddr); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount once the limit is used up, got %v", err)
	}
}

func TestDepositRejections(t *testing.T) {
	h := newHarness(t, 6)
	h.fund(aliceAddr, 100)

	cases := []struct {
		name      string
		amount    uint64
		recipient common.Address
		want      error
	}{
		{name: "zero amount", amount: 0, recipient: aliceAddr, want: ErrInvalidAmount},
		{name: "vault recipient", amount: 10, recipient: vaultAddr, want: ErrInvalidRecipient},
		{name: "zero recipient", amount: 10, want: ErrInvalidRecipient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.Deposit(aliceAddr, u(tc.amount), tc.recipient); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	requireAmount(t, 100, h.tokenBalance(aliceAddr))
}

func TestDepositRoundingToZeroSharesFails(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1)
	// A direct donation inflates the price of the single share.
	h.asset.mint(vaultAddr, u(1_000))
	h.fund(bobAddr, 1)

	if _, err := h.engine.Deposit(bobAddr, u(1), bobAddr); !errors.Is(err, ErrZeroShares) {
		t.Fatalf("expected ErrZeroShares, got %v", err)
	}
	requireAmount(t, 1, h.tokenBalance(bobAddr))
}

func TestDepositDetectsSilentTransfer(t *testing.T) {
	h := newHarness(t, 6)
	h.fund(aliceAddr, 100)
	h.asset.silent = true

	if _, err := h.engine.Deposit(aliceAddr, u(100), aliceAddr); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	requireAmount(t, 0, h.shareBalance(aliceAddr))
	requireAmount(t, 0, h.vault().TotalShares)
}

func TestWithdrawPullsFromQueue(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	s := h.addStrategy(1, MaxBps)
	out := h.report(s, 0, 0, 0)
	requireAmount(t, 1_000, out.Credit)
	requireAmount(t, 0, h.tokenBalance(vaultAddr))

	paid, err := h.engine.Withdraw(aliceAddr, u(400), aliceAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 400, paid)
	requireAmount(t, 600, h.entry(s.addr).TotalDebt)
	requireAmount(t, 600, h.vault().TotalDebt)
	requireAmount(t, 600, h.shareBalance(aliceAddr))
	require.Contains(t, h.recorder.Types(), events.TypeVaultStrategyWithdrawn)
	h.requireInvariants()
}

func TestWithdrawFollowsQueueOrder(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	first := h.addStrategy(1, 5_000)
	second := h.addStrategy(2, 5_000)
	h.report(first, 0, 0, 0)
	h.report(second, 0, 0, 0)
	requireAmount(t, 500, h.entry(first.addr).TotalDebt)
	requireAmount(t, 500, h.entry(second.addr).TotalDebt)

	require.NoError(t, h.engine.SetWithdrawalQueue(mgmtAddr, []common.Address{second.addr, first.addr}))

	paid, err := h.engine.Withdraw(aliceAddr, u(700), aliceAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 700, paid)
	requireAmount(t, 0, h.entry(second.addr).TotalDebt)
	requireAmount(t, 300, h.entry(first.addr).TotalDebt)
	h.requireInvariants()
}

func TestWithdrawLossTolerance(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	s := h.addStrategy(1, MaxBps)
	h.report(s, 0, 0, 0)
	s.withdrawLoss = u(10)

	if _, err := h.engine.Withdraw(aliceAddr, u(400), aliceAddr, 100); !errors.Is(err, ErrMaxLossExceeded) {
		t.Fatalf("expected ErrMaxLossExceeded, got %v", err)
	}
	requireAmount(t, 1_000, h.shareBalance(aliceAddr))
	requireAmount(t, 1_000, h.entry(s.addr).TotalDebt)
	requireAmount(t, 1_000, h.tokenBalance(s.addr))
	requireAmount(t, 0, h.tokenBalance(sinkAddr))

	paid, err := h.engine.Withdraw(aliceAddr, u(400), aliceAddr, 500)
	require.NoError(t, err)
	requireAmount(t, 390, paid)

	entry := h.entry(s.addr)
	requireAmount(t, 600, entry.TotalDebt)
	requireAmount(t, 10, entry.TotalLoss)
	require.Equal(t, uint64(9_900), entry.DebtRatio)
	require.Equal(t, uint64(9_900), h.vault().DebtRatio)
	requireAmount(t, 600, h.shareBalance(aliceAddr))
	h.requireInvariants()
}

func TestWithdrawClampsToLiquidity(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	s := h.addStrategy(1, MaxBps)
	h.report(s, 0, 0, 0)
	s.liquidCap = u(100)

	paid, err := h.engine.Withdraw(aliceAddr, u(400), aliceAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 100, paid)
	requireAmount(t, 900, h.shareBalance(aliceAddr))
	requireAmount(t, 900, h.entry(s.addr).TotalDebt)
	h.requireInvariants()
}

func TestWithdrawRejectsOverreportingStrategy(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	s := h.addStrategy(1, MaxBps)
	h.report(s, 0, 0, 0)
	s.overclaim = true

	if _, err := h.engine.Withdraw(aliceAddr, u(400), aliceAddr, 0); !errors.Is(err, ErrStrategyOverreported) {
		t.Fatalf("expected ErrStrategyOverreported, got %v", err)
	}
	requireAmount(t, 1_000, h.tokenBalance(s.addr))
}

func TestWithdrawArgumentChecks(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 100)

	if _, err := h.engine.Withdraw(aliceAddr, u(10), aliceAddr, MaxBps+1); !errors.Is(err, ErrInvalidMaxLoss) {
		t.Fatalf("expected ErrInvalidMaxLoss, got %v", err)
	}
	if _, err := h.engine.Withdraw(bobAddr, u(10), bobAddr, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for empty holder, got %v", err)
	}
	if _, err := h.engine.Withdraw(aliceAddr, u(10), common.Address{}, 0); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}

	// Requests above the balance are capped.
	paid, err := h.engine.Withdraw(aliceAddr, u(1_000), bobAddr, 0)
	require.NoError(t, err)
	requireAmount(t, 100, paid)
	requireAmount(t, 100, h.tokenBalance(bobAddr))
}

func TestShareTransfers(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)

	require.NoError(t, h.engine.Transfer(aliceAddr, bobAddr, u(300)))
	requireAmount(t, 700, h.shareBalance(aliceAddr))
	requireAmount(t, 300, h.shareBalance(bobAddr))

	if err := h.engine.Transfer(aliceAddr, vaultAddr, u(1)); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if err := h.engine.Transfer(aliceAddr, bobAddr, u(701)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	require.NoError(t, h.engine.Approve(bobAddr, aliceAddr, u(100)))
	require.NoError(t, h.engine.TransferFrom(aliceAddr, bobAddr, aliceAddr, u(60)))
	allowance, err := h.engine.Allowance(bobAddr, aliceAddr)
	require.NoError(t, err)
	requireAmount(t, 40, allowance)
	if err := h.engine.TransferFrom(aliceAddr, bobAddr, aliceAddr, u(50)); !errors.Is(err, ErrInsufficientAllow) {
		t.Fatalf("expected ErrInsufficientAllow, got %v", err)
	}

	require.NoError(t, h.engine.Approve(aliceAddr, bobAddr, clone(MaxUint256)))
	require.NoError(t, h.engine.TransferFrom(bobAddr, aliceAddr, bobAddr, u(10)))
	allowance, err = h.engine.Allowance(aliceAddr, bobAddr)
	require.NoError(t, err)
	require.True(t, allowance.Eq(MaxUint256), "infinite allowance must not decrease")

	supply, err := h.engine.TotalSupply()
	require.NoError(t, err)
	requireAmount(t, 1_000, supply)
}

func TestAllowanceAdjustments(t *testing.T) {
	h := newHarness(t, 6)
	require.NoError(t, h.engine.IncreaseAllowance(aliceAddr, bobAddr, u(50)))
	require.NoError(t, h.engine.IncreaseAllowance(aliceAddr, bobAddr, u(25)))
	require.NoError(t, h.engine.DecreaseAllowance(aliceAddr, bobAddr, u(70)))
	allowance, err := h.engine.Allowance(aliceAddr, bobAddr)
	require.NoError(t, err)
	requireAmount(t, 5, allowance)

	if err := h.engine.DecreaseAllowance(aliceAddr, bobAddr, u(6)); !errors.Is(err, ErrInsufficientAllow) {
		t.Fatalf("expected ErrInsufficientAllow, got %v", err)
	}
}

func TestMaxAvailableShares(t *testing.T) {
	h := newHarness(t, 6)
	h.deposit(aliceAddr, 1_000)
	s := h.addStrategy(1, 5_000)
	h.report(s, 0, 0, 0)

	available, err := h.engine.MaxAvailableShares()
	require.NoError(t, err)
	requireAmount(t, 1_000, available)

	require.NoError(t, h.engine.RemoveStrategyFromQueue(govAddr, s.addr))
	available, err = h.engine.MaxAvailableShares()
	require.NoError(t, err)
	requireAmount(t, 500, available)
}
