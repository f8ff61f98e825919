package vault

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestLockedProfitReleasesLinearly(t *testing.T) {
	// 1% per second.
	degradation := new(uint256.Int).Div(DegradationCoefficient, u(100))
	const last = 1_000

	requireAmount(t, 1_000, LockedProfitAt(u(1_000), degradation, last, last))
	requireAmount(t, 1_000, LockedProfitAt(u(1_000), degradation, last, last-10), "clock behind the report")
	requireAmount(t, 500, LockedProfitAt(u(1_000), degradation, last, last+50))
	requireAmount(t, 10, LockedProfitAt(u(1_000), degradation, last, last+99))
	requireAmount(t, 0, LockedProfitAt(u(1_000), degradation, last, last+100))
	requireAmount(t, 0, LockedProfitAt(u(1_000), degradation, last, last+1_000_000))
}

func TestLockedProfitEdgeRates(t *testing.T) {
	requireAmount(t, 1_000, LockedProfitAt(u(1_000), u(0), 0, 1<<40), "zero degradation never releases")
	requireAmount(t, 0, LockedProfitAt(u(1_000), DegradationCoefficient, 0, 1))
	requireAmount(t, 0, LockedProfitAt(u(1_000), clone(MaxUint256), 0, 2), "overflow releases everything")
	requireAmount(t, 0, LockedProfitAt(nil, DegradationCoefficient, 0, 0))
}

func TestFullReleaseSeconds(t *testing.T) {
	require.Equal(t, uint64(21_740), FullReleaseSeconds(DefaultLockedProfitDegradation))
	require.Equal(t, uint64(1), FullReleaseSeconds(DegradationCoefficient))
	require.Equal(t, uint64(0), FullReleaseSeconds(nil))

	locked := LockedProfitAt(u(1_000_000), DefaultLockedProfitDegradation, 0, FullReleaseSeconds(DefaultLockedProfitDegradation))
	requireAmount(t, 0, locked)
	locked = LockedProfitAt(u(1_000_000), DefaultLockedProfitDegradation, 0, FullReleaseSeconds(DefaultLockedProfitDegradation)-1)
	require.False(t, locked.IsZero())
}
