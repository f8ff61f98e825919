package vault

import "github.com/holiman/uint256"

// LockedProfitAt returns how much of locked is still hidden from the share
// price at now. The release is linear: degradation is the 1e18 scaled
// fraction unlocked per second since lastReport.
func LockedProfitAt(locked, degradation *uint256.Int, lastReport, now uint64) *uint256.Int {
	if locked == nil || locked.IsZero() {
		return zero()
	}
	if degradation == nil || degradation.IsZero() {
		return clone(locked)
	}
	var elapsed uint64
	if now > lastReport {
		elapsed = now - lastReport
	}
	ratio, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(elapsed), degradation)
	if overflow || !ratio.Lt(DegradationCoefficient) {
		return zero()
	}
	// locked*ratio/1e18 < locked, so the subtraction cannot wrap.
	released, overflow := new(uint256.Int).MulDivOverflow(locked, ratio, DegradationCoefficient)
	if overflow {
		return zero()
	}
	return new(uint256.Int).Sub(locked, released)
}

// lockedProfit evaluates the vault's locked profit at now.
func (v *Vault) lockedProfit(now uint64) *uint256.Int {
	return LockedProfitAt(v.LockedProfit, v.LockedProfitDegradation, v.LastReport, now)
}

// FullReleaseSeconds is the time after a report at which the degradation
// rate has unlocked everything.
func FullReleaseSeconds(degradation *uint256.Int) uint64 {
	if degradation == nil || degradation.IsZero() {
		return 0
	}
	secs := new(uint256.Int).Div(DegradationCoefficient, degradation)
	if new(uint256.Int).Mul(secs, degradation).Lt(DegradationCoefficient) {
		secs.AddUint64(secs, 1)
	}
	return secs.Uint64()
}
