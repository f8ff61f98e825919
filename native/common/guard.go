package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrReentrant    = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard is a transaction scoped lock. A mutating entry point takes
// it before touching any collaborator and releases it once the transition has
// committed or reverted. A second Enter while held fails instead of
// blocking.
type ReentrancyGuard struct {
	entered bool
}

// Enter marks the guard as held.
func (g *ReentrancyGuard) Enter() error {
	if g.entered {
		return ErrReentrant
	}
	g.entered = true
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() { g.entered = false }

// Entered reports whether a guarded transition is in flight.
func (g *ReentrancyGuard) Entered() bool { return g.entered }
