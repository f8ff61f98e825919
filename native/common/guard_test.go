package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuardBlocksPausedModule(t *testing.T) {
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pauseMap{"vault": true}, "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauseMap{"vault": true}, "lending"); err != nil {
		t.Fatalf("unrelated module must not block: %v", err)
	}
}

func TestReentrancyGuard(t *testing.T) {
	var g ReentrancyGuard
	if err := g.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if !g.Entered() {
		t.Fatalf("expected guard to be held")
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrant) {
		t.Fatalf("expected ErrReentrant, got %v", err)
	}
	g.Exit()
	if g.Entered() {
		t.Fatalf("expected guard released")
	}
	if err := g.Enter(); err != nil {
		t.Fatalf("re-enter after exit: %v", err)
	}
}
