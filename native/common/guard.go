package common

import "errors"

// ErrModulePaused is returned when a mutating operation is attempted while the
// operator has paused the named module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module has been halted by the operator.
// Pausing the engine is the protocol circuit breaker: it stops every
// value-moving flow without touching ledger state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. Nil views and empty module
// names disable the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed PauseView backed by a set of paused module names.
type StaticPauses map[string]bool

// IsPaused implements the PauseView interface.
func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
