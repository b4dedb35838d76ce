package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView exposes the operational pause switches maintained outside the
// native modules (ops tooling, incident response).
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
