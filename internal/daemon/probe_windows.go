//go:build windows

package daemon

import (
	"errors"
	"fmt"
	"os"
)

// OSProbe implements Probe with os.FindProcess.
// On Windows, FindProcess fails for processes that no longer exist and only
// os.Kill can be delivered.
type OSProbe struct{}

// Alive reports whether a handle can be opened for pid.
func (OSProbe) Alive(pid int) (bool, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return false, fmt.Errorf("%w: pid %d", ErrPermissionDenied, pid)
		}
		return false, nil
	}
	_ = proc.Release()
	return true, nil
}

// Signal kills pid; any signal other than os.Kill is delivered as os.Kill.
func (OSProbe) Signal(pid int, _ os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return os.ErrProcessDone
	}
	if err := proc.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return os.ErrProcessDone
		}
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
