//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// OSProbe implements Probe with kill(2).
type OSProbe struct{}

// Alive sends the null signal to pid.
func (OSProbe) Alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return false, fmt.Errorf("%w: pid %d", ErrPermissionDenied, pid)
	default:
		return false, fmt.Errorf("probe pid %d: %w", pid, err)
	}
}

// Signal sends sig to pid.
func (OSProbe) Signal(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	err := unix.Kill(pid, s)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return os.ErrProcessDone
	case errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: pid %d", ErrPermissionDenied, pid)
	default:
		return fmt.Errorf("signal %v to pid %d: %w", sig, pid, err)
	}
}
