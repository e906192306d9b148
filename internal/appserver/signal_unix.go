//go:build !windows

package appserver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ParseSignal maps a name like "QUIT", "sigterm" or "15" to a signal.
func ParseSignal(name string) (os.Signal, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 || unix.SignalName(syscall.Signal(n)) == "" {
			return nil, fmt.Errorf("unknown signal %q", name)
		}
		return syscall.Signal(n), nil
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	if sig == 0 {
		return nil, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
