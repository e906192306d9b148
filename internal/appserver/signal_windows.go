//go:build windows

package appserver

import "os"

// ParseSignal always returns os.Kill; Windows has no graceful signal for
// detached processes.
func ParseSignal(string) (os.Signal, error) {
	return os.Kill, nil
}
