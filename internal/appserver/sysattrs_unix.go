//go:build !windows

package appserver

import (
	"os/exec"
	"syscall"
)

// setDaemonAttrs puts the child in its own session so it survives the CLI
// and does not receive the terminal's signals.
func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
