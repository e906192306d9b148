//go:build windows

package appserver

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func setDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
