// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the step in its own process group so a timeout
// kills compilers and the programs they spawn together.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
