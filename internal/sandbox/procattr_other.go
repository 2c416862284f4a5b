// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build !unix

package sandbox

import "os/exec"

func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error { return cmd.Process.Kill() }
}
