// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdiddy/snipcheck/internal/container"
	"github.com/pdiddy/snipcheck/internal/toolchain"
)

// waitDelay bounds how long a killed step may keep its output pipes open
// through orphaned grandchildren.
const waitDelay = time.Second

// Executor runs toolchain steps. Implementations exist for the host and for
// container isolation; tests supply fakes.
type Executor interface {
	// Available reports whether tc can run here using the executables
	// bins. The string explains why not.
	Available(tc *toolchain.Toolchain, bins []string) (bool, string)

	// Path returns how the file name inside the scratch directory dir is
	// addressed by commands. An empty name addresses dir itself.
	Path(dir, name string) string

	// Exec runs argv with dir as the working directory. The exit code is -1
	// when the step was killed or could not start; err is non-nil only in
	// that case.
	Exec(ctx context.Context, tc *toolchain.Toolchain, dir string, argv []string, stdout, stderr io.Writer) (int, error)
}

// hostExecutor runs steps directly on the host.
type hostExecutor struct {
	lookPath func(string) (string, error)

	mu    sync.Mutex
	found map[string]bool
}

// NewHostExecutor returns an Executor that runs toolchains found on PATH.
func NewHostExecutor() Executor {
	return &hostExecutor{lookPath: exec.LookPath, found: make(map[string]bool)}
}

func (h *hostExecutor) Available(tc *toolchain.Toolchain, bins []string) (bool, string) {
	for _, bin := range bins {
		if !h.has(bin) {
			return false, fmt.Sprintf("toolchain %s unavailable: %s not found on PATH", tc.Name, bin)
		}
	}
	return true, ""
}

func (h *hostExecutor) has(bin string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok, seen := h.found[bin]
	if !seen {
		_, err := h.lookPath(bin)
		ok = err == nil
		h.found[bin] = ok
	}
	return ok
}

func (h *hostExecutor) Path(dir, name string) string {
	if name == "" {
		return dir
	}
	return filepath.Join(dir, name)
}

func (h *hostExecutor) Exec(ctx context.Context, _ *toolchain.Toolchain, dir string, argv []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ctx.Err() == nil {
		return ee.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	return -1, err
}

// unavailableExecutor stands in when the requested isolation cannot be
// provided. Every toolchain is unavailable, so blocks are skipped.
type unavailableExecutor struct {
	reason string
}

// NewUnavailableExecutor returns an Executor that reports every toolchain as
// unavailable for reason.
func NewUnavailableExecutor(reason string) Executor {
	return &unavailableExecutor{reason: reason}
}

func (u *unavailableExecutor) Available(tc *toolchain.Toolchain, _ []string) (bool, string) {
	return false, fmt.Sprintf("toolchain %s unavailable: %s", tc.Name, u.reason)
}

func (u *unavailableExecutor) Path(dir, name string) string {
	if name == "" {
		return dir
	}
	return filepath.Join(dir, name)
}

func (u *unavailableExecutor) Exec(context.Context, *toolchain.Toolchain, string, []string, io.Writer, io.Writer) (int, error) {
	return -1, errors.New(u.reason)
}

// containerExecutor runs each step in a throwaway container with the
// scratch directory mounted at container.WorkDir.
type containerExecutor struct {
	rt container.Runtime

	mu     sync.Mutex
	images map[string]error
}

// NewContainerExecutor returns an Executor backed by a container runtime.
func NewContainerExecutor(rt container.Runtime) Executor {
	return &containerExecutor{rt: rt, images: make(map[string]error)}
}

// Available ignores bins: the toolchain image provides them.
func (c *containerExecutor) Available(tc *toolchain.Toolchain, _ []string) (bool, string) {
	if tc.Image == "" {
		return false, fmt.Sprintf("toolchain %s unavailable: no container image configured", tc.Name)
	}
	c.mu.Lock()
	err, seen := c.images[tc.Image]
	if !seen {
		err = c.rt.ImageExists(tc.Image)
		c.images[tc.Image] = err
	}
	c.mu.Unlock()
	if err != nil {
		return false, fmt.Sprintf("toolchain %s unavailable: %v", tc.Name, err)
	}
	return true, ""
}

func (c *containerExecutor) Path(_, name string) string {
	if name == "" {
		return container.WorkDir
	}
	return container.WorkDir + "/" + name
}

func (c *containerExecutor) Exec(ctx context.Context, tc *toolchain.Toolchain, dir string, argv []string, stdout, stderr io.Writer) (int, error) {
	return c.rt.Exec(ctx, container.Spec{
		Image:  tc.Image,
		Mount:  dir,
		Args:   argv,
		Stdout: stdout,
		Stderr: stderr,
	})
}
