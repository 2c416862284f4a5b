// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and execution
// for sandboxed snippet runs.
//
//	docs/ARCHITECTURE § Sandbox Isolation.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// ErrNoRuntime reports that no usable container runtime was found.
var ErrNoRuntime = errors.New("no container runtime available")

// WorkDir is where the scratch directory is mounted inside the container.
const WorkDir = "/work"

// Spec describes one command executed in a throwaway container.
type Spec struct {
	// Image is the container image to run.
	Image string
	// Mount is the host directory bind-mounted at WorkDir.
	Mount string
	// Args is the command and its arguments inside the container.
	Args []string

	Stdout io.Writer
	Stderr io.Writer
}

// Runtime provides container operations: checking availability, verifying
// images, and running commands.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Exec runs spec in a new container with networking disabled. When ctx
	// ends before the command does, the container is killed. The returned
	// exit code is -1 when the command did not exit on its own.
	Exec(ctx context.Context, spec Spec) (int, error)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunContext(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunContext(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ee, ok := err.(*exec.ExitError); ok && ctx.Err() == nil {
		return ee.ExitCode(), nil
	}
	return -1, err
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
	newName       func() string
	// user is passed to --user so files written under the mount stay
	// removable by the host user. Empty keeps the image default.
	user          string
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Exec(ctx context.Context, spec Spec) (int, error) {
	name := r.newName()
	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"--network", "none",
		"-v", spec.Mount + ":" + WorkDir,
		"-w", WorkDir,
	}
	if r.user != "" {
		// HOME=/ is not writable by an arbitrary uid; compilers cache there.
		args = append(args, "--user", r.user, "-e", "HOME=/tmp")
	}
	args = append(args, spec.Image)
	args = append(args, spec.Args...)

	code, err := r.exec.RunContext(ctx, r.bin, args, spec.Stdout, spec.Stderr)
	if ctx.Err() != nil {
		// Killing the client does not stop the container.
		_ = r.exec.RunSilent(r.bin, "kill", name)
		return -1, ctx.Err()
	}
	if err != nil {
		return -1, fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
	}
	return code, nil
}

func containerName() string {
	return "snipcheck-" + uuid.NewString()
}

// hostUser returns "uid:gid" of the current process, or "" where the
// platform has no numeric ids.
func hostUser() string {
	uid := os.Getuid()
	if uid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, os.Getgid())
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
		newName:       containerName,
		user:          hostUser(),
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
		newName:       containerName,
		user:          hostUser(),
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime returns the runtime named by preferred ("docker" or
// "podman"), or when preferred is empty tries docker first and falls back
// to podman. The error wraps ErrNoRuntime when no runtime is usable.
func DetectRuntime(preferred string) (Runtime, error) {
	return detectRuntime(defaultExec, preferred)
}

func detectRuntime(exec executor, preferred string) (Runtime, error) {
	switch preferred {
	case "":
	case binDocker, binPodman:
		rt := newDockerRuntime(exec)
		if preferred == binPodman {
			rt = newPodmanRuntime(exec)
		}
		if !rt.Available() {
			return nil, fmt.Errorf("%w: %s not found or not operational", ErrNoRuntime, preferred)
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("unknown container runtime %q: want %s or %s", preferred, binDocker, binPodman)
	}

	docker := newDockerRuntime(exec)
	if docker.Available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"%w: neither %s nor %s found or operational",
		ErrNoRuntime, binDocker, binPodman,
	)
}
