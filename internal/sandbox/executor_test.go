// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/snipcheck/internal/container"
	"github.com/pdiddy/snipcheck/pkg/types"
)

type fakeRuntime struct {
	missing     map[string]bool
	imageChecks int
	specs       []container.Spec
	code        int
}

func (f *fakeRuntime) Name() string    { return "docker" }
func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) ImageExists(image string) error {
	f.imageChecks++
	if f.missing[image] {
		return errors.New("image " + image + " not found in docker")
	}
	return nil
}

func (f *fakeRuntime) Exec(_ context.Context, spec container.Spec) (int, error) {
	f.specs = append(f.specs, spec)
	_, _ = io.WriteString(spec.Stdout, "from container")
	return f.code, nil
}

func TestContainerExecutor(t *testing.T) {
	reg := registry(t, nil)
	rt := &fakeRuntime{missing: map[string]bool{"golang:latest": true}, code: 0}
	x := NewContainerExecutor(rt)

	ok, _ := x.Available(reg.Get("cpp"), nil)
	assert.True(t, ok)
	ok, _ = x.Available(reg.Get("c"), nil)
	assert.True(t, ok)
	assert.Equal(t, 1, rt.imageChecks, "gcc image checked once for c and cpp")

	ok, why := x.Available(reg.Get("go"), nil)
	assert.False(t, ok)
	assert.Equal(t, "toolchain go unavailable: image golang:latest not found in docker", why)

	assert.Equal(t, "/work/main.cpp", x.Path("/tmp/scratch", "main.cpp"))
	assert.Equal(t, "/work", x.Path("/tmp/scratch", ""))
}

func TestContainerExecutorNoImage(t *testing.T) {
	reg := registry(t, map[string]types.ToolchainConfig{
		"local": {Tags: []string{"local"}, File: "x", Run: []string{"true"}},
	})
	ok, why := NewContainerExecutor(&fakeRuntime{}).Available(reg.Get("local"), nil)
	assert.False(t, ok)
	assert.Contains(t, why, "no container image configured")
}

func TestRunnerInContainer(t *testing.T) {
	rt := &fakeRuntime{}
	r := newTestRunner(t, NewContainerExecutor(rt), 0)

	res := r.Run(context.Background(), block("cpp", "int main() {}\n"), registry(t, nil).Get("cpp"))
	require.Equal(t, types.StatusRanOK, res.Status, res.Reason)
	require.Len(t, rt.specs, 2)

	build := rt.specs[0]
	assert.Equal(t, "gcc:latest", build.Image)
	assert.True(t, filepath.IsAbs(build.Mount))
	assert.Equal(t, []string{"c++", "-std=c++20", "-o", "/work/prog", "/work/main.cpp"}, build.Args)
	assert.Equal(t, []string{"/work/prog"}, rt.specs[1].Args)
	assert.Equal(t, "from containerfrom container", res.Stdout)
}

func TestHostExecutorAvailableCaches(t *testing.T) {
	looked := map[string]int{}
	h := &hostExecutor{
		lookPath: func(bin string) (string, error) {
			looked[bin]++
			if bin == "c++" {
				return "/usr/bin/c++", nil
			}
			return "", errors.New("not found")
		},
		found: make(map[string]bool),
	}
	reg := registry(t, nil)

	cpp, python := reg.Get("cpp"), reg.Get("python")
	ok, _ := h.Available(cpp, cpp.Binaries())
	assert.True(t, ok)
	ok, why := h.Available(python, python.Binaries())
	assert.False(t, ok)
	assert.Equal(t, "toolchain python unavailable: python3 not found on PATH", why)
	h.Available(cpp, cpp.Binaries())
	assert.Equal(t, 1, looked["c++"])
}

func TestHostExecutorChecksOnlyNeededBinaries(t *testing.T) {
	h := &hostExecutor{
		lookPath: func(bin string) (string, error) {
			if bin == "go" {
				return "/usr/local/go/bin/go", nil
			}
			return "", errors.New("not found")
		},
		found: make(map[string]bool),
	}
	goTC := registry(t, nil).Get("go")

	tests := []struct {
		name   string
		source string
		ok     bool
		why    string
	}{
		{
			name:   "program needs only go",
			source: "package main\n\nfunc main() {}\n",
			ok:     true,
		},
		{
			name:   "fragment needs gofmt",
			source: "func helper() int { return 1 }\n",
			why:    "toolchain go unavailable: gofmt not found on PATH",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, why := h.Available(goTC, goTC.Needs(tt.source))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.why, why)
		})
	}
}

func TestRunnerSkipsOnlyWhenNeededBinaryMissing(t *testing.T) {
	h := &hostExecutor{
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
		found:    make(map[string]bool),
	}
	r := newTestRunner(t, h, 0)

	res := r.Run(context.Background(), block("go", "func helper() {}\n"), registry(t, nil).Get("go"))
	assert.Equal(t, types.StatusSkipped, res.Status)
	assert.Equal(t, "toolchain go unavailable: gofmt not found on PATH", res.Reason)
}

func TestUnavailableExecutorSkipsBlocks(t *testing.T) {
	x := NewUnavailableExecutor("no container runtime available")
	r := newTestRunner(t, x, 0)
	reg := registry(t, nil)

	res := r.Run(context.Background(), block("python", "print(1)\n"), reg.Get("python"))
	assert.Equal(t, types.StatusSkipped, res.Status)
	assert.Equal(t, "toolchain python unavailable: no container runtime available", res.Reason)

	res = r.Run(context.Background(), block("sql", "SELECT 1;\n"), reg.Get("sql"))
	assert.Equal(t, types.StatusRanOK, res.Status, "in-process toolchains need no executor")
}
