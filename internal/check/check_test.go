// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package check

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/pdiddy/snipcheck/internal/container"
	"github.com/pdiddy/snipcheck/internal/report"
	"github.com/pdiddy/snipcheck/internal/toolchain"
	"github.com/pdiddy/snipcheck/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedExecutor decides exit codes from markers in the snippet:
// COMPILE_ERROR fails every step, RUN_ERROR fails only the run step.
type scriptedExecutor struct {
	delay func(source string) time.Duration

	mu    sync.Mutex
	dirs  []string
	calls int
}

func (s *scriptedExecutor) Available(*toolchain.Toolchain, []string) (bool, string) { return true, "" }

func (s *scriptedExecutor) Path(dir, name string) string {
	if name == "" {
		return dir
	}
	return filepath.Join(dir, name)
}

func (s *scriptedExecutor) Exec(ctx context.Context, tc *toolchain.Toolchain, dir string, argv []string, stdout, _ io.Writer) (int, error) {
	s.mu.Lock()
	s.calls++
	s.dirs = append(s.dirs, filepath.Base(dir))
	s.mu.Unlock()

	src, err := os.ReadFile(filepath.Join(dir, tc.File))
	if err != nil {
		return -1, err
	}
	source := string(src)
	if s.delay != nil {
		select {
		case <-time.After(s.delay(source)):
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	build := slices.Contains(argv, "-o") || slices.Contains(argv, "py_compile")
	switch {
	case strings.Contains(source, "COMPILE_ERROR"):
		return 1, nil
	case strings.Contains(source, "RUN_ERROR") && !build:
		return 2, nil
	}
	fmt.Fprint(stdout, "ok")
	return 0, nil
}

func (s *scriptedExecutor) scratchDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.dirs)
}

const guideDoc = "# Guide\n" +
	"\n" +
	"```cpp\n" +
	"int main() { return 0; }\n" +
	"```\n" +
	"\n" +
	"<!-- snipcheck: ub -->\n" +
	"```cpp\n" +
	"int main() { int x; return x; }\n" +
	"```\n" +
	"\n" +
	"```rust\n" +
	"fn main() {}\n" +
	"```\n" +
	"\n" +
	"```bash\n" +
	"$ make\n" +
	"```\n" +
	"\n" +
	"```sql\n" +
	"CREATE TABLE t (x INTEGER);\n" +
	"INSERT INTO t VALUES (1);\n" +
	"```\n"

const brokenDoc = "```python\n" +
	"print(\"COMPILE_ERROR\")\n" +
	"```\n" +
	"\n" +
	"```python\n" +
	"print(1)\n" +
	"```\n" +
	"\n" +
	"```cpp\n" +
	"int main() {}\n"

func writeDoc(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func newChecker(t *testing.T, x *scriptedExecutor, cfg types.CheckConfig) *Checker {
	t.Helper()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = t.TempDir()
	}
	c, err := New(Options{Config: cfg, Executor: x})
	require.NoError(t, err)
	return c
}

func statuses(r *report.Report) map[string]string {
	out := make(map[string]string)
	for _, e := range r.Entries {
		if e.Result == nil {
			out[filepath.Base(e.Block.ID())] = string(e.Decision.Strategy)
			continue
		}
		out[filepath.Base(e.Block.ID())] = string(e.Result.Status)
	}
	return out
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	guide := writeDoc(t, dir, "guide.md", guideDoc)
	broken := writeDoc(t, dir, "broken.md", brokenDoc)
	x := &scriptedExecutor{}
	c := newChecker(t, x, types.CheckConfig{})

	r, err := c.Run(context.Background(), []string{guide, broken})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"guide.md#1":  "ran-ok",
		"guide.md#2":  "prose-only",
		"guide.md#3":  "prose-only",
		"guide.md#4":  "skipped",
		"guide.md#5":  "ran-ok",
		"broken.md#1": "compile-failed",
		"broken.md#2": "ran-ok",
	}, statuses(r))

	assert.Equal(t, report.Totals{
		Documents: 2,
		Blocks:    7,
		Executed:  4,
		Passed:    3,
		Failed:    1,
		Skipped:   1,
		ProseOnly: 2,
		Shell:     1,
		Malformed: 1,
	}, r.Totals)
	assert.True(t, r.Failed())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, broken, r.Errors[0].Path)
	assert.Contains(t, r.Errors[0].Error(), "#3 (line 9): unterminated code fence")

	for _, d := range x.scratchDirs() {
		assert.False(t, strings.HasPrefix(d, "guide-2-"), "annotated block must not run")
		assert.False(t, strings.HasPrefix(d, "guide-3-"), "unknown language must not run")
		assert.False(t, strings.HasPrefix(d, "guide-4-"), "shell transcript must not run")
	}
	assert.NotEmpty(t, r.RunID)
}

func TestRunPassingDocumentsDoNotFail(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "ok.md", "```python\nprint(1)\n```\n\n```cpp compile-error\nint main() { COMPILE_ERROR }\n```\n\nUB! the block below reads past the end.\n\n```cpp\nint main() { COMPILE_ERROR }\n```\n")
	c := newChecker(t, &scriptedExecutor{}, types.CheckConfig{})

	r, err := c.Run(context.Background(), []string{doc})
	require.NoError(t, err)
	assert.False(t, r.Failed())
	assert.Equal(t, map[string]string{
		"ok.md#1": "ran-ok",
		"ok.md#2": "prose-only",
		"ok.md#3": "prose-only",
	}, statuses(r))
}

func TestRunOrderIndependentOfJobs(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	for i := 1; i <= 16; i++ {
		marker := ""
		if i%5 == 0 {
			marker = " # RUN_ERROR"
		}
		fmt.Fprintf(&sb, "```python\nprint(%d)%s\n```\n\n", i, marker)
	}
	docA := writeDoc(t, dir, "a.md", sb.String())
	docB := writeDoc(t, dir, "b.md", sb.String())

	// Later blocks finish first.
	delay := func(source string) time.Duration {
		var n int
		fmt.Sscanf(source, "print(%d)", &n)
		return time.Duration(17-n) * time.Millisecond
	}

	var encoded []string
	for _, jobs := range []int{1, 8} {
		c := newChecker(t, &scriptedExecutor{delay: delay}, types.CheckConfig{Jobs: jobs})
		r, err := c.Run(context.Background(), []string{docB, docA})
		require.NoError(t, err)

		for _, e := range r.Entries {
			e.Result.Duration = 0
		}
		r.RunID, r.Started, r.Duration = "", time.Time{}, 0
		data, err := report.Encode(r, report.FormatJSON)
		require.NoError(t, err)
		encoded = append(encoded, string(data))

		assert.Equal(t, 6, r.Totals.Failed, "jobs=%d", jobs)
		assert.Equal(t, docA+"#1", r.Entries[0].Block.ID())
		assert.Equal(t, docB+"#16", r.Entries[len(r.Entries)-1].Block.ID())
	}
	assert.Equal(t, encoded[0], encoded[1])
}

func TestRunCanceledSkipsEverything(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "doc.md", "```python\nprint(1)\n```\n\n```cpp\nint main() {}\n```\n")
	x := &scriptedExecutor{}
	c := newChecker(t, x, types.CheckConfig{Jobs: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := c.Run(ctx, []string{doc})
	require.NoError(t, err)

	assert.Equal(t, 0, x.calls)
	assert.Equal(t, 2, r.Totals.Skipped)
	assert.False(t, r.Failed())
}

func TestRunTimeoutKillsBlock(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "slow.md", "```python\nprint(1)\n```\n")
	x := &scriptedExecutor{delay: func(string) time.Duration { return time.Minute }}
	scratch := t.TempDir()
	c := newChecker(t, x, types.CheckConfig{Timeout: 50 * time.Millisecond, ScratchDir: scratch})

	r, err := c.Run(context.Background(), []string{doc})
	require.NoError(t, err)
	require.Len(t, r.Entries, 1)
	res := r.Entries[0].Result
	assert.Equal(t, types.StatusCompileFailed, res.Status)
	assert.True(t, res.TimedOut)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch must be gone after the run")
}

func TestRunRemovesScratch(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "guide.md", guideDoc)
	scratch := t.TempDir()
	c := newChecker(t, &scriptedExecutor{}, types.CheckConfig{ScratchDir: scratch, Jobs: 4})

	_, err := c.Run(context.Background(), []string{doc})
	require.NoError(t, err)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "guide.md", guideDoc)
	missing := filepath.Join(dir, "gone.md")
	c := newChecker(t, &scriptedExecutor{}, types.CheckConfig{})

	r, err := c.Run(context.Background(), []string{missing, doc})
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, missing, r.Errors[0].Path)
	assert.Equal(t, 0, r.Totals.Malformed)
	assert.Equal(t, 5, r.Totals.Blocks, "the readable document is still checked")
	assert.True(t, r.Failed())
}

func TestRunProgress(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "guide.md", guideDoc)
	var progress bytes.Buffer
	c, err := New(Options{
		Config:   types.CheckConfig{ScratchDir: t.TempDir()},
		Executor: &scriptedExecutor{},
		Progress: &progress,
	})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), []string{doc})
	require.NoError(t, err)
	assert.Equal(t, "[1/2] "+doc+"#1 ran-ok\n[2/2] "+doc+"#5 ran-ok\n", progress.String())
}

func TestPlan(t *testing.T) {
	dir := t.TempDir()
	guide := writeDoc(t, dir, "guide.md", guideDoc)
	x := &scriptedExecutor{}
	c := newChecker(t, x, types.CheckConfig{Languages: []string{"sql"}})

	entries, errs := c.Plan([]string{guide})
	assert.Empty(t, errs)
	require.Len(t, entries, 5)
	assert.Equal(t, 0, x.calls)

	var got []string
	for _, e := range entries {
		assert.Nil(t, e.Result)
		got = append(got, string(e.Decision.Strategy)+":"+e.Decision.Reason)
	}
	assert.Equal(t, []string{
		"prose-only:language not selected",
		"prose-only:directive ub",
		"prose-only:unrecognized language rust",
		"shell-transcript:shell transcript",
		"compilable:",
	}, got)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Options{
		Config:   types.CheckConfig{Toolchains: map[string]types.ToolchainConfig{"broken": {Tags: []string{"x"}}}},
		Executor: &scriptedExecutor{},
	})
	assert.ErrorContains(t, err, "toolchain broken: no file name")

	_, err = NewExecutor(types.CheckConfig{Isolation: "vm"}, zap.NewNop())
	assert.ErrorContains(t, err, `unknown isolation mode "vm"`)

	x, err := NewExecutor(types.CheckConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, x)
}

func TestContainerIsolationWithoutRuntime(t *testing.T) {
	tests := []struct {
		name    string
		detect  func(string) (container.Runtime, error)
		wantErr string
	}{
		{
			name: "no runtime skips blocks",
			detect: func(string) (container.Runtime, error) {
				return nil, fmt.Errorf("%w: neither docker nor podman found or operational", container.ErrNoRuntime)
			},
		},
		{
			name: "unknown runtime is an error",
			detect: func(string) (container.Runtime, error) {
				return nil, fmt.Errorf(`unknown container runtime "lxc"`)
			},
			wantErr: `container isolation: unknown container runtime "lxc"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := detectRuntime
			detectRuntime = tt.detect
			t.Cleanup(func() { detectRuntime = orig })

			dir := t.TempDir()
			doc := writeDoc(t, dir, "guide.md", "```python\nprint(1)\n```\n\n```sql\nSELECT 1;\n```\n")
			c, err := New(Options{Config: types.CheckConfig{Isolation: types.IsolationContainer, ScratchDir: t.TempDir()}})
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			r, err := c.Run(context.Background(), []string{doc})
			require.NoError(t, err)
			assert.False(t, r.Failed())
			assert.Equal(t, map[string]string{"guide.md#1": "skipped", "guide.md#2": "ran-ok"}, statuses(r))
			assert.Equal(t, "toolchain python unavailable: no container runtime available: neither docker nor podman found or operational", r.Entries[0].Result.Reason)
		})
	}
}
