// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sandbox builds and runs compilable code blocks in throwaway
// scratch directories with a bounded timeout.
//
// Every block gets its own directory under a per-run root. The directory is
// removed on every exit path, and the run root is removed by Close. Nothing
// outside the scratch area is written.
//
// See docs/ARCHITECTURE § Sandbox Runner.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/snipcheck/internal/toolchain"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// binName is the output binary name for compiled toolchains.
const binName = "prog"

// Options configures a Runner.
type Options struct {
	// Timeout bounds a whole block: build and run together.
	Timeout time.Duration
	// OutputLimit bounds each captured stream in bytes.
	OutputLimit int
	// ScratchDir is the parent of the run root. Empty means os.TempDir().
	ScratchDir string
	// RunID names the run root ("snipcheck-<RunID>-*").
	RunID string
	// Executor runs toolchain steps. Nil means the host.
	Executor Executor
	Logger   *zap.Logger
}

// Runner executes compilable blocks. It is safe for concurrent use; each
// block works in its own scratch directory.
type Runner struct {
	opts Options
	exec Executor
	log  *zap.Logger
	root string
}

// NewRunner creates the run root and returns a Runner. Call Close to remove
// the run root.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = types.DefaultTimeout
	}
	if opts.OutputLimit <= 0 {
		opts.OutputLimit = types.DefaultOutputLimit
	}
	if opts.Executor == nil {
		opts.Executor = NewHostExecutor()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ScratchDir != "" {
		if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating scratch directory: %w", err)
		}
	}
	root, err := os.MkdirTemp(opts.ScratchDir, "snipcheck-"+opts.RunID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating run scratch directory: %w", err)
	}
	return &Runner{opts: opts, exec: opts.Executor, log: opts.Logger, root: root}, nil
}

// Root returns the run's scratch root.
func (r *Runner) Root() string { return r.root }

// Close removes the run's scratch root and everything below it.
func (r *Runner) Close() error {
	if err := os.RemoveAll(r.root); err != nil {
		return fmt.Errorf("removing scratch directory %s: %w", r.root, err)
	}
	return nil
}

// Run builds and runs b with tc and returns its result. It never returns an
// error: infrastructure problems become skipped results with a reason.
func (r *Runner) Run(ctx context.Context, b types.CodeBlock, tc *toolchain.Toolchain) types.ExecutionResult {
	start := time.Now()
	res := r.run(ctx, b, tc)
	res.Duration = time.Since(start)
	r.log.Debug("block finished",
		zap.String("block", b.ID()),
		zap.String("toolchain", tc.Name),
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (r *Runner) run(ctx context.Context, b types.CodeBlock, tc *toolchain.Toolchain) (res types.ExecutionResult) {
	res = types.ExecutionResult{Block: b, Toolchain: tc.Name, ExitCode: -1}

	if ctx.Err() != nil {
		res.Status = types.StatusSkipped
		res.Reason = "canceled before start"
		return res
	}

	if !tc.InProcess() {
		if ok, why := r.exec.Available(tc, tc.Needs(b.Source)); !ok {
			res.Status = types.StatusSkipped
			res.Reason = why
			return res
		}
	}

	dir, err := os.MkdirTemp(r.root, scratchPrefix(b))
	if err != nil {
		res.Status = types.StatusSkipped
		res.Reason = fmt.Sprintf("creating scratch directory: %v", err)
		r.log.Warn("scratch directory", zap.String("block", b.ID()), zap.Error(err))
		return res
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("removing scratch directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, tc.File), []byte(b.Source), 0o644); err != nil {
		res.Status = types.StatusSkipped
		res.Reason = fmt.Sprintf("writing snippet: %v", err)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	stdout := newCappedBuffer(r.opts.OutputLimit)
	stderr := newCappedBuffer(r.opts.OutputLimit)
	defer func() {
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		res.Truncated = stdout.Truncated() || stderr.Truncated()
		// An interrupted run says nothing about the snippet.
		if errors.Is(ctx.Err(), context.Canceled) && res.Status.Failed() {
			res.Status = types.StatusSkipped
		}
	}()

	if tc.InProcess() {
		status, err := runSQLite(ctx, dir, b.Source, stderr)
		res.Status = status
		if status == types.StatusRanOK {
			res.ExitCode = 0
		} else {
			res.ExitCode = 1
			res.Reason = r.failReason(ctx, "execution", err)
			res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		}
		return res
	}

	s := &steps{r: r, ctx: ctx, tc: tc, dir: dir, stdout: stdout, stderr: stderr}
	s.execute(b, &res)
	return res
}

// steps runs the build, check and run phases of one block.
type steps struct {
	r      *Runner
	ctx    context.Context
	tc     *toolchain.Toolchain
	dir    string
	stdout *cappedBuffer
	stderr *cappedBuffer
}

func (s *steps) execute(b types.CodeBlock, res *types.ExecutionResult) {
	tc := s.tc
	runnable := tc.Runnable(b.Source)

	if !runnable {
		check := tc.Check
		if len(check) == 0 {
			check = tc.Build
		}
		if len(check) == 0 {
			res.Status = types.StatusSkipped
			res.Reason = "no entry point and no check command"
			return
		}
		if s.step("check", check, types.StatusCompileFailed, res) {
			res.Status = types.StatusCompiled
		}
		return
	}

	if len(tc.Build) > 0 && !s.step("build", tc.Build, types.StatusCompileFailed, res) {
		return
	}
	if len(tc.Run) == 0 {
		res.Status = types.StatusCompiled
		return
	}
	if s.step("run", tc.Run, types.StatusRanFailed, res) {
		res.Status = types.StatusRanOK
	}
}

// step runs one command. It reports success; on failure it fills res with
// failStatus and a reason.
func (s *steps) step(phase string, tmpl []string, failStatus types.Status, res *types.ExecutionResult) bool {
	x := s.r.exec
	argv := toolchain.Expand(tmpl, x.Path(s.dir, s.tc.File), x.Path(s.dir, binName), x.Path(s.dir, ""))

	s.r.log.Debug("step", zap.String("block", res.Block.ID()), zap.String("phase", phase), zap.Strings("argv", argv))
	code, err := x.Exec(s.ctx, s.tc, s.dir, argv, s.stdout, s.stderr)
	res.ExitCode = code
	if err == nil && code == 0 {
		return true
	}
	res.Status = failStatus
	res.TimedOut = errors.Is(s.ctx.Err(), context.DeadlineExceeded)
	if err != nil {
		res.Reason = s.r.failReason(s.ctx, phase, err)
	} else {
		res.Reason = phase + " exited with status " + strconv.Itoa(code)
	}
	return false
}

func (r *Runner) failReason(ctx context.Context, phase string, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("%s timed out after %s", phase, r.opts.Timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return phase + " canceled"
	case err != nil:
		return fmt.Sprintf("%s failed: %v", phase, err)
	}
	return phase + " failed"
}

var slugRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// scratchPrefix names a block's scratch directory after its document and
// ordinal so leftovers are traceable; MkdirTemp adds a random suffix.
func scratchPrefix(b types.CodeBlock) string {
	base := filepath.Base(b.Document)
	slug := slugRe.ReplaceAllString(base[:len(base)-len(filepath.Ext(base))], "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return fmt.Sprintf("%s-%d-", slug, b.Ordinal)
}
