// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package check runs the documentation check pipeline: extract the fenced
// blocks of each document, classify them, run the compilable ones in the
// sandbox and build the report.
//
// See docs/ARCHITECTURE § Pipeline.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/snipcheck/internal/classify"
	"github.com/pdiddy/snipcheck/internal/container"
	"github.com/pdiddy/snipcheck/internal/extract"
	"github.com/pdiddy/snipcheck/internal/report"
	"github.com/pdiddy/snipcheck/internal/sandbox"
	"github.com/pdiddy/snipcheck/internal/toolchain"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// Options configures a Checker.
type Options struct {
	Config types.CheckConfig

	// Executor runs toolchain steps. Nil selects one from Config.Isolation.
	Executor sandbox.Executor

	Logger *zap.Logger

	// Progress receives one line per finished block. Nil discards.
	Progress io.Writer
}

// Checker runs the pipeline over a set of documents.
type Checker struct {
	cfg        types.CheckConfig
	registry   *toolchain.Registry
	classifier *classify.Classifier
	exec       sandbox.Executor
	log        *zap.Logger
	progress   io.Writer
}

// New validates the configuration and returns a Checker. It fails when a
// toolchain definition is invalid. Container isolation without a usable
// runtime is not an error: every block that needs a toolchain is skipped.
func New(opts Options) (*Checker, error) {
	cfg := opts.Config.WithDefaults()
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	registry, err := toolchain.NewRegistry(cfg.Toolchains)
	if err != nil {
		return nil, fmt.Errorf("loading toolchains: %w", err)
	}

	x := opts.Executor
	if x == nil {
		x, err = NewExecutor(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	return &Checker{
		cfg:        cfg,
		registry:   registry,
		classifier: classify.New(registry, cfg.Markers, cfg.Languages),
		exec:       x,
		log:        log,
		progress:   progress,
	}, nil
}

// detectRuntime is replaced in tests.
var detectRuntime = container.DetectRuntime

// NewExecutor returns the executor for cfg.Isolation. When container
// isolation finds no runtime, the executor reports every toolchain
// unavailable.
func NewExecutor(cfg types.CheckConfig, log *zap.Logger) (sandbox.Executor, error) {
	switch cfg.Isolation {
	case "", types.IsolationHost:
		return sandbox.NewHostExecutor(), nil
	case types.IsolationContainer:
		rt, err := detectRuntime(cfg.Container.Runtime)
		if errors.Is(err, container.ErrNoRuntime) {
			log.Warn("container isolation unavailable; blocks will be skipped", zap.Error(err))
			return sandbox.NewUnavailableExecutor(err.Error()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("container isolation: %w", err)
		}
		return sandbox.NewContainerExecutor(rt), nil
	}
	return nil, fmt.Errorf("unknown isolation mode %q: want %s or %s", cfg.Isolation, types.IsolationHost, types.IsolationContainer)
}

// Registry returns the toolchains in use.
func (c *Checker) Registry() *toolchain.Registry { return c.registry }

// Executor returns the executor in use.
func (c *Checker) Executor() sandbox.Executor { return c.exec }

// Plan extracts and classifies the blocks of every document without running
// anything. Unreadable and malformed documents become DocumentErrors; the
// blocks before a malformed fence are still planned.
func (c *Checker) Plan(paths []string) ([]report.Entry, []types.DocumentError) {
	var (
		entries []report.Entry
		errs    []types.DocumentError
	)
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			c.log.Warn("reading document", zap.String("path", path), zap.Error(err))
			errs = append(errs, types.DocumentError{Path: path, Err: fmt.Errorf("reading document: %w", err)})
			continue
		}
		blocks, err := extract.All(types.Document{Path: path, Text: text})
		if err != nil {
			c.log.Warn("malformed document", zap.String("path", path), zap.Error(err))
			errs = append(errs, types.DocumentError{Path: path, Err: err})
		}
		for _, b := range blocks {
			entries = append(entries, report.Entry{Block: b, Decision: c.classifier.Classify(b)})
		}
		c.log.Debug("document planned", zap.String("path", path), zap.Int("blocks", len(blocks)))
	}
	return entries, errs
}

// Run checks the documents at paths and returns the report. Compilable
// blocks run on up to Config.Jobs workers; each result lands in the slot of
// its block, so the report never depends on completion order. Cancelling
// ctx stops dispatch: blocks not yet started are reported as skipped and
// running ones are killed.
func (c *Checker) Run(ctx context.Context, paths []string) (*report.Report, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := c.log.With(zap.String("run_id", runID))

	entries, docErrs := c.Plan(paths)

	runner, err := sandbox.NewRunner(sandbox.Options{
		Timeout:     c.cfg.Timeout,
		OutputLimit: c.cfg.OutputLimit,
		ScratchDir:  c.cfg.ScratchDir,
		RunID:       runID,
		Executor:    c.exec,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("cleaning scratch", zap.Error(err))
		}
	}()

	total := 0
	for _, e := range entries {
		if e.Decision.Strategy == types.StrategyCompilable {
			total++
		}
	}
	log.Debug("run started",
		zap.Int("documents", len(paths)),
		zap.Int("blocks", len(entries)),
		zap.Int("compilable", total),
		zap.Int("jobs", c.cfg.Jobs),
	)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(c.cfg.Jobs)

	for i := range entries {
		e := &entries[i]
		switch e.Decision.Strategy {
		case types.StrategyShellTranscript:
			e.Result = &types.ExecutionResult{
				Block:    e.Block,
				Status:   types.StatusSkipped,
				ExitCode: -1,
				Reason:   "shell transcripts are not executed",
			}
		case types.StrategyCompilable:
			tc := c.registry.Get(e.Decision.Toolchain)
			if ctx.Err() != nil {
				e.Result = &types.ExecutionResult{
					Block:     e.Block,
					Status:    types.StatusSkipped,
					Toolchain: tc.Name,
					ExitCode:  -1,
					Reason:    "canceled before start",
				}
				continue
			}
			g.Go(func() error {
				res := runner.Run(ctx, e.Block, tc)
				e.Result = &res

				mu.Lock()
				done++
				fmt.Fprintf(c.progress, "[%d/%d] %s %s\n", done, total, e.Block.ID(), res.Status)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	r := report.Build(runID, started, paths, entries, docErrs)
	r.Duration = time.Since(started)
	log.Debug("run finished",
		zap.Int("passed", r.Totals.Passed),
		zap.Int("failed", r.Totals.Failed),
		zap.Int("skipped", r.Totals.Skipped),
		zap.Duration("duration", r.Duration),
	)
	return r, nil
}
