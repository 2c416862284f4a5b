// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report aggregates classification and execution outcomes into a
// deterministic summary ordered by document path, then block ordinal.
//
// See docs/ARCHITECTURE § Report Builder.
package report

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/pdiddy/snipcheck/internal/extract"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// Entry is one block with its classification and, unless it is prose-only,
// its execution result.
type Entry struct {
	Block    types.CodeBlock
	Decision types.Decision
	Result   *types.ExecutionResult
}

// Totals counts blocks by outcome.
type Totals struct {
	Documents int `json:"documents" yaml:"documents"`
	Blocks    int `json:"blocks" yaml:"blocks"`
	// Executed counts blocks whose toolchain actually ran.
	Executed  int `json:"executed" yaml:"executed"`
	Passed    int `json:"passed" yaml:"passed"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	ProseOnly int `json:"prose_only" yaml:"prose_only"`
	Shell     int `json:"shell_transcripts" yaml:"shell_transcripts"`
	Malformed int `json:"malformed_documents" yaml:"malformed_documents"`
}

// Report is the outcome of one check run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	Documents []string
	Entries   []Entry
	Errors    []types.DocumentError
	Totals    Totals
}

// Build assembles a report. Inputs may arrive in any order; entries are
// sorted by document path then ordinal, and errors by path.
func Build(runID string, started time.Time, documents []string, entries []Entry, docErrs []types.DocumentError) *Report {
	r := &Report{
		RunID:     runID,
		Started:   started,
		Documents: slices.Sorted(slices.Values(documents)),
		Entries:   slices.Clone(entries),
		Errors:    slices.Clone(docErrs),
	}
	slices.SortStableFunc(r.Entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Block.Document, b.Block.Document),
			cmp.Compare(a.Block.Ordinal, b.Block.Ordinal),
		)
	})
	slices.SortStableFunc(r.Errors, func(a, b types.DocumentError) int {
		return cmp.Compare(a.Path, b.Path)
	})
	r.Totals = count(r)
	return r
}

func count(r *Report) Totals {
	t := Totals{
		Documents: len(r.Documents),
		Blocks:    len(r.Entries),
	}
	for _, e := range r.Entries {
		switch e.Decision.Strategy {
		case types.StrategyProseOnly:
			t.ProseOnly++
		case types.StrategyShellTranscript:
			t.Shell++
		}
		if e.Result == nil {
			continue
		}
		switch s := e.Result.Status; {
		case s == types.StatusSkipped:
			t.Skipped++
		case s.Passed():
			t.Executed++
			t.Passed++
		case s.Failed():
			t.Executed++
			t.Failed++
		}
	}
	for _, de := range r.Errors {
		if errors.Is(de.Err, extract.ErrUnterminatedFence) {
			t.Malformed++
		}
	}
	return t
}

// Failed reports whether the run should exit non-zero: some block failed to
// compile or run, or some document could not be processed. Skipped and
// prose-only blocks never count.
func (r *Report) Failed() bool {
	return r.Totals.Failed > 0 || len(r.Errors) > 0
}

// Failures returns the entries whose result failed, in report order.
func (r *Report) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Result != nil && e.Result.Status.Failed() {
			out = append(out, e)
		}
	}
	return out
}
