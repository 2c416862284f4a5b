// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"errors"
	"time"

	"github.com/pdiddy/snipcheck/internal/extract"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// Record is the machine-readable form of one block.
type Record struct {
	ID        string         `json:"id" yaml:"id"`
	Document  string         `json:"document" yaml:"document"`
	Ordinal   int            `json:"ordinal" yaml:"ordinal"`
	Line      int            `json:"line" yaml:"line"`
	Lang      string         `json:"lang" yaml:"lang"`
	Strategy  types.Strategy `json:"strategy" yaml:"strategy"`
	Toolchain string         `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`

	// Status and the fields below are empty for prose-only blocks.
	Status     types.Status `json:"status,omitempty" yaml:"status,omitempty"`
	ExitCode   *int         `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	DurationMS int64        `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Stdout     string       `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr     string       `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Truncated  bool         `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	TimedOut   bool         `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Reason     string       `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ErrorRecord is the machine-readable form of a document error. Ordinal and
// Line locate the offending fence of a malformed document.
type ErrorRecord struct {
	Document string `json:"document" yaml:"document"`
	Ordinal  int    `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
	Error    string `json:"error" yaml:"error"`
}

// File is the layout of a JSON or YAML report file.
type File struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Started    time.Time     `json:"started" yaml:"started"`
	DurationMS int64         `json:"duration_ms" yaml:"duration_ms"`
	Failed     bool          `json:"failed" yaml:"failed"`
	Totals     Totals        `json:"totals" yaml:"totals"`
	Blocks     []Record      `json:"blocks" yaml:"blocks"`
	Errors     []ErrorRecord `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Records converts every entry, prose-only blocks included.
func (r *Report) Records() []Record {
	out := make([]Record, len(r.Entries))
	for i, e := range r.Entries {
		rec := Record{
			ID:        e.Block.ID(),
			Document:  e.Block.Document,
			Ordinal:   e.Block.Ordinal,
			Line:      e.Block.Line,
			Lang:      e.Block.Lang,
			Strategy:  e.Decision.Strategy,
			Toolchain: e.Decision.Toolchain,
			Reason:    e.Decision.Reason,
		}
		if res := e.Result; res != nil {
			code := res.ExitCode
			rec.Status = res.Status
			rec.ExitCode = &code
			rec.DurationMS = res.Duration.Milliseconds()
			rec.Stdout = res.Stdout
			rec.Stderr = res.Stderr
			rec.Truncated = res.Truncated
			rec.TimedOut = res.TimedOut
			if res.Reason != "" {
				rec.Reason = res.Reason
			}
		}
		out[i] = rec
	}
	return out
}

// ErrorRecords converts the document errors.
func (r *Report) ErrorRecords() []ErrorRecord {
	out := make([]ErrorRecord, len(r.Errors))
	for i, de := range r.Errors {
		rec := ErrorRecord{Document: de.Path, Error: de.Err.Error()}
		var me *extract.MalformedError
		if errors.As(de.Err, &me) {
			rec.Ordinal = me.Ordinal
			rec.Line = me.Line
		}
		out[i] = rec
	}
	return out
}

// File returns the report in file layout.
func (r *Report) File() File {
	return File{
		RunID:      r.RunID,
		Started:    r.Started.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Failed:     r.Failed(),
		Totals:     r.Totals,
		Blocks:     r.Records(),
		Errors:     r.ErrorRecords(),
	}
}
