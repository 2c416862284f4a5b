// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/pdiddy/snipcheck/internal/extract"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// excerptLines bounds the output shown under a failed block.
const excerptLines = 8

// TextOptions controls the human summary.
type TextOptions struct {
	// Color enables ANSI colour.
	Color bool
	// Verbose also lists prose-only blocks with their reason.
	Verbose bool
}

// ColorEnabled reports whether output to f should be coloured: f is a
// terminal, disabled is false and NO_COLOR is unset.
func ColorEnabled(f *os.File, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	green, red, yellow, gray, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.green, p.red, p.yellow, p.gray, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s types.Status) *color.Color {
	switch {
	case s.Passed():
		return p.green
	case s.Failed():
		return p.red
	}
	return p.yellow
}

// WriteText prints the human summary: one line per executed or skipped
// block, output excerpts for failures, document errors and a totals line.
func WriteText(w io.Writer, r *Report, opts TextOptions) error {
	p := newPalette(opts.Color)
	ew := &errWriter{w: w}

	for _, e := range r.Entries {
		if e.Result == nil {
			if opts.Verbose {
				ew.printf("%s (line %d) %s %s\n", e.Block.ID(), e.Block.Line, langOf(e.Block),
					p.gray.Sprintf("prose-only: %s", e.Decision.Reason))
			}
			continue
		}
		res := e.Result
		ew.printf("%s (line %d) %s %s %s\n", e.Block.ID(), e.Block.Line, langOf(e.Block),
			p.status(res.Status).Sprint(res.Status), formatDuration(res.Duration))
		if res.Status == types.StatusSkipped || res.Status.Failed() {
			if res.Reason != "" {
				ew.printf("    %s\n", p.gray.Sprint(res.Reason))
			}
		}
		if res.Status.Failed() {
			for _, line := range excerpt(res) {
				ew.printf("    | %s\n", line)
			}
		}
	}

	for _, de := range r.Errors {
		ew.printf("%s %s\n", p.red.Sprint("error:"), documentErrorText(de))
	}

	t := r.Totals
	summary := fmt.Sprintf("%d documents, %d blocks: %d passed, %d failed, %d skipped, %d prose-only, %d shell transcripts, %d malformed documents",
		t.Documents, t.Blocks, t.Passed, t.Failed, t.Skipped, t.ProseOnly, t.Shell, t.Malformed)
	verdict := p.green.Sprint("PASS")
	if r.Failed() {
		verdict = p.red.Sprint("FAIL")
	}
	ew.printf("%s %s\n", p.bold.Sprint(verdict), summary)
	return ew.err
}

// documentErrorText renders de with its path. Malformed-fence errors
// already carry the path and ordinal.
func documentErrorText(de types.DocumentError) string {
	var me *extract.MalformedError
	if errors.As(de.Err, &me) {
		return me.Error()
	}
	return de.Error()
}

func langOf(b types.CodeBlock) string {
	if b.Lang == "" {
		return "-"
	}
	return b.Lang
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}

// excerpt returns the leading lines of stderr, or of stdout when stderr is
// empty.
func excerpt(res *types.ExecutionResult) []string {
	out := res.Stderr
	if strings.TrimSpace(out) == "" {
		out = res.Stdout
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	lines := strings.Split(out, "\n")
	if len(lines) > excerptLines {
		more := len(lines) - excerptLines
		lines = append(lines[:excerptLines:excerptLines], fmt.Sprintf("... %d more lines", more))
	}
	return lines
}

// errWriter keeps the first write error so printing code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
