// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Strategy is the handling chosen for a block by the classifier.
type Strategy string

const (
	StrategyCompilable      Strategy = "compilable"
	StrategyShellTranscript Strategy = "shell-transcript"
	StrategyProseOnly       Strategy = "prose-only"
)

// Status is the outcome of attempting to run a block.
type Status string

const (
	StatusSkipped       Status = "skipped"
	StatusCompiled      Status = "compiled"
	StatusCompileFailed Status = "compile-failed"
	StatusRanOK         Status = "ran-ok"
	StatusRanFailed     Status = "ran-failed"
)

// Failed reports whether the status counts against the overall run.
func (s Status) Failed() bool {
	return s == StatusCompileFailed || s == StatusRanFailed
}

// Passed reports whether the block built or ran successfully.
func (s Status) Passed() bool {
	return s == StatusRanOK || s == StatusCompiled
}

// Decision is the classifier's verdict for a single block.
type Decision struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// Toolchain names the toolchain for compilable blocks.
	Toolchain string `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`

	// Reason explains non-compilable verdicts (e.g. "directive no-run").
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ExecutionResult is the outcome of running one block. It is created by the
// sandbox runner and consumed only by the report builder.
type ExecutionResult struct {
	Block CodeBlock `json:"block" yaml:"block"`

	Status Status `json:"status" yaml:"status"`

	// Toolchain is the toolchain that handled the block.
	Toolchain string `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`

	// ExitCode of the last step that ran; -1 when the step was killed or
	// never started.
	ExitCode int `json:"exit_code" yaml:"exit_code"`

	// Stdout and Stderr are captured output, bounded by the configured limit.
	Stdout string `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty" yaml:"stderr,omitempty"`

	// Truncated is set when either stream exceeded the output limit.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`

	// TimedOut is set when the block hit the timeout and was killed.
	TimedOut bool `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`

	Duration time.Duration `json:"-" yaml:"-"`

	// Reason is a short human-readable explanation for skipped or failed
	// results.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// DocumentError records a per-document failure: a malformed fence or an
// unreadable file. It never aborts processing of other documents.
type DocumentError struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

func (e DocumentError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e DocumentError) Unwrap() error { return e.Err }
