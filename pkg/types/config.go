// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Isolation selects where toolchain commands execute.
type Isolation string

const (
	IsolationHost      Isolation = "host"
	IsolationContainer Isolation = "container"
)

// ToolchainConfig describes how to build and run snippets in one language.
// Command templates are argv lists; {src}, {bin} and {dir} are replaced with
// the snippet path, the output binary path and the scratch directory.
type ToolchainConfig struct {
	// Tags are the info-string languages handled by this toolchain.
	Tags []string `json:"tags" yaml:"tags" mapstructure:"tags"`

	// File is the name the snippet is written under inside the scratch dir.
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// Build is the compile step. Empty for interpreters without one.
	Build []string `json:"build,omitempty" yaml:"build,omitempty" mapstructure:"build"`

	// Run executes the built snippet.
	Run []string `json:"run,omitempty" yaml:"run,omitempty" mapstructure:"run"`

	// Check is a compile-only step used when the snippet has no entry point.
	Check []string `json:"check,omitempty" yaml:"check,omitempty" mapstructure:"check"`

	// Entry is a regexp that must match for the snippet to be run rather
	// than only checked. Empty means every snippet is runnable.
	Entry string `json:"entry,omitempty" yaml:"entry,omitempty" mapstructure:"entry"`

	// Image is the container image used in container isolation.
	Image string `json:"image,omitempty" yaml:"image,omitempty" mapstructure:"image"`

	// Engine selects an in-process engine instead of external commands.
	// The only engine is "sqlite".
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty" mapstructure:"engine"`
}

// ContainerConfig holds settings for container isolation.
type ContainerConfig struct {
	// Runtime forces "docker" or "podman". Empty means detect.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty" mapstructure:"runtime"`
}

// CheckConfig groups the settings for a check run.
type CheckConfig struct {
	// Timeout bounds the wall-clock time of a single block (default 10s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Jobs is the number of blocks run concurrently (default 1).
	Jobs int `json:"jobs" yaml:"jobs" mapstructure:"jobs"`

	// OutputLimit bounds each captured stream in bytes (default 4096).
	OutputLimit int `json:"output_limit" yaml:"output_limit" mapstructure:"output_limit"`

	// Isolation selects host or container execution.
	Isolation Isolation `json:"isolation" yaml:"isolation" mapstructure:"isolation"`

	// ScratchDir is the parent of per-run scratch directories. Empty means
	// the OS temp dir.
	ScratchDir string `json:"scratch_dir,omitempty" yaml:"scratch_dir,omitempty" mapstructure:"scratch_dir"`

	// Markers are exact substrings that exclude a block from execution when
	// found in its comments or lead paragraph.
	Markers []string `json:"markers" yaml:"markers" mapstructure:"markers"`

	// Languages restricts execution to these tags. Empty means all.
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty" mapstructure:"languages"`

	// Toolchains overrides or extends the built-in toolchains by name.
	Toolchains map[string]ToolchainConfig `json:"toolchains,omitempty" yaml:"toolchains,omitempty" mapstructure:"toolchains"`

	Container ContainerConfig `json:"container" yaml:"container" mapstructure:"container"`
}

// Default values applied when a CheckConfig field is zero.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultJobs        = 1
	DefaultOutputLimit = 4096
)

// DefaultMarkers are the hazard markers recognized when none are configured.
var DefaultMarkers = []string{"UB!", "DANGER", "BAD:", "undefined behavior"}

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c CheckConfig) WithDefaults() CheckConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Jobs <= 0 {
		c.Jobs = DefaultJobs
	}
	if c.OutputLimit <= 0 {
		c.OutputLimit = DefaultOutputLimit
	}
	if c.Isolation == "" {
		c.Isolation = IsolationHost
	}
	if c.Markers == nil {
		c.Markers = append([]string(nil), DefaultMarkers...)
	}
	return c
}
