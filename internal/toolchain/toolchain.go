// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolchain maps snippet languages to the commands that build and
// run them.
//
// See docs/ARCHITECTURE § Toolchains.
package toolchain

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/pdiddy/snipcheck/pkg/types"
)

// EngineSQLite names the in-process SQLite engine.
const EngineSQLite = "sqlite"

// Placeholders substituted in command templates.
const (
	PlaceholderSrc = "{src}"
	PlaceholderBin = "{bin}"
	PlaceholderDir = "{dir}"
)

// Toolchain is a validated toolchain definition.
type Toolchain struct {
	Name   string
	Tags   []string
	File   string
	Build  []string
	Run    []string
	Check  []string
	Image  string
	Engine string

	entry *regexp.Regexp
}

// Runnable reports whether source has an entry point and should be run
// rather than only checked.
func (t *Toolchain) Runnable(source string) bool {
	if t.entry == nil {
		return true
	}
	return t.entry.MatchString(source)
}

// InProcess reports whether the toolchain executes without external commands.
func (t *Toolchain) InProcess() bool {
	return t.Engine != ""
}

// Binaries returns the distinct executables the toolchain invokes, in the
// order they first appear. Placeholders such as {bin} are not executables
// on PATH and are omitted.
func (t *Toolchain) Binaries() []string {
	return binaries(t.Build, t.Run, t.Check)
}

// Needs returns the executables that handling source requires: the build
// and run steps for a runnable snippet, otherwise the check step (or the
// build step when there is no check).
func (t *Toolchain) Needs(source string) []string {
	if t.Runnable(source) {
		return binaries(t.Build, t.Run)
	}
	if len(t.Check) > 0 {
		return binaries(t.Check)
	}
	return binaries(t.Build)
}

func binaries(steps ...[]string) []string {
	var bins []string
	for _, step := range steps {
		if len(step) == 0 || strings.HasPrefix(step[0], "{") {
			continue
		}
		if !slices.Contains(bins, step[0]) {
			bins = append(bins, step[0])
		}
	}
	return bins
}

// Expand substitutes placeholders in args. Placeholders may appear inside
// a larger argument (e.g. "-o{bin}").
func Expand(args []string, src, bin, dir string) []string {
	r := strings.NewReplacer(PlaceholderSrc, src, PlaceholderBin, bin, PlaceholderDir, dir)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Defaults returns the built-in toolchain definitions.
func Defaults() map[string]types.ToolchainConfig {
	return map[string]types.ToolchainConfig{
		"python": {
			Tags:  []string{"python", "py", "python3"},
			File:  "snippet.py",
			Build: []string{"python3", "-m", "py_compile", "{src}"},
			Run:   []string{"python3", "{src}"},
			Image: "python:3-slim",
		},
		"cpp": {
			Tags:  []string{"cpp", "c++", "cxx", "cc"},
			File:  "main.cpp",
			Build: []string{"c++", "-std=c++20", "-o", "{bin}", "{src}"},
			Run:   []string{"{bin}"},
			Check: []string{"c++", "-std=c++20", "-fsyntax-only", "{src}"},
			Entry: `\bmain\s*\(`,
			Image: "gcc:latest",
		},
		"c": {
			Tags:  []string{"c"},
			File:  "main.c",
			Build: []string{"cc", "-o", "{bin}", "{src}"},
			Run:   []string{"{bin}"},
			Check: []string{"cc", "-fsyntax-only", "{src}"},
			Entry: `\bmain\s*\(`,
			Image: "gcc:latest",
		},
		"go": {
			Tags:  []string{"go", "golang"},
			File:  "main.go",
			Build: []string{"go", "build", "-o", "{bin}", "{src}"},
			Run:   []string{"{bin}"},
			Check: []string{"gofmt", "-e", "{src}"},
			Entry: `func\s+main\s*\(`,
			Image: "golang:latest",
		},
		"sql": {
			Tags:   []string{"sql", "sqlite"},
			File:   "snippet.sql",
			Engine: EngineSQLite,
		},
	}
}

// Registry resolves language tags to toolchains.
type Registry struct {
	byName map[string]*Toolchain
	byTag  map[string]*Toolchain
}

// NewRegistry builds a registry from the built-in toolchains merged with
// overrides. An override replaces the built-in definition of the same name
// entirely. When two toolchains claim the same tag, the one whose name
// sorts first wins.
func NewRegistry(overrides map[string]types.ToolchainConfig) (*Registry, error) {
	defs := Defaults()
	maps.Copy(defs, overrides)

	r := &Registry{
		byName: make(map[string]*Toolchain, len(defs)),
		byTag:  make(map[string]*Toolchain),
	}
	for _, name := range slices.Sorted(maps.Keys(defs)) {
		tc, err := compile(name, defs[name])
		if err != nil {
			return nil, err
		}
		r.byName[name] = tc
		for _, tag := range tc.Tags {
			if _, taken := r.byTag[tag]; !taken {
				r.byTag[tag] = tc
			}
		}
	}
	return r, nil
}

// Lookup returns the toolchain for a language tag, or nil.
func (r *Registry) Lookup(tag string) *Toolchain {
	return r.byTag[strings.ToLower(tag)]
}

// Get returns the toolchain with the given name, or nil.
func (r *Registry) Get(name string) *Toolchain {
	return r.byName[name]
}

// All returns every toolchain sorted by name.
func (r *Registry) All() []*Toolchain {
	out := make([]*Toolchain, 0, len(r.byName))
	for _, name := range slices.Sorted(maps.Keys(r.byName)) {
		out = append(out, r.byName[name])
	}
	return out
}

func compile(name string, cfg types.ToolchainConfig) (*Toolchain, error) {
	if len(cfg.Tags) == 0 {
		return nil, fmt.Errorf("toolchain %s: no tags", name)
	}
	if cfg.File == "" {
		return nil, fmt.Errorf("toolchain %s: no file name", name)
	}
	if cfg.Engine != "" && cfg.Engine != EngineSQLite {
		return nil, fmt.Errorf("toolchain %s: unknown engine %q", name, cfg.Engine)
	}
	if cfg.Engine == "" && len(cfg.Run) == 0 && len(cfg.Build) == 0 {
		return nil, fmt.Errorf("toolchain %s: needs a build or run command", name)
	}
	tc := &Toolchain{
		Name:   name,
		File:   cfg.File,
		Build:  cfg.Build,
		Run:    cfg.Run,
		Check:  cfg.Check,
		Image:  cfg.Image,
		Engine: cfg.Engine,
	}
	for _, tag := range cfg.Tags {
		tc.Tags = append(tc.Tags, strings.ToLower(tag))
	}
	if cfg.Entry != "" {
		re, err := regexp.Compile(cfg.Entry)
		if err != nil {
			return nil, fmt.Errorf("toolchain %s: entry pattern: %w", name, err)
		}
		tc.entry = re
	}
	return tc, nil
}
