// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify decides how each extracted code block is handled:
// compiled and run, reported as a shell transcript, or left as prose.
//
// Blocks that illustrate a bug are excluded through an explicit convention
// rather than guesswork. A block is prose-only when its info string or a
// preceding <!-- snipcheck: ... --> comment carries one of the exclusion
// directives (skip, no-run, ub, compile-error, compile-fail, illustrative,
// bad), or when one of the configured hazard markers appears verbatim in a
// comment inside the block or in the paragraph right before it.
package classify

import (
	"slices"
	"strings"

	"github.com/pdiddy/snipcheck/internal/toolchain"
	"github.com/pdiddy/snipcheck/pkg/types"
)

// ExclusionDirectives are the words that keep a block from executing.
var ExclusionDirectives = []string{
	"skip", "no-run", "norun", "ub", "compile-error", "compile-fail", "illustrative", "bad",
}

// shellTags are info-string languages treated as shell transcripts.
var shellTags = map[string]bool{
	"sh": true, "bash": true, "shell": true, "console": true, "shell-session": true,
	"zsh": true, "fish": true, "powershell": true, "ps1": true, "cmd": true, "bat": true,
	"pycon": true,
}

// commentSyntax describes where comments and string literals start in one
// language family.
type commentSyntax struct {
	line       []string
	blockOpen  string
	blockClose string
	quotes     string
	multiline  []string
}

var (
	hashComments = commentSyntax{line: []string{"#"}, quotes: `"'`}
	pythonSyntax = commentSyntax{line: []string{"#"}, quotes: `"'`, multiline: []string{`"""`, `'''`}}
	cSyntax      = commentSyntax{line: []string{"//"}, blockOpen: "/*", blockClose: "*/", quotes: `"'`}
	goSyntax     = commentSyntax{line: []string{"//"}, blockOpen: "/*", blockClose: "*/", quotes: `"'`, multiline: []string{"`"}}
	sqlSyntax    = commentSyntax{line: []string{"--"}, blockOpen: "/*", blockClose: "*/", quotes: `'"`}
)

// commentSyntaxes is keyed by toolchain name. Toolchains added through
// configuration fall back to cSyntax.
var commentSyntaxes = map[string]commentSyntax{
	"python": pythonSyntax,
	"cpp":    cSyntax,
	"c":      cSyntax,
	"go":     goSyntax,
	"sql":    sqlSyntax,
}

// Classifier maps blocks to strategies. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	registry  *toolchain.Registry
	markers   []string
	languages map[string]bool
}

// New returns a Classifier. markers are exact, case-sensitive substrings;
// languages, when non-empty, restricts execution to those tags.
func New(registry *toolchain.Registry, markers, languages []string) *Classifier {
	c := &Classifier{registry: registry}
	for _, m := range markers {
		if m != "" {
			c.markers = append(c.markers, m)
		}
	}
	if len(languages) > 0 {
		c.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			c.languages[strings.ToLower(l)] = true
		}
	}
	return c
}

// Classify returns the handling decision for b. The result depends only on
// the block and the classifier's configuration.
func (c *Classifier) Classify(b types.CodeBlock) types.Decision {
	if d, ok := excludedByDirective(b); ok {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "directive " + d}
	}
	tc := c.registry.Lookup(b.Lang)
	if m, ok := c.matchMarker(b, c.syntaxFor(b.Lang, tc)); ok {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "marker " + m}
	}
	if strings.TrimSpace(b.Source) == "" {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "blank block"}
	}
	if shellTags[b.Lang] || isREPLTranscript(b.Source) {
		return types.Decision{Strategy: types.StrategyShellTranscript, Reason: "shell transcript"}
	}
	if b.Lang == "" {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "no language tag"}
	}
	if tc == nil {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "unrecognized language " + b.Lang}
	}
	if c.languages != nil && !c.languages[b.Lang] && !c.languages[tc.Name] {
		return types.Decision{Strategy: types.StrategyProseOnly, Reason: "language not selected"}
	}
	return types.Decision{Strategy: types.StrategyCompilable, Toolchain: tc.Name}
}

func excludedByDirective(b types.CodeBlock) (string, bool) {
	for _, w := range slices.Concat(b.Attrs, b.Directives) {
		w = strings.ToLower(w)
		if slices.Contains(ExclusionDirectives, w) {
			return w, true
		}
	}
	return "", false
}

// syntaxFor returns the comment syntax of a block's language. Blocks in a
// language without a toolchain or shell tag have no comments to search.
func (c *Classifier) syntaxFor(lang string, tc *toolchain.Toolchain) *commentSyntax {
	if tc != nil {
		if cs, ok := commentSyntaxes[tc.Name]; ok {
			return &cs
		}
		return &cSyntax
	}
	if shellTags[lang] {
		return &hashComments
	}
	return nil
}

func (c *Classifier) matchMarker(b types.CodeBlock, cs *commentSyntax) (string, bool) {
	if len(c.markers) == 0 {
		return "", false
	}
	for _, m := range c.markers {
		if strings.Contains(b.Lead, m) {
			return m, true
		}
	}
	if cs == nil {
		return "", false
	}
	for _, comment := range cs.comments(b.Source) {
		for _, m := range c.markers {
			if strings.Contains(comment, m) {
				return m, true
			}
		}
	}
	return "", false
}

// comments returns the comment text of source, one entry per line that
// holds a comment. String literals are skipped; block comments and
// multi-line strings carry over line ends.
func (cs *commentSyntax) comments(source string) []string {
	var (
		out     []string
		inBlock bool
		openStr string
	)
	for _, line := range strings.Split(source, "\n") {
		var text strings.Builder
		quote := byte(0)
		for i := 0; i < len(line); {
			rest := line[i:]
			switch {
			case inBlock:
				end := strings.Index(rest, cs.blockClose)
				if end < 0 {
					text.WriteString(rest)
					i = len(line)
					continue
				}
				text.WriteString(rest[:end])
				text.WriteByte(' ')
				inBlock = false
				i += end + len(cs.blockClose)
			case openStr != "":
				end := strings.Index(rest, openStr)
				if end < 0 {
					i = len(line)
					continue
				}
				i += end + len(openStr)
				openStr = ""
			case quote != 0:
				if line[i] == '\\' {
					i += 2
					continue
				}
				if line[i] == quote {
					quote = 0
				}
				i++
			default:
				if d := prefixOf(rest, cs.multiline); d != "" {
					openStr = d
					i += len(d)
					continue
				}
				if strings.IndexByte(cs.quotes, line[i]) >= 0 {
					quote = line[i]
					i++
					continue
				}
				if prefixOf(rest, cs.line) != "" {
					text.WriteString(rest)
					i = len(line)
					continue
				}
				if cs.blockOpen != "" && strings.HasPrefix(rest, cs.blockOpen) {
					inBlock = true
					i += len(cs.blockOpen)
					continue
				}
				i++
			}
		}
		if text.Len() > 0 {
			out = append(out, text.String())
		}
	}
	return out
}

func prefixOf(s string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return p
		}
	}
	return ""
}

func isREPLTranscript(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.HasPrefix(line, ">>> ") || strings.TrimRight(line, " ") == ">>>"
	}
	return false
}
