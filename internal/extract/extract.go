// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds fenced code blocks in Markdown documents.
// It parses with goldmark so fences nested in lists and block quotes,
// tilde fences, and indented fences follow CommonMark rules.
//
// See docs/ARCHITECTURE § Block Extraction.
package extract

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/pdiddy/snipcheck/pkg/types"
)

// ErrUnterminatedFence is wrapped by MalformedError when a fence reaches the
// end of the document (or of its enclosing container) without a closing
// fence.
var ErrUnterminatedFence = errors.New("unterminated code fence")

// MalformedError locates a malformed block in a document.
type MalformedError struct {
	Path    string
	Ordinal int
	Line    int
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s#%d (line %d): %v", e.Path, e.Ordinal, e.Line, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// directiveRe matches <!-- snipcheck: word word ... --> comments.
var directiveRe = regexp.MustCompile(`(?s)<!--\s*snipcheck:\s*(.*?)\s*-->`)

// Blocks returns the fenced code blocks of doc in document order. The
// document is parsed when iteration starts, so each iteration re-parses the
// same immutable text and yields an identical sequence. An unterminated
// fence yields a *MalformedError and ends the sequence; blocks before it
// are yielded normally.
func Blocks(doc types.Document) iter.Seq2[types.CodeBlock, error] {
	return func(yield func(types.CodeBlock, error) bool) {
		source := doc.Text
		tracker := newFenceTracker()
		root := newParser(tracker).Parse(text.NewReader(source))

		ordinal := 0
		_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			fcb, ok := n.(*ast.FencedCodeBlock)
			if !ok {
				return ast.WalkContinue, nil
			}
			ordinal++
			state := tracker.fences[fcb]
			line := 0
			if state != nil {
				line = state.line
			}
			if state == nil || !state.closed {
				yield(types.CodeBlock{}, &MalformedError{
					Path:    doc.Path,
					Ordinal: ordinal,
					Line:    line,
					Err:     ErrUnterminatedFence,
				})
				return ast.WalkStop, nil
			}
			if !yield(newBlock(doc.Path, ordinal, line, fcb, source), nil) {
				return ast.WalkStop, nil
			}
			return ast.WalkSkipChildren, nil
		})
	}
}

// All collects every block of doc. On a malformed document it returns the
// blocks preceding the malformed fence together with the error.
func All(doc types.Document) ([]types.CodeBlock, error) {
	var blocks []types.CodeBlock
	for b, err := range Blocks(doc) {
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Count returns the number of fenced regions in doc.
func Count(doc types.Document) (int, error) {
	n := 0
	for _, err := range Blocks(doc) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func newBlock(path string, ordinal, line int, fcb *ast.FencedCodeBlock, source []byte) types.CodeBlock {
	b := types.CodeBlock{
		Document: path,
		Ordinal:  ordinal,
		Line:     line,
		Source:   linesText(fcb.Lines(), source),
	}
	if fcb.Info != nil {
		b.Info = string(fcb.Info.Segment.Value(source))
		b.Lang, b.Attrs = parseInfo(b.Info)
	}
	switch prev := fcb.PreviousSibling().(type) {
	case *ast.HTMLBlock:
		b.Directives = parseDirectives(htmlText(prev, source))
	case *ast.Paragraph, *ast.TextBlock:
		b.Lead = strings.TrimSpace(linesText(prev.Lines(), source))
	}
	return b
}

// parseInfo splits an info string into a lowercase language and attribute
// words. Braces, commas, and leading dots are dropped so "cpp {.no-run}"
// and "cpp no-run" are equivalent.
func parseInfo(info string) (string, []string) {
	fields := strings.FieldsFunc(info, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '{' || r == '}'
	})
	var words []string
	for _, f := range fields {
		f = strings.TrimPrefix(f, ".")
		if f != "" {
			words = append(words, f)
		}
	}
	switch len(words) {
	case 0:
		return "", nil
	case 1:
		return strings.ToLower(words[0]), nil
	}
	return strings.ToLower(words[0]), words[1:]
}

func parseDirectives(html string) []string {
	m := directiveRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	var out []string
	for _, f := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ' ' || r == ',' || r == '\n' || r == '\t' }) {
		out = append(out, strings.ToLower(f))
	}
	return out
}

func linesText(lines *text.Segments, source []byte) string {
	return string(lines.Value(source))
}

func htmlText(n *ast.HTMLBlock, source []byte) string {
	s := linesText(n.Lines(), source)
	if n.HasClosure() {
		s += string(n.ClosureLine.Value(source))
	}
	return s
}

// fenceState records what the tracking parser observed for one fence.
type fenceState struct {
	line   int
	closed bool
}

// fenceTracker wraps goldmark's fenced code block parser and records the
// opening line of every fence and whether a closing fence was seen. goldmark
// itself closes an unterminated fence silently at the end of its container.
type fenceTracker struct {
	parser.BlockParser
	fences map[*ast.FencedCodeBlock]*fenceState
}

func newFenceTracker() *fenceTracker {
	return &fenceTracker{
		BlockParser: parser.NewFencedCodeBlockParser(),
		fences:      make(map[*ast.FencedCodeBlock]*fenceState),
	}
}

func (t *fenceTracker) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, _ := reader.Position()
	node, state := t.BlockParser.Open(parent, reader, pc)
	if fcb, ok := node.(*ast.FencedCodeBlock); ok {
		t.fences[fcb] = &fenceState{line: line + 1}
	}
	return node, state
}

func (t *fenceTracker) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	state := t.BlockParser.Continue(node, reader, pc)
	if state&parser.Close != 0 {
		if fcb, ok := node.(*ast.FencedCodeBlock); ok {
			if fs := t.fences[fcb]; fs != nil {
				fs.closed = true
			}
		}
	}
	return state
}

// newParser builds a CommonMark parser whose fenced code block parser is
// replaced by tracker.
func newParser(tracker *fenceTracker) parser.Parser {
	fenced := parser.NewFencedCodeBlockParser()
	var blockParsers []util.PrioritizedValue
	for _, v := range parser.DefaultBlockParsers() {
		if v.Value == fenced {
			v = util.Prioritized(tracker, v.Priority)
		}
		blockParsers = append(blockParsers, v)
	}
	return parser.NewParser(
		parser.WithBlockParsers(blockParsers...),
		parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
	)
}
