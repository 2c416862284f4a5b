// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Document is a Markdown source file loaded for checking. It is immutable
// once loaded.
type Document struct {
	// Path is the filesystem path the document was read from.
	Path string `json:"path" yaml:"path"`

	// Text is the raw Markdown content.
	Text []byte `json:"-" yaml:"-"`
}

// CodeBlock is one fenced region of a Document.
type CodeBlock struct {
	// Document is the path of the owning document.
	Document string `json:"document" yaml:"document"`

	// Ordinal is the 1-based position of the block among the document's
	// fenced blocks.
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// Line is the 1-based line number of the opening fence.
	Line int `json:"line" yaml:"line"`

	// Lang is the first word of the info string, lowercased. Empty when the
	// fence carries no info string.
	Lang string `json:"lang" yaml:"lang"`

	// Info is the full info string as written.
	Info string `json:"info,omitempty" yaml:"info,omitempty"`

	// Attrs holds the info-string words that follow the language.
	Attrs []string `json:"attrs,omitempty" yaml:"attrs,omitempty"`

	// Directives holds words from a <!-- snipcheck: ... --> comment placed
	// directly before the fence.
	Directives []string `json:"directives,omitempty" yaml:"directives,omitempty"`

	// Lead is the text of the paragraph directly before the fence, if any.
	Lead string `json:"-" yaml:"-"`

	// Source is the block content without the fences.
	Source string `json:"-" yaml:"-"`
}

// ID returns the "path#ordinal" key used in reports and error messages.
func (b CodeBlock) ID() string {
	return fmt.Sprintf("%s#%d", b.Document, b.Ordinal)
}
