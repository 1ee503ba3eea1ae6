// Package complete classifies the text immediately before the cursor in a
// LaTeX document and dispatches to the provider for the matching completion
// domain: citation keys, cross-references, environment names, command names,
// or the \( \[ math-delimiter snippets.
//
// The package does not know how candidates are gathered; providers are
// supplied by the caller (see package complete/provider for the defaults).
package complete

import (
	"context"
	"unicode/utf16"
	"unicode/utf8"
)

// ContextType identifies a completion domain. The declaration order is the
// dispatch priority.
type ContextType int

const (
	Citation ContextType = iota
	Reference
	Environment
	Command

	numContextTypes
)

// ContextTypes lists every context type in priority order.
var ContextTypes = [numContextTypes]ContextType{Citation, Reference, Environment, Command}

func (t ContextType) String() string {
	switch t {
	case Citation:
		return "citation"
	case Reference:
		return "reference"
	case Environment:
		return "environment"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}

// Kind is the categorical tag an editor uses to pick an icon.
type Kind string

const (
	KindText      Kind = "text"
	KindFunction  Kind = "function"
	KindModule    Kind = "module"
	KindReference Kind = "reference"
	KindConstant  Kind = "constant"
	KindSnippet   Kind = "snippet"
	KindKeyword   Kind = "keyword"
)

// Position is a zero-based location in a document. Character counts UTF-16
// code units, as editors speaking LSP do.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Suggestion is one completion candidate.
type Suggestion struct {
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
	// InsertText is literal text, or a snippet template when Snippet is set:
	// ${1}, ${2}... are successive stops and ${0} is the final cursor.
	InsertText    string `json:"insert_text"`
	Snippet       bool   `json:"snippet,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	// Range, when set, is replaced by the inserted text instead of the
	// word at the cursor.
	Range *Range `json:"range,omitempty"`
}

// Document gives access to the text of a document one line at a time.
type Document interface {
	LineAt(line int) string
}

// SelectionSource hands a pending surround selection to a single request.
// Take must be atomic: once a request has taken the selection, no other
// request can observe it.
type SelectionSource interface {
	Take() string
	MarkCleared()
	// Restore puts back a taken selection that was never surrounded, unless
	// a newer one has arrived since.
	Restore(text string)
}

// Request is the per-request completion context.
type Request struct {
	Document Document
	Position Position
	// Selection may be nil when the host has no surround support.
	Selection SelectionSource
}

// Prefix returns the line text up to the cursor.
func (r Request) Prefix() string {
	if r.Document == nil {
		return ""
	}
	line := r.Document.LineAt(r.Position.Line)
	return line[:byteOffset(line, r.Position.Character)]
}

// Task is a side effect scheduled to run after a response is delivered.
type Task func(ctx context.Context)

// Response is the outcome of a completion request. A nil Items slice means
// "no completions"; Followup, when set, must be run by the host after the
// response has been sent. Abandon, when set, must be called instead if the
// host drops the Followup without running it.
type Response struct {
	Items    []Suggestion
	Context  ContextType
	Matched  bool
	Followup Task
	Abandon  func()
}

// byteOffset converts a UTF-16 column into a byte offset within line,
// clamped to the line length.
func byteOffset(line string, units int) int {
	if units <= 0 {
		return 0
	}
	count := 0
	for i, r := range line {
		if count >= units {
			return i
		}
		if n := len(utf16.Encode([]rune{r})); n > 0 {
			count += n
		} else {
			count++
		}
	}
	return len(line)
}

// lastRunes returns the last rune of s and the one before it (0 when absent).
func lastRunes(s string) (last, before rune) {
	last, size := utf8.DecodeLastRuneInString(s)
	if size == 0 {
		return 0, 0
	}
	rest := s[:len(s)-size]
	if rest == "" {
		return last, 0
	}
	before, _ = utf8.DecodeLastRuneInString(rest)
	return last, before
}
