package server

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/errors"
)

const testURI = "file:///paper.tex"

// notifications records what a session sends to the editor.
type notifications struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	method string
	params any
}

func (n *notifications) notify(method string, params any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{method: method, params: params})
}

func (n *notifications) byMethod(method string) []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []any
	for _, s := range n.sent {
		if s.method == method {
			out = append(out, s.params)
		}
	}
	return out
}

// newTestSession builds an initialized session over a temp workspace, with
// the embedded resources loaded.
func newTestSession(t *testing.T, settings map[string]any) (*Session, *glsp.Context, *notifications) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "refs.bib"), []byte(`
@book{knuth84,
  author = {Donald Knuth},
  title = {The {Art} of Programming},
  year = 1984
}
`), 0o644))

	gate := am.NewGate(nil)
	merged := map[string]any{"workspace.root": root}
	for k, v := range settings {
		merged[k] = v
	}
	_, err := gate.Apply(merged)
	require.NoError(t, err)

	session := NewSession(context.Background(), gate, complete.EmbeddedResources(), nil)
	t.Cleanup(session.Close)

	select {
	case <-session.Loaded():
	case <-time.After(5 * time.Second):
		t.Fatal("resources did not load")
	}
	require.NoError(t, session.loader.Err())

	rec := &notifications{}
	ctx := &glsp.Context{Notify: rec.notify}
	_, err = session.Initialize(ctx, &protocol.InitializeParams{})
	require.NoError(t, err)
	return session, ctx, rec
}

func openDoc(t *testing.T, s *Session, ctx *glsp.Context, text string) {
	t.Helper()
	require.NoError(t, s.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: "latex", Text: text},
	}))
}

func completeAt(t *testing.T, s *Session, ctx *glsp.Context, line, character int) []protocol.CompletionItem {
	t.Helper()
	result, err := s.TextDocumentCompletion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(character)},
		},
	})
	require.NoError(t, err)
	items, ok := result.([]protocol.CompletionItem)
	require.True(t, ok, "completion result is %T", result)
	return items
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func findItem(t *testing.T, items []protocol.CompletionItem, label string) protocol.CompletionItem {
	t.Helper()
	for _, item := range items {
		if item.Label == label {
			return item
		}
	}
	t.Fatalf("no item %q in %v", label, labels(items))
	return protocol.CompletionItem{}
}

func TestSession_Initialize(t *testing.T) {
	session := NewSession(context.Background(), am.NewGate(nil), complete.EmbeddedResources(), nil)
	defer session.Close()

	result, err := session.Initialize(&glsp.Context{}, &protocol.InitializeParams{})
	require.NoError(t, err)

	res, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	require.NotNil(t, res.Capabilities.CompletionProvider)
	assert.Equal(t, []string{"\\", "{", "(", "[", ","}, res.Capabilities.CompletionProvider.TriggerCharacters)

	cmds := res.Capabilities.ExecuteCommandProvider
	require.NotNil(t, cmds)
	assert.Equal(t, []string{CommandSurround}, cmds.Commands)

	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, ServerName, res.ServerInfo.Name)
}

func TestSession_CommandCompletion(t *testing.T) {
	s, ctx, _ := newTestSession(t, nil)
	openDoc(t, s, ctx, "Intro\n\\sec")

	items := completeAt(t, s, ctx, 1, 4)
	section := findItem(t, items, "section")

	require.NotNil(t, section.Kind)
	assert.Equal(t, protocol.CompletionItemKindFunction, *section.Kind)
	require.NotNil(t, section.InsertTextFormat)
	assert.Equal(t, protocol.InsertTextFormatSnippet, *section.InsertTextFormat)
	require.NotNil(t, section.InsertText)
	assert.Equal(t, "section{${1}}", *section.InsertText)

	alpha := findItem(t, items, "alpha")
	assert.Equal(t, protocol.CompletionItemKindConstant, *alpha.Kind)
	assert.Nil(t, alpha.InsertTextFormat)
}

func TestSession_MathSnippet(t *testing.T) {
	tests := []struct {
		name        string
		autoClosing bool
		wantEdit    bool
	}{
		{name: "auto closing replaces the closing bracket", autoClosing: true, wantEdit: true},
		{name: "plain insert", autoClosing: false, wantEdit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ctx, _ := newTestSession(t, map[string]any{"editor.auto_closing_brackets": tt.autoClosing})
			openDoc(t, s, ctx, `see \(`)

			items := completeAt(t, s, ctx, 0, 6)
			require.Len(t, items, 1)
			assert.Equal(t, `\(`, items[0].Label)

			if !tt.wantEdit {
				assert.Nil(t, items[0].TextEdit)
				return
			}
			edit, ok := items[0].TextEdit.(protocol.TextEdit)
			require.True(t, ok)
			assert.Equal(t, protocol.UInteger(6), edit.Range.Start.Character)
			assert.Equal(t, protocol.UInteger(7), edit.Range.End.Character)
			assert.Equal(t, `${1}\)${0}`, edit.NewText)
		})
	}
}

func TestSession_ReferenceCompletion(t *testing.T) {
	s, ctx, _ := newTestSession(t, nil)
	openDoc(t, s, ctx, "\\section{A}\\label{sec:a}\nSee \\ref{")

	items := completeAt(t, s, ctx, 1, 9)
	assert.Equal(t, []string{"sec:a"}, labels(items))
	assert.Equal(t, protocol.CompletionItemKindReference, *items[0].Kind)
}

func TestSession_UnknownDocument(t *testing.T) {
	s, ctx, _ := newTestSession(t, nil)
	items := completeAt(t, s, ctx, 0, 0)
	assert.Empty(t, items)
}

func TestSession_CitationBrowser(t *testing.T) {
	s, ctx, rec := newTestSession(t, map[string]any{"intellisense.citation.type": "browser"})
	openDoc(t, s, ctx, `\cite{`)

	items := completeAt(t, s, ctx, 0, 6)
	assert.Empty(t, items, "browser mode resolves with no items")

	require.Eventually(t, func() bool {
		return len(rec.byMethod(MethodCitationBrowser)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	params := rec.byMethod(MethodCitationBrowser)[0].(CitationBrowserParams)
	assert.Equal(t, testURI, params.URI)
	require.Len(t, params.Entries, 1)
	assert.Equal(t, "knuth84", params.Entries[0].Key)
	assert.Equal(t, "The Art of Programming", params.Entries[0].Title)
}

func TestSession_CitationInline(t *testing.T) {
	s, ctx, rec := newTestSession(t, nil)
	openDoc(t, s, ctx, `\cite{`)

	items := completeAt(t, s, ctx, 0, 6)
	assert.Equal(t, []string{"knuth84"}, labels(items))
	assert.Empty(t, rec.byMethod(MethodCitationBrowser))
}

func TestSession_Surround(t *testing.T) {
	s, ctx, rec := newTestSession(t, nil)
	openDoc(t, s, ctx, `x+y \`)

	_, err := s.WorkspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{
		Command:   CommandSurround,
		Arguments: []any{testURI, "x+y"},
	})
	require.NoError(t, err)

	items := completeAt(t, s, ctx, 0, 5)
	assert.Empty(t, items)

	require.Eventually(t, func() bool {
		return len(rec.byMethod(MethodSurround)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	params := rec.byMethod(MethodSurround)[0].(SurroundParams)
	assert.Equal(t, testURI, params.URI)
	texts := map[string]string{}
	for _, c := range params.Choices {
		texts[c.Label] = c.Text
	}
	assert.Equal(t, `\textbf{x+y}`, texts["textbf"])

	// The selection is consumed: the next request completes normally
	items = completeAt(t, s, ctx, 0, 5)
	assert.NotEmpty(t, items)

	// Once the surround has run, the next edit lets the editor drop its
	// selection
	change := &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: `\textbf{x+y}`}},
	}
	require.Eventually(t, func() bool {
		if err := s.TextDocumentDidChange(ctx, change); err != nil {
			return false
		}
		return len(rec.byMethod(MethodSelectionConsumed)) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, rec.byMethod(MethodSelectionConsumed), 1)
	assert.Equal(t, `\textbf{x+y}`, s.docs.Texts()[testURI])
}

func TestSession_SupersededSurroundKeepsSelection(t *testing.T) {
	s, ctx, rec := newTestSession(t, map[string]any{"server.settle_ms": 300})
	openDoc(t, s, ctx, "x+y \\\nplain")

	_, err := s.WorkspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{
		Command:   CommandSurround,
		Arguments: []any{testURI, "x+y"},
	})
	require.NoError(t, err)
	slot, ok := s.docs.selection(testURI)
	require.True(t, ok)

	assert.Empty(t, completeAt(t, s, ctx, 0, 5))
	// Superseded before the surround follow-up settles
	completeAt(t, s, ctx, 1, 3)

	require.Eventually(t, func() bool { return slot.Pending() == "x+y" }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, rec.byMethod(MethodSurround))
	assert.False(t, slot.ShouldClear())

	// The selection is still there for the next command completion
	assert.Empty(t, completeAt(t, s, ctx, 0, 5))
	require.Eventually(t, func() bool {
		return len(rec.byMethod(MethodSurround)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_SurroundDisabled(t *testing.T) {
	s, ctx, rec := newTestSession(t, map[string]any{"intellisense.surround_command.enabled": false})
	openDoc(t, s, ctx, `\`)

	_, err := s.WorkspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{
		Command:   CommandSurround,
		Arguments: []any{testURI, "x"},
	})
	require.NoError(t, err)

	items := completeAt(t, s, ctx, 0, 1)
	assert.NotEmpty(t, items)
	assert.Empty(t, rec.byMethod(MethodSurround))
}

func TestSession_ExecuteCommandErrors(t *testing.T) {
	s, ctx, _ := newTestSession(t, nil)
	openDoc(t, s, ctx, "")

	tests := []struct {
		name   string
		params protocol.ExecuteCommandParams
		mark   error
	}{
		{
			name:   "unknown command",
			params: protocol.ExecuteCommandParams{Command: "texsense.nope"},
			mark:   errors.ErrInvalidRequest,
		},
		{
			name:   "missing text",
			params: protocol.ExecuteCommandParams{Command: CommandSurround, Arguments: []any{testURI}},
			mark:   errors.ErrInvalidRequest,
		},
		{
			name:   "non-string text",
			params: protocol.ExecuteCommandParams{Command: CommandSurround, Arguments: []any{testURI, 3.0}},
			mark:   errors.ErrInvalidRequest,
		},
		{
			name:   "document not open",
			params: protocol.ExecuteCommandParams{Command: CommandSurround, Arguments: []any{"file:///other.tex", "x"}},
			mark:   errors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.WorkspaceExecuteCommand(ctx, &tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.mark), "got %v", err)
		})
	}
}

func TestSession_DidChangeConfiguration(t *testing.T) {
	s, ctx, _ := newTestSession(t, nil)

	require.NoError(t, s.WorkspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{
			"texsense": map[string]any{
				"editor": map[string]any{"auto_closing_brackets": false},
			},
		},
	}))
	assert.False(t, s.gate.AutoClosingBrackets())

	// Invalid settings are ignored and the previous ones stay
	require.NoError(t, s.WorkspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"intellisense.citation.type": "popup"},
	}))
	assert.Equal(t, am.CitationInline, s.gate.CitationMode())

	require.NoError(t, s.WorkspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: "not an object",
	}))
}

func TestSession_DocumentLimit(t *testing.T) {
	s, ctx, _ := newTestSession(t, map[string]any{"server.max_documents": 1})
	openDoc(t, s, ctx, "a")

	err := s.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///second.tex", Text: "b"},
	})
	require.Error(t, err)

	require.NoError(t, s.TextDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))
	require.NoError(t, s.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///second.tex", Text: "b"},
	}))
}

func TestSession_ShutdownStopsFollowups(t *testing.T) {
	s, ctx, rec := newTestSession(t, map[string]any{"intellisense.citation.type": "browser"})
	openDoc(t, s, ctx, `\cite{`)

	require.NoError(t, s.Shutdown(ctx))
	items := completeAt(t, s, ctx, 0, 6)
	assert.Empty(t, items)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.byMethod(MethodCitationBrowser))
}

func TestMapCompletionKind(t *testing.T) {
	tests := []struct {
		kind complete.Kind
		want protocol.CompletionItemKind
	}{
		{complete.KindText, protocol.CompletionItemKindText},
		{complete.KindFunction, protocol.CompletionItemKindFunction},
		{complete.KindModule, protocol.CompletionItemKindModule},
		{complete.KindReference, protocol.CompletionItemKindReference},
		{complete.KindConstant, protocol.CompletionItemKindConstant},
		{complete.KindSnippet, protocol.CompletionItemKindSnippet},
		{complete.KindKeyword, protocol.CompletionItemKindKeyword},
		{complete.Kind("other"), protocol.CompletionItemKindText},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, *mapCompletionKind(tt.kind))
		})
	}
}

func TestToCompletionItems(t *testing.T) {
	items := toCompletionItems([]complete.Suggestion{
		{Label: "plain", Kind: complete.KindText, InsertText: "plain"},
		{Label: "doc", Kind: complete.KindReference, InsertText: "doc", Detail: "Title", Documentation: "Knuth (1984)"},
	})
	require.Len(t, items, 2)

	assert.Nil(t, items[0].Detail)
	assert.Nil(t, items[0].Documentation)
	assert.Nil(t, items[0].InsertTextFormat)
	assert.Nil(t, items[0].TextEdit)

	require.NotNil(t, items[1].Detail)
	assert.Equal(t, "Title", *items[1].Detail)
	assert.Equal(t, "Knuth (1984)", items[1].Documentation)
}
