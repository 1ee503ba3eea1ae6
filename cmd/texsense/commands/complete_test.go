package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/complete/provider"
)

const testBib = `@book{knuth84,
  author = {Donald Knuth},
  title = {The {Art} of Programming},
  year = {1984}
}
`

// writeProject writes paper.tex (and refs.bib) into a temp dir and returns
// the .tex path.
func writeProject(t *testing.T, tex string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "refs.bib"), []byte(testBib), 0o644))
	path := filepath.Join(dir, "paper.tex")
	require.NoError(t, os.WriteFile(path, []byte(tex), 0o644))
	return path
}

func defaultConfig() *am.Config {
	cfg := am.NewGate(nil).Config()
	cfg.Workspace.Root = ""
	return &cfg
}

func labelsOf(items []complete.Suggestion) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestCompleteFile_Command(t *testing.T) {
	path := writeProject(t, "Intro\n\\sec")

	result, err := completeFile(context.Background(), defaultConfig(), path, complete.Position{Line: 1, Character: 4}, "")
	require.NoError(t, err)

	assert.Equal(t, complete.Command.String(), result.Context)
	assert.Contains(t, labelsOf(result.Items), "section")
	assert.Empty(t, result.Citations)
	assert.Empty(t, result.Surround)
}

func TestCompleteFile_CitationInline(t *testing.T) {
	path := writeProject(t, `See \cite{`)

	result, err := completeFile(context.Background(), defaultConfig(), path, complete.Position{Line: 0, Character: 10}, "")
	require.NoError(t, err)

	assert.Equal(t, complete.Citation.String(), result.Context)
	assert.Equal(t, []string{"knuth84"}, labelsOf(result.Items))
}

func TestCompleteFile_CitationBrowser(t *testing.T) {
	path := writeProject(t, `See \cite{`)
	cfg := defaultConfig()
	cfg.Intellisense.Citation.Type = am.CitationBrowser

	result, err := completeFile(context.Background(), cfg, path, complete.Position{Line: 0, Character: 10}, "")
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "knuth84", result.Citations[0].Key)
	assert.Equal(t, "The Art of Programming", result.Citations[0].Title())
}

func TestCompleteFile_Surround(t *testing.T) {
	path := writeProject(t, `\`)

	result, err := completeFile(context.Background(), defaultConfig(), path, complete.Position{Line: 0, Character: 1}, "x+y")
	require.NoError(t, err)

	assert.Empty(t, result.Items)
	assert.Contains(t, result.Surround, provider.SurroundChoice{Label: "textbf", Text: `\textbf{x+y}`})
}

func TestCompleteFile_Reference(t *testing.T) {
	path := writeProject(t, "\\section{Intro}\\label{sec:intro}\nAs in \\ref{")

	result, err := completeFile(context.Background(), defaultConfig(), path, complete.Position{Line: 1, Character: 11}, "")
	require.NoError(t, err)

	assert.Equal(t, complete.Reference.String(), result.Context)
	assert.Contains(t, labelsOf(result.Items), "sec:intro")
}

func TestCompleteFile_Nothing(t *testing.T) {
	path := writeProject(t, "plain words")

	result, err := completeFile(context.Background(), defaultConfig(), path, complete.Position{Line: 0, Character: 5}, "")
	require.NoError(t, err)

	assert.Empty(t, result.Context)
	assert.Empty(t, result.Items)
}

func TestCompleteFile_MissingFile(t *testing.T) {
	_, err := completeFile(context.Background(), defaultConfig(), filepath.Join(t.TempDir(), "missing.tex"), complete.Position{}, "")
	assert.Error(t, err)
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name   string
		result *completionResult
		want   []string
	}{
		{
			name:   "empty",
			result: &completionResult{},
			want:   []string{"No completions"},
		},
		{
			name: "items",
			result: &completionResult{
				Context: "command",
				Items:   []complete.Suggestion{{Label: "section", Kind: complete.KindFunction, InsertText: "section{${1}}"}},
			},
			want: []string{"Completions (command) (1)", "section"},
		},
		{
			name: "surround",
			result: &completionResult{
				Surround: []provider.SurroundChoice{{Label: "emph", Text: `\emph{x}`}},
			},
			want: []string{"Surround (1)", `\emph{x}`},
		},
		{
			name: "citations",
			result: &completionResult{
				Citations: []provider.BibEntry{{Key: "knuth84"}},
			},
			want: []string{"Citation browser (1)", "knuth84"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderResult(&buf, tt.result))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
