package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/complete/provider"
	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// CompleteCmd runs one completion request against a file
var CompleteCmd = &cobra.Command{
	Use:   "complete <file> <line> <column>",
	Short: "Show completions at a position in a file",
	Long: `Run the completion engine once at <line>:<column> of <file> and print the
suggestions. Line and column are 1-based; the column counts UTF-16 code
units, as editors do.

Citation browser and surround side effects are run and printed too.

Examples:
  texsense complete paper.tex 12 7
  texsense complete paper.tex 3 6 --json
  texsense complete paper.tex 3 2 --selection 'x+y'   # surround choices`,
	Args: cobra.ExactArgs(3),
	RunE: runComplete,
}

var (
	completeJSON      bool
	completeSelection string
)

func init() {
	CompleteCmd.Flags().BoolVar(&completeJSON, "json", false, "Output as JSON")
	CompleteCmd.Flags().StringVar(&completeSelection, "selection", "", "Pretend this text is selected for surround")
}

// completionResult is what one CLI completion produced.
type completionResult struct {
	Context   string                    `json:"context,omitempty"`
	Items     []complete.Suggestion     `json:"items"`
	Citations []provider.BibEntry       `json:"citations,omitempty"`
	Surround  []provider.SurroundChoice `json:"surround,omitempty"`
}

// fileLines implements complete.Document over a file read once.
type fileLines []string

func (f fileLines) LineAt(line int) string {
	if line < 0 || line >= len(f) {
		return ""
	}
	return f[line]
}

// docsOf implements provider.Documents over the one file being completed.
type docsOf map[string]string

func (d docsOf) Texts() map[string]string { return d }

// collector implements provider.Client by keeping what it is sent.
type collector struct {
	mu        sync.Mutex
	citations []provider.BibEntry
	surround  []provider.SurroundChoice
}

func (c *collector) OpenCitationBrowser(ctx context.Context, entries []provider.BibEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.citations = entries
}

func (c *collector) OfferSurround(ctx context.Context, choices []provider.SurroundChoice) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surround = choices
	return true
}

func runComplete(cmd *cobra.Command, args []string) error {
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		return errors.NewInvalidRequestError("line must be a positive integer, got %q", args[1])
	}
	column, err := strconv.Atoi(args[2])
	if err != nil || column < 1 {
		return errors.NewInvalidRequestError("column must be a positive integer, got %q", args[2])
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	result, err := completeFile(cmd.Context(), cfg, args[0], complete.Position{Line: line - 1, Character: column - 1}, completeSelection)
	if err != nil {
		return err
	}

	if completeJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal result")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return renderResult(cmd.OutOrStdout(), result)
}

// completeFile loads the resources synchronously, answers one request at
// pos and runs its follow-up inline.
func completeFile(ctx context.Context, cfg *am.Config, path string, pos complete.Position, selection string) (*completionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	text := string(data)

	log := logger.ComponentLogger("complete")
	client := &collector{}
	command := provider.NewCommand(client, log.Named("command"))
	environment := provider.NewEnvironment()

	loader := complete.NewLoader(complete.ResourceDir(cfg.Data.Dir), complete.DefaultResourceFiles(), command, environment, log.Named("loader"))
	if err := loader.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load completion resources")
	}

	root := cfg.Workspace.Root
	if root == "" || root == "." {
		root = filepath.Dir(path)
	}
	uri := "file://" + filepath.ToSlash(path)
	docs := docsOf{uri: text}
	bib := provider.NewBibFiles(root, log.Named("bib"))

	completer := complete.NewCompleter(complete.Providers{
		Citation:    provider.NewCitation(bib, docs, client, 0, log.Named("citation")),
		Reference:   provider.NewReference(docs),
		Environment: environment,
		Command:     command,
	}, am.NewGate(cfg), log)

	slot := &complete.SelectionSlot{}
	if selection != "" {
		slot.Set(selection)
	}

	resp := completer.Provide(ctx, complete.Request{
		Document:  fileLines(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")),
		Position:  pos,
		Selection: slot,
	})
	if resp.Followup != nil {
		resp.Followup(ctx)
	}

	result := &completionResult{
		Items:     resp.Items,
		Citations: client.citations,
		Surround:  client.surround,
	}
	if resp.Matched || len(resp.Items) > 0 {
		result.Context = resp.Context.String()
	}
	return result, nil
}

// renderResult prints result as tables.
func renderResult(w io.Writer, result *completionResult) error {
	switch {
	case len(result.Citations) > 0:
		data := pterm.TableData{{"Key", "Title", "Summary"}}
		for _, e := range result.Citations {
			data = append(data, []string{e.Key, e.Title(), e.Summary()})
		}
		return renderTable(w, "Citation browser", data)

	case len(result.Surround) > 0:
		data := pterm.TableData{{"Command", "Result"}}
		for _, c := range result.Surround {
			data = append(data, []string{c.Label, c.Text})
		}
		return renderTable(w, "Surround", data)

	case len(result.Items) == 0:
		fmt.Fprintln(w, "No completions")
		return nil
	}

	data := pterm.TableData{{"Label", "Kind", "Insert", "Detail"}}
	for _, item := range result.Items {
		data = append(data, []string{item.Label, string(item.Kind), item.InsertText, item.Detail})
	}
	title := "Completions"
	if result.Context != "" {
		title = fmt.Sprintf("Completions (%s)", result.Context)
	}
	return renderTable(w, title, data)
}

func renderTable(w io.Writer, title string, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	fmt.Fprintf(w, "%s (%d)\n%s\n", title, len(data)-1, table)
	return nil
}
