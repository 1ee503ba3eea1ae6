package provider

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/logger"
)

// surroundPlaceholder marks where the selection goes when wrapping.
const surroundPlaceholder = 1

// commandState is published atomically by Initialize.
type commandState struct {
	items []complete.Suggestion
	// wrappers are the snippets with a first placeholder, sorted by label.
	wrappers []wrapper
}

type wrapper struct {
	label   string
	snippet string
}

// Command suggests command names, math symbols and \begin{...} environment
// snippets, and wraps selections for surround mode.
type Command struct {
	client Client
	logger *zap.SugaredLogger
	state  atomic.Pointer[commandState]
}

// NewCommand creates an uninitialized provider. client may be nil, in which
// case Surround only logs.
func NewCommand(client Client, log *zap.SugaredLogger) *Command {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Command{client: client, logger: log}
}

func (c *Command) Initialize(commands map[string]complete.CommandDef, symbols map[string]complete.SymbolDef, envs map[string]complete.EnvironmentDef) {
	seen := make(map[string]bool, len(commands)+len(symbols)+len(envs))
	state := &commandState{}

	for name, def := range commands {
		cmd := def.Command
		if cmd == "" {
			cmd = name
		}
		item := complete.Suggestion{
			Label:         cmd,
			Kind:          complete.KindFunction,
			InsertText:    cmd,
			Detail:        def.Detail,
			Documentation: def.Documentation,
		}
		if def.Snippet != "" {
			if err := complete.ValidateSnippet(def.Snippet); err != nil {
				c.logger.Warnw("Skipping command with invalid snippet", "command", cmd, logger.FieldError, err)
				continue
			}
			item.InsertText = def.Snippet
			item.Snippet = true
			if wrapsOnce(def.Snippet) {
				state.wrappers = append(state.wrappers, wrapper{label: cmd, snippet: def.Snippet})
			}
		}
		if def.Package != "" && item.Detail == "" {
			item.Detail = "package " + def.Package
		}
		seen[cmd] = true
		state.items = append(state.items, item)
	}

	for name, def := range symbols {
		cmd := def.Command
		if cmd == "" {
			cmd = name
		}
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		state.items = append(state.items, complete.Suggestion{
			Label:         cmd,
			Kind:          complete.KindConstant,
			InsertText:    cmd,
			Detail:        def.Detail,
			Documentation: def.Documentation,
		})
	}

	for name, def := range envs {
		env := def.Text
		if env == "" {
			env = name
		}
		label := "begin{" + env + "}"
		if seen[label] {
			continue
		}
		seen[label] = true
		state.items = append(state.items, complete.Suggestion{
			Label:      label,
			Kind:       complete.KindSnippet,
			InsertText: environmentSnippet(env, def.Snippet),
			Snippet:    true,
			Detail:     "environment " + env,
		})
		state.wrappers = append(state.wrappers, wrapper{
			label:   label,
			snippet: "begin{" + env + "}\n${1}\n\\end{" + env + "}",
		})
	}

	sortSuggestions(state.items)
	sort.Slice(state.wrappers, func(i, j int) bool { return state.wrappers[i].label < state.wrappers[j].label })
	c.state.Store(state)
}

// wrapsOnce reports whether the first placeholder appears exactly once, so
// the selection is not duplicated when wrapping.
func wrapsOnce(snippet string) bool {
	return strings.Count(snippet, "${1}")+strings.Count(snippet, "${1:") == 1
}

// environmentSnippet builds the \begin ... \end snippet for env. The body
// keeps its own placeholders; a bare body gets a single stop.
func environmentSnippet(env, body string) string {
	if body == "" || complete.ValidateSnippet(body) != nil {
		body = "\t${1}"
	}
	return "begin{" + env + "}\n" + body + "\n\\end{" + env + "}${0}"
}

func (c *Command) Provide(ctx context.Context) []complete.Suggestion {
	state := c.state.Load()
	if state == nil {
		return nil
	}
	return snapshot(&state.items)
}

// Surround offers text wrapped by every command whose snippet has a first
// placeholder. Each choice's text starts with the backslash.
func (c *Command) Surround(ctx context.Context, text string) bool {
	choices := c.SurroundChoices(text)
	log := logger.FromContext(ctx, c.logger)
	if len(choices) == 0 {
		log.Debugw("No surround commands available")
		return false
	}
	if c.client == nil {
		log.Debugw("Surround has no client", logger.FieldCount, len(choices))
		return false
	}
	log.Debugw("Offering surround", logger.FieldCount, len(choices), logger.FieldSize, len(text))
	return c.client.OfferSurround(ctx, choices)
}

// SurroundChoices returns the wrapped variants of text without sending them.
func (c *Command) SurroundChoices(text string) []SurroundChoice {
	state := c.state.Load()
	if state == nil {
		return nil
	}
	choices := make([]SurroundChoice, 0, len(state.wrappers))
	for _, w := range state.wrappers {
		exp, err := complete.ExpandSnippet(w.snippet, map[int]string{surroundPlaceholder: text})
		if err != nil {
			continue
		}
		if _, ok := exp.Stops[surroundPlaceholder]; !ok {
			continue
		}
		choices = append(choices, SurroundChoice{Label: w.label, Text: `\` + exp.Text})
	}
	return choices
}
