package complete

import (
	"context"
	"regexp"

	"github.com/teranos/texsense/errors"
)

// Every pattern is anchored at the end of the line prefix. The command
// pattern matches a suffix of all the others, which is why it comes last.
var patterns = [numContextTypes]*regexp.Regexp{
	Citation:    regexp.MustCompile(`(?:\\[a-zA-Z]*cite[a-zA-Z]*(?:\[[^\[\]]*\])*)\{([^}]*)$`),
	Reference:   regexp.MustCompile(`(?:\\[a-zA-Z]*ref[a-zA-Z]*(?:\[[^\[\]]*\])?)\{([^}]*)$`),
	Environment: regexp.MustCompile(`(?:\\(?:begin|end)(?:\[[^\[\]]*\])?)\{([^}]*)$`),
	Command:     regexp.MustCompile(`\\([a-zA-Z]*)$`),
}

// Provider supplies candidates for one context type.
type Provider interface {
	Provide(ctx context.Context) []Suggestion
}

// CitationProvider supplies bibliography keys and can open an interactive
// picker outside the completion list.
type CitationProvider interface {
	Provider
	Browser(ctx context.Context)
}

// ReferenceProvider supplies \label keys.
type ReferenceProvider interface {
	Provider
}

// EnvironmentProvider supplies environment names once initialized from the
// static environments resource.
type EnvironmentProvider interface {
	Provider
	Initialize(envs map[string]EnvironmentDef)
}

// CommandProvider supplies command names and can wrap a selection with a
// chosen command. Surround reports whether choices reached the editor.
type CommandProvider interface {
	Provider
	Initialize(commands map[string]CommandDef, symbols map[string]SymbolDef, envs map[string]EnvironmentDef)
	Surround(ctx context.Context, text string) bool
}

// Providers bundles one provider per context type.
type Providers struct {
	Citation    CitationProvider
	Reference   ReferenceProvider
	Environment EnvironmentProvider
	Command     CommandProvider
}

// rule binds a context type to its pattern and provider.
type rule struct {
	kind     ContextType
	pattern  *regexp.Regexp
	provider Provider
}

// ruleTable is indexed by ContextType.
type ruleTable [numContextTypes]rule

func newRuleTable(p Providers) ruleTable {
	var table ruleTable
	for _, t := range ContextTypes {
		table[t] = rule{kind: t, pattern: patterns[t]}
		switch t {
		case Citation:
			table[t].provider = p.Citation
		case Reference:
			table[t].provider = p.Reference
		case Environment:
			table[t].provider = p.Environment
		case Command:
			table[t].provider = p.Command
		}
	}
	return table
}

// lookup returns the rule for t. Only an out-of-range tag can fail.
func (table *ruleTable) lookup(t ContextType) (rule, error) {
	if t < 0 || t >= numContextTypes {
		return rule{}, errors.Wrapf(errors.ErrUnknownContextType, "context type %d", int(t))
	}
	return table[t], nil
}

// Match reports which context types' patterns match prefix, in priority order.
func Match(prefix string) []ContextType {
	var matched []ContextType
	for _, t := range ContextTypes {
		if patterns[t].MatchString(prefix) {
			matched = append(matched, t)
		}
	}
	return matched
}
