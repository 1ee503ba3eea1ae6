package provider

import (
	"context"
	"sync/atomic"

	"github.com/teranos/texsense/complete"
)

// Environment suggests environment names after \begin{ and \end{.
// It reports nothing until Initialize has been called.
type Environment struct {
	items atomic.Pointer[[]complete.Suggestion]
}

func NewEnvironment() *Environment {
	return &Environment{}
}

func (e *Environment) Initialize(envs map[string]complete.EnvironmentDef) {
	items := make([]complete.Suggestion, 0, len(envs))
	for name, def := range envs {
		text := def.Text
		if text == "" {
			text = name
		}
		item := complete.Suggestion{
			Label:      text,
			Kind:       complete.KindModule,
			InsertText: text,
		}
		if def.Package != "" {
			item.Detail = "package " + def.Package
		}
		items = append(items, item)
	}
	sortSuggestions(items)
	e.items.Store(&items)
}

func (e *Environment) Provide(ctx context.Context) []complete.Suggestion {
	return snapshot(e.items.Load())
}
