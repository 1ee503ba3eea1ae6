// Package provider holds the default completion providers: environments,
// commands and math symbols from the static resources, bibliography keys
// from .bib files and \bibitem, and \label keys from open documents.
package provider

import (
	"context"
	"sort"

	"github.com/teranos/texsense/complete"
)

// Client receives the side effects that happen outside the completion list.
// The server implements it by sending notifications to the editor.
// OfferSurround reports whether the choices were sent.
type Client interface {
	OpenCitationBrowser(ctx context.Context, entries []BibEntry)
	OfferSurround(ctx context.Context, choices []SurroundChoice) bool
}

// Documents gives read access to the text of every open document.
type Documents interface {
	// Texts returns a snapshot of uri -> full text.
	Texts() map[string]string
}

// SurroundChoice is one way of wrapping the selected text.
type SurroundChoice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// byURI returns the document texts in URI order, so a key found in several
// documents is always attributed to the same one.
func byURI(docs Documents) (uris []string, texts map[string]string) {
	texts = docs.Texts()
	uris = make([]string, 0, len(texts))
	for uri := range texts {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris, texts
}

// sortSuggestions orders by label so editors get stable lists.
func sortSuggestions(items []complete.Suggestion) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Label < items[j].Label
	})
}

// snapshot returns a copy so callers can't mutate published state.
func snapshot(items *[]complete.Suggestion) []complete.Suggestion {
	if items == nil || len(*items) == 0 {
		return nil
	}
	out := make([]complete.Suggestion, len(*items))
	copy(out, *items)
	return out
}

var (
	_ complete.CitationProvider    = (*Citation)(nil)
	_ complete.ReferenceProvider   = (*Reference)(nil)
	_ complete.EnvironmentProvider = (*Environment)(nil)
	_ complete.CommandProvider     = (*Command)(nil)
)
