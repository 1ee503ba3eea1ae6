package provider

import (
	"context"
	"path"
	"regexp"

	"github.com/teranos/texsense/complete"
)

var labelPattern = regexp.MustCompile(`\\label\{([^}]+)\}`)

// Reference suggests \label keys found in open documents.
type Reference struct {
	docs Documents
}

func NewReference(docs Documents) *Reference {
	return &Reference{docs: docs}
}

func (r *Reference) Provide(ctx context.Context) []complete.Suggestion {
	if r.docs == nil {
		return nil
	}
	seen := map[string]bool{}
	var items []complete.Suggestion
	uris, texts := byURI(r.docs)
	for _, uri := range uris {
		for _, m := range labelPattern.FindAllStringSubmatch(texts[uri], -1) {
			key := m[1]
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, complete.Suggestion{
				Label:      key,
				Kind:       complete.KindReference,
				InsertText: key,
				Detail:     path.Base(uri),
			})
		}
	}
	sortSuggestions(items)
	return items
}
