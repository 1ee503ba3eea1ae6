package server

import (
	"context"
	"sync"

	"github.com/tliron/glsp"
	"go.uber.org/zap"

	"github.com/teranos/texsense/complete/provider"
	"github.com/teranos/texsense/logger"
)

// Notifications sent to the editor outside the completion list.
const (
	MethodCitationBrowser   = "texsense/citationBrowser"
	MethodSurround          = "texsense/surround"
	MethodSelectionConsumed = "texsense/selectionConsumed"
)

// CitationBrowserParams asks the editor to open its citation picker.
type CitationBrowserParams struct {
	URI     string          `json:"uri"`
	Entries []CitationEntry `json:"entries"`
}

// CitationEntry is one row of the citation picker.
type CitationEntry struct {
	Key     string `json:"key"`
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
	File    string `json:"file,omitempty"`
}

// SurroundParams asks the editor to let the user pick how to wrap the
// selection it registered through the surround command.
type SurroundParams struct {
	URI     string                    `json:"uri"`
	Choices []provider.SurroundChoice `json:"choices"`
}

// SelectionParams tells the editor a pending selection has been used.
type SelectionParams struct {
	URI string `json:"uri"`
}

type uriKey struct{}

// withDocumentURI records the document a request is about so side effects
// can be addressed to it.
func withDocumentURI(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, uriKey{}, uri)
}

func documentURI(ctx context.Context) string {
	uri, _ := ctx.Value(uriKey{}).(string)
	return uri
}

// notifier implements provider.Client over the connection's notify func,
// which is bound when the client initializes.
type notifier struct {
	mu     sync.RWMutex
	notify glsp.NotifyFunc
	logger *zap.SugaredLogger
}

func newNotifier(log *zap.SugaredLogger) *notifier {
	return &notifier{logger: log}
}

func (n *notifier) bind(notify glsp.NotifyFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notify = notify
}

func (n *notifier) send(ctx context.Context, method string, params any) bool {
	n.mu.RLock()
	notify := n.notify
	n.mu.RUnlock()

	if notify == nil {
		logger.FromContext(ctx, n.logger).Debugw("No client bound, dropping notification",
			logger.FieldMethod, method)
		return false
	}
	if ctx.Err() != nil {
		logger.FromContext(ctx, n.logger).Debugw("Request superseded, dropping notification",
			logger.FieldMethod, method)
		return false
	}
	notify(method, params)
	return true
}

func (n *notifier) OpenCitationBrowser(ctx context.Context, entries []provider.BibEntry) {
	rows := make([]CitationEntry, len(entries))
	for i, e := range entries {
		rows[i] = CitationEntry{
			Key:     e.Key,
			Title:   e.Title(),
			Summary: e.Summary(),
			File:    e.File,
		}
	}
	n.send(ctx, MethodCitationBrowser, CitationBrowserParams{URI: documentURI(ctx), Entries: rows})
}

func (n *notifier) OfferSurround(ctx context.Context, choices []provider.SurroundChoice) bool {
	return n.send(ctx, MethodSurround, SurroundParams{URI: documentURI(ctx), Choices: choices})
}

func (n *notifier) selectionConsumed(ctx context.Context, uri string) {
	n.send(ctx, MethodSelectionConsumed, SelectionParams{URI: uri})
}

var _ provider.Client = (*notifier)(nil)
