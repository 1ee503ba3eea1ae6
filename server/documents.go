package server

import (
	"context"
	"strings"
	"sync"

	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/errors"
)

// document is one open text document. lines is rebuilt on every change so
// requests can read a stable snapshot without holding the store lock.
type document struct {
	text      string
	lines     []string
	selection *complete.SelectionSlot
	// cancel aborts the most recent completion request for this document.
	cancel context.CancelFunc
}

// lines implements complete.Document over a snapshot of document lines.
type lines []string

func (l lines) LineAt(line int) string {
	if line < 0 || line >= len(l) {
		return ""
	}
	return l[line]
}

// documentStore caches open documents for one client. max bounds the number
// of open documents; zero means unbounded.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]*document
	max  int
}

func newDocumentStore(max int) *documentStore {
	return &documentStore{
		docs: make(map[string]*document),
		max:  max,
	}
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// open adds or replaces a document. Re-opening keeps the pending selection.
func (s *documentStore) open(uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.docs[uri]
	if !exists {
		if s.max > 0 && len(s.docs) >= s.max {
			return errors.Newf("document cache limit reached (%d documents open)", s.max)
		}
		doc = &document{selection: &complete.SelectionSlot{}}
		s.docs[uri] = doc
	}
	doc.text = text
	doc.lines = splitLines(text)
	return nil
}

// update replaces the text of an open document.
func (s *documentStore) update(uri, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return errors.NewNotFoundError("document %s is not open", uri)
	}
	doc.text = text
	doc.lines = splitLines(text)
	return nil
}

// close removes a document and cancels its in-flight request.
func (s *documentStore) close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[uri]; ok {
		if doc.cancel != nil {
			doc.cancel()
		}
		delete(s.docs, uri)
	}
}

// begin starts a completion request on uri. The previous request's context
// is cancelled; the new one stays live until superseded, closed or the
// parent ends, so scheduled followups still run after the response.
func (s *documentStore) begin(parent context.Context, uri string) (context.Context, lines, *complete.SelectionSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return nil, nil, nil, false
	}
	if doc.cancel != nil {
		doc.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	doc.cancel = cancel
	return ctx, lines(doc.lines), doc.selection, true
}

// selection returns the surround slot of an open document.
func (s *documentStore) selection(uri string) (*complete.SelectionSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	return doc.selection, true
}

// Texts implements provider.Documents.
func (s *documentStore) Texts() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.docs))
	for uri, doc := range s.docs {
		out[uri] = doc.text
	}
	return out
}

func (s *documentStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// closeAll cancels every in-flight request and forgets all documents.
func (s *documentStore) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for uri, doc := range s.docs {
		if doc.cancel != nil {
			doc.cancel()
		}
		delete(s.docs, uri)
	}
}
