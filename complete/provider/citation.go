package provider

import (
	"context"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/logger"
)

var bibitemPattern = regexp.MustCompile(`\\bibitem(?:\[[^\]]*\])?\{([^}]+)\}`)

// Citation suggests bibliography keys from .bib files and from \bibitem
// commands in open documents.
type Citation struct {
	bib     *BibFiles
	docs    Documents
	client  Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewCitation creates the provider. interval is the minimum time between two
// picker openings; zero disables throttling. bib, docs and client may be nil.
func NewCitation(bib *BibFiles, docs Documents, client Client, interval time.Duration, log *zap.SugaredLogger) *Citation {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Citation{
		bib:     bib,
		docs:    docs,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log,
	}
}

// Entries returns the known entries, deduplicated by key and sorted.
// Keys from .bib files win over \bibitem keys.
func (c *Citation) Entries() []BibEntry {
	byKey := map[string]BibEntry{}
	if c.bib != nil {
		for _, e := range c.bib.Entries() {
			if _, ok := byKey[e.Key]; !ok {
				byKey[e.Key] = e
			}
		}
	}
	if c.docs != nil {
		uris, texts := byURI(c.docs)
		for _, uri := range uris {
			for _, m := range bibitemPattern.FindAllStringSubmatch(texts[uri], -1) {
				if _, ok := byKey[m[1]]; !ok {
					byKey[m[1]] = BibEntry{Key: m[1], Type: "bibitem", File: uri}
				}
			}
		}
	}

	entries := make([]BibEntry, 0, len(byKey))
	for _, e := range byKey {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (c *Citation) Provide(ctx context.Context) []complete.Suggestion {
	entries := c.Entries()
	if len(entries) == 0 {
		return nil
	}
	items := make([]complete.Suggestion, 0, len(entries))
	for _, e := range entries {
		items = append(items, complete.Suggestion{
			Label:         e.Key,
			Kind:          complete.KindReference,
			InsertText:    e.Key,
			Detail:        e.Title(),
			Documentation: e.Summary(),
		})
	}
	return items
}

// Browser sends every entry to the client's picker. Calls arriving faster
// than the configured interval are dropped.
func (c *Citation) Browser(ctx context.Context) {
	log := logger.FromContext(ctx, c.logger)
	if !c.limiter.Allow() {
		log.Debugw("Citation browser throttled")
		return
	}
	if c.client == nil {
		log.Debugw("Citation browser has no client")
		return
	}
	entries := c.Entries()
	log.Infow("Opening citation browser", logger.FieldCount, len(entries))
	c.client.OpenCitationBrowser(ctx, entries)
}
