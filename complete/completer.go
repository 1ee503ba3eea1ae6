package complete

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/texsense/logger"
)

// CitationModeBrowser opens the citation picker instead of listing keys inline.
const CitationModeBrowser = "browser"

// Settings is read on every request; implementations must not cache.
type Settings interface {
	CitationMode() string
	SurroundEnabled() bool
	AutoClosingBrackets() bool
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Citation    string
	Surround    bool
	AutoClosing bool
}

func (s StaticSettings) CitationMode() string      { return s.Citation }
func (s StaticSettings) SurroundEnabled() bool     { return s.Surround }
func (s StaticSettings) AutoClosingBrackets() bool { return s.AutoClosing }

// Completer turns a request into a response by classifying the line prefix
// and dispatching to the matching provider.
type Completer struct {
	rules    ruleTable
	citation CitationProvider
	command  CommandProvider
	settings Settings
	logger   *zap.SugaredLogger
}

// NewCompleter builds the dispatch table. Any provider may be nil, in which
// case its context type never yields suggestions.
func NewCompleter(providers Providers, settings Settings, log *zap.SugaredLogger) *Completer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if settings == nil {
		settings = StaticSettings{}
	}
	return &Completer{
		rules:    newRuleTable(providers),
		citation: providers.Citation,
		command:  providers.Command,
		settings: settings,
		logger:   log,
	}
}

// Provide answers a completion request. It never fails: every path ends in a
// (possibly empty) response. A cancelled ctx stops dispatch between providers.
func (c *Completer) Provide(ctx context.Context, req Request) Response {
	start := time.Now()
	log := logger.FromContext(ctx, c.logger)
	prefix := req.Prefix()

	switch verdict, invoke := classify(prefix); verdict {
	case triggerMath:
		item := mathSnippet(invoke, req.Position, c.settings.AutoClosingBrackets())
		log.Debugw("Math snippet", logger.FieldInvokeChar, string(invoke))
		return Response{Items: []Suggestion{item}}
	case triggerNone:
		log.Debugw("Bracket without backslash, no completion", logger.FieldInvokeChar, string(invoke))
		return Response{}
	}

	for _, t := range ContextTypes {
		if ctx.Err() != nil {
			log.Debugw("Completion cancelled", logger.FieldContextType, t.String())
			return Response{}
		}

		items := c.complete(ctx, t, prefix)
		if len(items) == 0 {
			continue
		}

		resp := c.postProcess(req, t, items)
		log.Debugw("Completion resolved",
			logger.FieldContextType, t.String(),
			logger.FieldCount, len(resp.Items),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
		return resp
	}

	return Response{}
}

// complete runs a single context type's rule against prefix.
func (c *Completer) complete(ctx context.Context, t ContextType, prefix string) []Suggestion {
	r, err := c.rules.lookup(t)
	if err != nil {
		c.logger.Errorw("Internal error: trying to complete unknown type", logger.FieldError, err)
		return nil
	}
	if r.provider == nil || !r.pattern.MatchString(prefix) {
		return nil
	}
	return r.provider.Provide(ctx)
}

// postProcess applies the citation-browser and command-surround behaviors.
func (c *Completer) postProcess(req Request, t ContextType, items []Suggestion) Response {
	switch t {
	case Citation:
		if c.settings.CitationMode() == CitationModeBrowser {
			citation := c.citation
			return Response{
				Context: t,
				Matched: true,
				Followup: func(ctx context.Context) {
					citation.Browser(ctx)
				},
			}
		}

	case Command:
		if c.settings.SurroundEnabled() && req.Selection != nil {
			if selection := req.Selection.Take(); selection != "" {
				command := c.command
				source := req.Selection
				return Response{
					Context: t,
					Matched: true,
					Followup: func(ctx context.Context) {
						// The selection is cleared only once the choices were delivered
						if command.Surround(ctx, selection) {
							source.MarkCleared()
							return
						}
						source.Restore(selection)
					},
					Abandon: func() { source.Restore(selection) },
				}
			}
		}
	}

	return Response{Items: items, Context: t, Matched: true}
}
