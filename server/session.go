package server

import (
	"context"
	"io/fs"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/complete/provider"
	"github.com/teranos/texsense/logger"
)

// Session is the language server state for one connected editor: its open
// documents, the completion engine wired to them, and the follow-up
// scheduler. Sessions share the settings gate.
type Session struct {
	gate      *am.Gate
	docs      *documentStore
	client    *notifier
	completer *complete.Completer
	scheduler *complete.Scheduler
	loader    *complete.Loader
	logger    *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession wires the default providers to a fresh document store and
// starts loading the static resources from resources in the background.
// Completion works before loading finishes; commands and environments
// appear once it has.
func NewSession(parent context.Context, gate *am.Gate, resources fs.FS, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg := gate.Config()
	ctx, cancel := context.WithCancel(parent)

	docs := newDocumentStore(cfg.Server.MaxDocuments)
	client := newNotifier(log.Named("client"))

	command := provider.NewCommand(client, log.Named("command"))
	environment := provider.NewEnvironment()
	bib := provider.NewBibFiles(cfg.Workspace.Root, log.Named("bib"))
	providers := complete.Providers{
		Citation:    provider.NewCitation(bib, docs, client, cfg.BrowserInterval(), log.Named("citation")),
		Reference:   provider.NewReference(docs),
		Environment: environment,
		Command:     command,
	}

	s := &Session{
		gate:      gate,
		docs:      docs,
		client:    client,
		completer: complete.NewCompleter(providers, gate, log.Named("complete")),
		scheduler: complete.NewScheduler(cfg.Settle(), log.Named("scheduler")),
		loader:    complete.NewLoader(resources, complete.DefaultResourceFiles(), command, environment, log.Named("loader")),
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.loader.Start(ctx)
	return s
}

// Handler returns the LSP method table for this session.
func (s *Session) Handler() *protocol.Handler {
	return &protocol.Handler{
		Initialize:                      s.Initialize,
		Initialized:                     s.Initialized,
		Shutdown:                        s.Shutdown,
		CancelRequest:                   s.CancelRequest,
		TextDocumentDidOpen:             s.TextDocumentDidOpen,
		TextDocumentDidChange:           s.TextDocumentDidChange,
		TextDocumentDidClose:            s.TextDocumentDidClose,
		TextDocumentCompletion:          s.TextDocumentCompletion,
		WorkspaceExecuteCommand:         s.WorkspaceExecuteCommand,
		WorkspaceDidChangeConfiguration: s.WorkspaceDidChangeConfiguration,
	}
}

// Loaded is closed once the static resources have been loaded or failed.
func (s *Session) Loaded() <-chan struct{} {
	return s.loader.Done()
}

// Close cancels in-flight requests, stops the scheduler and waits for the
// resource loader. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.docs.closeAll()
		s.scheduler.Stop()
		<-s.loader.Done()
		if err := s.loader.Err(); err != nil {
			s.logger.Debugw("Session closed after resource load failure", logger.FieldError, err)
		}
	})
}
