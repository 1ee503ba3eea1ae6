package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/internal/util"
	"github.com/teranos/texsense/logger"
	"github.com/teranos/texsense/version"
)

// ServerName is reported to editors in the initialize result.
const ServerName = "texsense"

// CommandSurround registers the editor's current selection for a document.
// Arguments: [uri, text].
const CommandSurround = "texsense.surround"

// TriggerCharacters are the characters that make editors ask for
// completions without an explicit invocation.
var TriggerCharacters = []string{"\\", "{", "(", "[", ","}

// Initialize handles LSP initialize request
func (s *Session) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.client.bind(ctx.Notify)

	clientName := ""
	if params.ClientInfo != nil {
		clientName = params.ClientInfo.Name
	}
	s.logger.Infow("LSP client initializing", "client", clientName)

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities := protocol.ServerCapabilities{
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: TriggerCharacters,
		},
		ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
			Commands: []string{CommandSurround},
		},
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: util.Ptr(true),
			Change:    &syncKind,
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: util.Ptr(version.Get().Version),
		},
	}, nil
}

// Initialized is called after client receives InitializeResult
func (s *Session) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	s.logger.Infow("LSP client initialized")
	return nil
}

// Shutdown cancels outstanding work. The connection itself is closed by
// the exit notification.
func (s *Session) Shutdown(ctx *glsp.Context) error {
	s.logger.Infow("LSP client shutting down", logger.FieldCount, s.docs.count())
	s.Close()
	return nil
}

// CancelRequest is logged only; superseded completions are cancelled per
// document when the next request arrives.
func (s *Session) CancelRequest(ctx *glsp.Context, params *protocol.CancelParams) error {
	s.logger.Debugw("Client cancelled request", "id", params.ID.Value)
	return nil
}

// TextDocumentDidOpen handles document open notifications
func (s *Session) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	if err := s.docs.open(uri, params.TextDocument.Text); err != nil {
		s.logger.Warnw("Rejecting document",
			logger.FieldURI, uri,
			logger.FieldError, err,
		)
		return err
	}

	s.logger.Debugw("Document opened",
		logger.FieldURI, uri,
		logger.FieldSize, len(params.TextDocument.Text),
		logger.FieldCount, s.docs.count(),
	)
	return nil
}

// TextDocumentDidChange handles document change notifications
func (s *Session) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	// Full document sync - the last whole-text change wins
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			if err := s.docs.update(uri, whole.Text); err != nil {
				s.logger.Warnw("Change for unknown document", logger.FieldURI, uri)
				return err
			}
		}
	}

	// A surround was applied since the last edit; the editor can drop its
	// selection now
	if slot, ok := s.docs.selection(uri); ok && slot.ShouldClear() {
		s.client.selectionConsumed(s.ctx, uri)
	}

	s.logger.Debugw("Document changed",
		logger.FieldURI, uri,
		"changes", len(params.ContentChanges),
	)
	return nil
}

// TextDocumentDidClose handles document close notifications
func (s *Session) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	s.docs.close(uri)
	s.logger.Debugw("Document closed", logger.FieldURI, uri)
	return nil
}

// TextDocumentCompletion answers a completion request and schedules the
// response's follow-up, if any, to run after the reply has gone out.
func (s *Session) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	uri := string(params.TextDocument.URI)

	// Panic recovery: if completion logic panics, return empty list instead of crashing
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Panic in completion handler",
				"panic", r,
				logger.FieldURI, uri,
			)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	reqCtx, doc, slot, ok := s.docs.begin(s.ctx, uri)
	if !ok {
		s.logger.Debugw("Completion for unknown document", logger.FieldURI, uri)
		return []protocol.CompletionItem{}, nil
	}
	reqCtx = logger.WithRequestID(withDocumentURI(reqCtx, uri), uuid.NewString())
	log := logger.FromContext(reqCtx, s.logger)

	start := time.Now()
	resp := s.completer.Provide(reqCtx, complete.Request{
		Document: doc,
		Position: complete.Position{
			Line:      int(params.Position.Line),
			Character: int(params.Position.Character),
		},
		Selection: slot,
	})

	if resp.Followup != nil && !s.scheduler.PostOrAbandon(reqCtx, resp.Followup, resp.Abandon) {
		log.Warnw("Follow-up dropped", logger.FieldContextType, resp.Context.String())
	}

	items := toCompletionItems(resp.Items)
	log.Infow("LSP completion",
		logger.FieldURI, uri,
		logger.FieldLine, params.Position.Line,
		logger.FieldCharacter, params.Position.Character,
		logger.FieldCount, len(items),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return items, nil
}

// WorkspaceExecuteCommand handles the surround command.
func (s *Session) WorkspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != CommandSurround {
		return nil, errors.NewInvalidRequestError("unknown command %q", params.Command)
	}
	if len(params.Arguments) != 2 {
		return nil, errors.NewInvalidRequestError("%s expects [uri, text], got %d arguments", CommandSurround, len(params.Arguments))
	}
	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, errors.NewInvalidRequestError("%s: uri must be a string", CommandSurround)
	}
	text, ok := params.Arguments[1].(string)
	if !ok {
		return nil, errors.NewInvalidRequestError("%s: text must be a string", CommandSurround)
	}

	slot, found := s.docs.selection(uri)
	if !found {
		return nil, errors.NewNotFoundError("document %s is not open", uri)
	}
	slot.Set(text)

	s.logger.Debugw("Selection registered for surround",
		logger.FieldURI, uri,
		logger.FieldSize, len(text),
	)
	return nil, nil
}

// WorkspaceDidChangeConfiguration layers editor settings over the file
// configuration. Invalid settings are logged and ignored.
func (s *Session) WorkspaceDidChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	settings, ok := params.Settings.(map[string]any)
	if !ok {
		s.logger.Debugw("Ignoring non-object settings")
		return nil
	}

	applied, err := s.gate.Apply(settings)
	if err != nil {
		s.logger.Warnw("Rejected editor settings", logger.FieldError, err)
		return nil
	}
	s.logger.Infow("Editor settings applied", "keys", applied)
	return nil
}

// toCompletionItems converts suggestions to LSP items, preserving order.
func toCompletionItems(items []complete.Suggestion) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, len(items))
	for i, item := range items {
		ci := protocol.CompletionItem{
			Label:      item.Label,
			Kind:       mapCompletionKind(item.Kind),
			Detail:     stringPtrOrNil(item.Detail),
			InsertText: stringPtrOrNil(item.InsertText),
		}
		if item.Documentation != "" {
			ci.Documentation = item.Documentation
		}
		if item.Snippet {
			format := protocol.InsertTextFormatSnippet
			ci.InsertTextFormat = &format
		}
		if item.Range != nil {
			ci.TextEdit = protocol.TextEdit{
				Range:   toRange(*item.Range),
				NewText: item.InsertText,
			}
		}
		out[i] = ci
	}
	return out
}

func toRange(r complete.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(r.Start.Line), Character: protocol.UInteger(r.Start.Character)},
		End:   protocol.Position{Line: protocol.UInteger(r.End.Line), Character: protocol.UInteger(r.End.Character)},
	}
}

// Helper functions

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapCompletionKind maps our completion kinds to LSP CompletionItemKind
func mapCompletionKind(kind complete.Kind) *protocol.CompletionItemKind {
	var k protocol.CompletionItemKind
	switch kind {
	case complete.KindFunction:
		k = protocol.CompletionItemKindFunction
	case complete.KindModule:
		k = protocol.CompletionItemKindModule
	case complete.KindReference:
		k = protocol.CompletionItemKindReference
	case complete.KindConstant:
		k = protocol.CompletionItemKindConstant
	case complete.KindSnippet:
		k = protocol.CompletionItemKindSnippet
	case complete.KindKeyword:
		k = protocol.CompletionItemKindKeyword
	default:
		k = protocol.CompletionItemKindText
	}
	return &k
}
