package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	itext "github.com/kpumuk/line-weaver/internal/text"
	"github.com/kpumuk/line-weaver/internal/transform"
)

const (
	serverName = "linels"

	// maxPendingCancels bounds cancellations recorded for requests not yet read.
	maxPendingCancels = 64
)

// Server is a line-operations LSP server with an in-memory snapshot store.
type Server struct {
	store  *SnapshotStore
	logger *slog.Logger

	mu            sync.Mutex
	opts          transform.Options
	cancelled     map[string]struct{}
	cancelOrder   []string
	shutdown      bool
	exitRequested bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request tracing. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOptions sets the operation defaults; initializationOptions may override them.
func WithOptions(opts transform.Options) Option {
	return func(s *Server) {
		s.opts = opts
	}
}

// NewServer creates a new LSP server instance.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:     NewSnapshotStore(),
		logger:    slog.New(slog.DiscardHandler),
		cancelled: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing snapshot store (primarily for tests).
func (s *Server) Store() *SnapshotStore {
	if s == nil {
		return nil
	}
	return s.store
}

// Options returns the operation options currently in effect.
func (s *Server) Options() transform.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Run serves JSON-RPC/LSP messages using Content-Length framing.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if s == nil {
		return errors.New("nil Server")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := readFramedMessage(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Warn("malformed frame", "error", err)
			_ = s.writeErrorResponse(bw, nil, jsonRPCParseError, err.Error())
			_ = bw.Flush()
			continue
		}
		if len(body) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			_ = s.writeErrorResponse(bw, nil, jsonRPCParseError, err.Error())
			_ = bw.Flush()
			continue
		}
		if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
			_ = s.writeErrorResponse(bw, req.ID, jsonRPCInvalidRequest, "unsupported jsonrpc version")
			_ = bw.Flush()
			continue
		}
		if req.Method == "" {
			// Client responses are not expected; drop them.
			continue
		}

		start := time.Now()
		err = s.dispatch(ctx, bw, req)
		s.logger.Debug("handled", "method", req.Method, "duration", time.Since(start))
		if err != nil {
			if errors.Is(err, ErrShutdownRequested) {
				return nil
			}
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}

//nolint:funcorder // dispatch is kept near Run for readability of request flow.
func (s *Server) dispatch(ctx context.Context, w *bufio.Writer, req Request) error {
	isRequest := len(req.ID) != 0

	writeResp := func(result any) error {
		if !isRequest {
			return nil
		}
		return s.writeResponse(w, Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result})
	}
	writeErr := func(code int, msg string) error {
		s.logger.Warn("request failed", "method", req.Method, "code", code, "error", msg)
		if !isRequest {
			return nil
		}
		return s.writeErrorResponse(w, req.ID, code, msg)
	}

	if req.Method != "exit" && s.isShutdown() {
		return writeErr(jsonRPCInvalidRequest, "server is shutting down")
	}
	if isRequest && s.takeCancelled(req.ID) {
		return writeErr(lspErrorRequestCancelled, "request cancelled")
	}

	switch req.Method {
	case "initialize":
		var p InitializeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return writeErr(jsonRPCInvalidParams, err.Error())
			}
		}
		res, err := s.Initialize(ctx, p)
		if err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		return writeResp(res)
	case "initialized":
		return nil
	case "shutdown":
		if err := s.Shutdown(ctx); err != nil {
			return writeErr(jsonRPCInternalError, err.Error())
		}
		return writeResp(struct{}{})
	case "exit":
		s.Exit()
		return ErrShutdownRequested
	case "$/cancelRequest":
		var p CancelParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		s.Cancel(p)
		return nil
	case "textDocument/didOpen":
		var p DidOpenParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		if err := s.DidOpen(ctx, p); err != nil {
			return writeErr(errorCode(err, jsonRPCInternalError), err.Error())
		}
		return nil
	case "textDocument/didChange":
		var p DidChangeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		if err := s.DidChange(ctx, p); err != nil {
			return writeErr(errorCode(err, jsonRPCInternalError), err.Error())
		}
		return nil
	case "textDocument/didClose":
		var p DidCloseParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		if err := s.DidClose(ctx, p); err != nil {
			return writeErr(jsonRPCInternalError, err.Error())
		}
		return nil
	case "textDocument/formatting":
		var p DocumentFormattingParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		edits, err := s.Formatting(ctx, p)
		if err != nil {
			return writeErr(errorCode(err, lspErrorRequestFailed), err.Error())
		}
		return writeResp(edits)
	case "textDocument/codeAction":
		var p CodeActionParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		actions, err := s.CodeAction(ctx, p)
		if err != nil {
			return writeErr(errorCode(err, lspErrorRequestFailed), err.Error())
		}
		return writeResp(actions)
	case "workspace/executeCommand":
		var p ExecuteCommandParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return writeErr(jsonRPCInvalidParams, err.Error())
		}
		res, err := s.ExecuteCommand(ctx, p)
		if err != nil {
			return writeErr(errorCode(err, lspErrorRequestFailed), err.Error())
		}
		return writeResp(res)
	default:
		return writeErr(jsonRPCMethodNotFound, "method not found")
	}
}

// Initialize handles the LSP initialize request and applies initializationOptions.
func (s *Server) Initialize(ctx context.Context, p InitializeParams) (InitializeResult, error) {
	_ = ctx
	if o := p.InitializationOptions; o != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if o.Locale != "" {
			tag, err := transform.ParseLocale(o.Locale)
			if err != nil {
				return InitializeResult{}, err
			}
			s.opts.Locale = tag
		}
		if o.TrimWhitespaceOnlyLines != nil {
			s.opts.TrimWhitespaceOnlyLines = *o.TrimWhitespaceOnlyLines
		}
		if o.KeepEditingPoints != nil {
			s.opts.KeepEditingPoints = *o.KeepEditingPoints
		}
		s.logger.Debug("initialization options applied",
			"locale", s.opts.Locale.String(),
			"trimWhitespaceOnlyLines", s.opts.TrimWhitespaceOnlyLines,
			"keepEditingPoints", s.opts.KeepEditingPoints)
	}
	return InitializeResult{
		Capabilities: DefaultServerCapabilities(),
		ServerInfo:   &ServerInfo{Name: serverName},
	}, nil
}

// Shutdown handles the LSP shutdown request. It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = ctx
	if s == nil {
		return errors.New("nil Server")
	}
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return nil
}

// Exit handles the LSP exit notification.
func (s *Server) Exit() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.exitRequested = true
	s.mu.Unlock()
}

// Cancel records a $/cancelRequest. Requests are served in order, so only a request
// that has not been read yet can still be cancelled. Cancellations for requests that
// were already answered never match, so only the newest maxPendingCancels are kept.
func (s *Server) Cancel(p CancelParams) {
	if s == nil || len(p.ID) == 0 {
		return
	}
	id := string(p.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cancelled[id]; ok {
		return
	}
	if len(s.cancelOrder) == maxPendingCancels {
		delete(s.cancelled, s.cancelOrder[0])
		s.cancelOrder = slices.Delete(s.cancelOrder, 0, 1)
	}
	s.cancelled[id] = struct{}{}
	s.cancelOrder = append(s.cancelOrder, id)
}

// DidOpen stores the opened document snapshot.
func (s *Server) DidOpen(ctx context.Context, p DidOpenParams) error {
	store, err := s.requireStore()
	if err != nil {
		return err
	}
	_, err = store.Open(ctx, p.TextDocument.URI, p.TextDocument.Version, []byte(p.TextDocument.Text))
	return err
}

// DidChange applies text changes and stores the new snapshot.
func (s *Server) DidChange(ctx context.Context, p DidChangeParams) error {
	store, err := s.requireStore()
	if err != nil {
		return err
	}
	_, err = store.Change(ctx, p.TextDocument.URI, p.TextDocument.Version, p.ContentChanges)
	return err
}

// DidClose removes the document snapshot if present.
func (s *Server) DidClose(ctx context.Context, p DidCloseParams) error {
	_ = ctx
	store, err := s.requireStore()
	if err != nil {
		return err
	}
	store.Close(p.TextDocument.URI)
	return nil
}

// Formatting handles textDocument/formatting by trimming trailing whitespace.
// A client that sets options.trimTrailingWhitespace to false gets no edits.
func (s *Server) Formatting(ctx context.Context, p DocumentFormattingParams) ([]TextEdit, error) {
	snap, err := s.documentSnapshot(ctx, p.TextDocument.URI, p.Version)
	if err != nil {
		return nil, err
	}
	if t := p.Options.TrimTrailingWhitespace; t != nil && !*t {
		return []TextEdit{}, nil
	}

	opts := s.Options()
	plan, ok := transform.TrimTrailingWhitespace(snap.Text, transform.TrimOptions{
		IgnoresEmptyLines: !opts.TrimWhitespaceOnlyLines,
	})
	if !ok {
		return []TextEdit{}, nil
	}
	return textEditsFromByteEdits(snap.Lines, plan.Edits)
}

// CodeAction handles textDocument/codeAction. It offers the reordering operations
// that apply to the requested range; an empty range means the whole document.
func (s *Server) CodeAction(ctx context.Context, p CodeActionParams) ([]CodeAction, error) {
	snap, err := s.documentSnapshot(ctx, p.TextDocument.URI, nil)
	if err != nil {
		return nil, err
	}
	if !codeActionKindRequested(p.Context.Only, CodeActionKindRewrite) {
		return []CodeAction{}, nil
	}
	span, err := rangeToSpan(snap.Lines, p.Range)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	opts := s.Options()
	actions := make([]CodeAction, 0, len(codeActionOperations))
	for _, name := range codeActionOperations {
		op, _ := transform.Lookup(name)
		plan, ok, err := op.Apply(snap.Text, []itext.Span{span}, opts)
		if err != nil {
			return nil, err
		}
		if !ok || !plan.Changed(snap.Text) {
			continue
		}
		edits, err := textEditsFromByteEdits(snap.Lines, plan.Edits)
		if err != nil {
			return nil, err
		}
		actions = append(actions, CodeAction{
			Title: op.ActionName,
			Kind:  CodeActionKindRewrite,
			Edit:  &WorkspaceEdit{Changes: map[string][]TextEdit{snap.URI: edits}},
		})
	}
	return actions, nil
}

// ExecuteCommand handles workspace/executeCommand for lineweaver.<operation>
// commands. An inapplicable operation is a successful result with applicable=false.
func (s *Server) ExecuteCommand(ctx context.Context, p ExecuteCommandParams) (LineCommandResult, error) {
	name, ok := strings.CutPrefix(p.Command, CommandPrefix)
	if !ok {
		return LineCommandResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, p.Command)
	}
	op, ok := transform.Lookup(name)
	if !ok {
		return LineCommandResult{}, fmt.Errorf("%w: %q", ErrUnknownCommand, p.Command)
	}
	if len(p.Arguments) != 1 {
		return LineCommandResult{}, fmt.Errorf("%w: want 1 argument, got %d", ErrInvalidArguments, len(p.Arguments))
	}
	var args LineCommandArgs
	if err := json.Unmarshal(p.Arguments[0], &args); err != nil {
		return LineCommandResult{}, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	snap, err := s.documentSnapshot(ctx, args.TextDocument.URI, args.Version)
	if err != nil {
		return LineCommandResult{}, err
	}
	selections, err := rangesToSpans(snap.Lines, args.Selections)
	if err != nil {
		return LineCommandResult{}, fmt.Errorf("%w: %w", transform.ErrInvalidSelection, err)
	}

	plan, ok, err := op.Apply(snap.Text, selections, s.Options())
	if err != nil {
		return LineCommandResult{}, err
	}
	res := LineCommandResult{ActionName: op.ActionName, Edits: []TextEdit{}}
	if !ok {
		s.logger.Debug("operation inapplicable", "operation", op.Name, "uri", snap.URI)
		return res, nil
	}

	res.Applicable = true
	if res.Edits, err = textEditsFromByteEdits(snap.Lines, plan.Edits); err != nil {
		return LineCommandResult{}, err
	}
	if plan.Selections != nil {
		out, err := plan.Apply(snap.Text)
		if err != nil {
			return LineCommandResult{}, err
		}
		if res.Selections, err = spansToRanges(itext.NewLineIndex(out), plan.Selections); err != nil {
			return LineCommandResult{}, err
		}
	}
	return res, nil
}

func (s *Server) documentSnapshot(ctx context.Context, uri string, version *int32) (*Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	if version != nil {
		return store.SnapshotAtVersion(uri, *version)
	}
	snap, ok := store.Snapshot(uri)
	if !ok {
		return nil, ErrDocumentNotOpen
	}
	return snap, nil
}

func (s *Server) takeCancelled(id json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(id)
	if _, ok := s.cancelled[key]; !ok {
		return false
	}
	delete(s.cancelled, key)
	s.cancelOrder = slices.DeleteFunc(s.cancelOrder, func(pending string) bool { return pending == key })
	return true
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFramedMessage(w, body)
}

func (s *Server) writeErrorResponse(w *bufio.Writer, id json.RawMessage, code int, msg string) error {
	return s.writeResponse(w, Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &ResponseError{Code: code, Message: msg},
	})
}

func (s *Server) requireStore() (*SnapshotStore, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("nil Server")
	}
	return s.store, nil
}

func errorCode(err error, fallback int) int {
	switch {
	case errors.Is(err, ErrStaleVersion):
		return lspErrorContentModified
	case errors.Is(err, context.Canceled):
		return lspErrorRequestCancelled
	case errors.Is(err, ErrDocumentNotOpen),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrInvalidArguments),
		errors.Is(err, transform.ErrInvalidSelection):
		return jsonRPCInvalidParams
	default:
		return fallback
	}
}

// codeActionKindRequested reports whether kind passes the client's "only" filter.
// A filter entry matches its own kind and every kind below it.
func codeActionKindRequested(only []string, kind string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if kind == o || strings.HasPrefix(kind, o+".") {
			return true
		}
	}
	return false
}
