// Package lsp implements the linels LSP server and shared protocol types.
package lsp

import "encoding/json"

// JSONRPCVersion is the supported JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Request identifies a JSON-RPC request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC/LSP error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CancelParams is the $/cancelRequest notification payload.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

// InitializeParams is the LSP initialize request payload subset used by linels.
type InitializeParams struct {
	ProcessID             *int64                 `json:"processId,omitempty"`
	InitializationOptions *InitializationOptions `json:"initializationOptions,omitempty"`
}

// InitializationOptions are the client-provided settings linels understands.
type InitializationOptions struct {
	// Locale is a BCP 47 tag used to collate sort-lines.
	Locale string `json:"locale,omitempty"`
	// TrimWhitespaceOnlyLines makes formatting also empty whitespace-only lines.
	TrimWhitespaceOnlyLines *bool `json:"trimWhitespaceOnlyLines,omitempty"`
	// KeepEditingPoints keeps trailing whitespace under the cursor in
	// lineweaver.trim-trailing-whitespace commands.
	KeepEditingPoints *bool `json:"keepEditingPoints,omitempty"`
}

// InitializeResult is the LSP initialize response payload.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo names the server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities declares supported LSP features.
type ServerCapabilities struct {
	TextDocumentSync           TextDocumentSyncOptions `json:"textDocumentSync"`
	DocumentFormattingProvider bool                    `json:"documentFormattingProvider,omitempty"`
	CodeActionProvider         *CodeActionOptions      `json:"codeActionProvider,omitempty"`
	ExecuteCommandProvider     *ExecuteCommandOptions  `json:"executeCommandProvider,omitempty"`
}

// TextDocumentSyncOptions declares document sync behavior.
type TextDocumentSyncOptions struct {
	OpenClose bool `json:"openClose,omitempty"`
	Change    int  `json:"change,omitempty"`
}

const (
	// TextDocumentSyncKindIncremental is LSP incremental sync mode.
	TextDocumentSyncKindIncremental = 2
)

// CodeActionOptions declares the code action kinds the server returns.
type CodeActionOptions struct {
	CodeActionKinds []string `json:"codeActionKinds,omitempty"`
}

// ExecuteCommandOptions lists the commands accepted by workspace/executeCommand.
type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

// TextDocumentIdentifier identifies an open document.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies an open document version.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int32  `json:"version"`
}

// TextDocumentItem is an LSP didOpen document payload.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId,omitempty"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

// DidOpenParams is the didOpen notification payload.
type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// Position is an LSP UTF-16 position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is an LSP UTF-16 range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextDocumentContentChangeEvent is a didChange text edit.
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength *int   `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// DidChangeParams is the didChange notification payload.
type DidChangeParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseParams is the didClose notification payload.
type DidCloseParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// FormattingOptions is the LSP formatting options subset linels reads.
type FormattingOptions struct {
	TabSize                int   `json:"tabSize,omitempty"`
	InsertSpaces           bool  `json:"insertSpaces,omitempty"`
	TrimTrailingWhitespace *bool `json:"trimTrailingWhitespace,omitempty"`
}

// DocumentFormattingParams is the LSP document formatting request payload.
type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Version      *int32                 `json:"version,omitempty"` // non-standard extension for stale-request guards
	Options      FormattingOptions      `json:"options"`
}

// TextEdit is an LSP text edit.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// CodeActionContext carries the client's code action filter.
type CodeActionContext struct {
	Only []string `json:"only,omitempty"`
}

// CodeActionParams is the textDocument/codeAction request payload.
type CodeActionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
	Context      CodeActionContext      `json:"context"`
}

// CodeAction is an LSP code action carrying a ready-to-apply edit.
type CodeAction struct {
	Title string         `json:"title"`
	Kind  string         `json:"kind,omitempty"`
	Edit  *WorkspaceEdit `json:"edit,omitempty"`
}

// WorkspaceEdit is an LSP workspace edit keyed by document URI.
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

// ExecuteCommandParams is the workspace/executeCommand request payload.
type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// LineCommandArgs is the single argument of a lineweaver.* command.
type LineCommandArgs struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Version      *int32                 `json:"version,omitempty"`
	Selections   []Range                `json:"selections"`
}

// LineCommandResult is the result of a lineweaver.* command. Selections is omitted
// when the operation leaves the selection to the client.
type LineCommandResult struct {
	Applicable bool       `json:"applicable"`
	ActionName string     `json:"actionName,omitempty"`
	Edits      []TextEdit `json:"edits"`
	Selections []Range    `json:"selections,omitempty"`
}
