package lsp

import "github.com/kpumuk/line-weaver/internal/transform"

const (
	// CommandPrefix prefixes every operation name exposed through workspace/executeCommand.
	CommandPrefix = "lineweaver."
	// CodeActionKindRewrite is the kind of every code action linels returns.
	CodeActionKindRewrite = "refactor.rewrite"
)

// codeActionOperations are offered for the requested range as code actions.
var codeActionOperations = []string{"sort-lines", "reverse-lines", "delete-duplicate-lines"}

// DefaultServerCapabilities returns the capability set advertised on initialize.
func DefaultServerCapabilities() ServerCapabilities {
	ops := transform.Operations()
	commands := make([]string, len(ops))
	for i, op := range ops {
		commands[i] = CommandPrefix + op.Name
	}
	return ServerCapabilities{
		TextDocumentSync: TextDocumentSyncOptions{
			OpenClose: true,
			Change:    TextDocumentSyncKindIncremental,
		},
		DocumentFormattingProvider: true,
		CodeActionProvider: &CodeActionOptions{
			CodeActionKinds: []string{CodeActionKindRewrite},
		},
		ExecuteCommandProvider: &ExecuteCommandOptions{Commands: commands},
	}
}
