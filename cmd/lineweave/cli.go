package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kpumuk/line-weaver/internal/text"
	"github.com/kpumuk/line-weaver/internal/transform"
)

const (
	exitOK           = 0
	exitCheck        = 1
	exitInapplicable = 2
	exitInternal     = 3
)

const stdinName = "<stdin>"

type cliOptions struct {
	stdin                   bool
	write                   bool
	check                   bool
	plan                    bool
	ranges                  []string
	cursors                 []string
	locale                  string
	trimWhitespaceOnlyLines bool
	keepEditingPoints       bool
	jobs                    int
}

// fileResult is the outcome for one input. Output is flushed in input order once
// every input has been processed.
type fileResult struct {
	output []byte
	diag   string
	code   int
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	code := exitOK
	root := newRootCommand(&code)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		writef(stderr, "lineweave: %v\n\n%s", err, root.UsageString())
		return exitInternal
	}
	return code
}

func newRootCommand(code *int) *cobra.Command {
	var opts cliOptions
	root := &cobra.Command{
		Use:   "lineweave <operation> [flags] [file...]",
		Short: "Apply a line operation to files or stdin",
		Long: `lineweave moves, sorts, reverses, duplicates, deletes and trims lines.
Selections are given as byte ranges (--range) or as 1-based line:column carets (--cursor).
The result is printed to stdout unless --write, --check or --plan is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.BoolVar(&opts.stdin, "stdin", false, "read input from stdin")
	pf.BoolVarP(&opts.write, "write", "w", false, "write result in-place")
	pf.BoolVar(&opts.check, "check", false, "exit 1 if the operation would change the input")
	pf.BoolVar(&opts.plan, "plan", false, "print the edit plan as JSON instead of the result")
	pf.StringArrayVar(&opts.ranges, "range", nil, "byte range start:end (half-open, repeatable)")
	pf.StringArrayVar(&opts.cursors, "cursor", nil, "caret at line:column (1-based, grapheme columns, repeatable)")
	pf.StringVar(&opts.locale, "locale", "", "BCP 47 locale for sort-lines (default $"+transform.LocaleEnv+")")
	pf.BoolVar(&opts.trimWhitespaceOnlyLines, "trim-whitespace-only-lines", false, "also empty lines that hold only whitespace")
	pf.BoolVar(&opts.keepEditingPoints, "keep-editing-points", false, "keep trailing whitespace touching a selection")
	pf.IntVar(&opts.jobs, "jobs", 0, "maximum files processed concurrently (default GOMAXPROCS)")

	for _, op := range transform.Operations() {
		root.AddCommand(&cobra.Command{
			Use:   op.Name + " [file...]",
			Short: op.ActionName,
			RunE: func(cmd *cobra.Command, args []string) error {
				normalized, err := normalizeOptions(opts, args)
				if err != nil {
					return err
				}
				*code = runOperation(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), op, normalized, args)
				return nil
			},
		})
	}
	return root
}

func normalizeOptions(opts cliOptions, paths []string) (cliOptions, error) {
	switch {
	case opts.stdin && opts.write:
		return cliOptions{}, errors.New("--write and --stdin may not be used together")
	case opts.check && opts.write:
		return cliOptions{}, errors.New("--check and --write may not be used together")
	case opts.plan && (opts.write || opts.check):
		return cliOptions{}, errors.New("--plan may not be combined with --write or --check")
	case opts.stdin && len(paths) > 0:
		return cliOptions{}, errors.New("positional file paths are not allowed with --stdin")
	case !opts.stdin && len(paths) == 0:
		return cliOptions{}, errors.New("at least one input file path is required (or use --stdin)")
	case opts.jobs < 0:
		return cliOptions{}, fmt.Errorf("invalid --jobs %d", opts.jobs)
	}
	if opts.jobs == 0 {
		opts.jobs = runtime.GOMAXPROCS(0)
	}
	return opts, nil
}

func runOperation(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, op transform.Operation, opts cliOptions, paths []string) int {
	topts, err := transformOptions(opts)
	if err != nil {
		writef(stderr, "lineweave: %v\n", err)
		return exitInternal
	}

	if opts.stdin {
		src, err := io.ReadAll(stdin)
		if err != nil {
			writef(stderr, "lineweave: read stdin: %v\n", err)
			return exitInternal
		}
		return flushResults(stdout, stderr, []fileResult{processInput(ctx, op, opts, topts, stdinName, src)})
	}

	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = processFile(gctx, op, opts, topts, path)
			return nil
		})
	}
	_ = g.Wait()
	return flushResults(stdout, stderr, results)
}

func transformOptions(opts cliOptions) (transform.Options, error) {
	tag, err := transform.ParseLocale(opts.locale)
	if err != nil {
		return transform.Options{}, err
	}
	return transform.Options{
		Locale:                  tag,
		TrimWhitespaceOnlyLines: opts.trimWhitespaceOnlyLines,
		KeepEditingPoints:       opts.keepEditingPoints,
	}, nil
}

func processFile(ctx context.Context, op transform.Operation, opts cliOptions, topts transform.Options, path string) fileResult {
	//nolint:gosec // CLI intentionally reads user-provided file paths.
	src, err := os.ReadFile(path)
	if err != nil {
		return failed(fmt.Errorf("read %s: %w", path, err))
	}
	res := processInput(ctx, op, opts, topts, path, src)
	if !opts.write || res.code != exitOK || res.output == nil {
		return res
	}
	if err := writeOutputFile(path, res.output); err != nil {
		return failed(fmt.Errorf("write %s: %w", path, err))
	}
	res.output = nil
	return res
}

// processInput runs op over src. With --write the output is set only when the file
// must be rewritten.
func processInput(ctx context.Context, op transform.Operation, opts cliOptions, topts transform.Options, name string, src []byte) fileResult {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	selections, err := parseSelections(src, opts)
	if err != nil {
		return failed(fmt.Errorf("%s: %w", name, err))
	}
	plan, ok, err := op.Apply(src, selections, topts)
	if err != nil {
		return failed(fmt.Errorf("%s: %s: %w", name, op.Name, err))
	}

	if opts.plan {
		b, err := marshalPlan(name, op, src, plan, ok)
		if err != nil {
			return failed(err)
		}
		res := fileResult{output: b}
		if !ok {
			res.code = exitInapplicable
		}
		return res
	}

	if !ok {
		if opts.check {
			return fileResult{}
		}
		res := fileResult{
			diag: fmt.Sprintf("lineweave: %s: %s does not apply\n", name, op.Name),
			code: exitInapplicable,
		}
		if !opts.write {
			res.output = src
		}
		return res
	}

	changed := plan.Changed(src)
	if opts.check {
		return fileResult{code: checkExitCode(changed)}
	}
	if opts.write && !changed {
		return fileResult{}
	}
	out, err := plan.Apply(src)
	if err != nil {
		return failed(fmt.Errorf("%s: apply %s: %w", name, op.Name, err))
	}
	return fileResult{output: out}
}

func flushResults(stdout, stderr io.Writer, results []fileResult) int {
	code := exitOK
	for _, res := range results {
		if res.output != nil {
			_, _ = stdout.Write(res.output)
		}
		if res.diag != "" {
			writeString(stderr, res.diag)
		}
		code = max(code, res.code)
	}
	return code
}

func failed(err error) fileResult {
	return fileResult{diag: fmt.Sprintf("lineweave: %v\n", err), code: exitInternal}
}

func parseSelections(src []byte, opts cliOptions) ([]text.Span, error) {
	if len(opts.ranges) == 0 && len(opts.cursors) == 0 {
		return nil, nil
	}
	selections := make([]text.Span, 0, len(opts.ranges)+len(opts.cursors))
	for _, r := range opts.ranges {
		sp, err := parseRangeFlag(r)
		if err != nil {
			return nil, fmt.Errorf("invalid --range %q: %w", r, err)
		}
		selections = append(selections, sp)
	}
	if len(opts.cursors) == 0 {
		return selections, nil
	}
	li := text.NewEditorLineIndex(src)
	for _, c := range opts.cursors {
		line, col, err := parseCursorFlag(c)
		if err != nil {
			return nil, fmt.Errorf("invalid --cursor %q: %w", c, err)
		}
		off, err := li.GraphemePositionToOffset(line-1, col-1)
		if err != nil {
			return nil, fmt.Errorf("invalid --cursor %q: %w", c, err)
		}
		selections = append(selections, text.Caret(off))
	}
	return selections, nil
}

func parseRangeFlag(s string) (text.Span, error) {
	startS, endS, ok := strings.Cut(s, ":")
	if !ok {
		return text.Span{}, errors.New("expected start:end")
	}
	start, err := strconv.Atoi(startS)
	if err != nil {
		return text.Span{}, fmt.Errorf("invalid start %q", startS)
	}
	end, err := strconv.Atoi(endS)
	if err != nil {
		return text.Span{}, fmt.Errorf("invalid end %q", endS)
	}
	return text.NewSpan(text.ByteOffset(start), text.ByteOffset(end))
}

func parseCursorFlag(s string) (line, col int, err error) {
	lineS, colS, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.New("expected line:column")
	}
	line, err = strconv.Atoi(lineS)
	if err != nil || line < 1 {
		return 0, 0, fmt.Errorf("invalid line %q", lineS)
	}
	col, err = strconv.Atoi(colS)
	if err != nil || col < 1 {
		return 0, 0, fmt.Errorf("invalid column %q", colS)
	}
	return line, col, nil
}

type planOutput struct {
	File       string       `json:"file"`
	Operation  string       `json:"operation"`
	ActionName string       `json:"actionName"`
	Applicable bool         `json:"applicable"`
	Edits      []editOutput `json:"edits"`
	Selections []spanOutput `json:"selections,omitempty"`
}

type editOutput struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"newText"`
}

// spanOutput is a selection in the result buffer. StartCursor and EndCursor use the
// 1-based line:column form accepted by --cursor.
type spanOutput struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
}

func marshalPlan(name string, op transform.Operation, src []byte, plan transform.Plan, ok bool) ([]byte, error) {
	out := planOutput{
		File:       name,
		Operation:  op.Name,
		ActionName: op.ActionName,
		Applicable: ok,
		Edits:      make([]editOutput, 0, len(plan.Edits)),
	}
	for _, e := range plan.Edits {
		out.Edits = append(out.Edits, editOutput{Start: int(e.Span.Start), End: int(e.Span.End), NewText: string(e.NewText)})
	}
	if len(plan.Selections) > 0 {
		result, err := plan.Apply(src)
		if err != nil {
			return nil, fmt.Errorf("apply plan: %w", err)
		}
		li := text.NewEditorLineIndex(result)
		for _, s := range plan.Selections {
			startCursor, err := formatCursor(li, s.Start)
			if err != nil {
				return nil, err
			}
			endCursor, err := formatCursor(li, s.End)
			if err != nil {
				return nil, err
			}
			out.Selections = append(out.Selections, spanOutput{
				Start:       int(s.Start),
				End:         int(s.End),
				StartCursor: startCursor,
				EndCursor:   endCursor,
			})
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCursor(li *text.LineIndex, off text.ByteOffset) (string, error) {
	line, col, err := li.OffsetToGraphemePosition(off)
	if err != nil {
		return "", fmt.Errorf("selection %d: %w", off, err)
	}
	return fmt.Sprintf("%d:%d", line+1, col+1), nil
}

func writeOutputFile(path string, data []byte) error {
	mode := os.FileMode(0o600)
	//nolint:gosec // CLI reads metadata for a user-specified output path.
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
		if mode == 0 {
			mode = 0o600
		}
	}
	//nolint:gosec // CLI writes the transformed buffer to a user-specified path.
	return os.WriteFile(path, data, mode)
}

func checkExitCode(changed bool) int {
	if changed {
		return exitCheck
	}
	return exitOK
}

func writef(w io.Writer, format string, args ...any) {
	//nolint:gosec // Terminal output helper; format strings are internal callsite constants.
	_, _ = io.WriteString(w, fmt.Sprintf(format, args...))
}

func writeString(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}
