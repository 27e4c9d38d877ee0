package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kpumuk/line-weaver/internal/transform"
)

func TestRunRejectsInvalidFlagCombos(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"sort-lines", "--stdin", "--write"}, want: "--write and --stdin"},
		{args: []string{"sort-lines", "--check", "-w", "x.txt"}, want: "--check and --write"},
		{args: []string{"sort-lines", "--plan", "--check", "x.txt"}, want: "--plan may not be combined"},
		{args: []string{"sort-lines", "--stdin", "x.txt"}, want: "not allowed with --stdin"},
		{args: []string{"sort-lines"}, want: "at least one input file path"},
		{args: []string{"sort-lines", "--jobs=-1", "x.txt"}, want: "invalid --jobs"},
		{args: []string{"frobnicate", "x.txt"}, want: "unknown command"},
		{args: []string{"sort-lines", "--no-such-flag", "x.txt"}, want: "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Parallel()

			var out, errb bytes.Buffer
			code := run(context.Background(), strings.NewReader(""), &out, &errb, tt.args)
			if code != exitInternal {
				t.Fatalf("exit code = %d, want %d", code, exitInternal)
			}
			if !strings.Contains(errb.String(), tt.want) {
				t.Fatalf("stderr missing %q: %q", tt.want, errb.String())
			}
		})
	}
}

func TestRunEverySubcommandIsRegistered(t *testing.T) {
	t.Parallel()

	var code int
	root := newRootCommand(&code)
	for _, op := range transform.Operations() {
		cmd, _, err := root.Find([]string{op.Name})
		if err != nil {
			t.Fatalf("Find(%q): %v", op.Name, err)
		}
		if cmd.Name() != op.Name || cmd.Short != op.ActionName {
			t.Fatalf("subcommand %q = %q (%q)", op.Name, cmd.Name(), cmd.Short)
		}
	}
}

func TestRunStdinSortPrintsResult(t *testing.T) {
	t.Parallel()

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader("b\nA\nc\n"), &out, &errb, []string{"sort-lines", "--stdin"})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.String() != "A\nb\nc\n" {
		t.Fatalf("stdout = %q, want %q", out.String(), "A\nb\nc\n")
	}
}

func TestRunCheckExitCode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	unsorted := filepath.Join(dir, "unsorted.txt")
	sorted := filepath.Join(dir, "sorted.txt")
	writeTestFile(t, unsorted, "b\na\n")
	writeTestFile(t, sorted, "a\nb\n")

	var out, errb bytes.Buffer
	if code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"sort-lines", "--check", unsorted}); code != exitCheck {
		t.Fatalf("exit code = %d, want %d", code, exitCheck)
	}
	if code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"sort-lines", "--check", sorted}); code != exitOK {
		t.Fatalf("exit code = %d, want %d", code, exitOK)
	}
	if code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"move-line-up", "--check", "--cursor", "1:1", sorted}); code != exitOK {
		t.Fatalf("inapplicable --check exit code = %d, want %d", code, exitOK)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected stdout in --check: %q", out.String())
	}
}

func TestRunWriteUpdatesFileInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	writeTestFile(t, path, "a  \nb\t\n")

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"trim-trailing-whitespace", "-w", path})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected stdout for --write: %q", out.String())
	}
	if got := readTestFile(t, path); got != "a\nb\n" {
		t.Fatalf("written file = %q, want %q", got, "a\nb\n")
	}
}

func TestRunCursorSelectsLine(t *testing.T) {
	t.Parallel()

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader("one\ntwo\n"), &out, &errb, []string{"move-line-down", "--stdin", "--cursor", "1:1"})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.String() != "two\none\n" {
		t.Fatalf("stdout = %q, want %q", out.String(), "two\none\n")
	}
}

func TestRunCursorCountsEveryLineTerminator(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src, want string
	}{
		"newline":           {src: "1\n2\n3\n", want: "2\n1\n3\n"},
		"carriage return":   {src: "1\r2\r3\r", want: "2\r1\r3\r"},
		"line separator":    {src: "1\u20282\u20283\u2028", want: "2\u20281\u20283\u2028"},
		"next line":         {src: "1\u00852\u00853", want: "2\u00851\u00853"},
		"mixed terminators": {src: "1\r\n2\r3\n", want: "2\r1\r\n3\n"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var out, errb bytes.Buffer
			code := run(context.Background(), strings.NewReader(tc.src), &out, &errb, []string{"move-line-up", "--stdin", "--cursor", "2:1"})
			if code != exitOK {
				t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
			}
			if out.String() != tc.want {
				t.Fatalf("stdout = %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestRunPlanUsesGraphemeColumns(t *testing.T) {
	t.Parallel()

	var out, errb bytes.Buffer
	code := run(
		context.Background(),
		strings.NewReader("e\u0301x\ny\n"),
		&out,
		&errb,
		[]string{"duplicate-line", "--stdin", "--plan", "--cursor", "1:2"},
	)
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}

	var got planOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal plan: %v; stdout=%q", err, out.String())
	}
	if got.File != stdinName || got.Operation != "duplicate-line" || !got.Applicable {
		t.Fatalf("unexpected plan header: %+v", got)
	}
	wantEdit := editOutput{Start: 0, End: 0, NewText: "e\u0301x\n"}
	if len(got.Edits) != 1 || got.Edits[0] != wantEdit {
		t.Fatalf("edits = %+v, want [%+v]", got.Edits, wantEdit)
	}
	// The cursor sits after the combining sequence, byte 3, shifted by the 5-byte copy.
	wantSel := spanOutput{Start: 8, End: 8, StartCursor: "2:2", EndCursor: "2:2"}
	if len(got.Selections) != 1 || got.Selections[0] != wantSel {
		t.Fatalf("selections = %+v, want caret at 8", got.Selections)
	}
}

func TestRunInapplicableEchoesInput(t *testing.T) {
	t.Parallel()

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader("a\nb\n"), &out, &errb, []string{"move-line-up", "--stdin", "--cursor", "1:1"})
	if code != exitInapplicable {
		t.Fatalf("exit code = %d, want %d", code, exitInapplicable)
	}
	if out.String() != "a\nb\n" {
		t.Fatalf("stdout = %q, want input unchanged", out.String())
	}
	if !strings.Contains(errb.String(), "move-line-up does not apply") {
		t.Fatalf("stderr missing inapplicable message: %q", errb.String())
	}
}

func TestRunMultipleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.txt")
	writeTestFile(t, first, "b\na\n")
	writeTestFile(t, second, "d\nc\n")

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"reverse-lines", "--jobs", "2", first, second})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.String() != "a\nb\nc\nd\n" {
		t.Fatalf("stdout = %q, want results in argument order", out.String())
	}

	out.Reset()
	code = run(context.Background(), strings.NewReader(""), &out, &errb, []string{"reverse-lines", "-w", first, second})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if got := readTestFile(t, first); got != "a\nb\n" {
		t.Fatalf("first = %q", got)
	}
	if got := readTestFile(t, second); got != "c\nd\n" {
		t.Fatalf("second = %q", got)
	}
}

func TestRunReportsWorstExitCode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.txt")
	writeTestFile(t, ok, "b\na\n")
	missing := filepath.Join(dir, "missing.txt")

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader(""), &out, &errb, []string{"sort-lines", ok, missing})
	if code != exitInternal {
		t.Fatalf("exit code = %d, want %d", code, exitInternal)
	}
	if out.String() != "a\nb\n" {
		t.Fatalf("stdout = %q, want the readable file processed", out.String())
	}
	if !strings.Contains(errb.String(), "lineweave: read "+missing) {
		t.Fatalf("stderr missing read error: %q", errb.String())
	}
}

func TestRunInvalidSelections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		args []string
		want string
	}{
		{name: "reversed range", args: []string{"--range", "5:1"}, want: "invalid --range"},
		{name: "range inside a rune", src: "\u00e9\nb\n", args: []string{"--range", "1:1"}, want: "splits a character"},
		{name: "range inside crlf", src: "a\r\nb\r\n", args: []string{"--range", "2:2"}, want: "splits a character"},
		{name: "range past end", args: []string{"--range", "0:99"}, want: "invalid selection"},
		{name: "cursor line past end", args: []string{"--cursor", "9:1"}, want: "invalid --cursor"},
		{name: "cursor column zero", args: []string{"--cursor", "1:0"}, want: "invalid column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out, errb bytes.Buffer
			args := append([]string{"delete-line", "--stdin"}, tt.args...)
			src := tt.src
			if src == "" {
				src = "a\nb\n"
			}
			code := run(context.Background(), strings.NewReader(src), &out, &errb, args)
			if code != exitInternal {
				t.Fatalf("exit code = %d, want %d", code, exitInternal)
			}
			if !strings.Contains(errb.String(), tt.want) {
				t.Fatalf("stderr missing %q: %q", tt.want, errb.String())
			}
		})
	}
}

func TestRunLocale(t *testing.T) {
	t.Setenv(transform.LocaleEnv, "sv")

	var out, errb bytes.Buffer
	code := run(context.Background(), strings.NewReader("z\n\u00e4\na\n"), &out, &errb, []string{"sort-lines", "--stdin"})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.String() != "a\nz\n\u00e4\n" {
		t.Fatalf("sv stdout = %q", out.String())
	}

	out.Reset()
	code = run(context.Background(), strings.NewReader("z\n\u00e4\na\n"), &out, &errb, []string{"sort-lines", "--stdin", "--locale", "de"})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d; stderr=%q", code, exitOK, errb.String())
	}
	if out.String() != "a\n\u00e4\nz\n" {
		t.Fatalf("de stdout = %q", out.String())
	}

	code = run(context.Background(), strings.NewReader("a\n"), &out, &errb, []string{"sort-lines", "--stdin", "--locale", "not a locale"})
	if code != exitInternal {
		t.Fatalf("exit code = %d, want %d", code, exitInternal)
	}
}

func TestParseRangeFlag(t *testing.T) {
	t.Parallel()

	got, err := parseRangeFlag("12:34")
	if err != nil {
		t.Fatalf("parseRangeFlag: %v", err)
	}
	if got.Start != 12 || got.End != 34 {
		t.Fatalf("range = %s, want [12,34)", got)
	}

	for _, bad := range []string{"bad", "x:1", "1:y", "4:2"} {
		if _, err := parseRangeFlag(bad); err == nil {
			t.Fatalf("parseRangeFlag(%q): expected error", bad)
		}
	}
}

func TestParseCursorFlag(t *testing.T) {
	t.Parallel()

	line, col, err := parseCursorFlag("3:7")
	if err != nil {
		t.Fatalf("parseCursorFlag: %v", err)
	}
	if line != 3 || col != 7 {
		t.Fatalf("cursor = %d:%d, want 3:7", line, col)
	}

	for _, bad := range []string{"3", "0:1", "1:0", "a:1", "1:b"} {
		if _, _, err := parseCursorFlag(bad); err == nil {
			t.Fatalf("parseCursorFlag(%q): expected error", bad)
		}
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}
