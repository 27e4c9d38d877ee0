package transform

import "github.com/kpumuk/line-weaver/internal/text"

// TrimOptions configure TrimTrailingWhitespace.
type TrimOptions struct {
	// IgnoresEmptyLines leaves lines that consist only of whitespace untouched.
	IgnoresEmptyLines bool
	// EditingPoints are spans the user is typing at; whitespace runs touching one of
	// them are kept so trimming on save does not eat the space just typed.
	EditingPoints []text.Span
}

// TrimTrailingWhitespace deletes spaces and tabs immediately before every line
// terminator and before the end of the buffer.
//
// The plan carries no selections.
func TrimTrailingWhitespace(src []byte, opts TrimOptions) (Plan, bool) {
	var runs []text.Span
	for _, line := range text.LineContentsRanges(src, wholeBuffer(src)) {
		start := line.End
		for start > line.Start && isHorizontalSpace(src[start-1]) {
			start--
		}
		if start == line.End {
			continue
		}
		if start == line.Start && opts.IgnoresEmptyLines {
			continue
		}
		run := text.Span{Start: start, End: line.End}
		if touchesAny(run, opts.EditingPoints) {
			continue
		}
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return Plan{}, false
	}
	return Plan{Edits: deletions(runs)}, true
}

func isHorizontalSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

func touchesAny(s text.Span, points []text.Span) bool {
	for _, p := range points {
		if s.TouchesSpan(p) {
			return true
		}
	}
	return false
}
