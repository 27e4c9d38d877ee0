package transform

import (
	"bytes"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kpumuk/line-weaver/internal/text"
)

// lineSeparator joins reordered lines. Mixed or CRLF terminators inside the
// reordered span are normalized to it.
var lineSeparator = []byte{'\n'}

// SortLinesAscending sorts the lines covered by r using case-insensitive collation
// for tag. Lines that compare equal keep their original order. An empty r selects
// the whole buffer.
func SortLinesAscending(src []byte, r text.Span, tag language.Tag) (Plan, bool) {
	return reorderLines(src, r, func(lines [][]byte) {
		c := collate.New(tag, collate.IgnoreCase)
		slices.SortStableFunc(lines, c.Compare)
	})
}

// ReverseLines reverses the order of the lines covered by r. An empty r selects the
// whole buffer.
func ReverseLines(src []byte, r text.Span) (Plan, bool) {
	return reorderLines(src, r, func(lines [][]byte) {
		slices.Reverse(lines)
	})
}

func reorderLines(src []byte, r text.Span, reorder func([][]byte)) (Plan, bool) {
	if r.IsEmpty() {
		r = wholeBuffer(src)
	}
	span := text.LineContentsRange(src, r)
	if !text.ContainsTerminator(src, span) {
		return Plan{}, false
	}

	lines := text.SplitLines(src[span.Start:span.End])
	reorder(lines)
	out := bytes.Join(lines, lineSeparator)

	return Plan{
		Edits:      []text.ByteEdit{{Span: span, NewText: out}},
		Selections: []text.Span{{Start: span.Start, End: span.Start + text.ByteOffset(len(out))}},
	}, true
}
