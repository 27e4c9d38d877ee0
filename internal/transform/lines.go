package transform

import (
	"slices"

	"github.com/kpumuk/line-weaver/internal/text"
)

// DeleteDuplicateLines deletes every line whose content already appeared earlier in
// the selected lines. Comparison is exact; the first occurrence is kept. When no
// selection covers any text the whole buffer is processed.
//
// The plan carries no selections.
func DeleteDuplicateLines(src []byte, selections []text.Span) (Plan, bool) {
	ranges := selections
	if allEmpty(selections) {
		ranges = []text.Span{wholeBuffer(src)}
	}

	var contents []text.Span
	for _, r := range ranges {
		contents = append(contents, text.LineContentsRanges(src, text.LineRangeFor(src, r))...)
	}
	contents = text.SortUniqueSpans(contents)

	seen := make(map[string]struct{}, len(contents))
	var duplicates []text.Span
	for _, c := range contents {
		line := string(src[c.Start:c.End])
		if _, ok := seen[line]; ok {
			duplicates = append(duplicates, text.LineRangeFor(src, c))
			continue
		}
		seen[line] = struct{}{}
	}
	if len(duplicates) == 0 {
		return Plan{}, false
	}
	return Plan{Edits: deletions(duplicates)}, true
}

// DuplicateLine inserts a copy of each selected block of lines above the block and
// moves the selections into the lower copy. Selections whose lines overlap form one
// block. A block ending on an unterminated last line gets a terminator in the copy
// only, using the buffer's own line ending.
func DuplicateLine(src []byte, selections []text.Span) (Plan, bool) {
	if len(selections) == 0 {
		return Plan{}, false
	}

	var groups [][]text.Span
	var groupLines []text.Span
	for _, sel := range text.SortUniqueSpans(selections) {
		lr := text.LineRangeFor(src, sel)
		if n := len(groups); n > 0 && (groupLines[n-1].Intersects(lr) || groupLines[n-1] == lr) {
			groups[n-1] = append(groups[n-1], sel)
			groupLines[n-1] = groupLines[n-1].Union(lr)
			continue
		}
		groups = append(groups, []text.Span{sel})
		groupLines = append(groupLines, lr)
	}

	eol := text.DetectLineEnding(src)
	edits := make([]text.ByteEdit, 0, len(groups))
	moved := make([]text.Span, 0, len(selections))
	var offset text.ByteOffset
	for i, group := range groups {
		lr := groupLines[i]
		copied := slices.Clone(src[lr.Start:lr.End])
		if !text.HasTerminator(copied) {
			copied = append(copied, eol...)
		}
		edits = append(edits, text.ByteEdit{Span: text.Caret(lr.Start), NewText: copied})

		offset += text.ByteOffset(len(copied))
		for _, sel := range group {
			moved = append(moved, sel.Shift(offset))
		}
	}
	return Plan{Edits: edits, Selections: text.SortUniqueSpans(moved)}, true
}

// DeleteLine deletes every line touched by a selection and leaves a caret where each
// deleted block started.
func DeleteLine(src []byte, selections []text.Span) (Plan, bool) {
	if len(selections) == 0 {
		return Plan{}, false
	}
	lines := text.LineRanges(src, selections, false)
	if len(lines) == 0 {
		return Plan{}, false
	}

	carets := make([]text.Span, 0, len(lines))
	var removed text.ByteOffset
	for _, lr := range lines {
		carets = append(carets, text.Caret(lr.Start-removed))
		removed += lr.Len()
	}
	return Plan{Edits: deletions(lines), Selections: text.SortUniqueSpans(carets)}, true
}
