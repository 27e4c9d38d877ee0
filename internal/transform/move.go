package transform

import (
	"slices"

	"github.com/kpumuk/line-weaver/internal/text"
)

// MoveLineUp swaps every selected block of lines with the line above it.
//
// It is inapplicable when a block already starts on the first line, or when the swap
// would place a bare '\r' right before a '\n' and merge two lines. A caret alone on
// the empty last line moves that empty line up.
func MoveLineUp(src []byte, selections []text.Span) (Plan, bool) {
	blocks := text.LineRanges(src, selections, true)
	if len(blocks) == 0 || blocks[0].Start == 0 {
		return Plan{}, false
	}

	m := newLineMover(src, selections)
	for _, block := range blocks {
		upper := text.LineRangeAt(m.work, block.Start-1)
		line := slices.Clone(m.work[block.Start:block.End])
		upperLine := slices.Clone(m.work[upper.Start:upper.End])

		// The separator travels with the position, not with the line: an unterminated
		// last line takes over the terminator of the line it displaces.
		if !text.HasTerminator(line) {
			trimmed := text.TrimTerminator(upperLine)
			line = append(line, upperLine[len(trimmed):]...)
			upperLine = trimmed
		}

		m.swap(upper.Union(block), line, upperLine)
		m.shiftSelections(block, -upper.Len())
	}
	if m.mergesLines() {
		return Plan{}, false
	}
	return m.plan(), true
}

// MoveLineDown swaps every selected block of lines with the line below it.
//
// It is inapplicable when a block ends on an unterminated last line, or when the swap
// would merge two lines as in MoveLineUp. A caret on the empty last line never resolves
// to a block, so it cannot be moved down either.
func MoveLineDown(src []byte, selections []text.Span) (Plan, bool) {
	blocks := text.LineRanges(src, selections, false)
	if len(blocks) == 0 {
		return Plan{}, false
	}
	if blocks[len(blocks)-1].End == text.ByteOffset(len(src)) && !text.HasTerminator(src) {
		return Plan{}, false
	}

	m := newLineMover(src, selections)
	for _, block := range slices.Backward(blocks) {
		lower := text.LineRangeAt(m.work, block.End)
		line := slices.Clone(m.work[block.Start:block.End])
		lowerLine := slices.Clone(m.work[lower.Start:lower.End])

		distance := lower.Len()
		if !text.HasTerminator(lowerLine) {
			trimmed := text.TrimTerminator(line)
			lowerLine = append(lowerLine, line[len(trimmed):]...)
			distance += text.ByteOffset(len(line) - len(trimmed))
			line = trimmed
		}

		m.swap(block.Union(lower), lowerLine, line)
		m.shiftSelections(block, distance)
	}
	if m.mergesLines() {
		return Plan{}, false
	}
	return m.plan(), true
}

// lineMover accumulates swaps in a working copy of the buffer. Every swap keeps the
// length of its region, so offsets outside the region stay valid.
type lineMover struct {
	src      []byte
	work     []byte
	region   text.Span
	touched  bool
	pending  []text.Span
	selected []text.Span
}

func newLineMover(src []byte, selections []text.Span) *lineMover {
	return &lineMover{
		src:     src,
		work:    slices.Clone(src),
		pending: slices.Clone(selections),
	}
}

func (m *lineMover) swap(region text.Span, first, second []byte) {
	n := copy(m.work[region.Start:region.End], first)
	copy(m.work[region.Start+text.ByteOffset(n):region.End], second)
	if !m.touched {
		m.region = region
		m.touched = true
		return
	}
	m.region = m.region.Union(region)
}

// mergesLines reports whether the swaps turned a bare '\r' and a '\n' into one "\r\n".
// Only the bytes around the touched region can pair up differently.
func (m *lineMover) mergesLines() bool {
	from := max(m.region.Start-1, 0)
	to := min(m.region.End+1, text.ByteOffset(len(m.work)))
	return len(text.SplitLines(m.work[from:to])) != len(text.SplitLines(m.src[from:to]))
}

// shiftSelections moves the selections that belong to block by delta. Each selection
// belongs to at most one block because blocks never touch.
func (m *lineMover) shiftSelections(block text.Span, delta text.ByteOffset) {
	limit := text.ByteOffset(len(m.src))
	rest := m.pending[:0]
	for _, sel := range m.pending {
		if !block.ContainsSpan(sel) {
			rest = append(rest, sel)
			continue
		}
		m.selected = append(m.selected, sel.Shift(delta).Clamp(limit))
	}
	m.pending = rest
}

func (m *lineMover) plan() Plan {
	// Selections outside every block stay where they were.
	selections := append(m.selected, m.pending...)
	return Plan{
		Edits: []text.ByteEdit{{
			Span:    m.region,
			NewText: slices.Clone(m.work[m.region.Start:m.region.End]),
		}},
		Selections: text.SortUniqueSpans(selections),
	}
}
