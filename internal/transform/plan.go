// Package transform implements the line transform engine.
//
// Every operation is a pure function of a buffer snapshot and the selection spans
// the host had at the time. It returns a Plan describing replacements in the
// original buffer's coordinates plus, where the operation defines one, the selection
// to show afterwards. An operation that has no effect on its input reports false
// instead of returning an error; hosts typically signal that with a beep.
//
// Selections must lie within the buffer. Hosts that cannot guarantee that should go
// through Run, which validates them first.
package transform

import (
	"bytes"

	"github.com/kpumuk/line-weaver/internal/text"
)

// Plan is the result of a line operation.
type Plan struct {
	// Edits are sorted by start and pairwise non-overlapping, in original coordinates.
	Edits []text.ByteEdit
	// Selections are sorted and unique, in result coordinates. Nil means the
	// operation leaves the selection to the host.
	Selections []text.Span
}

// Apply applies the plan's edits to src and returns the transformed buffer.
func (p Plan) Apply(src []byte) ([]byte, error) {
	return text.ApplyEdits(src, p.Edits)
}

// Changed reports whether applying p would modify src.
func (p Plan) Changed(src []byte) bool {
	for _, e := range p.Edits {
		if !bytes.Equal(src[e.Span.Start:e.Span.End], e.NewText) {
			return true
		}
	}
	return false
}

func wholeBuffer(src []byte) text.Span {
	return text.Span{Start: 0, End: text.ByteOffset(len(src))}
}

func allEmpty(spans []text.Span) bool {
	for _, s := range spans {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

func deletions(spans []text.Span) []text.ByteEdit {
	edits := make([]text.ByteEdit, len(spans))
	for i, s := range spans {
		edits[i] = text.ByteEdit{Span: s}
	}
	return edits
}
