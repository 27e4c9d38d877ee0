package text

import (
	"bytes"
	"fmt"
	"slices"
)

// ByteEdit replaces the bytes in Span with NewText.
type ByteEdit struct {
	Span    Span
	NewText []byte
}

// Delta returns how much the edit grows (or shrinks) the buffer.
func (e ByteEdit) Delta() ByteOffset {
	return ByteOffset(len(e.NewText)) - e.Span.Len()
}

// IsInsertion reports whether the edit only inserts text.
func (e ByteEdit) IsInsertion() bool {
	return e.Span.IsEmpty() && len(e.NewText) > 0
}

// ValidateEdits validates edit spans against a source length and checks overlap.
// Touching spans are allowed.
func ValidateEdits(srcLen ByteOffset, edits []ByteEdit) error {
	_, err := validatedSortedEdits(srcLen, edits)
	return err
}

// ApplyEdits applies non-overlapping byte edits and returns the updated buffer.
// Edits may be provided in any order and are expressed in src coordinates.
func ApplyEdits(src []byte, edits []ByteEdit) ([]byte, error) {
	if len(edits) == 0 {
		return slices.Clone(src), nil
	}

	sorted, err := validatedSortedEdits(ByteOffset(len(src)), edits)
	if err != nil {
		return nil, err
	}

	var delta ByteOffset
	for _, e := range sorted {
		delta += e.Delta()
	}

	var out bytes.Buffer
	out.Grow(max(len(src)+int(delta), 0))
	cursor := ByteOffset(0)
	for _, e := range sorted {
		out.Write(src[cursor:e.Span.Start])
		out.Write(e.NewText)
		cursor = e.Span.End
	}
	out.Write(src[cursor:])
	return out.Bytes(), nil
}

func validatedSortedEdits(srcLen ByteOffset, edits []ByteEdit) ([]ByteEdit, error) {
	if !srcLen.IsValid() {
		return nil, fmt.Errorf("invalid source length: %d", srcLen)
	}
	for _, e := range edits {
		if err := e.Span.Validate(); err != nil {
			return nil, fmt.Errorf("invalid edit span %s: %w", e.Span, err)
		}
		if e.Span.End > srcLen {
			return nil, fmt.Errorf("edit span %s exceeds source length %d", e.Span, srcLen)
		}
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b ByteEdit) int {
		return CompareSpans(a.Span, b.Span)
	})

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		cur := sorted[i]
		if cur.Span.Start < prev.Span.End {
			return nil, fmt.Errorf("overlapping edits: %s and %s", prev.Span, cur.Span)
		}
		if cur.IsInsertion() && prev.IsInsertion() && cur.Span.Start == prev.Span.Start {
			return nil, fmt.Errorf("ambiguous insertions at %d", cur.Span.Start)
		}
	}
	return sorted, nil
}
