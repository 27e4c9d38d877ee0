// Package text defines buffer offsets, spans, edits and line-range resolution.
package text

import (
	"cmp"
	"fmt"
	"slices"
)

// ByteOffset is a byte index into a UTF-8 buffer.
type ByteOffset int

// IsValid reports whether the offset is non-negative.
func (o ByteOffset) IsValid() bool {
	return o >= 0
}

// Span is a half-open byte range [Start, End).
type Span struct {
	Start ByteOffset // inclusive
	End   ByteOffset // exclusive
}

// NewSpan constructs a validated span.
func NewSpan(start, end ByteOffset) (Span, error) {
	s := Span{Start: start, End: end}
	if err := s.Validate(); err != nil {
		return Span{}, err
	}
	return s, nil
}

// Caret returns the zero-length span at off.
func Caret(off ByteOffset) Span {
	return Span{Start: off, End: off}
}

// Validate reports an error if the span is invalid.
func (s Span) Validate() error {
	if !s.Start.IsValid() {
		return fmt.Errorf("invalid span start: %d", s.Start)
	}
	if !s.End.IsValid() {
		return fmt.Errorf("invalid span end: %d", s.End)
	}
	if s.End < s.Start {
		return fmt.Errorf("invalid span bounds: end (%d) < start (%d)", s.End, s.Start)
	}
	return nil
}

// ValidateWithin reports an error if the span is invalid or extends past limit.
func (s Span) ValidateWithin(limit ByteOffset) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.End > limit {
		return fmt.Errorf("span %s exceeds buffer length %d", s, limit)
	}
	return nil
}

// IsValid reports whether the span bounds are well-formed.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid() && s.End >= s.Start
}

// IsEmpty reports whether the span covers zero bytes.
func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// Len returns the number of bytes covered by the span.
// For invalid spans, the result is undefined.
func (s Span) Len() ByteOffset {
	return s.End - s.Start
}

// Contains reports whether off is within the half-open span [Start, End).
func (s Span) Contains(off ByteOffset) bool {
	if !s.IsValid() || !off.IsValid() {
		return false
	}
	return s.Start <= off && off < s.End
}

// ContainsSpan reports whether other is fully contained within s.
func (s Span) ContainsSpan(other Span) bool {
	if !s.IsValid() || !other.IsValid() {
		return false
	}
	return s.Start <= other.Start && other.End <= s.End
}

// Touches reports whether off lies within the closed interval [Start, End].
func (s Span) Touches(off ByteOffset) bool {
	return s.Start <= off && off <= s.End
}

// TouchesSpan reports whether two spans overlap or share a boundary.
func (s Span) TouchesSpan(other Span) bool {
	return s.Start <= other.End && other.Start <= s.End
}

// Intersects reports whether two spans overlap by at least one byte.
// Spans that only touch at a boundary do not intersect.
func (s Span) Intersects(other Span) bool {
	if !s.IsValid() || !other.IsValid() {
		return false
	}
	return s.Start < other.End && other.Start < s.End
}

// Intersection returns the overlap of s and other.
// ok is false when the spans share no byte.
func (s Span) Intersection(other Span) (Span, bool) {
	if !s.Intersects(other) {
		return Span{}, false
	}
	return Span{Start: max(s.Start, other.Start), End: min(s.End, other.End)}, true
}

// Union returns the smallest span covering both s and other.
func (s Span) Union(other Span) Span {
	return Span{Start: min(s.Start, other.Start), End: max(s.End, other.End)}
}

// Shift moves both bounds by delta.
func (s Span) Shift(delta ByteOffset) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Clamp restricts the span to [0, limit].
func (s Span) Clamp(limit ByteOffset) Span {
	return Span{Start: min(max(s.Start, 0), limit), End: min(max(s.End, 0), limit)}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// CompareSpans orders spans by start, then by end.
func CompareSpans(a, b Span) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// SortUniqueSpans returns a sorted copy of spans with exact duplicates removed.
func SortUniqueSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	out := slices.Clone(spans)
	slices.SortFunc(out, CompareSpans)
	return slices.Compact(out)
}

// Point is a UTF-8 byte-based source location.
type Point struct {
	Line   int // 0-based
	Column int // byte column
}

// UTF16Position is an LSP-facing UTF-16 position kept at system edges.
type UTF16Position struct {
	Line      int
	Character int
}
