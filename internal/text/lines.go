package text

import (
	"slices"
	"unicode/utf8"
)

// Recognized line terminators: "\n", "\r\n", "\r", NEL (U+0085), LINE SEPARATOR (U+2028)
// and PARAGRAPH SEPARATOR (U+2029). "\r\n" is always a single terminator.

// TerminatorLen returns the byte length of the line terminator starting at off, or 0.
func TerminatorLen(src []byte, off ByteOffset) int {
	i := int(off)
	if i < 0 || i >= len(src) {
		return 0
	}
	switch src[i] {
	case '\n':
		return 1
	case '\r':
		if i+1 < len(src) && src[i+1] == '\n' {
			return 2
		}
		return 1
	case 0xC2:
		if i+1 < len(src) && src[i+1] == 0x85 {
			return 2
		}
	case 0xE2:
		if i+2 < len(src) && src[i+1] == 0x80 && (src[i+2] == 0xA8 || src[i+2] == 0xA9) {
			return 3
		}
	}
	return 0
}

// terminatorEndingAt returns the length of the terminator ending exactly at off, or 0.
// An offset between '\r' and '\n' is inside a terminator, not after one.
func terminatorEndingAt(src []byte, off int) int {
	if off <= 0 || off > len(src) {
		return 0
	}
	switch src[off-1] {
	case '\n':
		if off >= 2 && src[off-2] == '\r' {
			return 2
		}
		return 1
	case '\r':
		if off < len(src) && src[off] == '\n' {
			return 0
		}
		return 1
	case 0x85:
		if off >= 2 && src[off-2] == 0xC2 {
			return 2
		}
	case 0xA8, 0xA9:
		if off >= 3 && src[off-3] == 0xE2 && src[off-2] == 0x80 {
			return 3
		}
	}
	return 0
}

// IsBoundary reports whether off is a valid cursor position in src: within bounds, not
// inside a UTF-8 sequence and not between the '\r' and '\n' of a "\r\n" pair.
// Stray bytes of invalid UTF-8 count as one-byte characters.
func IsBoundary(src []byte, off ByteOffset) bool {
	i := int(off)
	if i < 0 || i > len(src) {
		return false
	}
	if i == 0 || i == len(src) {
		return true
	}
	if src[i-1] == '\r' && src[i] == '\n' {
		return false
	}
	if utf8.RuneStart(src[i]) {
		return true
	}
	j := i - 1
	for j > 0 && i-j < utf8.UTFMax && !utf8.RuneStart(src[j]) {
		j--
	}
	_, size := utf8.DecodeRune(src[j:])
	return j+size <= i
}

// HasTerminator reports whether b ends with a line terminator.
func HasTerminator(b []byte) bool {
	return terminatorEndingAt(b, len(b)) > 0
}

// TrimTerminator returns b without its trailing line terminator, if any.
func TrimTerminator(b []byte) []byte {
	return b[:len(b)-terminatorEndingAt(b, len(b))]
}

// DetectLineEnding returns the first line terminator used in src, or "\n".
func DetectLineEnding(src []byte) []byte {
	for i := range src {
		if n := TerminatorLen(src, ByteOffset(i)); n > 0 {
			return slices.Clone(src[i : i+n])
		}
	}
	return []byte{'\n'}
}

// SplitLines splits b on every line terminator. The result always has one more
// element than the number of terminators in b; elements alias b.
func SplitLines(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i := 0; i < len(b); {
		if n := TerminatorLen(b, ByteOffset(i)); n > 0 {
			out = append(out, b[start:i])
			i += n
			start = i
			continue
		}
		i++
	}
	return append(out, b[start:])
}

// ContainsTerminator reports whether src[s.Start:s.End] contains a line terminator.
func ContainsTerminator(src []byte, s Span) bool {
	for i := s.Start; i < s.End; i++ {
		if TerminatorLen(src[:s.End], i) > 0 {
			return true
		}
	}
	return false
}

func lineStart(src []byte, off int) int {
	for i := off; i > 0; i-- {
		if terminatorEndingAt(src, i) > 0 {
			return i
		}
	}
	return 0
}

func lineEnd(src []byte, from int) int {
	for i := from; i < len(src); i++ {
		if n := TerminatorLen(src, ByteOffset(i)); n > 0 {
			return i + n
		}
	}
	return len(src)
}

// LineRangeAt returns the line containing off, including its terminator.
// At the end of a buffer that ends with a terminator the result is the empty last line.
func LineRangeAt(src []byte, off ByteOffset) Span {
	start := lineStart(src, int(off))
	return Span{Start: ByteOffset(start), End: ByteOffset(lineEnd(src, start))}
}

// LineRangeFor returns the lines covering s, including the final terminator.
// A non-empty span is resolved by its last byte, so a span ending right after a
// terminator does not pull in the following line.
func LineRangeFor(src []byte, s Span) Span {
	start := LineRangeAt(src, s.Start)
	if s.IsEmpty() {
		return start
	}
	last := LineRangeAt(src, s.End-1)
	return start.Union(last)
}

// LineRanges resolves every span to its covering lines and merges adjacent or
// overlapping results. The returned ranges are sorted and pairwise separated.
//
// includingLastEmptyLine matters only when spans is a single caret at the end of a
// buffer that is empty or ends with a terminator: the zero-length last line is then
// returned instead of nothing.
func LineRanges(src []byte, spans []Span, includingLastEmptyLine bool) []Span {
	if len(spans) == 0 {
		return nil
	}
	end := ByteOffset(len(src))
	if includingLastEmptyLine && len(spans) == 1 && spans[0] == Caret(end) &&
		(end == 0 || terminatorEndingAt(src, len(src)) > 0) {
		return []Span{Caret(end)}
	}

	ranges := make([]Span, 0, len(spans))
	for _, s := range spans {
		lr := LineRangeFor(src, s)
		if lr.IsEmpty() {
			continue
		}
		ranges = append(ranges, lr)
	}
	slices.SortFunc(ranges, CompareSpans)

	var merged []Span
	for _, lr := range ranges {
		if n := len(merged); n > 0 && lr.Start <= merged[n-1].End {
			merged[n-1] = merged[n-1].Union(lr)
			continue
		}
		merged = append(merged, lr)
	}
	return merged
}

// trailingTerminatorLen returns the length of the terminator that ends s, if it lies within s.
func trailingTerminatorLen(src []byte, s Span) ByteOffset {
	n := ByteOffset(terminatorEndingAt(src, int(s.End)))
	if n > s.Len() {
		return 0
	}
	return n
}

// LineContentsRange is LineRangeFor without the final line terminator.
func LineContentsRange(src []byte, s Span) Span {
	lr := LineRangeFor(src, s)
	lr.End -= trailingTerminatorLen(src, lr)
	return lr
}

// LineContentsRanges returns the content range (terminator excluded) of every
// physical line overlapping s. Lines are enumerated from the start of the line
// containing s.Start; an empty span yields nothing.
func LineContentsRanges(src []byte, s Span) []Span {
	if s.IsEmpty() {
		return nil
	}
	var out []Span
	for pos := lineStart(src, int(s.Start)); pos < int(s.End); {
		next := lineEnd(src, pos)
		line := Span{Start: ByteOffset(pos), End: ByteOffset(next)}
		line.End -= trailingTerminatorLen(src, line)
		out = append(out, line)
		pos = next
	}
	return out
}
