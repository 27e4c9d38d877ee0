package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/kpumuk/line-weaver/internal/text"
)

var propertyBuffers = []string{
	"1\n2\n3\n",
	"b\na\nc",
	"a\r\nb\r\nc",
	"x\n\ny\n\n",
	"one\ntwo\u2028three\rfour",
	"  indented\n\tTabbed\nplain",
	"\n\n\n",
}

func lineCount(b []byte) int {
	return len(text.SplitLines(b))
}

func requireWellFormed(t *testing.T, src []byte, plan Plan) {
	t.Helper()
	require.NoError(t, text.ValidateEdits(text.ByteOffset(len(src)), plan.Edits))
	for i := 1; i < len(plan.Edits); i++ {
		assert.LessOrEqual(t, plan.Edits[i-1].Span.End, plan.Edits[i].Span.Start, "edits must be sorted")
	}
	out, err := plan.Apply(src)
	require.NoError(t, err)
	for _, sel := range plan.Selections {
		require.NoError(t, sel.ValidateWithin(text.ByteOffset(len(out))))
	}
	assert.Equal(t, text.SortUniqueSpans(plan.Selections), plan.Selections)
}

func TestReverseTwiceRestoresLines(t *testing.T) {
	t.Parallel()

	for _, src := range propertyBuffers {
		first, ok := ReverseLines([]byte(src), text.Span{})
		require.True(t, ok, "%q", src)
		once, err := first.Apply([]byte(src))
		require.NoError(t, err)

		second, ok := ReverseLines(once, text.Span{})
		require.True(t, ok, "%q", src)
		twice, err := second.Apply(once)
		require.NoError(t, err)

		// Terminators inside the range are normalized on the first pass.
		assert.Equal(t, bytes.Join(text.SplitLines([]byte(src)), lineSeparator), twice, "%q", src)
		assert.Equal(t, lineCount([]byte(src)), lineCount(twice))
	}
}

func TestSortIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, src := range propertyBuffers {
		first, ok := SortLinesAscending([]byte(src), text.Span{}, language.Und)
		require.True(t, ok, "%q", src)
		once, err := first.Apply([]byte(src))
		require.NoError(t, err)
		assert.Equal(t, lineCount([]byte(src)), lineCount(once))

		second, ok := SortLinesAscending(once, text.Span{}, language.Und)
		require.True(t, ok)
		assert.False(t, second.Changed(once), "%q sorted twice changed again", src)
	}
}

func TestMoveUpThenDownRoundTrips(t *testing.T) {
	t.Parallel()

	for _, src := range propertyBuffers {
		for off := range len(src) + 1 {
			b := []byte(src)
			sel := carets(off)
			if text.TerminatorLen(b, text.ByteOffset(off)) == 0 && off > 0 && text.TerminatorLen(b, text.ByteOffset(off-1)) == 2 {
				// inside a CRLF pair
				continue
			}

			up, ok := MoveLineUp(b, sel)
			if !ok {
				continue
			}
			requireWellFormed(t, b, up)
			moved, err := up.Apply(b)
			require.NoError(t, err)
			assert.Len(t, moved, len(b))
			assert.Equal(t, lineCount(b), lineCount(moved))

			down, ok := MoveLineDown(moved, up.Selections)
			require.True(t, ok, "%q at %d", src, off)
			requireWellFormed(t, moved, down)
			back, err := down.Apply(moved)
			require.NoError(t, err)
			assert.Equal(t, src, string(back), "%q at %d", src, off)
			assert.Equal(t, sel, down.Selections, "%q at %d", src, off)
		}
	}
}

func TestPlansAreWellFormed(t *testing.T) {
	t.Parallel()

	for _, src := range propertyBuffers {
		b := []byte(src)
		selections := [][]text.Span{
			nil,
			carets(0),
			carets(len(b)),
			carets(0, len(b)/2, len(b)),
			{span(0, len(b))},
		}
		for _, op := range Operations() {
			for _, sel := range selections {
				plan, ok, err := op.Apply(b, sel, Options{TrimWhitespaceOnlyLines: true})
				require.NoError(t, err)
				if !ok {
					continue
				}
				requireWellFormed(t, b, plan)
				assert.NotEmpty(t, plan.Edits, "%s on %q", op.Name, src)
			}
		}
	}
}

func TestBoundaryMovesAreInapplicable(t *testing.T) {
	t.Parallel()

	for _, src := range propertyBuffers {
		b := []byte(src)
		_, ok := MoveLineUp(b, carets(0))
		assert.False(t, ok, "%q", src)

		last := text.LineRangeAt(b, text.ByteOffset(len(b)))
		if !text.HasTerminator(b) {
			_, ok = MoveLineDown(b, []text.Span{text.Caret(last.Start)})
			assert.False(t, ok, "%q", src)
		}
	}
}

func TestScenarios(t *testing.T) {
	t.Parallel()

	t.Run("sort whole buffer", func(t *testing.T) {
		t.Parallel()
		plan, ok, err := Run("sort-lines", []byte("b\na\nc"), []text.Span{span(0, 5)}, Options{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a\nb\nc", applyPlan(t, "b\na\nc", plan))
		assert.Equal(t, []text.Span{span(0, 5)}, plan.Selections)
	})

	t.Run("move second line up", func(t *testing.T) {
		t.Parallel()
		plan, ok, err := Run("move-line-up", []byte("1\n2\n3\n"), carets(2), Options{})
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, plan.Edits, 1)
		assert.Equal(t, span(0, 4), plan.Edits[0].Span)
		assert.Equal(t, "2\n1\n", string(plan.Edits[0].NewText))
		assert.Equal(t, carets(0), plan.Selections)
	})

	t.Run("delete duplicate lines", func(t *testing.T) {
		t.Parallel()
		plan, ok, err := Run("delete-duplicate-lines", []byte("x\nx\ny\n"), carets(0), Options{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "x\ny\n", applyPlan(t, "x\nx\ny\n", plan))
	})

	t.Run("duplicate middle line", func(t *testing.T) {
		t.Parallel()
		plan, ok, err := Run("duplicate-line", []byte("a\nb\nc"), carets(2), Options{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a\nb\nb\nc", applyPlan(t, "a\nb\nc", plan))
		assert.Equal(t, carets(4), plan.Selections)
	})

	t.Run("sort single line", func(t *testing.T) {
		t.Parallel()
		_, ok, err := Run("sort-lines", []byte("only one line"), []text.Span{span(0, 13)}, Options{})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
