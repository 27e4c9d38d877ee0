package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpumuk/line-weaver/internal/text"
)

func applyPlan(t *testing.T, src string, plan Plan) string {
	t.Helper()
	out, err := plan.Apply([]byte(src))
	require.NoError(t, err)
	return string(out)
}

func carets(offsets ...int) []text.Span {
	out := make([]text.Span, len(offsets))
	for i, off := range offsets {
		out[i] = text.Caret(text.ByteOffset(off))
	}
	return out
}

func span(start, end int) text.Span {
	return text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(end)}
}

func TestMoveLineUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		src       string
		sel       []text.Span
		want      string
		wantSel   []text.Span
		wantEdits []text.Span
	}{
		{
			name:      "caret on second line",
			src:       "1\n2\n3\n",
			sel:       carets(2),
			want:      "2\n1\n3\n",
			wantSel:   carets(0),
			wantEdits: []text.Span{span(0, 4)},
		},
		{
			name:    "unterminated last line takes the separator",
			src:     "a\nb\nc",
			sel:     carets(5),
			want:    "a\nc\nb",
			wantSel: carets(3),
		},
		{
			name:    "crlf separator is re-homed intact",
			src:     "a\r\nb",
			sel:     carets(3),
			want:    "b\r\na",
			wantSel: carets(0),
		},
		{
			name:    "empty last line moves up",
			src:     "1\n2\n",
			sel:     carets(4),
			want:    "1\n\n2",
			wantSel: carets(2),
		},
		{
			name:    "multi-line selection moves as a block",
			src:     "a\nb\nc\n",
			sel:     []text.Span{span(2, 5)},
			want:    "b\nc\na\n",
			wantSel: []text.Span{span(0, 3)},
		},
		{
			name:      "separate blocks share one edit",
			src:       "a\nb\nc\nd\n",
			sel:       carets(6, 2),
			want:      "b\na\nd\nc\n",
			wantSel:   carets(0, 4),
			wantEdits: []text.Span{span(0, 8)},
		},
		{
			name:    "carets on one line collapse to one block",
			src:     "a\nbcd\n",
			sel:     carets(2, 4),
			want:    "bcd\na\n",
			wantSel: carets(0, 2),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			plan, ok := MoveLineUp([]byte(tc.src), tc.sel)
			require.True(t, ok)
			assert.Equal(t, tc.want, applyPlan(t, tc.src, plan))
			assert.Equal(t, tc.wantSel, plan.Selections)
			if tc.wantEdits != nil {
				got := make([]text.Span, len(plan.Edits))
				for i, e := range plan.Edits {
					got[i] = e.Span
				}
				assert.Equal(t, tc.wantEdits, got)
			}
		})
	}
}

func TestMoveLineUpInapplicable(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src string
		sel []text.Span
	}{
		"first line":                    {src: "a\nb", sel: carets(1)},
		"selection reaching line one":   {src: "a\nb\nc", sel: []text.Span{span(1, 3)}},
		"one of several on line one":    {src: "a\nb\nc\nd", sel: carets(6, 0)},
		"empty buffer":                  {src: "", sel: carets(0)},
		"no selections":                 {src: "a\nb", sel: nil},
		"carriage return meets newline": {src: "\n\rabx", sel: carets(1)},
		"preceding carriage return":     {src: "\ry\n\n", sel: carets(3)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, ok := MoveLineUp([]byte(tc.src), tc.sel)
			assert.False(t, ok)
		})
	}
}

func TestMoveLineDown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		sel     []text.Span
		want    string
		wantSel []text.Span
	}{
		{
			name:    "caret on first line",
			src:     "1\n2\n3\n",
			sel:     carets(0),
			want:    "2\n1\n3\n",
			wantSel: carets(2),
		},
		{
			name:    "into unterminated last line",
			src:     "a\nb",
			sel:     carets(0),
			want:    "b\na",
			wantSel: carets(2),
		},
		{
			name:    "selection is clamped to the buffer",
			src:     "a\nb",
			sel:     []text.Span{span(0, 2)},
			want:    "b\na",
			wantSel: []text.Span{span(2, 3)},
		},
		{
			name:    "past the empty last line",
			src:     "a\nb\n",
			sel:     carets(2),
			want:    "a\n\nb",
			wantSel: carets(3),
		},
		{
			name:    "separate blocks processed bottom up",
			src:     "a\nb\nc\nd\n",
			sel:     carets(0, 4),
			want:    "b\na\nd\nc\n",
			wantSel: carets(2, 6),
		},
		{
			name:    "crlf block over unterminated line",
			src:     "a\r\nb",
			sel:     carets(1),
			want:    "b\r\na",
			wantSel: carets(4),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			plan, ok := MoveLineDown([]byte(tc.src), tc.sel)
			require.True(t, ok)
			assert.Equal(t, tc.want, applyPlan(t, tc.src, plan))
			assert.Equal(t, tc.wantSel, plan.Selections)
			require.Len(t, plan.Edits, 1)
		})
	}
}

func TestMoveLineDownInapplicable(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src string
		sel []text.Span
	}{
		"unterminated last line":        {src: "a\nb", sel: carets(3)},
		"caret on empty last line":      {src: "a\n", sel: carets(2)},
		"selection reaching last line":  {src: "a\nb\nc", sel: []text.Span{span(2, 5)}},
		"empty buffer":                  {src: "", sel: carets(0)},
		"carriage return meets newline": {src: "\n\rabx", sel: carets(0)},
		"following newline":             {src: "\rb\n\n", sel: carets(0)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, ok := MoveLineDown([]byte(tc.src), tc.sel)
			assert.False(t, ok)
		})
	}
}
