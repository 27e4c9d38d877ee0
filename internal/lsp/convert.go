package lsp

import (
	"fmt"

	itext "github.com/kpumuk/line-weaver/internal/text"
)

func rangeToSpan(li *itext.LineIndex, r Range) (itext.Span, error) {
	start, err := li.UTF16PositionToOffset(itext.UTF16Position{Line: r.Start.Line, Character: r.Start.Character})
	if err != nil {
		return itext.Span{}, fmt.Errorf("range start: %w", err)
	}
	end, err := li.UTF16PositionToOffset(itext.UTF16Position{Line: r.End.Line, Character: r.End.Character})
	if err != nil {
		return itext.Span{}, fmt.Errorf("range end: %w", err)
	}
	return itext.NewSpan(start, end)
}

func spanToRange(li *itext.LineIndex, sp itext.Span) (Range, error) {
	start, err := li.OffsetToUTF16Position(sp.Start)
	if err != nil {
		return Range{}, err
	}
	end, err := li.OffsetToUTF16Position(sp.End)
	if err != nil {
		return Range{}, err
	}
	return Range{
		Start: Position{Line: start.Line, Character: start.Character},
		End:   Position{Line: end.Line, Character: end.Character},
	}, nil
}

func rangesToSpans(li *itext.LineIndex, ranges []Range) ([]itext.Span, error) {
	out := make([]itext.Span, 0, len(ranges))
	for _, r := range ranges {
		sp, err := rangeToSpan(li, r)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

func spansToRanges(li *itext.LineIndex, spans []itext.Span) ([]Range, error) {
	if spans == nil {
		return nil, nil
	}
	out := make([]Range, 0, len(spans))
	for _, sp := range spans {
		r, err := spanToRange(li, sp)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// textEditsFromByteEdits maps edits in src coordinates to LSP edits against the
// same document version.
func textEditsFromByteEdits(li *itext.LineIndex, edits []itext.ByteEdit) ([]TextEdit, error) {
	out := make([]TextEdit, 0, len(edits))
	for _, e := range edits {
		r, err := spanToRange(li, e.Span)
		if err != nil {
			return nil, err
		}
		out = append(out, TextEdit{Range: r, NewText: string(e.NewText)})
	}
	return out, nil
}
