package transform

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"golang.org/x/text/language"

	"github.com/kpumuk/line-weaver/internal/text"
)

// LocaleEnv names the environment variable consulted for the default sort locale.
const LocaleEnv = "LINEWEAVE_LOCALE"

var (
	// ErrUnknownOperation is returned for an operation name that is not registered.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidSelection is returned when a selection does not lie within the buffer.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Options configure the registered operations.
type Options struct {
	// Locale drives collation for sort-lines. The zero value is the root locale.
	Locale language.Tag
	// TrimWhitespaceOnlyLines makes trim-trailing-whitespace empty lines that hold only
	// whitespace instead of leaving them alone.
	TrimWhitespaceOnlyLines bool
	// KeepEditingPoints makes trim-trailing-whitespace keep runs that touch a selection.
	KeepEditingPoints bool
}

// Operation is a named line operation as exposed to hosts.
type Operation struct {
	// Name is the stable identifier used on the command line and in LSP commands.
	Name string
	// ActionName is the label a host shows for the edit, e.g. in its undo menu.
	ActionName string

	apply func(src []byte, selections []text.Span, opts Options) (Plan, bool)
}

var operations = []Operation{
	{
		Name:       "move-line-up",
		ActionName: "Move Line",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return MoveLineUp(src, sel)
		},
	},
	{
		Name:       "move-line-down",
		ActionName: "Move Line",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return MoveLineDown(src, sel)
		},
	},
	{
		Name:       "sort-lines",
		ActionName: "Sort Lines",
		apply: func(src []byte, sel []text.Span, opts Options) (Plan, bool) {
			return SortLinesAscending(src, primary(sel), opts.Locale)
		},
	},
	{
		Name:       "reverse-lines",
		ActionName: "Reverse Lines",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return ReverseLines(src, primary(sel))
		},
	},
	{
		Name:       "delete-duplicate-lines",
		ActionName: "Delete Duplicate Lines",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return DeleteDuplicateLines(src, sel)
		},
	},
	{
		Name:       "duplicate-line",
		ActionName: "Duplicate Line",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return DuplicateLine(src, sel)
		},
	},
	{
		Name:       "delete-line",
		ActionName: "Delete Line",
		apply: func(src []byte, sel []text.Span, _ Options) (Plan, bool) {
			return DeleteLine(src, sel)
		},
	},
	{
		Name:       "trim-trailing-whitespace",
		ActionName: "Trim Trailing Whitespace",
		apply: func(src []byte, sel []text.Span, opts Options) (Plan, bool) {
			trim := TrimOptions{IgnoresEmptyLines: !opts.TrimWhitespaceOnlyLines}
			if opts.KeepEditingPoints {
				trim.EditingPoints = sel
			}
			return TrimTrailingWhitespace(src, trim)
		},
	},
}

// Operations returns the registered operations in presentation order.
func Operations() []Operation {
	return slices.Clone(operations)
}

// Lookup returns the operation registered under name.
func Lookup(name string) (Operation, bool) {
	i := slices.IndexFunc(operations, func(op Operation) bool { return op.Name == name })
	if i < 0 {
		return Operation{}, false
	}
	return operations[i], true
}

// Apply validates selections against src and runs the operation.
func (op Operation) Apply(src []byte, selections []text.Span, opts Options) (Plan, bool, error) {
	if op.apply == nil {
		return Plan{}, false, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
	}
	if err := ValidateSelections(src, selections); err != nil {
		return Plan{}, false, err
	}
	plan, ok := op.apply(src, selections, opts)
	return plan, ok, nil
}

// Run looks up the named operation and applies it.
func Run(name string, src []byte, selections []text.Span, opts Options) (Plan, bool, error) {
	op, ok := Lookup(name)
	if !ok {
		return Plan{}, false, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op.Apply(src, selections, opts)
}

// ValidateSelections reports an ErrInvalidSelection if any selection is malformed,
// extends past the end of src or has an end that is not a cursor boundary.
func ValidateSelections(src []byte, selections []text.Span) error {
	for _, s := range selections {
		if err := s.ValidateWithin(text.ByteOffset(len(src))); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSelection, err)
		}
		for _, off := range [...]text.ByteOffset{s.Start, s.End} {
			if !text.IsBoundary(src, off) {
				return fmt.Errorf("%w: offset %d splits a character or line terminator", ErrInvalidSelection, off)
			}
		}
	}
	return nil
}

// ParseLocale parses a BCP 47 tag. An empty string falls back to $LINEWEAVE_LOCALE and
// then to the root locale.
func ParseLocale(s string) (language.Tag, error) {
	if s == "" {
		s = os.Getenv(LocaleEnv)
	}
	if s == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", s, err)
	}
	return tag, nil
}

func primary(selections []text.Span) text.Span {
	if len(selections) == 0 {
		return text.Span{}
	}
	return selections[0]
}
