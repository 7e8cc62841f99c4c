package text

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Span operations. Typed errors below match
// these with errors.Is.
var (
	// ErrOutOfRange indicates an offset pair that violates the span bounds.
	ErrOutOfRange = errors.New("bounds are out of range")

	// ErrNotFound indicates a keyphrase is absent from the span.
	ErrNotFound = errors.New("keyphrase not found in span")

	// ErrDelimiterNotFound indicates the span ran out before a delimiter pair was found.
	ErrDelimiterNotFound = errors.New("matching delimiter not found in span")

	// ErrUnbalancedDelimiters indicates a closing delimiter with no opening one.
	ErrUnbalancedDelimiters = errors.New("unbalanced delimiters")

	// ErrReplaceLengthMismatch indicates replacement text of the wrong byte length.
	ErrReplaceLengthMismatch = errors.New("replacement text length does not match span length")
)

// NotFoundError reports the keyphrase that Find could not locate.
type NotFoundError struct {
	Keyphrase string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("keyphrase '%s' not found in span", e.Keyphrase)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnbalancedDelimitersError reports a closing delimiter seen at depth zero.
// Offset is the byte offset of the delimiter in the backing text.
type UnbalancedDelimitersError struct {
	Delimiter rune
	Offset    int
}

func (e *UnbalancedDelimitersError) Error() string {
	return fmt.Sprintf("unbalanced delimiters: unexpected '%c' at offset %d", e.Delimiter, e.Offset)
}

// Is reports whether target is ErrUnbalancedDelimiters.
func (e *UnbalancedDelimitersError) Is(target error) bool {
	return target == ErrUnbalancedDelimiters
}

// ReplaceLengthMismatchError carries both lengths of a rejected replacement.
type ReplaceLengthMismatchError struct {
	Expected int
	Found    int
}

func (e *ReplaceLengthMismatchError) Error() string {
	return fmt.Sprintf("replacement text length does not match span length: expected %d, found %d", e.Expected, e.Found)
}

// Is reports whether target is ErrReplaceLengthMismatch.
func (e *ReplaceLengthMismatchError) Is(target error) bool {
	return target == ErrReplaceLengthMismatch
}
