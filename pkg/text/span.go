// Package text provides a zero-copy Span over immutable text, used to locate
// and rewrite values inside documents without parsing their grammar.
package text

import (
	"strings"
	"unicode/utf8"
)

// Span is a window [start, end) over a backing string. Offsets are bytes and
// always fall on rune boundaries. Every operation returns a new Span over the
// same backing string; a Span is never modified in place.
type Span struct {
	text  string
	start int
	end   int
}

// New creates a span over text[start:end].
func New(text string, start, end int) (Span, error) {
	if start < 0 || start > end || end > len(text) {
		return Span{}, ErrOutOfRange
	}
	if !isBoundary(text, start) || !isBoundary(text, end) {
		return Span{}, ErrOutOfRange
	}
	return Span{text: text, start: start, end: end}, nil
}

// FromString creates a span covering all of text.
func FromString(text string) Span {
	return Span{text: text, start: 0, end: len(text)}
}

func isBoundary(text string, offset int) bool {
	return offset == len(text) || utf8.RuneStart(text[offset])
}

// Slice narrows the span to [start+relStart, start+relEnd] over the same text.
func (s Span) Slice(relStart, relEnd int) (Span, error) {
	return New(s.text, s.start+relStart, s.start+relEnd)
}

// Find fast-forwards the start of the span to just past the first occurrence
// of keyphrase. The end is unchanged.
func (s Span) Find(keyphrase string) (Span, error) {
	pos := strings.Index(s.String(), keyphrase)
	if pos < 0 {
		return Span{}, &NotFoundError{Keyphrase: keyphrase}
	}
	return Span{
		text:  s.text,
		start: s.start + pos + len(keyphrase),
		end:   s.end,
	}, nil
}

// MatchingDelimiters scans from the start of the span and returns the span
// from the start through the close delimiter that brings the nesting depth
// back to zero. open and closing must differ.
func (s Span) MatchingDelimiters(open, closing rune) (Span, error) {
	depth := 0
	for i, c := range s.String() {
		switch c {
		case open:
			depth++
		case closing:
			if depth == 0 {
				return Span{}, &UnbalancedDelimitersError{Delimiter: c, Offset: s.start + i}
			}
			depth--
			if depth == 0 {
				return Span{
					text:  s.text,
					start: s.start,
					end:   s.start + i + utf8.RuneLen(c),
				}, nil
			}
		}
	}
	return Span{}, ErrDelimiterNotFound
}

// InnerDelimiter returns the span strictly between the first two occurrences
// of delim.
func (s Span) InnerDelimiter(delim rune) (Span, error) {
	str := s.String()
	first := strings.IndexRune(str, delim)
	if first < 0 {
		return Span{}, ErrDelimiterNotFound
	}
	inner := first + utf8.RuneLen(delim)
	second := strings.IndexRune(str[inner:], delim)
	if second < 0 {
		return Span{}, ErrDelimiterNotFound
	}
	return Span{
		text:  s.text,
		start: s.start + inner,
		end:   s.start + inner + second,
	}, nil
}

// Replace returns a new string equal to the backing text with the span's
// contents swapped for newText. newText must have the same byte length as the
// span so that no surrounding offsets move.
func (s Span) Replace(newText string) (string, error) {
	if len(newText) != s.Len() {
		return "", &ReplaceLengthMismatchError{Expected: s.Len(), Found: len(newText)}
	}

	var b strings.Builder
	b.Grow(len(s.text))
	b.WriteString(s.text[:s.start])
	b.WriteString(newText)
	b.WriteString(s.text[s.end:])
	return b.String(), nil
}

// Len returns the byte length of the span.
func (s Span) Len() int {
	return s.end - s.start
}

// String returns the text covered by the span.
func (s Span) String() string {
	return s.text[s.start:s.end]
}

// Start returns the byte offset of the span start in the backing text.
func (s Span) Start() int {
	return s.start
}

// End returns the byte offset of the span end in the backing text.
func (s Span) End() int {
	return s.end
}

// Source returns the full backing text.
func (s Span) Source() string {
	return s.text
}

// Position returns the line:column location of the span in the backing text.
func (s Span) Position() Location {
	startLine, startCol := ComputeLineColumn(s.text, s.start)
	endLine, endCol := ComputeLineColumn(s.text, s.end)
	return Location{
		Offset: OffsetSpan{Start: s.start, End: s.end},
		Source: SourceSpan{
			Start: SourcePoint{Line: startLine, Column: startCol},
			End:   SourcePoint{Line: endLine, Column: endCol},
		},
	}
}
