package text

import "fmt"

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int
	End   int
}

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int
	Column int
}

func (p SourcePoint) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}

func (l Location) String() string {
	return fmt.Sprintf("%s..%s", l.Source.Start, l.Source.End)
}

// ComputeLineColumn computes line and column numbers from a byte offset in content.
// Lines and columns are 1-indexed (first line is 1, first column is 1).
// Columns count bytes.
func ComputeLineColumn(content string, byteOffset int) (line, column int) {
	line = 1
	column = 1
	for i := 0; i < byteOffset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
