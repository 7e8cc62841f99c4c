// Package nix locates and rewrites pinned flake input revisions.
//
// The flake is never parsed. Instead the input block is found by its
// "<input> = " label followed by a balanced pair of braces, and the revision
// is the first quoted value after "rev = " inside that block:
//
//	ultron = {
//	  type = "github";
//	  rev = "0875adf8d630246ac3d0c338157a5b89fa0c57a8";
//	};
package nix

import (
	"github.com/covercash2/green/pkg/text"
)

// LocateLabeledBlock finds label in span and returns the delimiter-balanced
// block that follows it, delimiters included.
func LocateLabeledBlock(span text.Span, label string, open, closing rune) (text.Span, error) {
	start, err := span.Find(label)
	if err != nil {
		return text.Span{}, newError(StageFindBlockLabel, ErrBadRoot, err)
	}

	block, err := start.MatchingDelimiters(open, closing)
	if err != nil {
		return text.Span{}, newError(StageMatchBraces, ErrBadRoot, err)
	}
	return block, nil
}

// LocateQuotedValue finds label in span and returns the contents of the
// first quote pair after it, quotes excluded.
func LocateQuotedValue(span text.Span, label string, quote rune) (text.Span, error) {
	start, err := span.Find(label)
	if err != nil {
		return text.Span{}, newError(StageFindRevLabel, ErrRevNotFound, err)
	}

	value, err := start.InnerDelimiter(quote)
	if err != nil {
		return text.Span{}, newError(StageMatchQuotes, ErrRevExtractFailed, err)
	}
	return value, nil
}
