package nix

import (
	"github.com/covercash2/green/pkg/text"
)

// DefaultInput is the flake input whose rev is updated by UpdateRev.
const DefaultInput = "ultron"

// RevLabel precedes the pinned revision inside an input block.
const RevLabel = "rev = "

// BlockLabel returns the label that introduces the block of a flake input.
func BlockLabel(input string) string {
	return input + " = "
}

// UpdateRev replaces the rev of the default input and returns the new flake
// contents. The input document is never modified; on success the result has
// the same length as document.
func UpdateRev(document, newRev string) (string, error) {
	return UpdateInputRev(document, DefaultInput, newRev)
}

// UpdateInputRev replaces the rev of the named input.
func UpdateInputRev(document, input, newRev string) (string, error) {
	return ReplaceValue(document, BlockLabel(input), RevLabel, newRev)
}

// CurrentRev returns the rev pinned for the default input.
func CurrentRev(document string) (string, error) {
	return CurrentInputRev(document, DefaultInput)
}

// CurrentInputRev returns the rev pinned for the named input.
func CurrentInputRev(document, input string) (string, error) {
	rev, err := LocateRev(document, input)
	if err != nil {
		return "", err
	}
	return rev.String(), nil
}

// LocateRev returns the span of the rev value of the named input.
func LocateRev(document, input string) (text.Span, error) {
	return LocateValue(document, BlockLabel(input), RevLabel)
}

// LocateValue returns the span of the first quoted value after valueLabel
// inside the brace block introduced by blockLabel.
func LocateValue(document, blockLabel, valueLabel string) (text.Span, error) {
	root := text.FromString(document)
	if root.Len() == 0 {
		return text.Span{}, newError(StageStart, ErrEmpty, nil)
	}

	block, err := LocateLabeledBlock(root, blockLabel, '{', '}')
	if err != nil {
		return text.Span{}, err
	}

	return LocateQuotedValue(block, valueLabel, '"')
}

// ReplaceValue returns document with the value located by LocateValue
// swapped for newValue.
func ReplaceValue(document, blockLabel, valueLabel, newValue string) (string, error) {
	value, err := LocateValue(document, blockLabel, valueLabel)
	if err != nil {
		return "", err
	}

	updated, err := value.Replace(newValue)
	if err != nil {
		return "", newError(StageReplace, ErrReplaceFailed, err)
	}
	return updated, nil
}
