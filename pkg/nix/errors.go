package nix

import (
	"errors"
	"fmt"
)

// Error kinds returned by the rev updater. Every failure is an *Error whose
// Kind is one of these.
var (
	// ErrEmpty indicates the flake contents are empty.
	ErrEmpty = errors.New("flake contents are empty")

	// ErrBadRoot indicates the labeled input block could not be located.
	ErrBadRoot = errors.New("unable to locate input block")

	// ErrRevNotFound indicates the block has no rev attribute.
	ErrRevNotFound = errors.New("unable to find 'rev' attribute in input")

	// ErrRevExtractFailed indicates the rev attribute has no quoted value.
	ErrRevExtractFailed = errors.New("failed to extract rev")

	// ErrReplaceFailed indicates the new rev could not be substituted.
	ErrReplaceFailed = errors.New("unable to replace text")
)

// Stage names a step of the rev update. Steps run in declaration order and
// the first failure ends the update.
type Stage int

const (
	StageStart Stage = iota
	StageFindBlockLabel
	StageMatchBraces
	StageFindRevLabel
	StageMatchQuotes
	StageReplace
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageFindBlockLabel:
		return "find block label"
	case StageMatchBraces:
		return "match braces"
	case StageFindRevLabel:
		return "find rev label"
	case StageMatchQuotes:
		return "match quotes"
	case StageReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Error describes the first broken step of a rev lookup or update.
// Err is the underlying span error, if any.
type Error struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes both the kind and the underlying error to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(stage Stage, kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}
