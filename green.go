// Package green updates pinned revisions in Nix flakes without parsing Nix.
//
// A flake input block is located by its label and a balanced pair of
// braces; the pinned revision is the first quoted value after "rev = " in
// that block. Replacement is length preserving, so a 40 character commit
// hash can only be replaced by another 40 character hash.
//
// # Basic Usage
//
//	updated, err := green.UpdateRev(flake, "0000000000000000000000000000000000000000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Other Inputs
//
// Use an Updater to target a different input or labels:
//
//	u := green.NewUpdater(green.WithInput("home-manager"))
//	rev, err := u.Current(flake)
package green

import (
	"github.com/covercash2/green/pkg/nix"
	"github.com/covercash2/green/pkg/text"
)

// Re-export commonly used types for convenience.
type (
	// Span is a window into a string.
	Span = text.Span

	// Error reports the stage at which an update failed.
	Error = nix.Error

	// Stage identifies a step of the update.
	Stage = nix.Stage
)

// Re-export error kinds.
var (
	ErrEmpty            = nix.ErrEmpty
	ErrBadRoot          = nix.ErrBadRoot
	ErrRevNotFound      = nix.ErrRevNotFound
	ErrRevExtractFailed = nix.ErrRevExtractFailed
	ErrReplaceFailed    = nix.ErrReplaceFailed
)

// UpdateRev replaces the rev pinned for the ultron input.
func UpdateRev(document, newRev string) (string, error) {
	return nix.UpdateRev(document, newRev)
}

// CurrentRev returns the rev pinned for the ultron input.
func CurrentRev(document string) (string, error) {
	return nix.CurrentRev(document)
}

// Updater locates and replaces a quoted value inside a labeled block.
type Updater struct {
	config *updaterConfig
}

// updaterConfig holds updater configuration.
type updaterConfig struct {
	blockLabel string
	valueLabel string
}

// Option configures an Updater.
type Option func(*updaterConfig)

// WithInput targets the block of the named flake input.
func WithInput(input string) Option {
	return func(c *updaterConfig) {
		c.blockLabel = nix.BlockLabel(input)
	}
}

// WithBlockLabel sets the exact label that precedes the block.
func WithBlockLabel(label string) Option {
	return func(c *updaterConfig) {
		c.blockLabel = label
	}
}

// WithValueLabel sets the label that precedes the quoted value.
// Default is "rev = ".
func WithValueLabel(label string) Option {
	return func(c *updaterConfig) {
		c.valueLabel = label
	}
}

// NewUpdater creates an Updater. By default it targets the rev of the
// ultron input.
func NewUpdater(opts ...Option) *Updater {
	cfg := &updaterConfig{
		blockLabel: nix.BlockLabel(nix.DefaultInput),
		valueLabel: nix.RevLabel,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Updater{config: cfg}
}

// Current returns the value currently set.
func (u *Updater) Current(document string) (string, error) {
	value, err := nix.LocateValue(document, u.config.blockLabel, u.config.valueLabel)
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Update returns document with the value replaced by newValue.
func (u *Updater) Update(document, newValue string) (string, error) {
	return nix.ReplaceValue(document, u.config.blockLabel, u.config.valueLabel, newValue)
}
