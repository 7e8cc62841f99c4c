// Package deploy pins pushed revisions into the NixOS flake and records the
// outcome.
package deploy

import (
	"fmt"
	"os"

	"github.com/covercash2/green/pkg/nix"
	"github.com/covercash2/green/pkg/text"
)

// Flake is a flake.nix file on disk with one tracked input.
type Flake struct {
	Path  string
	Input string // defaults to nix.DefaultInput
}

// Change describes a pending update to a flake.
type Change struct {
	Previous string // rev currently pinned
	Rev      string // rev to pin
	Updated  string // flake contents after the update

	// Location is where the pinned rev sits in the file.
	Location text.Location
}

// Changed reports whether applying the change would alter the file.
func (c Change) Changed() bool {
	return c.Previous != c.Rev
}

func (f Flake) input() string {
	if f.Input == "" {
		return nix.DefaultInput
	}
	return f.Input
}

// Rev returns the rev currently pinned for the tracked input.
func (f Flake) Rev() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading flake: %w", err)
	}

	rev, err := nix.CurrentInputRev(string(data), f.input())
	if err != nil {
		return "", fmt.Errorf("reading %s rev from %s: %w", f.input(), f.Path, err)
	}
	return rev, nil
}

// Plan computes the update to rev without touching the file.
func (f Flake) Plan(rev string) (Change, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Change{}, fmt.Errorf("reading flake: %w", err)
	}

	span, err := nix.LocateRev(string(data), f.input())
	if err != nil {
		return Change{}, fmt.Errorf("reading %s rev from %s: %w", f.input(), f.Path, err)
	}

	updated, err := span.Replace(rev)
	if err != nil {
		err = &nix.Error{Stage: nix.StageReplace, Kind: nix.ErrReplaceFailed, Err: err}
		return Change{}, fmt.Errorf("updating %s rev in %s: %w", f.input(), f.Path, err)
	}

	return Change{
		Previous: span.String(),
		Rev:      rev,
		Updated:  updated,
		Location: span.Position(),
	}, nil
}

// Update pins rev for the tracked input and writes the file back with its
// original permissions. The file is left alone when rev is already pinned.
func (f Flake) Update(rev string) (previous string, changed bool, err error) {
	change, err := f.Apply(rev)
	if err != nil {
		return "", false, err
	}
	return change.Previous, change.Changed(), nil
}

// Apply is Update returning the full change.
func (f Flake) Apply(rev string) (Change, error) {
	change, err := f.Plan(rev)
	if err != nil {
		return Change{}, err
	}
	if !change.Changed() {
		return change, nil
	}

	info, err := os.Stat(f.Path)
	if err != nil {
		return Change{}, fmt.Errorf("stat flake: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(change.Updated), info.Mode().Perm()); err != nil {
		return Change{}, fmt.Errorf("writing flake: %w", err)
	}
	return change, nil
}
