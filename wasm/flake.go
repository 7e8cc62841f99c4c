//go:build wasm

package main

import (
	"syscall/js"

	"github.com/covercash2/green"
)

// updaterFor builds an updater for the optional input argument at index i.
func updaterFor(args []js.Value, i int) *green.Updater {
	if len(args) > i && args[i].Type() == js.TypeString && args[i].String() != "" {
		return green.NewUpdater(green.WithInput(args[i].String()))
	}
	return green.NewUpdater()
}

// updateRev replaces the pinned rev.
// JS: GreenUpdateRev(flake, rev, input?) -> {flake} or {error}
func updateRev(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{"error": "flake and rev arguments required"}
	}

	updated, err := updaterFor(args, 2).Update(args[0].String(), args[1].String())
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{"flake": updated}
}

// currentRev reads the pinned rev.
// JS: GreenCurrentRev(flake, input?) -> {rev} or {error}
func currentRev(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "flake argument required"}
	}

	rev, err := updaterFor(args, 1).Current(args[0].String())
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{"rev": rev}
}
