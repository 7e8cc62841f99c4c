//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("GreenUpdateRev", js.FuncOf(updateRev))
	js.Global().Set("GreenCurrentRev", js.FuncOf(currentRev))

	// Keep WASM running
	<-make(chan struct{})
}
