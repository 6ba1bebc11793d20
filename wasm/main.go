//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("StreamScanNewScanner", js.FuncOf(newScanner))
	js.Global().Set("StreamScanScan", js.FuncOf(scan))
	js.Global().Set("StreamScanOpen", js.FuncOf(openStream))
	js.Global().Set("StreamScanSubmit", js.FuncOf(submit))
	js.Global().Set("StreamScanFinish", js.FuncOf(finish))
	js.Global().Set("StreamScanCloseStream", js.FuncOf(closeStream))
	js.Global().Set("StreamScanCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("StreamScanGetBuiltinRules", js.FuncOf(getBuiltinRules))

	<-make(chan struct{})
}
