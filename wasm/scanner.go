//go:build wasm

package main

import (
	"sync"
	"syscall/js"

	"github.com/goccy/go-json"

	"github.com/praetorian-inc/streamscan/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

// jsonResult marshals v for the JS side.
func jsonResult(v any) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(b)
}

func lookup(args []js.Value, want int, usage string) (*scanner.Core, interface{}) {
	if len(args) < want {
		return nil, errorResult(usage)
	}
	scannersMu.RLock()
	core, ok := scanners[args[0].Int()]
	scannersMu.RUnlock()
	if !ok {
		return nil, errorResult("invalid scanner handle")
	}
	return core, nil
}

// newScanner compiles rules and returns a handle.
// JS: StreamScanNewScanner(rulesJSON) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("rulesJSON argument required")
	}

	core, err := scanner.NewCore(args[0].String(), scanner.NoopLogger{})
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans one complete content string.
// JS: StreamScanScan(handle, content, source) -> JSON ScanResult
func scan(this js.Value, args []js.Value) interface{} {
	core, errRes := lookup(args, 2, "handle and content arguments required")
	if core == nil {
		return errRes
	}
	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Scan(args[1].String(), source)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return jsonResult(result)
}

// openStream opens a stream on a scanner.
// JS: StreamScanOpen(handle, optionsJSON) -> {stream_id} or {error}
func openStream(this js.Value, args []js.Value) interface{} {
	core, errRes := lookup(args, 2, "handle and optionsJSON arguments required")
	if core == nil {
		return errRes
	}

	var opts scanner.StreamOptions
	if err := json.Unmarshal([]byte(args[1].String()), &opts); err != nil {
		return errorResult("failed to parse options JSON: " + err.Error())
	}
	id, err := core.Open(opts)
	if err != nil {
		return errorResult(err.Error())
	}
	return map[string]interface{}{"stream_id": id}
}

// submit feeds a Uint8Array to a stream.
// JS: StreamScanSubmit(handle, streamID, bytes) -> JSON StreamResult
func submit(this js.Value, args []js.Value) interface{} {
	core, errRes := lookup(args, 3, "handle, streamID and bytes arguments required")
	if core == nil {
		return errRes
	}

	data := make([]byte, args[2].Get("length").Int())
	js.CopyBytesToGo(data, args[2])

	res, err := core.Submit(args[1].String(), data)
	if res == nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

// finish drains the tail of a stream.
// JS: StreamScanFinish(handle, streamID) -> JSON StreamResult
func finish(this js.Value, args []js.Value) interface{} {
	core, errRes := lookup(args, 2, "handle and streamID arguments required")
	if core == nil {
		return errRes
	}

	res, err := core.Finish(args[1].String())
	if res == nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

// closeStream releases a stream and returns its final counters.
// JS: StreamScanCloseStream(handle, streamID) -> JSON StreamStats
func closeStream(this js.Value, args []js.Value) interface{} {
	core, errRes := lookup(args, 2, "handle and streamID arguments required")
	if core == nil {
		return errRes
	}

	st, err := core.CloseStream(args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(st)
}

// closeScanner closes a scanner and every stream still open on it.
// JS: StreamScanCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}

	core.Close()
	return nil
}

// getBuiltinRules returns the built-in rules as JSON.
// JS: StreamScanGetBuiltinRules() -> JSON rules array
func getBuiltinRules(this js.Value, args []js.Value) interface{} {
	rules, err := scanner.GetBuiltinRules()
	if err != nil {
		return errorResult("failed to load builtin rules: " + err.Error())
	}
	return jsonResult(rules)
}
