package serve

import (
	"github.com/goccy/go-json"

	"github.com/praetorian-inc/streamscan/pkg/scanner"
)

// Request and response type names. Responses echo the request type; the
// server additionally emits "ready" and "error".
const (
	TypeScan        = "scan"
	TypeScanBatch   = "scan_batch"
	TypeOpen        = "open"
	TypeSubmit      = "submit"
	TypeAnalyze     = "analyze"
	TypeFinish      = "finish"
	TypeResults     = "results"
	TypeReset       = "reset"
	TypeCloseStream = "close_stream"
	TypeStats       = "stats"
	TypeClose       = "close"
)

// Request is one NDJSON line read from the client. Payload is decoded
// according to Type.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Response is one NDJSON line written back. Data is set on success and Error
// on failure.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type (
	// ScanPayload scans Content as a single window.
	ScanPayload struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	}

	ScanBatchPayload struct {
		Items []scanner.ContentItem `json:"items"`
	}

	OpenPayload = scanner.StreamOptions

	// StreamPayload names the stream for analyze, finish, results, reset,
	// close_stream and stats. An empty StreamID on stats lists open streams.
	StreamPayload struct {
		StreamID string `json:"stream_id"`
	}

	// SubmitPayload carries Data base64-encoded on the wire.
	SubmitPayload struct {
		StreamID string `json:"stream_id"`
		Data     []byte `json:"data"`
	}
)

type (
	ReadyData struct {
		Version string `json:"version"`
	}

	OpenData struct {
		StreamID string `json:"stream_id"`
	}

	StatsData struct {
		Streams []string `json:"streams"`
	}
)
