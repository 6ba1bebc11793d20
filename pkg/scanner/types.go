package scanner

import (
	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "flow:10.0.0.1:443"
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// StreamOptions configures a stream opened on a Core.
type StreamOptions struct {
	StreamID          string `json:"stream_id,omitempty"`
	Mode              string `json:"mode"`
	ChunkSize         int    `json:"chunk_size,omitempty"`
	OverlapSize       int    `json:"overlap_size,omitempty"`
	WindowStep        int    `json:"window_step,omitempty"`
	MaxCumulativeSize int    `json:"max_cumulative_size,omitempty"`
	ManualAnalyze     bool   `json:"manual_analyze,omitempty"`
	SkipPartial       bool   `json:"skip_partial,omitempty"`
}

// StreamResult is the outcome of an operation on one stream.
type StreamResult struct {
	StreamID string         `json:"stream_id"`
	State    string         `json:"state"`
	Matches  []*types.Match `json:"matches"`
}

// StreamStats summarizes one stream.
type StreamStats struct {
	StreamID       string `json:"stream_id"`
	Mode           string `json:"mode"`
	State          string `json:"state"`
	Submissions    int    `json:"submissions"`
	BytesSubmitted int64  `json:"bytes_submitted"`
	Attempts       int    `json:"attempts"`
	WindowsScanned int    `json:"windows_scanned"`
	MatchErrors    int    `json:"match_errors"`
	Matches        int    `json:"matches"`
	Buffered       int    `json:"buffered"`
	Evicted        int64  `json:"evicted"`
	LastWindow     int    `json:"last_window"`
	LastOffset     int64  `json:"last_offset"`

	// Rule runs ruled out by the keyword prefilter, and runs that timed out
	// or errored, summed over every window.
	RulesSkipped  int `json:"rules_skipped"`
	RulesTimedOut int `json:"rules_timed_out"`
	RulesFailed   int `json:"rules_failed"`
}

// DebugLogger provides platform-specific logging
type DebugLogger interface {
	Log(format string, args ...any)
}

// NoopLogger is a no-op logger
type NoopLogger struct{}

func (NoopLogger) Log(format string, args ...any) {}

// zapLogger routes DebugLogger output to a logger.Logger at debug level.
type zapLogger struct {
	log logger.Logger
}

func (z zapLogger) Log(format string, args ...any) {
	z.log.Debugf(format, args...)
}

// FromLogger adapts a logger.Logger to DebugLogger.
func FromLogger(l logger.Logger) DebugLogger {
	return zapLogger{log: l}
}
