package processor

import (
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/stream"
)

// State is the position of a Processor in its IDLE -> BUFFERING -> MATCHING
// cycle.
type State int

const (
	// Idle: nothing buffered since the last match attempt.
	Idle State = iota
	// Buffering: bytes were submitted and no match attempt consumed them yet.
	Buffering
	// Matching: a match attempt is running.
	Matching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Matching:
		return "matching"
	default:
		return "unknown"
	}
}

// WindowInfo describes the last window handed to the matcher.
type WindowInfo struct {
	Index   int
	Offset  int64
	Length  int
	Partial bool
}

// Stats are lifetime counters of a Processor.
type Stats struct {
	Submissions    int
	BytesSubmitted int64
	Attempts       int // completed match attempts
	WindowsScanned int
	MatchErrors    int
	Matches        int // matches reported, summed over attempts
	LastWindow     WindowInfo
	Buffer         stream.Stats

	// Rules sums per-rule outcomes over every window, for engines that
	// report them (matcher.StatsMatcher).
	Rules matcher.ResultSummary
}
