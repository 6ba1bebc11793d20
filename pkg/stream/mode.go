package stream

import (
	"fmt"
	"strings"
)

// Mode selects how a Buffer accumulates bytes and when a window is ready.
type Mode int

const (
	// Raw never becomes ready on its own; each Ingest replaces the stored
	// bytes and the caller decides when to Flush.
	Raw Mode = iota

	// Disjoint emits back to back windows of exactly ChunkSize bytes.
	Disjoint

	// Overlapped emits ChunkSize windows where consecutive windows share
	// the trailing OverlapSize bytes.
	Overlapped

	// Cumulative emits a growing window holding everything seen so far,
	// optionally capped at MaxCumulativeSize.
	Cumulative
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case Raw:
		return "raw"
	case Disjoint:
		return "disjoint"
	case Overlapped:
		return "overlapped"
	case Cumulative:
		return "cumulative"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode parses a mode name. Matching is case-insensitive and also accepts
// the legacy names "fixed_buffer" (Disjoint) and "sliding_window" (Overlapped).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return Raw, nil
	case "disjoint", "fixed_buffer", "fixed":
		return Disjoint, nil
	case "overlapped", "sliding_window", "sliding":
		return Overlapped, nil
	case "cumulative":
		return Cumulative, nil
	default:
		return Raw, fmt.Errorf("unknown processing mode %q", s)
	}
}
