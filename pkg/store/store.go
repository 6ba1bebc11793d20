package store

import (
	"fmt"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// MemoryPath selects the in-memory backend.
const MemoryPath = ":memory:"

// Store provides persistence for stream scan results.
// Implementations must be safe for concurrent use; several processors may
// share one sink.
type Store interface {
	// AddStream records (or updates) a stream and its buffering configuration.
	AddStream(s Stream) error

	// AddBlob records the content hash of a scanned window.
	AddBlob(id types.BlobID, size int64) error

	// AddRule records a detection rule.
	AddRule(r *types.Rule) error

	// AddMatch stores a match record. Matches are keyed by structural ID.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated).
	AddFinding(f *types.Finding) error

	// GetStreams returns every recorded stream ordered by ID.
	GetStreams() ([]Stream, error)

	// GetMatches retrieves matches for a stream ordered by offset.
	GetMatches(streamID string) ([]*types.Match, error)

	// GetAllMatches retrieves all matches (for JSON export).
	GetAllMatches() ([]*types.Match, error)

	// GetFindings retrieves all findings (for reporting).
	GetFindings() ([]*types.Finding, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a window with this content hash has been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close releases the backend.
	Close() error
}

// Stream is the persisted summary of one logical stream.
type Stream struct {
	ID                string
	Mode              string
	ChunkSize         int
	OverlapSize       int
	MaxCumulativeSize int
	BytesIngested     int64
	Windows           int
}

// Config for store initialization.
type Config struct {
	// Path is the database file path. Use ":memory:" for the in-memory store.
	Path string `config:"path"`
}

// New creates a Store. ":memory:" returns a MemoryStore, any other path a
// SQLite database.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == MemoryPath {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

// Record writes a batch of matches and the findings they group into.
func Record(s Store, matches []*types.Match) error {
	for _, m := range matches {
		if err := s.AddMatch(m); err != nil {
			return err
		}
	}
	for _, f := range GroupFindings(matches) {
		if err := s.AddFinding(f); err != nil {
			return err
		}
	}
	return nil
}

// GroupFindings groups matches by FindingID, preserving first-seen order.
// Matches without a FindingID are skipped.
func GroupFindings(matches []*types.Match) []*types.Finding {
	index := make(map[string]*types.Finding)
	var findings []*types.Finding
	for _, m := range matches {
		if m.FindingID == "" {
			continue
		}
		f, ok := index[m.FindingID]
		if !ok {
			f = &types.Finding{ID: m.FindingID, RuleID: m.RuleID, Groups: m.Groups}
			index[m.FindingID] = f
			findings = append(findings, f)
		}
		f.Matches = append(f.Matches, m)
	}
	return findings
}
