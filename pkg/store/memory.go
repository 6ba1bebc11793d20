package store

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// MemoryStore keeps results in process memory. Insert-or-ignore semantics
// match SQLiteStore: repeated blob, rule, match and finding IDs are dropped.
type MemoryStore struct {
	mu sync.RWMutex

	streams map[string]Stream
	blobs   map[types.BlobID]int64
	rules   map[string]*types.Rule

	matches      []*types.Match
	matchIDs     map[string]struct{}
	findings     []*types.Finding
	findingIndex map[string]int
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		streams:      map[string]Stream{},
		blobs:        map[types.BlobID]int64{},
		rules:        map[string]*types.Rule{},
		matchIDs:     map[string]struct{}{},
		findingIndex: map[string]int{},
	}
}

func (m *MemoryStore) AddStream(s Stream) error {
	m.mu.Lock()
	m.streams[s.ID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		m.blobs[id] = size
	}
	return nil
}

func (m *MemoryStore) AddRule(r *types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.ID]; !ok {
		m.rules[r.ID] = r
	}
	return nil
}

// AddMatch appends match. Matches without a structural ID are never
// considered duplicates.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id := match.StructuralID; id != "" {
		if _, dup := m.matchIDs[id]; dup {
			return nil
		}
		m.matchIDs[id] = struct{}{}
	}
	m.matches = append(m.matches, match)
	return nil
}

func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.findingIndex[f.ID]; !dup {
		m.findingIndex[f.ID] = len(m.findings)
		m.findings = append(m.findings, f)
	}
	return nil
}

// GetStreams returns every recorded stream ordered by ID.
func (m *MemoryStore) GetStreams() ([]Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.SortedFunc(maps.Values(m.streams), func(a, b Stream) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

// GetMatches returns a stream's matches ordered by offset, then rule.
func (m *MemoryStore) GetMatches(streamID string) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*types.Match{}
	for _, match := range m.matches {
		if match.StreamID == streamID {
			out = append(out, match)
		}
	}
	slices.SortStableFunc(out, compareMatches)
	return out, nil
}

func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.matches), nil
}

func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.findings), nil
}

func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.findingIndex[id]
	return ok, nil
}

func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *MemoryStore) Close() error { return nil }

func compareMatches(a, b *types.Match) int {
	return cmp.Or(
		cmp.Compare(a.Location.Offset.Start, b.Location.Offset.Start),
		cmp.Compare(a.Location.Offset.End, b.Location.Offset.End),
		cmp.Compare(a.RuleID, b.RuleID),
	)
}
