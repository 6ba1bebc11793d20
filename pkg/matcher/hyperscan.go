//go:build cgo && hyperscan

package matcher

import (
	"regexp"
	"sort"
	"sync"

	"github.com/flier/gohs/hyperscan"
	"github.com/pkg/errors"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// HyperscanMatcher implements Matcher with a hyperscan block database.
//
// The database is compiled without start-of-match tracking, so every hit only
// carries a reliable end offset. A Go regexp per rule then recovers the start
// and the capture groups (see resolveHit). Scratch space is not shareable;
// concurrent scans draw clones from a pool.
type HyperscanMatcher struct {
	db           hyperscan.BlockDatabase
	proto        *hyperscan.Scratch
	scratch      sync.Pool
	rules        []*types.Rule
	capture      []*regexp.Regexp // by pattern ID
	contextLines int
}

// hsHit is the widest hit seen for one rule at one end offset.
type hsHit struct {
	rule       int
	start, end int
}

// NewHyperscan compiles rules into a hyperscan database.
func NewHyperscan(rules []*types.Rule, contextLines int) (*HyperscanMatcher, error) {
	if len(rules) == 0 {
		return nil, errors.New("no rules provided")
	}

	patterns := make([]*hyperscan.Pattern, len(rules))
	capture := make([]*regexp.Regexp, len(rules))
	for i, r := range rules {
		flat := flattenExtended(r.Pattern)
		re, err := regexp.Compile("(?s)" + flat)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile capture pattern for rule %s", r.ID)
		}
		capture[i] = re

		p := hyperscan.NewPattern(flat, hyperscan.DotAll|hyperscan.MultiLine)
		p.Id = i
		patterns[i] = p

		if r.StructuralID == "" {
			r.StructuralID = r.ComputeStructuralID()
		}
	}

	db, err := hyperscan.NewBlockDatabase(patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile hyperscan database")
	}
	proto, err := hyperscan.NewScratch(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to allocate hyperscan scratch")
	}

	return &HyperscanMatcher{
		db:           db,
		proto:        proto,
		rules:        rules,
		capture:      capture,
		contextLines: contextLines,
	}, nil
}

// Match scans content against all loaded rules.
func (m *HyperscanMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *HyperscanMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	hits, err := m.scan(content)
	if err != nil {
		return nil, err
	}

	var matches []*types.Match
	dedup := NewDeduplicator()
	for _, h := range hits {
		re := m.capture[h.rule]
		start, end, sub, err := resolveHit(content, re, h.start, h.end)
		if err != nil {
			continue
		}
		match := buildMatchResult(blobID, m.rules[h.rule], start, end,
			hitGroups(sub), hitNamedGroups(re, sub), content, m.contextLines)
		if dedup.AddIfNew(match) {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// scan runs the database over content and returns one hit per (rule, end)
// pair, ordered by end offset then rule.
func (m *HyperscanMatcher) scan(content []byte) ([]hsHit, error) {
	type key struct{ rule, end int }
	widest := make(map[key]int)

	onMatch := func(id uint, from, to uint64, _ uint, _ interface{}) error {
		if int(id) >= len(m.rules) {
			return errors.Errorf("invalid hyperscan pattern ID %d", id)
		}
		k := key{int(id), int(to)}
		if start, ok := widest[k]; !ok || int(from) < start {
			widest[k] = int(from)
		}
		return nil
	}

	s, err := m.getScratch()
	if err != nil {
		return nil, errors.Wrap(err, "failed to clone hyperscan scratch")
	}
	err = m.db.Scan(content, s, onMatch, nil)
	m.scratch.Put(s)
	if err != nil {
		return nil, errors.Wrap(err, "hyperscan scan failed")
	}

	hits := make([]hsHit, 0, len(widest))
	for k, start := range widest {
		hits = append(hits, hsHit{rule: k.rule, start: start, end: k.end})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].end != hits[j].end {
			return hits[i].end < hits[j].end
		}
		return hits[i].rule < hits[j].rule
	})
	return hits, nil
}

func (m *HyperscanMatcher) getScratch() (*hyperscan.Scratch, error) {
	if s, ok := m.scratch.Get().(*hyperscan.Scratch); ok {
		return s, nil
	}
	return m.proto.Clone()
}

// Close frees the scratch spaces and the database.
func (m *HyperscanMatcher) Close() error {
	for {
		s, ok := m.scratch.Get().(*hyperscan.Scratch)
		if !ok {
			break
		}
		_ = s.Free()
	}
	if m.proto != nil {
		if err := m.proto.Free(); err != nil {
			return errors.Wrap(err, "failed to free scratch")
		}
		m.proto = nil
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return errors.Wrap(err, "failed to close database")
		}
		m.db = nil
	}
	return nil
}
