package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// DedupeMode selects what makes two matches the same.
type DedupeMode int

const (
	// DedupeByLocation keys on rule and offsets, so a secret repeated at two
	// offsets yields two matches.
	DedupeByLocation DedupeMode = iota
	// DedupeByContent keys on rule and capture groups, so a repeated secret
	// yields one match.
	DedupeByContent
)

func (m DedupeMode) String() string {
	if m == DedupeByContent {
		return "content"
	}
	return "location"
}

// ParseDedupeMode parses "location" or "content". The empty string selects
// DedupeByLocation.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "location":
		return DedupeByLocation, nil
	case "content":
		return DedupeByContent, nil
	}
	return 0, fmt.Errorf("unknown dedupe mode %q (want location or content)", s)
}

// Deduplicator drops matches whose key was already seen. It is not safe for
// concurrent use.
type Deduplicator struct {
	mode DedupeMode
	seen map[uint64]struct{}
	buf  []byte
}

func newDeduplicatorFor(mode DedupeMode) *Deduplicator {
	return &Deduplicator{mode: mode, seen: map[uint64]struct{}{}}
}

// NewDeduplicator returns a location-keyed deduplicator.
func NewDeduplicator() *Deduplicator { return newDeduplicatorFor(DedupeByLocation) }

// AddIfNew records m and reports whether its key was unseen.
func (d *Deduplicator) AddIfNew(m *types.Match) bool {
	k := d.key(m)
	if _, dup := d.seen[k]; dup {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// key hashes NUL-separated fields so that group boundaries stay significant.
func (d *Deduplicator) key(m *types.Match) uint64 {
	b := append(d.buf[:0], m.RuleID...)
	if d.mode == DedupeByContent {
		for _, g := range m.Groups {
			b = append(b, 0)
			b = append(b, g...)
		}
	} else {
		b = append(b, 0)
		b = strconv.AppendInt(b, m.Location.Offset.Start, 10)
		b = append(b, 0)
		b = strconv.AppendInt(b, m.Location.Offset.End, 10)
	}
	d.buf = b
	return xxhash.Sum64(b)
}
