package types

import "strconv"

// Match is one rule hit inside a stream. Offsets in Location are absolute
// stream offsets; Snippet and BlobID describe the window it was found in.
type Match struct {
	BlobID           BlobID
	StreamID         string
	StructuralID     string // location identity, see ComputeStructuralID
	FindingID        string // content identity, see ComputeFindingID
	RuleID           string
	RuleName         string
	RuleStructuralID string
	Location         Location
	Groups           [][]byte          // positional capture groups, whole match excluded
	NamedGroups      map[string][]byte // (?P<name>...) captures
	Tags             []string          `json:",omitempty"` // reported by the yara engine
	Meta             map[string]string `json:",omitempty"` // reported by the yara engine
	Snippet          Snippet
}

// ComputeStructuralID is the location-based ID of the match:
// SHA-1(rule_structural_id + '\0' + stream_id + '\0' + start + '\0' + end).
// Offsets are absolute within the stream, so one hit seen through two
// overlapping windows keeps its ID.
func (m *Match) ComputeStructuralID(ruleStructuralID string) string {
	return hashFields(
		[]byte(ruleStructuralID),
		[]byte(m.StreamID),
		strconv.AppendInt(nil, m.Location.Offset.Start, 10),
		strconv.AppendInt(nil, m.Location.Offset.End, 10),
	)
}

// Snippet is the matched bytes plus the lines around them. Context never
// reaches outside the window the match was found in.
type Snippet struct {
	Before   []byte
	Matching []byte
	After    []byte
}
