package matcher

import (
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// runeIndex maps regexp2 rune offsets back to byte offsets in the scanned
// content. Stream windows are arbitrary bytes, so an invalid UTF-8 byte counts
// as one rune, matching how the []byte to string to []rune conversion treats it.
// A nil table means the content is pure ASCII and offsets are identical.
type runeIndex []int

func newRuneIndex(content []byte) runeIndex {
	ascii := true
	for _, b := range content {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return nil
	}

	idx := make(runeIndex, 0, len(content)+1)
	for off := 0; off < len(content); {
		idx = append(idx, off)
		_, size := utf8.DecodeRune(content[off:])
		off += size
	}
	return append(idx, len(content))
}

func (idx runeIndex) byteOffset(r int) int {
	if idx == nil {
		return r
	}
	if r >= len(idx) {
		return idx[len(idx)-1]
	}
	return idx[r]
}

func (idx runeIndex) slice(content []byte, c regexp2.Capture) []byte {
	s := idx.byteOffset(c.Index)
	e := idx.byteOffset(c.Index + c.Length)
	return append([]byte{}, content[s:e]...)
}

// extractCaptureGroups extracts positional capture groups from a regexp2 match.
func extractCaptureGroups(match *regexp2.Match, idx runeIndex, content []byte) [][]byte {
	var groups [][]byte
	matchGroups := match.Groups()
	for i := 1; i < len(matchGroups); i++ {
		group := matchGroups[i]
		if len(group.Captures) > 0 {
			groups = append(groups, idx.slice(content, group.Captures[0]))
		}
	}
	return groups
}

// extractNamedGroups extracts named capture groups from a regexp2 match.
func extractNamedGroups(match *regexp2.Match, groupNames []string, idx runeIndex, content []byte) map[string][]byte {
	namedGroups := make(map[string][]byte)
	for _, name := range groupNames {
		// Skip numbered groups (they show up as "0", "1", etc.)
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			continue
		}
		group := match.GroupByName(name)
		if group != nil && len(group.Captures) > 0 {
			namedGroups[name] = idx.slice(content, group.Captures[0])
		}
	}
	return namedGroups
}

// buildMatchResult constructs a types.Match from match data.
// Offsets are relative to content.
func buildMatchResult(
	blobID types.BlobID,
	rule *types.Rule,
	start, end int,
	groups [][]byte,
	namedGroups map[string][]byte,
	content []byte,
	contextLines int,
) *types.Match {
	var before, after []byte
	if contextLines > 0 {
		before, after = surroundingLines(content, start, end, contextLines)
	}

	result := &types.Match{
		BlobID:           blobID,
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		RuleStructuralID: rule.StructuralID,
		Location: types.Location{
			Offset: types.OffsetSpan{
				Start: int64(start),
				End:   int64(end),
			},
		},
		Groups:      groups,
		NamedGroups: namedGroups,
		Snippet: types.Snippet{
			Before:   before,
			Matching: append([]byte{}, content[start:end]...),
			After:    after,
		},
	}

	result.StructuralID = result.ComputeStructuralID(rule.StructuralID)
	result.FindingID = types.ComputeFindingID(rule.StructuralID, groups)

	return result
}
