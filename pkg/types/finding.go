package types

import "github.com/goccy/go-json"

// Finding collapses the matches of one rule that captured the same groups.
// A secret repeated across a stream, or seen again through overlapping
// windows, yields many matches but a single finding.
type Finding struct {
	ID      string // ComputeFindingID(rule structural ID, Groups)
	RuleID  string
	Groups  [][]byte
	Matches []*Match
}

// ComputeFindingID is SHA-1(rule_structural_id + '\0' + json(groups)).
func ComputeFindingID(ruleStructuralID string, groups [][]byte) string {
	groupsJSON, _ := json.Marshal(groups)
	return hashFields([]byte(ruleStructuralID), groupsJSON)
}
