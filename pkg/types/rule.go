package types

import "regexp"

// Rule is one detection pattern plus the metadata shipped with it.
type Rule struct {
	ID               string // e.g. "streamscan.aws.1"
	Name             string
	Pattern          string
	StructuralID     string // see ComputeStructuralID
	Description      string
	Examples         []string // inputs the pattern must match
	NegativeExamples []string // inputs it must not match
	References       []string
	Categories       []string
	Keywords         []string // literals for the prefilter; empty means always run
}

var namedGroupOpen = regexp.MustCompile(`\(\?P<[^>]+>`)

// ComputeStructuralID hashes the pattern with named groups rewritten as plain
// groups, so renaming a group does not change a rule's identity.
func (r *Rule) ComputeStructuralID() string {
	return hashFields([]byte(namedGroupOpen.ReplaceAllString(r.Pattern, "(")))
}

// Ruleset is a named selection of rule IDs.
type Ruleset struct {
	ID          string
	Name        string
	Description string
	RuleIDs     []string
}
