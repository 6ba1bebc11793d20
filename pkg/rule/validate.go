package rule

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// compilePattern compiles a pattern the way the portable matcher does: RE2
// syntax first, then full .NET syntax.
func compilePattern(pattern string) error {
	if _, err := regexp2.Compile(pattern, regexp2.RE2|regexp2.Multiline); err == nil {
		return nil
	}
	_, err := regexp2.Compile(pattern, regexp2.None)
	return err
}

// ValidateRule reports every problem of r at once.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return errors.New("rule is nil")
	}

	var result *multierror.Error
	if r.ID == "" {
		result = multierror.Append(result, errors.New("rule ID is required"))
	}
	if r.Name == "" {
		result = multierror.Append(result, errors.Errorf("rule %s: name is required", r.ID))
	}
	if r.Pattern == "" {
		result = multierror.Append(result, errors.Errorf("rule %s: pattern is required", r.ID))
	} else if err := compilePattern(r.Pattern); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "invalid pattern for rule %s", r.ID))
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			result = multierror.Append(result, errors.Errorf("rule %s: empty keyword", r.ID))
			break
		}
	}
	if r.StructuralID != "" && r.StructuralID != r.ComputeStructuralID() {
		result = multierror.Append(result, errors.Errorf("rule %s: stale StructuralID %s", r.ID, r.StructuralID))
	}
	return result.ErrorOrNil()
}

// ValidateRuleset checks that rs names at least one rule, without
// duplicates. With knownRuleIDs, every referenced ID must be known.
func ValidateRuleset(rs *types.Ruleset, knownRuleIDs map[string]bool) error {
	if rs == nil {
		return errors.New("ruleset is nil")
	}

	var result *multierror.Error
	if rs.ID == "" {
		result = multierror.Append(result, errors.New("ruleset ID is required"))
	}
	if rs.Name == "" {
		result = multierror.Append(result, fmt.Errorf("ruleset %s: name is required", rs.ID))
	}
	if len(rs.RuleIDs) == 0 {
		result = multierror.Append(result, fmt.Errorf("ruleset %s must reference at least one rule", rs.ID))
	}

	seen := make(map[string]bool, len(rs.RuleIDs))
	for _, id := range rs.RuleIDs {
		if seen[id] {
			result = multierror.Append(result, fmt.Errorf("ruleset %s: duplicate rule ID %s", rs.ID, id))
		}
		seen[id] = true
		if knownRuleIDs != nil && !knownRuleIDs[id] {
			result = multierror.Append(result, fmt.Errorf("ruleset %s: unknown rule ID %s", rs.ID, id))
		}
	}
	return result.ErrorOrNil()
}
